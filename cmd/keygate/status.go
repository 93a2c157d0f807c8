// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/config"
)

// ServiceStatus holds the health information reported by the status command.
type ServiceStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running keygate service",
		Long:  `Query the liveness and readiness probes of a running keygate service.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, statusCfg *statusConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	status := queryServiceStatus(cfg.Observability.Addr)

	if statusCfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatus(status))
	return nil
}

// queryServiceStatus probes the observability server's health endpoints.
func queryServiceStatus(addr string) ServiceStatus {
	status := ServiceStatus{Addr: addr}

	client := &http.Client{Timeout: 2 * time.Second}

	live, err := probe(client, "http://"+addr+"/healthz/liveness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Live = live

	ready, err := probe(client, "http://"+addr+"/healthz/readiness")
	if err != nil {
		// Liveness succeeded, so the process is up; readiness is just false.
		status.Ready = false
		return status
	}
	status.Ready = ready

	return status
}

// probe returns true on HTTP 200, false on any other status.
func probe(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url) //nolint:noctx // Short-lived CLI probe with a client timeout
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse

	return resp.StatusCode == http.StatusOK, nil
}

// formatStatus renders a human-readable one-liner.
func formatStatus(status ServiceStatus) string {
	if status.Error != "" {
		return fmt.Sprintf("keygate (%s): not running (%s)", status.Addr, status.Error)
	}
	readiness := "not ready"
	if status.Ready {
		readiness = "ready"
	}
	return fmt.Sprintf("keygate (%s): running, %s", status.Addr, readiness)
}
