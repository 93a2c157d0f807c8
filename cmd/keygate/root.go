// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the keygate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygate",
		Short: "Keygate - credential and token lifecycle service",
		Long: `Keygate manages password credentials, opaque tokens (email
verification, password reset, sessions), and push notification fan-out.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
