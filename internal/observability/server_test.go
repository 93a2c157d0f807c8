// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestServer_Metrics(t *testing.T) {
	server := NewServer("127.0.0.1:0", func() bool { return true })

	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	addr := server.Addr()
	if addr == "" {
		t.Fatal("server address is empty")
	}

	// Record some events so the custom counters appear in output
	RecordTokenIssued("session")
	RecordTokenValidation("session", "ok")
	RecordDelivery("timeout")
	RecordSweptTokens(3)

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("failed to GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	bodyStr := string(body)
	for _, want := range []string{
		"# HELP",
		"# TYPE",
		"go_",
		"process_",
		"keygate_tokens_issued_total",
		"keygate_token_validations_total",
		"keygate_deliveries_total",
		"keygate_swept_tokens_total",
	} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}

func TestServer_HealthProbes(t *testing.T) {
	var ready atomic.Bool
	server := NewServer("127.0.0.1:0", func() bool { return ready.Load() })

	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	addr := server.Addr()

	resp, err := http.Get("http://" + addr + "/healthz/liveness")
	if err != nil {
		t.Fatalf("failed to GET liveness: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get("http://" + addr + "/healthz/readiness")
	if err != nil {
		t.Fatalf("failed to GET readiness: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readiness (not ready): expected 503, got %d", resp.StatusCode)
	}

	ready.Store(true)
	resp, err = http.Get("http://" + addr + "/healthz/readiness")
	if err != nil {
		t.Fatalf("failed to GET readiness: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readiness (ready): expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	// Second start while running must fail
	if _, err := server.Start(); err == nil {
		t.Error("expected error starting an already-running server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}

	// Stop is idempotent
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}
