// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/logging"
	"github.com/keygate/keygate/internal/notify"
	notifypg "github.com/keygate/keygate/internal/notify/postgres"
	"github.com/keygate/keygate/internal/observability"
	"github.com/keygate/keygate/internal/store"
	"github.com/keygate/keygate/internal/token"
	tokenpg "github.com/keygate/keygate/internal/token/postgres"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the keygate service",
		Long: `Run the keygate service: periodic expired-token sweeping, the
metrics/health HTTP server, and the NATS dispatch consumer.`,
		RunE: runServe,
	}

	cmd.Flags().String("observability.addr", "", "metrics/health listen address (empty = config default)")
	cmd.Flags().Duration("sweep.interval", 0, "expired-token sweep interval (0 = config default)")
	cmd.Flags().String("log.format", "", "log format: json or text")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("keygate", version, cfg.Log.Format)

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	slog.Info("connecting to database")
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens := tokenpg.NewTokenStore(pool)
	limits := token.NewIssueLimiter(rate.Limit(cfg.Tokens.IssueRate), cfg.Tokens.IssueBurst)
	sweeper := store.NewSweeper(tokens, limits, cfg.Sweep.Interval, slog.Default())

	// Delivery plane: NATS transport for outgoing pushes, consumer for
	// incoming dispatch requests.
	var consumer *notify.Consumer
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("keygate"))
		if err != nil {
			return oops.Code("NATS_CONNECT_FAILED").
				With("url", cfg.NATS.URL).
				Wrap(err)
		}
		defer nc.Close()

		endpoints := notifypg.NewEndpointStore(pool)
		transport := notify.NewNATSTransport(nc, cfg.NATS.SubjectPrefix)
		dispatcher := notify.NewDispatcher(endpoints, transport, cfg.Dispatch.AttemptTimeout, slog.Default())

		consumer = notify.NewConsumer(nc, dispatcher, "", slog.Default())
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				slog.Warn("error stopping dispatch consumer", "error", err)
			}
		}()
	} else {
		slog.Warn("nats.url not configured, dispatch consumer disabled")
	}

	var obsServer *observability.Server
	if cfg.Observability.Addr != "" {
		obsServer = observability.NewServer(cfg.Observability.Addr, func() bool {
			return pool.Ping(ctx) == nil
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("sweeper stopped unexpectedly", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("keygate started")
	slog.Info("keygate ready",
		"metrics_addr", cfg.Observability.Addr,
		"sweep_interval", cfg.Sweep.Interval,
	)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	cancel()
	<-sweepDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the context when a background server fails, so
// one component's failure shuts the whole process down cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
