// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package main

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/store"
	tokenpg "github.com/keygate/keygate/internal/token/postgres"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired tokens once and exit",
		Long: `Delete all expired token rows in a single pass. The serve command
runs this periodically; sweep exists for cron-style setups and manual runs.`,
		RunE: runSweep,
	}
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens := tokenpg.NewTokenStore(pool)
	n, err := tokens.DeleteExpiredBefore(ctx, time.Now())
	if err != nil {
		return oops.Code("SWEEP_FAILED").With("operation", "delete expired tokens").Wrap(err)
	}

	cmd.Printf("Swept %d expired token(s)\n", n)
	return nil
}
