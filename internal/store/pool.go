// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package store provides database connectivity, schema migrations, and
// background maintenance for the persistence layer.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// connectTimeout bounds the whole connect-and-ping retry loop.
const connectTimeout = 30 * time.Second

// Connect opens a pgx connection pool and verifies it with a ping. Transient
// startup failures (database still booting, brief network blips) are retried
// with fibonacci backoff until connectTimeout elapses.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var pool *pgxpool.Pool
	backoff := retry.WithMaxDuration(connectTimeout, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.Warn("database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "connect to database").
			Wrap(err)
	}

	return pool, nil
}
