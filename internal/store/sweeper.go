// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/observability"
	"github.com/keygate/keygate/internal/token"
)

// DefaultSweepInterval is how often expired tokens are purged.
const DefaultSweepInterval = 15 * time.Minute

// Sweeper periodically deletes expired token rows. Expiry is enforced at
// validation time regardless; the sweeper only reclaims storage, so a missed
// sweep is never a correctness problem.
type Sweeper struct {
	tokens   token.Store
	limits   *token.IssueLimiter
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. interval <= 0 selects DefaultSweepInterval;
// limits may be nil when issuance throttling is disabled.
func NewSweeper(tokens token.Store, limits *token.IssueLimiter, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		tokens:   tokens,
		limits:   limits,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Always
// returns ctx.Err(); sweep failures are logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // Plain cancellation, callers check errors.Is
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("token sweep failed", "error", err)
			}
			if s.limits != nil {
				s.limits.Cleanup()
			}
		}
	}
}

// Sweep deletes all tokens whose expiry has passed and returns nothing;
// the purge count is recorded as a metric and logged.
func (s *Sweeper) Sweep(ctx context.Context) error {
	n, err := s.tokens.DeleteExpiredBefore(ctx, time.Now())
	if err != nil {
		return oops.Code("SWEEP_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	observability.RecordSweptTokens(n)
	if n > 0 {
		s.logger.Info("swept expired tokens", "count", n)
	}
	return nil
}
