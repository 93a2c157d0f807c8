// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package store

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/token"
)

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("removes only expired tokens", func(t *testing.T) {
		tokens := token.NewMemoryStore()

		expired, _, err := token.New(ulid.Make(), token.KindPasswordReset, time.Nanosecond, nil)
		require.NoError(t, err)
		require.NoError(t, tokens.Put(ctx, expired))

		live, _, err := token.New(ulid.Make(), token.KindSession, time.Hour, nil)
		require.NoError(t, err)
		require.NoError(t, tokens.Put(ctx, live))

		time.Sleep(time.Millisecond)

		sweeper := NewSweeper(tokens, nil, 0, nil)
		require.NoError(t, sweeper.Sweep(ctx))

		_, err = tokens.GetByTokenHash(ctx, expired.TokenHash)
		assert.ErrorIs(t, err, token.ErrNotFound)

		_, err = tokens.GetByTokenHash(ctx, live.TokenHash)
		assert.NoError(t, err)
	})

	t.Run("empty store sweeps cleanly", func(t *testing.T) {
		sweeper := NewSweeper(token.NewMemoryStore(), nil, 0, nil)
		assert.NoError(t, sweeper.Sweep(ctx))
	})
}

func TestSweeper_Run(t *testing.T) {
	t.Run("stops on cancellation", func(t *testing.T) {
		sweeper := NewSweeper(token.NewMemoryStore(), token.NewIssueLimiter(0, 0), 10*time.Millisecond, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- sweeper.Run(ctx) }()

		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop after cancellation")
		}
	})
}
