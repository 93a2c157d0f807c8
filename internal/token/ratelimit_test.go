// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package token_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/keygate/keygate/internal/token"
)

func TestIssueLimiter_Allow(t *testing.T) {
	t.Run("allows up to burst then throttles", func(t *testing.T) {
		limiter := token.NewIssueLimiter(rate.Every(time.Hour), 3)
		userID := ulid.Make()

		for i := range 3 {
			assert.True(t, limiter.Allow(userID, token.KindPasswordReset), "attempt %d should pass", i)
		}
		assert.False(t, limiter.Allow(userID, token.KindPasswordReset))
	})

	t.Run("buckets are independent per user", func(t *testing.T) {
		limiter := token.NewIssueLimiter(rate.Every(time.Hour), 1)

		assert.True(t, limiter.Allow(ulid.Make(), token.KindSession))
		assert.True(t, limiter.Allow(ulid.Make(), token.KindSession))
	})

	t.Run("buckets are independent per kind", func(t *testing.T) {
		limiter := token.NewIssueLimiter(rate.Every(time.Hour), 1)
		userID := ulid.Make()

		assert.True(t, limiter.Allow(userID, token.KindPasswordReset))
		assert.False(t, limiter.Allow(userID, token.KindPasswordReset))
		assert.True(t, limiter.Allow(userID, token.KindEmailVerification))
	})

	t.Run("zero values select defaults", func(t *testing.T) {
		limiter := token.NewIssueLimiter(0, 0)
		userID := ulid.Make()

		for i := range token.DefaultIssueBurst {
			assert.True(t, limiter.Allow(userID, token.KindSession), "attempt %d should pass", i)
		}
		assert.False(t, limiter.Allow(userID, token.KindSession))
	})
}

func TestIssueLimiter_Cleanup(t *testing.T) {
	limiter := token.NewIssueLimiter(rate.Every(time.Hour), 1)

	// Fresh buckets survive cleanup
	limiter.Allow(ulid.Make(), token.KindSession)
	limiter.Allow(ulid.Make(), token.KindSession)
	assert.Equal(t, 0, limiter.Cleanup())
}
