// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package token

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store manages token persistence. Implementations must provide atomic
// check-and-set semantics for ConsumeIfFresh: two concurrent calls for the
// same token hash must resolve to exactly one true result.
type Store interface {
	// Put stores a newly issued token.
	Put(ctx context.Context, tok *Token) error

	// GetByTokenHash retrieves a token by its stored hash.
	// Returns ErrNotFound if no such token exists.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Token, error)

	// ConsumeIfFresh atomically sets consumed_at to the given time if and
	// only if it is currently unset. Returns true if this call won the
	// consumption, false if the token was already consumed or absent.
	ConsumeIfFresh(ctx context.Context, tokenHash string, at time.Time) (bool, error)

	// Revoke marks the token consumed regardless of current state.
	// Idempotent; no error if the token is already consumed or absent.
	Revoke(ctx context.Context, tokenHash string, at time.Time) error

	// RevokeAllByUser marks all unconsumed tokens of the given kind for a
	// user as consumed. Returns the number of tokens revoked.
	RevokeAllByUser(ctx context.Context, userID ulid.ULID, kind Kind, at time.Time) (int64, error)

	// Touch updates last-seen bookkeeping for a token. Best effort; callers
	// may ignore the error.
	Touch(ctx context.Context, tokenHash string, at time.Time) error

	// DeleteExpiredBefore removes tokens whose expiry is before the given
	// time and returns the count of deleted rows. Maintenance only; the
	// validation path never relies on expired rows being absent.
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}
