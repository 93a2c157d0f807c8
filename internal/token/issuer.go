// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package token

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/observability"
)

// Issuer issues, validates, and revokes tokens against an injected Store.
// One Issuer serves all three kinds; the kind decides TTL defaults and
// whether validation consumes.
type Issuer struct {
	store  Store
	limits *IssueLimiter
}

// NewIssuer creates an Issuer. The limiter is optional; nil disables
// issuance throttling.
func NewIssuer(store Store, limits *IssueLimiter) *Issuer {
	return &Issuer{store: store, limits: limits}
}

// Issue generates a token of the given kind, persists it, and returns the
// stored record plus the plaintext value. The plaintext is returned exactly
// once; callers transport it to the user out-of-band.
func (i *Issuer) Issue(ctx context.Context, userID ulid.ULID, kind Kind, ttl time.Duration, metadata map[string]string) (*Token, string, error) {
	if i.limits != nil && !i.limits.Allow(userID, kind) {
		return nil, "", oops.Code("TOKEN_RATE_LIMITED").
			With("user_id", userID.String()).
			With("kind", string(kind)).
			Errorf("token issuance rate exceeded")
	}

	tok, value, err := New(userID, kind, ttl, metadata)
	if err != nil {
		return nil, "", err
	}

	if err := i.store.Put(ctx, tok); err != nil {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "put token").
			With("kind", string(kind)).
			Wrap(err)
	}

	observability.RecordTokenIssued(string(kind))
	return tok, value, nil
}

// Validate checks a plaintext token value against the expected kind.
// For single-use kinds, success atomically consumes the token in the same
// store operation; two concurrent calls resolve to exactly one success.
// Failures are distinguished internally by code (TOKEN_NOT_FOUND,
// TOKEN_KIND_MISMATCH, TOKEN_EXPIRED, TOKEN_CONSUMED) but callers must
// collapse them into one user-facing message to avoid enumeration.
func (i *Issuer) Validate(ctx context.Context, value string, expected Kind) (*Token, error) {
	if value == "" {
		return nil, i.fail(expected, "empty", oops.Code("TOKEN_EMPTY").Errorf("token value cannot be empty"))
	}

	hash := HashValue(value)

	tok, err := i.store.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, i.fail(expected, "not_found", oops.Code("TOKEN_NOT_FOUND").Errorf("token not found"))
		}
		return nil, oops.Code("TOKEN_VALIDATE_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}

	if tok.Kind != expected {
		return nil, i.fail(expected, "kind_mismatch", oops.Code("TOKEN_KIND_MISMATCH").
			With("expected", string(expected)).
			With("actual", string(tok.Kind)).
			Errorf("token kind mismatch"))
	}

	now := time.Now()
	if tok.IsExpiredAt(now) {
		return nil, i.fail(expected, "expired", oops.Code("TOKEN_EXPIRED").Errorf("token has expired"))
	}

	if tok.IsConsumed() {
		return nil, i.fail(expected, "consumed", oops.Code("TOKEN_CONSUMED").Errorf("token already consumed"))
	}

	if expected.SingleUse() {
		won, err := i.store.ConsumeIfFresh(ctx, hash, now)
		if err != nil {
			return nil, oops.Code("TOKEN_VALIDATE_FAILED").
				With("operation", "consume token").
				Wrap(err)
		}
		// Lost the race: another validation consumed it first.
		if !won {
			return nil, i.fail(expected, "consumed", oops.Code("TOKEN_CONSUMED").Errorf("token already consumed"))
		}
		tok.ConsumedAt = &now
	}

	observability.RecordTokenValidation(string(expected), "ok")
	return tok, nil
}

// Revoke marks the token consumed regardless of current state.
// Idempotent; no error if the token is already consumed or absent.
func (i *Issuer) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	if err := i.store.Revoke(ctx, HashValue(value), time.Now()); err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("operation", "revoke token").
			Wrap(err)
	}
	return nil
}

// RevokeAllForUser revokes every unconsumed token of the given kind for a
// user and returns the count revoked.
func (i *Issuer) RevokeAllForUser(ctx context.Context, userID ulid.ULID, kind Kind) (int64, error) {
	n, err := i.store.RevokeAllByUser(ctx, userID, kind, time.Now())
	if err != nil {
		return 0, oops.Code("TOKEN_REVOKE_ALL_FAILED").
			With("operation", "revoke all by user").
			With("user_id", userID.String()).
			With("kind", string(kind)).
			Wrap(err)
	}
	return n, nil
}

// Touch records last-seen bookkeeping for a token value. Best effort.
func (i *Issuer) Touch(ctx context.Context, value string, at time.Time) error {
	//nolint:wrapcheck // Best-effort bookkeeping, callers ignore the error
	return i.store.Touch(ctx, HashValue(value), at)
}

// fail records a validation failure metric and returns the error unchanged.
func (i *Issuer) fail(kind Kind, outcome string, err error) error {
	observability.RecordTokenValidation(string(kind), outcome)
	return err
}
