// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package postgres provides the PostgreSQL implementation of the token store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/token"
)

// poolIface is the subset of pgxpool.Pool used by the store. pgxmock
// satisfies it for unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TokenStore implements token.Store using PostgreSQL.
type TokenStore struct {
	pool poolIface
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool poolIface) *TokenStore {
	return &TokenStore{pool: pool}
}

// Put stores a newly issued token.
func (s *TokenStore) Put(ctx context.Context, tok *token.Token) error {
	var metadata []byte
	if len(tok.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(tok.Metadata)
		if err != nil {
			return oops.Code("TOKEN_PUT_FAILED").
				With("operation", "marshal metadata").
				Wrap(err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, user_id, kind, token_hash, metadata, issued_at, expires_at, consumed_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		tok.ID.String(),
		tok.UserID.String(),
		string(tok.Kind),
		tok.TokenHash,
		metadata,
		tok.IssuedAt,
		tok.ExpiresAt,
		tok.ConsumedAt,
		tok.LastSeenAt,
	)
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "insert token").
			With("kind", string(tok.Kind)).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a token by its stored hash.
func (s *TokenStore) GetByTokenHash(ctx context.Context, tokenHash string) (*token.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, kind, token_hash, metadata, issued_at, expires_at, consumed_at, last_seen_at
		FROM tokens
		WHERE token_hash = $1
	`, tokenHash)

	tok, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(token.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "get token by hash").
			Wrap(err)
	}
	return tok, nil
}

// ConsumeIfFresh atomically consumes the token if consumed_at is unset.
// The conditional UPDATE is the linearization point: concurrent callers for
// the same hash resolve to exactly one affected row.
func (s *TokenStore) ConsumeIfFresh(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE tokens SET consumed_at = $2
		WHERE token_hash = $1 AND consumed_at IS NULL
	`, tokenHash, at)
	if err != nil {
		return false, oops.Code("STORE_UNAVAILABLE").
			With("operation", "consume token").
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// Revoke marks the token consumed regardless of current state. Idempotent.
func (s *TokenStore) Revoke(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens SET consumed_at = $2
		WHERE token_hash = $1 AND consumed_at IS NULL
	`, tokenHash, at)
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "revoke token").
			Wrap(err)
	}
	// No ErrNotFound when nothing matched - revoking an absent or already
	// consumed token is a valid no-op.
	return nil
}

// RevokeAllByUser marks all unconsumed tokens of a kind for a user as consumed.
func (s *TokenStore) RevokeAllByUser(ctx context.Context, userID ulid.ULID, kind token.Kind, at time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE tokens SET consumed_at = $3
		WHERE user_id = $1 AND kind = $2 AND consumed_at IS NULL
	`, userID.String(), string(kind), at)
	if err != nil {
		return 0, oops.Code("STORE_UNAVAILABLE").
			With("operation", "revoke tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Touch updates last-seen bookkeeping for a token.
func (s *TokenStore) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE tokens SET last_seen_at = $2
		WHERE token_hash = $1
	`, tokenHash, at)
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "touch token").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").Wrap(token.ErrNotFound)
	}
	return nil
}

// DeleteExpiredBefore removes tokens whose expiry is before the given time.
func (s *TokenStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM tokens WHERE expires_at < $1
	`, t)
	if err != nil {
		return 0, oops.Code("STORE_UNAVAILABLE").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken scans a single row into a Token.
// Callers are responsible for handling pgx.ErrNoRows.
func scanToken(row pgx.Row) (*token.Token, error) {
	var (
		idStr      string
		userIDStr  string
		kindStr    string
		tokenHash  string
		metadata   []byte
		issuedAt   time.Time
		expiresAt  time.Time
		consumedAt *time.Time
		lastSeenAt *time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &kindStr, &tokenHash, &metadata, &issuedAt, &expiresAt, &consumedAt, &lastSeenAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("TOKEN_SCAN_FAILED").
			With("operation", "scan token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}

	var meta map[string]string
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return nil, oops.Code("TOKEN_INVALID_METADATA").
				With("operation", "unmarshal metadata").
				Wrap(err)
		}
	}

	return &token.Token{
		ID:         id,
		UserID:     userID,
		Kind:       token.Kind(kindStr),
		TokenHash:  tokenHash,
		Metadata:   meta,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		ConsumedAt: consumedAt,
		LastSeenAt: lastSeenAt,
	}, nil
}

// Compile-time interface check.
var _ token.Store = (*TokenStore)(nil)
