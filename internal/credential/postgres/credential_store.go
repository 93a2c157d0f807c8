// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package postgres provides the PostgreSQL implementation of the credential store.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/credential"
)

// poolIface is the subset of pgxpool.Pool used by the store. pgxmock
// satisfies it for unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialStore implements credential.Store using PostgreSQL.
type CredentialStore struct {
	pool poolIface
}

// NewCredentialStore creates a new CredentialStore.
func NewCredentialStore(pool poolIface) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// Get retrieves the credential for a user.
func (s *CredentialStore) Get(ctx context.Context, userID ulid.ULID) (*credential.Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, hash_version, failed_attempts, locked_until, created_at, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID.String())

	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credential.ErrNotFound
		}
		return nil, err
	}
	return cred, nil
}

// Put stores or fully replaces the credential for a user. The row is swapped
// whole; stale counters from a previous credential never survive.
func (s *CredentialStore) Put(ctx context.Context, cred *credential.Credential) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version, failed_attempts, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			hash_version = EXCLUDED.hash_version,
			failed_attempts = EXCLUDED.failed_attempts,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at
	`,
		cred.UserID.String(),
		cred.PasswordHash,
		cred.HashVersion,
		cred.FailedAttempts,
		cred.LockedUntil,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "put credential").
			With("user_id", cred.UserID.String()).
			Wrap(err)
	}
	return nil
}

// Delete removes the credential for a user.
func (s *CredentialStore) Delete(ctx context.Context, userID ulid.ULID) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM credentials WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "delete credential").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return credential.ErrNotFound
	}
	return nil
}

// scanCredential builds a credential from one row.
func scanCredential(row pgx.Row) (*credential.Credential, error) {
	var (
		userIDStr      string
		passwordHash   string
		hashVersion    int
		failedAttempts int
		lockedUntil    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)
	if err := row.Scan(&userIDStr, &passwordHash, &hashVersion, &failedAttempts, &lockedUntil, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows //nolint:wrapcheck // Sentinel preserved for the caller's errors.Is
		}
		return nil, oops.Code("CREDENTIAL_SCAN_FAILED").
			With("operation", "scan credential").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &credential.Credential{
		UserID:         userID,
		PasswordHash:   passwordHash,
		HashVersion:    hashVersion,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ credential.Store = (*CredentialStore)(nil)
