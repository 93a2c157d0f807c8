// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/credential"
	"github.com/keygate/keygate/pkg/errutil"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestCredentialStore_Get(t *testing.T) {
	ctx := context.Background()
	cols := []string{"user_id", "password_hash", "hash_version", "failed_attempts", "locked_until", "created_at", "updated_at"}

	t.Run("returns stored credential", func(t *testing.T) {
		mock := newMock(t)
		store := NewCredentialStore(mock)

		userID := ulid.Make()
		now := time.Now()
		locked := now.Add(15 * time.Minute)

		mock.ExpectQuery(`SELECT .+ FROM credentials`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows(cols).AddRow(
				userID.String(), "$argon2id$v=19$...", 1, 7, &locked, now, now,
			))

		cred, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, cred.UserID)
		assert.Equal(t, 7, cred.FailedAttempts)
		require.NotNil(t, cred.LockedUntil)
		assert.True(t, cred.IsLocked())
	})

	t.Run("maps no rows to ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		store := NewCredentialStore(mock)

		userID := ulid.Make()
		mock.ExpectQuery(`SELECT .+ FROM credentials`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows(cols))

		_, err := store.Get(ctx, userID)
		assert.ErrorIs(t, err, credential.ErrNotFound)
	})

	t.Run("rejects malformed user id", func(t *testing.T) {
		mock := newMock(t)
		store := NewCredentialStore(mock)

		userID := ulid.Make()
		now := time.Now()
		mock.ExpectQuery(`SELECT .+ FROM credentials`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows(cols).AddRow(
				"not-a-ulid", "hash", 1, 0, nil, now, now,
			))

		_, err := store.Get(ctx, userID)
		require.Error(t, err)
	})
}

func TestCredentialStore_Put(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts the full row", func(t *testing.T) {
		mock := newMock(t)
		store := NewCredentialStore(mock)

		cred, err := credential.New(ulid.Make(), "$argon2id$v=19$...")
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO credentials`).
			WithArgs(cred.UserID.String(), cred.PasswordHash, cred.HashVersion,
				cred.FailedAttempts, cred.LockedUntil, cred.CreatedAt, cred.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.Put(ctx, cred))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps connectivity failure as store unavailable", func(t *testing.T) {
		mock := newMock(t)
		store := NewCredentialStore(mock)

		cred, err := credential.New(ulid.Make(), "hash")
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO credentials`).
			WillReturnError(errors.New("connection refused"))

		err = store.Put(ctx, cred)
		errutil.AssertErrorCode(t, err, "STORE_UNAVAILABLE")
	})
}

func TestCredentialStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes credential", func(t *testing.T) {
		mock := newMock(t)
		store := NewCredentialStore(mock)

		userID := ulid.Make()
		mock.ExpectExec(`DELETE FROM credentials`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, store.Delete(ctx, userID))
	})

	t.Run("missing credential yields ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		store := NewCredentialStore(mock)

		userID := ulid.Make()
		mock.ExpectExec(`DELETE FROM credentials`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, store.Delete(ctx, userID), credential.ErrNotFound)
	})
}
