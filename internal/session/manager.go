// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package session manages long-lived, revocable session tokens.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/token"
)

// Manager issues and validates session tokens. Sessions are multi-use: a
// token stays valid until it expires or is revoked. Multi-device login is
// permitted; issuing never invalidates prior sessions.
type Manager struct {
	issuer *token.Issuer
	ttl    time.Duration

	// Per-user critical section serializing RevokeAll against concurrent
	// Issue for the same user, so a racing session lands wholly before or
	// wholly after the purge. Entries are reference counted and dropped
	// once released, keeping the map bounded by concurrency rather than by
	// users ever seen.
	mu    sync.Mutex
	locks map[ulid.ULID]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a session Manager. ttl <= 0 selects the default
// session TTL.
func NewManager(issuer *token.Issuer, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = token.SessionTTL
	}
	return &Manager{
		issuer: issuer,
		ttl:    ttl,
		locks:  make(map[ulid.ULID]*userLock),
	}
}

// lockUser acquires the mutex guarding operations for one user, creating it
// on first use.
func (m *Manager) lockUser(userID ulid.ULID) *userLock {
	m.mu.Lock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &userLock{}
		m.locks[userID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockUser releases the per-user mutex and evicts the map entry once no
// caller holds or waits on it.
func (m *Manager) unlockUser(userID ulid.ULID, lock *userLock) {
	lock.mu.Unlock()

	m.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, userID)
	}
	m.mu.Unlock()
}

// Issue creates a new session for a user and returns the stored record plus
// the plaintext token value.
func (m *Manager) Issue(ctx context.Context, userID ulid.ULID) (*token.Token, string, error) {
	lock := m.lockUser(userID)
	defer m.unlockUser(userID, lock)

	tok, value, err := m.issuer.Issue(ctx, userID, token.KindSession, m.ttl, nil)
	if err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "issue session token").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return tok, value, nil
}

// Validate checks a session token value and returns the owning user ID.
// Sessions are reusable: validation never consumes. Last-seen bookkeeping is
// updated best effort.
func (m *Manager) Validate(ctx context.Context, value string) (ulid.ULID, error) {
	tok, err := m.issuer.Validate(ctx, value, token.KindSession)
	if err != nil {
		return ulid.ULID{}, err // Already carries the appropriate token error code
	}

	_ = m.issuer.Touch(ctx, value, time.Now()) //nolint:errcheck // Best effort, validation succeeds regardless

	return tok.UserID, nil
}

// Revoke invalidates one session. Idempotent.
func (m *Manager) Revoke(ctx context.Context, value string) error {
	//nolint:wrapcheck // Issuer error already carries code and context
	return m.issuer.Revoke(ctx, value)
}

// RevokeAll invalidates every live session for a user ("log out everywhere")
// and returns the number revoked. Serialized against concurrent Issue calls
// for the same user.
func (m *Manager) RevokeAll(ctx context.Context, userID ulid.ULID) (int64, error) {
	lock := m.lockUser(userID)
	defer m.unlockUser(userID, lock)

	n, err := m.issuer.RevokeAllForUser(ctx, userID, token.KindSession)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_ALL_FAILED").
			With("operation", "revoke all sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return n, nil
}
