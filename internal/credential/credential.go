// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package credential

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CurrentHashVersion tags credentials hashed with the current scheme.
// Bumped when the hashing algorithm or its parameters change, so stored
// rows can be migrated lazily on login.
const CurrentHashVersion = 1

// Credential is the stored password record for a user. It never holds
// plaintext; PasswordHash is a self-describing PHC string. A credential is
// replaced whole on password change, never partially updated.
type Credential struct {
	UserID         ulid.ULID
	PasswordHash   string
	HashVersion    int
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New creates a validated Credential from a user ID and password hash.
func New(userID ulid.ULID, passwordHash string) (*Credential, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("CREDENTIAL_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if passwordHash == "" {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Credential{
		UserID:       userID,
		PasswordHash: passwordHash,
		HashVersion:  CurrentHashVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLocked returns true if the credential is currently locked out.
func (c *Credential) IsLocked() bool {
	return IsLockedOut(c.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (c *Credential) RecordFailure() {
	c.FailedAttempts++
	c.LockedUntil = ComputeLockoutTime(c.FailedAttempts)
	c.UpdatedAt = time.Now()
}

// RecordSuccess resets failure counter and lockout.
func (c *Credential) RecordSuccess() {
	c.FailedAttempts = 0
	c.LockedUntil = nil
	c.UpdatedAt = time.Now()
}

// Store manages credential persistence. Put performs a full row replace;
// there is no partial update.
type Store interface {
	// Get retrieves the credential for a user.
	// Returns ErrNotFound if no credential exists.
	Get(ctx context.Context, userID ulid.ULID) (*Credential, error)

	// Put stores or fully replaces the credential for a user.
	Put(ctx context.Context, cred *Credential) error

	// Delete removes the credential for a user.
	Delete(ctx context.Context, userID ulid.ULID) error
}
