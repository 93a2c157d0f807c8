// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package credential

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/token"
)

// SessionIssuer issues a session for a user after successful authentication.
// Satisfied by session.Manager.
type SessionIssuer interface {
	Issue(ctx context.Context, userID ulid.ULID) (*token.Token, string, error)
}

// Service provides credential operations: password set, login, verify.
type Service struct {
	creds    Store
	sessions SessionIssuer
	hasher   Hasher
}

// NewService creates a credential Service.
func NewService(creds Store, sessions SessionIssuer, hasher Hasher) *Service {
	return &Service{
		creds:    creds,
		sessions: sessions,
		hasher:   hasher,
	}
}

// dummyPasswordHash is used when no credential exists, so the verification
// cost is paid either way and response time does not reveal which users exist.
// This is NOT a real credential - it is a fake hash that will never match.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SetPassword hashes the password and stores a fresh credential for the
// user, fully replacing any existing one.
func (s *Service) SetPassword(ctx context.Context, userID ulid.ULID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err // Already carries CREDENTIAL_EMPTY_PASSWORD or hash failure code
	}

	cred, err := New(userID, hash)
	if err != nil {
		return err
	}

	if err := s.creds.Put(ctx, cred); err != nil {
		return oops.Code("CREDENTIAL_PUT_FAILED").
			With("operation", "put credential").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// Login verifies the password for a user and issues a session on success.
// Returns the session token record and its plaintext value.
// All authentication failures surface as AUTH_INVALID_CREDENTIALS so callers
// cannot distinguish an unknown user from a wrong password.
func (s *Service) Login(ctx context.Context, userID ulid.ULID, password string) (*token.Token, string, error) {
	cred, lookupErr := s.creds.Get(ctx, userID)

	// Select the hash to verify against: real, or dummy when the user is
	// unknown so verification cost stays constant.
	var targetHash string
	var exists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			targetHash = dummyPasswordHash
		} else {
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get credential").
				Wrap(lookupErr)
		}
	} else {
		targetHash = cred.PasswordHash
		exists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, "", invalidCredentials()
		}
		// A stored hash we cannot parse means corrupted data, not a wrong
		// password. Surface it so operators are alerted.
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !exists || !valid {
		if exists {
			cred.RecordFailure()
			_ = s.creds.Put(ctx, cred) //nolint:errcheck // Best effort
		}
		return nil, "", invalidCredentials()
	}

	// Check lockout AFTER password verification to keep timing constant.
	if cred.IsLocked() {
		return nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", cred.LockedUntil).
			Errorf("account is temporarily locked")
	}

	cred.RecordSuccess()

	// Transparently upgrade the hash when parameters are outdated.
	if s.hasher.NeedsRehash(cred.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			cred.PasswordHash = newHash
			cred.HashVersion = CurrentHashVersion
		}
	}

	// Ignore errors - login succeeds even if the bookkeeping update fails.
	_ = s.creds.Put(ctx, cred) //nolint:errcheck // Best effort

	sess, value, err := s.sessions.Issue(ctx, userID)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}

	return sess, value, nil
}

// VerifyPassword checks a password against the stored credential without
// issuing a session. Used for re-authentication prompts.
func (s *Service) VerifyPassword(ctx context.Context, userID ulid.ULID, password string) (bool, error) {
	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn the verification cost anyway.
			_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // Timing consistency only
			return false, nil
		}
		return false, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(password, cred.PasswordHash)
	if err != nil {
		return false, oops.Code("CREDENTIAL_VERIFY_FAILED").
			With("operation", "verify password").
			Wrap(err)
	}
	return valid, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid user or password")
}
