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

// SessionRevoker invalidates all sessions for a user. Satisfied by
// session.Manager.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID ulid.ULID) (int64, error)
}

// ResetService handles the password reset flow: request a single-use reset
// token, then accept a new password against it.
type ResetService struct {
	creds    Store
	issuer   *token.Issuer
	hasher   Hasher
	sessions SessionRevoker
}

// NewResetService creates a ResetService. sessions may be nil to skip
// revoking live sessions after a successful reset.
func NewResetService(creds Store, issuer *token.Issuer, hasher Hasher, sessions SessionRevoker) *ResetService {
	return &ResetService{
		creds:    creds,
		issuer:   issuer,
		hasher:   hasher,
		sessions: sessions,
	}
}

// RequestReset issues a password reset token for a user.
// Returns the plaintext token for out-of-band delivery (emailing the link is
// NOT this service's job). If the user has no credential, returns success
// with an empty token to prevent user enumeration.
func (s *ResetService) RequestReset(ctx context.Context, userID ulid.ULID) (string, error) {
	_, err := s.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Empty token, no error: indistinguishable from success.
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get credential").
			Wrap(err)
	}

	_, value, err := s.issuer.Issue(ctx, userID, token.KindPasswordReset, token.ResetTTL, nil)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}

	return value, nil
}

// ConfirmReset accepts a new password against a valid reset token.
// Token consumption and the password swap authorize each other: the token is
// consumed atomically by validation, so a token can never accept two
// passwords even under concurrent confirmation attempts.
func (s *ResetService) ConfirmReset(ctx context.Context, value, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}

	tok, err := s.issuer.Validate(ctx, value, token.KindPasswordReset)
	if err != nil {
		return err // Already carries the appropriate token error code
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	cred, err := New(tok.UserID, hash)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "build credential").
			Wrap(err)
	}

	if err := s.creds.Put(ctx, cred); err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "put credential").
			With("user_id", tok.UserID.String()).
			Wrap(err)
	}

	// A reset means the old password may be compromised: log out everywhere.
	// Cleanup only - the password swap above already succeeded.
	if s.sessions != nil {
		_, _ = s.sessions.RevokeAll(ctx, tok.UserID) //nolint:errcheck // Best effort
	}

	return nil
}
