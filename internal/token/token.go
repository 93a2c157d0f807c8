// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package token issues and validates time-bounded security tokens.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Kind discriminates the three token flavors sharing one Token shape.
type Kind string

// Token kinds.
const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
	KindSession           Kind = "session"
)

// Default TTLs per kind.
const (
	VerificationTTL = 24 * time.Hour
	ResetTTL        = 30 * time.Minute
	SessionTTL      = 30 * 24 * time.Hour
)

// ValueBytes is the entropy of a token value (32 bytes = 64 hex chars).
const ValueBytes = 32

// Valid returns true if k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEmailVerification, KindPasswordReset, KindSession:
		return true
	}
	return false
}

// SingleUse returns true if successful validation must consume the token.
// Sessions are multi-use until revoked or expired.
func (k Kind) SingleUse() bool {
	return k != KindSession
}

// Token is the stored record for an issued token. The plaintext value is
// returned exactly once at issue time; only its SHA-256 hash is kept at rest.
type Token struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	Kind       Kind
	TokenHash  string
	Metadata   map[string]string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	LastSeenAt *time.Time
}

// New creates a validated Token plus its plaintext value.
// Metadata is optional and may be nil.
func New(userID ulid.ULID, kind Kind, ttl time.Duration, metadata map[string]string) (*Token, string, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, "", oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if !kind.Valid() {
		return nil, "", oops.Code("TOKEN_INVALID_KIND").
			With("kind", string(kind)).
			Errorf("unknown token kind")
	}
	if ttl <= 0 {
		return nil, "", oops.Code("TOKEN_INVALID_TTL").
			With("ttl", ttl.String()).
			Errorf("ttl must be positive")
	}

	value, hash, err := GenerateValue()
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	return &Token{
		ID:        ulid.Make(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: hash,
		Metadata:  metadata,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, value, nil
}

// IsExpired returns true if the token has expired.
func (t *Token) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the token would be expired at the given time.
// Useful for testing with deterministic time values.
func (t *Token) IsExpiredAt(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// IsConsumed returns true if the token has been consumed or revoked.
func (t *Token) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// GenerateValue creates a secure random token value and its hash.
// Returns (plaintext_value, sha256_hash, error).
// The plaintext value is sent to the user; the hash is stored in the database.
func GenerateValue() (value, hash string, err error) {
	raw := make([]byte, ValueBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}

	value = hex.EncodeToString(raw)
	hash = HashValue(value)

	return value, hash, nil
}

// HashValue computes the SHA-256 hash of a token value.
// Tokens are stored hashed so a leaked table cannot be replayed.
func HashValue(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

// VerifyValue checks if the plaintext value matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyValue(value, hash string) bool {
	if value == "" || hash == "" {
		return false
	}
	computed := HashValue(value)
	// Both are hex-encoded SHA256 hashes (64 chars), use constant-time compare
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
