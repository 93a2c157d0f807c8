// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package token

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MemoryStore is a mutex-guarded in-memory Store. It is intended for tests
// and must be injected explicitly; nothing in this package falls back to it.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*Token)}
}

// Put stores a newly issued token.
func (s *MemoryStore) Put(_ context.Context, tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[tok.TokenHash]; exists {
		return oops.Code("TOKEN_DUPLICATE_HASH").Errorf("token hash already stored")
	}
	clone := *tok
	s.tokens[tok.TokenHash] = &clone
	return nil
}

// GetByTokenHash retrieves a token by its stored hash.
func (s *MemoryStore) GetByTokenHash(_ context.Context, tokenHash string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *tok
	return &clone, nil
}

// ConsumeIfFresh atomically consumes the token if it is unconsumed.
func (s *MemoryStore) ConsumeIfFresh(_ context.Context, tokenHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[tokenHash]
	if !ok || tok.ConsumedAt != nil {
		return false, nil
	}
	consumed := at
	tok.ConsumedAt = &consumed
	return true, nil
}

// Revoke marks the token consumed regardless of current state.
func (s *MemoryStore) Revoke(_ context.Context, tokenHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[tokenHash]
	if !ok || tok.ConsumedAt != nil {
		return nil
	}
	consumed := at
	tok.ConsumedAt = &consumed
	return nil
}

// RevokeAllByUser marks all unconsumed tokens of a kind for a user as consumed.
func (s *MemoryStore) RevokeAllByUser(_ context.Context, userID ulid.ULID, kind Kind, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, tok := range s.tokens {
		if tok.UserID.Compare(userID) == 0 && tok.Kind == kind && tok.ConsumedAt == nil {
			consumed := at
			tok.ConsumedAt = &consumed
			n++
		}
	}
	return n, nil
}

// Touch updates last-seen bookkeeping for a token.
func (s *MemoryStore) Touch(_ context.Context, tokenHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[tokenHash]
	if !ok {
		return ErrNotFound
	}
	seen := at
	tok.LastSeenAt = &seen
	return nil
}

// DeleteExpiredBefore removes tokens whose expiry is before the given time.
func (s *MemoryStore) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, tok := range s.tokens {
		if tok.ExpiresAt.Before(t) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
