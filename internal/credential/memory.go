// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package credential

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is a mutex-guarded in-memory Store for tests. It must be
// injected explicitly; nothing falls back to it.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[ulid.ULID]*Credential
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[ulid.ULID]*Credential)}
}

// Get retrieves the credential for a user.
func (s *MemoryStore) Get(_ context.Context, userID ulid.ULID) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *cred
	return &clone, nil
}

// Put stores or fully replaces the credential for a user.
func (s *MemoryStore) Put(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *cred
	s.creds[cred.UserID] = &clone
	return nil
}

// Delete removes the credential for a user.
func (s *MemoryStore) Delete(_ context.Context, userID ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creds[userID]; !ok {
		return ErrNotFound
	}
	delete(s.creds, userID)
	return nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
