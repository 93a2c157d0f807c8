// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a requested endpoint does not exist.
var ErrNotFound = errors.New("not found")

type endpointKey struct {
	userID      ulid.ULID
	endpointRef string
}

// MemoryEndpointStore is a mutex-guarded in-memory EndpointStore for tests.
type MemoryEndpointStore struct {
	mu        sync.Mutex
	endpoints map[endpointKey]*Endpoint
	order     []endpointKey
}

// NewMemoryEndpointStore creates an empty MemoryEndpointStore.
func NewMemoryEndpointStore() *MemoryEndpointStore {
	return &MemoryEndpointStore{endpoints: make(map[endpointKey]*Endpoint)}
}

// Upsert registers an endpoint; duplicate registration overwrites the keys.
func (s *MemoryEndpointStore) Upsert(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := endpointKey{userID: ep.UserID, endpointRef: ep.EndpointRef}
	if existing, ok := s.endpoints[key]; ok {
		existing.Keys = ep.Keys
		existing.UpdatedAt = time.Now()
		return nil
	}
	clone := *ep
	s.endpoints[key] = &clone
	s.order = append(s.order, key)
	return nil
}

// GetByUser retrieves all endpoints for a user in registration order.
func (s *MemoryEndpointStore) GetByUser(_ context.Context, userID ulid.ULID) ([]*Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eps []*Endpoint
	for _, key := range s.order {
		if key.userID.Compare(userID) != 0 {
			continue
		}
		if ep, ok := s.endpoints[key]; ok {
			clone := *ep
			eps = append(eps, &clone)
		}
	}
	return eps, nil
}

// GetAll retrieves every registered endpoint in registration order.
func (s *MemoryEndpointStore) GetAll(_ context.Context) ([]*Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eps []*Endpoint
	for _, key := range s.order {
		if ep, ok := s.endpoints[key]; ok {
			clone := *ep
			eps = append(eps, &clone)
		}
	}
	return eps, nil
}

// Delete removes one endpoint registration.
func (s *MemoryEndpointStore) Delete(_ context.Context, userID ulid.ULID, endpointRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := endpointKey{userID: userID, endpointRef: endpointRef}
	if _, ok := s.endpoints[key]; !ok {
		return ErrNotFound
	}
	delete(s.endpoints, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Compile-time interface check.
var _ EndpointStore = (*MemoryEndpointStore)(nil)
