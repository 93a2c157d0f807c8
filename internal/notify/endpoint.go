// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package notify delivers push notifications to registered endpoints with
// per-endpoint failure isolation.
package notify

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Endpoint is one registered delivery target for a user. A user may register
// many endpoints (multi-device). Identity is the (UserID, EndpointRef) pair;
// re-registering the same pair overwrites the keys.
type Endpoint struct {
	UserID      ulid.ULID
	EndpointRef string
	// Keys is the opaque key material the transport needs to encrypt and
	// authenticate a message to this endpoint. Never interpreted here.
	Keys      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEndpoint creates a validated Endpoint.
func NewEndpoint(userID ulid.ULID, endpointRef string, keys []byte) (*Endpoint, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("NOTIFY_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if endpointRef == "" {
		return nil, oops.Code("NOTIFY_INVALID_ENDPOINT").Errorf("endpoint ref cannot be empty")
	}

	now := time.Now()
	return &Endpoint{
		UserID:      userID,
		EndpointRef: endpointRef,
		Keys:        keys,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// EndpointStore manages endpoint registrations.
type EndpointStore interface {
	// Upsert registers an endpoint, overwriting the keys if the
	// (user, endpointRef) pair already exists. Idempotent.
	Upsert(ctx context.Context, ep *Endpoint) error

	// GetByUser retrieves all endpoints registered for a user.
	GetByUser(ctx context.Context, userID ulid.ULID) ([]*Endpoint, error)

	// GetAll retrieves every registered endpoint system-wide.
	GetAll(ctx context.Context) ([]*Endpoint, error)

	// Delete removes one endpoint registration.
	Delete(ctx context.Context, userID ulid.ULID, endpointRef string) error
}
