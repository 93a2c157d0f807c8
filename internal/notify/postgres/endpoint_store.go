// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package postgres provides the PostgreSQL implementation of the endpoint store.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/notify"
)

// poolIface is the subset of pgxpool.Pool used by the store. pgxmock
// satisfies it for unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EndpointStore implements notify.EndpointStore using PostgreSQL.
type EndpointStore struct {
	pool poolIface
}

// NewEndpointStore creates a new EndpointStore.
func NewEndpointStore(pool poolIface) *EndpointStore {
	return &EndpointStore{pool: pool}
}

// Upsert registers an endpoint; duplicate registration overwrites the keys.
func (s *EndpointStore) Upsert(ctx context.Context, ep *notify.Endpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_endpoints (user_id, endpoint_ref, keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, endpoint_ref)
		DO UPDATE SET keys = EXCLUDED.keys, updated_at = EXCLUDED.updated_at
	`,
		ep.UserID.String(),
		ep.EndpointRef,
		ep.Keys,
		ep.CreatedAt,
		ep.UpdatedAt,
	)
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "upsert delivery_endpoint").
			With("user_id", ep.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByUser retrieves all endpoints registered for a user.
func (s *EndpointStore) GetByUser(ctx context.Context, userID ulid.ULID) ([]*notify.Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, endpoint_ref, keys, created_at, updated_at
		FROM delivery_endpoints
		WHERE user_id = $1
		ORDER BY created_at
	`, userID.String())
	if err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "get endpoints by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	return collectEndpoints(rows)
}

// GetAll retrieves every registered endpoint system-wide.
func (s *EndpointStore) GetAll(ctx context.Context) ([]*notify.Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, endpoint_ref, keys, created_at, updated_at
		FROM delivery_endpoints
		ORDER BY created_at
	`)
	if err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "get all endpoints").
			Wrap(err)
	}
	defer rows.Close()

	return collectEndpoints(rows)
}

// Delete removes one endpoint registration.
func (s *EndpointStore) Delete(ctx context.Context, userID ulid.ULID, endpointRef string) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM delivery_endpoints WHERE user_id = $1 AND endpoint_ref = $2
	`, userID.String(), endpointRef)
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "delete delivery_endpoint").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("NOTIFY_ENDPOINT_NOT_FOUND").Wrap(notify.ErrNotFound)
	}
	return nil
}

// collectEndpoints scans all rows into endpoints.
func collectEndpoints(rows pgx.Rows) ([]*notify.Endpoint, error) {
	var eps []*notify.Endpoint
	for rows.Next() {
		var (
			userIDStr   string
			endpointRef string
			keys        []byte
			createdAt   time.Time
			updatedAt   time.Time
		)
		if err := rows.Scan(&userIDStr, &endpointRef, &keys, &createdAt, &updatedAt); err != nil {
			return nil, oops.Code("NOTIFY_SCAN_FAILED").
				With("operation", "scan delivery_endpoint").
				Wrap(err)
		}

		userID, err := ulid.Parse(userIDStr)
		if err != nil {
			return nil, oops.Code("NOTIFY_INVALID_USER_ID").
				With("user_id", userIDStr).
				Wrap(err)
		}

		eps = append(eps, &notify.Endpoint{
			UserID:      userID,
			EndpointRef: endpointRef,
			Keys:        keys,
			CreatedAt:   createdAt,
			UpdatedAt:   updatedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "iterate delivery_endpoints").
			Wrap(err)
	}

	return eps, nil
}

// Compile-time interface check.
var _ notify.EndpointStore = (*EndpointStore)(nil)
