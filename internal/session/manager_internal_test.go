// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/token"
)

func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func TestManager_LockMapEvictsReleasedUsers(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(token.NewIssuer(token.NewMemoryStore(), nil), time.Hour)

	for range 10 {
		userID := ulid.Make()
		_, _, err := mgr.Issue(ctx, userID)
		require.NoError(t, err)
		_, err = mgr.RevokeAll(ctx, userID)
		require.NoError(t, err)
	}

	assert.Zero(t, mgr.lockCount(), "released user locks must not accumulate")
}

func TestManager_LockMapBoundedUnderContention(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(token.NewIssuer(token.NewMemoryStore(), nil), time.Hour)

	users := make([]ulid.ULID, 4)
	for i := range users {
		users[i] = ulid.Make()
	}

	var wg sync.WaitGroup
	for range 8 {
		for _, userID := range users {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _, _ = mgr.Issue(ctx, userID)
			}()
			go func() {
				defer wg.Done()
				_, _ = mgr.RevokeAll(ctx, userID)
			}()
		}
	}
	wg.Wait()

	assert.Zero(t, mgr.lockCount(), "lock map must drain once all operations finish")
}
