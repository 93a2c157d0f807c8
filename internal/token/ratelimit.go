// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package token

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
)

// Issuance throttling defaults: 5 tokens per minute per (user, kind),
// burst of 5. High enough for legitimate multi-device use, low enough to
// blunt password-reset spam.
const (
	DefaultIssueRate  = rate.Limit(5.0 / 60.0)
	DefaultIssueBurst = 5

	// limiterIdleEviction is how long an idle per-user limiter is kept
	// before the cleanup pass drops it.
	limiterIdleEviction = 10 * time.Minute
)

// issueKey identifies one throttling bucket.
type issueKey struct {
	userID ulid.ULID
	kind   Kind
}

type issueEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IssueLimiter throttles token issuance per (user, kind) pair using a
// token bucket. Safe for concurrent use.
type IssueLimiter struct {
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	entries map[issueKey]*issueEntry
}

// NewIssueLimiter creates an IssueLimiter with the given rate and burst.
// Zero values select the defaults.
func NewIssueLimiter(r rate.Limit, burst int) *IssueLimiter {
	if r <= 0 {
		r = DefaultIssueRate
	}
	if burst <= 0 {
		burst = DefaultIssueBurst
	}
	return &IssueLimiter{
		rate:    r,
		burst:   burst,
		entries: make(map[issueKey]*issueEntry),
	}
}

// Allow reports whether one more token may be issued for the user and kind.
func (l *IssueLimiter) Allow(userID ulid.ULID, kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := issueKey{userID: userID, kind: kind}
	entry, ok := l.entries[key]
	if !ok {
		entry = &issueEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Cleanup drops buckets idle longer than the eviction window and returns
// the number of buckets removed. Callers run this periodically; the limiter
// does not spawn its own goroutine.
func (l *IssueLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-limiterIdleEviction)
	removed := 0
	for key, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}
