// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package credential

import (
	"time"
)

// Login failure handling configuration.
const (
	// LockoutDuration is the time a credential is locked after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of failures that triggers a lockout.
	LockoutThreshold = 7
)

// FailureBackoff returns the delay to impose before the next login attempt
// for the given failure count. Progressive: 2^(failures-1) seconds, capped
// at 32s before lockout takes over.
func FailureBackoff(failures int) time.Duration {
	if failures <= 0 || failures >= LockoutThreshold {
		return 0
	}
	delay := time.Duration(1<<(failures-1)) * time.Second
	if delay > 32*time.Second {
		delay = 32 * time.Second
	}
	return delay
}

// IsLockedOut returns true if the lockout time is in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(time.Now())
}

// ComputeLockoutTime returns the lockout timestamp for the given failure
// count, or nil if failures < LockoutThreshold.
func ComputeLockoutTime(failures int) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := time.Now().Add(LockoutDuration)
	return &lockout
}
