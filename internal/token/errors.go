// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package token

import "errors"

// ErrNotFound is returned when a requested token does not exist.
var ErrNotFound = errors.New("not found")
