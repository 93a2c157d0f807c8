// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package credential

import "errors"

// ErrNotFound is returned when a requested credential does not exist.
var ErrNotFound = errors.New("not found")
