// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package notify

import (
	"context"
	"errors"
)

// Transport delivers one payload to one endpoint. Implementations are opaque
// to the dispatcher; failures are classified for reporting only, never
// interpreted further.
type Transport interface {
	Send(ctx context.Context, endpointRef string, keys []byte, payload []byte) error
}

// ErrorKind classifies a delivery failure for the report.
type ErrorKind string

// Failure classifications.
const (
	// ErrorTimeout marks an attempt that exceeded its per-attempt deadline.
	// Retryable-looking.
	ErrorTimeout ErrorKind = "timeout"

	// ErrorTransport marks any other transport failure. Frequently permanent
	// (expired device registration), so the dispatcher never retries.
	ErrorTransport ErrorKind = "transport"
)

// classify maps a delivery error to its report kind.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorTransport
}
