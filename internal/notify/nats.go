// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package notify

import (
	"context"
	"encoding/base64"

	"github.com/nats-io/nats.go"
	"github.com/samber/oops"
)

// keysHeader carries the endpoint key material to the delivery worker.
const keysHeader = "Keygate-Endpoint-Keys"

// NATSTransport delivers payloads over NATS request/reply. The endpointRef
// is used as the subject suffix; a reply from the delivery worker is the
// acknowledgment. No reply within the attempt deadline is a timeout.
type NATSTransport struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSTransport creates a NATSTransport publishing under the given
// subject prefix (e.g. "keygate.deliver").
func NewNATSTransport(conn *nats.Conn, subjectPrefix string) *NATSTransport {
	if subjectPrefix == "" {
		subjectPrefix = "keygate.deliver"
	}
	return &NATSTransport{conn: conn, subjectPrefix: subjectPrefix}
}

// Send publishes the payload for one endpoint and waits for the worker's
// acknowledgment, bounded by ctx.
func (t *NATSTransport) Send(ctx context.Context, endpointRef string, keys []byte, payload []byte) error {
	msg := nats.NewMsg(t.subjectPrefix + "." + endpointRef)
	msg.Data = payload
	if len(keys) > 0 {
		msg.Header.Set(keysHeader, base64.StdEncoding.EncodeToString(keys))
	}

	if _, err := t.conn.RequestMsgWithContext(ctx, msg); err != nil {
		// Pass context errors through unchanged so the dispatcher can
		// classify timeouts.
		if ctx.Err() != nil {
			return ctx.Err() //nolint:wrapcheck // Classification relies on the bare context error
		}
		return oops.Code("NOTIFY_TRANSPORT_FAILED").
			With("endpoint_ref", endpointRef).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ Transport = (*NATSTransport)(nil)
