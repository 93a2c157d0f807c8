// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/pkg/errutil"
)

// DispatchRequest is the wire format for a fan-out request received over NATS.
type DispatchRequest struct {
	UserID    string          `json:"user_id,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// DispatchReply is the wire format for the fan-out outcome.
type DispatchReply struct {
	Requested int            `json:"requested"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []ReplyFailure `json:"failures,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ReplyFailure describes one failed endpoint in a DispatchReply.
type ReplyFailure struct {
	EndpointRef string `json:"endpoint_ref"`
	Kind        string `json:"kind"`
}

// Consumer answers dispatch requests published on a NATS subject, fanning
// each one out through the Dispatcher and replying with the report.
type Consumer struct {
	conn       *nats.Conn
	dispatcher *Dispatcher
	subject    string
	logger     *slog.Logger

	sub *nats.Subscription
}

// NewConsumer creates a Consumer listening on the given subject. subject
// empty selects "keygate.notify"; logger nil selects slog.Default().
func NewConsumer(conn *nats.Conn, dispatcher *Dispatcher, subject string, logger *slog.Logger) *Consumer {
	if subject == "" {
		subject = "keygate.notify"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:       conn,
		dispatcher: dispatcher,
		subject:    subject,
		logger:     logger,
	}
}

// Start subscribes and begins answering requests. Requests are handled on
// NATS delivery goroutines; the base context bounds each dispatch.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.conn.Subscribe(c.subject, func(msg *nats.Msg) {
		reply := c.Handle(ctx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Warn("failed to respond to dispatch request", "error", err)
		}
	})
	if err != nil {
		return oops.Code("NOTIFY_SUBSCRIBE_FAILED").
			With("subject", c.subject).
			Wrap(err)
	}
	c.sub = sub
	c.logger.Info("dispatch consumer started", "subject", c.subject)
	return nil
}

// Stop unsubscribes. Safe to call when Start never ran.
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Unsubscribe() //nolint:wrapcheck // Shutdown path, callers log and move on
}

// Handle processes one raw request and returns the serialized reply. Always
// returns a well-formed reply; malformed input and dispatch errors land in
// the Error field.
func (c *Consumer) Handle(ctx context.Context, data []byte) []byte {
	var req DispatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return marshalReply(&DispatchReply{Error: "malformed request"})
	}

	var report *Report
	var err error

	switch {
	case req.Broadcast:
		report, err = c.dispatcher.DispatchBroadcast(ctx, req.Payload)
	default:
		userID, parseErr := ulid.Parse(req.UserID)
		if parseErr != nil {
			return marshalReply(&DispatchReply{Error: "invalid user_id"})
		}
		report, err = c.dispatcher.Dispatch(ctx, userID, req.Payload)
	}

	if err != nil {
		errutil.LogError(c.logger, "dispatch request failed", err)
		return marshalReply(&DispatchReply{Error: errutil.Code(err)})
	}

	reply := &DispatchReply{
		Requested: report.Requested,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	}
	for _, f := range report.Failures {
		reply.Failures = append(reply.Failures, ReplyFailure{
			EndpointRef: f.EndpointRef,
			Kind:        string(f.Kind),
		})
	}
	return marshalReply(reply)
}

func marshalReply(reply *DispatchReply) []byte {
	data, err := json.Marshal(reply)
	if err != nil {
		// A struct of ints and strings cannot fail to marshal.
		return []byte(`{"error":"internal"}`)
	}
	return data
}
