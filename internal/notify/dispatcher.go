// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/observability"
)

// DefaultAttemptTimeout bounds one delivery attempt. An attempt past the
// deadline is recorded as a timeout failure without affecting siblings.
const DefaultAttemptTimeout = 5 * time.Second

// Failure records one failed delivery attempt.
type Failure struct {
	EndpointRef string
	Kind        ErrorKind
	Err         error
}

// Report aggregates the outcome of one dispatch. Succeeded+Failed always
// equals Requested, which is the endpoint count snapshotted at dispatch time.
type Report struct {
	Requested int
	Succeeded int
	Failed    int
	// Failures is ordered by endpoint resolution order.
	Failures []Failure
}

// Dispatcher fans a payload out to all registered endpoints of a scope,
// delivering to each independently and concurrently. One endpoint's failure
// never blocks or aborts the others, and never fails the dispatch itself.
type Dispatcher struct {
	endpoints EndpointStore
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. timeout <= 0 selects
// DefaultAttemptTimeout; logger nil selects slog.Default().
func NewDispatcher(endpoints EndpointStore, transport Transport, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		endpoints: endpoints,
		transport: transport,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dispatch delivers the payload to every endpoint registered for a user.
// Fails with NOTIFY_NO_ENDPOINTS when the user has none, so callers can
// distinguish "nobody to notify" from "notified nobody successfully".
func (d *Dispatcher) Dispatch(ctx context.Context, userID ulid.ULID, payload []byte) (*Report, error) {
	eps, err := d.endpoints.GetByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("NOTIFY_RESOLVE_FAILED").
			With("operation", "get endpoints by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if len(eps) == 0 {
		return nil, oops.Code("NOTIFY_NO_ENDPOINTS").
			With("user_id", userID.String()).
			Errorf("no endpoints registered")
	}
	return d.fanOut(ctx, eps, payload), nil
}

// DispatchBroadcast delivers the payload to every registered endpoint
// system-wide.
func (d *Dispatcher) DispatchBroadcast(ctx context.Context, payload []byte) (*Report, error) {
	eps, err := d.endpoints.GetAll(ctx)
	if err != nil {
		return nil, oops.Code("NOTIFY_RESOLVE_FAILED").
			With("operation", "get all endpoints").
			Wrap(err)
	}
	if len(eps) == 0 {
		return nil, oops.Code("NOTIFY_NO_ENDPOINTS").Errorf("no endpoints registered")
	}
	return d.fanOut(ctx, eps, payload), nil
}

// fanOut delivers to each endpoint in its own goroutine and joins all before
// returning. Results land in a per-slot slice, so aggregation needs no lock.
func (d *Dispatcher) fanOut(ctx context.Context, eps []*Endpoint, payload []byte) *Report {
	results := make([]error, len(eps))

	// Detach from the caller's cancellation: abandoning the dispatch result
	// must not cut in-flight attempts short. The per-attempt timeout is the
	// only cancellation granularity.
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, ep := range eps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attemptCtx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()
			results[i] = d.transport.Send(attemptCtx, ep.EndpointRef, ep.Keys, payload)
		}()
	}
	wg.Wait()

	report := &Report{Requested: len(eps)}
	for i, err := range results {
		if err == nil {
			report.Succeeded++
			observability.RecordDelivery("ok")
			continue
		}
		report.Failed++
		kind := classify(err)
		observability.RecordDelivery(string(kind))
		report.Failures = append(report.Failures, Failure{
			EndpointRef: eps[i].EndpointRef,
			Kind:        kind,
			Err:         err,
		})
		d.logger.Warn("delivery failed",
			"endpoint_ref", eps[i].EndpointRef,
			"kind", string(kind),
			"error", err,
		)
	}
	return report
}
