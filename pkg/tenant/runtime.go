package tenant

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/subtexthq/powermap/pkg/graph"
	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/metrics"
)

// Builder materializes snapshots from build input. *graph.Builder is the
// production implementation.
type Builder interface {
	Build(graph.BuildInput) (*graph.Snapshot, error)
}

// Runtime is the per-tenant graph state: the last published snapshot and the
// build scheduling needed to keep rebuilds serialized, coalesced and
// latest-request-wins. It is the explicit context object every snapshot
// operation goes through; there is no shared global graph state.
type Runtime struct {
	TenantID string

	builder Builder
	logger  logging.Logger
	metrics *metrics.Registry

	// current is the published snapshot. Publication is a single pointer
	// swap, so readers never block on a rebuild and never observe a
	// half-built graph.
	current atomic.Pointer[graph.Snapshot]

	mu       sync.Mutex
	inflight *buildTicket
	pending  *buildTicket
	gen      uint64
}

// buildTicket is one scheduled build. Multiple rebuild callers may wait on
// the same ticket (request deduplication).
type buildTicket struct {
	gen   uint64
	input graph.BuildInput
	done  chan struct{}
	snap  *graph.Snapshot
	err   error
}

// NewRuntime creates the runtime for one tenant.
func NewRuntime(tenantID string, builder Builder, logger logging.Logger, reg *metrics.Registry) *Runtime {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	return &Runtime{
		TenantID: tenantID,
		builder:  builder,
		logger:   logger.With(logging.TenantID(tenantID)),
		metrics:  reg,
	}
}

// Current returns the last published snapshot, or nil before the first
// successful build. Never blocks.
func (r *Runtime) Current() *graph.Snapshot {
	return r.current.Load()
}

// Rebuild schedules a snapshot build and waits for its result.
//
// Scheduling rules:
//   - No build in flight: the request starts one.
//   - A build in flight: the request queues behind it. Only one queued build
//     exists at a time; a newer request replaces the queued input
//     (latest-request-wins) and every waiting caller gets the result of
//     whichever build their ticket resolved to.
//   - A completed build publishes only if no newer request arrived while it
//     ran; a superseded result is discarded and the previous snapshot stays
//     authoritative until the newer build lands.
func (r *Runtime) Rebuild(input graph.BuildInput) (*graph.Snapshot, error) {
	r.mu.Lock()
	r.gen++
	var ticket *buildTicket

	switch {
	case r.inflight == nil:
		ticket = &buildTicket{gen: r.gen, input: input, done: make(chan struct{})}
		r.inflight = ticket
		go r.run(ticket)
	case r.pending == nil:
		ticket = &buildTicket{gen: r.gen, input: input, done: make(chan struct{})}
		r.pending = ticket
		r.metrics.BuildsCoalesced.Inc()
	default:
		// Replace the queued input; earlier waiters ride along.
		r.pending.gen = r.gen
		r.pending.input = input
		ticket = r.pending
		r.metrics.BuildsSuperseded.Inc()
	}
	r.mu.Unlock()

	<-ticket.done
	return ticket.snap, ticket.err
}

// run executes one build outside the scheduling lock.
func (r *Runtime) run(ticket *buildTicket) {
	start := time.Now()
	snap, err := r.builder.Build(ticket.input)
	elapsed := time.Since(start)

	r.mu.Lock()
	superseded := r.pending != nil && r.pending.gen > ticket.gen

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case superseded:
		status = "superseded"
	default:
		r.current.Store(snap)
	}

	ticket.snap = snap
	ticket.err = err
	close(ticket.done)

	if next := r.pending; next != nil {
		r.pending = nil
		r.inflight = next
		go r.run(next)
	} else {
		r.inflight = nil
	}
	r.mu.Unlock()

	nodes, edges := 0, 0
	if snap != nil {
		nodes, edges = len(snap.Nodes), len(snap.Edges)
	}
	r.metrics.RecordBuild(r.TenantID, status, elapsed, nodes, edges)

	if err != nil {
		r.logger.Error("snapshot build failed", logging.Error(err), logging.Latency(elapsed))
		return
	}
	r.logger.Info("snapshot build finished",
		logging.SnapshotID(snap.ID),
		logging.String("status", status),
		logging.Int("nodes", nodes),
		logging.Int("edges", edges),
		logging.Latency(elapsed))
}
