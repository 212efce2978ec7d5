package telemetry

import (
	"fmt"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

// Registry is the run-scoped record of every request ever created,
// plus live counters consumed by the feedback controller and the
// observability layer. It is owned by the simulation driver and passed
// by reference to every component; a new run gets a new registry.
type Registry struct {
	requests []*model.Request
	byID     map[int64]bool

	// Live counters track outcomes as they happen, including reroute
	// outcomes. Final accounting always rescans terminal statuses.
	acceptedEvents int
	blockedEvents  int
	rerouteEvents  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[int64]bool)}
}

// Register appends a freshly created request. Duplicate IDs are a bug
// in the arrival layer and surface immediately.
func (r *Registry) Register(req *model.Request) error {
	if r.byID[req.ID] {
		return fmt.Errorf("register request: duplicate ID %d", req.ID)
	}
	r.byID[req.ID] = true
	r.requests = append(r.requests, req)
	return nil
}

// Requests returns all registered requests in creation order. The
// slice is shared; callers must not mutate it.
func (r *Registry) Requests() []*model.Request {
	return r.requests
}

// MarkAccepted records an accept outcome.
func (r *Registry) MarkAccepted() { r.acceptedEvents++ }

// MarkBlocked records a block outcome.
func (r *Registry) MarkBlocked() { r.blockedEvents++ }

// MarkReroute records a disaster-triggered reroute attempt.
func (r *Registry) MarkReroute() { r.rerouteEvents++ }

// OutcomeEvents returns the live accept/block/reroute event counters.
func (r *Registry) OutcomeEvents() (accepted, blocked, rerouted int) {
	return r.acceptedEvents, r.blockedEvents, r.rerouteEvents
}

// Totals rescans terminal statuses: created, accepted, blocked,
// still-pending. At the end of a run pending must be zero and
// created == accepted + blocked, or the run silently lost requests.
func (r *Registry) Totals() (created, accepted, blocked, pending int) {
	created = len(r.requests)
	for _, req := range r.requests {
		switch req.Status {
		case model.StatusAccepted:
			accepted++
		case model.StatusBlocked:
			blocked++
		default:
			pending++
		}
	}
	return created, accepted, blocked, pending
}

// CheckClosed verifies the end-of-run accounting invariant.
func (r *Registry) CheckClosed() error {
	created, accepted, blocked, pending := r.Totals()
	if pending != 0 || created != accepted+blocked {
		return fmt.Errorf("request accounting not closed: created=%d accepted=%d blocked=%d pending=%d",
			created, accepted, blocked, pending)
	}
	return nil
}

// Records flattens every request into its output row, in creation
// (ID) order.
func (r *Registry) Records() []model.Record {
	out := make([]model.Record, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, model.RecordOf(req))
	}
	return out
}
