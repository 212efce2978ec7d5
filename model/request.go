package model

import "time"

// RequestStatus is the lifecycle state of a connection request.
// A request is Pending from creation until the routing layer either
// reserves spectrum for it (Accepted) or gives up (Blocked). The two
// terminal states are exclusive: an Accepted request always carries a
// complete allocation, a Blocked request never carries one.
type RequestStatus int

const (
	StatusPending RequestStatus = iota
	StatusAccepted
	StatusBlocked
)

// String returns the lowercase status name used in output records.
func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Request is a bandwidth-demanding connection moving through the
// simulation. It is created at arrival time, mutated by the active
// routing policy on route/reroute, and released when its deallocation
// timer fires (or earlier, when a disaster forces its slots free).
type Request struct {
	ID     int64
	Src    string
	Dst    string
	SrcISP int
	DstISP int

	// Bandwidth is the demanded bandwidth in Gb/s.
	Bandwidth float64
	// Class is the traffic class drawn from the scenario distribution.
	Class int
	// HoldingTime is how long the connection occupies its allocation.
	HoldingTime time.Duration
	// IsMigration marks datacenter migration traffic emitted by an ISP's
	// migration controller rather than ordinary offered load.
	IsMigration bool

	Status RequestStatus

	// Allocation, valid only while Status == StatusAccepted.
	Path      []string
	SlotStart int
	SlotEnd   int
	// DistanceKm is the total length of the allocated path.
	DistanceKm float64

	CreatedAt time.Time
	// DeallocAt is when the holding time expires. Zero while unrouted or blocked.
	DeallocAt time.Time
	// BlockedAt is when the request transitioned to Blocked. Zero otherwise.
	BlockedAt time.Time

	// AffectedByDisaster is set once disaster handling has forcibly
	// released this request's slots and attempted a reroute. It is never
	// cleared, so a request is torn down for rerouting at most once.
	AffectedByDisaster bool

	// PreReroute snapshots the allocation that was torn down by disaster
	// handling, for post-run audit. Nil for requests never rerouted.
	PreReroute *RequestSnapshot

	// DeallocTimerID is the cancellation handle of the pending
	// deallocation event on the simulation scheduler. Empty when no
	// timer is armed.
	DeallocTimerID string
}

// NoSlot marks an unset slot index on a request that holds no window.
const NoSlot = -1

// SlotsUsed returns the width of the allocated window, or zero when the
// request holds no spectrum.
func (r *Request) SlotsUsed() int {
	if r.SlotStart == NoSlot || r.SlotEnd == NoSlot {
		return 0
	}
	return r.SlotEnd - r.SlotStart + 1
}

// HoldsResourcesAt reports whether the request occupies spectrum at
// instant t, i.e. t falls inside [CreatedAt, DeallocAt).
func (r *Request) HoldsResourcesAt(t time.Time) bool {
	if r.Status != StatusAccepted {
		return false
	}
	if r.DeallocAt.IsZero() {
		return false
	}
	return !t.Before(r.CreatedAt) && t.Before(r.DeallocAt)
}

// ClearAllocation resets the allocation fields to their unrouted state.
func (r *Request) ClearAllocation() {
	r.Path = nil
	r.SlotStart = NoSlot
	r.SlotEnd = NoSlot
	r.DistanceKm = 0
	r.DeallocAt = time.Time{}
	r.DeallocTimerID = ""
}

// RequestSnapshot is the pre-reroute attribute set captured before
// disaster handling tears an allocation down.
type RequestSnapshot struct {
	Status     RequestStatus
	Path       []string
	SlotStart  int
	SlotEnd    int
	DistanceKm float64
	CreatedAt  time.Time
	DeallocAt  time.Time
}

// Snapshot captures the request's current allocation-relevant fields.
func (r *Request) Snapshot() *RequestSnapshot {
	path := make([]string, len(r.Path))
	copy(path, r.Path)
	return &RequestSnapshot{
		Status:     r.Status,
		Path:       path,
		SlotStart:  r.SlotStart,
		SlotEnd:    r.SlotEnd,
		DistanceKm: r.DistanceKm,
		CreatedAt:  r.CreatedAt,
		DeallocAt:  r.DeallocAt,
	}
}
