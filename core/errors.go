package core

import "errors"

// Structural/configuration errors surface to the caller immediately.
// Resource contention is never an error: it is encoded in the request
// status by the routing layer.
var (
	// ErrNodeExists indicates a node ID was added twice.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeNotFound indicates a referenced node is not in the topology.
	ErrNodeNotFound = errors.New("node not found")
	// ErrLinkExists indicates a link between the same endpoints was added twice.
	ErrLinkExists = errors.New("link already exists")
	// ErrLinkNotFound indicates a path traverses a link the topology does not have.
	ErrLinkNotFound = errors.New("link not found")
	// ErrSlotOutOfRange indicates a slot window outside [0, slotsPerLink).
	ErrSlotOutOfRange = errors.New("slot window out of range")
	// ErrSlotOccupied indicates an allocation over a slot that is already taken.
	ErrSlotOccupied = errors.New("slot already occupied")
	// ErrNoPathTable indicates a route lookup for a src/dst pair that no
	// precomputed table covers. This is a scenario configuration error,
	// not resource exhaustion, and is never silently swallowed.
	ErrNoPathTable = errors.New("no precomputed path table entry")
	// ErrTableNotReady indicates a lookup before PrecomputePaths ran.
	ErrTableNotReady = errors.New("path tables not precomputed")
)
