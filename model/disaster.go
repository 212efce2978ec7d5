package model

import "time"

// TargetKind distinguishes disaster activations that take down a whole
// node from ones that take down a single link.
type TargetKind string

const (
	TargetNode TargetKind = "node"
	TargetLink TargetKind = "link"
)

// Activation is one scheduled element failure inside the disaster
// window. Offset is relative to the disaster start; activations are
// kept sorted ascending by offset.
type Activation struct {
	Kind TargetKind
	// Node is set for TargetNode activations.
	Node string
	// LinkA/LinkB are the endpoints for TargetLink activations.
	LinkA string
	LinkB string

	Offset time.Duration
}

// DisasterEvent is the scenario's geographically localized failure.
// Every activation is restored at Start+Duration; there is no separate
// restored state, restoration just clears the failure flags.
type DisasterEvent struct {
	// Start is the offset from simulation start at which the first
	// element can fail. The disaster is announced at simulation start,
	// which is what ISP reaction times are measured against.
	Start    time.Duration
	Duration time.Duration

	// Epicenter is the node whose removal defines the disaster-aware
	// path tables. Traffic originating or terminating at the epicenter
	// keeps the unrestricted tables.
	Epicenter string

	Activations []Activation
}

// End returns the offset from simulation start at which all failed
// elements are restored.
func (d *DisasterEvent) End() time.Duration {
	return d.Start + d.Duration
}
