package core

import (
	"fmt"
	"math"
	"sort"
)

// Topology owns the network graph, the per-link spectrum bitmaps, the
// failure state, and the precomputed path tables. All spectrum
// mutations go through Allocate/Deallocate so the contiguity and
// idempotence invariants hold in one place.
type Topology struct {
	slotsPerLink int
	// slotCapacity is the bandwidth one slot carries at modulation
	// factor 1, in Gb/s.
	slotCapacity float64

	nodes map[string]bool
	links map[string]*Link

	// disasterNode is the epicenter used both for the disaster-aware
	// path tables and for the about-to-fail endpoint exemption.
	disasterNode string

	plainTable    PathTable
	disasterTable PathTable
}

// NewTopology creates an empty topology. slotsPerLink is the spectrum
// grid size N; slotCapacity the Gb/s one slot carries at modulation 1.
func NewTopology(slotsPerLink int, slotCapacity float64) *Topology {
	return &Topology{
		slotsPerLink: slotsPerLink,
		slotCapacity: slotCapacity,
		nodes:        make(map[string]bool),
		links:        make(map[string]*Link),
	}
}

// SlotsPerLink returns the spectrum grid size N.
func (t *Topology) SlotsPerLink() int { return t.slotsPerLink }

// SlotCapacity returns the Gb/s carried by one slot at modulation 1.
func (t *Topology) SlotCapacity() float64 { return t.slotCapacity }

// AddNode registers a node. Duplicate IDs are a configuration error.
func (t *Topology) AddNode(id string) error {
	if id == "" {
		return fmt.Errorf("add node: empty ID")
	}
	if t.nodes[id] {
		return fmt.Errorf("add node %q: %w", id, ErrNodeExists)
	}
	t.nodes[id] = true
	return nil
}

// HasNode reports whether id is a known node.
func (t *Topology) HasNode(id string) bool { return t.nodes[id] }

// Nodes returns all node IDs in sorted order.
func (t *Topology) Nodes() []string {
	ids := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddLink creates the undirected span between a and b. Both endpoints must already
// exist.
func (t *Topology) AddLink(a, b string, distanceKm float64) (*Link, error) {
	if !t.nodes[a] {
		return nil, fmt.Errorf("add link %s-%s: %q: %w", a, b, a, ErrNodeNotFound)
	}
	if !t.nodes[b] {
		return nil, fmt.Errorf("add link %s-%s: %q: %w", a, b, b, ErrNodeNotFound)
	}
	if a == b {
		return nil, fmt.Errorf("add link: self-loop on %q", a)
	}
	key := LinkKey(a, b)
	if _, exists := t.links[key]; exists {
		return nil, fmt.Errorf("add link %s-%s: %w", a, b, ErrLinkExists)
	}
	l := newLink(a, b, distanceKm, t.slotsPerLink)
	t.links[key] = l
	return l, nil
}

// Link returns the link between a and b, if any.
func (t *Topology) Link(a, b string) (*Link, bool) {
	l, ok := t.links[LinkKey(a, b)]
	return l, ok
}

// Links returns all links ordered by canonical key.
func (t *Topology) Links() []*Link {
	keys := make([]string, 0, len(t.links))
	for k := range t.links {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Link, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.links[k])
	}
	return out
}

// IncidentLinks returns every link touching node, ordered by key.
func (t *Topology) IncidentLinks(node string) []*Link {
	var out []*Link
	for _, l := range t.Links() {
		if l.A == node || l.B == node {
			out = append(out, l)
		}
	}
	return out
}

// pathLinks resolves the ordered node list into its links.
func (t *Topology) pathLinks(path []string) ([]*Link, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("path %v: need at least two nodes", path)
	}
	links := make([]*Link, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		l, ok := t.Link(path[i], path[i+1])
		if !ok {
			return nil, fmt.Errorf("path hop %s-%s: %w", path[i], path[i+1], ErrLinkNotFound)
		}
		links = append(links, l)
	}
	return links, nil
}

// Allocate marks slots [start, end] occupied on every link of path.
// It refuses windows that are out of range or collide with an existing
// allocation, so a policy bug cannot corrupt the bitmaps.
func (t *Topology) Allocate(path []string, start, end int) error {
	if start < 0 || end >= t.slotsPerLink || start > end {
		return fmt.Errorf("allocate [%d,%d]: %w", start, end, ErrSlotOutOfRange)
	}
	links, err := t.pathLinks(path)
	if err != nil {
		return err
	}
	for _, l := range links {
		if !l.windowFree(start, end) {
			return fmt.Errorf("allocate [%d,%d] on %s: %w", start, end, l.Key(), ErrSlotOccupied)
		}
	}
	for _, l := range links {
		l.occupy(start, end)
	}
	return nil
}

// Deallocate clears slots [start, end] on every link of path. It is
// idempotent: disaster-triggered early release and the normal
// holding-time release may both target the same window, and the second
// call must be a no-op.
func (t *Topology) Deallocate(path []string, start, end int) error {
	if start < 0 || end >= t.slotsPerLink || start > end {
		return fmt.Errorf("deallocate [%d,%d]: %w", start, end, ErrSlotOutOfRange)
	}
	links, err := t.pathLinks(path)
	if err != nil {
		return err
	}
	for _, l := range links {
		l.clear(start, end)
	}
	return nil
}

// IsPathOperational reports whether no traversed link is failed.
// Unknown hops count as non-operational.
func (t *Topology) IsPathOperational(path []string) bool {
	links, err := t.pathLinks(path)
	if err != nil {
		return false
	}
	for _, l := range links {
		if l.Failed {
			return false
		}
	}
	return true
}

// CanUseAboutToFailPath reports whether a path whose links may be
// flagged about-to-fail is still admissible. Paths with no such links
// always pass; otherwise only traffic terminating at the node that is
// about to fail is allowed through, so disaster-node-adjacent traffic
// is not pre-emptively denied.
func (t *Topology) CanUseAboutToFailPath(path []string) bool {
	links, err := t.pathLinks(path)
	if err != nil {
		return false
	}
	marked := false
	for _, l := range links {
		if l.AboutToFail {
			marked = true
			break
		}
	}
	if !marked {
		return true
	}
	if t.disasterNode == "" {
		return false
	}
	return path[0] == t.disasterNode || path[len(path)-1] == t.disasterNode
}

// SetDisasterNode designates the failure epicenter consulted by the
// about-to-fail exemption and the disaster-aware tables.
func (t *Topology) SetDisasterNode(node string) {
	t.disasterNode = node
}

// DisasterNode returns the designated epicenter, "" if none.
func (t *Topology) DisasterNode() string { return t.disasterNode }

// ModulationFactor is the spectral-efficiency step function of path
// distance: <=500 km -> 4, <=1000 -> 3, <=2000 -> 2, beyond -> 1.
func ModulationFactor(distanceKm float64) int {
	switch {
	case distanceKm <= 500:
		return 4
	case distanceKm <= 1000:
		return 3
	case distanceKm <= 2000:
		return 2
	default:
		return 1
	}
}

// SlotsNeeded converts a bandwidth demand into a contiguous slot count
// for a path of the given length.
func (t *Topology) SlotsNeeded(bandwidth, distanceKm float64) int {
	perSlot := float64(ModulationFactor(distanceKm)) * t.slotCapacity
	return int(math.Ceil(bandwidth / perSlot))
}
