package core

import "strings"

// Link is one undirected fiber span between two nodes. It owns the
// per-slot occupancy bitmap and the disaster failure flags. Occupancy
// is binary; a window allocated to a connection is marked across every
// link of the path at once, never partially.
type Link struct {
	A string
	B string
	// DistanceKm is the physical span length, the input to the
	// modulation-factor step function.
	DistanceKm float64

	// Failed is set while the disaster holds this link down.
	// AboutToFail marks links scheduled to fail in the current disaster
	// window; disaster-aware policies refuse such links except for
	// traffic terminating at the failing node itself.
	Failed      bool
	AboutToFail bool

	// OwnerISPs is the set of ISP IDs whose subnet contains this link.
	OwnerISPs map[int]bool

	slots []bool
}

func newLink(a, b string, distanceKm float64, slotCount int) *Link {
	return &Link{
		A:          a,
		B:          b,
		DistanceKm: distanceKm,
		OwnerISPs:  make(map[int]bool),
		slots:      make([]bool, slotCount),
	}
}

// LinkKey returns the canonical map key for an undirected link,
// independent of endpoint order.
func LinkKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// Key returns the link's canonical key.
func (l *Link) Key() string { return LinkKey(l.A, l.B) }

// Other returns the endpoint opposite to node, or "" when node is not
// an endpoint of this link.
func (l *Link) Other(node string) string {
	switch node {
	case l.A:
		return l.B
	case l.B:
		return l.A
	}
	return ""
}

// SlotFree reports whether slot i is unoccupied.
func (l *Link) SlotFree(i int) bool {
	return !l.slots[i]
}

// OccupiedSlots returns the number of occupied slots.
func (l *Link) OccupiedSlots() int {
	n := 0
	for _, taken := range l.slots {
		if taken {
			n++
		}
	}
	return n
}

func (l *Link) occupy(start, end int) {
	for i := start; i <= end; i++ {
		l.slots[i] = true
	}
}

func (l *Link) clear(start, end int) {
	for i := start; i <= end; i++ {
		l.slots[i] = false
	}
}

func (l *Link) windowFree(start, end int) bool {
	for i := start; i <= end; i++ {
		if l.slots[i] {
			return false
		}
	}
	return true
}
