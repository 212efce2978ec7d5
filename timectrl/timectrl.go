package timectrl

import (
	"container/heap"
	"fmt"
	"sync"
	"time"
)

// SimClock is a read-only view of simulation time. Components that only
// need to stamp events with the current instant depend on this rather
// than on the full EventQueue.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Scheduler registers callbacks against future simulation instants.
// Every scheduled event returns a cancellation handle; cancelling an
// unknown or already-fired event is a no-op, so a timer racing with an
// early release is harmless.
type Scheduler interface {
	SimClock

	// Schedule registers f to run at simulation time 'at' and returns an
	// opaque event ID usable with Cancel. Events scheduled for the same
	// instant fire in insertion order.
	Schedule(at time.Time, f func()) (id string)

	// Cancel drops a previously scheduled event. No-op if the ID is
	// unknown or the event already ran.
	Cancel(id string)
}

// EventQueue is the single-threaded discrete-event scheduler driving a
// run. There is no real parallelism: callbacks run one at a time, in
// (time, insertion order), and "waiting" only ever means advancing the
// simulated clock to the next due event.
type EventQueue struct {
	mu      sync.Mutex
	now     time.Time
	counter uint64

	events eventHeap
	index  map[string]*event
}

type event struct {
	id        string
	when      time.Time
	seq       uint64
	f         func()
	cancelled bool

	// heapIndex is maintained by the heap interface methods.
	heapIndex int
}

// NewEventQueue creates an empty queue with its clock set to start.
func NewEventQueue(start time.Time) *EventQueue {
	return &EventQueue{
		now:   start,
		index: make(map[string]*event),
	}
}

// Now returns the current simulation time.
func (q *EventQueue) Now() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.now
}

// Schedule registers a callback to run at simulation time 'at'.
// Scheduling in the past is clamped to the current instant, preserving
// insertion order among same-time events.
func (q *EventQueue) Schedule(at time.Time, f func()) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if at.Before(q.now) {
		at = q.now
	}

	q.counter++
	ev := &event{
		id:   fmt.Sprintf("ev-%d", q.counter),
		when: at,
		seq:  q.counter,
		f:    f,
	}
	heap.Push(&q.events, ev)
	q.index[ev.id] = ev
	return ev.id
}

// Cancel marks a scheduled event as cancelled. The event stays in the
// heap and is skipped when it surfaces.
func (q *EventQueue) Cancel(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ev, ok := q.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(q.index, id)
}

// Len returns the number of scheduled (incl. cancelled-but-unpopped)
// events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.events.Len()
}

// Step pops and executes the next due event, advancing the clock to its
// instant. It returns false when the queue is empty.
func (q *EventQueue) Step() bool {
	for {
		q.mu.Lock()
		if q.events.Len() == 0 {
			q.mu.Unlock()
			return false
		}

		ev := heap.Pop(&q.events).(*event)
		if ev.cancelled {
			q.mu.Unlock()
			continue
		}
		delete(q.index, ev.id)
		if ev.when.After(q.now) {
			q.now = ev.when
		}
		f := ev.f
		q.mu.Unlock()

		// Run the callback outside the lock; it may schedule or cancel.
		if f != nil {
			f()
		}
		return true
	}
}

// Run drains the queue, executing every event in (time, insertion)
// order, and returns the final simulation time.
func (q *EventQueue) Run() time.Time {
	for q.Step() {
	}
	return q.Now()
}

// RunUntil executes events up to and including instant t, then advances
// the clock to t. Events scheduled after t remain queued.
func (q *EventQueue) RunUntil(t time.Time) {
	for {
		q.mu.Lock()
		if q.events.Len() == 0 || q.events[0].when.After(t) {
			if t.After(q.now) {
				q.now = t
			}
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
		q.Step()
	}
}

// eventHeap orders events by time, breaking ties by insertion sequence
// so same-instant events replay deterministically.
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*event)
	ev.heapIndex = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}
