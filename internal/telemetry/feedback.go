package telemetry

import (
	"time"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/timectrl"
)

// FeedbackConfig tunes the sliding-window availability controller.
type FeedbackConfig struct {
	// Window is W, the trailing sample horizon per node.
	Window time.Duration
	// Interval is T, how often probabilities are recomputed.
	Interval time.Duration
	// MaxProportion is the allowed excess of a node's availability over
	// the global aggregate before artificial blocking kicks in.
	MaxProportion float64
	// PartitionA and PartitionB are the two node sets whose crossing
	// traffic counts as extra-component and is subject to the valve.
	PartitionA map[string]bool
	PartitionB map[string]bool
}

// windowCounts is one sliding accept/block sample window.
type windowCounts struct {
	accepted int
	blocked  int
}

func (w *windowCounts) total() int { return w.accepted + w.blocked }

// ratio returns accepted/(accepted+blocked) and whether any sample
// exists. An undefined ratio is explicitly treated as "no pressure":
// callers map it to zero blocking probability.
func (w *windowCounts) ratio() (float64, bool) {
	t := w.total()
	if t == 0 {
		return 0, false
	}
	return float64(w.accepted) / float64(t), true
}

// Feedback is the artificial-blocking controller: a backpressure valve
// that pre-emptively drops extra-component traffic at nodes whose
// windowed availability runs too far above the global aggregate. It
// never touches spectrum; a dropped request is blocked before routing.
type Feedback struct {
	cfg   FeedbackConfig
	sched timectrl.Scheduler

	nodes  map[string]*windowCounts
	global windowCounts

	probs map[string]float64
}

// NewFeedback creates a controller with zero counters and zero
// probabilities.
func NewFeedback(cfg FeedbackConfig, sched timectrl.Scheduler) *Feedback {
	return &Feedback{
		cfg:   cfg,
		sched: sched,
		nodes: make(map[string]*windowCounts),
		probs: make(map[string]float64),
	}
}

// Enabled reports whether the scenario defines both partitions.
func (f *Feedback) Enabled() bool {
	return len(f.cfg.PartitionA) > 0 && len(f.cfg.PartitionB) > 0
}

// IsExtraComponent reports whether src->dst traffic crosses the two
// partitions (in either direction).
func (f *Feedback) IsExtraComponent(src, dst string) bool {
	if !f.Enabled() {
		return false
	}
	return (f.cfg.PartitionA[src] && f.cfg.PartitionB[dst]) ||
		(f.cfg.PartitionB[src] && f.cfg.PartitionA[dst])
}

// RecordOutcome feeds one extra-component outcome, keyed by the
// request's source node, into the node's and the global window. A
// matching decrement is scheduled W later, so the window slides.
func (f *Feedback) RecordOutcome(srcNode string, accepted bool) {
	w := f.nodes[srcNode]
	if w == nil {
		w = &windowCounts{}
		f.nodes[srcNode] = w
	}
	if accepted {
		w.accepted++
		f.global.accepted++
	} else {
		w.blocked++
		f.global.blocked++
	}
	f.sched.Schedule(f.sched.Now().Add(f.cfg.Window), func() {
		if accepted {
			w.accepted--
			f.global.accepted--
		} else {
			w.blocked--
			f.global.blocked--
		}
	})
}

// BlockingProbability returns the node's current artificial-blocking
// probability in [0, 1].
func (f *Feedback) BlockingProbability(node string) float64 {
	return f.probs[node]
}

// GlobalCounts returns the aggregate extra-component accepted/blocked
// counters currently inside the window.
func (f *Feedback) GlobalCounts() (accepted, blocked int) {
	return f.global.accepted, f.global.blocked
}

// Sample recomputes every node's artificial-blocking probability from
// the current windows. Called every Interval by the driver's sampler.
//
// A node whose availability ratio exceeds globalRatio*MaxProportion is
// throttled harder; one at or below the threshold decays toward zero
// by up to 50% per interval, proportional to how far below the
// threshold it sits. Nodes (or a globe) without samples mean zero
// probability.
func (f *Feedback) Sample() {
	globalRatio, ok := f.global.ratio()
	if !ok || globalRatio <= 0 {
		for n := range f.probs {
			f.probs[n] = 0
		}
		return
	}
	threshold := globalRatio * f.cfg.MaxProportion

	for node, w := range f.nodes {
		nodeRatio, ok := w.ratio()
		if !ok {
			f.probs[node] = 0
			continue
		}
		prev := f.probs[node]
		if threshold > 0 && nodeRatio > threshold {
			p := clamp01(1-threshold/nodeRatio) * (1 + prev)
			f.probs[node] = clamp01(p)
			continue
		}
		if prev == 0 {
			continue
		}
		deficit := 1.0
		if threshold > 0 {
			deficit = clamp01((threshold - nodeRatio) / threshold)
		}
		f.probs[node] = prev * (1 - 0.5*deficit)
	}
}

// Interval returns the sampling period T.
func (f *Feedback) Interval() time.Duration { return f.cfg.Interval }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
