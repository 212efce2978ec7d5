package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/timectrl"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newFeedback(q *timectrl.EventQueue) *Feedback {
	return NewFeedback(FeedbackConfig{
		Window:        10 * time.Second,
		Interval:      time.Second,
		MaxProportion: 1.1,
		PartitionA:    map[string]bool{"a1": true, "a2": true},
		PartitionB:    map[string]bool{"b1": true},
	}, q)
}

func TestIsExtraComponent(t *testing.T) {
	f := newFeedback(timectrl.NewEventQueue(epoch))

	assert.True(t, f.IsExtraComponent("a1", "b1"))
	assert.True(t, f.IsExtraComponent("b1", "a2"))
	assert.False(t, f.IsExtraComponent("a1", "a2"))
	assert.False(t, f.IsExtraComponent("b1", "b1"))
	assert.False(t, f.IsExtraComponent("a1", "elsewhere"))
}

func TestWindowSlidesViaScheduledDecrement(t *testing.T) {
	q := timectrl.NewEventQueue(epoch)
	f := newFeedback(q)

	f.RecordOutcome("a1", true)
	f.RecordOutcome("a1", false)

	acc, blk := f.GlobalCounts()
	assert.Equal(t, 1, acc)
	assert.Equal(t, 1, blk)

	// After W the matching decrements fire and the window empties.
	q.RunUntil(epoch.Add(11 * time.Second))
	acc, blk = f.GlobalCounts()
	assert.Equal(t, 0, acc)
	assert.Equal(t, 0, blk)
}

func TestNoSamplesMeansZeroProbability(t *testing.T) {
	f := newFeedback(timectrl.NewEventQueue(epoch))
	f.Sample()
	assert.Zero(t, f.BlockingProbability("a1"))
}

func TestOverperformingNodeGetsThrottled(t *testing.T) {
	q := timectrl.NewEventQueue(epoch)
	f := newFeedback(q)

	// a1 accepts everything; a2 is heavily blocked, dragging the
	// aggregate down so a1 sits far above the threshold.
	for i := 0; i < 10; i++ {
		f.RecordOutcome("a1", true)
		f.RecordOutcome("a2", false)
	}
	f.Sample()

	p := f.BlockingProbability("a1")
	assert.Greater(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
	assert.Zero(t, f.BlockingProbability("a2"))
}

func TestProbabilityMonotoneWhileRatioKeepsExceeding(t *testing.T) {
	q := timectrl.NewEventQueue(epoch)
	f := newFeedback(q)

	for i := 0; i < 10; i++ {
		f.RecordOutcome("a1", true)
		f.RecordOutcome("a2", false)
	}
	f.Sample()
	first := f.BlockingProbability("a1")
	require.Greater(t, first, 0.0)

	// The imbalance worsens; the next interval must not relax the valve.
	for i := 0; i < 5; i++ {
		f.RecordOutcome("a1", true)
		f.RecordOutcome("a2", false)
	}
	f.Sample()
	second := f.BlockingProbability("a1")
	assert.GreaterOrEqual(t, second, first)
}

func TestProbabilityDecaysOnceNodeDropsBelowThreshold(t *testing.T) {
	q := timectrl.NewEventQueue(epoch)
	f := newFeedback(q)

	for i := 0; i < 10; i++ {
		f.RecordOutcome("a1", true)
		f.RecordOutcome("a2", false)
	}
	f.Sample()
	raised := f.BlockingProbability("a1")
	require.Greater(t, raised, 0.0)

	// The valve bites: a1 now gets blocked while a2 recovers, pushing
	// a1 below the threshold, so the probability must shrink (by at
	// most 50% per interval).
	for i := 0; i < 30; i++ {
		f.RecordOutcome("a1", false)
		f.RecordOutcome("a2", true)
	}
	f.Sample()
	decayed := f.BlockingProbability("a1")
	assert.Less(t, decayed, raised)
	assert.GreaterOrEqual(t, decayed, raised*0.5)
}

func TestGlobalWindowEmptyResetsProbabilities(t *testing.T) {
	q := timectrl.NewEventQueue(epoch)
	f := newFeedback(q)

	for i := 0; i < 10; i++ {
		f.RecordOutcome("a1", true)
		f.RecordOutcome("a2", false)
	}
	f.Sample()
	require.Greater(t, f.BlockingProbability("a1"), 0.0)

	// Slide everything out of the window; no samples -> no pressure.
	q.RunUntil(epoch.Add(time.Minute))
	f.Sample()
	assert.Zero(t, f.BlockingProbability("a1"))
}
