package disaster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/routing"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/telemetry"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/timectrl"
)

var testStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

type ringFixture struct {
	topo     *core.Topology
	queue    *timectrl.EventQueue
	registry *telemetry.Registry
	policy   *routing.Policy
}

// newRing builds the four-node ring n1-n2-n3-n4-n1 with one first-fit
// policy serving every ISP.
func newRing(t *testing.T) *ringFixture {
	t.Helper()
	topo := core.NewTopology(10, 12.5)
	for _, n := range []string{"n1", "n2", "n3", "n4"} {
		require.NoError(t, topo.AddNode(n))
	}
	for _, l := range [][2]string{{"n1", "n2"}, {"n2", "n3"}, {"n3", "n4"}, {"n4", "n1"}} {
		_, err := topo.AddLink(l[0], l[1], 100)
		require.NoError(t, err)
	}
	require.NoError(t, topo.PrecomputePaths(2))

	queue := timectrl.NewEventQueue(testStart)
	cat, err := routing.NewCatalog(topo, nil, 2, routing.WeightConfig{})
	require.NoError(t, err)
	registry := telemetry.NewRegistry()
	eng := routing.NewEngine(topo, cat, queue, registry, nil)
	policy, err := eng.PolicyFor(model.PolicyFirstFit, nil)
	require.NoError(t, err)

	return &ringFixture{topo: topo, queue: queue, registry: registry, policy: policy}
}

func (f *ringFixture) resolver() ActivePolicyFunc {
	return func(int) *routing.Policy { return f.policy }
}

func (f *ringFixture) routeRequest(t *testing.T, id int64, src, dst string, holding time.Duration) *model.Request {
	t.Helper()
	req := &model.Request{
		ID:          id,
		Src:         src,
		Dst:         dst,
		Bandwidth:   25,
		HoldingTime: holding,
		CreatedAt:   testStart,
		SlotStart:   model.NoSlot,
		SlotEnd:     model.NoSlot,
	}
	require.NoError(t, f.registry.Register(req))
	accepted, err := f.policy.Route(context.Background(), req)
	require.NoError(t, err)
	require.True(t, accepted)
	return req
}

func linkEvent(a, b string, start, duration, offset time.Duration) *model.DisasterEvent {
	return &model.DisasterEvent{
		Start:    start,
		Duration: duration,
		Activations: []model.Activation{
			{Kind: model.TargetLink, LinkA: a, LinkB: b, Offset: offset},
		},
	}
}

func TestLinkFailureAffectsOnlyRequestsOnThatLink(t *testing.T) {
	f := newRing(t)

	r12 := f.routeRequest(t, 1, "n1", "n2", time.Hour)
	r23 := f.routeRequest(t, 2, "n2", "n3", time.Hour)
	r34 := f.routeRequest(t, 3, "n3", "n4", time.Hour)
	r41 := f.routeRequest(t, 4, "n4", "n1", time.Hour)

	event := linkEvent("n2", "n3", 10*time.Minute, 30*time.Minute, 5*time.Minute)
	o := NewOrchestrator(f.topo, f.queue, f.registry, event, f.resolver(), nil)
	o.Arm(context.Background(), testStart)

	f.queue.RunUntil(testStart.Add(20 * time.Minute))

	assert.True(t, r23.AffectedByDisaster)
	assert.Equal(t, model.StatusAccepted, r23.Status)
	assert.Equal(t, []string{"n2", "n1", "n4", "n3"}, r23.Path)
	require.NotNil(t, r23.PreReroute)
	assert.Equal(t, []string{"n2", "n3"}, r23.PreReroute.Path)
	assert.Equal(t, testStart.Add(time.Hour), r23.DeallocAt)

	for _, other := range []*model.Request{r12, r34, r41} {
		assert.False(t, other.AffectedByDisaster)
		assert.Len(t, other.Path, 2)
	}

	link, _ := f.topo.Link("n2", "n3")
	assert.True(t, link.Failed)
}

func TestExpiredRequestsAreNotRerouted(t *testing.T) {
	f := newRing(t)

	// Expires at +1m, well before the failure at +15m.
	short := f.routeRequest(t, 1, "n2", "n3", time.Minute)

	event := linkEvent("n2", "n3", 10*time.Minute, 30*time.Minute, 5*time.Minute)
	o := NewOrchestrator(f.topo, f.queue, f.registry, event, f.resolver(), nil)
	o.Arm(context.Background(), testStart)

	f.queue.RunUntil(testStart.Add(20 * time.Minute))

	assert.False(t, short.AffectedByDisaster)
	assert.Nil(t, short.PreReroute)
}

func TestOnsetMarksTargetsAboutToFail(t *testing.T) {
	f := newRing(t)

	event := linkEvent("n2", "n3", 10*time.Minute, 30*time.Minute, 5*time.Minute)
	o := NewOrchestrator(f.topo, f.queue, f.registry, event, f.resolver(), nil)
	o.Arm(context.Background(), testStart)

	// Past onset, before the activation offset.
	f.queue.RunUntil(testStart.Add(12 * time.Minute))

	link, _ := f.topo.Link("n2", "n3")
	assert.True(t, link.AboutToFail)
	assert.False(t, link.Failed)
}

func TestNodeFailureFailsAllIncidentLinks(t *testing.T) {
	f := newRing(t)

	r12 := f.routeRequest(t, 1, "n1", "n2", time.Hour)
	r34 := f.routeRequest(t, 2, "n3", "n4", time.Hour)

	event := &model.DisasterEvent{
		Start:     10 * time.Minute,
		Duration:  30 * time.Minute,
		Epicenter: "n2",
		Activations: []model.Activation{
			{Kind: model.TargetNode, Node: "n2", Offset: 5 * time.Minute},
		},
	}
	o := NewOrchestrator(f.topo, f.queue, f.registry, event, f.resolver(), nil)
	o.Arm(context.Background(), testStart)

	f.queue.RunUntil(testStart.Add(20 * time.Minute))

	n12, _ := f.topo.Link("n1", "n2")
	n23, _ := f.topo.Link("n2", "n3")
	assert.True(t, n12.Failed)
	assert.True(t, n23.Failed)

	// Every route to n2 is gone, so the reroute blocks.
	assert.True(t, r12.AffectedByDisaster)
	assert.Equal(t, model.StatusBlocked, r12.Status)

	assert.False(t, r34.AffectedByDisaster)
	assert.Equal(t, model.StatusAccepted, r34.Status)
}

func TestRestorationClearsAllTouchedFlags(t *testing.T) {
	f := newRing(t)

	event := linkEvent("n2", "n3", 10*time.Minute, 30*time.Minute, 5*time.Minute)
	o := NewOrchestrator(f.topo, f.queue, f.registry, event, f.resolver(), nil)
	o.Arm(context.Background(), testStart)

	f.queue.RunUntil(testStart.Add(2 * time.Hour))

	link, _ := f.topo.Link("n2", "n3")
	assert.False(t, link.Failed)
	assert.False(t, link.AboutToFail)

	// Normal routing over the restored link works again.
	req := f.routeRequest(t, 10, "n2", "n3", time.Hour)
	assert.Equal(t, []string{"n2", "n3"}, req.Path)
}

func TestOverlappingActivationsAreIdempotent(t *testing.T) {
	f := newRing(t)

	r23 := f.routeRequest(t, 1, "n2", "n3", time.Hour)

	// The node activation fails n2-n3 first; the link activation must
	// then be a no-op rather than a second teardown.
	event := &model.DisasterEvent{
		Start:     10 * time.Minute,
		Duration:  30 * time.Minute,
		Epicenter: "n2",
		Activations: []model.Activation{
			{Kind: model.TargetNode, Node: "n2", Offset: 5 * time.Minute},
			{Kind: model.TargetLink, LinkA: "n2", LinkB: "n3", Offset: 6 * time.Minute},
		},
	}
	o := NewOrchestrator(f.topo, f.queue, f.registry, event, f.resolver(), nil)
	o.Arm(context.Background(), testStart)

	f.queue.RunUntil(testStart.Add(20 * time.Minute))

	assert.True(t, r23.AffectedByDisaster)
	_, _, rerouted := f.registry.OutcomeEvents()
	assert.Equal(t, 1, rerouted)
}
