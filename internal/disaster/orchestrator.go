// Package disaster drives the failure lifecycle of a simulated
// disaster: links move Normal -> AboutToFail -> Failed -> Normal, and
// every accepted request caught on a failing link is torn down and
// rerouted through its ISP's currently active policy.
package disaster

import (
	"context"
	"sort"
	"time"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/logging"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/routing"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/telemetry"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/timectrl"
)

// ActivePolicyFunc resolves the routing policy an ISP is currently
// operating under. Migration control swaps what this returns as
// reaction times elapse, so a reroute triggered late in the disaster
// may already go through the disaster policy.
type ActivePolicyFunc func(ispID int) *routing.Policy

// Orchestrator schedules and executes one disaster event against the
// shared topology.
type Orchestrator struct {
	topo         *core.Topology
	sched        timectrl.Scheduler
	registry     *telemetry.Registry
	activePolicy ActivePolicyFunc
	log          logging.Logger

	event *model.DisasterEvent

	// OnReroute, when set, is invoked once per reroute attempt.
	OnReroute func()

	// touched tracks every link whose flags this disaster changed, so
	// restoration clears exactly those.
	touched map[string]*core.Link
}

// NewOrchestrator wires an orchestrator for one disaster event. A nil
// logger is replaced by a noop.
func NewOrchestrator(topo *core.Topology, sched timectrl.Scheduler, registry *telemetry.Registry, event *model.DisasterEvent, activePolicy ActivePolicyFunc, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Noop()
	}
	return &Orchestrator{
		topo:         topo,
		sched:        sched,
		registry:     registry,
		activePolicy: activePolicy,
		log:          log,
		event:        event,
		touched:      make(map[string]*core.Link),
	}
}

// Arm schedules the whole lifecycle on the event queue, relative to
// the run origin: onset at origin+Start, one activation per target at
// its offset, and a single restoration at origin+Start+Duration.
func (o *Orchestrator) Arm(ctx context.Context, origin time.Time) {
	if o.event == nil {
		return
	}
	start := origin.Add(o.event.Start)

	o.sched.Schedule(start, func() { o.begin(ctx) })

	acts := append([]model.Activation(nil), o.event.Activations...)
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].Offset < acts[j].Offset })
	for _, act := range acts {
		o.sched.Schedule(start.Add(act.Offset), func() { o.fire(ctx, act) })
	}

	o.sched.Schedule(origin.Add(o.event.End()), func() { o.finish(ctx) })
}

// begin marks every targeted link about-to-fail. Disaster-aware
// policies start steering around them from this instant.
func (o *Orchestrator) begin(ctx context.Context) {
	for _, act := range o.event.Activations {
		for _, l := range o.targetLinks(ctx, act) {
			l.AboutToFail = true
			o.touched[l.Key()] = l
		}
	}
	o.log.Info(ctx, "disaster onset",
		logging.String("epicenter", o.event.Epicenter),
		logging.Int("activations", len(o.event.Activations)))
}

// fire fails every link of one activation at once. All links are
// marked Failed before any reroute runs, so a node failure never
// reroutes traffic over a sibling link dying at the same instant.
// Already-failed links are skipped so overlapping activations compose.
func (o *Orchestrator) fire(ctx context.Context, act model.Activation) {
	var failed []*core.Link
	for _, l := range o.targetLinks(ctx, act) {
		if l.Failed {
			continue
		}
		l.Failed = true
		o.touched[l.Key()] = l
		failed = append(failed, l)
	}
	if len(failed) == 0 {
		return
	}
	o.rerouteAffected(ctx, failed)
}

// targetLinks resolves an activation to concrete links: a node target
// means every incident link, a link target just the one.
func (o *Orchestrator) targetLinks(ctx context.Context, act model.Activation) []*core.Link {
	switch act.Kind {
	case model.TargetNode:
		links := o.topo.IncidentLinks(act.Node)
		if len(links) == 0 {
			o.log.Warn(ctx, "disaster target node has no links", logging.String("node", act.Node))
		}
		return links
	case model.TargetLink:
		l, ok := o.topo.Link(act.LinkA, act.LinkB)
		if !ok {
			o.log.Warn(ctx, "disaster target link not in topology",
				logging.String("a", act.LinkA), logging.String("b", act.LinkB))
			return nil
		}
		return []*core.Link{l}
	default:
		o.log.Warn(ctx, "unknown disaster target kind", logging.String("kind", string(act.Kind)))
		return nil
	}
}

// rerouteAffected tears down and reroutes every request currently
// holding resources across any of the just-failed links. Requests are
// visited in registration order, keeping replays deterministic.
func (o *Orchestrator) rerouteAffected(ctx context.Context, failed []*core.Link) {
	now := o.sched.Now()
	affected := 0
	for _, req := range o.registry.Requests() {
		if req.Status != model.StatusAccepted || req.AffectedByDisaster {
			continue
		}
		if !req.HoldsResourcesAt(now) || !pathUsesAnyLink(req.Path, failed) {
			continue
		}
		o.tearDownAndReroute(ctx, req)
		affected++
	}
	keys := make([]string, 0, len(failed))
	for _, l := range failed {
		keys = append(keys, l.Key())
	}
	o.log.Info(ctx, "links failed",
		logging.Any("links", keys),
		logging.Int("affected_requests", affected))
}

func (o *Orchestrator) tearDownAndReroute(ctx context.Context, req *model.Request) {
	if req.DeallocTimerID != "" {
		o.sched.Cancel(req.DeallocTimerID)
		req.DeallocTimerID = ""
	}
	if err := o.topo.Deallocate(req.Path, req.SlotStart, req.SlotEnd); err != nil {
		o.log.Error(ctx, "release on failure failed",
			logging.Int64("request_id", req.ID),
			logging.String("error", err.Error()))
	}
	req.AffectedByDisaster = true

	pol := o.activePolicy(req.SrcISP)
	if pol == nil {
		o.log.Error(ctx, "no active policy for affected request",
			logging.Int64("request_id", req.ID),
			logging.Int("isp", req.SrcISP))
		return
	}
	if o.OnReroute != nil {
		o.OnReroute()
	}
	accepted, err := pol.Reroute(ctx, req)
	if err != nil {
		o.log.Error(ctx, "reroute failed",
			logging.Int64("request_id", req.ID),
			logging.String("error", err.Error()))
		return
	}
	o.log.Debug(ctx, "request rerouted",
		logging.Int64("request_id", req.ID),
		logging.Bool("accepted", accepted))
}

// finish restores every link this disaster touched and declares the
// event over. Routing state is back to normal immediately.
func (o *Orchestrator) finish(ctx context.Context) {
	for _, l := range o.touched {
		l.Failed = false
		l.AboutToFail = false
	}
	o.log.Info(ctx, "disaster over",
		logging.String("epicenter", o.event.Epicenter),
		logging.Int("links_restored", len(o.touched)))
	o.touched = make(map[string]*core.Link)
}

func pathUsesAnyLink(path []string, links []*core.Link) bool {
	for i := 0; i+1 < len(path); i++ {
		key := core.LinkKey(path[i], path[i+1])
		for _, l := range links {
			if l.Key() == key {
				return true
			}
		}
	}
	return false
}
