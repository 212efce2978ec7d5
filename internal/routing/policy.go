package routing

import (
	"context"
	"fmt"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/logging"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/telemetry"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/timectrl"
)

// Engine bundles the shared dependencies every routing policy works
// against: the spectrum topology, the per-ISP path catalog, the event
// scheduler (for block times and deallocation timers), and the run's
// registry.
type Engine struct {
	Topo     *core.Topology
	Catalog  *Catalog
	Sched    timectrl.Scheduler
	Registry *telemetry.Registry
	Log      logging.Logger
}

// NewEngine wires a routing engine. A nil logger is replaced by a noop.
func NewEngine(topo *core.Topology, catalog *Catalog, sched timectrl.Scheduler, registry *telemetry.Registry, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	return &Engine{Topo: topo, Catalog: catalog, Sched: sched, Registry: registry, Log: log}
}

// Policy is one tagged variant of the closed routing-policy set. All
// variants share the same pipeline (candidate table selection,
// operational filtering, contiguous-window search); the tag only
// switches the table source, the subnet constraint, and the fit rule.
type Policy struct {
	Kind model.PolicyKind
	// ISP is the policy's owning provider, consulted for subnet
	// membership and the per-ISP tables.
	ISP *model.ISP

	engine *Engine
}

// PolicyFor creates the policy variant bound to an ISP.
func (e *Engine) PolicyFor(kind model.PolicyKind, isp *model.ISP) (*Policy, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown routing policy %q", kind)
	}
	return &Policy{Kind: kind, ISP: isp, engine: e}, nil
}

// Route attempts to admit the request: pick a candidate path and a
// contiguous slot window, reserve it on every link of the path, and
// arm the deallocation timer. Resource exhaustion is never an error;
// the request transitions to Blocked and accepted is false. The only
// error case is a request whose endpoints no precomputed table covers,
// which is a scenario configuration fault and surfaces upward.
func (p *Policy) Route(ctx context.Context, req *model.Request) (bool, error) {
	return p.route(ctx, req)
}

// Reroute is Route after first snapshotting the request's pre-reroute
// attribute set for audit. Disaster handling calls it on requests
// whose slots were just torn down.
func (p *Policy) Reroute(ctx context.Context, req *model.Request) (bool, error) {
	req.PreReroute = req.Snapshot()
	p.engine.Registry.MarkReroute()
	return p.route(ctx, req)
}

func (p *Policy) route(ctx context.Context, req *model.Request) (bool, error) {
	e := p.engine

	candidates, err := p.candidatePaths(req)
	if err != nil {
		return false, err
	}

	disasterAware := p.Kind == model.PolicyDisasterAware || p.Kind == model.PolicyWeightedSubnetDisasterAware
	subnetBound := p.Kind == model.PolicySubnet || p.Kind == model.PolicyWeightedSubnetDisasterAware

	viable := candidates[:0:0]
	for _, cand := range candidates {
		if !e.Topo.IsPathOperational(cand.Nodes) {
			continue
		}
		if disasterAware && !e.Topo.CanUseAboutToFailPath(cand.Nodes) {
			continue
		}
		if subnetBound && !p.insideSubnet(cand.Nodes) {
			continue
		}
		viable = append(viable, cand)
	}

	var accepted bool
	if p.Kind == model.PolicyBestFit {
		accepted, err = p.allocateBestFit(ctx, req, viable)
	} else {
		accepted, err = p.allocateFirstFit(ctx, req, viable)
	}
	if err != nil {
		return false, err
	}
	if accepted {
		return true, nil
	}

	p.block(ctx, req)
	return false, nil
}

// candidatePaths selects the table the variant routes from. Missing
// entries are configuration errors; an empty candidate list is the
// recoverable "no path" case and leads to Blocked.
func (p *Policy) candidatePaths(req *model.Request) ([]core.CandidatePath, error) {
	e := p.engine
	switch p.Kind {
	case model.PolicyFirstFit, model.PolicyBestFit:
		return e.Topo.PathsBetween(req.Src, req.Dst)
	case model.PolicySubnet:
		if paths, ok := e.Catalog.DisasterPaths(req.SrcISP, req.Src, req.Dst); ok {
			return paths, nil
		}
		return e.Catalog.InternalPaths(req.SrcISP, req.Src, req.Dst)
	case model.PolicyDisasterAware:
		if paths, ok := e.Topo.DisasterPathsBetween(req.Src, req.Dst); ok {
			return paths, nil
		}
		return e.Topo.PathsBetween(req.Src, req.Dst)
	case model.PolicyWeightedSubnetDisasterAware:
		return e.Catalog.WeightedPaths(req.SrcISP, req.Src, req.Dst)
	default:
		return nil, fmt.Errorf("unknown routing policy %q", p.Kind)
	}
}

func (p *Policy) insideSubnet(path []string) bool {
	if p.ISP == nil {
		return false
	}
	for _, n := range path {
		if !p.ISP.HasNode(n) {
			return false
		}
	}
	return true
}

// allocateFirstFit accepts the first candidate path with a window wide
// enough, allocating at the start of the first sufficient run.
func (p *Policy) allocateFirstFit(ctx context.Context, req *model.Request, candidates []core.CandidatePath) (bool, error) {
	for _, cand := range candidates {
		needed := p.engine.Topo.SlotsNeeded(req.Bandwidth, cand.DistanceKm)
		runs := freeRuns(p.engine.Topo, cand.Nodes)
		if start, ok := firstFit(runs, needed); ok {
			if err := p.accept(ctx, req, cand, start, start+needed-1); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// allocateBestFit evaluates every candidate path fully and takes the
// run whose size is closest to (but at least) the demand, preferring
// an exact match. Earlier paths win ties.
func (p *Policy) allocateBestFit(ctx context.Context, req *model.Request, candidates []core.CandidatePath) (bool, error) {
	type fit struct {
		cand   core.CandidatePath
		run    slotRun
		needed int
	}
	var best *fit
	for _, cand := range candidates {
		needed := p.engine.Topo.SlotsNeeded(req.Bandwidth, cand.DistanceKm)
		run, ok := bestRun(freeRuns(p.engine.Topo, cand.Nodes), needed)
		if !ok {
			continue
		}
		slack := run.size - needed
		if best == nil || slack < best.run.size-best.needed {
			f := fit{cand: cand, run: run, needed: needed}
			best = &f
			if slack == 0 {
				break
			}
		}
	}
	if best == nil {
		return false, nil
	}
	if err := p.accept(ctx, req, best.cand, best.run.start, best.run.start+best.needed-1); err != nil {
		return false, err
	}
	return true, nil
}

// accept reserves the window, stamps the allocation on the request,
// and arms the deallocation timer at creation + holding time (so a
// rerouted request keeps its original deadline).
func (p *Policy) accept(ctx context.Context, req *model.Request, cand core.CandidatePath, start, end int) error {
	e := p.engine
	if err := e.Topo.Allocate(cand.Nodes, start, end); err != nil {
		// The window was computed from the live bitmaps a moment ago;
		// failing here means the scan and the bitmaps disagree.
		return fmt.Errorf("routing: scan/allocate mismatch: %w", err)
	}

	req.Status = model.StatusAccepted
	req.Path = append([]string(nil), cand.Nodes...)
	req.SlotStart = start
	req.SlotEnd = end
	req.DistanceKm = cand.DistanceKm
	req.DeallocAt = req.CreatedAt.Add(req.HoldingTime)

	path := req.Path
	req.DeallocTimerID = e.Sched.Schedule(req.DeallocAt, func() {
		req.DeallocTimerID = ""
		// Idempotent: a disaster teardown may already have freed it.
		if err := e.Topo.Deallocate(path, start, end); err != nil {
			e.Log.Error(ctx, "deallocate on expiry failed",
				logging.Int64("request_id", req.ID),
				logging.String("error", err.Error()))
		}
	})

	e.Registry.MarkAccepted()
	e.Log.Debug(ctx, "request accepted",
		logging.Int64("request_id", req.ID),
		logging.String("policy", string(p.Kind)),
		logging.Int("slot_start", start),
		logging.Int("slot_end", end),
		logging.Int("path_len", len(req.Path)))
	return nil
}

// block transitions the request to Blocked at the current simulation
// instant, preserving its creation time.
func (p *Policy) block(ctx context.Context, req *model.Request) {
	req.Status = model.StatusBlocked
	req.BlockedAt = p.engine.Sched.Now()
	req.ClearAllocation()
	p.engine.Registry.MarkBlocked()
	p.engine.Log.Debug(ctx, "request blocked",
		logging.Int64("request_id", req.ID),
		logging.String("policy", string(p.Kind)))
}
