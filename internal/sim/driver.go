// Package sim owns the end-to-end simulation run: it wires topology,
// routing policies, the disaster and migration timelines, and the
// feedback valve onto one event queue, drives request arrivals, and
// collects the output records. Everything a run touches hangs off the
// Driver; no process-wide state survives between runs.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/disaster"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/logging"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/migration"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/observability"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/routing"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/scenario"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/telemetry"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/timectrl"
)

// Option customises a Driver.
type Option func(*Driver)

// WithLogger attaches a structured logger; each run gets a run-scoped
// child with its run ID.
func WithLogger(log logging.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// WithCollector attaches Prometheus metrics.
func WithCollector(c *observability.SimCollector) Option {
	return func(d *Driver) { d.collector = c }
}

// WithOrigin overrides the simulated run origin. The default is the
// Unix epoch, keeping record timestamps deterministic.
func WithOrigin(t time.Time) Option {
	return func(d *Driver) { d.origin = t }
}

// Driver is the simulation context: one run's worth of wired
// components sharing a single event queue and a single seeded random
// source.
type Driver struct {
	scn       *scenario.Scenario
	origin    time.Time
	log       logging.Logger
	collector *observability.SimCollector

	runID    string
	queue    *timectrl.EventQueue
	topo     *core.Topology
	catalog  *routing.Catalog
	engine   *routing.Engine
	fleet    *migration.Fleet
	movers   []*migration.Controller
	orch     *disaster.Orchestrator
	registry *telemetry.Registry
	feedback *telemetry.Feedback
	rng      *rand.Rand

	nextID    int64
	remaining int
	fatal     error
}

// Result is the outcome of one completed run.
type Result struct {
	RunID   string
	Records []model.Record

	Created  int
	Accepted int
	Blocked  int
	Rerouted int

	// BlockingRate is blocked/created, in [0, 1].
	BlockingRate float64

	// MigrationCompletion maps ISP ID to migration progress percent.
	MigrationCompletion map[int]float64

	// SimulatedEnd is the simulated instant the queue drained at.
	SimulatedEnd time.Time
}

// New wires a driver from a materialized scenario: precomputes every
// path table, builds the policy fleet, and prepares the disaster and
// migration timelines. Configuration faults surface here, before any
// simulated time passes.
func New(scn *scenario.Scenario, opts ...Option) (*Driver, error) {
	if scn == nil {
		return nil, errors.New("sim: nil scenario")
	}
	d := &Driver{
		scn:    scn,
		origin: time.Unix(0, 0).UTC(),
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.runID = uuid.NewString()
	d.log = logging.WithRunLogger(d.log, d.runID)
	d.queue = timectrl.NewEventQueue(d.origin)
	d.topo = scn.Topology
	d.registry = telemetry.NewRegistry()
	d.rng = rand.New(rand.NewSource(scn.Seed))
	d.feedback = telemetry.NewFeedback(scn.Feedback, d.queue)

	epicenter := ""
	if scn.Disaster != nil {
		epicenter = scn.Disaster.Epicenter
	}
	if epicenter != "" {
		d.topo.SetDisasterNode(epicenter)
	}
	if err := d.topo.PrecomputePaths(scn.K); err != nil {
		return nil, err
	}
	if epicenter != "" {
		if err := d.topo.PrecomputeDisasterPaths(scn.K, epicenter); err != nil {
			return nil, err
		}
	}

	catalog, err := routing.NewCatalog(d.topo, scn.ISPs, scn.K, scn.Weights)
	if err != nil {
		return nil, err
	}
	if err := catalog.Precompute(); err != nil {
		return nil, err
	}
	d.catalog = catalog
	d.engine = routing.NewEngine(d.topo, catalog, d.queue, d.registry, d.log)

	fleet, err := migration.NewFleet(d.engine, scn.ISPs, scn.DefaultPolicy)
	if err != nil {
		return nil, err
	}
	d.fleet = fleet

	if scn.Disaster != nil {
		d.orch = disaster.NewOrchestrator(d.topo, d.queue, d.registry, scn.Disaster, fleet.ActivePolicy, d.log)
		d.orch.OnReroute = d.collector.ObserveReroute

		synthesizeMigration := len(scn.Requests) == 0
		for _, rt := range fleet.Runtimes() {
			if rt.ISP.Datacenter == nil {
				continue
			}
			ctl, err := migration.NewController(rt, d.queue, d.rng, scn.AvgBandwidth, synthesizeMigration, d.migrationFactory(), d.log)
			if err != nil {
				return nil, err
			}
			ctl.OnError = func(err error) { d.fail(context.Background(), err) }
			d.movers = append(d.movers, ctl)
		}
	}
	return d, nil
}

// RunID returns the run's UUID.
func (d *Driver) RunID() string { return d.runID }

// Run executes the whole simulation to queue exhaustion and returns
// the per-request records. The run is deterministic for a fixed
// scenario seed.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	ctx, span := otel.Tracer("simulator").Start(ctx, "simulation.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", d.runID),
		attribute.Int64("run.seed", d.scn.Seed),
	)

	d.log.Info(ctx, "run starting",
		logging.Int("nodes", len(d.topo.Nodes())),
		logging.Int("links", len(d.topo.Links())),
		logging.Int64("seed", d.scn.Seed))
	d.collector.SetTopologyCounts(len(d.topo.Nodes()), len(d.topo.Links()))

	// Arrivals go on the queue first: at a tied instant a routing
	// decision runs before the failure handling scheduled for the same
	// moment.
	d.scheduleArrivals(ctx)
	if d.orch != nil {
		d.orch.Arm(ctx, d.origin)
	}
	for _, ctl := range d.movers {
		ctl.Arm(ctx, d.origin, d.scn.Disaster)
	}
	if d.feedback.Enabled() {
		d.queue.Schedule(d.origin.Add(d.feedback.Interval()), func() { d.sampleLoop(ctx) })
	}

	end := d.queue.Run()
	if d.fatal != nil {
		span.RecordError(d.fatal)
		return nil, d.fatal
	}
	if err := d.registry.CheckClosed(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	created, accepted, blocked, _ := d.registry.Totals()
	_, _, rerouted := d.registry.OutcomeEvents()
	result := &Result{
		RunID:               d.runID,
		Records:             d.registry.Records(),
		Created:             created,
		Accepted:            accepted,
		Blocked:             blocked,
		Rerouted:            rerouted,
		MigrationCompletion: make(map[int]float64, len(d.movers)),
		SimulatedEnd:        end,
	}
	if created > 0 {
		result.BlockingRate = float64(blocked) / float64(created)
	}
	for _, ctl := range d.movers {
		pct := ctl.Completion()
		result.MigrationCompletion[ctl.ISP().ID] = pct
		d.collector.SetMigrationCompletion(ctl.ISP().ID, pct)
	}

	span.SetAttributes(
		attribute.Int("run.requests_created", created),
		attribute.Int("run.requests_accepted", accepted),
		attribute.Int("run.requests_blocked", blocked),
		attribute.Int("run.reroutes", rerouted),
	)
	d.log.Info(ctx, "run finished",
		logging.Int("created", created),
		logging.Int("accepted", accepted),
		logging.Int("blocked", blocked),
		logging.Int("rerouted", rerouted),
		logging.Float("blocking_rate", result.BlockingRate))
	return result, nil
}

// scheduleArrivals arms either the pre-generated arrival list or the
// synthetic Poisson arrival process.
func (d *Driver) scheduleArrivals(ctx context.Context) {
	if len(d.scn.Requests) > 0 {
		d.remaining = len(d.scn.Requests)
		for _, pr := range d.scn.Requests {
			d.queue.Schedule(d.origin.Add(pr.Offset), func() {
				d.remaining--
				d.dispatch(ctx, d.materialize(pr))
			})
		}
		return
	}
	d.remaining = d.scn.RequestCount
	d.queue.Schedule(d.origin.Add(d.arrivalGap()), func() { d.synthArrive(ctx) })
}

func (d *Driver) synthArrive(ctx context.Context) {
	if d.remaining <= 0 {
		return
	}
	d.remaining--
	d.dispatch(ctx, d.newSyntheticRequest())
	if d.remaining > 0 {
		d.queue.Schedule(d.queue.Now().Add(d.arrivalGap()), func() { d.synthArrive(ctx) })
	}
}

// dispatch admits one arrival: the feedback valve may drop it before
// routing; otherwise the owning ISP's active policy decides.
func (d *Driver) dispatch(ctx context.Context, req *model.Request) {
	if d.fatal != nil {
		return
	}
	if err := d.registry.Register(req); err != nil {
		d.fail(ctx, err)
		return
	}

	extra := d.feedback.IsExtraComponent(req.Src, req.Dst)
	if extra && d.rng.Float64() < d.feedback.BlockingProbability(req.Src) {
		req.Status = model.StatusBlocked
		req.BlockedAt = d.queue.Now()
		req.ClearAllocation()
		d.registry.MarkBlocked()
		d.feedback.RecordOutcome(req.Src, false)
		d.collector.ObserveOutcome(observability.OutcomeArtificialBlocked, 0)
		d.log.Debug(ctx, "request dropped by feedback valve",
			logging.Int64("request_id", req.ID),
			logging.String("src", req.Src))
		return
	}

	pol := d.fleet.ActivePolicy(req.SrcISP)
	accepted, err := pol.Route(ctx, req)
	if err != nil {
		d.fail(ctx, err)
		return
	}
	if extra {
		d.feedback.RecordOutcome(req.Src, accepted)
	}
	if accepted {
		d.collector.ObserveOutcome(observability.OutcomeAccepted, req.SlotsUsed())
	} else {
		d.collector.ObserveOutcome(observability.OutcomeBlocked, 0)
	}
}

// fail records the first structural error; later events become no-ops
// so Run can surface it.
func (d *Driver) fail(ctx context.Context, err error) {
	if d.fatal == nil {
		d.fatal = err
		d.log.Error(ctx, "run aborting", logging.String("error", err.Error()))
	}
}

func (d *Driver) sampleLoop(ctx context.Context) {
	d.feedback.Sample()
	d.collector.SetActiveRequests(d.countHolding())
	if d.remaining > 0 {
		d.queue.Schedule(d.queue.Now().Add(d.feedback.Interval()), func() { d.sampleLoop(ctx) })
	}
}

func (d *Driver) countHolding() int {
	now := d.queue.Now()
	n := 0
	for _, req := range d.registry.Requests() {
		if req.Status == model.StatusAccepted && req.HoldsResourcesAt(now) {
			n++
		}
	}
	return n
}

func (d *Driver) materialize(pr scenario.PlannedRequest) *model.Request {
	return &model.Request{
		ID:          pr.ID,
		Src:         pr.Src,
		Dst:         pr.Dst,
		SrcISP:      pr.SrcISP,
		DstISP:      pr.DstISP,
		Bandwidth:   pr.Bandwidth,
		Class:       pr.Class,
		HoldingTime: pr.HoldingTime,
		IsMigration: pr.IsMigration,
		CreatedAt:   d.queue.Now(),
		SlotStart:   model.NoSlot,
		SlotEnd:     model.NoSlot,
	}
}

func (d *Driver) newSyntheticRequest() *model.Request {
	nodes := d.topo.Nodes()
	src := nodes[d.rng.Intn(len(nodes))]
	dst := src
	for dst == src {
		dst = nodes[d.rng.Intn(len(nodes))]
	}
	d.nextID++
	return &model.Request{
		ID:          d.nextID,
		Src:         src,
		Dst:         dst,
		SrcISP:      d.ispOf(src),
		DstISP:      d.ispOf(dst),
		Bandwidth:   d.drawBandwidth(),
		Class:       d.drawClass(),
		HoldingTime: d.drawHolding(),
		CreatedAt:   d.queue.Now(),
		SlotStart:   model.NoSlot,
		SlotEnd:     model.NoSlot,
	}
}

// migrationFactory hands the migration controllers a request source
// sharing the driver's ID space, random stream, and registry.
func (d *Driver) migrationFactory() migration.RequestFactory {
	return func(src, dst string, ispID int) *model.Request {
		d.nextID++
		req := &model.Request{
			ID:          d.nextID,
			Src:         src,
			Dst:         dst,
			SrcISP:      ispID,
			DstISP:      ispID,
			Bandwidth:   d.drawBandwidth(),
			Class:       d.drawClass(),
			HoldingTime: d.drawHolding(),
			IsMigration: true,
			CreatedAt:   d.queue.Now(),
			SlotStart:   model.NoSlot,
			SlotEnd:     model.NoSlot,
		}
		if err := d.registry.Register(req); err != nil {
			d.fail(context.Background(), err)
		}
		return req
	}
}

func (d *Driver) ispOf(node string) int {
	for _, isp := range d.scn.ISPs {
		if isp.HasNode(node) {
			return isp.ID
		}
	}
	return 0
}

func (d *Driver) arrivalGap() time.Duration {
	return time.Duration(d.rng.ExpFloat64() / d.scn.ArrivalRate * float64(time.Second))
}

func (d *Driver) drawHolding() time.Duration {
	return time.Duration(d.rng.ExpFloat64() * float64(d.scn.HoldingTimeMean))
}

func (d *Driver) drawBandwidth() float64 {
	return d.scn.Bandwidths[d.rng.Intn(len(d.scn.Bandwidths))]
}

func (d *Driver) drawClass() int {
	if len(d.scn.Classes) == 0 {
		return 0
	}
	return d.scn.Classes[d.rng.Intn(len(d.scn.Classes))]
}
