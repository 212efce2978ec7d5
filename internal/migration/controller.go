package migration

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/logging"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/timectrl"
)

// RequestFactory synthesizes one migration request between the
// datacenter endpoints. The caller owns ID assignment, holding-time
// and bandwidth draws, and registration.
type RequestFactory func(src, dst string, ispID int) *model.Request

// Controller runs the two-phase migration process of one
// datacenter-backed ISP: swap to the disaster policy once the reaction
// time elapses, and, when no pre-generated migration traffic exists,
// pump synthetic migration requests toward the backup site until the
// bandwidth target is met or the disaster strikes. Migration is
// best-effort; falling short of the target is reported, not fatal.
type Controller struct {
	rt    *ISPRuntime
	sched timectrl.Scheduler
	rng   *rand.Rand
	log   logging.Logger

	newRequest   RequestFactory
	avgBandwidth float64
	synthesize   bool

	// OnError, when set, receives routing errors. Those are
	// configuration faults (missing path tables), not contention, so
	// the owner of the run decides whether to abort.
	OnError func(error)

	disasterStart time.Time
	disasterEnd   time.Time
	sent          float64
	finished      bool
}

// NewController validates the datacenter parameters and builds a
// controller. rt must belong to an ISP with a datacenter.
func NewController(rt *ISPRuntime, sched timectrl.Scheduler, rng *rand.Rand, avgBandwidth float64, synthesize bool, factory RequestFactory, log logging.Logger) (*Controller, error) {
	if rt == nil || rt.ISP == nil || rt.ISP.Datacenter == nil {
		return nil, fmt.Errorf("migration controller: ISP has no datacenter")
	}
	dc := rt.ISP.Datacenter
	if synthesize {
		if dc.Throughput <= 0 {
			return nil, fmt.Errorf("migration controller for ISP %d: throughput must be > 0, got %v", rt.ISP.ID, dc.Throughput)
		}
		if avgBandwidth <= 0 {
			return nil, fmt.Errorf("migration controller for ISP %d: average bandwidth must be > 0, got %v", rt.ISP.ID, avgBandwidth)
		}
		if factory == nil {
			return nil, fmt.Errorf("migration controller for ISP %d: request factory required", rt.ISP.ID)
		}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Controller{
		rt:           rt,
		sched:        sched,
		rng:          rng,
		log:          log,
		newRequest:   factory,
		avgBandwidth: avgBandwidth,
		synthesize:   synthesize,
	}, nil
}

// Arm schedules the policy swaps and, if synthesizing, the first
// migration arrival at the ISP's reaction time.
func (c *Controller) Arm(ctx context.Context, origin time.Time, event *model.DisasterEvent) {
	dc := c.rt.ISP.Datacenter
	c.disasterStart = origin.Add(event.Start)
	c.disasterEnd = origin.Add(event.End())

	c.sched.Schedule(origin.Add(dc.ReactionTime), func() {
		c.rt.EnterDisasterMode()
		c.log.Info(ctx, "ISP entered disaster mode",
			logging.Int("isp", c.rt.ISP.ID),
			logging.String("policy", string(c.rt.ISP.DisasterPolicy)))
		if c.synthesize {
			c.scheduleNext(ctx)
		}
	})

	c.sched.Schedule(c.disasterEnd, func() {
		c.rt.ExitDisasterMode()
		c.log.Info(ctx, "ISP restored primary policy",
			logging.Int("isp", c.rt.ISP.ID),
			logging.String("policy", string(c.rt.ISP.PrimaryPolicy)))
	})
}

// ISP returns the provider this controller migrates for.
func (c *Controller) ISP() *model.ISP { return c.rt.ISP }

// SentBandwidth returns the cumulative bandwidth of accepted migration
// requests.
func (c *Controller) SentBandwidth() float64 { return c.sent }

// Completion returns the migration progress as a percentage of the
// bandwidth target, capped at 100.
func (c *Controller) Completion() float64 {
	target := c.rt.ISP.Datacenter.TargetBandwidth
	if target <= 0 {
		return 100
	}
	pct := c.sent / target * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// scheduleNext arms the next arrival after an exponentially
// distributed gap with mean avgBandwidth/throughput seconds.
func (c *Controller) scheduleNext(ctx context.Context) {
	mean := c.avgBandwidth / c.rt.ISP.Datacenter.Throughput
	gap := time.Duration(c.rng.ExpFloat64() * mean * float64(time.Second))
	c.sched.Schedule(c.sched.Now().Add(gap), func() { c.pump(ctx) })
}

func (c *Controller) pump(ctx context.Context) {
	dc := c.rt.ISP.Datacenter
	now := c.sched.Now()
	if c.sent >= dc.TargetBandwidth || !now.Before(c.disasterStart) {
		c.report(ctx)
		return
	}

	req := c.newRequest(dc.Source, dc.Destination, c.rt.ISP.ID)
	accepted, err := c.rt.Active().Route(ctx, req)
	if err != nil {
		c.log.Error(ctx, "migration request failed",
			logging.Int("isp", c.rt.ISP.ID),
			logging.Int64("request_id", req.ID),
			logging.String("error", err.Error()))
		if c.OnError != nil {
			c.OnError(err)
		}
		return
	}
	if accepted {
		c.sent += req.Bandwidth
	}
	c.scheduleNext(ctx)
}

func (c *Controller) report(ctx context.Context) {
	if c.finished {
		return
	}
	c.finished = true
	c.log.Info(ctx, "migration finished",
		logging.Int("isp", c.rt.ISP.ID),
		logging.Float("sent_bandwidth", c.sent),
		logging.Float("completion_pct", c.Completion()))
}
