package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcome label values.
const (
	OutcomeAccepted          = "accepted"
	OutcomeBlocked           = "blocked"
	OutcomeArtificialBlocked = "artificial_blocked"
)

// SimCollector bundles the Prometheus metrics of one simulation run
// and provides a ready-to-serve /metrics handler.
type SimCollector struct {
	gatherer prometheus.Gatherer

	RequestsTotal *prometheus.CounterVec
	ReroutesTotal prometheus.Counter
	RequestSlots  prometheus.Histogram

	ScenarioNodes  prometheus.Gauge
	ScenarioLinks  prometheus.Gauge
	ActiveRequests prometheus.Gauge

	MigrationCompletion *prometheus.GaugeVec
}

// NewSimCollector registers the simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_requests_total",
		Help: "Total connection requests processed, labeled by outcome.",
	}, []string{"outcome"})
	requests, err := registerCounterVec(reg, requests, "sim_requests_total")
	if err != nil {
		return nil, err
	}

	reroutes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_reroutes_total",
		Help: "Total disaster-triggered reroute attempts.",
	}), "sim_reroutes_total")
	if err != nil {
		return nil, err
	}

	slots := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_request_slots",
		Help:    "Spectrum slots allocated per accepted request.",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 24, 32},
	})
	slots, err = registerHistogram(reg, slots, "sim_request_slots")
	if err != nil {
		return nil, err
	}

	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_scenario_nodes",
		Help: "Number of nodes in the scenario topology.",
	}), "sim_scenario_nodes")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_scenario_links",
		Help: "Number of links in the scenario topology.",
	}), "sim_scenario_links")
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_active_requests",
		Help: "Requests currently holding spectrum resources.",
	}), "sim_active_requests")
	if err != nil {
		return nil, err
	}

	completion := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_migration_completion_percent",
		Help: "Datacenter migration completion per ISP, 0-100.",
	}, []string{"isp"})
	completion, err = registerGaugeVec(reg, completion, "sim_migration_completion_percent")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:            gatherer,
		RequestsTotal:       requests,
		ReroutesTotal:       reroutes,
		RequestSlots:        slots,
		ScenarioNodes:       nodes,
		ScenarioLinks:       links,
		ActiveRequests:      active,
		MigrationCompletion: completion,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveOutcome records one routed request. Slot counts are only
// observed for accepted requests.
func (c *SimCollector) ObserveOutcome(outcome string, slots int) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeAccepted && slots > 0 {
		c.RequestSlots.Observe(float64(slots))
	}
}

// ObserveReroute records one disaster-triggered reroute attempt.
func (c *SimCollector) ObserveReroute() {
	if c == nil {
		return
	}
	c.ReroutesTotal.Inc()
}

// SetTopologyCounts publishes the static scenario dimensions.
func (c *SimCollector) SetTopologyCounts(nodes, links int) {
	if c == nil {
		return
	}
	c.ScenarioNodes.Set(float64(nodes))
	c.ScenarioLinks.Set(float64(links))
}

// SetActiveRequests publishes the number of requests currently holding
// spectrum.
func (c *SimCollector) SetActiveRequests(n int) {
	if c == nil {
		return
	}
	c.ActiveRequests.Set(float64(n))
}

// SetMigrationCompletion publishes one ISP's migration progress.
func (c *SimCollector) SetMigrationCompletion(ispID int, pct float64) {
	if c == nil {
		return
	}
	c.MigrationCompletion.WithLabelValues(fmt.Sprintf("%d", ispID)).Set(pct)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
