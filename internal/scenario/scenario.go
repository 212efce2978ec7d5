// Package scenario loads and validates simulation scenario files and
// materializes them into the runtime objects the driver consumes.
// Validation is strict: a scenario that references unknown nodes,
// out-of-range weights, or impossible timings is rejected before the
// run starts rather than failing midway through.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/routing"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/telemetry"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

// ErrInvalid marks every scenario validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Document is the on-disk scenario schema.
type Document struct {
	Run      RunConfig       `yaml:"run"`
	Spectrum SpectrumConfig  `yaml:"spectrum"`
	Routing  RoutingConfig   `yaml:"routing"`
	Traffic  TrafficConfig   `yaml:"traffic"`
	Topology TopologyConfig  `yaml:"topology"`
	ISPs     []ISPConfig     `yaml:"isps"`
	Disaster *DisasterConfig `yaml:"disaster"`
	Feedback *FeedbackConfig `yaml:"feedback"`
	Requests []RequestConfig `yaml:"requests"`
}

type RunConfig struct {
	Seed            int64    `yaml:"seed"`
	Requests        int      `yaml:"requests"`
	ArrivalRate     float64  `yaml:"arrival_rate"`
	HoldingTimeMean Duration `yaml:"holding_time_mean"`
	DefaultPolicy   string   `yaml:"default_policy"`
}

type SpectrumConfig struct {
	SlotsPerLink int     `yaml:"slots_per_link"`
	SlotCapacity float64 `yaml:"slot_capacity"`
}

type RoutingConfig struct {
	K     int     `yaml:"k"`
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
	Gamma float64 `yaml:"gamma"`
}

type TrafficConfig struct {
	Bandwidths []float64 `yaml:"bandwidths"`
	Classes    []int     `yaml:"classes"`
}

type TopologyConfig struct {
	Nodes []string     `yaml:"nodes"`
	Links []LinkConfig `yaml:"links"`
}

type LinkConfig struct {
	A          string  `yaml:"a"`
	B          string  `yaml:"b"`
	DistanceKm float64 `yaml:"distance_km"`
	ISPs       []int   `yaml:"isps"`
}

type ISPConfig struct {
	ID             int               `yaml:"id"`
	Nodes          []string          `yaml:"nodes"`
	PrimaryPolicy  string            `yaml:"primary_policy"`
	DisasterPolicy string            `yaml:"disaster_policy"`
	Datacenter     *DatacenterConfig `yaml:"datacenter"`
}

type DatacenterConfig struct {
	Source          string   `yaml:"source"`
	Destination     string   `yaml:"destination"`
	ReactionTime    Duration `yaml:"reaction_time"`
	TargetBandwidth float64  `yaml:"target_bandwidth"`
	Throughput      float64  `yaml:"throughput"`
}

type DisasterConfig struct {
	Start       Duration           `yaml:"start"`
	Duration    Duration           `yaml:"duration"`
	Epicenter   string             `yaml:"epicenter"`
	Activations []ActivationConfig `yaml:"activations"`
}

type ActivationConfig struct {
	Kind   string   `yaml:"kind"`
	Node   string   `yaml:"node"`
	A      string   `yaml:"a"`
	B      string   `yaml:"b"`
	Offset Duration `yaml:"offset"`
}

type FeedbackConfig struct {
	Window        Duration `yaml:"window"`
	Interval      Duration `yaml:"interval"`
	MaxProportion float64  `yaml:"max_proportion"`
	PartitionA    []string `yaml:"partition_a"`
	PartitionB    []string `yaml:"partition_b"`
}

type RequestConfig struct {
	ID          int64    `yaml:"id"`
	Src         string   `yaml:"src"`
	Dst         string   `yaml:"dst"`
	SrcISP      int      `yaml:"src_isp"`
	DstISP      int      `yaml:"dst_isp"`
	Bandwidth   float64  `yaml:"bandwidth"`
	Class       int      `yaml:"class"`
	HoldingTime Duration `yaml:"holding_time"`
	Offset      Duration `yaml:"offset"`
	IsMigration bool     `yaml:"is_migration"`
}

// PlannedRequest is one pre-generated arrival: the request template
// plus its arrival offset from the run origin.
type PlannedRequest struct {
	Offset      time.Duration
	ID          int64
	Src         string
	Dst         string
	SrcISP      int
	DstISP      int
	Bandwidth   float64
	Class       int
	HoldingTime time.Duration
	IsMigration bool
}

// Scenario is the fully materialized run input.
type Scenario struct {
	Topology *core.Topology
	ISPs     []*model.ISP
	Disaster *model.DisasterEvent
	Feedback telemetry.FeedbackConfig

	// Requests is the pre-generated arrival list, sorted by offset.
	// Empty means the driver synthesizes arrivals itself.
	Requests []PlannedRequest

	Seed            int64
	RequestCount    int
	ArrivalRate     float64
	HoldingTimeMean time.Duration
	DefaultPolicy   model.PolicyKind
	AvgBandwidth    float64
	Bandwidths      []float64
	Classes         []int
	K               int
	Weights         routing.WeightConfig
}

// Load reads, parses, validates, and materializes a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(raw)
}

// Parse builds a scenario from raw YAML.
func Parse(raw []byte) (*Scenario, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc.Build()
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks structural consistency without building anything.
func (d *Document) Validate() error {
	if d.Spectrum.SlotsPerLink < 1 {
		return invalidf("spectrum.slots_per_link must be >= 1, got %d", d.Spectrum.SlotsPerLink)
	}
	if d.Spectrum.SlotCapacity <= 0 {
		return invalidf("spectrum.slot_capacity must be > 0, got %v", d.Spectrum.SlotCapacity)
	}
	if d.Routing.K < 1 {
		return invalidf("routing.k must be >= 1, got %d", d.Routing.K)
	}
	weights := routing.WeightConfig{Alpha: d.Routing.Alpha, Beta: d.Routing.Beta, Gamma: d.Routing.Gamma}
	if err := weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	nodes := make(map[string]bool, len(d.Topology.Nodes))
	for _, n := range d.Topology.Nodes {
		if n == "" {
			return invalidf("topology.nodes contains an empty id")
		}
		if nodes[n] {
			return invalidf("duplicate node %q", n)
		}
		nodes[n] = true
	}
	if len(nodes) == 0 {
		return invalidf("topology.nodes is empty")
	}
	for _, l := range d.Topology.Links {
		if !nodes[l.A] || !nodes[l.B] {
			return invalidf("link %s-%s references unknown node", l.A, l.B)
		}
		if l.DistanceKm <= 0 {
			return invalidf("link %s-%s distance must be > 0, got %v", l.A, l.B, l.DistanceKm)
		}
	}

	seenISP := make(map[int]bool, len(d.ISPs))
	for _, isp := range d.ISPs {
		if seenISP[isp.ID] {
			return invalidf("duplicate ISP id %d", isp.ID)
		}
		seenISP[isp.ID] = true
		if !model.PolicyKind(isp.PrimaryPolicy).Valid() {
			return invalidf("ISP %d primary_policy %q unknown", isp.ID, isp.PrimaryPolicy)
		}
		if isp.DisasterPolicy != "" && !model.PolicyKind(isp.DisasterPolicy).Valid() {
			return invalidf("ISP %d disaster_policy %q unknown", isp.ID, isp.DisasterPolicy)
		}
		members := make(map[string]bool, len(isp.Nodes))
		for _, n := range isp.Nodes {
			if !nodes[n] {
				return invalidf("ISP %d references unknown node %q", isp.ID, n)
			}
			members[n] = true
		}
		if dc := isp.Datacenter; dc != nil {
			if !members[dc.Source] || !members[dc.Destination] {
				return invalidf("ISP %d datacenter endpoints %q->%q outside its subnet", isp.ID, dc.Source, dc.Destination)
			}
			if dc.ReactionTime < 0 {
				return invalidf("ISP %d datacenter reaction_time must be >= 0", isp.ID)
			}
		}
	}

	if dis := d.Disaster; dis != nil {
		if dis.Duration <= 0 {
			return invalidf("disaster.duration must be > 0, got %v", dis.Duration.Std())
		}
		if dis.Start < 0 {
			return invalidf("disaster.start must be >= 0, got %v", dis.Start.Std())
		}
		if dis.Epicenter != "" && !nodes[dis.Epicenter] {
			return invalidf("disaster.epicenter %q is not a node", dis.Epicenter)
		}
		for i, act := range dis.Activations {
			switch act.Kind {
			case "node":
				if !nodes[act.Node] {
					return invalidf("activation %d targets unknown node %q", i, act.Node)
				}
			case "link":
				if !nodes[act.A] || !nodes[act.B] {
					return invalidf("activation %d targets unknown link %s-%s", i, act.A, act.B)
				}
			default:
				return invalidf("activation %d has unknown kind %q", i, act.Kind)
			}
			if act.Offset < 0 || act.Offset.Std() > dis.Duration.Std() {
				return invalidf("activation %d offset %v outside disaster window", i, act.Offset.Std())
			}
		}
	}

	if fb := d.Feedback; fb != nil {
		if fb.Window <= 0 || fb.Interval <= 0 {
			return invalidf("feedback window and interval must be > 0")
		}
		if fb.MaxProportion <= 0 {
			return invalidf("feedback.max_proportion must be > 0, got %v", fb.MaxProportion)
		}
		if len(fb.PartitionA) == 0 || len(fb.PartitionB) == 0 {
			return invalidf("feedback partitions must both be non-empty")
		}
		for _, n := range append(append([]string(nil), fb.PartitionA...), fb.PartitionB...) {
			if !nodes[n] {
				return invalidf("feedback partition references unknown node %q", n)
			}
		}
	}

	if len(d.Requests) == 0 {
		if d.Run.Requests < 1 {
			return invalidf("run.requests must be >= 1 when no request list is given")
		}
		if d.Run.ArrivalRate <= 0 {
			return invalidf("run.arrival_rate must be > 0 when no request list is given")
		}
		if d.Run.HoldingTimeMean <= 0 {
			return invalidf("run.holding_time_mean must be > 0 when no request list is given")
		}
		if len(d.Traffic.Bandwidths) == 0 {
			return invalidf("traffic.bandwidths must be non-empty when no request list is given")
		}
	}
	seenID := make(map[int64]bool, len(d.Requests))
	for _, r := range d.Requests {
		if seenID[r.ID] {
			return invalidf("duplicate request id %d", r.ID)
		}
		seenID[r.ID] = true
		if !nodes[r.Src] || !nodes[r.Dst] {
			return invalidf("request %d references unknown node", r.ID)
		}
		if r.Bandwidth <= 0 {
			return invalidf("request %d bandwidth must be > 0", r.ID)
		}
		if r.HoldingTime <= 0 {
			return invalidf("request %d holding_time must be > 0", r.ID)
		}
		if r.Offset < 0 {
			return invalidf("request %d offset must be >= 0", r.ID)
		}
	}

	if d.Run.DefaultPolicy != "" && !model.PolicyKind(d.Run.DefaultPolicy).Valid() {
		return invalidf("run.default_policy %q unknown", d.Run.DefaultPolicy)
	}
	return nil
}

// Build materializes the validated document.
func (d *Document) Build() (*Scenario, error) {
	topo := core.NewTopology(d.Spectrum.SlotsPerLink, d.Spectrum.SlotCapacity)
	for _, n := range d.Topology.Nodes {
		if err := topo.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, lc := range d.Topology.Links {
		l, err := topo.AddLink(lc.A, lc.B, lc.DistanceKm)
		if err != nil {
			return nil, err
		}
		for _, id := range lc.ISPs {
			l.OwnerISPs[id] = true
		}
	}

	isps := make([]*model.ISP, 0, len(d.ISPs))
	for _, ic := range d.ISPs {
		isp := &model.ISP{
			ID:             ic.ID,
			Nodes:          append([]string(nil), ic.Nodes...),
			PrimaryPolicy:  model.PolicyKind(ic.PrimaryPolicy),
			DisasterPolicy: model.PolicyKind(ic.DisasterPolicy),
		}
		if dc := ic.Datacenter; dc != nil {
			isp.Datacenter = &model.Datacenter{
				Source:          dc.Source,
				Destination:     dc.Destination,
				ReactionTime:    dc.ReactionTime.Std(),
				TargetBandwidth: dc.TargetBandwidth,
				Throughput:      dc.Throughput,
			}
		}
		isps = append(isps, isp)
	}

	var disaster *model.DisasterEvent
	if dc := d.Disaster; dc != nil {
		disaster = &model.DisasterEvent{
			Start:     dc.Start.Std(),
			Duration:  dc.Duration.Std(),
			Epicenter: dc.Epicenter,
		}
		for _, ac := range dc.Activations {
			act := model.Activation{Offset: ac.Offset.Std()}
			if ac.Kind == "node" {
				act.Kind = model.TargetNode
				act.Node = ac.Node
			} else {
				act.Kind = model.TargetLink
				act.LinkA = ac.A
				act.LinkB = ac.B
			}
			disaster.Activations = append(disaster.Activations, act)
		}
	}

	var feedback telemetry.FeedbackConfig
	if fb := d.Feedback; fb != nil {
		feedback = telemetry.FeedbackConfig{
			Window:        fb.Window.Std(),
			Interval:      fb.Interval.Std(),
			MaxProportion: fb.MaxProportion,
			PartitionA:    nodeSet(fb.PartitionA),
			PartitionB:    nodeSet(fb.PartitionB),
		}
	}

	planned := make([]PlannedRequest, 0, len(d.Requests))
	for _, r := range d.Requests {
		planned = append(planned, PlannedRequest{
			Offset:      r.Offset.Std(),
			ID:          r.ID,
			Src:         r.Src,
			Dst:         r.Dst,
			SrcISP:      r.SrcISP,
			DstISP:      r.DstISP,
			Bandwidth:   r.Bandwidth,
			Class:       r.Class,
			HoldingTime: r.HoldingTime.Std(),
			IsMigration: r.IsMigration,
		})
	}
	sort.SliceStable(planned, func(i, j int) bool { return planned[i].Offset < planned[j].Offset })

	defaultPolicy := model.PolicyKind(d.Run.DefaultPolicy)
	if defaultPolicy == "" {
		defaultPolicy = model.PolicyFirstFit
	}

	return &Scenario{
		Topology:        topo,
		ISPs:            isps,
		Disaster:        disaster,
		Feedback:        feedback,
		Requests:        planned,
		Seed:            d.Run.Seed,
		RequestCount:    d.Run.Requests,
		ArrivalRate:     d.Run.ArrivalRate,
		HoldingTimeMean: d.Run.HoldingTimeMean.Std(),
		DefaultPolicy:   defaultPolicy,
		AvgBandwidth:    avgOf(d.Traffic.Bandwidths),
		Bandwidths:      append([]float64(nil), d.Traffic.Bandwidths...),
		Classes:         append([]int(nil), d.Traffic.Classes...),
		K:               d.Routing.K,
		Weights:         routing.WeightConfig{Alpha: d.Routing.Alpha, Beta: d.Routing.Beta, Gamma: d.Routing.Gamma},
	}, nil
}

func nodeSet(nodes []string) map[string]bool {
	out := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		out[n] = true
	}
	return out
}

func avgOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
