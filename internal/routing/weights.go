package routing

import (
	"fmt"

	lvcore "github.com/katalvlaran/lvlath/core"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

// WeightConfig carries the three routing-weight coefficients. Each must
// lie in [0, 1]; anything else is a configuration error.
type WeightConfig struct {
	// Alpha scales the per-ISP link usage multiplier (how much
	// heavier-used links look "longer").
	Alpha float64
	// Beta scales the global migration-path usage penalty.
	Beta float64
	// Gamma scales bridge-based link criticality.
	Gamma float64
}

// Validate checks the coefficient ranges.
func (c WeightConfig) Validate() error {
	for _, w := range []struct {
		name  string
		value float64
	}{{"alpha", c.Alpha}, {"beta", c.Beta}, {"gamma", c.Gamma}} {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("routing weight %s=%v outside [0,1]", w.name, w.value)
		}
	}
	return nil
}

// WeightCalculator composes three per-link contributions into one
// composite routing weight per ISP:
//
//	distance * (1 + 0.2*alpha*usage + 0.2*beta*migration + gamma*criticality)
//
// where usage is the ISP's own normalized link usage frequency,
// migration the global normalized usage across all datacenter
// migration paths, and criticality the share of ISPs for which the
// link is a bridge (with the disaster epicenter removed). The usage
// and migration terms top out at 0.2 even at full coefficient, so a
// maximally loaded link looks at most 20% longer per term.
type WeightCalculator struct {
	topo *core.Topology
	isps []*model.ISP
	cfg  WeightConfig

	usage       map[int]map[string]float64 // per ISP, normalized [0,1]
	migration   map[string]float64         // global, normalized [0,1]
	criticality map[string]float64         // bridge share [0,1]
}

// NewWeightCalculator validates the coefficients and prepares an empty
// calculator; Compute must run before LinkWeightFor is used.
func NewWeightCalculator(topo *core.Topology, isps []*model.ISP, cfg WeightConfig) (*WeightCalculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &WeightCalculator{topo: topo, isps: isps, cfg: cfg}, nil
}

// Config returns the active coefficients.
func (w *WeightCalculator) Config() WeightConfig { return w.cfg }

// SetConfig swaps the coefficients and drops every cached contribution,
// forcing recomputation.
func (w *WeightCalculator) SetConfig(cfg WeightConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	w.cfg = cfg
	w.usage = nil
	w.migration = nil
	w.criticality = nil
	return nil
}

// Compute fills the three contribution caches. internalTables are the
// per-ISP plain internal path tables the usage counts are drawn from.
func (w *WeightCalculator) Compute(internalTables map[int]core.PathTable) error {
	w.usage = make(map[int]map[string]float64, len(w.isps))
	for _, isp := range w.isps {
		w.usage[isp.ID] = normalizeCounts(countLinkUsage(internalTables[isp.ID]))
	}

	migrationCounts := make(map[string]int)
	for _, isp := range w.isps {
		if isp.Datacenter == nil {
			continue
		}
		dc := isp.Datacenter
		table := internalTables[isp.ID]
		if table == nil {
			continue
		}
		for _, p := range table[dc.Source][dc.Destination] {
			addPathLinks(migrationCounts, p.Nodes)
		}
	}
	w.migration = normalizeCounts(migrationCounts)

	crit, err := w.computeCriticality()
	if err != nil {
		return err
	}
	w.criticality = crit
	return nil
}

// usageSpan and migrationSpan cap their contributions: the usage
// multiplier stays inside [1.0, 1.2] and the migration penalty inside
// [0.0, 0.2].
const (
	usageSpan     = 0.2
	migrationSpan = 0.2
)

// Multiplier returns the composite per-link multiplier for the ISP.
func (w *WeightCalculator) Multiplier(ispID int, l *core.Link) float64 {
	key := l.Key()
	m := 1.0
	if u := w.usage[ispID]; u != nil {
		m += usageSpan * w.cfg.Alpha * u[key]
	}
	m += migrationSpan * w.cfg.Beta * w.migration[key]
	m += w.cfg.Gamma * w.criticality[key]
	return m
}

// LinkWeightFor returns the link weight function fed into the
// k-shortest-paths search on the ISP's rewritten graph.
func (w *WeightCalculator) LinkWeightFor(ispID int) func(*core.Link) float64 {
	return func(l *core.Link) float64 {
		return l.DistanceKm * w.Multiplier(ispID, l)
	}
}

// computeCriticality counts, per link, for how many ISPs the link is a
// bridge of the ISP's subgraph once the disaster epicenter is removed.
func (w *WeightCalculator) computeCriticality() (map[string]float64, error) {
	counts := make(map[string]int)
	epicenter := w.topo.DisasterNode()
	for _, isp := range w.isps {
		bridges, err := w.subgraphBridges(isp, epicenter)
		if err != nil {
			return nil, fmt.Errorf("criticality for ISP %d: %w", isp.ID, err)
		}
		for key := range bridges {
			counts[key]++
		}
	}
	crit := make(map[string]float64, len(counts))
	if len(w.isps) == 0 {
		return crit, nil
	}
	for key, n := range counts {
		crit[key] = float64(n) / float64(len(w.isps))
	}
	return crit, nil
}

// subgraphBridges finds the bridge links of the ISP's induced subgraph
// (minus the epicenter) via a lowpoint DFS over an lvlath graph view.
func (w *WeightCalculator) subgraphBridges(isp *model.ISP, epicenter string) (map[string]bool, error) {
	members := isp.NodeSet()
	delete(members, epicenter)

	g := lvcore.NewGraph(lvcore.WithWeighted())
	for n := range members {
		if err := g.AddVertex(n); err != nil {
			return nil, err
		}
	}
	for _, l := range w.topo.Links() {
		if !members[l.A] || !members[l.B] {
			continue
		}
		if _, err := g.AddEdge(l.A, l.B, 1); err != nil {
			return nil, err
		}
	}

	bridges := make(map[string]bool)
	disc := make(map[string]int)
	low := make(map[string]int)
	timer := 0

	var dfs func(at, parent string)
	dfs = func(at, parent string) {
		timer++
		disc[at] = timer
		low[at] = timer
		neighbors, err := g.NeighborIDs(at)
		if err != nil {
			return
		}
		skippedParent := false
		for _, next := range neighbors {
			if next == parent && !skippedParent {
				// Skip the tree edge back to the parent exactly once;
				// a parallel edge would not be a bridge.
				skippedParent = true
				continue
			}
			if disc[next] != 0 {
				if low[at] > disc[next] {
					low[at] = disc[next]
				}
				continue
			}
			dfs(next, at)
			if low[at] > low[next] {
				low[at] = low[next]
			}
			if low[next] > disc[at] {
				bridges[core.LinkKey(at, next)] = true
			}
		}
	}

	for n := range members {
		if disc[n] == 0 {
			dfs(n, "")
		}
	}
	return bridges, nil
}

func countLinkUsage(table core.PathTable) map[string]int {
	counts := make(map[string]int)
	for _, byDst := range table {
		for _, paths := range byDst {
			for _, p := range paths {
				addPathLinks(counts, p.Nodes)
			}
		}
	}
	return counts
}

func addPathLinks(counts map[string]int, nodes []string) {
	for i := 0; i+1 < len(nodes); i++ {
		counts[core.LinkKey(nodes[i], nodes[i+1])]++
	}
}

// normalizeCounts maps raw counts onto [0,1] relative to the maximum.
func normalizeCounts(counts map[string]int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return out
	}
	for key, n := range counts {
		out[key] = float64(n) / float64(max)
	}
	return out
}
