package routing

import (
	"fmt"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

// Catalog precomputes and caches the per-ISP path tables: plain
// internal k-shortest paths (subnet-restricted), disaster-aware
// internal paths (epicenter removed), and weighted disaster-aware
// paths ordered by the WeightCalculator's composite cost. Tables are
// computed once per run and invalidated only when the routing weight
// configuration changes.
type Catalog struct {
	topo *core.Topology
	isps map[int]*model.ISP
	k    int

	weights *WeightCalculator

	internal         map[int]core.PathTable
	internalDisaster map[int]core.PathTable
	weighted         map[int]core.PathTable
}

// NewCatalog builds a catalog for the given ISPs. Precompute must run
// before lookups.
func NewCatalog(topo *core.Topology, isps []*model.ISP, k int, cfg WeightConfig) (*Catalog, error) {
	if k < 1 {
		return nil, fmt.Errorf("path catalog: k must be >= 1, got %d", k)
	}
	wc, err := NewWeightCalculator(topo, isps, cfg)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*model.ISP, len(isps))
	for _, isp := range isps {
		if _, dup := byID[isp.ID]; dup {
			return nil, fmt.Errorf("path catalog: duplicate ISP ID %d", isp.ID)
		}
		byID[isp.ID] = isp
	}
	return &Catalog{topo: topo, isps: byID, k: k, weights: wc}, nil
}

// Weights exposes the weight calculator, mostly for tests and for the
// driver's reconfiguration path.
func (c *Catalog) Weights() *WeightCalculator { return c.weights }

// Precompute fills every table. The topology's disaster tables (and
// epicenter) must already be in place so the disaster-aware and
// weighted variants see the restricted graph.
func (c *Catalog) Precompute() error {
	epicenter := c.topo.DisasterNode()

	c.internal = make(map[int]core.PathTable, len(c.isps))
	c.internalDisaster = make(map[int]core.PathTable, len(c.isps))
	for id, isp := range c.isps {
		plain, err := c.computeISPTable(isp, nil, nil)
		if err != nil {
			return fmt.Errorf("internal paths for ISP %d: %w", id, err)
		}
		c.internal[id] = plain

		if epicenter != "" {
			restricted, err := c.computeISPTable(isp, map[string]bool{epicenter: true}, nil)
			if err != nil {
				return fmt.Errorf("disaster paths for ISP %d: %w", id, err)
			}
			c.internalDisaster[id] = restricted
		}
	}

	if err := c.weights.Compute(c.internal); err != nil {
		return err
	}
	return c.computeWeighted()
}

// SetWeightConfig swaps (alpha, beta, gamma) and recomputes everything
// the composite cost feeds into.
func (c *Catalog) SetWeightConfig(cfg WeightConfig) error {
	if err := c.weights.SetConfig(cfg); err != nil {
		return err
	}
	if c.internal == nil {
		// Nothing precomputed yet; Precompute will pick the new config up.
		return nil
	}
	if err := c.weights.Compute(c.internal); err != nil {
		return err
	}
	return c.computeWeighted()
}

func (c *Catalog) computeWeighted() error {
	epicenter := c.topo.DisasterNode()
	c.weighted = make(map[int]core.PathTable, len(c.isps))
	for id, isp := range c.isps {
		var exclude map[string]bool
		if epicenter != "" {
			exclude = map[string]bool{epicenter: true}
		}
		table, err := c.computeISPTable(isp, exclude, c.weights.LinkWeightFor(id))
		if err != nil {
			return fmt.Errorf("weighted paths for ISP %d: %w", id, err)
		}
		c.weighted[id] = table
	}
	return nil
}

// computeISPTable runs k-shortest paths for every pair of the ISP's
// member nodes, restricted to the ISP subnet.
func (c *Catalog) computeISPTable(isp *model.ISP, exclude map[string]bool, weight func(*core.Link) float64) (core.PathTable, error) {
	members := isp.NodeSet()
	table := make(core.PathTable)
	for i, s := range isp.Nodes {
		for _, d := range isp.Nodes[i+1:] {
			if s == d {
				continue
			}
			if exclude != nil && (exclude[s] || exclude[d]) {
				continue
			}
			paths, err := c.topo.KShortestPaths(s, d, core.PathOptions{
				K:            c.k,
				RestrictTo:   members,
				ExcludeNodes: exclude,
				LinkWeight:   weight,
			})
			if err != nil {
				return nil, err
			}
			putPaths(table, s, d, paths)
			putPaths(table, d, s, reverseCandidates(paths))
		}
	}
	return table, nil
}

// InternalPaths returns the ISP's plain internal table entry. A missing
// entry (unknown ISP, or endpoints outside the subnet) is a
// configuration error.
func (c *Catalog) InternalPaths(ispID int, src, dst string) ([]core.CandidatePath, error) {
	return c.lookup(c.internal, ispID, src, dst)
}

// DisasterPaths returns the ISP's disaster-aware internal entry; ok is
// false when the pair keeps the plain table (epicenter traffic, or no
// disaster configured).
func (c *Catalog) DisasterPaths(ispID int, src, dst string) ([]core.CandidatePath, bool) {
	table := c.internalDisaster[ispID]
	if table == nil {
		return nil, false
	}
	byDst, ok := table[src]
	if !ok {
		return nil, false
	}
	paths, ok := byDst[dst]
	return paths, ok
}

// WeightedPaths returns the ISP's weighted disaster-aware entry,
// falling back to the plain internal table for epicenter traffic.
func (c *Catalog) WeightedPaths(ispID int, src, dst string) ([]core.CandidatePath, error) {
	if table := c.weighted[ispID]; table != nil {
		if paths, ok := table[src][dst]; ok {
			return paths, nil
		}
	}
	return c.lookup(c.internal, ispID, src, dst)
}

func (c *Catalog) lookup(tables map[int]core.PathTable, ispID int, src, dst string) ([]core.CandidatePath, error) {
	if tables == nil {
		return nil, core.ErrTableNotReady
	}
	table, ok := tables[ispID]
	if !ok {
		return nil, fmt.Errorf("ISP %d paths %s->%s: unknown ISP: %w", ispID, src, dst, core.ErrNoPathTable)
	}
	byDst, ok := table[src]
	if !ok {
		return nil, fmt.Errorf("ISP %d paths %s->%s: %w", ispID, src, dst, core.ErrNoPathTable)
	}
	paths, ok := byDst[dst]
	if !ok {
		return nil, fmt.Errorf("ISP %d paths %s->%s: %w", ispID, src, dst, core.ErrNoPathTable)
	}
	return paths, nil
}

func putPaths(table core.PathTable, s, d string, paths []core.CandidatePath) {
	if table[s] == nil {
		table[s] = make(map[string][]core.CandidatePath)
	}
	table[s][d] = paths
}

func reverseCandidates(paths []core.CandidatePath) []core.CandidatePath {
	out := make([]core.CandidatePath, len(paths))
	for i, p := range paths {
		nodes := make([]string, len(p.Nodes))
		for j, n := range p.Nodes {
			nodes[len(p.Nodes)-1-j] = n
		}
		out[i] = core.CandidatePath{Nodes: nodes, DistanceKm: p.DistanceKm, Modulation: p.Modulation}
	}
	return out
}
