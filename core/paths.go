package core

import (
	"fmt"
	"math"
	"sort"

	lvcore "github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dijkstra"
)

// CandidatePath is one precomputed route option for a node pair, in
// increasing weight order within its table entry.
type CandidatePath struct {
	Nodes      []string
	DistanceKm float64
	Modulation int
}

// PathTable maps [src][dst] to the ordered candidate list.
type PathTable map[string]map[string][]CandidatePath

// PathOptions customizes a k-shortest-paths computation.
type PathOptions struct {
	// K is the number of loopless paths to compute (>= 1).
	K int
	// RestrictTo, when non-nil, limits the search to these nodes (used
	// for ISP-internal subnet tables). Src and dst must be members.
	RestrictTo map[string]bool
	// ExcludeNodes removes nodes from the graph before searching (used
	// for disaster-aware tables).
	ExcludeNodes map[string]bool
	// LinkWeight overrides the per-link routing weight. Nil means raw
	// distance. Paths are ordered by total weight, while the reported
	// DistanceKm always sums raw distances.
	LinkWeight func(*Link) float64
}

// weightScale converts float link weights to the integer edge weights
// lvlath's Dijkstra works with, keeping three decimal places.
const weightScale = 1000

// KShortestPaths computes up to K loopless paths from src to dst in
// increasing weight order (Yen's algorithm over repeated Dijkstra
// runs). A reachable pair yields at least one path; a disconnected
// pair yields an empty list, which is not an error.
func (t *Topology) KShortestPaths(src, dst string, opt PathOptions) ([]CandidatePath, error) {
	if opt.K < 1 {
		return nil, fmt.Errorf("k-shortest %s->%s: k must be >= 1, got %d", src, dst, opt.K)
	}
	if !t.nodes[src] {
		return nil, fmt.Errorf("k-shortest: src %q: %w", src, ErrNodeNotFound)
	}
	if !t.nodes[dst] {
		return nil, fmt.Errorf("k-shortest: dst %q: %w", dst, ErrNodeNotFound)
	}
	allowed := func(id string) bool {
		if opt.ExcludeNodes != nil && opt.ExcludeNodes[id] {
			return false
		}
		if opt.RestrictTo != nil && !opt.RestrictTo[id] {
			return false
		}
		return true
	}
	if !allowed(src) || !allowed(dst) {
		return nil, nil
	}
	weightOf := opt.LinkWeight
	if weightOf == nil {
		weightOf = func(l *Link) float64 { return l.DistanceKm }
	}

	type weightedPath struct {
		nodes []string
		cost  float64
	}

	first, ok := t.shortestPath(src, dst, allowed, nil, weightOf)
	if !ok {
		return nil, nil
	}
	accepted := []weightedPath{{nodes: first, cost: t.pathWeight(first, weightOf)}}
	var candidates []weightedPath

	seen := map[string]bool{joinPath(first): true}

	for len(accepted) < opt.K {
		prev := accepted[len(accepted)-1].nodes

		// Branch at every spur node of the previously accepted path.
		for i := 0; i < len(prev)-1; i++ {
			spurNode := prev[i]
			rootPath := prev[:i+1]

			bannedEdges := make(map[string]bool)
			for _, p := range accepted {
				if len(p.nodes) > i && samePrefix(p.nodes, rootPath) {
					bannedEdges[LinkKey(p.nodes[i], p.nodes[i+1])] = true
				}
			}
			for _, c := range candidates {
				if len(c.nodes) > i && samePrefix(c.nodes, rootPath) {
					bannedEdges[LinkKey(c.nodes[i], c.nodes[i+1])] = true
				}
			}
			bannedNodes := make(map[string]bool, i)
			for _, n := range rootPath[:i] {
				bannedNodes[n] = true
			}

			spurAllowed := func(id string) bool {
				return allowed(id) && !bannedNodes[id]
			}
			spur, ok := t.shortestPath(spurNode, dst, spurAllowed, bannedEdges, weightOf)
			if !ok {
				continue
			}

			total := append(append([]string{}, rootPath...), spur[1:]...)
			key := joinPath(total)
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, weightedPath{nodes: total, cost: t.pathWeight(total, weightOf)})
		}

		if len(candidates) == 0 {
			break
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			if candidates[a].cost != candidates[b].cost {
				return candidates[a].cost < candidates[b].cost
			}
			return joinPath(candidates[a].nodes) < joinPath(candidates[b].nodes)
		})
		accepted = append(accepted, candidates[0])
		candidates = candidates[1:]
	}

	out := make([]CandidatePath, 0, len(accepted))
	for _, p := range accepted {
		out = append(out, t.candidateOf(p.nodes))
	}
	return out, nil
}

// shortestPath runs a single Dijkstra pass on a filtered copy of the
// topology graph and reconstructs the node sequence.
func (t *Topology) shortestPath(src, dst string, allowed func(string) bool, bannedEdges map[string]bool, weightOf func(*Link) float64) ([]string, bool) {
	if src == dst {
		return []string{src}, true
	}

	g := lvcore.NewGraph(lvcore.WithWeighted())
	for id := range t.nodes {
		if allowed(id) {
			// AddVertex only fails on empty/duplicate IDs, neither of
			// which can happen here.
			_ = g.AddVertex(id)
		}
	}
	for key, l := range t.links {
		if !allowed(l.A) || !allowed(l.B) {
			continue
		}
		if bannedEdges != nil && bannedEdges[key] {
			continue
		}
		w := int64(math.Round(weightOf(l) * weightScale))
		if w < 1 {
			w = 1
		}
		if _, err := g.AddEdge(l.A, l.B, w); err != nil {
			return nil, false
		}
	}

	dist, prevMap, err := dijkstra.Dijkstra(g, dijkstra.Source(src), dijkstra.WithReturnPath())
	if err != nil {
		return nil, false
	}
	d, reachable := dist[dst]
	if !reachable || d == math.MaxInt64 {
		return nil, false
	}

	// Walk predecessors back from dst.
	var rev []string
	for at := dst; at != ""; at = prevMap[at] {
		rev = append(rev, at)
		if at == src {
			break
		}
	}
	if rev[len(rev)-1] != src {
		return nil, false
	}
	path := make([]string, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path, true
}

func (t *Topology) pathWeight(path []string, weightOf func(*Link) float64) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		if l, ok := t.Link(path[i], path[i+1]); ok {
			total += weightOf(l)
		}
	}
	return total
}

func (t *Topology) candidateOf(nodes []string) CandidatePath {
	dist := 0.0
	for i := 0; i+1 < len(nodes); i++ {
		if l, ok := t.Link(nodes[i], nodes[i+1]); ok {
			dist += l.DistanceKm
		}
	}
	return CandidatePath{
		Nodes:      nodes,
		DistanceKm: dist,
		Modulation: ModulationFactor(dist),
	}
}

func samePrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

func joinPath(path []string) string {
	key := ""
	for i, n := range path {
		if i > 0 {
			key += ">"
		}
		key += n
	}
	return key
}

// PrecomputePaths fills the plain [src][dst] table with up to k
// loopless paths per pair, ordered by raw distance.
func (t *Topology) PrecomputePaths(k int) error {
	table, err := t.computeTable(k, nil)
	if err != nil {
		return err
	}
	t.plainTable = table
	return nil
}

// PrecomputeDisasterPaths fills the disaster-aware table: the epicenter
// node is removed from the graph before computing. Pairs whose src or
// dst is the epicenter get no disaster entry and keep using the plain
// table.
func (t *Topology) PrecomputeDisasterPaths(k int, epicenter string) error {
	if !t.nodes[epicenter] {
		return fmt.Errorf("disaster paths: epicenter %q: %w", epicenter, ErrNodeNotFound)
	}
	t.disasterNode = epicenter
	table, err := t.computeTable(k, map[string]bool{epicenter: true})
	if err != nil {
		return err
	}
	t.disasterTable = table
	return nil
}

func (t *Topology) computeTable(k int, exclude map[string]bool) (PathTable, error) {
	table := make(PathTable)
	nodes := t.Nodes()
	for i, s := range nodes {
		for _, d := range nodes[i+1:] {
			if exclude != nil && (exclude[s] || exclude[d]) {
				continue
			}
			paths, err := t.KShortestPaths(s, d, PathOptions{K: k, ExcludeNodes: exclude})
			if err != nil {
				return nil, err
			}
			putPaths(table, s, d, paths)
			putPaths(table, d, s, reversePaths(paths))
		}
	}
	return table, nil
}

func putPaths(table PathTable, s, d string, paths []CandidatePath) {
	if table[s] == nil {
		table[s] = make(map[string][]CandidatePath)
	}
	table[s][d] = paths
}

func reversePaths(paths []CandidatePath) []CandidatePath {
	out := make([]CandidatePath, len(paths))
	for i, p := range paths {
		nodes := make([]string, len(p.Nodes))
		for j, n := range p.Nodes {
			nodes[len(p.Nodes)-1-j] = n
		}
		out[i] = CandidatePath{Nodes: nodes, DistanceKm: p.DistanceKm, Modulation: p.Modulation}
	}
	return out
}

// PathsBetween returns the plain-table entry for (src, dst). A missing
// entry means the scenario references nodes the tables never covered,
// which is a configuration error.
func (t *Topology) PathsBetween(src, dst string) ([]CandidatePath, error) {
	if t.plainTable == nil {
		return nil, ErrTableNotReady
	}
	byDst, ok := t.plainTable[src]
	if !ok {
		return nil, fmt.Errorf("paths %s->%s: %w", src, dst, ErrNoPathTable)
	}
	paths, ok := byDst[dst]
	if !ok {
		return nil, fmt.Errorf("paths %s->%s: %w", src, dst, ErrNoPathTable)
	}
	return paths, nil
}

// DisasterPathsBetween returns the disaster-aware entry for (src, dst).
// ok is false when the pair keeps the plain table (epicenter traffic or
// no disaster tables computed).
func (t *Topology) DisasterPathsBetween(src, dst string) ([]CandidatePath, bool) {
	if t.disasterTable == nil {
		return nil, false
	}
	byDst, ok := t.disasterTable[src]
	if !ok {
		return nil, false
	}
	paths, ok := byDst[dst]
	return paths, ok
}
