package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamondTopology:
//
//	a --100-- b --100-- d
//	a --300-- c --300-- d
//	b --50--- c
func diamondTopology(t *testing.T) *Topology {
	t.Helper()
	topo := NewTopology(16, 12.5)
	for _, n := range []string{"a", "b", "c", "d"} {
		require.NoError(t, topo.AddNode(n))
	}
	for _, e := range []struct {
		a, b string
		km   float64
	}{
		{"a", "b", 100},
		{"b", "d", 100},
		{"a", "c", 300},
		{"c", "d", 300},
		{"b", "c", 50},
	} {
		_, err := topo.AddLink(e.a, e.b, e.km)
		require.NoError(t, err)
	}
	return topo
}

func pathNodes(paths []CandidatePath) [][]string {
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = p.Nodes
	}
	return out
}

func TestKShortestPathsOrdering(t *testing.T) {
	topo := diamondTopology(t)

	paths, err := topo.KShortestPaths("a", "d", PathOptions{K: 4})
	require.NoError(t, err)
	require.Len(t, paths, 4)

	assert.Equal(t, [][]string{
		{"a", "b", "d"},      // 200
		{"a", "b", "c", "d"}, // 450
		{"a", "c", "b", "d"}, // 450 (lexicographic tie-break)
		{"a", "c", "d"},      // 600
	}, pathNodes(paths))

	assert.InDelta(t, 200, paths[0].DistanceKm, 1e-9)
	assert.Equal(t, 4, paths[0].Modulation)
	assert.InDelta(t, 600, paths[3].DistanceKm, 1e-9)
	assert.Equal(t, 3, paths[3].Modulation)
}

func TestKShortestPathsAreLoopless(t *testing.T) {
	topo := diamondTopology(t)
	paths, err := topo.KShortestPaths("a", "d", PathOptions{K: 10})
	require.NoError(t, err)
	// Only 4 simple paths exist in the diamond.
	assert.Len(t, paths, 4)
	for _, p := range paths {
		seen := map[string]bool{}
		for _, n := range p.Nodes {
			assert.False(t, seen[n], "path %v revisits %s", p.Nodes, n)
			seen[n] = true
		}
	}
}

func TestKShortestPathsDisconnectedPairYieldsEmpty(t *testing.T) {
	topo := NewTopology(16, 12.5)
	require.NoError(t, topo.AddNode("x"))
	require.NoError(t, topo.AddNode("y"))

	paths, err := topo.KShortestPaths("x", "y", PathOptions{K: 3})
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestKShortestPathsRestrictedToSubnet(t *testing.T) {
	topo := diamondTopology(t)
	subnet := map[string]bool{"a": true, "c": true, "d": true}

	paths, err := topo.KShortestPaths("a", "d", PathOptions{K: 3, RestrictTo: subnet})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"a", "c", "d"}, paths[0].Nodes)
}

func TestKShortestPathsCustomWeightReordersCandidates(t *testing.T) {
	topo := diamondTopology(t)

	// Penalize the b-d link heavily so the composite ordering flips.
	weight := func(l *Link) float64 {
		if l.Key() == LinkKey("b", "d") {
			return l.DistanceKm * 10
		}
		return l.DistanceKm
	}
	paths, err := topo.KShortestPaths("a", "d", PathOptions{K: 2, LinkWeight: weight})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, []string{"a", "b", "c", "d"}, paths[0].Nodes)
	assert.Equal(t, []string{"a", "c", "d"}, paths[1].Nodes)
}

func TestPrecomputePathsAndLookup(t *testing.T) {
	topo := diamondTopology(t)
	require.NoError(t, topo.PrecomputePaths(3))

	paths, err := topo.PathsBetween("a", "d")
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, []string{"a", "b", "d"}, paths[0].Nodes)

	// Reverse direction is stored reversed with the same distances.
	rev, err := topo.PathsBetween("d", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a"}, rev[0].Nodes)
	assert.InDelta(t, paths[0].DistanceKm, rev[0].DistanceKm, 1e-9)

	_, err = topo.PathsBetween("a", "ghost")
	assert.ErrorIs(t, err, ErrNoPathTable)
}

func TestLookupBeforePrecomputeFails(t *testing.T) {
	topo := diamondTopology(t)
	_, err := topo.PathsBetween("a", "d")
	assert.ErrorIs(t, err, ErrTableNotReady)
}

func TestDisasterTablesRemoveEpicenter(t *testing.T) {
	topo := diamondTopology(t)
	require.NoError(t, topo.PrecomputePaths(3))
	require.NoError(t, topo.PrecomputeDisasterPaths(3, "b"))

	paths, ok := topo.DisasterPathsBetween("a", "d")
	require.True(t, ok)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"a", "c", "d"}, paths[0].Nodes)

	// Pairs touching the epicenter keep the plain table.
	_, ok = topo.DisasterPathsBetween("a", "b")
	assert.False(t, ok)
	plain, err := topo.PathsBetween("a", "b")
	require.NoError(t, err)
	assert.NotEmpty(t, plain)

	assert.Equal(t, "b", topo.DisasterNode())
}
