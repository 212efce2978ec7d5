package routing

import "github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/core"

// slotRun is one contiguous range of slot indices free on every link
// of a candidate path.
type slotRun struct {
	start int
	size  int
}

// freeRuns scans all N slot indices once, building the contiguous runs
// that are free across every link of path. A slot index is usable only
// if every traversed link has it free.
func freeRuns(topo *core.Topology, path []string) []slotRun {
	links := make([]*core.Link, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		l, ok := topo.Link(path[i], path[i+1])
		if !ok {
			return nil
		}
		links = append(links, l)
	}

	var runs []slotRun
	runStart := -1
	for i := 0; i < topo.SlotsPerLink(); i++ {
		free := true
		for _, l := range links {
			if !l.SlotFree(i) {
				free = false
				break
			}
		}
		if free {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			runs = append(runs, slotRun{start: runStart, size: i - runStart})
			runStart = -1
		}
	}
	if runStart >= 0 {
		runs = append(runs, slotRun{start: runStart, size: topo.SlotsPerLink() - runStart})
	}
	return runs
}

// firstFit returns the start of the first run wide enough for needed
// slots.
func firstFit(runs []slotRun, needed int) (int, bool) {
	for _, r := range runs {
		if r.size >= needed {
			return r.start, true
		}
	}
	return 0, false
}

// bestRun returns the tightest run whose size is >= needed, preferring
// an exact match. ok is false when no run fits.
func bestRun(runs []slotRun, needed int) (slotRun, bool) {
	best := slotRun{}
	found := false
	for _, r := range runs {
		if r.size < needed {
			continue
		}
		if r.size == needed {
			return r, true
		}
		if !found || r.size < best.size {
			best = r
			found = true
		}
	}
	return best, found
}
