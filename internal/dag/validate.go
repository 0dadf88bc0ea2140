package dag

import (
	"slices"
)

// validateAcyclic releases tasks in dependency order. Tasks that are never
// released all sit downstream of a cycle; one cycle among them is reported.
func (g *TaskGraph) validateAcyclic() error {
	order := g.topoOrderIndices()
	if len(order) == len(g.nodes) {
		return nil
	}
	released := make([]bool, len(g.nodes))
	for _, i := range order {
		released[i] = true
	}
	return cycleError(g.describeCycle(g.cycleAmong(released)))
}

// topoOrderIndices orders node indices so every task follows its upstream
// tasks. Among ready tasks the lowest canonical index goes first.
func (g *TaskGraph) topoOrderIndices() []int {
	indeg := slices.Clone(g.indeg)
	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				pos, _ := slices.BinarySearch(ready, m)
				ready = slices.Insert(ready, pos, m)
			}
		}
	}
	return out
}

// cycleAmong walks upstream from the lowest unreleased task. Every unreleased
// task has an unreleased upstream task, so the walk must revisit a task; the
// revisited stretch is a cycle, returned in edge direction.
func (g *TaskGraph) cycleAmong(released []bool) []int {
	start := slices.Index(released, false)
	if start < 0 {
		return nil
	}

	seenAt := make(map[int]int)
	var walk []int
	for u := start; ; {
		if at, ok := seenAt[u]; ok {
			cycle := slices.Clone(walk[at:])
			slices.Reverse(cycle)
			return cycle
		}
		seenAt[u] = len(walk)
		walk = append(walk, u)

		next := -1
		for _, p := range g.incoming[u] { // sorted ascending
			if !released[p] {
				next = p
				break
			}
		}
		if next < 0 {
			return nil
		}
		u = next
	}
}

// describeCycle turns a cycle of node indices into witness steps, naming for
// each edge the first file the downstream task reads from the upstream one.
func (g *TaskGraph) describeCycle(cycle []int) []CycleStep {
	steps := make([]CycleStep, 0, len(cycle))
	for i, u := range cycle {
		v := cycle[(i+1)%len(cycle)]
		steps = append(steps, CycleStep{
			Task: g.nodes[u].Name,
			Via:  sharedPath(g.nodes[u].Task.Targets, g.nodes[v].Task.Depends),
		})
	}
	return steps
}

func sharedPath(targets, depends []string) string {
	sorted := slices.Clone(depends)
	slices.Sort(sorted)
	for _, d := range sorted {
		if slices.Contains(targets, d) {
			return d
		}
	}
	return ""
}
