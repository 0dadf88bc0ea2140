package dag

import (
	"cmp"
	"slices"
)

// ExecutionState maps task name to its current TaskState.
type ExecutionState map[string]TaskState

// GetReadyTasks returns the PENDING tasks whose upstream tasks all completed
// or were up to date. Shallower tasks come first so the stages of a workflow
// are started in declaration order; ties break by name.
//
// It does not mutate graph or state.
func GetReadyTasks(g *TaskGraph, state ExecutionState) []string {
	if g == nil {
		return nil
	}

	var ready []*TaskNode
	for _, node := range g.nodes {
		if state[node.Name] == TaskPending && g.upstreamSucceeded(node.canonicalIndex, state) {
			ready = append(ready, node)
		}
	}
	slices.SortFunc(ready, func(a, b *TaskNode) int {
		return cmp.Or(
			cmp.Compare(g.depth[a.canonicalIndex], g.depth[b.canonicalIndex]),
			cmp.Compare(a.Name, b.Name),
		)
	})

	names := make([]string, len(ready))
	for i, n := range ready {
		names[i] = n.Name
	}
	return names
}

func (g *TaskGraph) upstreamSucceeded(idx int, state ExecutionState) bool {
	for _, p := range g.incoming[idx] {
		if !IsSuccessful(state[g.nodes[p].Name]) {
			return false
		}
	}
	return true
}
