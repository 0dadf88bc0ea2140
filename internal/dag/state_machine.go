package dag

import (
	"fmt"
	"slices"
)

// IsTerminal reports whether a task in state s will not change again
// during this run.
func IsTerminal(s TaskState) bool {
	return s == TaskCompleted || s == TaskCached || s == TaskFailed || s == TaskSkipped
}

// IsSuccessful reports whether a task in state s has its targets in place
// for downstream tasks.
func IsSuccessful(s TaskState) bool {
	return s == TaskCompleted || s == TaskCached
}

// transitions lists the moves a task can make. A pending task either turns
// out to be up to date, is skipped behind a failed upstream, or starts.
var transitions = map[TaskState][]TaskState{
	TaskPending: {TaskRunning, TaskCached, TaskSkipped},
	TaskRunning: {TaskCompleted, TaskFailed},
}

// Transition moves taskName from one state to another. The current state
// must equal from; state is left untouched when the move is refused.
func Transition(state ExecutionState, taskName string, from, to TaskState) error {
	cur, ok := state[taskName]
	switch {
	case !ok:
		return fmt.Errorf("unknown task in state: %q", taskName)
	case cur != from:
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", taskName, from, cur)
	case !slices.Contains(transitions[from], to):
		return fmt.Errorf("disallowed transition for %q: %s -> %s", taskName, from, to)
	}
	state[taskName] = to
	return nil
}

// FailAndPropagate marks taskName FAILED and every PENDING task downstream of
// it SKIPPED, returning the newly skipped names sorted.
//
// A downstream task found RUNNING was dispatched before its upstream
// finished and is reported as an error.
func FailAndPropagate(g *TaskGraph, state ExecutionState, taskName string) ([]string, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	node, ok := g.nodesByName[taskName]
	if !ok {
		return nil, fmt.Errorf("unknown task: %q", taskName)
	}
	switch cur, ok := state[taskName]; {
	case !ok:
		return nil, fmt.Errorf("unknown task in state: %q", taskName)
	case cur != TaskRunning && cur != TaskFailed:
		return nil, fmt.Errorf("cannot fail %q from state %s", taskName, cur)
	}
	state[taskName] = TaskFailed

	var skipped []string
	for _, u := range g.downstreamOf(node.canonicalIndex) {
		name := g.nodes[u].Name
		switch st, ok := state[name]; {
		case !ok:
			return skipped, fmt.Errorf("missing state for %q", name)
		case st == TaskRunning:
			return skipped, fmt.Errorf("downstream task %q is RUNNING while %q failed", name, taskName)
		case st == TaskPending:
			state[name] = TaskSkipped
			skipped = append(skipped, name)
		}
	}
	slices.Sort(skipped)
	return skipped, nil
}

// downstreamOf returns every node reachable from start, excluding start, in
// ascending index order.
func (g *TaskGraph) downstreamOf(start int) []int {
	seen := make([]bool, len(g.nodes))
	seen[start] = true
	queue := slices.Clone(g.outgoing[start])
	var out []int
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		queue = append(queue, g.outgoing[u]...)
	}
	slices.Sort(out)
	return out
}
