package dag

import (
	"sort"
	"time"

	"bioweaver/internal/core"
)

// GraphResult summarizes one execution of a graph.
type GraphResult struct {
	GraphHash GraphHash

	// FinalState is the terminal state of each node by name.
	FinalState ExecutionState

	// ExecutionOrder lists the tasks in the order they were started. Up to
	// date and skipped tasks never start.
	ExecutionOrder []string

	TaskHashes map[string]core.TaskHash
	Stdout     map[string][]byte
	Stderr     map[string][]byte
	ExitCode   map[string]int
	Duration   map[string]time.Duration
}

// Succeeded reports whether every task completed or was up to date.
func (r *GraphResult) Succeeded() bool {
	for _, st := range r.FinalState {
		if !IsSuccessful(st) {
			return false
		}
	}
	return true
}

// Failed returns the names of failed tasks, sorted.
func (r *GraphResult) Failed() []string { return r.inState(TaskFailed) }

// Skipped returns the names of tasks skipped because of an upstream failure, sorted.
func (r *GraphResult) Skipped() []string { return r.inState(TaskSkipped) }

// Counts tallies tasks per final state.
func (r *GraphResult) Counts() map[TaskState]int {
	out := make(map[TaskState]int)
	for _, st := range r.FinalState {
		out[st]++
	}
	return out
}

func (r *GraphResult) inState(want TaskState) []string {
	var out []string
	for name, st := range r.FinalState {
		if st == want {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// collector accumulates per-node results while the executor runs. It is only
// touched by the coordinating goroutine.
type collector struct {
	order    []string
	hashes   map[string]core.TaskHash
	stdout   map[string][]byte
	stderr   map[string][]byte
	exit     map[string]int
	duration map[string]time.Duration
}

func newCollector(n int) *collector {
	return &collector{
		order:    make([]string, 0, n),
		hashes:   make(map[string]core.TaskHash, n),
		stdout:   make(map[string][]byte, n),
		stderr:   make(map[string][]byte, n),
		exit:     make(map[string]int, n),
		duration: make(map[string]time.Duration, n),
	}
}

func (c *collector) record(name string, res *NodeResult, elapsed time.Duration) {
	c.hashes[name] = res.Hash
	c.stdout[name] = res.Stdout
	c.stderr[name] = res.Stderr
	c.exit[name] = res.ExitCode
	if !res.FromCache {
		c.duration[name] = elapsed
	}
}

func (c *collector) result(g *TaskGraph, final ExecutionState) *GraphResult {
	return &GraphResult{
		GraphHash:      g.Hash(),
		FinalState:     final,
		ExecutionOrder: c.order,
		TaskHashes:     c.hashes,
		Stdout:         c.stdout,
		Stderr:         c.stderr,
		ExitCode:       c.exit,
		Duration:       c.duration,
	}
}
