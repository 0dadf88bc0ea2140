package dag

import "bioweaver/internal/core"

// GraphHash is the deterministic identity of a TaskGraph, independent of the
// order tasks were declared in.
type GraphHash string

// TaskDefHash is the identity of a task declaration: its command template,
// resolved argv, dependencies, targets and env. It orders nodes canonically
// and feeds the GraphHash; it is not the execution identity (core.TaskHash),
// which also covers dependency fingerprints on disk.
type TaskDefHash string

// Edge represents a dependency relation: To runs only after From succeeds.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TaskNode is an immutable node in the TaskGraph.
type TaskNode struct {
	Name           string
	Task           core.Task
	DefinitionHash TaskDefHash
	canonicalIndex int
}

// CanonicalIndex returns the node's deterministic position in the graph's canonical ordering.
func (n *TaskNode) CanonicalIndex() int { return n.canonicalIndex }

// String returns the hash as a hex string.
func (h GraphHash) String() string { return string(h) }

// String returns the string representation of the TaskDefHash.
func (h TaskDefHash) String() string { return string(h) }
