package dag

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"bioweaver/internal/core"
)

type edgeIndex struct {
	from int
	to   int
}

// TaskGraph is an immutable, validated DAG of tasks.
//
// It is safe for concurrent read access.
type TaskGraph struct {
	nodesByName map[string]*TaskNode
	nodes       []*TaskNode // canonical order

	edges []edgeIndex // sorted

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int   // by canonical index
	depth    []int   // by canonical index (topological depth)

	externalInputs []string
	hash           GraphHash
}

// NewTaskGraph builds and validates a TaskGraph from tasks and explicit edges.
// Most callers use Builder, which derives the edges from shared paths.
//
// Validation runs immediately and rejects:
//   - empty or duplicate task names, and tasks that fail core validation
//   - edges referencing unknown tasks
//   - duplicate edges
//   - self-loops
//   - any cycle (direct or indirect)
func NewTaskGraph(tasks []core.Task, edges []Edge) (*TaskGraph, error) {
	if len(tasks) == 0 {
		return nil, invalidf("no tasks")
	}

	nodesByName := make(map[string]*TaskNode, len(tasks))
	nodes := make([]*TaskNode, 0, len(tasks))
	produced := make(map[string]struct{})

	for _, t := range tasks {
		if t.Name == "" {
			return nil, invalidf("task name is required")
		}
		if _, exists := nodesByName[t.Name]; exists {
			return nil, invalidf("duplicate task name: %q", t.Name)
		}
		if err := t.Validate(); err != nil {
			return nil, invalidf("%v", err)
		}
		node := &TaskNode{Name: t.Name, Task: t, DefinitionHash: computeTaskDefHash(t)}
		nodesByName[t.Name] = node
		nodes = append(nodes, node)
		for _, p := range t.Targets {
			produced[p] = struct{}{}
		}
	}

	// Canonical node order: definition hash, then name as a tie-breaker.
	sort.Slice(nodes, func(i, j int) bool {
		ai, aj := nodes[i], nodes[j]
		if ai.DefinitionHash != aj.DefinitionHash {
			return ai.DefinitionHash < aj.DefinitionHash
		}
		return ai.Name < aj.Name
	})
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	mapped := make([]edgeIndex, 0, len(edges))
	seen := make(map[edgeIndex]struct{}, len(edges))
	for _, e := range edges {
		fromNode, okFrom := nodesByName[e.From]
		toNode, okTo := nodesByName[e.To]
		if !okFrom {
			return nil, invalidf("edge references unknown task (from): %q", e.From)
		}
		if !okTo {
			return nil, invalidf("edge references unknown task (to): %q", e.To)
		}
		if fromNode.Name == toNode.Name {
			return nil, invalidf("self-loop: %q -> %q", e.From, e.To)
		}

		pair := edgeIndex{from: fromNode.canonicalIndex, to: toNode.canonicalIndex}
		if _, exists := seen[pair]; exists {
			return nil, invalidf("duplicate edge: %q -> %q", e.From, e.To)
		}
		seen[pair] = struct{}{}
		mapped = append(mapped, pair)
	}

	sort.Slice(mapped, func(i, j int) bool {
		a, b := mapped[i], mapped[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	indeg := make([]int, len(nodes))
	for _, e := range mapped {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		indeg[e.to]++
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
		sort.Ints(incoming[i])
	}

	external := make(map[string]struct{})
	for _, n := range nodes {
		for _, d := range n.Task.Depends {
			if _, ok := produced[d]; !ok {
				external[d] = struct{}{}
			}
		}
	}
	externalInputs := make([]string, 0, len(external))
	for p := range external {
		externalInputs = append(externalInputs, p)
	}
	sort.Strings(externalInputs)

	g := &TaskGraph{
		nodesByName:    nodesByName,
		nodes:          nodes,
		edges:          mapped,
		outgoing:       outgoing,
		incoming:       incoming,
		indeg:          indeg,
		externalInputs: externalInputs,
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}

	g.depth = g.computeDepth()
	g.hash = g.computeGraphHash()
	return g, nil
}

// Hash returns the stable identity for this graph.
func (g *TaskGraph) Hash() GraphHash { return g.hash }

// Len returns the number of tasks.
func (g *TaskGraph) Len() int { return len(g.nodes) }

// Node returns a node by name.
func (g *TaskGraph) Node(name string) (*TaskNode, bool) {
	n, ok := g.nodesByName[name]
	return n, ok
}

// Nodes returns the nodes in canonical order.
func (g *TaskGraph) Nodes() []*TaskNode {
	out := make([]*TaskNode, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the dependency edges as stable (From, To) name pairs in canonical order.
func (g *TaskGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.nodes[e.from].Name, To: g.nodes[e.to].Name})
	}
	return out
}

// Upstream returns the names of the tasks name directly depends on, sorted.
func (g *TaskGraph) Upstream(name string) []string {
	n, ok := g.nodesByName[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[n.canonicalIndex]))
	for _, p := range g.incoming[n.canonicalIndex] {
		out = append(out, g.nodes[p].Name)
	}
	sort.Strings(out)
	return out
}

// ExternalInputs returns the sorted dependency paths that no task produces.
// They must exist before the tasks consuming them can run.
func (g *TaskGraph) ExternalInputs() []string {
	out := make([]string, len(g.externalInputs))
	copy(out, g.externalInputs)
	return out
}

// Depth returns the length of the longest path from any root to the node.
func (g *TaskGraph) Depth(name string) (int, bool) {
	n, ok := g.nodesByName[name]
	if !ok {
		return 0, false
	}
	return g.depth[n.canonicalIndex], true
}

func (g *TaskGraph) computeDepth() []int {
	depth := make([]int, len(g.nodes))
	for _, u := range g.topoOrderIndices() {
		maxParent := 0
		for _, p := range g.incoming[u] {
			if cand := depth[p] + 1; cand > maxParent {
				maxParent = cand
			}
		}
		depth[u] = maxParent
	}
	return depth
}

// TopologicalOrder returns a deterministic topological ordering of task names.
//
// Since the graph is validated on construction, this method must not fail.
func (g *TaskGraph) TopologicalOrder() []string {
	order := g.topoOrderIndices()
	names := make([]string, 0, len(order))
	for _, idx := range order {
		names = append(names, g.nodes[idx].Name)
	}
	return names
}

func (g *TaskGraph) computeGraphHash() GraphHash {
	h := sha256.New()

	writeLen(h, len(g.nodes))
	for _, n := range g.nodes {
		writeString(h, string(n.DefinitionHash))
	}

	writeLen(h, len(g.edges))
	for _, e := range g.edges {
		writeLen(h, e.from)
		writeLen(h, e.to)
	}

	return GraphHash(hex.EncodeToString(h.Sum(nil)))
}
