package dag

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"bioweaver/internal/core"
)

func TestGraphConstruction_SingleNode(t *testing.T) {
	g, err := NewTaskGraph([]core.Task{mkTask(t, "A", []string{"in.txt"}, []string{"out.txt"})}, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if g.Hash() == "" {
		t.Fatalf("expected non-empty graph hash")
	}
	if got := g.TopologicalOrder(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("unexpected topo order: %v", got)
	}
	if got := g.ExternalInputs(); !reflect.DeepEqual(got, []string{"in.txt"}) {
		t.Fatalf("unexpected external inputs: %v", got)
	}
}

func TestGraphConstruction_DependencyChain(t *testing.T) {
	g := chain(t)
	if got := g.TopologicalOrder(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("expected A, B, C, got %v", got)
	}
	for name, want := range map[string]int{"A": 0, "B": 1, "C": 2} {
		if d, ok := g.Depth(name); !ok || d != want {
			t.Fatalf("depth(%s): got %d want %d", name, d, want)
		}
	}
	if got := g.Upstream("C"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("unexpected upstream of C: %v", got)
	}
	if got := g.ExternalInputs(); !reflect.DeepEqual(got, []string{"in"}) {
		t.Fatalf("only the first input is external, got %v", got)
	}
}

func TestGraphConstruction_DiamondDepth(t *testing.T) {
	// A -> B, A -> C, B -> D, C -> D, plus a shortcut A -> D.
	g, err := NewTaskGraph(
		[]core.Task{
			mkTask(t, "A", nil, []string{"a"}),
			mkTask(t, "B", nil, []string{"b"}),
			mkTask(t, "C", nil, []string{"c"}),
			mkTask(t, "D", nil, []string{"d"}),
		},
		[]Edge{{From: "A", To: "B"}, {From: "A", To: "C"}, {From: "B", To: "D"}, {From: "C", To: "D"}, {From: "A", To: "D"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d, _ := g.Depth("D"); d != 2 {
		t.Fatalf("depth is the longest path, expected 2 got %d", d)
	}
}

func TestGraphHash_InvariantToInsertionOrder(t *testing.T) {
	a := mkTask(t, "A", []string{"in"}, []string{"a.out"})
	b := mkTask(t, "B", []string{"a.out"}, []string{"b.out"})

	g1, err := NewTaskGraph([]core.Task{a, b}, []Edge{{From: "A", To: "B"}})
	if err != nil {
		t.Fatal(err)
	}
	g2, err := NewTaskGraph([]core.Task{b, a}, []Edge{{From: "A", To: "B"}})
	if err != nil {
		t.Fatal(err)
	}
	if g1.Hash() != g2.Hash() {
		t.Fatalf("expected equal hashes, got %s and %s", g1.Hash(), g2.Hash())
	}

	changed := mkTask(t, "B", []string{"a.out"}, []string{"b2.out"})
	g3, err := NewTaskGraph([]core.Task{a, changed}, []Edge{{From: "A", To: "B"}})
	if err != nil {
		t.Fatal(err)
	}
	if g3.Hash() == g1.Hash() {
		t.Fatal("changing a target must change the graph hash")
	}
}

func TestGraphConstruction_RejectsBadEdges(t *testing.T) {
	tasks := []core.Task{mkTask(t, "A", nil, []string{"a"}), mkTask(t, "B", nil, []string{"b"})}

	cases := map[string][]Edge{
		"unknown":   {{From: "A", To: "Z"}},
		"duplicate": {{From: "A", To: "B"}, {From: "A", To: "B"}},
		"self-loop": {{From: "A", To: "A"}},
	}
	for name, edges := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTaskGraph(tasks, edges)
			if !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("expected ErrInvalidGraph, got %v", err)
			}
		})
	}

	if _, err := NewTaskGraph(nil, nil); !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph for empty graph, got %v", err)
	}
	if _, err := NewTaskGraph([]core.Task{tasks[0], tasks[0]}, nil); !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph for duplicate names, got %v", err)
	}
}

func TestCycleDetection_IndirectCycleReportsWitness(t *testing.T) {
	_, err := NewTaskGraph(
		[]core.Task{
			mkTask(t, "A", nil, []string{"a"}),
			mkTask(t, "B", nil, []string{"b"}),
			mkTask(t, "C", nil, []string{"c"}),
		},
		[]Edge{{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: "A"}},
	)
	if !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected ErrCycleFound, got %v", err)
	}
	for _, name := range []string{"A", "B", "C"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("cycle witness should name %s: %v", name, err)
		}
	}
}
