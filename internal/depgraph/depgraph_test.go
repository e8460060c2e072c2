package depgraph

import (
	"reflect"
	"testing"
)

func TestTopologicalSortSimpleChain(t *testing.T) {
	g := New[string](true)
	g.AddEdge("B", "A") // B depends on A

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}

	if !reflect.DeepEqual(order, []string{"A", "B"}) {
		t.Fatalf("order = %v, want [A B]", order)
	}
}

func TestIsCyclicDetectsCycle(t *testing.T) {
	g := New[string](true)
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")

	if g.IsCyclic() == nil {
		t.Fatal("expected cycle to be detected")
	}
}

func TestIsCyclicAcyclic(t *testing.T) {
	g := New[string](true)
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")

	if g.IsCyclic() != nil {
		t.Fatal("expected no cycle")
	}
}

func TestTopologicalSortRejectsCycle(t *testing.T) {
	g := New[string](true)
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")

	if _, err := g.TopologicalSort(); err == nil {
		t.Fatal("expected error for cyclic graph")
	}
}

func TestPathExists(t *testing.T) {
	g := New[string](true)
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")

	if !g.PathExists("A", "C") {
		t.Fatal("expected path A -> C to exist")
	}

	if g.PathExists("C", "A") {
		t.Fatal("did not expect path C -> A")
	}
}

func TestDedupEdges(t *testing.T) {
	g := New[string](true)
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	if got := len(g.Outgoing("A")); got != 1 {
		t.Fatalf("expected deduped edge, got %d edges", got)
	}
}

func TestNonDedupEdgesAccumulate(t *testing.T) {
	g := New[string](false)
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	if got := len(g.Outgoing("A")); got != 2 {
		t.Fatalf("expected 2 edges for non-deduping graph, got %d", got)
	}
}

func TestRemoveNode(t *testing.T) {
	g := New[string](true)
	g.AddEdge("A", "B")
	g.RemoveNode("B")

	if g.HasNode("B") {
		t.Fatal("expected B removed")
	}

	if len(g.Outgoing("A")) != 0 {
		t.Fatal("expected A's edge to B removed")
	}
}

func TestIncomingOutgoing(t *testing.T) {
	g := New[string](true)
	g.AddEdge("A", "B")
	g.AddEdge("C", "B")

	in := g.Incoming("B")
	if len(in) != 2 {
		t.Fatalf("expected 2 incoming edges, got %d", len(in))
	}

	out := g.Outgoing("A")
	if len(out) != 1 || out[0] != "B" {
		t.Fatalf("Outgoing(A) = %v, want [B]", out)
	}
}
