// Package depgraph implements a directed dependency graph: node-add,
// edge-add, neighbor iteration, path existence, cycle detection, and a
// Kahn's-algorithm topological sort. A single generic implementation
// backs both the per-commit LoadGraph and the process-wide
// GlobalRegistry's dependency graph, parameterized on whether edges to
// the same target dedup (the global graph does; a per-commit graph need
// not, since a node may gain multiple edges to the same dependency
// without behavioral impact).
package depgraph

import "fmt"

// Graph is a directed graph over nodes of type K. Edges point from a node
// to its dependencies (outgoing = things it imports from).
type Graph[K comparable] struct {
	nodes map[K]bool
	out   map[K][]K
	in    map[K][]K
	// dedupEdges controls whether AddEdge is a no-op for an edge that
	// already exists; true for the global dependency graph, false for a
	// per-commit LoadGraph.
	dedupEdges bool
}

// New constructs an empty Graph. dedupEdges should be true for the global
// registry graph, false for a per-commit load graph.
func New[K comparable](dedupEdges bool) *Graph[K] {
	return &Graph[K]{
		nodes:      make(map[K]bool),
		out:        make(map[K][]K),
		in:         make(map[K][]K),
		dedupEdges: dedupEdges,
	}
}

// AddNode registers a node with no edges, if not already present.
func (g *Graph[K]) AddNode(n K) {
	if g.nodes[n] {
		return
	}

	g.nodes[n] = true
}

// HasNode reports whether n has been added.
func (g *Graph[K]) HasNode(n K) bool {
	return g.nodes[n]
}

// RemoveNode deletes n and every edge touching it.
func (g *Graph[K]) RemoveNode(n K) {
	delete(g.nodes, n)

	for _, dep := range g.out[n] {
		g.in[dep] = removeAll(g.in[dep], n)
	}

	delete(g.out, n)

	for _, dependent := range g.in[n] {
		g.out[dependent] = removeAll(g.out[dependent], n)
	}

	delete(g.in, n)
}

// AddEdge adds a "from depends on to" edge, creating both endpoints if
// absent. When the graph dedups edges, a repeated AddEdge(from, to) is a
// no-op; otherwise duplicate edges accumulate.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)

	if g.dedupEdges && containsEdge(g.out[from], to) {
		return
	}

	g.out[from] = append(g.out[from], to)
	g.in[to] = append(g.in[to], from)
}

// Outgoing returns the dependencies of n (what n imports from).
func (g *Graph[K]) Outgoing(n K) []K {
	return append([]K(nil), g.out[n]...)
}

// Incoming returns the dependents of n (what imports from n).
func (g *Graph[K]) Incoming(n K) []K {
	return append([]K(nil), g.in[n]...)
}

// Nodes returns all nodes in unspecified order.
func (g *Graph[K]) Nodes() []K {
	out := make([]K, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}

	return out
}

// PathExists reports whether there is a directed path from u to v
// (following outgoing/dependency edges).
func (g *Graph[K]) PathExists(u, v K) bool {
	if u == v {
		return true
	}

	visited := make(map[K]bool)

	var dfs func(K) bool

	dfs = func(cur K) bool {
		if cur == v {
			return true
		}

		if visited[cur] {
			return false
		}

		visited[cur] = true

		for _, next := range g.out[cur] {
			if dfs(next) {
				return true
			}
		}

		return false
	}

	return dfs(u)
}

// CycleError is returned by IsCyclic / TopologicalSort when a cycle is found.
type CycleError[K comparable] struct {
	Cycle []K
}

func (e *CycleError[K]) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Cycle)
}

// IsCyclic runs a DFS with visited/on-stack marks and returns the first
// cycle found, or nil if the graph is acyclic.
func (g *Graph[K]) IsCyclic() *CycleError[K] {
	visited := make(map[K]bool)
	onStack := make(map[K]bool)
	path := make([]K, 0, len(g.nodes))

	var dfs func(K) []K

	dfs = func(n K) []K {
		visited[n] = true
		onStack[n] = true
		path = append(path, n)

		for _, dep := range g.out[n] {
			if !visited[dep] {
				if cyc := dfs(dep); cyc != nil {
					return cyc
				}
			} else if onStack[dep] {
				start := 0

				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}

				cyc := append([]K(nil), path[start:]...)

				return append(cyc, dep)
			}
		}

		onStack[n] = false
		path = path[:len(path)-1]

		return nil
	}

	for n := range g.nodes {
		if !visited[n] {
			if cyc := dfs(n); cyc != nil {
				return &CycleError[K]{Cycle: cyc}
			}
		}
	}

	return nil
}

// TopologicalSort orders nodes so dependencies come before dependents: a
// module is loadable once everything earlier in the order has loaded.
// Uses Kahn's algorithm.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if cyc := g.IsCyclic(); cyc != nil {
		return nil, cyc
	}

	inDegree := make(map[K]int, len(g.nodes))
	for n := range g.nodes {
		inDegree[n] = 0
	}

	for _, deps := range g.out {
		for _, dep := range deps {
			inDegree[dep]++
		}
	}

	queue := make([]K, 0)

	for n, d := range inDegree {
		if d == 0 {
			queue = append(queue, n)
		}
	}

	result := make([]K, 0, len(g.nodes))

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		result = append(result, cur)

		for _, dep := range g.out[cur] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &CycleError[K]{Cycle: nil}
	}

	reversed := make([]K, len(result))
	for i, n := range result {
		reversed[len(result)-1-i] = n
	}

	return reversed, nil
}

func containsEdge[K comparable](list []K, target K) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}

	return false
}

func removeAll[K comparable](list []K, target K) []K {
	out := list[:0]

	for _, v := range list {
		if v == target {
			continue
		}

		out = append(out, v)
	}

	return out
}
