package dependency

import (
	"slices"
)

// Node represents a runtime unit (service, installable unit, ...) together
// with its dependency list.
type Node[K comparable] struct {
	ID        K
	DependsOn []K
}

// Graph answers dependency queries over nodes keyed by K. Edges may point at
// IDs that are not (yet) nodes; such targets are reported by Missing and are
// still tracked by Dependents, so a late-arriving node finds the nodes that
// were waiting for it.
//
// The graph should be a Directed Acyclic Graph. WouldCycle lets callers reject
// an insertion before it happens; the graph itself does not enforce it.
//
// Graph is *not* thread-safe by itself; callers must synchronise if they
// write concurrently.
type Graph[K comparable] struct {
	nodes      map[K]*Node[K]
	dependents map[K]map[K]struct{}
	compare    func(a, b K) int
}

// New returns an empty graph. compare gives every query result a stable order.
func New[K comparable](compare func(a, b K) int) *Graph[K] {
	return &Graph[K]{
		nodes:      make(map[K]*Node[K]),
		dependents: make(map[K]map[K]struct{}),
		compare:    compare,
	}
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph[K]) AddNode(n Node[K]) {
	if old, ok := g.nodes[n.ID]; ok {
		g.unlink(old)
	}
	// Copy to avoid external mutations; duplicate edges collapse into one
	copied := Node[K]{ID: n.ID}
	seen := make(map[K]bool, len(n.DependsOn))
	for _, dep := range n.DependsOn {
		if !seen[dep] {
			seen[dep] = true
			copied.DependsOn = append(copied.DependsOn, dep)
		}
	}
	g.nodes[n.ID] = &copied
	for _, dep := range copied.DependsOn {
		set, ok := g.dependents[dep]
		if !ok {
			set = make(map[K]struct{})
			g.dependents[dep] = set
		}
		set[n.ID] = struct{}{}
	}
}

// RemoveNode deletes a node and its outgoing edges. Edges from other nodes to
// id remain, turning id into a missing dependency of those nodes.
func (g *Graph[K]) RemoveNode(id K) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	g.unlink(n)
	delete(g.nodes, id)
}

func (g *Graph[K]) unlink(n *Node[K]) {
	for _, dep := range n.DependsOn {
		if set, ok := g.dependents[dep]; ok {
			delete(set, n.ID)
			if len(set) == 0 {
				delete(g.dependents, dep)
			}
		}
	}
}

// Has reports whether id is a node.
func (g *Graph[K]) Has(id K) bool {
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int {
	return len(g.nodes)
}

// IDs returns all node IDs in stable order.
func (g *Graph[K]) IDs() []K {
	ids := make([]K, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, g.compare)
	return ids
}

// Dependencies returns a slice of immediate dependency IDs for the given node.
func (g *Graph[K]) Dependencies(id K) []K {
	if n, ok := g.nodes[id]; ok {
		return slices.Clone(n.DependsOn)
	}
	return nil
}

// Dependents returns all node IDs that have a direct dependency on id, whether
// or not id itself is a node.
func (g *Graph[K]) Dependents(id K) []K {
	set := g.dependents[id]
	res := make([]K, 0, len(set))
	for dep := range set {
		res = append(res, dep)
	}
	slices.SortFunc(res, g.compare)
	return res
}

// Missing returns the dependencies of id that are not nodes.
func (g *Graph[K]) Missing(id K) []K {
	var res []K
	for _, dep := range g.Dependencies(id) {
		if !g.Has(dep) {
			res = append(res, dep)
		}
	}
	return res
}

// WouldCycle reports the cycle that adding a node with the given
// dependencies would close, or nil. The returned path starts and ends at id.
func (g *Graph[K]) WouldCycle(id K, dependsOn []K) []K {
	for _, dep := range dependsOn {
		if dep == id {
			return []K{id, id}
		}
		if path := g.pathTo(dep, id, make(map[K]bool)); path != nil {
			return append([]K{id}, path...)
		}
	}
	return nil
}

// pathTo returns a dependency path from 'from' to 'to' (inclusive), or nil.
func (g *Graph[K]) pathTo(from, to K, visited map[K]bool) []K {
	if from == to {
		return []K{to}
	}
	if visited[from] {
		return nil
	}
	visited[from] = true
	n, ok := g.nodes[from]
	if !ok {
		return nil
	}
	for _, dep := range n.DependsOn {
		if path := g.pathTo(dep, to, visited); path != nil {
			return append([]K{from}, path...)
		}
	}
	return nil
}

// TopologicalOrder returns the nodes ordered so that every node comes after
// all of its dependencies (Kahn's algorithm). Ties are broken by tieBreak, or
// by the graph's compare function when tieBreak is nil. Nodes that sit on or
// behind a cycle cannot be ordered and are returned in cyclic instead. Edges
// to missing nodes are ignored.
func (g *Graph[K]) TopologicalOrder(tieBreak func(a, b K) int) (ordered []K, cyclic []K) {
	if tieBreak == nil {
		tieBreak = g.compare
	}

	pending := make(map[K]int, len(g.nodes))
	for id, n := range g.nodes {
		count := 0
		for _, dep := range n.DependsOn {
			if g.Has(dep) {
				count++
			}
		}
		pending[id] = count
	}

	var ready []K
	for id, count := range pending {
		if count == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		slices.SortFunc(ready, tieBreak)
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)
		delete(pending, next)

		for dependent := range g.dependents[next] {
			if _, ok := pending[dependent]; !ok {
				continue
			}
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	for id := range pending {
		cyclic = append(cyclic, id)
	}
	slices.SortFunc(cyclic, g.compare)
	return ordered, cyclic
}
