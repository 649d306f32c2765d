// Package dag provides a directed graph of table names. It backs the
// table-level views of a lineage trace and the project model graph, with
// cycle detection, topological ordering and level grouping.
package dag

import (
	"fmt"
	"maps"
	"slices"
)

// Node is a vertex of the graph.
type Node struct {
	// ID is the table name.
	ID string
	// Data holds caller data, such as the lineage node kind or a model.
	Data any
}

// Graph is a directed graph where an edge from A to B means B reads A.
type Graph struct {
	nodes      map[string]*Node
	downstream map[string]map[string]struct{} // table -> tables reading it
	upstream   map[string]map[string]struct{} // table -> tables it reads
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		downstream: make(map[string]map[string]struct{}),
		upstream:   make(map[string]map[string]struct{}),
	}
}

// AddNode adds a node, or replaces the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if n, ok := g.nodes[id]; ok {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
	g.downstream[id] = make(map[string]struct{})
	g.upstream[id] = make(map[string]struct{})
}

// AddEdge records that to reads from. Both nodes must exist.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("node %q does not exist", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("node %q does not exist", to)
	}
	if from == to {
		return fmt.Errorf("self-loop detected: %s", from)
	}
	g.downstream[from][to] = struct{}{}
	g.upstream[to][from] = struct{}{}
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Upstream returns the sorted tables id reads directly.
func (g *Graph) Upstream(id string) []string {
	return sortedKeys(g.upstream[id])
}

// Downstream returns the sorted tables reading id directly.
func (g *Graph) Downstream(id string) []string {
	return sortedKeys(g.downstream[id])
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, set := range g.downstream {
		n += len(set)
	}
	return n
}

// Cycle returns one cycle as a closed path (first == last), or nil when the
// graph is acyclic.
func (g *Graph) Cycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		state[id] = active
		stack = append(stack, id)
		for _, next := range g.Downstream(id) {
			switch state[next] {
			case active:
				start := slices.Index(stack, next)
				return append(slices.Clone(stack[start:]), next)
			case unvisited:
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		if state[id] == unvisited {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort returns IDs with every table after the tables it reads.
// Ties are broken by name.
func (g *Graph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, nil
}

// Levels groups IDs so that level 0 reads nothing in the graph and level N
// reads only tables from lower levels. Each level is sorted.
func (g *Graph) Levels() ([][]string, error) {
	if cycle := g.Cycle(); cycle != nil {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}

	level := make(map[string]int, len(g.nodes))
	var depth func(id string) int
	depth = func(id string) int {
		if l, ok := level[id]; ok {
			return l
		}
		l := 0
		for up := range g.upstream[id] {
			l = max(l, depth(up)+1)
		}
		level[id] = l
		return l
	}

	var levels [][]string
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		l := depth(id)
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], id)
	}
	return levels, nil
}

// Ancestors returns every table id reads, directly or transitively, sorted.
func (g *Graph) Ancestors(id string) []string {
	seen := make(map[string]struct{})
	var walk func(string)
	walk = func(cur string) {
		for up := range g.upstream[cur] {
			if _, ok := seen[up]; ok {
				continue
			}
			seen[up] = struct{}{}
			walk(up)
		}
	}
	walk(id)
	return sortedKeys(seen)
}

// Roots returns the tables that read nothing in the graph.
func (g *Graph) Roots() []string {
	var out []string
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		if len(g.upstream[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Leaves returns the tables nothing in the graph reads.
func (g *Graph) Leaves() []string {
	var out []string
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		if len(g.downstream[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return []string{}
	}
	return slices.Sorted(maps.Keys(set))
}
