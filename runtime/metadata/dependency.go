package metadata

import (
	"fmt"
	"sort"
)

// DependencyOptions configures dependency graph queries
type DependencyOptions struct {
	Depth   int      // Maximum traversal depth (0 = unlimited)
	Reverse bool     // Reverse traversal (find what depends on this)
	Kinds   []string // Filter by relationship kind (e.g., ["MANY_TO_ONE"])
}

// BuildDependencyGraph constructs the entity dependency graph from metadata
func BuildDependencyGraph(meta *Metadata) *DependencyGraph {
	graph := &DependencyGraph{
		Nodes: make(map[string]*DependencyNode),
		Edges: make([]DependencyEdge, 0),
	}
	if meta == nil {
		return graph
	}

	for _, entity := range meta.Entities {
		graph.Nodes[entity.Name] = &DependencyNode{ID: entity.Name, Name: entity.Name}
	}
	for _, entity := range meta.Entities {
		for _, field := range entity.Fields {
			rel := field.Relationship
			if rel == nil {
				continue
			}
			graph.Edges = append(graph.Edges, DependencyEdge{
				From:         entity.Name,
				To:           rel.Target,
				Field:        field.Name,
				Relationship: rel.Kind,
			})
			if _, exists := graph.Nodes[rel.Target]; !exists {
				graph.Nodes[rel.Target] = &DependencyNode{ID: rel.Target, Name: rel.Target}
			}
		}
	}
	graph.index()
	return graph
}

// index rebuilds the adjacency lists
func (g *DependencyGraph) index() {
	g.outgoingEdges = make(map[string][]DependencyEdge)
	g.incomingEdges = make(map[string][]DependencyEdge)
	for _, edge := range g.Edges {
		g.outgoingEdges[edge.From] = append(g.outgoingEdges[edge.From], edge)
		g.incomingEdges[edge.To] = append(g.incomingEdges[edge.To], edge)
	}
}

// Subgraph extracts the part of the graph reachable from start using BFS
func (g *DependencyGraph) Subgraph(start string, opts DependencyOptions) (*DependencyGraph, error) {
	if _, ok := g.Nodes[start]; !ok {
		return nil, fmt.Errorf("entity not found: %s", start)
	}
	if g.outgoingEdges == nil {
		g.index()
	}

	result := &DependencyGraph{
		Nodes: map[string]*DependencyNode{start: g.Nodes[start]},
		Edges: make([]DependencyEdge, 0),
	}
	kinds := make(map[string]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kinds[k] = true
	}

	visited := map[string]bool{start: true}
	queue := []depthNode{{id: start, depth: 0}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges := g.outgoingEdges[current.id]
		if opts.Reverse {
			edges = g.incomingEdges[current.id]
		}
		for _, edge := range edges {
			if len(kinds) > 0 && !kinds[edge.Relationship] {
				continue
			}
			result.Edges = append(result.Edges, edge)

			next := edge.To
			if opts.Reverse {
				next = edge.From
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			result.Nodes[next] = g.Nodes[next]
			if opts.Depth == 0 || current.depth+1 < opts.Depth {
				queue = append(queue, depthNode{id: next, depth: current.depth + 1})
			}
		}
	}
	result.index()
	return result, nil
}

// depthNode tracks a node and its depth during traversal
type depthNode struct {
	id    string
	depth int
}

// DetectCycles returns the relationship cycles of the graph, each closed by
// repeating its first entity. Self references count as cycles.
func (g *DependencyGraph) DetectCycles() [][]string {
	if g.outgoingEdges == nil {
		g.index()
	}
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)
		for _, edge := range g.outgoingEdges[id] {
			switch {
			case onStack[edge.To]:
				for i, n := range path {
					if n == edge.To {
						cycle := append(append([]string(nil), path[i:]...), edge.To)
						cycles = append(cycles, cycle)
						break
					}
				}
			case !visited[edge.To]:
				visit(edge.To)
			}
		}
		path = path[:len(path)-1]
		onStack[id] = false
	}

	for _, id := range ids {
		if !visited[id] {
			visit(id)
		}
	}
	return cycles
}
