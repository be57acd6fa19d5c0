package schema

import (
	"fmt"
	"sort"
	"strings"
)

// RelationshipGraph is the graph of entity references: an edge runs from
// an entity to every target of its relationship fields. Cycles are legal;
// the graph is used for reporting and for a stable dependency order.
type RelationshipGraph struct {
	nodes []string
	edges map[string][]string
}

// NewRelationshipGraph builds the graph of a finalized registry
func NewRelationshipGraph(r *Registry) *RelationshipGraph {
	g := &RelationshipGraph{edges: make(map[string][]string)}
	for _, e := range r.Entities() {
		g.nodes = append(g.nodes, e.Name)
		seen := make(map[string]bool)
		for _, f := range e.RelationFields() {
			target := f.TargetEntity()
			if target == nil || seen[target.Name] {
				continue
			}
			seen[target.Name] = true
			g.edges[e.Name] = append(g.edges[e.Name], target.Name)
		}
	}
	return g
}

// DetectCycles returns every reference cycle, each starting at its
// lexically smallest entity
func (g *RelationshipGraph) DetectCycles() [][]string {
	var cycles [][]string
	seenCycle := make(map[string]bool)
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if onStack[next] {
				start := 0
				for i, n := range path {
					if n == next {
						start = i
						break
					}
				}
				cycle := rotate(append([]string(nil), path[start:]...))
				key := strings.Join(cycle, ",")
				if !seenCycle[key] {
					seenCycle[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !visited[next] {
				dfs(next, path)
			}
		}
		onStack[node] = false
	}

	nodes := append([]string(nil), g.nodes...)
	sort.Strings(nodes)
	for _, node := range nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}
	return cycles
}

func rotate(cycle []string) []string {
	lo := 0
	for i, n := range cycle {
		if n < cycle[lo] {
			lo = i
		}
	}
	out := make([]string, 0, len(cycle))
	return append(append(out, cycle[lo:]...), cycle[:lo]...)
}

// TopologicalSort returns entities with their targets first. Entities on a
// cycle are appended in name order once nothing else can be placed.
func (g *RelationshipGraph) TopologicalSort() []string {
	outDegree := make(map[string]int, len(g.nodes))
	reverse := make(map[string][]string)
	for _, node := range g.nodes {
		for _, target := range g.edges[node] {
			if target == node {
				continue
			}
			outDegree[node]++
			reverse[target] = append(reverse[target], node)
		}
	}

	placed := make(map[string]bool, len(g.nodes))
	var result []string
	for len(result) < len(g.nodes) {
		var ready []string
		for _, node := range g.nodes {
			if !placed[node] && outDegree[node] == 0 {
				ready = append(ready, node)
			}
		}
		if len(ready) == 0 {
			// break a cycle at its smallest remaining member
			for _, node := range g.nodes {
				if !placed[node] && (len(ready) == 0 || node < ready[0]) {
					ready = []string{node}
				}
			}
		}
		sort.Strings(ready)
		for _, node := range ready {
			placed[node] = true
			result = append(result, node)
			for _, dependent := range reverse[node] {
				outDegree[dependent]--
			}
		}
	}
	return result
}

// GetDependencies returns the direct relationship targets of an entity
func (g *RelationshipGraph) GetDependencies(entity string) []string {
	return append([]string(nil), g.edges[entity]...)
}

// GetDependents returns the entities referencing the given entity
func (g *RelationshipGraph) GetDependents(entity string) []string {
	var dependents []string
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if dep == entity {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

// FormatCycles formats cycles for display
func FormatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}
