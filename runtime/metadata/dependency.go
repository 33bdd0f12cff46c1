package metadata

import (
	"fmt"
	"sort"
)

// Edge relationships in a DependencyGraph.
const (
	RelationImports  = "imports"  // component -> component
	RelationExternal = "external" // component -> package
)

// DependencyGraph captures the import relationships between components.
type DependencyGraph struct {
	Nodes map[string]*DependencyNode `json:"nodes"` // All nodes indexed by ID
	Edges []DependencyEdge           `json:"edges"` // All dependency edges
}

// DependencyNode represents a single node in the dependency graph.
type DependencyNode struct {
	ID       string   `json:"id"`                 // Component path or package specifier
	Type     string   `json:"type"`               // component, package
	Name     string   `json:"name"`               // Display name
	Category Category `json:"category,omitempty"` // Empty for packages
}

// DependencyEdge represents a dependency relationship between two nodes.
type DependencyEdge struct {
	From         string `json:"from"`         // Importing node ID
	To           string `json:"to"`           // Imported node ID
	Relationship string `json:"relationship"` // imports, external
}

// DependencyOptions configures dependency graph queries
type DependencyOptions struct {
	Depth   int      // Maximum traversal depth (0 = unlimited)
	Reverse bool     // Reverse traversal (find what depends on this)
	Types   []string // Filter by edge relationship
}

// FindDependents returns the components that import the component at path,
// ordered by path.
func (r *Registry) FindDependents(path string) []*ComponentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := map[string]bool{path: true}
	if m, ok := r.components[path]; ok && m.SourceFile != "" {
		targets[m.SourceFile] = true
	}

	var out []*ComponentMetadata
	for p, m := range r.components {
		if p == path {
			continue
		}
		if dependsOn(m, targets) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func dependsOn(m *ComponentMetadata, targets map[string]bool) bool {
	for _, d := range m.ResolvedDependencies {
		if targets[d] {
			return true
		}
	}
	for _, d := range m.Dependencies {
		if targets[d] {
			return true
		}
	}
	return false
}

// BuildDependencyGraph constructs the full import graph of the given
// components. Resolved dependencies point at the primary component of the
// imported file.
func BuildDependencyGraph(components []*ComponentMetadata) *DependencyGraph {
	graph := &DependencyGraph{
		Nodes: make(map[string]*DependencyNode),
		Edges: make([]DependencyEdge, 0),
	}

	byFile := make(map[string]string, len(components))
	for _, c := range components {
		graph.Nodes[c.Path] = &DependencyNode{
			ID:       c.Path,
			Type:     "component",
			Name:     c.Name,
			Category: c.Category,
		}
		if c.Path == c.SourceFile || c.SourceFile == "" {
			byFile[c.Path] = c.Path
		}
	}

	for _, c := range components {
		seen := make(map[string]bool)
		for _, dep := range c.ResolvedDependencies {
			target, ok := byFile[dep]
			if !ok || target == c.Path || seen[target] {
				continue
			}
			seen[target] = true
			graph.Edges = append(graph.Edges, DependencyEdge{From: c.Path, To: target, Relationship: RelationImports})
		}
		for _, ext := range c.ExternalDependencies {
			if _, exists := graph.Nodes[ext]; !exists {
				graph.Nodes[ext] = &DependencyNode{ID: ext, Type: "package", Name: ext}
			}
			graph.Edges = append(graph.Edges, DependencyEdge{From: c.Path, To: ext, Relationship: RelationExternal})
		}
	}

	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].From != graph.Edges[j].From {
			return graph.Edges[i].From < graph.Edges[j].From
		}
		return graph.Edges[i].To < graph.Edges[j].To
	})
	return graph
}

// QueryDependencies returns the subgraph reachable from path.
func (r *Registry) QueryDependencies(path string, opts DependencyOptions) (*DependencyGraph, error) {
	if _, ok := r.Get(path); !ok {
		return nil, fmt.Errorf("component not found: %s", path)
	}
	full := BuildDependencyGraph(r.GetAll())
	return extractSubgraph(full, path, opts), nil
}

// extractSubgraph extracts a subgraph using BFS traversal
func extractSubgraph(fullGraph *DependencyGraph, startNode string, opts DependencyOptions) *DependencyGraph {
	result := &DependencyGraph{
		Nodes: make(map[string]*DependencyNode),
		Edges: make([]DependencyEdge, 0),
	}

	visited := make(map[string]bool)
	queue := []depthNode{{id: startNode, depth: 0}}

	if node, exists := fullGraph.Nodes[startNode]; exists {
		result.Nodes[startNode] = node
	}
	visited[startNode] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var edges []DependencyEdge
		if opts.Reverse {
			edges = findIncomingEdges(fullGraph, current.id)
		} else {
			edges = findOutgoingEdges(fullGraph, current.id)
		}
		if len(opts.Types) > 0 {
			edges = filterEdgesByType(edges, opts.Types)
		}

		for _, edge := range edges {
			result.Edges = append(result.Edges, edge)

			nextNode := edge.To
			if opts.Reverse {
				nextNode = edge.From
			}
			if visited[nextNode] {
				continue
			}
			visited[nextNode] = true
			if node, exists := fullGraph.Nodes[nextNode]; exists {
				result.Nodes[nextNode] = node
			}
			if opts.Depth == 0 || current.depth+1 < opts.Depth {
				queue = append(queue, depthNode{id: nextNode, depth: current.depth + 1})
			}
		}
	}

	return result
}

// depthNode tracks a node and its depth during traversal
type depthNode struct {
	id    string
	depth int
}

func findOutgoingEdges(graph *DependencyGraph, nodeID string) []DependencyEdge {
	var result []DependencyEdge
	for _, edge := range graph.Edges {
		if edge.From == nodeID {
			result = append(result, edge)
		}
	}
	return result
}

func findIncomingEdges(graph *DependencyGraph, nodeID string) []DependencyEdge {
	var result []DependencyEdge
	for _, edge := range graph.Edges {
		if edge.To == nodeID {
			result = append(result, edge)
		}
	}
	return result
}

func filterEdgesByType(edges []DependencyEdge, types []string) []DependencyEdge {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	var result []DependencyEdge
	for _, edge := range edges {
		if typeSet[edge.Relationship] {
			result = append(result, edge)
		}
	}
	return result
}

// DetectCycles returns the import cycles of the graph. Each cycle lists its
// nodes and repeats the first node at the end.
func DetectCycles(graph *DependencyGraph) [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	ids := make([]string, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, nodeID := range ids {
		if !visited[nodeID] {
			findCycles(graph, nodeID, visited, recStack, nil, &cycles)
		}
	}
	return cycles
}

func findCycles(graph *DependencyGraph, nodeID string, visited, recStack map[string]bool, path []string, cycles *[][]string) {
	visited[nodeID] = true
	recStack[nodeID] = true
	path = append(path, nodeID)

	for _, edge := range graph.Edges {
		if edge.From != nodeID || edge.Relationship != RelationImports {
			continue
		}
		next := edge.To
		if recStack[next] {
			for i, n := range path {
				if n == next {
					cycle := append(append([]string(nil), path[i:]...), next)
					*cycles = append(*cycles, cycle)
					break
				}
			}
		} else if !visited[next] {
			findCycles(graph, next, visited, recStack, path, cycles)
		}
	}

	recStack[nodeID] = false
}
