package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/qindex/internal/ir"
)

// CycleWarning represents a cycle in the type graph.
//
// Composite cycles are warnings, not errors: a composite may contain
// itself through a property (a tree node holding child nodes). The schema
// registers each member once, and only finite values are ever written.
// Inheritance cycles are errors and surface through CompileModel and
// ValidateModel.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Node", "Node"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles reports composite types that contain themselves,
// directly or through other composites, at any collection depth.
//
// The algorithm:
//  1. Build composite → composite graph from property final types
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(m *ir.Model) []CycleWarning {
	warnings := []CycleWarning{}
	if m == nil || len(m.Composites) == 0 {
		return warnings
	}

	graph := make(typeGraph)
	for _, c := range m.Composites {
		graph[c.Name] = []string{}
		for _, p := range c.Properties {
			if final := p.Type.Final(); final.Kind == ir.TypeComposite {
				graph[c.Name] = append(graph[c.Name], final.Name)
			}
		}
	}

	for _, scc := range graph.cycles() {
		path := reconstructCyclePath(scc, graph)
		warnings = append(warnings, CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("Recursive composite detected: %s", strings.Join(path, " → ")),
			Level:   "info",
		})
	}
	return warnings
}

// inheritanceCycles reports extends cycles among declared types.
func inheritanceCycles(decls map[string]*typeDecl) []CycleWarning {
	graph := make(typeGraph)
	for name, d := range decls {
		graph[name] = append([]string{}, d.extends...)
	}
	return extendsWarnings(graph)
}

// supertypeCycles reports Supertypes cycles among model entities.
func supertypeCycles(m *ir.Model) []CycleWarning {
	graph := make(typeGraph)
	for _, e := range m.Entities {
		graph[e.Name] = append([]string{}, e.Supertypes...)
	}
	return extendsWarnings(graph)
}

func extendsWarnings(graph typeGraph) []CycleWarning {
	var out []CycleWarning
	for _, scc := range graph.cycles() {
		path := reconstructCyclePath(scc, graph)
		out = append(out, CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("inheritance cycle: %s", strings.Join(path, " → ")),
			Level:   "error",
		})
	}
	return out
}

// typeGraph maps a type name to the type names it refers to.
type typeGraph map[string][]string

// cycles returns every SCC of size > 1 and every self-loop, each rotated
// to start at its smallest name, in sorted order.
func (g typeGraph) cycles() [][]string {
	var out [][]string
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			sort.Strings(scc)
			out = append(out, scc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph typeGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Single-node SCCs without self-loops are NOT cycles. Nodes are visited
// in sorted order so results are stable.
func tarjanSCC(graph typeGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath builds a cycle path from an SCC, starting at its
// first member and following edges within the SCC back to the start.
func reconstructCyclePath(scc []string, graph typeGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
