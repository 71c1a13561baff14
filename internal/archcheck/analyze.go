package archcheck

import (
	"fmt"
	"sort"
	"strings"
)

// Violation is one rule breach found during analysis.
type Violation struct {
	// Rule identifies the check: "layer", "forbidden_import", or "cycle".
	Rule string `json:"rule"`

	Severity Severity `json:"severity"`

	// FromPkg is the importing package; ToPkg the imported one. For cycle
	// violations ToPkg is empty and the members live in the message.
	FromPkg string `json:"from_pkg"`
	ToPkg   string `json:"to_pkg"`

	// Message is human-readable and self-contained.
	Message string `json:"message"`
}

// Report is the complete result of one analysis pass.
type Report struct {
	ModulePath string      `json:"module_path"`
	Packages   int         `json:"packages"`
	Edges      int         `json:"edges"`
	Violations []Violation `json:"violations"`

	// Cycles lists each dependency cycle as its sorted member packages.
	Cycles [][]string `json:"cycles"`
}

// CountAtLeast counts violations at or above the given severity.
func (r *Report) CountAtLeast(threshold Severity) int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity.AtLeast(threshold) {
			n++
		}
	}
	return n
}

// Analyze runs every check against the graph and returns a report with
// violations sorted deterministically (rule, then from, then to).
func Analyze(graph *Graph, rules Rules) *Report {
	report := &Report{
		ModulePath: graph.ModulePath,
		Packages:   len(graph.Packages),
	}

	checkLayers(graph, rules, report)
	checkForbidden(graph, rules, report)
	checkCycles(graph, report)

	sort.Slice(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.FromPkg != b.FromPkg {
			return a.FromPkg < b.FromPkg
		}
		return a.ToPkg < b.ToPkg
	})

	return report
}

// checkLayers enforces the allow matrix over every internal edge.
func checkLayers(graph *Graph, rules Rules, report *Report) {
	for _, pkg := range graph.Packages {
		fromLayer := rules.LayerOf(pkg.RelPath)

		for _, imp := range graph.InternalImports(pkg) {
			report.Edges++

			// Unlayered packages are unconstrained: the matrix can only
			// judge edges where both ends have a layer.
			if fromLayer == "" {
				continue
			}
			target, ok := graph.Packages[imp]
			if !ok {
				continue
			}
			toLayer := rules.LayerOf(target.RelPath)
			if toLayer == "" {
				continue
			}

			if !rules.allows(fromLayer, toLayer) {
				report.Violations = append(report.Violations, Violation{
					Rule:     "layer",
					Severity: SeverityError,
					FromPkg:  pkg.ImportPath,
					ToPkg:    imp,
					Message: fmt.Sprintf("%s layer %q must not import %s layer %q",
						pkg.ImportPath, fromLayer, imp, toLayer),
				})
			}
		}
	}
}

// checkForbidden scans every import (internal and external) against the
// forbidden patterns.
func checkForbidden(graph *Graph, rules Rules, report *Report) {
	for _, pkg := range graph.Packages {
		for _, imp := range pkg.Imports {
			for _, forbidden := range rules.Forbidden {
				if !matchesForbidden(imp, forbidden.Pattern) {
					continue
				}

				severity := forbidden.Severity
				if severity == "" {
					severity = SeverityError
				}

				message := fmt.Sprintf("%s imports forbidden package %s", pkg.ImportPath, imp)
				if forbidden.Reason != "" {
					message += " (" + forbidden.Reason + ")"
				}

				report.Violations = append(report.Violations, Violation{
					Rule:     "forbidden_import",
					Severity: severity,
					FromPkg:  pkg.ImportPath,
					ToPkg:    imp,
					Message:  message,
				})
			}
		}
	}
}

// checkCycles finds strongly connected components of the internal import
// graph using Tarjan's algorithm. Any component with more than one member
// (or a self-import) is a dependency cycle.
func checkCycles(graph *Graph, report *Report) {
	// Stable node order makes the discovered cycles deterministic.
	nodes := make([]string, 0, len(graph.Packages))
	for path := range graph.Packages {
		nodes = append(nodes, path)
	}
	sort.Strings(nodes)

	t := &tarjan{
		graph:   graph,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, node := range nodes {
		if _, visited := t.index[node]; !visited {
			t.strongconnect(node)
		}
	}

	for _, scc := range t.sccs {
		if len(scc) < 2 && !selfImports(graph, scc[0]) {
			continue
		}

		sort.Strings(scc)
		report.Cycles = append(report.Cycles, scc)
		report.Violations = append(report.Violations, Violation{
			Rule:     "cycle",
			Severity: SeverityError,
			FromPkg:  scc[0],
			Message:  "dependency cycle: " + strings.Join(scc, " -> "),
		})
	}
}

func selfImports(graph *Graph, pkgPath string) bool {
	pkg := graph.Packages[pkgPath]
	for _, imp := range graph.InternalImports(pkg) {
		if imp == pkgPath {
			return true
		}
	}
	return false
}

// tarjan holds the bookkeeping for one SCC computation.
type tarjan struct {
	graph   *Graph
	counter int
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	sccs    [][]string
}

func (t *tarjan) strongconnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph.InternalImports(t.graph.Packages[v]) {
		if _, ok := t.graph.Packages[w]; !ok {
			continue
		}
		if _, visited := t.index[w]; !visited {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	// v is the root of an SCC: pop the stack down to v.
	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// Run is the one-call entry point: load the graph at root, apply rules
// (built-ins when rulesFile is empty), analyze.
func Run(root, rulesFile string) (*Report, error) {
	rules := DefaultRules()
	if rulesFile != "" {
		loaded, err := LoadRules(rulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	graph, err := LoadGraph(root)
	if err != nil {
		return nil, err
	}

	return Analyze(graph, rules), nil
}
