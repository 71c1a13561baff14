// Package archcheck validates a Go module tree against architecture
// standards: layer rules (who may import whom), forbidden imports, and
// dependency cycles.
//
// The analysis is source-only. Import clauses are parsed straight out of
// the files (no build, no type checking), which keeps scans fast and makes
// them work on trees that don't currently compile. Those are exactly the
// trees that most need an architecture check.
package archcheck

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Package is one package directory in the scanned module.
type Package struct {
	// ImportPath is the full import path (module path + relative dir).
	ImportPath string

	// RelPath is the module-relative directory with forward slashes;
	// "." for the module root. Layer rules match against this.
	RelPath string

	// Imports lists every unique import across the package's files,
	// external ones included (forbidden-import rules need those).
	Imports []string
}

// Graph is the import graph of a scanned module.
type Graph struct {
	// ModulePath is the module path declared in go.mod.
	ModulePath string

	// Packages is keyed by import path.
	Packages map[string]*Package
}

// skippedDirs are directory names that never contain first-party packages
// worth analyzing.
var skippedDirs = map[string]bool{
	"vendor":       true,
	"testdata":     true,
	"node_modules": true,
}

// LoadGraph walks the module tree rooted at root and builds its import
// graph.
//
// Conventions honored while walking:
//   - hidden and underscore-prefixed directories are skipped (the Go
//     toolchain ignores them too)
//   - vendor/, testdata/, node_modules/ are skipped
//   - _test.go files are skipped: test-only imports aren't architecture
//   - nested modules (a directory with its own go.mod) are skipped
func LoadGraph(root string) (*Graph, error) {
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil, err
	}

	graph := &Graph{
		ModulePath: modulePath,
		Packages:   make(map[string]*Package),
	}

	fset := token.NewFileSet()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if skippedDirs[name] || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			// A nested go.mod means a separate module; its architecture is
			// its own problem.
			if _, statErr := os.Stat(filepath.Join(path, "go.mod")); statErr == nil {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			return nil
		}

		file, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			// A file that doesn't even parse can't contribute imports.
			// Skip it rather than failing the whole scan; broken files show
			// up in compilation long before they show up here.
			return nil
		}

		rel, relErr := filepath.Rel(root, filepath.Dir(path))
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		pkg := graph.ensurePackage(rel)
		for _, imp := range file.Imports {
			importPath, unquoteErr := strconv.Unquote(imp.Path.Value)
			if unquoteErr != nil {
				continue
			}
			pkg.addImport(importPath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking module tree: %w", err)
	}

	// Deterministic import order keeps reports and tests stable.
	for _, pkg := range graph.Packages {
		sort.Strings(pkg.Imports)
	}

	return graph, nil
}

// ensurePackage returns the Package for a module-relative dir, creating it
// on first sight.
func (g *Graph) ensurePackage(rel string) *Package {
	importPath := g.ModulePath
	if rel != "." {
		importPath = g.ModulePath + "/" + rel
	}

	if pkg, ok := g.Packages[importPath]; ok {
		return pkg
	}

	pkg := &Package{
		ImportPath: importPath,
		RelPath:    rel,
	}
	g.Packages[importPath] = pkg
	return pkg
}

func (p *Package) addImport(importPath string) {
	for _, existing := range p.Imports {
		if existing == importPath {
			return
		}
	}
	p.Imports = append(p.Imports, importPath)
}

// InternalImports returns the subset of p's imports that live inside the
// scanned module. These are the edges layer rules and cycle detection care
// about.
func (g *Graph) InternalImports(p *Package) []string {
	var internal []string
	for _, imp := range p.Imports {
		if imp == g.ModulePath || strings.HasPrefix(imp, g.ModulePath+"/") {
			internal = append(internal, imp)
		}
	}
	return internal
}

// readModulePath extracts the module path from a go.mod file.
//
// Scanning for the `module` directive line is all we need; pulling in a
// full go.mod parser for one declaration would be the tail wagging the dog.
func readModulePath(gomodPath string) (string, error) {
	f, err := os.Open(gomodPath)
	if err != nil {
		return "", fmt.Errorf("scan root is not a Go module (missing go.mod): %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no module directive found in %s", gomodPath)
}
