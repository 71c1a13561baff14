package archcheck

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Severity grades a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// rank orders severities so thresholds can compare them.
func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.rank() >= threshold.rank()
}

// Layer names a set of module-relative path prefixes.
//
// A package belongs to the layer with the longest matching prefix, so a
// specific layer ("internal/service/billing") can carve packages out of a
// broader one ("internal/service").
type Layer struct {
	Name  string   `koanf:"name"`
	Paths []string `koanf:"paths"`
}

// ForbiddenImport bans an import path pattern module-wide.
type ForbiddenImport struct {
	// Pattern matches an import path exactly, or as a prefix when it ends
	// with "/...".
	Pattern string `koanf:"pattern"`

	// Reason is included in the violation message so the report explains
	// itself instead of sending readers to a wiki.
	Reason string `koanf:"reason"`

	// Severity defaults to error when empty.
	Severity Severity `koanf:"severity"`
}

// Rules is a complete architecture ruleset.
type Rules struct {
	// Layers assigns packages to named layers by path prefix. Packages
	// matching no layer are unconstrained by the allow matrix.
	Layers []Layer `koanf:"layers"`

	// Allow is the import matrix: layer name -> layer names it may import.
	// Imports within a layer are always allowed. Any cross-layer import not
	// listed here is a violation.
	Allow map[string][]string `koanf:"allow"`

	// Forbidden bans specific import paths everywhere.
	Forbidden []ForbiddenImport `koanf:"forbidden"`
}

// DefaultRules encodes the Clean Architecture direction this codebase
// itself follows: dependencies point inward.
//
//	handler -> service -> repository -> domain
//
// Infrastructure (config, logging, db plumbing) is importable from
// anywhere; the domain layer imports nothing.
func DefaultRules() Rules {
	return Rules{
		Layers: []Layer{
			{Name: "domain", Paths: []string{"internal/domain", "internal/models"}},
			{Name: "repository", Paths: []string{"internal/repository", "internal/repositories"}},
			{Name: "service", Paths: []string{"internal/service", "internal/services"}},
			{Name: "handler", Paths: []string{"internal/handler", "internal/handlers", "internal/router", "internal/controllers"}},
			{Name: "infrastructure", Paths: []string{
				"internal/config", "internal/logger", "internal/database",
				"internal/server", "internal/middleware", "internal/errs",
				"internal/validation", "internal/sqlerr", "internal/lib",
				"internal/infrastructure",
			}},
		},
		Allow: map[string][]string{
			"handler":        {"service", "domain", "infrastructure"},
			"service":        {"repository", "domain", "infrastructure"},
			"repository":     {"domain", "infrastructure"},
			"domain":         {},
			"infrastructure": {"domain", "infrastructure"},
		},
	}
}

// LoadRules reads a YAML ruleset from path.
//
// Example file:
//
//	layers:
//	  - name: domain
//	    paths: ["internal/domain"]
//	  - name: service
//	    paths: ["internal/service"]
//	allow:
//	  service: ["domain"]
//	forbidden:
//	  - pattern: "github.com/lib/pq/..."
//	    reason: "use pgx"
//	    severity: warning
func LoadRules(path string) (Rules, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Rules{}, fmt.Errorf("loading rules file %s: %w", path, err)
	}

	var rules Rules
	if err := k.Unmarshal("", &rules); err != nil {
		return Rules{}, fmt.Errorf("unmarshaling rules file %s: %w", path, err)
	}

	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

// Validate rejects rulesets that reference undefined layers. Catching a
// typo here beats a matrix entry that silently never matches.
func (r Rules) Validate() error {
	known := make(map[string]bool, len(r.Layers))
	for _, layer := range r.Layers {
		if layer.Name == "" {
			return fmt.Errorf("layer with empty name")
		}
		if known[layer.Name] {
			return fmt.Errorf("duplicate layer name %q", layer.Name)
		}
		known[layer.Name] = true
	}

	for from, targets := range r.Allow {
		if !known[from] {
			return fmt.Errorf("allow matrix references undefined layer %q", from)
		}
		for _, to := range targets {
			if !known[to] {
				return fmt.Errorf("allow matrix for %q references undefined layer %q", from, to)
			}
		}
	}

	for _, f := range r.Forbidden {
		if f.Pattern == "" {
			return fmt.Errorf("forbidden import with empty pattern")
		}
	}
	return nil
}

// LayerOf resolves the layer for a module-relative package path, using
// longest-prefix-wins. Empty string means no layer claims the package.
func (r Rules) LayerOf(relPath string) string {
	bestName := ""
	bestLen := -1
	for _, layer := range r.Layers {
		for _, prefix := range layer.Paths {
			if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
				if len(prefix) > bestLen {
					bestName = layer.Name
					bestLen = len(prefix)
				}
			}
		}
	}
	return bestName
}

// allows reports whether the matrix permits fromLayer to import toLayer.
// Same-layer imports are always allowed.
func (r Rules) allows(fromLayer, toLayer string) bool {
	if fromLayer == toLayer {
		return true
	}
	for _, allowed := range r.Allow[fromLayer] {
		if allowed == toLayer {
			return true
		}
	}
	return false
}

// matchesForbidden reports whether an import path matches a forbidden
// pattern ("x/y" exact, or "x/..." prefix).
func matchesForbidden(importPath, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/..."); ok {
		return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
	}
	return importPath == pattern
}
