package archcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityError.AtLeast(SeverityWarning))
	assert.True(t, SeverityError.AtLeast(SeverityError))
	assert.True(t, SeverityWarning.AtLeast(SeverityWarning))
	assert.False(t, SeverityWarning.AtLeast(SeverityError))
}

func TestLayerOfLongestPrefixWins(t *testing.T) {
	rules := Rules{
		Layers: []Layer{
			{Name: "service", Paths: []string{"internal/service"}},
			{Name: "billing", Paths: []string{"internal/service/billing"}},
		},
	}

	assert.Equal(t, "service", rules.LayerOf("internal/service"))
	assert.Equal(t, "service", rules.LayerOf("internal/service/scan"))
	assert.Equal(t, "billing", rules.LayerOf("internal/service/billing"))
	assert.Equal(t, "billing", rules.LayerOf("internal/service/billing/invoice"))
	assert.Equal(t, "", rules.LayerOf("internal/handler"))

	// Prefix matching is on path segments, not raw strings.
	assert.Equal(t, "", rules.LayerOf("internal/services"))
}

func TestAllows(t *testing.T) {
	rules := Rules{
		Layers: []Layer{
			{Name: "handler", Paths: []string{"internal/handler"}},
			{Name: "service", Paths: []string{"internal/service"}},
			{Name: "repository", Paths: []string{"internal/repository"}},
		},
		Allow: map[string][]string{
			"handler": {"service"},
			"service": {"repository"},
		},
	}

	assert.True(t, rules.allows("handler", "handler"), "same-layer imports are always allowed")
	assert.True(t, rules.allows("handler", "service"))
	assert.True(t, rules.allows("service", "repository"))
	assert.False(t, rules.allows("handler", "repository"))
	assert.False(t, rules.allows("repository", "service"))
}

func TestMatchesForbidden(t *testing.T) {
	tests := []struct {
		importPath string
		pattern    string
		want       bool
	}{
		{"github.com/lib/pq", "github.com/lib/pq", true},
		{"github.com/lib/pq/oid", "github.com/lib/pq", false},
		{"github.com/lib/pq", "github.com/lib/pq/...", true},
		{"github.com/lib/pq/oid", "github.com/lib/pq/...", true},
		{"github.com/lib/pqcrypto", "github.com/lib/pq/...", false},
		{"database/sql", "github.com/lib/pq/...", false},
	}

	for _, tt := range tests {
		t.Run(tt.importPath+" vs "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesForbidden(tt.importPath, tt.pattern))
		})
	}
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())

	tests := []struct {
		name    string
		rules   Rules
		wantErr string
	}{
		{
			name:    "empty layer name",
			rules:   Rules{Layers: []Layer{{Name: "", Paths: []string{"internal/a"}}}},
			wantErr: "empty name",
		},
		{
			name: "duplicate layer name",
			rules: Rules{Layers: []Layer{
				{Name: "service", Paths: []string{"internal/service"}},
				{Name: "service", Paths: []string{"internal/services"}},
			}},
			wantErr: "duplicate layer",
		},
		{
			name: "allow references undefined source layer",
			rules: Rules{
				Layers: []Layer{{Name: "service", Paths: []string{"internal/service"}}},
				Allow:  map[string][]string{"handler": {"service"}},
			},
			wantErr: "undefined layer",
		},
		{
			name: "allow references undefined target layer",
			rules: Rules{
				Layers: []Layer{{Name: "service", Paths: []string{"internal/service"}}},
				Allow:  map[string][]string{"service": {"repository"}},
			},
			wantErr: "undefined layer",
		},
		{
			name:    "forbidden with empty pattern",
			rules:   Rules{Forbidden: []ForbiddenImport{{Pattern: ""}}},
			wantErr: "empty pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `layers:
  - name: domain
    paths: ["internal/domain"]
  - name: service
    paths: ["internal/service"]
allow:
  service: ["domain"]
forbidden:
  - pattern: "github.com/lib/pq/..."
    reason: "use pgx"
    severity: warning
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	require.Len(t, rules.Layers, 2)
	assert.Equal(t, "domain", rules.Layers[0].Name)
	assert.Equal(t, []string{"internal/domain"}, rules.Layers[0].Paths)
	assert.Equal(t, []string{"domain"}, rules.Allow["service"])

	require.Len(t, rules.Forbidden, 1)
	assert.Equal(t, "github.com/lib/pq/...", rules.Forbidden[0].Pattern)
	assert.Equal(t, "use pgx", rules.Forbidden[0].Reason)
	assert.Equal(t, SeverityWarning, rules.Forbidden[0].Severity)
}

func TestLoadRulesRejectsInvalidRuleset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `layers:
  - name: service
    paths: ["internal/service"]
allow:
  handler: ["service"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadRules(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined layer")
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
