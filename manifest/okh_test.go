package manifest

import (
	"errors"
	"testing"

	"github.com/c360studio/krawl/licenses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer() *Normalizer {
	catalog := licenses.NewCatalog(
		[]string{"CC-BY-SA-4.0", "CERN-OHL-S-2.0", "MIT", "CC-BY-NC-4.0"},
		[]string{"CC-BY-NC-4.0"},
	)
	return NewNormalizer(catalog)
}

func TestNormalizeOKH_Scenario(t *testing.T) {
	doc := map[string]any{
		"name":    "Loom",
		"repo":    "https://github.com/a/loom",
		"version": "1.0",
		"license": map[string]any{"hardware": "CC-BY-SA-4.0"},
	}

	m, err := testNormalizer().NormalizeOKH(doc)
	require.NoError(t, err)
	require.NoError(t, Validate(m))

	assert.Equal(t, "Loom", m.Name)
	assert.Equal(t, "CC-BY-SA-4.0", m.SPDXLicense)
	assert.Empty(t, m.AlternateLicense)
	assert.Equal(t, "  ", m.Function)
	assert.Equal(t, "1.0", m.OKHV)
	assert.Empty(t, m.ReadinessLevel)
	_, stillThere := doc[FieldSPDXLicense]
	assert.False(t, stillThere, "input document must not be modified")
}

func TestNormalizeOKH_LegacyKeys(t *testing.T) {
	doc := map[string]any{
		"title":                  "Open Loom",
		"documentation-home":     "https://github.com/a/loom",
		"archive-download":       "https://github.com/a/loom/archive/v1.zip",
		"description":            "A loom.",
		"intended-use":           "Weaving.",
		"health-safety-notice":   "Sharp edges.",
		"licensor":               map[string]any{"name": "Jens", "email": "j@example.org"},
		"making-instructions":    map[string]any{"path": "docs/make.md", "title": "Make"},
		"operating-instructions": map[string]any{"path": "docs/use.md"},
	}

	m, err := testNormalizer().NormalizeOKH(doc)
	require.NoError(t, err)

	assert.Equal(t, "Open Loom", m.Name)
	assert.Equal(t, "https://github.com/a/loom", m.Repo)
	assert.Equal(t, "https://github.com/a/loom/archive/v1.zip", m.Release)
	assert.Equal(t, "A loom. Weaving. Sharp edges.", m.Function)
	assert.Equal(t, "Jens", m.Licensor)
	assert.Equal(t, "docs/make.md", m.ManufacturingInstructions)
	assert.Equal(t, "docs/use.md", m.UserManual)
}

func TestNormalizeOKH_ReadinessLevel(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want string
	}{
		{"made independently wins", map[string]any{"made-independently": true, "made": true, "development-stage": "prototype"}, OTLR5},
		{"made", map[string]any{"made": true}, OTLR4},
		{"prototype", map[string]any{"development-stage": "prototype"}, OTLR4},
		{"made false falls through to stage", map[string]any{"made": false, "development-stage": "prototype"}, OTLR4},
		{"other stage", map[string]any{"development-stage": "production"}, ""},
		{"no hints", map[string]any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.doc["repo"] = "https://github.com/a/b"
			m, err := testNormalizer().NormalizeOKH(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.ReadinessLevel)
		})
	}
}

func TestNormalizeOKH_License(t *testing.T) {
	tests := []struct {
		name          string
		license       any
		wantSPDX      string
		wantAlternate string
	}{
		{"known hardware", map[string]any{"hardware": "CERN-OHL-S-2.0", "documentation": "MIT"}, "CERN-OHL-S-2.0", ""},
		{"unknown hardware", map[string]any{"hardware": "My Own License", "documentation": "MIT"}, "", "My Own License"},
		{"documentation fallback", map[string]any{"documentation": "MIT"}, "MIT", ""},
		{"unknown documentation", map[string]any{"documentation": "GFDL-ish"}, "", "GFDL-ish"},
		{"plain string", "MIT", "MIT", ""},
		{"none", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := map[string]any{"repo": "https://github.com/a/b"}
			if tt.license != nil {
				doc["license"] = tt.license
			}
			m, err := testNormalizer().NormalizeOKH(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSPDX, m.SPDXLicense)
			assert.Equal(t, tt.wantAlternate, m.AlternateLicense)
			assert.False(t, m.SPDXLicense != "" && m.AlternateLicense != "", "never both")
		})
	}
}

func TestNormalizeOKH_NonV1SkipsMapping(t *testing.T) {
	doc := map[string]any{
		"okhv":  "2.0",
		"title": "Old Title",
		"name":  "Loom",
		"repo":  "https://github.com/a/loom",
		"made":  true,
	}
	m, err := testNormalizer().NormalizeOKH(doc)
	require.NoError(t, err)
	assert.Equal(t, "2.0", m.OKHV)
	assert.Equal(t, "Loom", m.Name)
	assert.Empty(t, m.ReadinessLevel)
	assert.Empty(t, m.Function)
}

func TestNormalizeOKH_Nil(t *testing.T) {
	_, err := testNormalizer().NormalizeOKH(nil)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     map[string]any
		wantErr bool
	}{
		{"string repo", map[string]any{"repo": "https://github.com/a/b"}, false},
		{"missing repo", map[string]any{"name": "x"}, true},
		{"numeric repo", map[string]any{"repo": 42}, true},
		{"table repo", map[string]any{"repo": map[string]any{"url": "https://github.com/a/b"}}, true},
		{"empty repo", map[string]any{"repo": ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := testNormalizer().NormalizeOKH(tt.doc)
			require.NoError(t, err)
			err = Validate(m)
			if tt.wantErr {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, FieldRepo, verr.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, Validate(nil))
}

func TestNormalize_Dispatch(t *testing.T) {
	n := testNormalizer()

	m, err := n.Normalize(Raw{Kind: SourceOKH, Document: map[string]any{"repo": "https://github.com/a/b"}})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/a/b", m.Repo)

	_, err = n.Normalize(Raw{Kind: "gitlab"})
	assert.Error(t, err)
}
