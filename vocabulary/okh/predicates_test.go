package okh

import (
	"testing"

	"github.com/c360studio/semstreams/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicatesRegistered(t *testing.T) {
	for _, pred := range Predicates() {
		t.Run(pred, func(t *testing.T) {
			meta := vocabulary.GetPredicateMetadata(pred)
			require.NotNil(t, meta)
			assert.NotEmpty(t, meta.Description)
			assert.NotEmpty(t, meta.StandardIRI)
		})
	}
}

func TestPredicateIRIs(t *testing.T) {
	tests := []struct {
		predicate   string
		expectedIRI string
	}{
		{EntityType, RDFType},
		{EntityLabel, RDFSLabel},
		{SPDXLicense, Namespace + "spdxLicense"},
		{ReadinessLevel, Namespace + "technologyReadinessLevel"},
		{HasBoM, Namespace + "hasBoM"},
		{FileURL, Namespace + "fileUrl"},
		{SubPropertyOf, RDFSSubPropertyOf},
	}

	for _, tt := range tests {
		t.Run(tt.predicate, func(t *testing.T) {
			meta := vocabulary.GetPredicateMetadata(tt.predicate)
			require.NotNil(t, meta)
			assert.Equal(t, tt.expectedIRI, meta.StandardIRI)
		})
	}
}

func TestLoad(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)
	assert.Equal(t, len(Predicates()), m.Len())
	assert.Equal(t, Namespace+"versionOf", m.IRI(VersionOf))
	assert.Empty(t, m.IRI("okh.module.nonexistent"))
	assert.Equal(t, VersionOf, m.Name(Namespace+"versionOf"))
	assert.Empty(t, m.Name(Namespace+"nonexistent"))
}

func TestDetailPredicatesResolve(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)
	for key, pred := range DetailPredicates {
		assert.Equal(t, Namespace+key, m.IRI(pred), key)
	}
}

func TestSplit(t *testing.T) {
	ns, local, ok := Split(Namespace + "spdxLicense")
	assert.True(t, ok)
	assert.Equal(t, Namespace, ns)
	assert.Equal(t, "spdxLicense", local)

	ns, local, ok = Split(RDFType)
	assert.True(t, ok)
	assert.Equal(t, RDF, ns)
	assert.Equal(t, "type", local)

	_, _, ok = Split("https://github.com/a/loom/1.0/Loom")
	assert.False(t, ok)
}

func TestOTLR(t *testing.T) {
	assert.Equal(t, OTLRNamespace+"OTLR-5", OTLR("OTLR-5"))
}
