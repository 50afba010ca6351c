package okh

import (
	"fmt"
	"strings"

	"github.com/c360studio/semstreams/vocabulary"
)

// Map resolves logical predicate names to IRIs.
type Map struct {
	iris  map[string]string
	names map[string]string
}

// Load resolves every predicate registered by this package through the
// vocabulary registry. It fails when a predicate is unregistered, lacks an IRI,
// points outside the known namespaces, or shares its IRI with another predicate.
func Load() (*Map, error) {
	m := &Map{
		iris:  make(map[string]string, len(registrations)),
		names: make(map[string]string, len(registrations)),
	}
	owners := make(map[string]string, len(registrations))

	var problems []string
	for _, name := range Predicates() {
		meta := vocabulary.GetPredicateMetadata(name)
		if meta == nil || meta.StandardIRI == "" {
			problems = append(problems, fmt.Sprintf("%s: no IRI registered", name))
			continue
		}
		iri := meta.StandardIRI
		if _, _, ok := Split(iri); !ok {
			problems = append(problems, fmt.Sprintf("%s: IRI %s outside known namespaces", name, iri))
			continue
		}
		if other, dup := owners[iri]; dup {
			problems = append(problems, fmt.Sprintf("%s: IRI %s already used by %s", name, iri, other))
			continue
		}
		owners[iri] = name
		m.iris[name] = iri
		m.names[iri] = name
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("okh vocabulary invalid: %s", strings.Join(problems, "; "))
	}
	return m, nil
}

// IRI returns the IRI of a logical predicate name, or "" if unknown.
func (m *Map) IRI(name string) string {
	return m.iris[name]
}

// Name returns the logical predicate name of an IRI, or "" if unknown.
func (m *Map) Name(iri string) string {
	return m.names[iri]
}

// Len returns the number of resolved predicates.
func (m *Map) Len() int {
	return len(m.iris)
}
