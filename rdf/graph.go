package rdf

import (
	"sort"
	"strings"

	"github.com/c360studio/krawl/vocabulary/okh"
)

// Graph is a set of triples sharing one base namespace.
type Graph struct {
	// Base is the namespace every manifest-local entity lives in.
	Base    string
	triples map[Triple]struct{}
}

// NewGraph creates an empty graph.
func NewGraph(base string) *Graph {
	return &Graph{Base: base, triples: make(map[Triple]struct{})}
}

// Add inserts a triple. Duplicates are ignored.
func (g *Graph) Add(subject, predicate string, object Term) {
	g.triples[Triple{Subject: subject, Predicate: predicate, Object: object}] = struct{}{}
}

// Has reports whether the graph contains the triple.
func (g *Graph) Has(subject, predicate string, object Term) bool {
	_, ok := g.triples[Triple{Subject: subject, Predicate: predicate, Object: object}]
	return ok
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	return len(g.triples)
}

// Triples returns all triples sorted by subject, predicate and object.
func (g *Graph) Triples() []Triple {
	out := make([]Triple, 0, len(g.triples))
	for t := range g.triples {
		out = append(out, t)
	}
	sortTriples(out)
	return out
}

// About returns the sorted triples whose subject is subject.
func (g *Graph) About(subject string) []Triple {
	var out []Triple
	for t := range g.triples {
		if t.Subject == subject {
			out = append(out, t)
		}
	}
	sortTriples(out)
	return out
}

// Subjects returns the distinct subjects in sorted order.
func (g *Graph) Subjects() []string {
	seen := make(map[string]struct{})
	for t := range g.triples {
		seen[t.Subject] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasType reports whether subject is typed class.
func (g *Graph) HasType(subject, class string) bool {
	return g.Has(subject, okh.RDFType, IRI(class))
}

// Label returns the rdfs:label of subject, or "".
func (g *Graph) Label(subject string) string {
	for _, t := range g.About(subject) {
		if t.Predicate == okh.RDFSLabel && !t.Object.IsIRI() {
			return t.Object.Value
		}
	}
	return ""
}

// InBase reports whether iri names an entity of this graph's namespace.
func (g *Graph) InBase(iri string) bool {
	return g.Base != "" && strings.HasPrefix(iri, g.Base)
}

// LocalName returns the part of iri after the base namespace.
func (g *Graph) LocalName(iri string) string {
	return strings.TrimPrefix(iri, g.Base)
}

func sortTriples(ts []Triple) {
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		if a.Object.Kind != b.Object.Kind {
			return a.Object.Kind < b.Object.Kind
		}
		if a.Object.Value != b.Object.Value {
			return a.Object.Value < b.Object.Value
		}
		return a.Object.Datatype < b.Object.Datatype
	})
}
