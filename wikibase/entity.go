package wikibase

import (
	"sort"

	"github.com/c360studio/krawl/rdf"
	"github.com/c360studio/krawl/vocabulary/okh"
)

// Property datatypes used when a missing property is created.
const (
	DatatypeItem   = "wikibase-item"
	DatatypeURL    = "url"
	DatatypeString = "string"
)

// Statement is one property/value pair of an entity. Property is a property
// label until the knowledge base assigns an id.
type Statement struct {
	Property string `json:"property"`
	Value    string `json:"value"`

	// Datatype is used only when the property has to be created.
	Datatype string `json:"-"`

	// Ref is the graph subject the value refers to, for references to other
	// entities of the same graph. Value is replaced by the remote id of Ref
	// before the statement is sent.
	Ref string `json:"-"`
}

// Entity is one graph subject prepared for reconciliation.
type Entity struct {
	Subject    string
	Label      string
	Module     bool
	Statements []Statement
}

// Entities splits the graph subjects into items and modules. Items come first
// in the returned slice, ordered so that every item follows the items it
// refers to; modules come last. Every entity's first statement binds
// reconcileProp to the subject IRI.
func Entities(g *rdf.Graph, reconcileProp string) []Entity {
	byID := make(map[string]Entity)
	var items, modules []string
	for _, subject := range g.Subjects() {
		e := newEntity(g, subject, reconcileProp)
		byID[subject] = e
		if e.Module {
			modules = append(modules, subject)
		} else {
			items = append(items, subject)
		}
	}

	out := make([]Entity, 0, len(byID))
	visited := make(map[string]bool, len(items))
	var visit func(subject string)
	visit = func(subject string) {
		if visited[subject] {
			return
		}
		visited[subject] = true
		e := byID[subject]
		for _, s := range e.Statements {
			if dep, ok := byID[s.Ref]; ok && !dep.Module {
				visit(s.Ref)
			}
		}
		out = append(out, e)
	}
	for _, subject := range items {
		visit(subject)
	}
	sort.Strings(modules)
	for _, subject := range modules {
		out = append(out, byID[subject])
	}
	return out
}

func newEntity(g *rdf.Graph, subject, reconcileProp string) Entity {
	e := Entity{
		Subject:    subject,
		Module:     g.HasType(subject, okh.ClassModule),
		Statements: []Statement{{Property: reconcileProp, Value: subject, Datatype: DatatypeURL}},
	}

	for _, t := range g.About(subject) {
		if t.Predicate == okh.RDFSLabel {
			e.Label = t.Object.Value
			continue
		}
		prop, ok := propertyName(g, t.Predicate)
		if !ok {
			continue
		}
		s := Statement{Property: prop, Value: t.Object.Value, Datatype: DatatypeString}
		if t.Object.IsIRI() {
			s.Datatype = DatatypeURL
			if g.InBase(t.Object.Value) {
				s.Datatype = DatatypeItem
				s.Ref = t.Object.Value
			}
		}
		e.Statements = append(e.Statements, s)
	}

	if e.Label == "" {
		e.Label = g.LocalName(subject)
	}
	return e
}

// propertyName maps a predicate to the label of its knowledge base property.
// OKH and RDF predicates use their local name, as do the functional metadata
// predicates declared in the graph's own namespace. Other predicates are not
// pushed.
func propertyName(g *rdf.Graph, predicate string) (string, bool) {
	if g.InBase(predicate) {
		return g.LocalName(predicate), true
	}
	ns, local, ok := okh.Split(predicate)
	if !ok || (ns != okh.Namespace && ns != okh.RDF) {
		return "", false
	}
	return local, true
}
