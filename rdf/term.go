// Package rdf builds the triple graph of a normalized manifest.
//
// The graph is a set: adding a triple twice has no effect, and Triples always
// returns the same order for the same content. Building the graph of the same
// manifest twice therefore yields identical output, which keeps repeated
// pushes to the knowledge base idempotent.
package rdf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/c360studio/krawl/vocabulary/okh"
)

// TermKind distinguishes IRI references from literals.
type TermKind int

const (
	KindIRI TermKind = iota
	KindLiteral
)

// Literal datatypes other than plain strings.
const (
	XSDInteger = okh.XSD + "integer"
	XSDDouble  = okh.XSD + "double"
	XSDBoolean = okh.XSD + "boolean"
)

// Term is the object of a triple. Datatype is empty for IRIs and plain
// string literals.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
}

// IRI returns an IRI reference term.
func IRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// Literal returns a plain string literal.
func Literal(s string) Term {
	return Term{Kind: KindLiteral, Value: s}
}

// IsIRI reports whether the term is an IRI reference.
func (t Term) IsIRI() bool {
	return t.Kind == KindIRI
}

func (t Term) String() string {
	if t.IsIRI() {
		return "<" + t.Value + ">"
	}
	if t.Datatype != "" {
		return strconv.Quote(t.Value) + "^^<" + t.Datatype + ">"
	}
	return strconv.Quote(t.Value)
}

// Box turns a manifest value into a term. A string is an IRI reference if and
// only if it starts with "http"; every other value is a literal.
func Box(v any) Term {
	switch x := v.(type) {
	case Term:
		return x
	case string:
		if strings.HasPrefix(x, "http") {
			return IRI(x)
		}
		return Literal(x)
	case bool:
		return Term{Kind: KindLiteral, Value: strconv.FormatBool(x), Datatype: XSDBoolean}
	case int:
		return Term{Kind: KindLiteral, Value: strconv.Itoa(x), Datatype: XSDInteger}
	case int64:
		return Term{Kind: KindLiteral, Value: strconv.FormatInt(x, 10), Datatype: XSDInteger}
	case uint64:
		return Term{Kind: KindLiteral, Value: strconv.FormatUint(x, 10), Datatype: XSDInteger}
	case float64:
		return Term{Kind: KindLiteral, Value: strconv.FormatFloat(x, 'g', -1, 64), Datatype: XSDDouble}
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return Term{Kind: KindLiteral, Value: x.String(), Datatype: XSDInteger}
		}
		return Term{Kind: KindLiteral, Value: x.String(), Datatype: XSDDouble}
	}
	return Literal(fmt.Sprint(v))
}

// Triple is one statement. Subject and Predicate are IRIs.
type Triple struct {
	Subject   string
	Predicate string
	Object    Term
}

func (t Triple) String() string {
	return fmt.Sprintf("<%s> <%s> %s .", t.Subject, t.Predicate, t.Object)
}
