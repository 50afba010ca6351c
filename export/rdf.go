// Package export serializes manifest graphs to standard RDF formats.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/krawl/rdf"
	"github.com/c360studio/krawl/vocabulary/okh"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatJSONLD produces JSON-LD (.jsonld) output.
	FormatJSONLD Format = "jsonld"
)

// RDFExporter serializes one graph. The empty prefix is bound to the graph's
// base namespace.
type RDFExporter struct {
	graph    *rdf.Graph
	prefixes map[string]string
}

// NewRDFExporter creates an exporter for g.
func NewRDFExporter(g *rdf.Graph) *RDFExporter {
	prefixes := defaultPrefixes()
	if g.Base != "" {
		prefixes[""] = g.Base
	}
	return &RDFExporter{graph: g, prefixes: prefixes}
}

// defaultPrefixes returns the standard namespace prefixes for RDF export.
func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":  okh.RDF,
		"rdfs": okh.RDFS,
		"owl":  okh.OWL,
		"xsd":  okh.XSD,
		"okh":  okh.Namespace,
		"otlr": okh.OTLRNamespace,
	}
}

// Export serializes the graph to the specified format.
func (e *RDFExporter) Export(format Format) (string, error) {
	switch format {
	case FormatTurtle:
		return e.toTurtle(), nil
	case FormatNTriples:
		return e.toNTriples(), nil
	case FormatJSONLD:
		return e.toJSONLD()
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// toTurtle serializes to Turtle, one block per subject.
func (e *RDFExporter) toTurtle() string {
	w := NewTurtleWriter(e.prefixes)
	w.WritePrefixes()

	triples := e.graph.Triples()
	for i := 0; i < len(triples); {
		subject := triples[i].Subject
		j := i
		for j < len(triples) && triples[j].Subject == subject {
			j++
		}
		w.WriteSubject(subject)
		for k := i; k < j; k++ {
			w.WritePredicate(triples[k].Predicate, triples[k].Object, k == j-1)
		}
		w.WriteBlank()
		i = j
	}
	return w.String()
}

// toNTriples serializes to N-Triples format.
func (e *RDFExporter) toNTriples() string {
	w := NewNTriplesWriter()
	for _, t := range e.graph.Triples() {
		w.WriteTriple(t.Subject, t.Predicate, t.Object)
	}
	return w.String()
}

// toJSONLD serializes to JSON-LD, one node per subject.
func (e *RDFExporter) toJSONLD() (string, error) {
	w := NewJSONLDWriter()
	context := make(map[string]string, len(e.prefixes))
	for prefix, iri := range e.prefixes {
		if prefix == "" {
			context["@base"] = iri
			continue
		}
		context[prefix] = iri
	}
	w.SetContext(context)

	for _, subject := range e.graph.Subjects() {
		var types []string
		props := make(map[string]any)
		for _, t := range e.graph.About(subject) {
			if t.Predicate == okh.RDFType && t.Object.IsIRI() {
				types = append(types, t.Object.Value)
				continue
			}
			props[t.Predicate] = appendValue(props[t.Predicate], formatObjectJSONLD(t.Object))
		}
		w.AddNode(subject, types, props)
	}
	return w.String()
}

func appendValue(existing, v any) any {
	switch x := existing.(type) {
	case nil:
		return v
	case []any:
		return append(x, v)
	default:
		return []any{x, v}
	}
}

// compact abbreviates iri with the longest matching prefix whose remainder is
// a valid local name. It returns "" when no prefix applies.
func compact(prefixes map[string]string, iri string) string {
	names := make([]string, 0, len(prefixes))
	for p := range prefixes {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(prefixes[names[i]]) > len(prefixes[names[j]])
	})
	for _, p := range names {
		ns := prefixes[p]
		if !strings.HasPrefix(iri, ns) {
			continue
		}
		local := strings.TrimPrefix(iri, ns)
		if validLocalName(local) {
			return p + ":" + local
		}
	}
	return ""
}

func validLocalName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case (r >= '0' && r <= '9') || r == '-':
			if i == 0 && r == '-' {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// formatObject formats an object term for Turtle output.
func formatObject(prefixes map[string]string, obj rdf.Term) string {
	if obj.IsIRI() {
		if c := compact(prefixes, obj.Value); c != "" {
			return c
		}
		return fmt.Sprintf("<%s>", obj.Value)
	}
	lit := fmt.Sprintf("\"%s\"", escapeString(obj.Value))
	if obj.Datatype == "" {
		return lit
	}
	if c := compact(prefixes, obj.Datatype); c != "" {
		return lit + "^^" + c
	}
	return lit + "^^<" + obj.Datatype + ">"
}

// formatObjectNTriples formats an object term for N-Triples output.
func formatObjectNTriples(obj rdf.Term) string {
	if obj.IsIRI() {
		return fmt.Sprintf("<%s>", obj.Value)
	}
	lit := fmt.Sprintf("\"%s\"", escapeString(obj.Value))
	if obj.Datatype != "" {
		lit += "^^<" + obj.Datatype + ">"
	}
	return lit
}

// formatObjectJSONLD formats an object term as a JSON-LD value.
func formatObjectJSONLD(obj rdf.Term) any {
	if obj.IsIRI() {
		return map[string]string{"@id": obj.Value}
	}
	if obj.Datatype != "" {
		return map[string]string{"@value": obj.Value, "@type": obj.Datatype}
	}
	return obj.Value
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
