// Package okh provides vocabulary predicates for Open Know-How hardware modules.
//
// Every predicate the graph builder emits is registered here under a dotted
// logical name and mapped to its stable IRI in the LOSH ontology. Call Load at
// startup: it resolves every logical name and fails on gaps or collisions, so a
// misspelled predicate is caught before any triple is written.
//
// Import this package to auto-register predicates:
//
//	import _ "github.com/c360studio/krawl/vocabulary/okh"
package okh
