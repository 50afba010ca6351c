package okh

import "strings"

// Namespace is the base IRI of the OKH-LOSH ontology.
const Namespace = "https://github.com/OPEN-NEXT/LOSH/raw/master/OKH-LOSH.ttl#"

// OTLRNamespace is the base IRI of the Open Technology Readiness Level scheme.
const OTLRNamespace = "https://github.com/OPEN-NEXT/LOSH/raw/master/OTLR.ttl#"

// Standard W3C namespaces.
const (
	RDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS = "http://www.w3.org/2000/01/rdf-schema#"
	OWL  = "http://www.w3.org/2002/07/owl#"
	XSD  = "http://www.w3.org/2001/XMLSchema#"
)

// Standard ontology IRIs used by the graph builder.
const (
	RDFType             = RDF + "type"
	RDFSLabel           = RDFS + "label"
	RDFSSubPropertyOf   = RDFS + "subPropertyOf"
	OWLDatatypeProperty = OWL + "DatatypeProperty"
)

// Class IRIs for OKH entities.
const (
	// ClassModule is a hardware module described by one manifest.
	ClassModule = Namespace + "Module"

	// ClassPart is a physical part of a module.
	ClassPart = Namespace + "Part"

	// File entity classes, one per file-bearing manifest field.
	ClassManifestFile              = Namespace + "ManifestFile"
	ClassReadme                    = Namespace + "Readme"
	ClassImage                     = Namespace + "Image"
	ClassBoM                       = Namespace + "BoM"
	ClassManufacturingInstructions = Namespace + "ManufacturingInstructions"
	ClassUserManual                = Namespace + "UserManual"

	// ClassSourceFile is the editable design source of a part.
	ClassSourceFile = Namespace + "SourceFile"

	// ClassExportFile is a derived export of a part (STL, PDF, ...).
	ClassExportFile = Namespace + "ExportFile"
)

// OTLR returns the readiness level IRI for a level name such as "OTLR-4".
func OTLR(level string) string {
	return OTLRNamespace + level
}

// knownNamespaces lists the namespaces a registered predicate may live in.
var knownNamespaces = []string{Namespace, OTLRNamespace, RDF, RDFS, OWL}

// Split separates an IRI into one of the known namespaces and its local name.
// ok is false when the IRI lies outside every known namespace.
func Split(iri string) (ns, local string, ok bool) {
	for _, candidate := range knownNamespaces {
		if strings.HasPrefix(iri, candidate) {
			return candidate, strings.TrimPrefix(iri, candidate), true
		}
	}
	return "", "", false
}
