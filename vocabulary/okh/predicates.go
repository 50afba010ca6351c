package okh

import "github.com/c360studio/semstreams/vocabulary"

// Generic entity predicates.
const (
	// EntityType is rdf:type.
	EntityType = "okh.entity.type"

	// EntityLabel is the human readable rdfs:label of any entity.
	EntityLabel = "okh.entity.label"
)

// Module predicates. Parts reuse the license, licensor, language, dimension
// and TsDC predicates.
const (
	VersionOf             = "okh.module.version_of"
	Repo                  = "okh.module.repo"
	Version               = "okh.module.version"
	Release               = "okh.module.release"
	SPDXLicense           = "okh.module.spdx_license"
	AlternativeLicense    = "okh.module.alternative_license"
	Licensor              = "okh.module.licensor"
	Organisation          = "okh.module.organisation"
	Timestamp             = "okh.module.timestamp"
	DocumentationLanguage = "okh.module.documentation_language"
	ReadinessLevel        = "okh.module.readiness_level"
	Function              = "okh.module.function"
	CPCPatentClass        = "okh.module.cpc_patent_class"
	TsDCID                = "okh.module.tsdc_id"
	BoM                   = "okh.module.bom"
	OuterDimensionDim     = "okh.module.outer_dimension_dim"
	OuterDimension        = "okh.module.outer_dimension"
	OKHV                  = "okh.module.okhv"

	// FunctionalMetadata is the super-property of every manifest specific
	// functional metadata property.
	FunctionalMetadata = "okh.module.functional_metadata"
)

// Relationship predicates linking a module to its file entities.
const (
	HasManifestFile              = "okh.rel.has_manifest_file"
	HasReadme                    = "okh.rel.has_readme"
	HasImage                     = "okh.rel.has_image"
	HasBoM                       = "okh.rel.has_bom"
	HasManufacturingInstructions = "okh.rel.has_manufacturing_instructions"
	HasUserManual                = "okh.rel.has_user_manual"

	// Source links a part to its SourceFile entity.
	Source = "okh.rel.source"

	// Export links a part to each of its ExportFile entities.
	Export = "okh.rel.export"
)

// File detail predicates, one per permalink detail key.
const (
	OriginalURL   = "okh.file.original_url"
	PermaURL      = "okh.file.perma_url"
	LastSeen      = "okh.file.last_seen"
	LastRequested = "okh.file.last_requested"
	FileFormat    = "okh.file.file_format"
	FileURL       = "okh.file.file_url"
)

// Part predicates.
const (
	ManufacturingProcess = "okh.part.manufacturing_process"
	Material             = "okh.part.material"
	Image                = "okh.part.image"
)

// SubPropertyOf is rdfs:subPropertyOf, used to declare functional metadata.
const SubPropertyOf = "okh.schema.sub_property_of"

type registration struct {
	name        string
	description string
	dataType    string
	iri         string
}

var registrations = []registration{
	{EntityType, "RDF type of an OKH entity", "entity_id", RDFType},
	{EntityLabel, "Human readable label", "string", RDFSLabel},

	{VersionOf, "Repository this module is a version of", "string", Namespace + "versionOf"},
	{Repo, "Documentation repository URL", "string", Namespace + "repo"},
	{Version, "Module version", "string", Namespace + "version"},
	{Release, "Release archive URL", "string", Namespace + "release"},
	{SPDXLicense, "SPDX license identifier", "string", Namespace + "spdxLicense"},
	{AlternativeLicense, "Non-SPDX license text", "string", Namespace + "alternativeLicense"},
	{Licensor, "Licensor name", "string", Namespace + "licensor"},
	{Organisation, "Publishing organisation", "string", Namespace + "organisation"},
	{Timestamp, "Last modification time of the manifest", "string", Namespace + "timestamp"},
	{DocumentationLanguage, "Documentation language code", "string", Namespace + "documentationLanguage"},
	{ReadinessLevel, "Open technology readiness level", "entity_id", Namespace + "technologyReadinessLevel"},
	{Function, "Functional description", "string", Namespace + "function"},
	{CPCPatentClass, "CPC patent class", "string", Namespace + "cpcPatentClass"},
	{TsDCID, "Technology-specific documentation criteria id", "string", Namespace + "tsdcID"},
	{BoM, "Bill of materials reference", "string", Namespace + "bom"},
	{OuterDimensionDim, "Unit of the outer dimension", "string", Namespace + "outerDimensionDim"},
	{OuterDimension, "Outer dimension expression", "string", Namespace + "outerDimension"},
	{OKHV, "OKH manifest schema version", "string", Namespace + "okhv"},
	{FunctionalMetadata, "Super-property of functional metadata", "string", Namespace + "functionalMetadata"},

	{HasManifestFile, "Links module to its manifest file", "entity_id", Namespace + "hasManifestFile"},
	{HasReadme, "Links module to its readme", "entity_id", Namespace + "hasReadme"},
	{HasImage, "Links module to its image", "entity_id", Namespace + "hasImage"},
	{HasBoM, "Links module to its bill of materials", "entity_id", Namespace + "hasBoM"},
	{HasManufacturingInstructions, "Links module to its manufacturing instructions", "entity_id", Namespace + "hasManufacturingInstructions"},
	{HasUserManual, "Links module to its user manual", "entity_id", Namespace + "hasUserManual"},
	{Source, "Links part to its source file", "entity_id", Namespace + "source"},
	{Export, "Links part to an export file", "entity_id", Namespace + "export"},

	{OriginalURL, "File reference as written in the manifest", "string", Namespace + "originalURL"},
	{PermaURL, "Commit pinned URL verified reachable", "string", Namespace + "permaURL"},
	{LastSeen, "Last time the file was seen (UTC)", "datetime", Namespace + "lastSeen"},
	{LastRequested, "Last time the permalink was requested (UTC)", "datetime", Namespace + "lastRequested"},
	{FileFormat, "Lower-cased file extension", "string", Namespace + "fileFormat"},
	{FileURL, "URL of a part file", "string", Namespace + "fileUrl"},

	{ManufacturingProcess, "Manufacturing process of a part", "string", Namespace + "manufacturingProcess"},
	{Material, "Material of a part", "string", Namespace + "material"},
	{Image, "Image of a part", "string", Namespace + "image"},

	{SubPropertyOf, "RDFS sub-property relation", "entity_id", RDFSSubPropertyOf},
}

func init() {
	for _, r := range registrations {
		vocabulary.Register(r.name,
			vocabulary.WithDescription(r.description),
			vocabulary.WithDataType(r.dataType),
			vocabulary.WithIRI(r.iri))
	}
}

// Predicates returns every logical predicate name registered by this package.
func Predicates() []string {
	names := make([]string, len(registrations))
	for i, r := range registrations {
		names[i] = r.name
	}
	return names
}

// DetailPredicates maps permalink detail keys to their predicates.
var DetailPredicates = map[string]string{
	"originalURL":   OriginalURL,
	"permaURL":      PermaURL,
	"lastSeen":      LastSeen,
	"lastRequested": LastRequested,
	"fileFormat":    FileFormat,
}
