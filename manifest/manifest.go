// Package manifest defines the canonical OKH manifest and the normalizers that
// produce it from heterogeneous source records: OKH v1 documents (TOML, JSON or
// YAML) and Wikifactory GraphQL project nodes.
package manifest

import "sort"

// Canonical field keys, as written in normalized manifests.
const (
	FieldOKHV                      = "okhv"
	FieldName                      = "name"
	FieldRepo                      = "repo"
	FieldVersion                   = "version"
	FieldRelease                   = "release"
	FieldLicense                   = "license"
	FieldSPDXLicense               = "spdx-license"
	FieldAlternateLicense          = "alternate-license"
	FieldLicensor                  = "licensor"
	FieldOrganisation              = "organisation"
	FieldFunction                  = "function"
	FieldDocumentationLanguage     = "documentation-language"
	FieldReadinessLevel            = "open-technology-readiness-level"
	FieldCPCPatentClass            = "cpc-patent-class"
	FieldTsDCID                    = "tsdc-id"
	FieldReadme                    = "readme"
	FieldImage                     = "image"
	FieldBoM                       = "bom"
	FieldManufacturingInstructions = "manufacturing-instructions"
	FieldUserManual                = "user-manual"
	FieldManifestFile              = "manifest-file"
	FieldTimestamp                 = "timestamp"
	FieldOuterDimension            = "outer-dimension"
	FieldOuterDimensionDim         = "outer-dimension-dim"
	FieldPart                      = "part"
	FieldFunctionalMetadata        = "functional-metadata"
	FieldFiles                     = "files"
)

// Part field keys.
const (
	PartFieldName     = "name"
	PartFieldProcess  = "process"
	PartFieldMaterial = "material"
	PartFieldSource   = "source"
	PartFieldImage    = "image"
	PartFieldExport   = "export"
)

// FileFields lists the module level fields that reference a file, in the order
// their permalinks are resolved.
var FileFields = []string{
	FieldManifestFile,
	FieldReadme,
	FieldImage,
	FieldBoM,
	FieldManufacturingInstructions,
	FieldUserManual,
}

// DetailsKey returns the sidecar key holding the details of a file field.
func DetailsKey(field string) string {
	return field + "__details"
}

// License holds the license identifiers declared by an OKH v1 manifest.
type License struct {
	Hardware      string
	Documentation string
}

// FileDetails records the provenance of a resolved file reference.
type FileDetails struct {
	OriginalURL   string
	PermaURL      string
	LastSeen      string
	LastRequested string
	FileFormat    string
}

// DetailPair is one populated detail key.
type DetailPair struct {
	Key   string
	Value string
}

// Pairs returns the populated details in a fixed order.
func (d FileDetails) Pairs() []DetailPair {
	all := []DetailPair{
		{"originalURL", d.OriginalURL},
		{"permaURL", d.PermaURL},
		{"lastSeen", d.LastSeen},
		{"lastRequested", d.LastRequested},
		{"fileFormat", d.FileFormat},
	}
	pairs := all[:0]
	for _, p := range all {
		if p.Value != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// Reachable reports whether the permanent form was verified.
func (d FileDetails) Reachable() bool {
	return d.PermaURL != ""
}

// Part is a physical part of a module. Empty strings mean unset; the license,
// licensor, image and documentation language fall back to the module's.
type Part struct {
	Name                  string
	Process               string
	Material              string
	OuterDimension        string
	OuterDimensionDim     string
	TsDCID                string
	Source                string
	Export                []string
	SPDXLicense           string
	Licensor              string
	Image                 string
	DocumentationLanguage string

	// Details is keyed by part field ("source", "image").
	Details map[string]FileDetails
}

// File is one file of a Wikifactory project.
type File struct {
	Name      string
	Permalink string
	MimeType  string
}

// Manifest is the canonical manifest. Empty strings mean unset.
type Manifest struct {
	OKHV                      string
	Name                      string
	Repo                      string
	Version                   string
	Release                   string
	License                   *License
	SPDXLicense               string
	AlternateLicense          string
	Licensor                  string
	Organisation              string
	Function                  string
	DocumentationLanguage     string
	ReadinessLevel            string
	CPCPatentClass            string
	TsDCID                    string
	Readme                    string
	Image                     string
	BoM                       string
	ManufacturingInstructions string
	UserManual                string
	ManifestFile              string
	Timestamp                 string
	OuterDimension            string
	OuterDimensionDim         string
	Parts                     []Part
	Files                     []File

	// FunctionalMetadata holds manifest specific scalar metrics.
	FunctionalMetadata map[string]any

	// Details is keyed by file field (see FileFields).
	Details map[string]FileDetails
}

// FileRef returns the value of a file field.
func (m *Manifest) FileRef(field string) string {
	switch field {
	case FieldManifestFile:
		return m.ManifestFile
	case FieldReadme:
		return m.Readme
	case FieldImage:
		return m.Image
	case FieldBoM:
		return m.BoM
	case FieldManufacturingInstructions:
		return m.ManufacturingInstructions
	case FieldUserManual:
		return m.UserManual
	}
	return ""
}

func (m *Manifest) setFileRef(field, value string) {
	switch field {
	case FieldManifestFile:
		m.ManifestFile = value
	case FieldReadme:
		m.Readme = value
	case FieldImage:
		m.Image = value
	case FieldBoM:
		m.BoM = value
	case FieldManufacturingInstructions:
		m.ManufacturingInstructions = value
	case FieldUserManual:
		m.UserManual = value
	}
}

// SetDetails attaches details to a file field.
func (m *Manifest) SetDetails(field string, d FileDetails) {
	if m.Details == nil {
		m.Details = make(map[string]FileDetails)
	}
	m.Details[field] = d
}

// DetailsFor returns the details of a file field.
func (m *Manifest) DetailsFor(field string) (FileDetails, bool) {
	d, ok := m.Details[field]
	return d, ok
}

// SetDetails attaches details to a part field.
func (p *Part) SetDetails(field string, d FileDetails) {
	if p.Details == nil {
		p.Details = make(map[string]FileDetails)
	}
	p.Details[field] = d
}

// FunctionalMetadataKeys returns the functional metadata keys sorted.
func (m *Manifest) FunctionalMetadataKeys() []string {
	keys := make([]string, 0, len(m.FunctionalMetadata))
	for k := range m.FunctionalMetadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
