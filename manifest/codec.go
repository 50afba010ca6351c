package manifest

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// Decode reads a document holding canonical keys into a Manifest. Unknown keys
// are ignored. A repo value that is not a string is dropped, which Validate
// then reports.
func Decode(doc map[string]any) *Manifest {
	m := &Manifest{
		OKHV:                  stringField(doc, FieldOKHV),
		Name:                  stringField(doc, FieldName),
		Version:               versionString(doc[FieldVersion]),
		Release:               stringField(doc, FieldRelease),
		SPDXLicense:           stringField(doc, FieldSPDXLicense),
		AlternateLicense:      stringField(doc, FieldAlternateLicense),
		Licensor:              stringField(doc, FieldLicensor),
		Organisation:          stringField(doc, FieldOrganisation),
		Function:              stringField(doc, FieldFunction),
		DocumentationLanguage: stringField(doc, FieldDocumentationLanguage),
		ReadinessLevel:        stringField(doc, FieldReadinessLevel),
		CPCPatentClass:        stringField(doc, FieldCPCPatentClass),
		TsDCID:                stringField(doc, FieldTsDCID),
		Timestamp:             stringField(doc, FieldTimestamp),
		OuterDimension:        stringField(doc, FieldOuterDimension),
		OuterDimensionDim:     stringField(doc, FieldOuterDimensionDim),
	}
	if repo, ok := doc[FieldRepo].(string); ok {
		m.Repo = repo
	}

	if lic, ok := asTable(doc[FieldLicense]); ok {
		m.License = &License{
			Hardware:      stringField(lic, "hardware"),
			Documentation: stringField(lic, "documentation"),
		}
	}

	for _, field := range FileFields {
		m.setFileRef(field, stringField(doc, field))
		if t, ok := asTable(doc[DetailsKey(field)]); ok {
			m.SetDetails(field, decodeDetails(t))
		}
	}

	for _, t := range asTables(doc[FieldPart]) {
		m.Parts = append(m.Parts, decodePart(t))
	}

	for _, t := range asTables(doc[FieldFiles]) {
		m.Files = append(m.Files, File{
			Name:      stringField(t, "name"),
			Permalink: stringField(t, "permalink"),
			MimeType:  stringField(t, "mimetype"),
		})
	}

	if fm, ok := asTable(doc[FieldFunctionalMetadata]); ok {
		m.FunctionalMetadata = make(map[string]any, len(fm))
		for k, v := range fm {
			if isScalar(v) {
				m.FunctionalMetadata[k] = number(v)
			}
		}
	}
	return m
}

func decodePart(t map[string]any) Part {
	p := Part{
		Name:                  stringField(t, PartFieldName),
		Process:               stringField(t, PartFieldProcess),
		Material:              stringField(t, PartFieldMaterial),
		OuterDimension:        stringField(t, FieldOuterDimension),
		OuterDimensionDim:     stringField(t, FieldOuterDimensionDim),
		TsDCID:                stringField(t, FieldTsDCID),
		Source:                stringField(t, PartFieldSource),
		Export:                asStrings(t[PartFieldExport]),
		SPDXLicense:           stringField(t, FieldSPDXLicense),
		Licensor:              stringField(t, FieldLicensor),
		Image:                 stringField(t, PartFieldImage),
		DocumentationLanguage: stringField(t, FieldDocumentationLanguage),
	}
	if lic, ok := asTable(t[FieldLicensor]); ok {
		p.Licensor = stringField(lic, "name")
	}
	for _, field := range []string{PartFieldSource, PartFieldImage} {
		if d, ok := asTable(t[DetailsKey(field)]); ok {
			p.SetDetails(field, decodeDetails(d))
		}
	}
	return p
}

func decodeDetails(t map[string]any) FileDetails {
	return FileDetails{
		OriginalURL:   stringField(t, "originalURL"),
		PermaURL:      stringField(t, "permaURL"),
		LastSeen:      stringField(t, "lastSeen"),
		LastRequested: stringField(t, "lastRequested"),
		FileFormat:    stringField(t, "fileFormat"),
	}
}

// ToMap renders the manifest with canonical keys, omitting unset fields.
func (m *Manifest) ToMap() map[string]any {
	out := make(map[string]any)
	put := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}

	put(FieldOKHV, m.OKHV)
	put(FieldName, m.Name)
	put(FieldRepo, m.Repo)
	put(FieldVersion, m.Version)
	put(FieldRelease, m.Release)
	put(FieldSPDXLicense, m.SPDXLicense)
	put(FieldAlternateLicense, m.AlternateLicense)
	put(FieldLicensor, m.Licensor)
	put(FieldOrganisation, m.Organisation)
	put(FieldFunction, m.Function)
	put(FieldDocumentationLanguage, m.DocumentationLanguage)
	put(FieldReadinessLevel, m.ReadinessLevel)
	put(FieldCPCPatentClass, m.CPCPatentClass)
	put(FieldTsDCID, m.TsDCID)
	put(FieldTimestamp, m.Timestamp)
	put(FieldOuterDimension, m.OuterDimension)
	put(FieldOuterDimensionDim, m.OuterDimensionDim)

	if m.License != nil {
		lic := make(map[string]any)
		if m.License.Hardware != "" {
			lic["hardware"] = m.License.Hardware
		}
		if m.License.Documentation != "" {
			lic["documentation"] = m.License.Documentation
		}
		if len(lic) > 0 {
			out[FieldLicense] = lic
		}
	}

	for _, field := range FileFields {
		put(field, m.FileRef(field))
		if d, ok := m.DetailsFor(field); ok {
			out[DetailsKey(field)] = detailsMap(d)
		}
	}

	if len(m.Parts) > 0 {
		parts := make([]map[string]any, 0, len(m.Parts))
		for _, p := range m.Parts {
			parts = append(parts, p.toMap())
		}
		out[FieldPart] = parts
	}

	if len(m.Files) > 0 {
		files := make([]map[string]any, 0, len(m.Files))
		for _, f := range m.Files {
			files = append(files, map[string]any{
				"name":      f.Name,
				"permalink": f.Permalink,
				"mimetype":  f.MimeType,
			})
		}
		out[FieldFiles] = files
	}

	if len(m.FunctionalMetadata) > 0 {
		fm := make(map[string]any, len(m.FunctionalMetadata))
		for k, v := range m.FunctionalMetadata {
			fm[k] = v
		}
		out[FieldFunctionalMetadata] = fm
	}
	return out
}

func (p Part) toMap() map[string]any {
	out := make(map[string]any)
	put := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	put(PartFieldName, p.Name)
	put(PartFieldProcess, p.Process)
	put(PartFieldMaterial, p.Material)
	put(FieldOuterDimension, p.OuterDimension)
	put(FieldOuterDimensionDim, p.OuterDimensionDim)
	put(FieldTsDCID, p.TsDCID)
	put(PartFieldSource, p.Source)
	put(FieldSPDXLicense, p.SPDXLicense)
	put(FieldLicensor, p.Licensor)
	put(PartFieldImage, p.Image)
	put(FieldDocumentationLanguage, p.DocumentationLanguage)
	if len(p.Export) > 0 {
		out[PartFieldExport] = append([]string(nil), p.Export...)
	}
	for field, d := range p.Details {
		out[DetailsKey(field)] = detailsMap(d)
	}
	return out
}

func detailsMap(d FileDetails) map[string]any {
	out := make(map[string]any)
	for _, p := range d.Pairs() {
		out[p.Key] = p.Value
	}
	return out
}

// Marshal renders the manifest as a normalized TOML document.
func Marshal(m *Manifest) ([]byte, error) {
	data, err := toml.Marshal(m.ToMap())
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// Unmarshal reads a normalized TOML document.
func Unmarshal(data []byte) (*Manifest, error) {
	doc, err := Parse(data, FormatTOML)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &ParseError{Format: FormatTOML, Err: fmt.Errorf("empty document")}
	}
	return Decode(doc), nil
}
