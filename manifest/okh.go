package manifest

import (
	"strings"
)

// OKH v1 readiness levels.
const (
	OTLR4 = "OTLR-4"
	OTLR5 = "OTLR-5"
)

// NormalizeOKH maps an OKH document onto the canonical schema. Documents whose
// okhv major version is 1 (the default) get the v1 key mapping applied first.
// The input map is not modified.
func (n *Normalizer) NormalizeOKH(doc map[string]any) (*Manifest, error) {
	if doc == nil {
		return nil, &ParseError{Format: "okh", Err: errEmptyDocument}
	}
	doc = cloneTable(doc)

	okhv := stringField(doc, FieldOKHV)
	if okhv == "" {
		okhv = "1.0"
	}
	if major, _, _ := strings.Cut(okhv, "."); major == "1" {
		n.applyOKHv1(doc)
	}

	m := Decode(doc)
	n.logger.Debug("Normalized OKH manifest", "name", m.Name, "repo", m.Repo, "version", m.Version)
	return m, nil
}

// applyOKHv1 implements the LOSH data mapping for OKH v1 manifests.
func (n *Normalizer) applyOKHv1(doc map[string]any) {
	doc[FieldOKHV] = "1.0"
	move(doc, "title", FieldName)
	move(doc, "documentation-home", FieldRepo)
	move(doc, "archive-download", FieldRelease)

	doc[FieldFunction] = stringField(doc, "description") + " " +
		stringField(doc, "intended-use") + " " +
		stringField(doc, "health-safety-notice")

	switch {
	case truthy(doc["made-independently"]):
		doc[FieldReadinessLevel] = OTLR5
	case truthy(doc["made"]):
		doc[FieldReadinessLevel] = OTLR4
	case stringField(doc, "development-stage") == "prototype":
		doc[FieldReadinessLevel] = OTLR4
	}

	n.resolveLicense(doc)

	if licensor, ok := asTable(doc[FieldLicensor]); ok {
		if name := stringField(licensor, "name"); name != "" {
			doc[FieldLicensor] = name
		}
	}
	if mi, ok := asTable(doc["making-instructions"]); ok {
		if path := stringField(mi, "path"); path != "" {
			doc[FieldManufacturingInstructions] = path
		}
	}
	if oi, ok := asTable(doc["operating-instructions"]); ok {
		if path := stringField(oi, "path"); path != "" {
			doc[FieldUserManual] = path
		}
	}
}

// resolveLicense prefers the hardware license over the documentation license.
// A known SPDX id becomes spdx-license, anything else alternate-license.
func (n *Normalizer) resolveLicense(doc map[string]any) {
	var hardware, documentation string
	switch lic := doc[FieldLicense].(type) {
	case map[string]any:
		hardware = stringField(lic, "hardware")
		documentation = stringField(lic, "documentation")
	case string:
		hardware = lic
		doc[FieldLicense] = map[string]any{"hardware": lic}
	}

	id := hardware
	if id == "" {
		id = documentation
	}
	if id == "" {
		return
	}
	if n.licenses != nil && n.licenses.IsSPDX(id) {
		doc[FieldSPDXLicense] = id
		delete(doc, FieldAlternateLicense)
	} else {
		doc[FieldAlternateLicense] = id
		delete(doc, FieldSPDXLicense)
	}
}

func move(doc map[string]any, from, to string) {
	if v, ok := doc[from]; ok && v != nil {
		doc[to] = v
	}
}

func cloneTable(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
