package rdf

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/permalink"
	"github.com/c360studio/krawl/vocabulary/okh"
)

// ErrUnnamed is returned for manifests whose name yields no identifier.
var ErrUnnamed = errors.New("manifest name yields no identifier")

// fileEntity describes the sub-entity emitted for a file-bearing field.
type fileEntity struct {
	field string
	name  string
	class string
	rel   string
}

var fileEntities = []fileEntity{
	{manifest.FieldManifestFile, "ManifestFile", okh.ClassManifestFile, okh.HasManifestFile},
	{manifest.FieldReadme, "Readme", okh.ClassReadme, okh.HasReadme},
	{manifest.FieldImage, "Image", okh.ClassImage, okh.HasImage},
	{manifest.FieldBoM, "BoM", okh.ClassBoM, okh.HasBoM},
	{manifest.FieldManufacturingInstructions, "ManufacturingInstructions", okh.ClassManufacturingInstructions, okh.HasManufacturingInstructions},
	{manifest.FieldUserManual, "UserManual", okh.ClassUserManual, okh.HasUserManual},
}

// Builder converts normalized manifests into graphs. It is safe for
// concurrent use.
type Builder struct {
	vocab *okh.Map
}

// NewBuilder creates a builder emitting predicates resolved by vocab.
func NewBuilder(vocab *okh.Map) *Builder {
	return &Builder{vocab: vocab}
}

// emitter adds triples for one manifest. Absent values are skipped.
type emitter struct {
	g     *Graph
	vocab *okh.Map
}

func (e *emitter) add(subject, predicate string, value string) {
	if value == "" {
		return
	}
	e.g.Add(subject, e.vocab.IRI(predicate), Box(value))
}

func (e *emitter) link(subject, predicate, object string) {
	e.g.Add(subject, e.vocab.IRI(predicate), IRI(object))
}

func (e *emitter) typed(subject, class string) {
	e.g.Add(subject, okh.RDFType, IRI(class))
}

func (e *emitter) details(subject string, d manifest.FileDetails) {
	for _, p := range d.Pairs() {
		e.add(subject, okh.DetailPredicates[p.Key], p.Value)
	}
}

// Build returns the graph of m. It fails when the repo is not an absolute URL
// or the name yields no identifier; unnamed parts are left out.
func (b *Builder) Build(m *manifest.Manifest) (*Graph, error) {
	if err := manifest.Validate(m); err != nil {
		return nil, err
	}
	base, err := BaseNamespace(m.Repo, m.Version)
	if err != nil {
		return nil, err
	}
	moduleName := TitleCase(m.Name)
	if moduleName == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnnamed, m.Name)
	}

	e := &emitter{g: NewGraph(base), vocab: b.vocab}
	module := base + moduleName

	e.buildModule(module, m)
	e.buildFunctionalMetadata(module, m)
	for _, fe := range fileEntities {
		e.buildFile(module, fe, m)
	}
	for _, p := range m.Parts {
		e.buildPart(p, m)
	}
	return e.g, nil
}

func (e *emitter) buildModule(module string, m *manifest.Manifest) {
	e.typed(module, okh.ClassModule)
	e.add(module, okh.EntityLabel, m.Name)
	e.add(module, okh.VersionOf, m.Repo)
	e.add(module, okh.Repo, m.Repo)
	e.add(module, okh.Version, m.Version)
	e.add(module, okh.Release, m.Release)
	e.add(module, okh.SPDXLicense, m.SPDXLicense)
	e.add(module, okh.AlternativeLicense, m.AlternateLicense)
	e.add(module, okh.Licensor, m.Licensor)
	e.add(module, okh.Organisation, m.Organisation)
	e.add(module, okh.Timestamp, m.Timestamp)
	e.add(module, okh.DocumentationLanguage, m.DocumentationLanguage)
	if m.ReadinessLevel != "" {
		e.link(module, okh.ReadinessLevel, okh.OTLR(m.ReadinessLevel))
	}
	e.add(module, okh.Function, m.Function)
	e.add(module, okh.CPCPatentClass, m.CPCPatentClass)
	e.add(module, okh.TsDCID, m.TsDCID)
	e.add(module, okh.BoM, m.BoM)
	e.add(module, okh.OuterDimensionDim, m.OuterDimensionDim)
	e.add(module, okh.OuterDimension, m.OuterDimension)
}

// buildFunctionalMetadata declares one datatype property per key, named by
// the camelCased key in the base namespace.
func (e *emitter) buildFunctionalMetadata(module string, m *manifest.Manifest) {
	for _, key := range m.FunctionalMetadataKeys() {
		prop := e.g.Base + CamelCase(key)
		e.g.Add(module, prop, Box(m.FunctionalMetadata[key]))
		e.g.Add(prop, okh.RDFType, IRI(okh.OWLDatatypeProperty))
		e.g.Add(prop, okh.RDFSLabel, Literal(key))
		e.link(prop, okh.SubPropertyOf, e.vocab.IRI(okh.FunctionalMetadata))
	}
}

func (e *emitter) buildFile(module string, fe fileEntity, m *manifest.Manifest) {
	d, ok := m.DetailsFor(fe.field)
	if !ok {
		return
	}
	entity := e.g.Base + fe.name
	e.typed(entity, fe.class)
	e.link(module, fe.rel, entity)
	if fe.field == manifest.FieldManifestFile {
		e.add(entity, okh.OKHV, m.OKHV)
	}
	e.details(entity, d)
}

func (e *emitter) buildPart(p manifest.Part, m *manifest.Manifest) {
	partName := TitleCase(p.Name)
	if partName == "" {
		return
	}
	part := e.g.Base + partName

	e.typed(part, okh.ClassPart)
	e.add(part, okh.EntityLabel, p.Name)
	e.add(part, okh.ManufacturingProcess, p.Process)
	e.add(part, okh.Material, p.Material)
	e.add(part, okh.OuterDimensionDim, p.OuterDimensionDim)
	e.add(part, okh.OuterDimension, p.OuterDimension)
	e.add(part, okh.TsDCID, p.TsDCID)

	e.add(part, okh.SPDXLicense, fallback(p.SPDXLicense, m.SPDXLicense))
	e.add(part, okh.Licensor, fallback(p.Licensor, m.Licensor))
	e.add(part, okh.Image, fallback(p.Image, m.Image))
	e.add(part, okh.DocumentationLanguage, fallback(p.DocumentationLanguage, m.DocumentationLanguage))

	if p.Source != "" {
		source := part + "_source"
		d := p.Details[manifest.PartFieldSource]
		e.link(part, okh.Source, source)
		e.typed(source, okh.ClassSourceFile)
		e.add(source, okh.FileURL, p.Source)
		e.add(source, okh.FileFormat, fallback(d.FileFormat, permalink.FileFormat(p.Source)))
		e.details(source, d)
	}

	for i, ref := range p.Export {
		export := part + "_export" + strconv.Itoa(i+1)
		e.link(part, okh.Export, export)
		e.typed(export, okh.ClassExportFile)
		e.add(export, okh.FileURL, ref)
		e.add(export, okh.FileFormat, permalink.FileFormat(ref))
	}
}

func fallback(value, inherited string) string {
	if value != "" {
		return value
	}
	return inherited
}
