package manifest

import (
	"fmt"
	"log/slog"

	"github.com/c360studio/krawl/licenses"
)

// SourceKind identifies the shape of a raw crawl record.
type SourceKind string

const (
	SourceOKH         SourceKind = "okh"
	SourceWikifactory SourceKind = "wikifactory"
)

// Raw is a crawl record awaiting normalization. Document is set for
// SourceOKH, Node for SourceWikifactory.
type Raw struct {
	Kind     SourceKind
	Document map[string]any
	Node     *WikifactoryNode
}

// Normalizer maps raw crawl records onto the canonical schema.
// It is safe for concurrent use.
type Normalizer struct {
	licenses *licenses.Catalog
	detector LanguageDetector
	logger   *slog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) NormalizerOption {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// WithLanguageDetector replaces the description language detector.
func WithLanguageDetector(d LanguageDetector) NormalizerOption {
	return func(n *Normalizer) {
		n.detector = d
	}
}

// NewNormalizer creates a normalizer resolving licenses against catalog.
func NewNormalizer(catalog *licenses.Catalog, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		licenses: catalog,
		detector: WhatlangDetector{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// Normalize dispatches on the record kind. Callers must still Validate the result.
func (n *Normalizer) Normalize(raw Raw) (*Manifest, error) {
	switch raw.Kind {
	case SourceOKH:
		return n.NormalizeOKH(raw.Document)
	case SourceWikifactory:
		return n.NormalizeWikifactory(raw.Node)
	}
	return nil, fmt.Errorf("unknown source kind %q", raw.Kind)
}
