// Package graph publishes manifest graphs to a semstreams knowledge graph
// over NATS.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/krawl/rdf"
	"github.com/c360studio/krawl/vocabulary/okh"
	"github.com/c360studio/semstreams/message"
)

// GraphIngestSubject is the subject graph ingestion listens on.
const GraphIngestSubject = "graph.ingest.entity"

// Source is recorded on every published triple.
const Source = "krawl"

// Predicates without an OKH vocabulary IRI.
const (
	// PredicateRemoteID carries the Wikibase id of a pushed entity.
	PredicateRemoteID = "okh.entity.remote_id"

	// metadataPrefix prefixes functional metadata keys.
	metadataPrefix = "okh.metadata."
)

// Stream delivers encoded messages.
type Stream interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// JetStream publishes to a JetStream stream.
type JetStream struct {
	js jetstream.JetStream
}

// Connect opens a NATS connection and its JetStream context.
func Connect(url string, logger *slog.Logger) (*nats.Conn, *JetStream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("krawl"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return nc, &JetStream{js: js}, nil
}

// Publish publishes data and waits for the stream acknowledgement.
func (s *JetStream) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := s.js.Publish(ctx, subject, data)
	return err
}

// Publisher turns graphs into ingest messages.
type Publisher struct {
	stream  Stream
	vocab   *okh.Map
	subject string
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSubject overrides GraphIngestSubject.
func WithSubject(subject string) Option {
	return func(p *Publisher) {
		if subject != "" {
			p.subject = subject
		}
	}
}

// WithClock sets the time source of message timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher. A nil stream makes Publish a no-op.
func NewPublisher(stream Stream, vocab *okh.Map, opts ...Option) *Publisher {
	p := &Publisher{
		stream:  stream,
		vocab:   vocab,
		subject: GraphIngestSubject,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends one payload per subject of g. remote maps subjects to their
// Wikibase ids and may be nil. Subjects without publishable triples are
// skipped. It returns the number of payloads sent.
func (p *Publisher) Publish(ctx context.Context, g *rdf.Graph, remote map[string]string) (int, error) {
	if p.stream == nil {
		return 0, nil
	}
	sent := 0
	for _, msg := range p.Payloads(g, remote) {
		if err := msg.Validate(); err != nil {
			p.logger.Debug("Skipping entity", "error", err)
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return sent, fmt.Errorf("marshal entity %s: %w", msg.ID, err)
		}
		if err := p.stream.Publish(ctx, p.subject, data); err != nil {
			return sent, fmt.Errorf("publish entity %s: %w", msg.ID, err)
		}
		sent++
	}
	p.logger.Debug("Published graph", "base", g.Base, "entities", sent)
	return sent, nil
}

// Payloads converts g into entity payloads, one per subject, in subject
// order. In-graph references become entity ids so the knowledge graph sees
// them as relationships.
func (p *Publisher) Payloads(g *rdf.Graph, remote map[string]string) []*EntityPayload {
	now := p.now()
	subjects := g.Subjects()
	ids := make(map[string]string, len(subjects))
	for _, s := range subjects {
		ids[s] = EntityID(g, s)
	}

	out := make([]*EntityPayload, 0, len(subjects))
	for _, s := range subjects {
		msg := &EntityPayload{ID: ids[s], UpdatedAt: now}
		for _, t := range g.About(s) {
			pred := p.predicate(g, t.Predicate)
			if pred == "" {
				continue
			}
			msg.Statement = append(msg.Statement, p.triple(msg.ID, pred, object(t.Object, ids), now))
		}
		if id, ok := remote[s]; ok {
			msg.Statement = append(msg.Statement, p.triple(msg.ID, PredicateRemoteID, id, now))
		}
		out = append(out, msg)
	}
	return out
}

func (p *Publisher) triple(subject, predicate string, obj any, now time.Time) message.Triple {
	return message.Triple{
		Subject:    subject,
		Predicate:  predicate,
		Object:     obj,
		Source:     Source,
		Timestamp:  now,
		Confidence: 1.0,
	}
}

func (p *Publisher) predicate(g *rdf.Graph, iri string) string {
	if name := p.vocab.Name(iri); name != "" {
		return name
	}
	if g.InBase(iri) {
		return metadataPrefix + g.LocalName(iri)
	}
	return ""
}

func object(t rdf.Term, ids map[string]string) any {
	if t.IsIRI() {
		if id, ok := ids[t.Value]; ok {
			return id
		}
		return t.Value
	}
	switch t.Datatype {
	case rdf.XSDInteger:
		if n, err := strconv.ParseInt(t.Value, 10, 64); err == nil {
			return n
		}
	case rdf.XSDDouble:
		if f, err := strconv.ParseFloat(t.Value, 64); err == nil {
			return f
		}
	case rdf.XSDBoolean:
		if b, err := strconv.ParseBool(t.Value); err == nil {
			return b
		}
	}
	return t.Value
}

// EntityID returns the knowledge graph id of a graph subject.
// Format: krawl.local.okh.<kind>.<kind>.<uuid of the subject IRI>
func EntityID(g *rdf.Graph, subject string) string {
	kind := "entity"
	for _, t := range g.About(subject) {
		if t.Predicate != okh.RDFType || !t.Object.IsIRI() {
			continue
		}
		if _, local, ok := okh.Split(t.Object.Value); ok {
			kind = strings.ToLower(local)
			break
		}
	}
	return fmt.Sprintf("krawl.local.okh.%s.%s.%s", kind, kind, uuid.NewSHA1(uuid.NameSpaceURL, []byte(subject)))
}
