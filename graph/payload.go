package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

// EntityType is the message type of OKH entity payloads.
var EntityType = message.Type{Domain: "okh", Category: "entity", Version: "v1"}

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      EntityType.Domain,
		Category:    EntityType.Category,
		Version:     EntityType.Version,
		Description: "OKH module, part or file entity with its triples",
		Factory:     func() any { return &EntityPayload{} },
	})
	if err != nil {
		panic("register okh entity payload: " + err.Error())
	}
}

// EntityPayload is one graph subject as published on the ingest subject.
type EntityPayload struct {
	ID        string           `json:"id"`
	Statement []message.Triple `json:"triples"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (e *EntityPayload) EntityID() string          { return e.ID }
func (e *EntityPayload) Triples() []message.Triple { return e.Statement }
func (e *EntityPayload) Schema() message.Type      { return EntityType }

// RemoteID returns the Wikibase id attached after a push, or "".
func (e *EntityPayload) RemoteID() string {
	for _, t := range e.Statement {
		if t.Predicate == PredicateRemoteID {
			if id, ok := t.Object.(string); ok {
				return id
			}
		}
	}
	return ""
}

// Validate rejects payloads the graph cannot ingest: no id, no triples, or
// triples about another entity.
func (e *EntityPayload) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("okh entity: missing id")
	}
	if len(e.Statement) == 0 {
		return fmt.Errorf("okh entity %s: no triples", e.ID)
	}
	for _, t := range e.Statement {
		if t.Subject != e.ID {
			return fmt.Errorf("okh entity %s: triple about %s", e.ID, t.Subject)
		}
	}
	return nil
}

func (e *EntityPayload) MarshalJSON() ([]byte, error) {
	type plain EntityPayload
	return json.Marshal((*plain)(e))
}

func (e *EntityPayload) UnmarshalJSON(data []byte) error {
	type plain EntityPayload
	return json.Unmarshal(data, (*plain)(e))
}
