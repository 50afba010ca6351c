package wikibase

import (
	"errors"
	"fmt"
)

// ErrRetryBudgetExhausted is returned when an entity still misses schema
// after the maximum number of repairs.
var ErrRetryBudgetExhausted = errors.New("schema repair budget exhausted")

// SchemaMissingError reports a reconciliation rejected because the knowledge
// base has no property with the given label.
type SchemaMissingError struct {
	Property string
}

func (e *SchemaMissingError) Error() string {
	return fmt.Sprintf("could not find property %q", e.Property)
}

// ReconcileTransportError reports a reconciliation answered with a server
// error, an unexpected response or a connection failure that outlived the
// socket retries. It is not retried.
type ReconcileTransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ReconcileTransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconcile failed: %v", e.Err)
	}
	if e.Message == "" {
		return fmt.Sprintf("reconcile failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("reconcile failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *ReconcileTransportError) Unwrap() error {
	return e.Err
}

// PropertyCreationError reports a property that could neither be created nor
// found by label.
type PropertyCreationError struct {
	Property string
	Reason   string
}

func (e *PropertyCreationError) Error() string {
	return fmt.Sprintf("create property %q: %s", e.Property, e.Reason)
}

// LabelAssignmentError reports an entity whose label could not be set. The
// entity exists remotely but is considered inconsistent.
type LabelAssignmentError struct {
	EntityID string
	Label    string
	Err      error
}

func (e *LabelAssignmentError) Error() string {
	return fmt.Sprintf("set label of %s to %q: %v", e.EntityID, e.Label, e.Err)
}

func (e *LabelAssignmentError) Unwrap() error {
	return e.Err
}
