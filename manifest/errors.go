package manifest

import (
	"errors"
	"fmt"
)

// MaxSize is the largest manifest document accepted, in bytes.
const MaxSize = 1_000_000

var (
	// ErrTooLarge is wrapped by a ParseError for documents over MaxSize.
	ErrTooLarge = errors.New("manifest exceeds 1000000 bytes")

	// ErrUnsupportedFormat is returned for unknown document formats.
	ErrUnsupportedFormat = errors.New("unsupported manifest format")

	errEmptyDocument = errors.New("empty document")
)

// ParseError reports an unparseable or oversized manifest. No manifest is
// produced.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s manifest: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a manifest violating a mandatory invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid manifest: %s %s", e.Field, e.Reason)
}

// MissingCreatorError reports a Wikifactory node without a creator profile,
// from which no repository URL can be built.
type MissingCreatorError struct {
	NodeID string
	Slug   string
}

func (e *MissingCreatorError) Error() string {
	return fmt.Sprintf("wikifactory project %q (%s) has no creator profile", e.Slug, e.NodeID)
}
