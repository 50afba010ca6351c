package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a manifest document format, named by its file extension.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yml"
)

// Formats lists the supported formats in crawl order.
var Formats = []Format{FormatTOML, FormatYAML, FormatJSON}

// ParseFormat maps a file extension (with or without dot) to a Format.
func ParseFormat(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		return FormatTOML, nil
	case "json":
		return FormatJSON, nil
	case "yml", "yaml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// VersionUnparsable is the version recorded for documents that did not parse.
const VersionUnparsable = "unparsable"

// DefaultVersion is the version assumed when a manifest declares none.
const DefaultVersion = "0.0"

// Parse decodes a raw manifest document into a generic mapping. Documents over
// MaxSize are rejected before decoding. An empty document yields a nil map.
func Parse(data []byte, format Format) (map[string]any, error) {
	if len(data) > MaxSize {
		return nil, &ParseError{Format: format, Err: ErrTooLarge}
	}

	var doc map[string]any
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, &ParseError{Format: format, Err: ErrUnsupportedFormat}
	}
	if err != nil {
		return nil, &ParseError{Format: format, Err: err}
	}
	return doc, nil
}

// SetVersion stringifies the document's version, defaulting to DefaultVersion.
// A nil document becomes a document holding only VersionUnparsable.
func SetVersion(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{FieldVersion: VersionUnparsable}
	}
	doc[FieldVersion] = versionString(doc[FieldVersion])
	return doc
}

// VersionOf returns the version a document will be stored under.
func VersionOf(doc map[string]any) string {
	if doc == nil {
		return VersionUnparsable
	}
	return versionString(doc[FieldVersion])
}
