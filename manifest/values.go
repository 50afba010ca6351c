package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// scalarString renders a scalar document value as text. Tables and arrays are
// not scalars.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return formatFloat(x), true
	case json.Number:
		return x.String(), true
	case time.Time:
		return x.Format(time.RFC3339), true
	case fmt.Stringer:
		return x.String(), true
	}
	return "", false
}

// formatFloat keeps one decimal on integral values so that a version written
// as 1.0 stays "1.0".
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func versionString(v any) string {
	if v == nil {
		return DefaultVersion
	}
	if _, isBool := v.(bool); isBool {
		return VersionUnparsable
	}
	s, ok := scalarString(v)
	if !ok {
		return VersionUnparsable
	}
	return s
}

// stringField returns a document value as text when it is a scalar.
func stringField(doc map[string]any, key string) string {
	s, _ := scalarString(doc[key])
	return s
}

// truthy follows the usual document notion of truth: false, zero, empty
// strings and empty collections are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func asTable(v any) (map[string]any, bool) {
	t, ok := v.(map[string]any)
	return t, ok
}

// asTables accepts an array of tables or a single table.
func asTables(v any) []map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return []map[string]any{x}
	case []map[string]any:
		return x
	case []any:
		out := make([]map[string]any, 0, len(x))
		for _, item := range x {
			if t, ok := item.(map[string]any); ok {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}

// asStrings accepts an array of scalars or a single scalar.
func asStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := scalarString(item); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := scalarString(v); ok && s != "" {
		return []string{s}
	}
	return nil
}

// isScalar reports whether v can be stored as functional metadata.
func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int64, uint64, float64, json.Number:
		return true
	}
	return false
}

// number turns a JSON number into int64 when its text is integral and
// float64 otherwise, matching what the TOML and YAML decoders produce.
func number(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
