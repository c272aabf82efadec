package vcider

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// The mirrored server document is a generic JSON value. Fields are addressed
// by slash-separated paths like "links/networks_list/uri", each segment
// naming a key in a nested JSON object.

// lookupPath resolves a parsed path against a document. The second return
// value reports whether every segment was present.
func lookupPath(doc map[string]any, segments []string) (any, bool) {
	var cur any = doc
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// storePath writes value at the parsed path. All intermediate segments must
// already exist as objects; the final key is written unconditionally. Returns
// false when an intermediate segment is missing or not an object.
func storePath(doc map[string]any, segments []string, value any) bool {
	m := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			return false
		}
		m = next
	}
	m[segments[len(segments)-1]] = value
	return true
}

// splitQuery separates a URI into its path and query-string components.
func splitQuery(uri string) (path, query string) {
	if i := strings.Index(uri, "?"); i >= 0 {
		return uri[:i], uri[i+1:]
	}
	return uri, ""
}

// asString converts a document value to a string. JSON numbers are rendered
// in their wire form.
func asString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		return "", errors.Newf("value %v (%T) is not a string", v, v)
	}
}

func asBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.Newf("value %v (%T) is not a boolean", v, v)
	}
	return b, nil
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, errors.Wrapf(err, "value %v is not an integer", v)
		}
		return int(n), nil
	case float64:
		return int(t), nil
	default:
		return 0, errors.Newf("value %v (%T) is not a number", v, v)
	}
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errors.Wrapf(err, "value %v is not a number", v)
		}
		return f, nil
	case float64:
		return t, nil
	default:
		return 0, errors.Newf("value %v (%T) is not a number", v, v)
	}
}

func asStringSlice(v any) ([]string, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, errors.Newf("value %v (%T) is not a list", v, v)
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, err := asString(e)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
