// Package normalize converts backend-native timestamp values into ISO-8601
// strings before documents enter application state.
package normalize

import (
	"reflect"
	"time"
)

// Layout is the canonical timestamp format: UTC with millisecond precision.
const Layout = "2006-01-02T15:04:05.000Z"

// Timestamp is implemented by vendor timestamp types that can convert
// themselves to a time.Time, e.g. *timestamppb.Timestamp.
type Timestamp interface {
	AsTime() time.Time
}

// Record returns a copy of rec in which every timestamp value, at any depth,
// is replaced by its ISO-8601 string. All other values are passed through.
func Record(rec map[string]any) map[string]any {
	if rec == nil {
		return nil
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = Value(v)
	}
	return out
}

// Value normalizes a single value. Records and sequences are copied
// recursively; timestamps become strings.
func Value(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return Format(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return Format(*t)
	case Timestamp:
		if isNilPointer(t) {
			return nil
		}
		return Format(t.AsTime())
	case map[string]any:
		return Record(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case []map[string]any:
		if t == nil {
			return t
		}
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = Record(e)
		}
		return out
	default:
		return v
	}
}

// Format renders t in Layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// isNilPointer reports a typed nil pointer hidden behind the interface.
func isNilPointer(ts Timestamp) bool {
	rv := reflect.ValueOf(ts)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
