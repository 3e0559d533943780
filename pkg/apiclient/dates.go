package apiclient

import (
	"regexp"
	"time"
)

var isoFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d*)?(?:[-+]\d{2}:?\d{2}|Z)?$`)

// Timestamps without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
}

// ParseDate parses an ISO-8601 timestamp as sent by JSON APIs.
func ParseDate(s string) (time.Time, bool) {
	if !isoFormat.MatchString(s) {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PopulateDates replaces timestamp strings in a decoded JSON value with
// time.Time. Maps and slices are rewritten in place at any depth; the
// possibly replaced value is returned.
func PopulateDates(v any) any {
	switch t := v.(type) {
	case string:
		if d, ok := ParseDate(t); ok {
			return d
		}
	case map[string]any:
		for k, x := range t {
			t[k] = PopulateDates(x)
		}
	case []any:
		for i, x := range t {
			t[i] = PopulateDates(x)
		}
	}
	return v
}
