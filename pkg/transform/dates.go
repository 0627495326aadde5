package transform

import (
	"encoding/json"
	"fmt"
	"time"
)

// dateLayouts are tried in order. Values without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate parses a date string with the first matching layout
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// toEpochMillis converts an ISO-8601 string into milliseconds since the
// epoch. Numbers and nulls are returned unchanged.
func toEpochMillis(v any) (any, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := parseDate(t)
		if err != nil {
			return nil, err
		}
		return json.Number(fmt.Sprintf("%d", parsed.UnixMilli())), nil
	default:
		return v, nil
	}
}
