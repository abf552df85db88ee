package services

import (
	"time"
)

const dateLayout = "2006-01-02"

// Naive layouts accepted for summary bounds. Fractional seconds are accepted
// by time.Parse after the seconds field even though the layout omits them.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
}

// Layouts that carry a zone; matching one of these is rejected.
var zonedLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15Z07:00",
}

// ParseQueryTime parses an optional summary bound. An empty string yields nil.
// A bare date means midnight of that day. Values carrying a time zone are
// rejected with UnsupportedTimezone.
func ParseQueryTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	invalid := newValidationError(InvalidFormat, "", raw,
		"Invalid datetime format: %s, must be in e.g. '2023-10-05' or '2023-10-05 00:00:00'", raw)

	if len(raw) == len(dateLayout) && raw[4] == '-' && raw[7] == '-' {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, invalid
		}
		return &t, nil
	}

	s := raw
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	for _, layout := range zonedLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return nil, newValidationError(UnsupportedTimezone, "", raw, "Datetime with timezone is not supported")
		}
	}
	return nil, invalid
}

// formatQueryTime renders an optional bound for use in summary cache keys.
func formatQueryTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02T15:04:05.999999")
}
