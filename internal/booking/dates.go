package booking

import (
	"errors"
	"strings"
	"time"
)

var errBadDate = errors.New("unparseable date")

// zone-less layouts are read in the display location
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate accepts RFC 3339 (with or without fractional seconds) or a
// zone-less date-time interpreted in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errBadDate
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadDate
}

// StartOfHour floors t to its hour as seen in loc and returns it in UTC.
// Every stored slot sits on the hour grid of loc, whatever offset the
// client sent.
func StartOfHour(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc).UTC()
}
