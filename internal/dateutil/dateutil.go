// Package dateutil formats and parses dates using day.js style format strings
// (YYYY-MM-DD) and provides the month arithmetic the picker relies on.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultFormat is used when a picker does not supply its own format string.
const DefaultFormat = "YYYY-MM-DD"

// Order matters: longer tokens must win over their prefixes.
var tokenReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"M", "1",
	"DD", "02",
	"D", "2",
	"dddd", "Monday",
	"ddd", "Mon",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

var fallbackLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"2006-01",
	"01/02/2006",
}

// ErrEmpty is returned when parsing an empty string.
var ErrEmpty = errors.New("empty date")

// Unit is a calendar unit accepted by Add.
type Unit string

const (
	Year   Unit = "y"
	Month  Unit = "M"
	Day    Unit = "d"
	Hour   Unit = "h"
	Minute Unit = "m"
	Second Unit = "s"
)

// Layout converts a day.js style format string into a Go time layout.
func Layout(format string) string {
	if format == "" {
		format = DefaultFormat
	}
	return tokenReplacer.Replace(format)
}

// Format renders t with a day.js style format string.
func Format(t time.Time, format string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(Layout(format))
}

// Parse reads s using format. An empty format tries a list of common layouts.
func Parse(s, format string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	if loc == nil {
		loc = time.Local
	}
	if format != "" {
		t, err := time.ParseInLocation(Layout(format), s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q with %q: %w", s, format, err)
		}
		return t, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Now returns the current date rendered with format.
func Now(format string) string {
	return Format(time.Now(), format)
}

// StripTime drops the clock part of t. The zero time stays zero.
func StripTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StripDay returns midnight on the first day of t's month.
func StripDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// FirstDayOfMonth is an alias of StripDay kept for readability at call sites.
func FirstDayOfMonth(t time.Time) time.Time {
	return StripDay(t)
}

// LastDayOfMonth returns midnight on the last day of t's month.
func LastDayOfMonth(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), DaysInMonth(t.Year(), t.Month()), 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Add moves t by n units. Month and year steps clamp to the end of the
// target month instead of overflowing into the next one.
func Add(t time.Time, unit Unit, n int) time.Time {
	switch unit {
	case Year:
		return addMonths(t, 12*n)
	case Month:
		return addMonths(t, n)
	case Day:
		return t.AddDate(0, 0, n)
	case Hour:
		return t.Add(time.Duration(n) * time.Hour)
	case Minute:
		return t.Add(time.Duration(n) * time.Minute)
	case Second:
		return t.Add(time.Duration(n) * time.Second)
	}
	return t
}

func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := t.Day()
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() && b.IsZero()
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Codec formats and parses dates in a fixed location.
type Codec struct {
	Location *time.Location
}

// Format implements picker.Formatter.
func (c Codec) Format(t time.Time, format string) string {
	if c.Location != nil && !t.IsZero() {
		t = t.In(c.Location)
	}
	return Format(t, format)
}

// Parse implements picker.Formatter.
func (c Codec) Parse(s, format string) (time.Time, error) {
	return Parse(s, format, c.Location)
}
