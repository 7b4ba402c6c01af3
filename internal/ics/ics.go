// Package ics turns iCalendar feeds and recurrence rules into the day sets
// pickers mark with event dots or disable.
package ics

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const (
	// maxDays caps the distinct days one recurring event contributes.
	maxDays = 5000
	// maxSteps caps the occurrences walked for one rule.
	maxSteps = 100000
)

var (
	ErrEmpty    = errors.New("empty calendar")
	errSubDaily = errors.New("repeats more than once a day")
)

// Event is the part of a VEVENT needed to place it on a calendar.
type Event struct {
	UID     string
	Summary string
	Start   time.Time
	AllDay  bool
	RRule   string
	ExDates []time.Time
}

// Parse reads every VEVENT of an iCalendar stream. Events without a usable
// DTSTART are skipped. Date-only values are read in loc.
func Parse(r io.Reader, loc *time.Location) ([]Event, error) {
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var events []Event
	for _, ve := range cal.Events() {
		ev, err := parseEvent(ve, loc)
		if err != nil {
			log.Printf("[WARN] skipping VEVENT: %v", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (Event, error) {
	var ev Event
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return ev, fmt.Errorf("event %q has no DTSTART", ev.UID)
	}
	if isDateValue(dtStart) {
		start, err := time.ParseInLocation("20060102", strings.TrimSpace(dtStart.Value), loc)
		if err != nil {
			return ev, fmt.Errorf("event %q: %w", ev.UID, err)
		}
		ev.Start, ev.AllDay = start, true
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return ev, fmt.Errorf("event %q: %w", ev.UID, err)
		}
		ev.Start = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseTime(part, ev.Start.Location()); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}
	return ev, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, ErrEmpty
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

// Days returns the distinct days in [from, to] on which any event starts,
// expanding recurring events. Days are midnight in loc and sorted.
func Days(events []Event, from, to time.Time, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	lo, hi := dayOf(from, loc), dayOf(to, loc)
	seen := make(map[time.Time]bool)
	var out []time.Time
	add := func(t time.Time) bool {
		d := dayOf(t, loc)
		if d.Before(lo) || d.After(hi) || seen[d] {
			return false
		}
		seen[d] = true
		out = append(out, d)
		return true
	}

	for _, ev := range events {
		if ev.RRule == "" {
			add(ev.Start)
			continue
		}
		if err := walk(ev, hi, add); err != nil {
			log.Printf("[WARN] event %q: %v", ev.UID, err)
			add(ev.Start)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// walk hands add every occurrence of ev until one lands past hi, at most
// maxDays new days or maxSteps occurrences.
func walk(ev Event, hi time.Time, add func(time.Time) bool) error {
	set, err := compile(ev)
	if err != nil {
		return err
	}
	// occurrences in another zone may still fall on hi in loc
	end := hi.AddDate(0, 0, 2)
	next := set.Iterator()
	days := 0
	for steps := 0; steps < maxSteps; steps++ {
		t, ok := next()
		if !ok || t.After(end) {
			return nil
		}
		if add(t) {
			days++
			if days == maxDays {
				return nil
			}
		}
	}
	return fmt.Errorf("recurrence stopped after %d occurrences", maxSteps)
}

// compile builds the recurrence set of ev. Sub-daily rules are coarsened to
// one occurrence per day.
func compile(ev Event) (*rrule.Set, error) {
	loc := ev.Start.Location()
	opts, err := rrule.StrToROptionInLocation(strings.TrimPrefix(strings.TrimSpace(ev.RRule), "RRULE:"), loc)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", ev.RRule, err)
	}
	opts.Dtstart = ev.Start

	coarse := subDaily(opts.Freq)
	if coarse {
		if err := coarsen(opts); err != nil {
			return nil, fmt.Errorf("RRULE %q: %w", ev.RRule, err)
		}
	}
	r, err := rrule.NewRRule(*opts)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", ev.RRule, err)
	}

	set := &rrule.Set{}
	set.RRule(r)
	// an EXDATE removes a single instance, never a whole coarsened day
	if !coarse {
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(loc))
		}
	}
	return set, nil
}

func subDaily(f rrule.Frequency) bool {
	return f == rrule.HOURLY || f == rrule.MINUTELY || f == rrule.SECONDLY
}

// coarsen rewrites a sub-daily rule as a daily one anchored at midnight of
// its start day. A rule whose step exceeds a day keeps its frequency.
func coarsen(o *rrule.ROption) error {
	if o.Count > 0 || len(o.Bysetpos) > 0 || len(o.Byhour) > 0 || len(o.Byminute) > 0 || len(o.Bysecond) > 0 {
		return errSubDaily
	}
	unit := time.Hour
	switch o.Freq {
	case rrule.MINUTELY:
		unit = time.Minute
	case rrule.SECONDLY:
		unit = time.Second
	}
	n := o.Interval
	if n < 1 {
		n = 1
	}
	if time.Duration(n)*unit > 24*time.Hour {
		return nil
	}
	o.Freq = rrule.DAILY
	o.Interval = 1
	o.Dtstart = dayOf(o.Dtstart, o.Dtstart.Location())
	return nil
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// LoadDays reads an .ics file and returns its event days in [from, to].
func LoadDays(path string, from, to time.Time, loc *time.Location) ([]time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	events, err := Parse(f, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Days(events, from, to, loc), nil
}

// Rule matches days produced by a recurrence rule such as
// "FREQ=WEEKLY;BYDAY=SA,SU". Occurrences are walked once and cached, so
// repeated lookups only extend the walk.
type Rule struct {
	mu    sync.Mutex
	loc   *time.Location
	next  rrule.Next
	days  map[time.Time]bool
	until time.Time
	steps int
	done  bool
}

// ParseRule compiles rule. Without a DTSTART= part the rule starts on
// 1970-01-01 in loc. Rules repeating more than once a day are rejected.
func ParseRule(rule string, loc *time.Location) (*Rule, error) {
	if loc == nil {
		loc = time.Local
	}
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	if rule == "" {
		return nil, ErrEmpty
	}
	opts, err := rrule.StrToROptionInLocation(rule, loc)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", rule, err)
	}
	if subDaily(opts.Freq) {
		return nil, fmt.Errorf("RRULE %q: %w", rule, errSubDaily)
	}
	if opts.Dtstart.IsZero() {
		opts.Dtstart = time.Date(1970, time.January, 1, 0, 0, 0, 0, loc)
	}
	r, err := rrule.NewRRule(*opts)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", rule, err)
	}
	return &Rule{loc: loc, next: r.Iterator(), days: make(map[time.Time]bool)}, nil
}

// Matches reports whether the rule has an occurrence on d's day.
func (r *Rule) Matches(d time.Time) bool {
	day := dayOf(d, r.loc)
	end := day.AddDate(0, 0, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.done && r.until.Before(end) {
		t, ok := r.next()
		if !ok {
			r.done = true
			break
		}
		r.days[dayOf(t, r.loc)] = true
		r.until = t
		r.steps++
		if r.steps == maxSteps {
			log.Printf("[WARN] recurrence rule stopped after %d occurrences at %s", maxSteps, t.Format(time.DateOnly))
			r.done = true
		}
	}
	return r.days[day]
}
