package picker

import (
	"time"
	"unicode/utf8"

	"github.com/jw6ventures/calpicker/internal/dateutil"
)

// View selects what an opened picker shows first.
type View string

const (
	ViewCalendar View = "calendar"
	ViewOverlay  View = "overlay"
)

var (
	defaultDays   = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	defaultMonths = [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}
)

// Options configures a picker at creation. Zero values pick the defaults:
// min two years before today, max today, format YYYY-MM-DD, position "bl".
type Options struct {
	InitialDate time.Time
	// StartDate sets the month shown first when no date is selected.
	StartDate time.Time
	MinDate   time.Time
	MaxDate   time.Time

	// PairID links exactly two pickers into a date range.
	PairID string
	Format string
	// Position is one of tl, tr, bl, br or c (centered).
	Position    string
	DefaultView View
	StartDay    int

	EnableDeselect          bool
	DisableYearOverlay      bool
	DisableMobile           bool
	RespectDisabledReadOnly bool
	NoWeekends              bool
	ShowAllDates            bool
	MonthPicker             bool

	CustomDays          []string
	CustomMonths        []string
	CustomOverlayMonths []string

	DisabledDates []time.Time
	// Events marks days that get an event dot.
	Events []time.Time

	// OnSelect receives the zero time when the selection is cleared.
	OnSelect      func(inst *Instance, date time.Time)
	OnShow        func(inst *Instance)
	OnHide        func(inst *Instance)
	OnMonthChange func(inst *Instance)
	// Formatter writes the selection into an input anchor. When absent the
	// anchor value is set using Format.
	Formatter func(anchor Anchor, date time.Time, inst *Instance)
	Disabler  func(date time.Time) bool
}

// Position is the side of the anchor the surface opens on.
type Position struct {
	Top      bool
	Right    bool
	Bottom   bool
	Left     bool
	Centered bool
}

// dayKey identifies a calendar day independent of location.
type dayKey int

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey(y*10000 + int(m)*100 + d)
}

type callbacks struct {
	onSelect      func(*Instance, time.Time)
	onShow        func(*Instance)
	onHide        func(*Instance)
	onMonthChange func(*Instance)
	formatter     func(Anchor, time.Time, *Instance)
	disabler      func(time.Time) bool
}

type config struct {
	initial  time.Time
	start    time.Time
	min, max time.Time

	pairID      string
	format      string
	position    Position
	defaultView View
	startDay    int

	enableDeselect          bool
	disableYearOverlay      bool
	disableMobile           bool
	respectDisabledReadOnly bool
	noWeekends              bool
	showAllDates            bool
	monthPicker             bool

	days          [7]string
	months        [12]string
	overlayMonths [12]string

	disabled map[dayKey]bool
	events   map[dayKey]bool

	cb callbacks
}

// validate checks o in a single pass. It returns either a complete
// configuration or a *ValidationError listing every violation.
func validate(o Options, now time.Time, loc *time.Location) (config, error) {
	verr := &ValidationError{}
	today := inLocation(now, loc)

	c := config{
		pairID:                  o.PairID,
		format:                  o.Format,
		startDay:                o.StartDay,
		enableDeselect:          o.EnableDeselect,
		disableYearOverlay:      o.DisableYearOverlay,
		disableMobile:           o.DisableMobile,
		respectDisabledReadOnly: o.RespectDisabledReadOnly,
		noWeekends:              o.NoWeekends,
		showAllDates:            o.ShowAllDates,
		monthPicker:             o.MonthPicker,
		disabled:                make(map[dayKey]bool),
		events:                  make(map[dayKey]bool),
		cb: callbacks{
			onSelect:      o.OnSelect,
			onShow:        o.OnShow,
			onHide:        o.OnHide,
			onMonthChange: o.OnMonthChange,
			formatter:     o.Formatter,
			disabler:      o.Disabler,
		},
	}
	if c.format == "" {
		c.format = dateutil.DefaultFormat
		if o.MonthPicker {
			c.format = "YYYY-MM"
		}
	}

	pos, ok := parsePosition(o.Position)
	if !ok {
		verr.add("position", "must be one of tl, tr, bl, br or c, got %q", o.Position)
	}
	c.position = pos

	switch o.DefaultView {
	case "":
		c.defaultView = ViewCalendar
		if o.MonthPicker {
			c.defaultView = ViewOverlay
		}
	case ViewCalendar, ViewOverlay:
		c.defaultView = o.DefaultView
	default:
		verr.add("default_view", "must be %q or %q, got %q", ViewCalendar, ViewOverlay, o.DefaultView)
	}

	if o.StartDay < 0 || o.StartDay > 6 {
		verr.add("start_day", "must be between 0 and 6, got %d", o.StartDay)
	}

	c.days = defaultDays
	if o.CustomDays != nil {
		if len(o.CustomDays) != 7 {
			verr.add("custom_days", "must contain 7 labels, got %d", len(o.CustomDays))
		} else {
			copy(c.days[:], o.CustomDays)
		}
	}
	c.months = defaultMonths
	if o.CustomMonths != nil {
		if len(o.CustomMonths) != 12 {
			verr.add("custom_months", "must contain 12 labels, got %d", len(o.CustomMonths))
		} else {
			copy(c.months[:], o.CustomMonths)
		}
	}
	for i, m := range c.months {
		c.overlayMonths[i] = shortLabel(m)
	}
	if o.CustomOverlayMonths != nil {
		if len(o.CustomOverlayMonths) != 12 {
			verr.add("custom_overlay_months", "must contain 12 labels, got %d", len(o.CustomOverlayMonths))
		} else {
			copy(c.overlayMonths[:], o.CustomOverlayMonths)
		}
	}

	strip := func(t time.Time) time.Time { return inLocation(t, loc) }
	if o.MonthPicker {
		strip = func(t time.Time) time.Time { return dateutil.StripDay(inLocation(t, loc)) }
	}

	c.min = o.MinDate
	if c.min.IsZero() {
		c.min = dateutil.Add(today, dateutil.Year, -2)
	}
	c.min = strip(c.min)
	c.max = o.MaxDate
	if c.max.IsZero() {
		c.max = today
	}
	c.max = strip(c.max)
	boundsOK := !c.max.Before(c.min)
	if !boundsOK {
		verr.add("max_date", "%s is before min_date %s", c.max.Format(time.DateOnly), c.min.Format(time.DateOnly))
	}

	c.initial = strip(o.InitialDate)
	if c.initial.IsZero() && o.MonthPicker {
		c.initial = strip(today)
	}
	if !c.initial.IsZero() && boundsOK {
		if c.initial.Before(c.min) {
			c.initial = c.min
		}
		if c.initial.After(c.max) {
			c.initial = c.max
		}
	}

	for _, d := range o.DisabledDates {
		if d.IsZero() {
			verr.add("disabled_dates", "contains an invalid date")
			continue
		}
		k := keyOf(d)
		if !c.initial.IsZero() && !o.MonthPicker && k == keyOf(c.initial) {
			verr.add("disabled_dates", "cannot contain the initial date %s", c.initial.Format(time.DateOnly))
		}
		c.disabled[k] = true
	}
	for _, d := range o.Events {
		if d.IsZero() {
			verr.add("events", "contains an invalid date")
			continue
		}
		c.events[keyOf(d)] = true
	}

	c.start = strip(o.StartDate)
	if c.start.IsZero() {
		c.start = c.initial
	}
	if c.start.IsZero() {
		c.start = today
	}

	if err := verr.orNil(); err != nil {
		return config{}, err
	}
	return c, nil
}

// inLocation keeps the wall-clock date of t and moves it to midnight in loc.
func inLocation(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func parsePosition(s string) (Position, bool) {
	switch s {
	case "", "bl":
		return Position{Bottom: true, Left: true}, true
	case "br":
		return Position{Bottom: true, Right: true}, true
	case "tl":
		return Position{Top: true, Left: true}, true
	case "tr":
		return Position{Top: true, Right: true}, true
	case "c", "centered":
		return Position{Centered: true}, true
	}
	return Position{Bottom: true, Left: true}, false
}

func shortLabel(s string) string {
	if utf8.RuneCountInString(s) <= 3 {
		return s
	}
	return string([]rune(s)[:3])
}
