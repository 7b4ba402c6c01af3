package picker

import (
	"time"

	"github.com/jw6ventures/calpicker/internal/dateutil"
)

// RangePosition marks a square inside a linked pair's selected range.
type RangePosition string

const (
	RangeNone   RangePosition = ""
	RangeStart  RangePosition = "start"
	RangeMiddle RangePosition = "middle"
	RangeEnd    RangePosition = "end"
)

// overlaySpan is how many years the overlay offers on an unbounded side.
const overlaySpan = 10

// Square is one cell of the day grid.
type Square struct {
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
	// Day is zero for empty squares.
	Day     int    `json:"day"`
	Weekday string `json:"weekday"`
	// Direction is -1 or 1 for days of the previous or next month.
	Direction int `json:"direction"`

	Outside  bool          `json:"outside"`
	Empty    bool          `json:"empty"`
	Selected bool          `json:"selected"`
	Disabled bool          `json:"disabled"`
	Today    bool          `json:"today"`
	Weekend  bool          `json:"weekend"`
	HasEvent bool          `json:"has_event"`
	Range    RangePosition `json:"range"`
}

// MonthCell is one month of the overlay grid.
type MonthCell struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	Active   bool   `json:"active"`
}

// Overlay is the year and month chooser drawn over the grid.
type Overlay struct {
	Open   bool        `json:"open"`
	Year   int         `json:"year"`
	Years  []int       `json:"years"`
	Months []MonthCell `json:"months"`
}

// OverlayState is the overlay sub-state of a showing surface.
type OverlayState struct {
	Open bool
	// Year is the year picked in the overlay's year selector. Zero means the
	// picker's current year.
	Year int
}

// Calendar is everything needed to draw the surface for one picker.
type Calendar struct {
	Owner        string     `json:"owner"`
	Year         int        `json:"year"`
	Month        time.Month `json:"month"`
	MonthLabel   string     `json:"month_label"`
	PrevDisabled bool       `json:"prev_disabled"`
	NextDisabled bool       `json:"next_disabled"`
	MonthPicker  bool       `json:"month_picker"`
	Weekdays     []string   `json:"weekdays"`
	Squares      []Square   `json:"squares"`
	Overlay      Overlay    `json:"overlay"`
}

// Render lays out inst's current month. It reads inst and never changes it.
func Render(inst *Instance, ov OverlayState, today time.Time) Calendar {
	cfg := &inst.cfg
	loc := inst.reg.loc
	first := time.Date(inst.currentYear, inst.currentMonth, 1, 0, 0, 0, 0, loc)

	c := Calendar{
		Owner:        inst.id,
		Year:         inst.currentYear,
		Month:        inst.currentMonth,
		MonthLabel:   cfg.months[inst.currentMonth-1],
		MonthPicker:  cfg.monthPicker,
		Weekdays:     make([]string, 7),
		PrevDisabled: !inst.canStep(-1),
		NextDisabled: !inst.canStep(1),
	}
	for k := range c.Weekdays {
		c.Weekdays[k] = cfg.days[(cfg.startDay+k)%7]
	}

	var rng Range
	if inst.pair != nil {
		rng = inst.pair.Range()
	}
	today = inLocation(today, loc)

	offset := int(first.Weekday()) - cfg.startDay
	if offset < 0 {
		offset += 7
	}
	days := dateutil.DaysInMonth(inst.currentYear, inst.currentMonth)
	total := (offset + days + 6) / 7 * 7

	c.Squares = make([]Square, 0, total)
	for idx := 0; idx < total; idx++ {
		num := idx + 1 - offset
		date := time.Date(inst.currentYear, inst.currentMonth, num, 0, 0, 0, 0, loc)
		sq := Square{
			Index:   idx,
			Date:    date,
			Day:     date.Day(),
			Weekday: cfg.days[date.Weekday()],
			Outside: num < 1 || num > days,
			Weekend: isWeekend(date.Weekday()),
		}
		switch {
		case num < 1:
			sq.Direction = -1
		case num > days:
			sq.Direction = 1
		}
		sq.Empty = sq.Outside && !cfg.showAllDates
		if sq.Empty {
			sq.Day = 0
			c.Squares = append(c.Squares, sq)
			continue
		}
		sq.HasEvent = cfg.events[keyOf(date)]
		sq.Disabled = inst.dayDisabled(date)
		sq.Selected = !inst.selected.IsZero() && date.Equal(inst.selected)
		sq.Today = date.Equal(today)
		sq.Range = rangePosition(date, rng)
		c.Squares = append(c.Squares, sq)
	}

	c.Overlay = renderOverlay(inst, ov)
	return c
}

func rangePosition(date time.Time, rng Range) RangePosition {
	if rng.Start.IsZero() || rng.End.IsZero() || rng.Start.Equal(rng.End) {
		return RangeNone
	}
	switch {
	case date.Equal(rng.Start):
		return RangeStart
	case date.Equal(rng.End):
		return RangeEnd
	case date.After(rng.Start) && date.Before(rng.End):
		return RangeMiddle
	}
	return RangeNone
}

func renderOverlay(inst *Instance, ov OverlayState) Overlay {
	year := ov.Year
	if year == 0 {
		year = inst.currentYear
	}
	o := Overlay{Open: ov.Open, Year: year}

	lo, hi := inst.currentYear-overlaySpan, inst.currentYear+overlaySpan
	if !inst.min.IsZero() {
		lo = inst.min.Year()
	}
	if !inst.max.IsZero() {
		hi = inst.max.Year()
	}
	lo = min(lo, inst.currentYear, year)
	hi = max(hi, inst.currentYear, year)
	for y := lo; y <= hi; y++ {
		o.Years = append(o.Years, y)
	}

	o.Months = make([]MonthCell, 12)
	for idx, label := range inst.cfg.overlayMonths {
		m := time.Month(idx + 1)
		o.Months[idx] = MonthCell{
			Index:    idx,
			Label:    label,
			Disabled: monthOutOfBounds(inst, year, m),
			Active:   year == inst.currentYear && m == inst.currentMonth,
		}
	}
	return o
}

// monthOutOfBounds reports whether no day of the month lies within the
// picker's bounds.
func monthOutOfBounds(inst *Instance, year int, m time.Month) bool {
	if !inst.min.IsZero() {
		if year < inst.min.Year() || (year == inst.min.Year() && m < inst.min.Month()) {
			return true
		}
	}
	if !inst.max.IsZero() {
		if year > inst.max.Year() || (year == inst.max.Year() && m > inst.max.Month()) {
			return true
		}
	}
	return false
}
