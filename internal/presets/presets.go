// Package presets loads picker definitions from YAML files and JSON request
// bodies and applies them to a page and registry.
package presets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jw6ventures/calpicker/internal/dateutil"
	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/ics"
	"github.com/jw6ventures/calpicker/internal/picker"
)

// File is a preset file: the anchors of a host page and the pickers bound
// to them.
type File struct {
	Anchors []AnchorSpec `yaml:"anchors" json:"anchors"`
	Pickers []Spec       `yaml:"pickers" json:"pickers"`

	// dir resolves relative events_ics paths.
	dir string
}

// AnchorSpec describes one page element.
type AnchorSpec struct {
	ID       string   `yaml:"id" json:"id"`
	Tag      string   `yaml:"tag" json:"tag"`
	Classes  []string `yaml:"classes" json:"classes,omitempty"`
	Value    string   `yaml:"value" json:"value,omitempty"`
	Disabled bool     `yaml:"disabled" json:"disabled,omitempty"`
	ReadOnly bool     `yaml:"read_only" json:"read_only,omitempty"`
	Top      float64  `yaml:"top" json:"top,omitempty"`
	Left     float64  `yaml:"left" json:"left,omitempty"`
	Width    float64  `yaml:"width" json:"width,omitempty"`
	Height   float64  `yaml:"height" json:"height,omitempty"`
}

// Spec is the serialized form of picker.Options. Dates are strings in the
// picker's Format layout.
type Spec struct {
	Anchor      string  `yaml:"anchor" json:"anchor"`
	InitialDate string  `yaml:"initial_date" json:"initial_date,omitempty"`
	StartDate   string  `yaml:"start_date" json:"start_date,omitempty"`
	MinDate     string  `yaml:"min_date" json:"min_date,omitempty"`
	MaxDate     string  `yaml:"max_date" json:"max_date,omitempty"`
	PairID      string  `yaml:"pair_id" json:"pair_id,omitempty"`
	Format      string  `yaml:"format" json:"format,omitempty"`
	Position    string  `yaml:"position" json:"position,omitempty"`
	DefaultView string  `yaml:"default_view" json:"default_view,omitempty"`
	StartDay    Weekday `yaml:"start_day" json:"start_day,omitempty"`

	EnableDeselect          bool  `yaml:"enable_deselect" json:"enable_deselect,omitempty"`
	DisableYearOverlay      bool  `yaml:"disable_year_overlay" json:"disable_year_overlay,omitempty"`
	DisableMobile           bool  `yaml:"disable_mobile" json:"disable_mobile,omitempty"`
	RespectDisabledReadOnly bool  `yaml:"respect_disabled_read_only" json:"respect_disabled_read_only,omitempty"`
	NoWeekends              bool  `yaml:"no_weekends" json:"no_weekends,omitempty"`
	ShowAllDates            *bool `yaml:"show_all_dates" json:"show_all_dates,omitempty"`
	MonthPicker             bool  `yaml:"month_picker" json:"month_picker,omitempty"`

	CustomDays          []string `yaml:"custom_days" json:"custom_days,omitempty"`
	CustomMonths        []string `yaml:"custom_months" json:"custom_months,omitempty"`
	CustomOverlayMonths []string `yaml:"custom_overlay_months" json:"custom_overlay_months,omitempty"`

	DisabledDates []string `yaml:"disabled_dates" json:"disabled_dates,omitempty"`
	Events        []string `yaml:"events" json:"events,omitempty"`
	// DisabledRule is an RRULE whose occurrences are disabled.
	DisabledRule string `yaml:"disabled_rule" json:"disabled_rule,omitempty"`
	// EventsICS is an .ics file, relative to the preset file, whose events
	// get event dots. Only preset files may reference files.
	EventsICS string `yaml:"events_ics" json:"-"`
	// EventsICal is inline iCalendar text.
	EventsICal string `yaml:"events_ical" json:"events_ical,omitempty"`
}

// Weekday is a start day given as 0-6 or an English day name.
type Weekday int

var weekdayNames = map[string]Weekday{
	"sun": 0, "sunday": 0,
	"mon": 1, "monday": 1,
	"tue": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
}

func parseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdayNames[s]; ok {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse start_day %q: not a weekday", s)
	}
	return Weekday(n), nil
}

// UnmarshalYAML accepts day names as well as numbers.
func (w *Weekday) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d, err := parseWeekday(raw)
	if err != nil {
		return err
	}
	*w = d
	return nil
}

// UnmarshalJSON accepts day names as well as numbers.
func (w *Weekday) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*w = Weekday(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse start_day: %w", err)
	}
	d, err := parseWeekday(s)
	if err != nil {
		return err
	}
	*w = d
	return nil
}

// Env supplies what converting a Spec needs beyond its own fields.
type Env struct {
	Location *time.Location
	Now      func() time.Time
	// BaseDir resolves events_ics. Empty forbids file references.
	BaseDir string
	// Decorate adjusts the converted options, typically to add callbacks.
	Decorate func(o *picker.Options)
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) loc() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}

// LoadFrom reads a preset file.
func LoadFrom(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}
	f.dir = filepath.Dir(path)
	f.applyDefaults()
	return &f, nil
}

// Dir returns the directory relative events_ics paths resolve against.
func (f *File) Dir() string { return f.dir }

func (f *File) applyDefaults() {
	for i := range f.Anchors {
		f.Anchors[i].ApplyDefaults()
	}
	for i := range f.Pickers {
		if f.Pickers[i].Anchor == "" && i < len(f.Anchors) {
			f.Pickers[i].Anchor = "#" + f.Anchors[i].ID
		}
	}
}

// ApplyDefaults fills in the tag and size of an anchor left unset.
func (a *AnchorSpec) ApplyDefaults() {
	if a.Tag == "" {
		a.Tag = dom.TagInput
	}
	if a.Width == 0 {
		a.Width = 160
	}
	if a.Height == 0 {
		a.Height = 32
	}
}

// Element builds the page element described by a.
func (a AnchorSpec) Element() *dom.Element {
	tag := a.Tag
	if tag == "" {
		tag = dom.TagInput
	}
	e := dom.NewElement(a.ID, tag, a.Classes...)
	e.SetValue(a.Value)
	e.SetDisabled(a.Disabled)
	e.SetReadOnly(a.ReadOnly)
	e.SetRect(picker.Rect{Top: a.Top, Left: a.Left, Width: a.Width, Height: a.Height})
	return e
}

// Options converts s into picker options. Every bad field is reported in a
// single *picker.ValidationError.
func (s Spec) Options(env Env) (picker.Options, error) {
	loc := env.loc()
	var violations []picker.Violation
	bad := func(field, format string, args ...any) {
		violations = append(violations, picker.Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	format := s.Format
	if format == "" {
		format = dateutil.DefaultFormat
		if s.MonthPicker {
			format = "YYYY-MM"
		}
	}
	date := func(field, v string) time.Time {
		if strings.TrimSpace(v) == "" {
			return time.Time{}
		}
		t, err := dateutil.Parse(v, format, loc)
		if err != nil {
			bad(field, "cannot parse %q with format %s", v, format)
			return time.Time{}
		}
		return t
	}

	o := picker.Options{
		InitialDate:             date("initial_date", s.InitialDate),
		StartDate:               date("start_date", s.StartDate),
		MinDate:                 date("min_date", s.MinDate),
		MaxDate:                 date("max_date", s.MaxDate),
		PairID:                  s.PairID,
		Format:                  s.Format,
		Position:                s.Position,
		DefaultView:             picker.View(s.DefaultView),
		StartDay:                int(s.StartDay),
		EnableDeselect:          s.EnableDeselect,
		DisableYearOverlay:      s.DisableYearOverlay,
		DisableMobile:           s.DisableMobile,
		RespectDisabledReadOnly: s.RespectDisabledReadOnly,
		NoWeekends:              s.NoWeekends,
		ShowAllDates:            s.ShowAllDates == nil || *s.ShowAllDates,
		MonthPicker:             s.MonthPicker,
		CustomDays:              s.CustomDays,
		CustomMonths:            s.CustomMonths,
		CustomOverlayMonths:     s.CustomOverlayMonths,
	}
	for _, v := range s.DisabledDates {
		if t := date("disabled_dates", v); !t.IsZero() {
			o.DisabledDates = append(o.DisabledDates, t)
		}
	}
	for _, v := range s.Events {
		if t := date("events", v); !t.IsZero() {
			o.Events = append(o.Events, t)
		}
	}

	from, to := window(o, env.now(), loc)
	if s.DisabledRule != "" {
		rule, err := ics.ParseRule(s.DisabledRule, loc)
		if err != nil {
			bad("disabled_rule", "%v", err)
		} else {
			o.Disabler = rule.Matches
		}
	}
	if s.EventsICS != "" {
		if env.BaseDir == "" {
			bad("events_ics", "file references are only allowed in preset files")
		} else {
			days, err := ics.LoadDays(resolve(env.BaseDir, s.EventsICS), from, to, loc)
			if err != nil {
				bad("events_ics", "%v", err)
			}
			o.Events = append(o.Events, days...)
		}
	}
	if s.EventsICal != "" {
		events, err := ics.Parse(strings.NewReader(s.EventsICal), loc)
		if err != nil {
			bad("events_ical", "%v", err)
		}
		o.Events = append(o.Events, ics.Days(events, from, to, loc)...)
	}

	if len(violations) > 0 {
		return picker.Options{}, &picker.ValidationError{Violations: violations}
	}
	if env.Decorate != nil {
		env.Decorate(&o)
	}
	return o, nil
}

// window is the date span recurrence rules and feeds are expanded over. It
// matches the picker's default bounds when none are given.
func window(o picker.Options, now time.Time, loc *time.Location) (time.Time, time.Time) {
	today := dateutil.StripTime(now.In(loc))
	from, to := o.MinDate, o.MaxDate
	if from.IsZero() {
		from = dateutil.Add(today, dateutil.Year, -2)
	}
	if to.IsZero() {
		to = today
	}
	return from, to
}

// resolve joins a relative name onto dir without letting it climb out.
func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, filepath.Clean(string(filepath.Separator)+name))
}

// Apply adds f's anchors to page and creates its pickers in order. It stops
// at the first failure and returns the pickers created so far.
func Apply(f *File, page *dom.Page, reg *picker.Registry, env Env) ([]*picker.Instance, error) {
	if env.BaseDir == "" {
		env.BaseDir = f.dir
	}
	for _, a := range f.Anchors {
		if err := page.Add(a.Element()); err != nil {
			return nil, fmt.Errorf("anchor %q: %w", a.ID, err)
		}
	}
	var created []*picker.Instance
	for i, s := range f.Pickers {
		o, err := s.Options(env)
		if err != nil {
			return created, fmt.Errorf("picker %d (%s): %w", i, s.Anchor, err)
		}
		inst, err := reg.Create(s.Anchor, o)
		if err != nil {
			return created, fmt.Errorf("picker %d (%s): %w", i, s.Anchor, err)
		}
		created = append(created, inst)
	}
	return created, nil
}
