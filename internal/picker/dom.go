// Package picker implements calendar and date-range pickers that share a
// single calendar surface. A Registry owns every live Instance, the surface
// and the one document-level event listener.
package picker

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Right returns the right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Anchor is the host element a picker is bound to.
type Anchor interface {
	ID() string
	IsInput() bool
	IsBody() bool
	Disabled() bool
	ReadOnly() bool
	Value() string
	SetValue(v string)
	Blur()
	Rect() Rect
}

// Document is the page hosting anchors and the shared surface.
type Document interface {
	Query(selector string) (Anchor, bool)
	Scroll() (x, y float64)
	Viewport() (width, height float64)
	IsTouch() bool
	AddEventListener(h EventHandler)
	RemoveEventListener(h EventHandler)
	AttachSurface()
	DetachSurface()
}

// EventHandler receives document-level events.
type EventHandler interface {
	HandleEvent(ev Event)
}

// EventType is the DOM event name.
type EventType string

const (
	EventClick   EventType = "click"
	EventChange  EventType = "change"
	EventFocusIn EventType = "focusin"
)

// Part identifies an element of the rendered surface.
type Part string

const (
	PartNone         Part = ""
	PartSurface      Part = "surface"
	PartArrowPrev    Part = "prev"
	PartArrowNext    Part = "next"
	PartMonthYear    Part = "month-year"
	PartClose        Part = "close"
	PartWeekday      Part = "weekday"
	PartDay          Part = "day"
	PartOverlayMonth Part = "overlay-month"
	PartYearSelect   Part = "year-select"
)

// Target is what an event landed on: a host element, a surface part, or
// neither (somewhere else on the page).
type Target struct {
	Anchor Anchor
	Part   Part
	// Index is the square index for PartDay and the month index (0-11) for
	// PartOverlayMonth.
	Index int
	// Value carries the selected option for PartYearSelect change events.
	Value string
}

// OnSurface reports whether the target is inside the calendar surface.
func (t Target) OnSurface() bool { return t.Part != PartNone }

// Event is a DOM event routed through the registry.
type Event struct {
	Type   EventType
	Target Target
}
