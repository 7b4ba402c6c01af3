// Package dom is an in-memory model of a host page: the anchors pickers bind
// to, the page scroll and viewport, and the document listener list.
package dom

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jw6ventures/calpicker/internal/picker"
)

var (
	ErrDuplicateElement = errors.New("element id already exists")
	ErrUnknownElement   = errors.New("unknown element")
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrInvalidElement   = errors.New("invalid element")
)

// Tag names with special meaning to pickers.
const (
	TagInput = "input"
	TagBody  = "body"
	TagDiv   = "div"
)

// Element is one node of the page. It implements picker.Anchor.
type Element struct {
	id       string
	tag      string
	classes  []string
	disabled bool
	readOnly bool
	value    string
	rect     picker.Rect
	focused  bool
	blurs    int
}

// NewElement creates a detached element.
func NewElement(id, tag string, classes ...string) *Element {
	return &Element{id: id, tag: strings.ToLower(tag), classes: classes}
}

func (e *Element) ID() string { return e.id }
func (e *Element) Tag() string { return e.tag }
func (e *Element) IsInput() bool { return e.tag == TagInput }
func (e *Element) IsBody() bool { return e.tag == TagBody || e.tag == "html" }
func (e *Element) Disabled() bool { return e.disabled }
func (e *Element) ReadOnly() bool { return e.readOnly }
func (e *Element) Value() string { return e.value }
func (e *Element) SetValue(v string) { e.value = v }
func (e *Element) Rect() picker.Rect { return e.rect }
func (e *Element) Focused() bool { return e.focused }
func (e *Element) Blurs() int { return e.blurs }
func (e *Element) Classes() []string { return slices.Clone(e.classes) }

func (e *Element) SetDisabled(v bool) { e.disabled = v }
func (e *Element) SetReadOnly(v bool) { e.readOnly = v }
func (e *Element) SetRect(r picker.Rect) { e.rect = r }

// Blur drops focus from the element.
func (e *Element) Blur() {
	e.focused = false
	e.blurs++
}

func (e *Element) hasClass(c string) bool {
	return slices.Contains(e.classes, c)
}

// Page holds the elements of one host page and implements picker.Document.
type Page struct {
	body     *Element
	elements []*Element
	byID     map[string]*Element

	listeners []picker.EventHandler
	attached  bool

	scrollX, scrollY float64
	width, height    float64
	touch            bool
}

// NewPage creates a page with a body element and the given viewport.
func NewPage(width, height float64, touch bool) *Page {
	body := NewElement("body", TagBody)
	body.rect = picker.Rect{Width: width, Height: height}
	return &Page{
		body:     body,
		elements: []*Element{body},
		byID:     map[string]*Element{"body": body},
		width:    width,
		height:   height,
		touch:    touch,
	}
}

// Add places e on the page.
func (p *Page) Add(e *Element) error {
	if e.id == "" {
		return fmt.Errorf("%w: element id is required", ErrInvalidElement)
	}
	if _, ok := p.byID[e.id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateElement, e.id)
	}
	p.elements = append(p.elements, e)
	p.byID[e.id] = e
	return nil
}

// Element returns the element with id.
func (p *Page) Element(id string) (*Element, bool) {
	e, ok := p.byID[id]
	return e, ok
}

// Elements returns every element in insertion order.
func (p *Page) Elements() []*Element {
	return slices.Clone(p.elements)
}

// Body returns the page's body element.
func (p *Page) Body() *Element { return p.body }

// Query resolves "#id", ".class", a tag name, or "body"/"html" to the first
// matching element.
func (p *Page) Query(selector string) (picker.Anchor, bool) {
	selector = strings.TrimSpace(selector)
	var match func(*Element) bool
	switch {
	case selector == "":
		return nil, false
	case selector == "body" || selector == "html":
		return p.body, true
	case strings.HasPrefix(selector, "#"):
		e, ok := p.byID[selector[1:]]
		if !ok {
			return nil, false
		}
		return e, true
	case strings.HasPrefix(selector, "."):
		class := selector[1:]
		match = func(e *Element) bool { return e.hasClass(class) }
	default:
		tag := strings.ToLower(selector)
		match = func(e *Element) bool { return e.tag == tag }
	}
	for _, e := range p.elements {
		if match(e) {
			return e, true
		}
	}
	return nil, false
}

// SetScroll moves the page scroll offset.
func (p *Page) SetScroll(x, y float64) { p.scrollX, p.scrollY = x, y }

func (p *Page) Scroll() (float64, float64) { return p.scrollX, p.scrollY }
func (p *Page) Viewport() (float64, float64) { return p.width, p.height }
func (p *Page) IsTouch() bool { return p.touch }
func (p *Page) AttachSurface() { p.attached = true }
func (p *Page) DetachSurface() { p.attached = false }

// SurfaceAttached reports whether the shared calendar surface is on the page.
func (p *Page) SurfaceAttached() bool { return p.attached }

// Listeners returns the number of document listeners.
func (p *Page) Listeners() int { return len(p.listeners) }

// AddEventListener registers h once.
func (p *Page) AddEventListener(h picker.EventHandler) {
	if slices.Contains(p.listeners, h) {
		return
	}
	p.listeners = append(p.listeners, h)
}

// RemoveEventListener unregisters h.
func (p *Page) RemoveEventListener(h picker.EventHandler) {
	p.listeners = slices.DeleteFunc(p.listeners, func(l picker.EventHandler) bool { return l == h })
}

// Dispatch delivers ev to every listener in registration order. A focusin on
// an element focuses it first.
func (p *Page) Dispatch(ev picker.Event) {
	if ev.Type == picker.EventFocusIn {
		if e, ok := ev.Target.Anchor.(*Element); ok {
			e.focused = true
		}
	}
	for _, l := range slices.Clone(p.listeners) {
		l.HandleEvent(ev)
	}
}

// EventInput describes an event by element id and surface part, the way a
// browser shim reports it.
type EventInput struct {
	Type    string `json:"type"`
	Element string `json:"element,omitempty"`
	Part    string `json:"part,omitempty"`
	Index   int    `json:"index,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Resolve turns in into an event targeting this page's elements.
func (p *Page) Resolve(in EventInput) (picker.Event, error) {
	ev := picker.Event{Type: picker.EventType(in.Type)}
	switch ev.Type {
	case picker.EventClick, picker.EventChange, picker.EventFocusIn:
	default:
		return picker.Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, in.Type)
	}
	if in.Element != "" {
		e, ok := p.byID[in.Element]
		if !ok {
			return picker.Event{}, fmt.Errorf("%w: %q", ErrUnknownElement, in.Element)
		}
		ev.Target.Anchor = e
	}
	ev.Target.Part = picker.Part(in.Part)
	ev.Target.Index = in.Index
	ev.Target.Value = in.Value
	return ev, nil
}
