package picker

import (
	"strings"
	"testing"
	"time"
)

type fakeAnchor struct {
	id       string
	input    bool
	body     bool
	disabled bool
	readOnly bool
	value    string
	blurs    int
	rect     Rect
}

func (a *fakeAnchor) ID() string { return a.id }
func (a *fakeAnchor) IsInput() bool { return a.input }
func (a *fakeAnchor) IsBody() bool { return a.body }
func (a *fakeAnchor) Disabled() bool { return a.disabled }
func (a *fakeAnchor) ReadOnly() bool { return a.readOnly }
func (a *fakeAnchor) Value() string { return a.value }
func (a *fakeAnchor) SetValue(v string) { a.value = v }
func (a *fakeAnchor) Blur() { a.blurs++ }
func (a *fakeAnchor) Rect() Rect { return a.rect }

type fakeDoc struct {
	anchors  map[string]*fakeAnchor
	handlers []EventHandler
	attached bool
	touch    bool
	scrollX  float64
	scrollY  float64
}

func newFakeDoc(anchors ...*fakeAnchor) *fakeDoc {
	d := &fakeDoc{anchors: make(map[string]*fakeAnchor)}
	for _, a := range anchors {
		d.anchors[a.id] = a
	}
	return d
}

func (d *fakeDoc) Query(selector string) (Anchor, bool) {
	a, ok := d.anchors[strings.TrimPrefix(selector, "#")]
	if !ok {
		return nil, false
	}
	return a, true
}

func (d *fakeDoc) Scroll() (float64, float64) { return d.scrollX, d.scrollY }
func (d *fakeDoc) Viewport() (float64, float64) { return 1000, 800 }
func (d *fakeDoc) IsTouch() bool { return d.touch }
func (d *fakeDoc) AttachSurface() { d.attached = true }
func (d *fakeDoc) DetachSurface() { d.attached = false }

func (d *fakeDoc) AddEventListener(h EventHandler) {
	d.handlers = append(d.handlers, h)
}

func (d *fakeDoc) RemoveEventListener(h EventHandler) {
	for i, existing := range d.handlers {
		if existing == h {
			d.handlers = append(d.handlers[:i], d.handlers[i+1:]...)
			return
		}
	}
}

func (d *fakeDoc) fire(ev Event) {
	for _, h := range d.handlers {
		h.HandleEvent(ev)
	}
}

func (d *fakeDoc) clickAnchor(a Anchor) {
	d.fire(Event{Type: EventClick, Target: Target{Anchor: a}})
}

func (d *fakeDoc) clickPart(p Part, idx int) {
	d.fire(Event{Type: EventClick, Target: Target{Part: p, Index: idx}})
}

func (d *fakeDoc) clickOutside() {
	d.fire(Event{Type: EventClick})
}

type countingObserver struct {
	actions   map[string]int
	instances int
}

func (o *countingObserver) ObserveAction(a string) {
	if o.actions == nil {
		o.actions = make(map[string]int)
	}
	o.actions[a]++
}

func (o *countingObserver) ObserveInstances(n int) { o.instances = n }

var testNow = time.Date(2024, time.July, 1, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestRegistry(t *testing.T, anchors ...*fakeAnchor) (*Registry, *fakeDoc) {
	t.Helper()
	doc := newFakeDoc(anchors...)
	reg := NewRegistry(doc, WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	return reg, doc
}

func mustCreate(t *testing.T, reg *Registry, selector string, o Options) *Instance {
	t.Helper()
	inst, err := reg.Create(selector, o)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", selector, err)
	}
	return inst
}

// squareFor returns the index of the in-month square showing d.
func squareFor(t *testing.T, c Calendar, d time.Time) Square {
	t.Helper()
	for _, sq := range c.Squares {
		if !sq.Outside && sq.Date.Equal(d) {
			return sq
		}
	}
	t.Fatalf("no square for %s in %d-%02d", d.Format(time.DateOnly), c.Year, c.Month)
	return Square{}
}

func input(id string) *fakeAnchor {
	return &fakeAnchor{id: id, input: true, rect: Rect{Top: 100, Left: 50, Width: 120, Height: 30}}
}
