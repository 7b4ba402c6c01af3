package picker

import (
	"strconv"
	"time"

	"github.com/jw6ventures/calpicker/internal/dateutil"
)

// Formatter formats and parses dates against a format string.
type Formatter interface {
	Format(t time.Time, format string) string
	Parse(s, format string) (time.Time, error)
}

// Observer is notified of registry activity.
type Observer interface {
	ObserveAction(action string)
	ObserveInstances(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveAction(string) {}
func (nopObserver) ObserveInstances(int) {}

// Size is the rendered surface size used when opening above or right-aligned
// to an anchor.
type Size struct {
	Width  float64
	Height float64
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithLocation sets the location dates are normalized into.
func WithLocation(loc *time.Location) RegistryOption {
	return func(r *Registry) { r.loc = loc }
}

// WithFormatter replaces the default dateutil codec.
func WithFormatter(f Formatter) RegistryOption {
	return func(r *Registry) { r.formatter = f }
}

// WithObserver reports actions and instance counts to o.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) { r.observer = o }
}

// WithSurfaceSize sets the surface size used by Placement.
func WithSurfaceSize(s Size) RegistryOption {
	return func(r *Registry) { r.size = s }
}

// Registry owns every live picker of one document, the shared surface and
// the single document listener.
type Registry struct {
	doc       Document
	formatter Formatter
	observer  Observer
	now       func() time.Time
	loc       *time.Location
	size      Size

	instances []*Instance
	surface   surface
	seq       int
	listening bool
}

// NewRegistry creates an empty registry for doc. Nothing is attached to the
// document until the first picker is created.
func NewRegistry(doc Document, opts ...RegistryOption) *Registry {
	r := &Registry{
		doc:      doc,
		observer: nopObserver{},
		now:      time.Now,
		loc:      time.Local,
		size:     Size{Width: 260, Height: 290},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.formatter == nil {
		r.formatter = dateutil.Codec{Location: r.loc}
	}
	return r
}

// Create binds a picker to the element matching selector.
func (r *Registry) Create(selector string, o Options) (*Instance, error) {
	a, ok := r.doc.Query(selector)
	if !ok {
		return nil, &ValidationError{Violations: []Violation{{Field: "selector", Message: "no element matches " + strconv.Quote(selector)}}}
	}
	return r.Attach(a, o)
}

// Attach binds a picker to a.
func (r *Registry) Attach(a Anchor, o Options) (*Instance, error) {
	if a == nil {
		return nil, &ValidationError{Violations: []Violation{{Field: "selector", Message: "anchor is required"}}}
	}
	cfg, err := validate(o, r.now(), r.loc)
	if err != nil {
		return nil, err
	}
	for _, inst := range r.instances {
		if inst.anchor == a {
			return nil, duplicateError("element %q already has a picker", a.ID())
		}
	}

	var partner *Instance
	if cfg.pairID != "" {
		var matches []*Instance
		for _, inst := range r.instances {
			if inst.cfg.pairID == cfg.pairID {
				matches = append(matches, inst)
			}
		}
		if len(matches) > 1 {
			return nil, duplicateError("pair id %q is already used by two pickers", cfg.pairID)
		}
		if len(matches) == 1 {
			partner = matches[0]
		}
	}

	r.seq++
	inst := &Instance{
		id:           "dp" + strconv.Itoa(r.seq),
		reg:          r,
		anchor:       a,
		cfg:          cfg,
		currentYear:  cfg.start.Year(),
		currentMonth: cfg.start.Month(),
		selected:     cfg.initial,
		min:          cfg.min,
		max:          cfg.max,
	}

	var pair *RangePair
	if partner != nil {
		pair, err = newRangePair(partner, inst)
		if err != nil {
			r.seq--
			return nil, err
		}
	}

	if len(r.instances) == 0 {
		r.doc.AttachSurface()
		r.doc.AddEventListener(r)
		r.listening = true
	}
	r.instances = append(r.instances, inst)

	if pair != nil {
		partner.pair = pair
		inst.pair = pair
		pair.reconcile()
		r.refresh(partner)
	}
	if !inst.selected.IsZero() {
		inst.writeInput()
	}

	r.observer.ObserveAction("create")
	r.observer.ObserveInstances(len(r.instances))
	return inst, nil
}

// Get returns the live picker with id.
func (r *Registry) Get(id string) (*Instance, bool) {
	for _, inst := range r.instances {
		if inst.id == id {
			return inst, true
		}
	}
	return nil, false
}

// Instances returns the live pickers in creation order.
func (r *Registry) Instances() []*Instance {
	out := make([]*Instance, len(r.instances))
	copy(out, r.instances)
	return out
}

// Len returns the number of live pickers.
func (r *Registry) Len() int { return len(r.instances) }

// Listening reports whether the document listener is attached.
func (r *Registry) Listening() bool { return r.listening }

// Today returns the current day in the registry's location.
func (r *Registry) Today() time.Time {
	return inLocation(r.now().In(r.loc), r.loc)
}

// Location returns the location dates are normalized into.
func (r *Registry) Location() *time.Location { return r.loc }

func (r *Registry) remove(inst *Instance) {
	if r.surface.owner == inst {
		r.surface.close()
	}
	for idx, it := range r.instances {
		if it == inst {
			r.instances = append(r.instances[:idx], r.instances[idx+1:]...)
			break
		}
	}
	if inst.pair != nil {
		survivor := inst.pair.dissolve(inst)
		r.refresh(survivor)
	}

	inst.removed = true
	inst.pair = nil
	inst.selected = time.Time{}
	inst.min, inst.max = time.Time{}, time.Time{}
	inst.cfg = config{}

	if len(r.instances) == 0 {
		r.doc.RemoveEventListener(r)
		r.doc.DetachSurface()
		r.listening = false
		r.surface = surface{}
	}
	r.observer.ObserveAction("remove")
	r.observer.ObserveInstances(len(r.instances))
}

func (r *Registry) observe(action string) {
	r.observer.ObserveAction(action)
}
