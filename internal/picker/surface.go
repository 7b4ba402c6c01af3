package picker

// SurfaceState is the state of the shared calendar surface.
type SurfaceState string

const (
	SurfaceHidden  SurfaceState = "hidden"
	SurfaceShowing SurfaceState = "showing"
)

// Placement is where the surface is drawn, in document coordinates.
type Placement struct {
	Top      float64 `json:"top"`
	Left     float64 `json:"left"`
	Centered bool    `json:"centered"`
}

// Snapshot is a copy of the surface state for hosts that draw it.
type Snapshot struct {
	State       SurfaceState `json:"state"`
	Owner       string       `json:"owner"`
	OverlayOpen bool         `json:"overlay_open"`
	Placement   Placement    `json:"placement"`
	Calendar    *Calendar    `json:"calendar"`
}

// surface is Hidden when owner is nil and Showing(owner) otherwise. The
// overlay is a sub-state that only exists while showing.
type surface struct {
	owner       *Instance
	overlayOpen bool
	overlayYear int
	placement   Placement
	calendar    *Calendar
}

func (s *surface) state() SurfaceState {
	if s.owner == nil {
		return SurfaceHidden
	}
	return SurfaceShowing
}

// open moves Hidden to Showing(inst). It refuses any other transition.
func (s *surface) open(inst *Instance) bool {
	if s.owner != nil {
		return false
	}
	s.owner = inst
	s.overlayOpen = false
	s.overlayYear = inst.currentYear
	return true
}

func (s *surface) close() {
	*s = surface{}
}

// Surface returns a copy of the shared surface.
func (r *Registry) Surface() Snapshot {
	s := Snapshot{
		State:       r.surface.state(),
		OverlayOpen: r.surface.overlayOpen,
		Placement:   r.surface.placement,
	}
	if r.surface.owner != nil {
		s.Owner = r.surface.owner.id
	}
	if r.surface.calendar != nil {
		c := *r.surface.calendar
		s.Calendar = &c
	}
	return s
}

// show passes through Hidden when another picker owns the surface.
func (r *Registry) show(inst *Instance) {
	if r.surface.owner == inst {
		r.refresh(inst)
		return
	}
	if r.surface.owner != nil {
		r.hide(r.surface.owner)
	}
	if !r.surface.open(inst) {
		return
	}
	if inst.cfg.defaultView == ViewOverlay && (inst.cfg.monthPicker || !inst.cfg.disableYearOverlay) {
		r.surface.overlayOpen = true
	}
	r.render()
	r.surface.placement = r.place(inst)
	r.observe("show")
	if inst.cfg.cb.onShow != nil {
		inst.cfg.cb.onShow(inst)
	}
}

// hide only acts when inst owns the surface.
func (r *Registry) hide(inst *Instance) {
	if inst == nil || r.surface.owner != inst {
		return
	}
	r.surface.close()
	if !inst.anchor.IsBody() && inst.anchor.IsInput() {
		inst.anchor.Blur()
	}
	r.observe("hide")
	if inst.cfg.cb.onHide != nil {
		inst.cfg.cb.onHide(inst)
	}
}

func (r *Registry) toggleOverlay() {
	owner := r.surface.owner
	if owner == nil {
		return
	}
	r.surface.overlayOpen = !r.surface.overlayOpen
	if r.surface.overlayOpen {
		r.surface.overlayYear = owner.currentYear
	}
	r.render()
	r.observe("overlay")
}

// refresh redraws the surface if inst owns it.
func (r *Registry) refresh(inst *Instance) {
	if inst == nil || r.surface.owner != inst {
		return
	}
	r.render()
}

func (r *Registry) render() {
	owner := r.surface.owner
	if owner == nil {
		return
	}
	c := Render(owner, OverlayState{Open: r.surface.overlayOpen, Year: r.surface.overlayYear}, r.Today())
	r.surface.calendar = &c
}

// place computes where the surface opens relative to inst's anchor. Body
// anchors and centered pickers are drawn in the middle of the viewport.
func (r *Registry) place(inst *Instance) Placement {
	pos := inst.cfg.position
	if inst.anchor.IsBody() || pos.Centered {
		w, h := r.doc.Viewport()
		return Placement{
			Top:      (h - r.size.Height) / 2,
			Left:     (w - r.size.Width) / 2,
			Centered: true,
		}
	}

	rect := inst.anchor.Rect()
	sx, sy := r.doc.Scroll()
	p := Placement{
		Top:  rect.Bottom() + sy,
		Left: rect.Left + sx,
	}
	if pos.Top {
		p.Top = rect.Top + sy - r.size.Height
	}
	if pos.Right {
		p.Left = rect.Right() + sx - r.size.Width
	}
	return p
}
