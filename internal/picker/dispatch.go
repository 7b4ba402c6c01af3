package picker

import (
	"strconv"
	"time"

	"github.com/jw6ventures/calpicker/internal/dateutil"
)

// HandleEvent is the single document listener shared by every picker.
func (r *Registry) HandleEvent(ev Event) {
	if !r.listening {
		return
	}
	inst := r.resolve(ev.Target)
	onCal := inst != nil && ev.Target.OnSurface()
	if inst != nil && inst.cfg.disableMobile && r.doc.IsTouch() {
		return
	}

	switch ev.Type {
	case EventClick:
		r.click(inst, ev.Target, onCal)
	case EventFocusIn:
		if inst != nil && !onCal && inst.anchor.IsInput() {
			inst.anchor.Blur()
		}
	case EventChange:
		if inst == nil || !onCal || ev.Target.Part != PartYearSelect {
			return
		}
		r.changeOverlayYear(ev.Target.Value)
	}
}

// resolve finds the picker that owns target: the picker bound to the
// anchor, or the surface owner for targets inside the surface.
func (r *Registry) resolve(t Target) *Instance {
	if t.Anchor != nil {
		for _, inst := range r.instances {
			if inst.anchor == t.Anchor {
				return inst
			}
		}
	}
	if t.OnSurface() {
		return r.surface.owner
	}
	return nil
}

func (r *Registry) click(inst *Instance, t Target, onCal bool) {
	if inst == nil {
		r.hide(r.surface.owner)
		return
	}

	switch {
	case inst.anchor.IsBody() && !onCal:
		if inst.Showing() {
			r.hide(inst)
		} else {
			r.show(inst)
		}
	case t.Part == PartArrowPrev || t.Part == PartArrowNext:
		dir := 1
		if t.Part == PartArrowPrev {
			dir = -1
		}
		if !inst.canStep(dir) {
			return
		}
		next := time.Date(inst.currentYear, inst.currentMonth+time.Month(dir), 1, 0, 0, 0, 0, r.loc)
		r.changeMonthYear(inst, next.Year(), next.Month())
	case t.Part == PartMonthYear || t.Part == PartClose:
		if inst.cfg.disableYearOverlay {
			return
		}
		if inst.cfg.monthPicker {
			r.hide(inst)
		} else {
			r.toggleOverlay()
		}
	case t.Part == PartOverlayMonth:
		r.commitOverlayMonth(inst, t.Index)
	case t.Part == PartDay:
		r.clickDay(inst, t.Index)
	case !onCal && t.Anchor == inst.anchor:
		r.show(inst)
	}
}

// canStep reports whether the view may move dir months without leaving the
// bounds' months.
func (i *Instance) canStep(dir int) bool {
	first := time.Date(i.currentYear, i.currentMonth, 1, 0, 0, 0, 0, i.reg.loc)
	if dir < 0 {
		return i.min.IsZero() || dateutil.StripDay(i.min).Before(first)
	}
	return i.max.IsZero() || dateutil.StripDay(i.max).After(first)
}

func (r *Registry) changeMonthYear(inst *Instance, year int, month time.Month) {
	inst.currentYear, inst.currentMonth = year, month
	r.refresh(inst)
	r.observe("navigate")
	if inst.cfg.cb.onMonthChange != nil {
		inst.cfg.cb.onMonthChange(inst)
	}
}

// commitOverlayMonth navigates to the month picked in the overlay. Month
// pickers also select it and close.
func (r *Registry) commitOverlayMonth(inst *Instance, idx int) {
	if idx < 0 || idx > 11 {
		return
	}
	year := r.surface.overlayYear
	if year == 0 {
		year = inst.currentYear
	}
	m := time.Month(idx + 1)
	if monthOutOfBounds(inst, year, m) {
		return
	}

	if !inst.cfg.monthPicker {
		r.surface.overlayOpen = false
		r.changeMonthYear(inst, year, m)
		return
	}

	date := time.Date(year, m, 1, 0, 0, 0, 0, r.loc)
	if inst.blocked() {
		return
	}
	if err := inst.checkSelectable(date); err != nil {
		r.observe("reject")
		return
	}
	inst.currentYear, inst.currentMonth = year, m
	inst.applySelection(date)
	inst.writeInput()
	r.refresh(inst.Sibling())
	r.observe("select")
	r.hide(inst)
	r.observe("navigate")
	if inst.cfg.cb.onMonthChange != nil {
		inst.cfg.cb.onMonthChange(inst)
	}
}

// clickDay selects the clicked square. Month pickers only select through
// the overlay.
func (r *Registry) clickDay(inst *Instance, idx int) {
	if inst.cfg.monthPicker {
		return
	}
	cal := Render(inst, OverlayState{}, r.Today())
	if idx < 0 || idx >= len(cal.Squares) {
		return
	}
	sq := cal.Squares[idx]
	if sq.Empty {
		return
	}
	if sq.Direction != 0 {
		inst.currentYear, inst.currentMonth = sq.Date.Year(), sq.Date.Month()
	}

	switch {
	case sq.Selected:
		r.selectDay(inst, sq.Date, inst.cfg.enableDeselect)
	case !sq.Disabled:
		r.selectDay(inst, sq.Date, false)
	default:
		r.refresh(inst)
		r.observe("reject")
	}
}

// selectDay applies a click selection. Deselecting keeps the surface open;
// selecting closes it.
func (r *Registry) selectDay(inst *Instance, date time.Time, deselect bool) {
	if inst.blocked() {
		r.refresh(inst)
		return
	}
	if deselect {
		inst.clearSelection()
	} else {
		inst.applySelection(date)
	}

	if sib := inst.Sibling(); sib != nil {
		if inst.IsFirst() && !deselect && sib.selected.IsZero() {
			sib.currentYear, sib.currentMonth = inst.currentYear, inst.currentMonth
		}
		r.refresh(sib)
	}
	if deselect {
		r.refresh(inst)
	} else {
		r.hide(inst)
	}
	inst.writeInput()

	if deselect {
		r.observe("deselect")
	} else {
		r.observe("select")
	}
	if inst.cfg.cb.onSelect != nil {
		inst.cfg.cb.onSelect(inst, inst.selected)
	}
}

// blocked reports whether a disabled or read-only input refuses clicks.
func (i *Instance) blocked() bool {
	return i.cfg.respectDisabledReadOnly && (i.anchor.Disabled() || i.anchor.ReadOnly())
}

func (r *Registry) changeOverlayYear(value string) {
	year, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	r.surface.overlayYear = year
	r.render()
}
