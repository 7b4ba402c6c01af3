package picker

import (
	"fmt"
	"time"

	"github.com/jw6ventures/calpicker/internal/dateutil"
)

// Instance is one picker bound to one anchor.
type Instance struct {
	id     string
	reg    *Registry
	anchor Anchor
	cfg    config

	currentYear  int
	currentMonth time.Month

	selected time.Time
	min, max time.Time

	pair    *RangePair
	removed bool
}

// Range is the selection of a linked pair. Either end may be zero.
type Range struct {
	Start time.Time
	End   time.Time
}

func (i *Instance) ID() string { return i.id }
func (i *Instance) Anchor() Anchor { return i.anchor }
func (i *Instance) CurrentYear() int { return i.currentYear }
func (i *Instance) CurrentMonth() time.Month { return i.currentMonth }
func (i *Instance) MinDate() time.Time { return i.min }
func (i *Instance) MaxDate() time.Time { return i.max }
func (i *Instance) PairID() string { return i.cfg.pairID }
func (i *Instance) Format() string { return i.cfg.format }
func (i *Instance) IsMonthPicker() bool { return i.cfg.monthPicker }
func (i *Instance) Removed() bool { return i.removed }
func (i *Instance) InitialDate() time.Time { return i.cfg.initial }
func (i *Instance) DeselectEnabled() bool { return i.cfg.enableDeselect }
func (i *Instance) DefaultView() View { return i.cfg.defaultView }
func (i *Instance) PositionSides() Position { return i.cfg.position }
func (i *Instance) MonthLabel(m time.Month) string {
	return i.cfg.months[m-1]
}

// Selected returns the selected date and whether one is set.
func (i *Instance) Selected() (time.Time, bool) {
	return i.selected, !i.selected.IsZero()
}

// IsFirst reports whether i starts a linked range.
func (i *Instance) IsFirst() bool { return i.pair != nil && i.pair.first == i }

// IsSecond reports whether i ends a linked range.
func (i *Instance) IsSecond() bool { return i.pair != nil && i.pair.second == i }

// Sibling returns the other picker of the pair, or nil.
func (i *Instance) Sibling() *Instance {
	if i.pair == nil {
		return nil
	}
	return i.pair.other(i)
}

// Showing reports whether i currently owns the shared surface.
func (i *Instance) Showing() bool {
	return !i.removed && i.reg.surface.owner == i
}

// Range returns the start and end selections of the linked pair.
func (i *Instance) Range() (Range, error) {
	if i.removed {
		return Range{}, ErrRemoved
	}
	if i.pair == nil {
		return Range{}, ErrNotPaired
	}
	return i.pair.Range(), nil
}

// ParseDate reads s using the picker's format string.
func (i *Instance) ParseDate(s string) (time.Time, error) {
	t, err := i.reg.formatter.Parse(s, i.cfg.format)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return t, nil
}

// FormatDate renders t using the picker's format string.
func (i *Instance) FormatDate(t time.Time) string {
	return i.reg.formatter.Format(t, i.cfg.format)
}

// SetDate selects d. With changeView the calendar also moves to d's month.
func (i *Instance) SetDate(d time.Time, changeView bool) error {
	if i.removed {
		return ErrRemoved
	}
	if d.IsZero() {
		return fmt.Errorf("%w: SetDate needs a date, use ClearDate to deselect", ErrInvalidDate)
	}
	date := i.normalize(d)
	if err := i.checkSelectable(date); err != nil {
		i.reg.observe("reject")
		return err
	}

	i.applySelection(date)
	if changeView {
		i.currentYear, i.currentMonth = date.Year(), date.Month()
	}
	i.writeInput()
	i.reg.refresh(i)
	if s := i.Sibling(); s != nil {
		i.reg.refresh(s)
	}
	i.reg.observe("select")
	if i.cfg.monthPicker && i.cfg.cb.onMonthChange != nil {
		i.cfg.cb.onMonthChange(i)
	}
	return nil
}

// ClearDate removes the selection and restores any bound it imposed on the
// sibling picker.
func (i *Instance) ClearDate() error {
	if i.removed {
		return ErrRemoved
	}
	i.clearSelection()
	i.writeInput()
	i.reg.refresh(i)
	if s := i.Sibling(); s != nil {
		i.reg.refresh(s)
	}
	i.reg.observe("deselect")
	return nil
}

// SetMin narrows or widens the lower bound. For a pair the bound applies to
// both pickers.
func (i *Instance) SetMin(d time.Time) error {
	return i.changeBound(d, true)
}

// SetMax narrows or widens the upper bound. For a pair the bound applies to
// both pickers.
func (i *Instance) SetMax(d time.Time) error {
	return i.changeBound(d, false)
}

// ClearMin removes the lower bound.
func (i *Instance) ClearMin() error {
	return i.changeBound(time.Time{}, true)
}

// ClearMax removes the upper bound.
func (i *Instance) ClearMax() error {
	return i.changeBound(time.Time{}, false)
}

// Navigate moves the calendar to d's month without touching the selection.
func (i *Instance) Navigate(d time.Time, triggerCallback bool) error {
	if i.removed {
		return ErrRemoved
	}
	if d.IsZero() {
		return fmt.Errorf("%w: Navigate needs a date", ErrInvalidDate)
	}
	i.currentYear, i.currentMonth = d.Year(), d.Month()
	i.reg.refresh(i)
	i.reg.observe("navigate")
	if triggerCallback && i.cfg.cb.onMonthChange != nil {
		i.cfg.cb.onMonthChange(i)
	}
	return nil
}

// Show opens the shared surface for i.
func (i *Instance) Show() error {
	if i.removed {
		return ErrRemoved
	}
	i.reg.show(i)
	return nil
}

// Hide closes the surface if i owns it. Hiding a hidden picker does nothing.
func (i *Instance) Hide() error {
	if i.removed {
		return ErrRemoved
	}
	i.reg.hide(i)
	return nil
}

// ToggleOverlay opens or closes the year/month overlay. It only works while
// i owns the surface.
func (i *Instance) ToggleOverlay() error {
	if i.removed {
		return ErrRemoved
	}
	if i.Showing() {
		i.reg.toggleOverlay()
	}
	return nil
}

// Remove unregisters i. The last removal detaches the surface and listener.
func (i *Instance) Remove() error {
	if i.removed {
		return ErrRemoved
	}
	i.reg.remove(i)
	return nil
}

// SyncFromInput selects the date typed into the anchor. When the value
// cannot be parsed or selected, the picker is reset to its initial date and
// the error is returned.
func (i *Instance) SyncFromInput() error {
	if i.removed {
		return ErrRemoved
	}
	d, err := i.ParseDate(i.anchor.Value())
	if err == nil {
		if err = i.SetDate(d, true); err == nil {
			return nil
		}
	}
	if rerr := i.Reset(); rerr != nil {
		return rerr
	}
	return err
}

// Reset restores the initial date, or clears the selection when there was
// none.
func (i *Instance) Reset() error {
	if i.removed {
		return ErrRemoved
	}
	if i.cfg.initial.IsZero() {
		return i.ClearDate()
	}
	if err := i.checkSelectable(i.cfg.initial); err != nil {
		return i.ClearDate()
	}
	return i.SetDate(i.cfg.initial, true)
}

func (i *Instance) normalize(d time.Time) time.Time {
	d = inLocation(d, i.reg.loc)
	if i.cfg.monthPicker {
		return dateutil.StripDay(d)
	}
	return d
}

// dayDisabled reports whether a day square may not be picked.
func (i *Instance) dayDisabled(date time.Time) bool {
	if i.cfg.disabled[keyOf(date)] {
		return true
	}
	if i.cfg.cb.disabler != nil && i.cfg.cb.disabler(date) {
		return true
	}
	if i.cfg.noWeekends && isWeekend(date.Weekday()) {
		return true
	}
	return i.outOfBounds(date)
}

func (i *Instance) outOfBounds(date time.Time) bool {
	if !i.min.IsZero() && date.Before(i.min) {
		return true
	}
	return !i.max.IsZero() && date.After(i.max)
}

func (i *Instance) checkSelectable(date time.Time) error {
	day := date.Format(time.DateOnly)
	if !i.min.IsZero() && date.Before(i.min) {
		return rangeError("%s is before the minimum %s", day, i.min.Format(time.DateOnly))
	}
	if !i.max.IsZero() && date.After(i.max) {
		return rangeError("%s is after the maximum %s", day, i.max.Format(time.DateOnly))
	}
	if !i.cfg.monthPicker && i.dayDisabled(date) {
		return rangeError("%s is disabled", day)
	}
	return nil
}

func (i *Instance) applySelection(date time.Time) {
	i.selected = date
	if i.pair == nil {
		return
	}
	if i.IsFirst() {
		i.pair.onFirstSelected()
	} else {
		i.pair.onSecondSelected()
	}
}

func (i *Instance) clearSelection() {
	i.selected = time.Time{}
	if i.pair != nil {
		i.pair.onDeselect(i)
	}
}

// writeInput mirrors the selection into an input anchor.
func (i *Instance) writeInput() {
	if !i.anchor.IsInput() {
		return
	}
	if i.selected.IsZero() {
		i.anchor.SetValue("")
		return
	}
	if i.cfg.cb.formatter != nil {
		i.cfg.cb.formatter(i.anchor, i.selected, i)
		return
	}
	i.anchor.SetValue(i.FormatDate(i.selected))
}

func (i *Instance) changeBound(d time.Time, isMin bool) error {
	if i.removed {
		return ErrRemoved
	}
	var bound time.Time
	if !d.IsZero() {
		bound = i.normalize(d)
		if err := i.checkBound(bound, isMin); err != nil {
			i.reg.observe("reject")
			return err
		}
	}

	if i.pair != nil {
		i.pair.setBound(bound, isMin)
		i.reg.refresh(i.pair.other(i))
	} else if isMin {
		i.min = bound
	} else {
		i.max = bound
	}
	i.reg.refresh(i)
	return nil
}

// checkBound rejects a bound that would exclude a selection or cross the
// opposite bound.
func (i *Instance) checkBound(bound time.Time, isMin bool) error {
	members := []*Instance{i}
	var opposite time.Time
	switch {
	case i.pair != nil:
		members = []*Instance{i.pair.first, i.pair.second}
		opposite = i.pair.lo
		if isMin {
			opposite = i.pair.hi
		}
	case isMin:
		opposite = i.max
	default:
		opposite = i.min
	}

	day := bound.Format(time.DateOnly)
	for _, m := range members {
		if m.selected.IsZero() {
			continue
		}
		if isMin && bound.After(m.selected) {
			return rangeError("minimum %s is after the selected date %s", day, m.selected.Format(time.DateOnly))
		}
		if !isMin && bound.Before(m.selected) {
			return rangeError("maximum %s is before the selected date %s", day, m.selected.Format(time.DateOnly))
		}
	}
	if opposite.IsZero() {
		return nil
	}
	if isMin && bound.After(opposite) {
		return rangeError("minimum %s is after the maximum %s", day, opposite.Format(time.DateOnly))
	}
	if !isMin && bound.Before(opposite) {
		return rangeError("maximum %s is before the minimum %s", day, opposite.Format(time.DateOnly))
	}
	return nil
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
