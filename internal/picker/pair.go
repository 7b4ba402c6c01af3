package picker

import "time"

// RangePair links two pickers into a date range. It owns the shared
// original bounds and the rules that let each selection bound the other:
// the first picker's max is capped by the second's selection and the
// second picker's min is floored by the first's selection.
type RangePair struct {
	id     string
	first  *Instance
	second *Instance
	// lo and hi are the original bounds restored on deselect.
	lo, hi time.Time
}

// newRangePair links first and second. The first picker's min and the
// second picker's max become the shared bounds.
func newRangePair(first, second *Instance) (*RangePair, error) {
	p := &RangePair{
		id:     first.cfg.pairID,
		first:  first,
		second: second,
		lo:     first.min,
		hi:     second.max,
	}

	verr := &ValidationError{}
	if !p.lo.IsZero() && !p.hi.IsZero() && p.hi.Before(p.lo) {
		verr.add("max_date", "range end %s is before range start %s", p.hi.Format(time.DateOnly), p.lo.Format(time.DateOnly))
	}
	for _, m := range []*Instance{first, second} {
		if m.selected.IsZero() {
			continue
		}
		if (!p.lo.IsZero() && m.selected.Before(p.lo)) || (!p.hi.IsZero() && m.selected.After(p.hi)) {
			verr.add("initial_date", "%s is outside the shared range", m.selected.Format(time.DateOnly))
		}
	}
	if !first.selected.IsZero() && !second.selected.IsZero() && second.selected.Before(first.selected) {
		verr.add("initial_date", "range end %s is before range start %s",
			second.selected.Format(time.DateOnly), first.selected.Format(time.DateOnly))
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the pair id shared by both pickers.
func (p *RangePair) ID() string { return p.id }

// First returns the range start picker.
func (p *RangePair) First() *Instance { return p.first }

// Second returns the range end picker.
func (p *RangePair) Second() *Instance { return p.second }

// Range returns both selections.
func (p *RangePair) Range() Range {
	return Range{Start: p.first.selected, End: p.second.selected}
}

func (p *RangePair) other(i *Instance) *Instance {
	if p.first == i {
		return p.second
	}
	return p.first
}

func (p *RangePair) onFirstSelected() {
	p.second.min = p.first.selected
}

func (p *RangePair) onSecondSelected() {
	p.first.max = p.second.selected
}

func (p *RangePair) onDeselect(i *Instance) {
	if i == p.first {
		p.first.min = p.lo
		p.second.min = p.lo
		return
	}
	p.first.max = p.hi
	p.second.max = p.hi
}

// reconcile recomputes both pickers' effective bounds from the shared
// bounds and the current selections.
func (p *RangePair) reconcile() {
	p.first.min, p.first.max = p.lo, p.hi
	p.second.min, p.second.max = p.lo, p.hi
	if !p.first.selected.IsZero() {
		p.onFirstSelected()
	}
	if !p.second.selected.IsZero() {
		p.onSecondSelected()
	}
}

func (p *RangePair) setBound(bound time.Time, isMin bool) {
	if isMin {
		p.lo = bound
	} else {
		p.hi = bound
	}
	p.reconcile()
}

// dissolve restores the survivor's own bounds after its sibling is removed.
func (p *RangePair) dissolve(removed *Instance) *Instance {
	survivor := p.other(removed)
	survivor.pair = nil
	survivor.min, survivor.max = p.lo, p.hi
	return survivor
}
