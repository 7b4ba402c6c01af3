package ui

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/http/errors"
	"github.com/jw6ventures/calpicker/internal/metrics"
	"github.com/jw6ventures/calpicker/internal/picker"
	"github.com/jw6ventures/calpicker/internal/presets"
	"github.com/jw6ventures/calpicker/internal/session"
)

type dateRequest struct {
	Date            string `json:"date"`
	// ChangeView moves the calendar to the new date. SetDate treats an
	// omitted value as true.
	ChangeView      *bool  `json:"change_view,omitempty"`
	TriggerCallback bool   `json:"trigger_callback,omitempty"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type rangeResponse struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type workspaceFunc func(page *dom.Page, reg *picker.Registry) (any, error)

// serve runs fn on the session workspace and answers with its result.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, status int, fn workspaceFunc) {
	ws, ok := session.FromContext(r.Context())
	if !ok {
		errors.InternalError(w, r, fmt.Errorf("no workspace"), "api request without session")
		return
	}
	var out any
	err := ws.Do(func(page *dom.Page, reg *picker.Registry) error {
		var err error
		out, err = fn(page, reg)
		return err
	})
	if err != nil {
		errors.WriteError(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

// mutate runs fn on the picker named in the URL and answers with the
// resulting workspace state.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(inst *picker.Instance) error) {
	h.serve(w, r, http.StatusOK, func(page *dom.Page, reg *picker.Registry) (any, error) {
		inst, err := lookup(r, reg)
		if err != nil {
			return nil, err
		}
		if err := fn(inst); err != nil {
			return nil, err
		}
		return snapshot(page, reg)
	})
}

func lookup(r *http.Request, reg *picker.Registry) (*picker.Instance, error) {
	id := chi.URLParam(r, "id")
	inst, ok := reg.Get(id)
	if !ok {
		return nil, fmt.Errorf("picker %q: %w", id, errors.ErrNotFound)
	}
	return inst, nil
}

// decodeOrReject reads the body into v, answering 400 on failure.
func decodeOrReject(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decode(r, v); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return false
	}
	return true
}

// State returns the whole workspace.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(page *dom.Page, reg *picker.Registry) (any, error) {
		return snapshot(page, reg)
	})
}

// Surface returns the shared surface with its markup.
func (h *Handler) Surface(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(_ *dom.Page, reg *picker.Registry) (any, error) {
		return surfaceOf(reg)
	})
}

// Event delivers one browser event to the page listeners.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	var in dom.EventInput
	if !decodeOrReject(w, r, &in) {
		return
	}
	if ws, ok := session.FromContext(r.Context()); ok && !ws.Allow() {
		metrics.EventThrottled()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}
	h.serve(w, r, http.StatusOK, func(page *dom.Page, reg *picker.Registry) (any, error) {
		ev, err := page.Resolve(in)
		if err != nil {
			return nil, err
		}
		page.Dispatch(ev)
		return snapshot(page, reg)
	})
}

func (h *Handler) ListPickers(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(_ *dom.Page, reg *picker.Registry) (any, error) {
		views := []pickerView{}
		for _, inst := range reg.Instances() {
			views = append(views, viewOf(inst))
		}
		return views, nil
	})
}

func (h *Handler) CreatePicker(w http.ResponseWriter, r *http.Request) {
	var spec presets.Spec
	if !decodeOrReject(w, r, &spec) {
		return
	}
	h.serve(w, r, http.StatusCreated, func(_ *dom.Page, reg *picker.Registry) (any, error) {
		opts, err := spec.Options(h.env)
		if err != nil {
			return nil, err
		}
		inst, err := reg.Create(spec.Anchor, opts)
		if err != nil {
			return nil, err
		}
		errors.LogInfo(r, fmt.Sprintf("picker %s created on #%s", inst.ID(), inst.Anchor().ID()))
		return viewOf(inst), nil
	})
}

func (h *Handler) GetPicker(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(_ *dom.Page, reg *picker.Registry) (any, error) {
		inst, err := lookup(r, reg)
		if err != nil {
			return nil, err
		}
		return viewOf(inst), nil
	})
}

func (h *Handler) DeletePicker(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).Remove)
}

func (h *Handler) Range(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(_ *dom.Page, reg *picker.Registry) (any, error) {
		inst, err := lookup(r, reg)
		if err != nil {
			return nil, err
		}
		rg, err := inst.Range()
		if err != nil {
			return nil, err
		}
		var out rangeResponse
		if !rg.Start.IsZero() {
			out.Start = inst.FormatDate(rg.Start)
		}
		if !rg.End.IsZero() {
			out.End = inst.FormatDate(rg.End)
		}
		return out, nil
	})
}

// withDate decodes a dateRequest and hands fn the parsed date.
func (h *Handler) withDate(w http.ResponseWriter, r *http.Request, fn func(inst *picker.Instance, d time.Time, req dateRequest) error) {
	var req dateRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	h.mutate(w, r, func(inst *picker.Instance) error {
		d, err := inst.ParseDate(req.Date)
		if err != nil {
			return err
		}
		return fn(inst, d, req)
	})
}

func (h *Handler) SetDate(w http.ResponseWriter, r *http.Request) {
	h.withDate(w, r, func(inst *picker.Instance, d time.Time, req dateRequest) error {
		return inst.SetDate(d, req.ChangeView == nil || *req.ChangeView)
	})
}

func (h *Handler) ClearDate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).ClearDate)
}

func (h *Handler) SetMin(w http.ResponseWriter, r *http.Request) {
	h.withDate(w, r, func(inst *picker.Instance, d time.Time, _ dateRequest) error {
		return inst.SetMin(d)
	})
}

func (h *Handler) ClearMin(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).ClearMin)
}

func (h *Handler) SetMax(w http.ResponseWriter, r *http.Request) {
	h.withDate(w, r, func(inst *picker.Instance, d time.Time, _ dateRequest) error {
		return inst.SetMax(d)
	})
}

func (h *Handler) ClearMax(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).ClearMax)
}

func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	h.withDate(w, r, func(inst *picker.Instance, d time.Time, req dateRequest) error {
		return inst.Navigate(d, req.TriggerCallback)
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).Show)
}

func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).Hide)
}

func (h *Handler) ToggleOverlay(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).ToggleOverlay)
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).SyncFromInput)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*picker.Instance).Reset)
}

// CreateAnchor adds an element pickers can bind to.
func (h *Handler) CreateAnchor(w http.ResponseWriter, r *http.Request) {
	var spec presets.AnchorSpec
	if !decodeOrReject(w, r, &spec) {
		return
	}
	spec.ApplyDefaults()
	h.serve(w, r, http.StatusCreated, func(page *dom.Page, _ *picker.Registry) (any, error) {
		e := spec.Element()
		if err := page.Add(e); err != nil {
			return nil, err
		}
		return anchorOf(e), nil
	})
}

// SetAnchorValue types into an input element, as a user would before a
// sync.
func (h *Handler) SetAnchorValue(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	h.serve(w, r, http.StatusOK, func(page *dom.Page, reg *picker.Registry) (any, error) {
		id := chi.URLParam(r, "id")
		e, ok := page.Element(id)
		if !ok {
			return nil, fmt.Errorf("element %q: %w", id, errors.ErrNotFound)
		}
		e.SetValue(req.Value)
		return snapshot(page, reg)
	})
}
