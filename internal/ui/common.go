package ui

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/http/csrf"
	"github.com/jw6ventures/calpicker/internal/http/errors"
	"github.com/jw6ventures/calpicker/internal/picker"
)

// maxBodySize bounds API request bodies, inline iCalendar text included.
const maxBodySize = 1 << 20

const (
	roleStart = "start"
	roleEnd   = "end"
)

type pickerView struct {
	ID          string `json:"id"`
	Anchor      string `json:"anchor"`
	Value       string `json:"value"`
	PairID      string `json:"pair_id,omitempty"`
	Sibling     string `json:"sibling,omitempty"`
	Role        string `json:"role,omitempty"`
	Format      string `json:"format"`
	MonthPicker bool   `json:"month_picker"`
	Selected    string `json:"selected,omitempty"`
	Min         string `json:"min"`
	Max         string `json:"max"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Showing     bool   `json:"showing"`
}

type anchorView struct {
	ID       string `json:"id"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled"`
	ReadOnly bool   `json:"read_only"`

	Rect picker.Rect `json:"rect"`
}

type surfaceView struct {
	picker.Snapshot
	HTML template.HTML `json:"html,omitempty"`
}

// state is the whole workspace as the browser shim sees it.
type state struct {
	Surface surfaceView  `json:"surface"`
	Pickers []pickerView `json:"pickers"`
	Anchors []anchorView `json:"anchors"`
}

func viewOf(inst *picker.Instance) pickerView {
	v := pickerView{
		ID:          inst.ID(),
		Anchor:      inst.Anchor().ID(),
		Value:       inst.Anchor().Value(),
		PairID:      inst.PairID(),
		Format:      inst.Format(),
		MonthPicker: inst.IsMonthPicker(),
		Min:         inst.FormatDate(inst.MinDate()),
		Max:         inst.FormatDate(inst.MaxDate()),
		Year:        inst.CurrentYear(),
		Month:       int(inst.CurrentMonth()),
		Showing:     inst.Showing(),
	}
	if sib := inst.Sibling(); sib != nil {
		v.Sibling = sib.ID()
	}
	switch {
	case inst.IsFirst():
		v.Role = roleStart
	case inst.IsSecond():
		v.Role = roleEnd
	}
	if d, ok := inst.Selected(); ok {
		v.Selected = inst.FormatDate(d)
	}
	return v
}

func surfaceOf(reg *picker.Registry) (surfaceView, error) {
	sv := surfaceView{Snapshot: reg.Surface()}
	if sv.Calendar != nil {
		html, err := picker.Markup(*sv.Calendar)
		if err != nil {
			return sv, fmt.Errorf("render surface: %w", err)
		}
		sv.HTML = html
	}
	return sv, nil
}

func snapshot(page *dom.Page, reg *picker.Registry) (state, error) {
	sv, err := surfaceOf(reg)
	if err != nil {
		return state{}, err
	}
	st := state{Surface: sv, Pickers: []pickerView{}, Anchors: []anchorView{}}
	for _, inst := range reg.Instances() {
		st.Pickers = append(st.Pickers, viewOf(inst))
	}
	for _, e := range page.Elements() {
		st.Anchors = append(st.Anchors, anchorOf(e))
	}
	return st, nil
}

func anchorOf(e *dom.Element) anchorView {
	return anchorView{
		ID:       e.ID(),
		Tag:      e.Tag(),
		Value:    e.Value(),
		Disabled: e.Disabled(),
		ReadOnly: e.ReadOnly(),
		Rect:     e.Rect(),
	}
}

// withCSRF adds the CSRF token to template data.
func (h *Handler) withCSRF(r *http.Request, data map[string]any) map[string]any {
	if token := csrf.TokenFromContext(r.Context()); token != "" {
		data["CSRFToken"] = token
	}
	return data
}

// decode reads a JSON request body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// render executes a template and writes the response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	tmpl, ok := h.templates[name]
	if !ok {
		errors.InternalError(w, r, fmt.Errorf("template not found"), fmt.Sprintf("template %q not found", name))
		return
	}

	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		errors.InternalError(w, r, err, fmt.Sprintf("template render error for %q", name))
	}
}
