package ui

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/calpicker/internal/config"
	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/http/errors"
	"github.com/jw6ventures/calpicker/internal/picker"
	"github.com/jw6ventures/calpicker/internal/presets"
	"github.com/jw6ventures/calpicker/internal/session"
)

// Handler serves the host page and the picker JSON API.
type Handler struct {
	cfg       *config.Config
	env       presets.Env
	templates map[string]*template.Template
}

func NewHandler(cfg *config.Config, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		cfg: cfg,
		// API clients may not reference files, so BaseDir stays empty.
		env:       presets.Env{Location: cfg.Location, Now: now, Decorate: LogCallbacks},
		templates: templates,
	}
}

// Routes registers the JSON API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/state", h.State)
	r.Get("/surface", h.Surface)
	r.Post("/events", h.Event)

	r.Get("/pickers", h.ListPickers)
	r.Post("/pickers", h.CreatePicker)
	r.Route("/pickers/{id}", func(r chi.Router) {
		r.Get("/", h.GetPicker)
		r.Delete("/", h.DeletePicker)
		r.Get("/range", h.Range)

		r.Put("/date", h.SetDate)
		r.Delete("/date", h.ClearDate)
		r.Put("/min", h.SetMin)
		r.Delete("/min", h.ClearMin)
		r.Put("/max", h.SetMax)
		r.Delete("/max", h.ClearMax)

		r.Post("/navigate", h.Navigate)
		r.Post("/show", h.Show)
		r.Post("/hide", h.Hide)
		r.Post("/overlay", h.ToggleOverlay)
		r.Post("/sync", h.Sync)
		r.Post("/reset", h.Reset)
	})

	r.Post("/anchors", h.CreateAnchor)
	r.Put("/anchors/{id}/value", h.SetAnchorValue)
}

// Index renders the host page with every anchor and the current surface.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	ws, ok := session.FromContext(r.Context())
	if !ok {
		errors.InternalError(w, r, fmt.Errorf("no workspace"), "index without session")
		return
	}

	var st state
	err := ws.Do(func(page *dom.Page, reg *picker.Registry) error {
		var err error
		st, err = snapshot(page, reg)
		return err
	})
	if err != nil {
		errors.InternalError(w, r, err, "render surface")
		return
	}

	data := map[string]any{
		"Title":   "Date pickers",
		"Anchors": st.Anchors,
		"Pickers": st.Pickers,
		"Surface": st.Surface,
	}
	h.render(w, r, "index.html", h.withCSRF(r, data))
}

// LogCallbacks makes a picker report its callbacks in the server log.
func LogCallbacks(o *picker.Options) {
	o.OnSelect = func(inst *picker.Instance, date time.Time) {
		if date.IsZero() {
			log.Printf("[INFO] picker %s: selection cleared", inst.ID())
			return
		}
		log.Printf("[INFO] picker %s: selected %s", inst.ID(), inst.FormatDate(date))
	}
	o.OnShow = func(inst *picker.Instance) {
		log.Printf("[INFO] picker %s: shown", inst.ID())
	}
	o.OnHide = func(inst *picker.Instance) {
		log.Printf("[INFO] picker %s: hidden", inst.ID())
	}
	o.OnMonthChange = func(inst *picker.Instance) {
		log.Printf("[INFO] picker %s: month %d-%02d", inst.ID(), inst.CurrentYear(), inst.CurrentMonth())
	}
}
