package ui

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/calpicker/internal/config"
	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/http/csrf"
	"github.com/jw6ventures/calpicker/internal/picker"
	"github.com/jw6ventures/calpicker/internal/session"
)

var testNow = func() time.Time { return time.Date(2024, time.July, 1, 15, 30, 0, 0, time.UTC) }

type client struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
	token   string
}

func testConfig(burst int) *config.Config {
	cfg := &config.Config{BaseURL: "http://localhost:8080", Location: time.UTC}
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Session.IdleTimeout = time.Hour
	cfg.Session.MaxSessions = 10
	cfg.Events.PerSecond = 1
	cfg.Events.Burst = burst
	return cfg
}

func newClient(t *testing.T, burst int, seed func(*dom.Page, *picker.Registry) error) *client {
	t.Helper()
	cfg := testConfig(burst)
	m := session.NewManager(cfg, session.Options{Now: testNow, Seed: seed})
	t.Cleanup(m.Close)

	h := NewHandler(cfg, testNow)
	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Use(csrf.Middleware())
	r.Get("/", h.Index)
	r.Route("/api", h.Routes)

	c := &client{t: t, handler: r}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	c.cookies = rec.Result().Cookies()
	body := rec.Body.String()
	const marker = `name="csrf-token" content="`
	i := strings.Index(body, marker)
	if i < 0 {
		t.Fatal("host page has no csrf token")
	}
	rest := body[i+len(marker):]
	c.token = rest[:strings.Index(rest, `"`)]
	return c
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrf.HeaderName, c.token)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) state {
	t.Helper()
	var st state
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func (c *client) mustCreate(anchor string, spec map[string]any) pickerView {
	c.t.Helper()
	if rec := c.do(http.MethodPost, "/api/anchors", map[string]any{"id": anchor, "top": 100, "left": 50}); rec.Code != http.StatusCreated {
		c.t.Fatalf("create anchor %s = %d %s", anchor, rec.Code, rec.Body.String())
	}
	spec["anchor"] = "#" + anchor
	rec := c.do(http.MethodPost, "/api/pickers", spec)
	if rec.Code != http.StatusCreated {
		c.t.Fatalf("create picker on %s = %d %s", anchor, rec.Code, rec.Body.String())
	}
	var v pickerView
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		c.t.Fatal(err)
	}
	return v
}

func TestIndex(t *testing.T) {
	seed := func(p *dom.Page, reg *picker.Registry) error {
		if err := p.Add(dom.NewElement("checkin", dom.TagInput)); err != nil {
			return err
		}
		_, err := reg.Create("#checkin", picker.Options{})
		return err
	}
	c := newClient(t, 10, seed)
	if c.token == "" {
		t.Fatal("empty csrf token")
	}

	rec := c.do(http.MethodGet, "/", nil)
	body := rec.Body.String()
	for _, want := range []string{`id="checkin"`, `data-picker="dp1"`, `id="dp-surface"`, "dp-hidden"} {
		if !strings.Contains(body, want) {
			t.Errorf("host page is missing %s", want)
		}
	}
}

func TestRangeFlow(t *testing.T) {
	c := newClient(t, 10, nil)
	bounds := func() map[string]any {
		return map[string]any{"pair_id": "stay", "min_date": "2024-01-01", "max_date": "2024-12-31"}
	}
	start := c.mustCreate("from", bounds())
	end := c.mustCreate("to", bounds())
	if start.Role != roleStart || end.Role != roleEnd || start.Sibling != end.ID {
		t.Fatalf("pair views = %+v / %+v", start, end)
	}

	rec := c.do(http.MethodPut, "/api/pickers/"+start.ID+"/date", dateRequest{Date: "2024-07-10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set start = %d %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.Pickers[0].Value != "2024-07-10" || st.Pickers[1].Min != "2024-07-10" {
		t.Errorf("after start: %+v", st.Pickers)
	}

	if rec := c.do(http.MethodPut, "/api/pickers/"+end.ID+"/date", dateRequest{Date: "2024-07-05"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("end before start = %d, want 422", rec.Code)
	}
	if rec := c.do(http.MethodPut, "/api/pickers/"+end.ID+"/date", dateRequest{Date: "2024-07-20"}); rec.Code != http.StatusOK {
		t.Fatalf("set end = %d %s", rec.Code, rec.Body.String())
	}

	rec = c.do(http.MethodGet, "/api/pickers/"+start.ID+"/range", nil)
	var rg rangeResponse
	_ = json.NewDecoder(rec.Body).Decode(&rg)
	if rg.Start != "2024-07-10" || rg.End != "2024-07-20" {
		t.Errorf("range = %+v", rg)
	}

	if rec := c.do(http.MethodDelete, "/api/pickers/"+start.ID+"/date", nil); rec.Code != http.StatusOK {
		t.Fatalf("clear start = %d", rec.Code)
	}
	rec = c.do(http.MethodGet, "/api/pickers/"+end.ID, nil)
	var v pickerView
	_ = json.NewDecoder(rec.Body).Decode(&v)
	if v.Min != "2024-01-01" {
		t.Errorf("end min after clearing start = %q, want 2024-01-01", v.Min)
	}
}

func TestEventFlow(t *testing.T) {
	c := newClient(t, 10, nil)
	v := c.mustCreate("when", map[string]any{"min_date": "2024-06-01", "max_date": "2024-07-31"})

	rec := c.do(http.MethodPost, "/api/events", dom.EventInput{Type: "click", Element: "when"})
	if rec.Code != http.StatusOK {
		t.Fatalf("click anchor = %d %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.Surface.State != picker.SurfaceShowing || st.Surface.Owner != v.ID || st.Surface.Calendar == nil {
		t.Fatalf("surface = %+v", st.Surface.Snapshot)
	}
	if !strings.Contains(string(st.Surface.HTML), `data-part="day"`) {
		t.Error("surface markup has no day squares")
	}
	if st.Surface.Placement.Top != 132 || st.Surface.Placement.Left != 50 {
		t.Errorf("placement = %+v", st.Surface.Placement)
	}

	idx := -1
	for _, sq := range st.Surface.Calendar.Squares {
		if !sq.Outside && sq.Day == 18 {
			idx = sq.Index
		}
	}
	rec = c.do(http.MethodPost, "/api/events", dom.EventInput{Type: "click", Part: "day", Index: idx})
	st = decodeState(t, rec)
	if st.Surface.State != picker.SurfaceHidden {
		t.Error("surface still showing after a day click")
	}
	if st.Pickers[0].Selected != "2024-06-18" && st.Pickers[0].Selected != "2024-07-18" {
		t.Errorf("selected = %q", st.Pickers[0].Selected)
	}
	for _, a := range st.Anchors {
		if a.ID == "when" && a.Value != st.Pickers[0].Selected {
			t.Errorf("anchor value %q does not match selection %q", a.Value, st.Pickers[0].Selected)
		}
	}

	rec = c.do(http.MethodGet, "/api/surface", nil)
	var sv surfaceView
	_ = json.NewDecoder(rec.Body).Decode(&sv)
	if sv.State != picker.SurfaceHidden || sv.HTML != "" {
		t.Errorf("hidden surface = %+v", sv)
	}
}

func TestPickerOperations(t *testing.T) {
	c := newClient(t, 10, nil)
	v := c.mustCreate("when", map[string]any{"min_date": "2024-01-01", "max_date": "2024-12-31"})
	base := "/api/pickers/" + v.ID

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		check  func(t *testing.T, st state)
	}{
		{"navigate", http.MethodPost, "/navigate", dateRequest{Date: "2024-03-15"}, func(t *testing.T, st state) {
			if st.Pickers[0].Year != 2024 || st.Pickers[0].Month != 3 {
				t.Errorf("view = %d-%d", st.Pickers[0].Year, st.Pickers[0].Month)
			}
		}},
		{"show", http.MethodPost, "/show", nil, func(t *testing.T, st state) {
			if !st.Pickers[0].Showing {
				t.Error("not showing")
			}
		}},
		{"overlay", http.MethodPost, "/overlay", nil, func(t *testing.T, st state) {
			if !st.Surface.OverlayOpen {
				t.Error("overlay closed")
			}
		}},
		{"hide", http.MethodPost, "/hide", nil, func(t *testing.T, st state) {
			if st.Surface.State != picker.SurfaceHidden {
				t.Error("still showing")
			}
		}},
		{"set min", http.MethodPut, "/min", dateRequest{Date: "2024-02-01"}, func(t *testing.T, st state) {
			if st.Pickers[0].Min != "2024-02-01" {
				t.Errorf("min = %q", st.Pickers[0].Min)
			}
		}},
		{"clear min", http.MethodDelete, "/min", nil, func(t *testing.T, st state) {
			if st.Pickers[0].Min == "2024-02-01" {
				t.Error("min not cleared")
			}
		}},
		{"set max", http.MethodPut, "/max", dateRequest{Date: "2024-11-30"}, func(t *testing.T, st state) {
			if st.Pickers[0].Max != "2024-11-30" {
				t.Errorf("max = %q", st.Pickers[0].Max)
			}
		}},
		{"clear max", http.MethodDelete, "/max", nil, func(t *testing.T, st state) {
			if st.Pickers[0].Max == "2024-11-30" {
				t.Error("max not cleared")
			}
		}},
		{"set date", http.MethodPut, "/date", dateRequest{Date: "2024-05-05"}, func(t *testing.T, st state) {
			if st.Pickers[0].Selected != "2024-05-05" {
				t.Errorf("selected = %q", st.Pickers[0].Selected)
			}
		}},
		{"reset", http.MethodPost, "/reset", nil, func(t *testing.T, st state) {
			if st.Pickers[0].Selected != "" {
				t.Errorf("selected after reset = %q", st.Pickers[0].Selected)
			}
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(tc.method, base+tc.path, tc.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("%s %s = %d %s", tc.method, tc.path, rec.Code, rec.Body.String())
			}
			tc.check(t, decodeState(t, rec))
		})
	}
}

func TestSyncFromTypedValue(t *testing.T) {
	c := newClient(t, 10, nil)
	v := c.mustCreate("when", map[string]any{"min_date": "2024-01-01", "max_date": "2024-12-31"})

	if rec := c.do(http.MethodPut, "/api/anchors/when/value", valueRequest{Value: "2024-09-09"}); rec.Code != http.StatusOK {
		t.Fatalf("set value = %d", rec.Code)
	}
	rec := c.do(http.MethodPost, "/api/pickers/"+v.ID+"/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync = %d %s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, rec); st.Pickers[0].Selected != "2024-09-09" {
		t.Errorf("selected after sync = %q", st.Pickers[0].Selected)
	}
}

func TestSetDateChangesViewByDefault(t *testing.T) {
	c := newClient(t, 10, nil)
	v := c.mustCreate("when", map[string]any{"min_date": "2024-01-01", "max_date": "2024-12-31", "start_date": "2024-01-15"})
	if v.Year != 2024 || v.Month != 1 {
		t.Fatalf("initial view = %d-%02d, want 2024-01", v.Year, v.Month)
	}

	testCases := []struct {
		name  string
		body  any
		month int
	}{
		{"omitted", map[string]any{"date": "2024-06-15"}, 6},
		{"explicit false", `{"date":"2024-09-01","change_view":false}`, 6},
		{"explicit true", `{"date":"2024-10-02","change_view":true}`, 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(http.MethodPut, "/api/pickers/"+v.ID+"/date", tc.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("set date = %d %s", rec.Code, rec.Body.String())
			}
			if p := decodeState(t, rec).Pickers[0]; p.Month != tc.month {
				t.Errorf("view month = %d, want %d (selected %s)", p.Month, tc.month, p.Selected)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	c := newClient(t, 10, nil)
	v := c.mustCreate("when", map[string]any{})

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown picker", http.MethodGet, "/api/pickers/dp99", nil, http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/pickers", "{not json", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/pickers", `{"anchor":"#when","colour":"red"}`, http.StatusBadRequest},
		{"invalid options", http.MethodPost, "/api/pickers", map[string]any{"anchor": "#when", "min_date": "yesterday"}, http.StatusBadRequest},
		{"duplicate binding", http.MethodPost, "/api/pickers", map[string]any{"anchor": "#when"}, http.StatusConflict},
		{"unresolved selector", http.MethodPost, "/api/pickers", map[string]any{"anchor": "#nowhere"}, http.StatusBadRequest},
		{"duplicate anchor", http.MethodPost, "/api/anchors", map[string]any{"id": "when"}, http.StatusConflict},
		{"anchor without id", http.MethodPost, "/api/anchors", map[string]any{}, http.StatusBadRequest},
		{"not paired", http.MethodGet, "/api/pickers/" + v.ID + "/range", nil, http.StatusConflict},
		{"bad date", http.MethodPut, "/api/pickers/" + v.ID + "/date", dateRequest{Date: "07/01/2024"}, http.StatusBadRequest},
		{"out of range", http.MethodPut, "/api/pickers/" + v.ID + "/date", dateRequest{Date: "2030-01-01"}, http.StatusUnprocessableEntity},
		{"unknown event", http.MethodPost, "/api/events", dom.EventInput{Type: "keydown"}, http.StatusBadRequest},
		{"unknown element", http.MethodPost, "/api/events", dom.EventInput{Type: "click", Element: "ghost"}, http.StatusNotFound},
		{"unknown anchor value", http.MethodPut, "/api/anchors/ghost/value", valueRequest{Value: "x"}, http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Errorf("%s %s = %d, want %d (%s)", tc.method, tc.path, rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	rec := c.do(http.MethodDelete, "/api/pickers/"+v.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := c.do(http.MethodGet, "/api/pickers/"+v.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted picker = %d, want 404", rec.Code)
	}
}

func TestCreatePickerViolations(t *testing.T) {
	c := newClient(t, 10, nil)
	_ = c.do(http.MethodPost, "/api/anchors", map[string]any{"id": "when"})

	rec := c.do(http.MethodPost, "/api/pickers", map[string]any{
		"anchor":      "#when",
		"min_date":    "2024-13-01",
		"events_ical": "not a calendar",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Violations []picker.Violation `json:"violations"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if len(body.Violations) == 0 || body.Violations[0].Field != "min_date" {
		t.Errorf("violations = %+v", body.Violations)
	}
}

func TestEventsThrottled(t *testing.T) {
	c := newClient(t, 1, nil)
	c.mustCreate("when", map[string]any{})

	if rec := c.do(http.MethodPost, "/api/events", dom.EventInput{Type: "click", Element: "when"}); rec.Code != http.StatusOK {
		t.Fatalf("first event = %d", rec.Code)
	}
	if rec := c.do(http.MethodPost, "/api/events", dom.EventInput{Type: "click"}); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second event = %d, want 429", rec.Code)
	}
}

func TestCSRFRequired(t *testing.T) {
	c := newClient(t, 10, nil)
	c.token = "forged"
	if rec := c.do(http.MethodPost, "/api/anchors", map[string]any{"id": "x"}); rec.Code != http.StatusForbidden {
		t.Errorf("forged token = %d, want 403", rec.Code)
	}
}
