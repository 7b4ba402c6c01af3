package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jw6ventures/calpicker/internal/config"
	"github.com/jw6ventures/calpicker/internal/session"
)

func newHandler(t *testing.T) (http.Handler, *session.Workspace, []*http.Cookie) {
	t.Helper()
	cfg := &config.Config{BaseURL: "http://localhost", Location: time.UTC}
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Session.IdleTimeout = time.Hour
	cfg.Session.MaxSessions = 10
	cfg.Events.PerSecond = 10
	cfg.Events.Burst = 10
	m := session.NewManager(cfg, session.Options{})
	t.Cleanup(m.Close)

	rec := httptest.NewRecorder()
	ws, err := m.Load(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}

	h := m.Middleware()(Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(TokenFromContext(r.Context())))
	})))
	return h, ws, rec.Result().Cookies()
}

func TestMiddleware(t *testing.T) {
	h, ws, cookies := newHandler(t)

	testCases := []struct {
		name   string
		method string
		header string
		form   string
		want   int
	}{
		{"safe method", http.MethodGet, "", "", http.StatusOK},
		{"header token", http.MethodPost, ws.CSRFToken, "", http.StatusOK},
		{"form token", http.MethodPost, "", ws.CSRFToken, http.StatusOK},
		{"missing token", http.MethodPut, "", "", http.StatusForbidden},
		{"wrong token", http.MethodDelete, "nope", "", http.StatusForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var req *http.Request
			if tc.form != "" {
				req = httptest.NewRequest(tc.method, "/", strings.NewReader(url.Values{"_csrf": {tc.form}}.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			} else {
				req = httptest.NewRequest(tc.method, "/", nil)
			}
			if tc.header != "" {
				req.Header.Set(HeaderName, tc.header)
			}
			for _, c := range cookies {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusOK && rec.Body.String() != ws.CSRFToken {
				t.Errorf("token in context = %q", rec.Body.String())
			}
		})
	}
}

func TestMiddlewareWithoutSession(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached without a session")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
