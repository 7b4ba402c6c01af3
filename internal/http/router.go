package httpserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/calpicker/internal/config"
	"github.com/jw6ventures/calpicker/internal/http/csrf"
	"github.com/jw6ventures/calpicker/internal/http/ratelimit"
	"github.com/jw6ventures/calpicker/internal/metrics"
	"github.com/jw6ventures/calpicker/internal/session"
	"github.com/jw6ventures/calpicker/internal/ui"
)

// ReadyFunc reports whether the server can take traffic.
type ReadyFunc func(ctx context.Context) error

// NewRouter wires the host page, the picker API and the operational endpoints.
func NewRouter(cfg *config.Config, sessions *session.Manager, ready ReadyFunc) http.Handler {
	r := chi.NewRouter()

	// Session creation: 10 requests per second, burst of 30 per client
	clientLimiter := ratelimit.New(rate.Limit(10), 30, 5*time.Minute, ratelimit.ClientIP(cfg.TrustedProxies)).
		OnReject(func() { log.Printf("[WARN] client rate limit exceeded") })

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if ready != nil {
			if err := ready(ctx); err != nil {
				http.Error(w, "unready", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	uiHandler := ui.NewHandler(cfg, nil)
	r.Group(func(r chi.Router) {
		r.Use(clientLimiter.Middleware())
		r.Use(sessions.Middleware())
		r.Use(csrf.Middleware())

		r.Get("/", uiHandler.Index)
		r.Route("/api", uiHandler.Routes)
	})

	return r
}
