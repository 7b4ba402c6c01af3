package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const requestIDCtxKey ctxKey = "metrics_request_id"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calpicker_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calpicker_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calpicker_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	pickerActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calpicker_picker_actions_total",
		Help: "Picker state changes by action.",
	}, []string{"action"})

	pickerInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "calpicker_picker_instances",
		Help: "Live picker instances across all sessions.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "calpicker_sessions_active",
		Help: "Session workspaces held in memory.",
	})

	eventsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calpicker_events_throttled_total",
		Help: "Surface events rejected by the per-session rate limit.",
	})
)

// Middleware records request metrics and stores the request id for downstream logging.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if reqID := middleware.GetReqID(ctx); reqID != "" {
				ctx = context.WithValue(ctx, requestIDCtxKey, reqID)
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			// the route pattern is only complete once chi has matched the request
			route := routePattern(r)
			status := ww.Status()
			method := r.Method
			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route).Inc()
			httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RequestIDFromContext extracts the request ID stored by the metrics middleware.
func RequestIDFromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return reqID
	}
	return ""
}

// SetSessions records the number of live session workspaces.
func SetSessions(n int) {
	sessionsActive.Set(float64(n))
}

// EventThrottled counts one rate-limited surface event.
func EventThrottled() {
	eventsThrottledTotal.Inc()
}

// PickerObserver feeds one registry's activity into the picker metrics.
// The instance gauge is shared by all registries, so each observer adds
// only the change since its last report.
type PickerObserver struct {
	mu   sync.Mutex
	last int
}

// NewPickerObserver returns an observer for a fresh registry.
func NewPickerObserver() *PickerObserver {
	return &PickerObserver{}
}

func (o *PickerObserver) ObserveAction(action string) {
	pickerActionsTotal.WithLabelValues(action).Inc()
}

func (o *PickerObserver) ObserveInstances(n int) {
	o.mu.Lock()
	delta := n - o.last
	o.last = n
	o.mu.Unlock()
	pickerInstances.Add(float64(delta))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
