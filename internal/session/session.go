// Package session keeps one in-memory picker workspace per browser session.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/calpicker/internal/config"
	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/picker"
)

const (
	cookieName     = "calpicker_session"
	cookieMaxAge   = 7 * 24 * time.Hour
	viewportWidth  = 1280
	viewportHeight = 800
)

type contextKey struct{}

// Workspace is the page and picker registry behind one session. Callers
// serialize access through Do.
type Workspace struct {
	ID        string
	CSRFToken string

	mu         sync.Mutex
	page       *dom.Page
	registry   *picker.Registry
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Do runs fn with exclusive access to the workspace.
func (w *Workspace) Do(fn func(page *dom.Page, reg *picker.Registry) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.page, w.registry)
}

// close removes every picker so observers see the workspace go away.
func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, inst := range w.registry.Instances() {
		_ = inst.Remove()
	}
}

// Allow reports whether the workspace may handle another event now.
func (w *Workspace) Allow() bool {
	return w.limiter.Allow()
}

// Options tune how workspaces are built.
type Options struct {
	Location *time.Location
	Now      func() time.Time
	// Observer builds the observer for each new workspace registry.
	Observer func() picker.Observer
	// Seed populates a new workspace, typically from a preset file.
	Seed func(page *dom.Page, reg *picker.Registry) error
	// OnCount receives the number of live workspaces after every change.
	OnCount func(n int)
}

// Manager issues signed session cookies and owns their workspaces.
type Manager struct {
	codec  *securecookie.SecureCookie
	secure bool
	opts   Options

	idle       time.Duration
	maxEntries int
	rate       rate.Limit
	burst      int

	mu         sync.Mutex
	workspaces map[string]*Workspace
	done       chan struct{}
	closeOnce  sync.Once
}

func NewManager(cfg *config.Config, opts Options) *Manager {
	hash := sha256.Sum256([]byte(cfg.Session.Secret))
	sc := securecookie.New(hash[:], hash[:])
	sc.MaxAge(int(cookieMaxAge / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = cfg.Location
	}

	m := &Manager{
		codec:      sc,
		secure:     secure,
		opts:       opts,
		idle:       cfg.Session.IdleTimeout,
		maxEntries: cfg.Session.MaxSessions,
		rate:       rate.Limit(cfg.Events.PerSecond),
		burst:      cfg.Events.Burst,
		workspaces: make(map[string]*Workspace),
		done:       make(chan struct{}),
	}
	go m.cleanupStale()
	return m
}

// Close stops the cleanup goroutine.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Len returns the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Load returns the workspace for the request's session, creating a session
// and setting its cookie when there is none.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Workspace, error) {
	if id, ok := m.sessionID(r); ok {
		if ws := m.touch(id); ws != nil {
			return ws, nil
		}
	}

	ws, err := m.create()
	if err != nil {
		return nil, err
	}
	if err := m.issue(w, ws.ID); err != nil {
		m.drop(ws.ID)
		return nil, err
	}
	return ws, nil
}

// Middleware attaches the session workspace to the request context.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws, err := m.Load(w, r)
			if err != nil {
				http.Error(w, "failed to start session", http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), contextKey{}, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the workspace stored by Middleware.
func FromContext(ctx context.Context) (*Workspace, bool) {
	ws, ok := ctx.Value(contextKey{}).(*Workspace)
	return ws, ok
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return "", false
	}

	var value map[string]any
	if err := m.codec.Decode(cookieName, c.Value, &value); err != nil {
		return "", false
	}

	exp, ok := value["exp"].(float64)
	if !ok || time.Unix(int64(exp), 0).Before(m.opts.Now()) {
		return "", false
	}
	id, ok := value["sid"].(string)
	return id, ok && id != ""
}

func (m *Manager) issue(w http.ResponseWriter, id string) error {
	expires := m.opts.Now().Add(cookieMaxAge)
	encoded, err := m.codec.Encode(cookieName, map[string]any{
		"sid": id,
		"exp": expires.Unix(),
	})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) touch(id string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil
	}
	ws.lastAccess = m.opts.Now()
	return ws
}

func (m *Manager) create() (*Workspace, error) {
	id, err := generateToken()
	if err != nil {
		return nil, err
	}
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	page := dom.NewPage(viewportWidth, viewportHeight, false)
	regOpts := []picker.RegistryOption{
		picker.WithClock(m.opts.Now),
		picker.WithLocation(m.opts.Location),
	}
	if m.opts.Observer != nil {
		regOpts = append(regOpts, picker.WithObserver(m.opts.Observer()))
	}
	reg := picker.NewRegistry(page, regOpts...)
	ws := &Workspace{
		ID:         id,
		CSRFToken:  token,
		page:       page,
		registry:   reg,
		limiter:    rate.NewLimiter(m.rate, m.burst),
		lastAccess: m.opts.Now(),
	}
	if m.opts.Seed != nil {
		if err := m.opts.Seed(page, reg); err != nil {
			ws.close()
			return nil, err
		}
	}

	m.mu.Lock()
	if len(m.workspaces) >= m.maxEntries {
		m.evictOldest()
	}
	m.workspaces[id] = ws
	n := len(m.workspaces)
	m.mu.Unlock()

	m.report(n)
	return ws, nil
}

func (m *Manager) drop(id string) {
	m.mu.Lock()
	delete(m.workspaces, id)
	n := len(m.workspaces)
	m.mu.Unlock()
	m.report(n)
}

// evictOldest must be called with m.mu held.
func (m *Manager) evictOldest() {
	var oldestID string
	var oldestTime time.Time

	for id, ws := range m.workspaces {
		if oldestID == "" || ws.lastAccess.Before(oldestTime) {
			oldestID = id
			oldestTime = ws.lastAccess
		}
	}

	if oldestID != "" {
		m.workspaces[oldestID].close()
		delete(m.workspaces, oldestID)
	}
}

func (m *Manager) cleanupStale() {
	interval := m.idle / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	cutoff := m.opts.Now().Add(-m.idle)
	for id, ws := range m.workspaces {
		if ws.lastAccess.Before(cutoff) {
			ws.close()
			delete(m.workspaces, id)
		}
	}
	n := len(m.workspaces)
	m.mu.Unlock()
	m.report(n)
}

func (m *Manager) report(n int) {
	if m.opts.OnCount != nil {
		m.opts.OnCount(n)
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
