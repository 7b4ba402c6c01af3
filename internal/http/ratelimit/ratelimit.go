package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// Limiter holds one token bucket per key. Buckets idle for twice the
// cleanup interval are dropped.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       rate.Limit
	burst      int
	cleanup    time.Duration
	maxEntries int
	key        KeyFunc
	onReject   func()
	done       chan struct{}
	closeOnce  sync.Once
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// New creates a limiter allowing r requests per second with burst b per key.
func New(r rate.Limit, b int, cleanup time.Duration, key KeyFunc) *Limiter {
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		rate:       r,
		burst:      b,
		cleanup:    cleanup,
		maxEntries: 10000,
		key:        key,
		done:       make(chan struct{}),
	}
	go l.cleanupStale()
	return l
}

// OnReject registers a hook called for every rejected request.
func (l *Limiter) OnReject(fn func()) *Limiter {
	l.onReject = fn
	return l
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxEntries {
			l.evictOldest()
		}
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastAccess = time.Now()
	return b.limiter
}

func (l *Limiter) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for k, b := range l.buckets {
		if oldestKey == "" || b.lastAccess.Before(oldestTime) {
			oldestKey = k
			oldestTime = b.lastAccess
		}
	}

	if oldestKey != "" {
		delete(l.buckets, oldestKey)
	}
}

func (l *Limiter) cleanupStale() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-l.cleanup * 2)
			for k, b := range l.buckets {
				if b.lastAccess.Before(cutoff) {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.key(r)) {
				if l.onReject != nil {
					l.onReject()
				}
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by client address. X-Forwarded-For and X-Real-IP
// are honored only from trusted proxies; with none configured every proxy
// is trusted.
func ClientIP(trustedProxies []string) KeyFunc {
	var trusted []*net.IPNet
	for _, cidr := range trustedProxies {
		if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
			trusted = append(trusted, ipnet)
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil {
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			trusted = append(trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}

	return func(r *http.Request) string {
		remoteIP := parseIP(r.RemoteAddr)

		if len(trusted) > 0 && !containsIP(trusted, remoteIP) {
			return remoteIP.String()
		}

		// leftmost entry is the original client
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
				return parsed.String()
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if parsed := net.ParseIP(xri); parsed != nil {
				return parsed.String()
			}
		}
		return remoteIP.String()
	}
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func parseIP(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
