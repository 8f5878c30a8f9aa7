package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-ums/pkg/convert"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

// Config holds rate limiting configuration
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	// BucketTTL is how long an idle client's bucket is kept in memory
	BucketTTL time.Duration
	// IncludeHeaders adds X-RateLimit-Limit to allowed responses
	IncludeHeaders bool
}

// DefaultConfig allows 100 requests per minute per client with bursts of 20.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerSecond: 100.0 / 60.0,
		Burst:             20,
		BucketTTL:         time.Hour,
		IncludeHeaders:    true,
	}
}

// Middleware limits requests per client IP
type Middleware struct {
	config  Config
	limiter *RateLimiter
	limited *prometheus.CounterVec
}

// NewMiddleware creates the middleware. limited, when set, counts rejected
// requests by route pattern.
func NewMiddleware(config Config, limited *prometheus.CounterVec) *Middleware {
	return &Middleware{
		config:  config,
		limiter: NewRateLimiter(config.RequestsPerSecond, config.Burst, config.BucketTTL),
		limited: limited,
	}
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if !m.config.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !m.limiter.Allow(ip) {
			m.rateLimitExceeded(w, r, ip)
			return
		}
		if m.config.IncludeHeaders {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.config.Burst))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, ip string) {
	slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path, "method", r.Method)
	if m.limited != nil {
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		m.limited.WithLabelValues(path).Inc()
	}

	w.Header().Set("Retry-After", "60")
	convert.WriteError(w, r, apperrors.New(apperrors.ErrCodeRateLimited, "Too many requests. Please try again later."))
}

// Reset clears the limit of one client
func (m *Middleware) Reset(ip string) {
	m.limiter.Reset(ip)
}

func (m *Middleware) GetStats() Stats {
	return m.limiter.GetStats()
}

// clientIP takes the first X-Forwarded-For entry, then X-Real-IP, then the
// remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
