package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/MiriamHerrera/cosmetics-api/internal/auth"
	"github.com/MiriamHerrera/cosmetics-api/internal/obs"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
	ctxKeyRequestID
)

func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(auth.Claims)
	return c, ok
}

func withServerDefaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
		obs.Logger.Info("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// ---------------------------------------------------------------------------
// Per-IP rate limiting
// ---------------------------------------------------------------------------

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

type rateLimiter struct {
	rps   int
	burst int

	mu  sync.Mutex
	ips map[string]*ipLimiter
}

func newRateLimiter(rps, burst int) *rateLimiter {
	return &rateLimiter{rps: rps, burst: burst, ips: make(map[string]*ipLimiter)}
}

func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.ips[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.ips[ip] = l
	}
	l.last = now
	if len(rl.ips) > 10000 {
		for k, v := range rl.ips {
			if now.Sub(v.last) > 30*time.Minute {
				delete(rl.ips, k)
			}
		}
	}
	return l.limiter.Allow()
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.allow(ip, time.Now()) {
			writeJSON(w, http.StatusTooManyRequests, envelope{Message: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Bearer token auth
// ---------------------------------------------------------------------------

// withOptionalAuth parses a Bearer token when one is present and attaches the
// claims to the request context. Missing tokens are fine; malformed ones are
// rejected so a client never silently falls back to guest identity.
func (a *App) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			fail(w, r, auth.ErrTokenInvalid)
			return
		}
		claims, err := a.Auth.VerifyToken(token)
		if err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, claims)))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := claimsFrom(r.Context()); !ok {
			fail(w, r, auth.ErrTokenInvalid)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r.Context())
		if !ok {
			fail(w, r, auth.ErrTokenInvalid)
			return
		}
		if claims.Role != auth.RoleAdmin {
			writeJSON(w, http.StatusForbidden, envelope{Message: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
