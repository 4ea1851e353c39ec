package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/scalewatch/weight-monitor-backend/pkg/clientip"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	loginMu       sync.Mutex
	loginLimiters = make(map[string]*limiterEntry)
)

// LoginRateLimit throttles credential endpoints per IP, independently of
// the Redis limiter, so password guessing stays slow even when the global
// limit is generous.
func LoginRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)

		loginMu.Lock()
		entry, ok := loginLimiters[ip]
		if !ok {
			entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(2*time.Second), 5)}
			loginLimiters[ip] = entry
		}
		entry.lastSeen = time.Now()
		if len(loginLimiters) > 1000 {
			for k, v := range loginLimiters {
				if time.Since(v.lastSeen) > 10*time.Minute {
					delete(loginLimiters, k)
				}
			}
		}
		loginMu.Unlock()

		if !entry.limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"Too many attempts. Please try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
