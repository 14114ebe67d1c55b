package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/stepauth/pkg/slogx"
)

// RateLimitConfig is a token bucket: Requests per Window, refilled evenly,
// with up to Burst requests at once.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Default profiles. Each one can be overridden with RATELIMIT_<NAME>_REQUESTS,
// RATELIMIT_<NAME>_WINDOW_SEC and RATELIMIT_<NAME>_BURST, see
// RateLimitFromEnv.
var (
	// StrictLimit guards credential and code checks.
	StrictLimit = RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit guards code delivery and session endpoints.
	ModerateLimit = RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20}

	// PublicLimit guards health and documentation endpoints.
	PublicLimit = RateLimitConfig{Requests: 1000, Window: time.Minute, Burst: 1000}
)

// RateLimitFromEnv returns def with any RATELIMIT_<name>_* overrides applied.
// Invalid or non-positive values are ignored.
func RateLimitFromEnv(name string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	prefix := "RATELIMIT_" + strings.ToUpper(name) + "_"

	if n, ok := positiveEnv(prefix + "REQUESTS"); ok {
		cfg.Requests = n
	}
	if n, ok := positiveEnv(prefix + "WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv(prefix + "BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnv(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// KeyExtractor picks the bucket a request is counted against. An empty key
// exempts the request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys by client address, honouring X-Forwarded-For and
// X-Real-IP set by a fronting proxy.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
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

// JSONFieldKeyExtractor keys by a top level string field of a JSON body.
// The body is restored for the next handler.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[field], &v) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// CookieKeyExtractor keys by the value of a cookie.
func CookieKeyExtractor(name string) KeyExtractor {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, ex := range extractors {
			if k := ex(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

// RateLimitOption tunes a limiter.
type RateLimitOption func(*rateLimiter)

// OnReject registers a hook called for every rejected request.
func OnReject(fn func(r *http.Request)) RateLimitOption {
	return func(rl *rateLimiter) { rl.onReject = fn }
}

type rateLimiter struct {
	cfg      RateLimitConfig
	key      KeyExtractor
	onReject func(*http.Request)

	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
}

const sweepEvery = 5 * time.Minute

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now := time.Now(); now.Sub(rl.lastSweep) >= sweepEvery {
		rl.lastSweep = now
		// A full bucket has been idle long enough to forget.
		for k, l := range rl.buckets {
			if l.Tokens() >= float64(rl.cfg.Burst) {
				delete(rl.buckets, k)
			}
		}
	}

	l, ok := rl.buckets[key]
	if !ok {
		every := rl.cfg.Window / time.Duration(max(rl.cfg.Requests, 1))
		l = rate.NewLimiter(rate.Every(every), rl.cfg.Burst)
		rl.buckets[key] = l
	}
	return l
}

// RateLimit rejects requests over cfg with 429 and a Retry-After header.
func RateLimit(cfg RateLimitConfig, key KeyExtractor, opts ...RateLimitOption) Middleware {
	rl := &rateLimiter{
		cfg:       cfg,
		key:       key,
		buckets:   make(map[string]*rate.Limiter),
		lastSweep: time.Now(),
	}
	for _, opt := range opts {
		opt(rl)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := rl.key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := rl.limiter(k)
			if l.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Reserve()
			wait := res.Delay()
			res.Cancel()
			retryAfter := max(int((wait + time.Second - 1) / time.Second), 1)

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k, "retry_after", retryAfter)
			if rl.onReject != nil {
				rl.onReject(r)
			}

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			WriteResult(w, http.StatusTooManyRequests, false, "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits per client address.
func RateLimitByIP(cfg RateLimitConfig, opts ...RateLimitOption) Middleware {
	return RateLimit(cfg, IPKeyExtractor, opts...)
}
