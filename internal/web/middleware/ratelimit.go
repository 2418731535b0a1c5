package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig sets the per-client limits.
type RateLimitConfig struct {
	GeneralRate     rate.Limit
	GeneralBurst    int
	ImportRate      rate.Limit
	ImportBurst     int
	CleanupInterval time.Duration
}

// PerMinute builds a config from requests-per-minute figures.
func PerMinute(general, imports int) RateLimitConfig {
	return RateLimitConfig{
		GeneralRate:     rate.Limit(float64(general) / 60),
		GeneralBurst:    general,
		ImportRate:      rate.Limit(float64(imports) / 60),
		ImportBurst:     imports,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// bucket is one family of per-client limiters.
type bucket struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
}

func newBucket(limit rate.Limit, burst int) *bucket {
	return &bucket{limit: limit, burst: burst, clients: make(map[string]*clientLimiter)}
}

func (b *bucket) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	cl, ok := b.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.clients[key] = cl
	}
	cl.lastAccess = now
	return cl.limiter
}

func (b *bucket) evict(before time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, cl := range b.clients {
		if cl.lastAccess.Before(before) {
			delete(b.clients, key)
		}
	}
}

func (b *bucket) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// RateLimiter limits requests per client ip, with a separate, tighter
// limit for imports.
type RateLimiter struct {
	config  RateLimitConfig
	general *bucket
	imports *bucket
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter starts the background cleanup; call Stop when done.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		general: newBucket(config.GeneralRate, config.GeneralBurst),
		imports: newBucket(config.ImportRate, config.ImportBurst),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// Middleware applies the general limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.limit(rl.general, "general", next)
}

// ImportMiddleware applies the import limit.
func (rl *RateLimiter) ImportMiddleware(next http.Handler) http.Handler {
	return rl.limit(rl.imports, "import", next)
}

// ClientCount returns how many clients the general limiter tracks.
func (rl *RateLimiter) ClientCount() int {
	return rl.general.len()
}

func (rl *RateLimiter) limit(b *bucket, kind string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !b.get(ip, time.Now()).Allow() {
			slog.Warn("rate limit exceeded", "ip", ip, "limit_type", kind, "path", r.URL.Path)
			writeRateLimitResponse(w, b.limit)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			cutoff := now.Add(-2 * rl.config.CleanupInterval)
			rl.general.evict(cutoff)
			rl.imports.evict(cutoff)
		case <-rl.stopCh:
			return
		}
	}
}

// writeRateLimitResponse sets Retry-After to the time one token takes to
// refill.
func writeRateLimitResponse(w http.ResponseWriter, limit rate.Limit) {
	retry := 1
	if limit > 0 {
		retry = max(1, int(math.Ceil(1/float64(limit)-1e-9)))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeJSONError(w, http.StatusTooManyRequests, "RATE001", "rate limit exceeded")
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "message": message, "code": code})
}
