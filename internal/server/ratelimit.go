package server

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"applysharp/internal/errors"

	"golang.org/x/time/rate"
)

// LimiterManager manages a token bucket per client IP.
type LimiterManager struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	idle     time.Duration
	done     chan struct{}
	logger   *errors.Logger
}

// RateLimiter is the general per-IP request limiter
type RateLimiter = LimiterManager

// NewRateLimiter creates a new manager.
// requestsPerMin is the number of requests allowed per minute.
// idle is how long an unused limiter is kept.
// burstCapacity is the token bucket size.
func NewRateLimiter(requestsPerMin int, idle time.Duration, burstCapacity int, logger *errors.Logger) *LimiterManager {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	m := &LimiterManager{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstCapacity,
		idle:     idle,
		done:     make(chan struct{}),
		logger:   logger,
	}

	go m.cleanupRoutine(idle)
	return m
}

// GetLimiter retrieves or creates a limiter for a given key.
func (m *LimiterManager) GetLimiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(m.rate, m.burst)
		m.limiters[key] = limiter
	}
	m.lastSeen[key] = time.Now()

	return limiter
}

// Allow checks if a request should be allowed for the given key
func (m *LimiterManager) Allow(key string) bool {
	return m.GetLimiter(key).Allow()
}

// GetStats returns current rate limiter statistics
func (m *LimiterManager) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"active_limiters": len(m.limiters),
		"rate_per_second": float64(m.rate),
		"rate_per_minute": float64(m.rate) * 60.0,
		"burst_capacity":  m.burst,
	}
}

// cleanupRoutine periodically removes inactive limiters
func (m *LimiterManager) cleanupRoutine(cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(m.idle)
		case <-m.done:
			return
		}
	}
}

// cleanup removes limiters that haven't been used for the specified duration
func (m *LimiterManager) cleanup(evictionAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, lastSeen := range m.lastSeen {
		if now.Sub(lastSeen) > evictionAge {
			delete(m.limiters, key)
			delete(m.lastSeen, key)
		}
	}

	m.logger.Debug("Rate limiter cleanup completed", "remaining_limiters", len(m.limiters))
}

// Close stops the cleanup goroutine. Should be called when shutting down the server.
func (m *LimiterManager) Close() {
	close(m.done)
}

// retryAfter is the wait until the next token.
func (m *LimiterManager) retryAfter() time.Duration {
	if m.rate <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / float64(m.rate))
}

// AnalysisLimiter caps analysis starts per client IP over a sliding hour
// and a sliding day.
type AnalysisLimiter struct {
	mu      sync.Mutex
	starts  map[string][]time.Time
	perHour int
	perDay  int
	now     func() time.Time
}

// NewAnalysisLimiter creates a sliding-window limiter
func NewAnalysisLimiter(perHour, perDay int) *AnalysisLimiter {
	return &AnalysisLimiter{
		starts:  make(map[string][]time.Time),
		perHour: perHour,
		perDay:  perDay,
		now:     time.Now,
	}
}

// Allow records an analysis start for key, or returns a RateLimited error
// when either window is full. Refused attempts are not recorded.
func (l *AnalysisLimiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	starts := l.prune(key, now)

	var inHour []time.Time
	for _, t := range starts {
		if now.Sub(t) < time.Hour {
			inHour = append(inHour, t)
		}
	}

	switch {
	case len(inHour) >= l.perHour:
		return rateLimited(errors.ErrCodeHourlyLimit,
			fmt.Sprintf("Slow down, max %d analyses per hour. Try again soon.", l.perHour),
			inHour[0].Add(time.Hour).Sub(now))
	case len(starts) >= l.perDay:
		return rateLimited(errors.ErrCodeDailyLimit,
			fmt.Sprintf("Daily limit hit, max %d CVs per day. Come back tomorrow.", l.perDay),
			starts[0].Add(24*time.Hour).Sub(now))
	}

	l.starts[key] = append(starts, now)
	return nil
}

// prune drops starts older than a day. Callers hold the lock.
func (l *AnalysisLimiter) prune(key string, now time.Time) []time.Time {
	starts := l.starts[key]
	i := 0
	for i < len(starts) && now.Sub(starts[i]) >= 24*time.Hour {
		i++
	}
	starts = starts[i:]
	if len(starts) == 0 {
		delete(l.starts, key)
		return nil
	}
	l.starts[key] = starts
	return starts
}

// Cleanup forgets clients with no start in the last day
func (l *AnalysisLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.starts {
		l.prune(key, now)
	}
}

// GetStats returns current analysis limiter statistics
func (l *AnalysisLimiter) GetStats() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]any{
		"tracked_clients": len(l.starts),
		"per_hour":        l.perHour,
		"per_day":         l.perDay,
	}
}

func rateLimited(code, message string, wait time.Duration) error {
	seconds := int(math.Ceil(wait.Seconds()))
	return errors.NewRateLimitedError(code, message).WithContext("retry_after", max(seconds, 1))
}

// rateLimitMiddleware applies the per-IP token bucket.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			if !s.RateLimiter.Allow("ip:" + clientIP) {
				s.Logger.Info("Rate limit exceeded",
					"endpoint", r.URL.Path,
					"client_ip", clientIP)
				s.Observability.GetMetrics().RecordRateLimitHit(r.Context(), "requests")
				writeAppError(w, rateLimited(errors.ErrCodeTooManyRequests,
					"Too many requests. Please slow down.", s.RateLimiter.retryAfter()))
				return
			}

			next(w, r)
		}
	}
}

// checkAnalysisLimit counts one analysis start for the client.
func (s *Server) checkAnalysisLimit(r *http.Request) error {
	if s.AnalysisLimiter == nil {
		return nil
	}
	clientIP := getClientIP(r)
	if err := s.AnalysisLimiter.Allow(clientIP); err != nil {
		s.Logger.Info("Analysis limit exceeded", "client_ip", clientIP)
		s.Observability.GetMetrics().RecordRateLimitHit(r.Context(), "analysis")
		return err
	}
	return nil
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the list
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	// Fall back to RemoteAddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP parses the first valid IP from a comma-separated list
func parseFirstIP(ips string) string {
	for ip := range strings.SplitSeq(ips, ",") {
		ip = strings.TrimSpace(ip)
		if parsed := net.ParseIP(ip); parsed != nil {
			return ip
		}
	}
	return ""
}
