package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// RateLimiter keeps one token bucket per client IP. A bucket holds requests tokens
// and refills one token every window/requests.
type RateLimiter struct {
	name    string
	message string
	limit   rate.Limit
	burst   int
	idle    time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter allows each client IP requests requests per window.
// Clients not seen for idle are forgotten by Sweep.
func NewRateLimiter(name string, requests int, window, idle time.Duration, message string, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		name:    name,
		message: message,
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		idle:    idle,
		logger:  logger,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

func (l *RateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	client, ok := l.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = client
	}
	client.last = l.now()
	return client.limiter
}

// Handler rejects requests over the client's budget with 429 and a Retry-After header
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		reservation := l.limiterFor(ip).ReserveN(l.now(), 1)
		delay := reservation.DelayFrom(l.now())
		if delay == 0 {
			c.Next()
			return
		}
		reservation.CancelAt(l.now())

		RequestLogger(c, l.logger).Warn("Rate limit exceeded",
			"limiter", l.name,
			"client_ip", ip,
			"path", c.Request.URL.Path,
		)

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		response := gin.H{
			"error": gin.H{
				"code":    "RATE_LIMITED",
				"message": l.message,
			},
		}
		if correlationID := GetCorrelationID(c); correlationID != "" {
			response["correlation_id"] = correlationID
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, response)
	}
}

// Sweep forgets clients idle for longer than the idle timeout and returns how many were dropped
func (l *RateLimiter) Sweep() int {
	cutoff := l.now().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, client := range l.clients {
		if client.last.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done
func (l *RateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("Forgot idle rate limit clients", "limiter", l.name, "count", removed)
			}
		}
	}
}
