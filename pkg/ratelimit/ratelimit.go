package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sipwatch/sipwatch/pkg/apiresponses"
	"github.com/sipwatch/sipwatch/pkg/metrics"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate is the number of requests allowed per second
	Rate float64
	// Burst is the maximum number of requests allowed in a burst
	Burst int
	// CleanupInterval is how often idle clients are forgotten
	CleanupInterval time.Duration
	// MaxAge is how long a client is remembered after its last request
	MaxAge time.Duration
}

// DefaultStatusConfig is used for the status API: 5 req/s per client, burst of 20.
func DefaultStatusConfig() Config {
	return Config{
		Rate:            5,
		Burst:           20,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client IP.
type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	config   Config
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter and starts its cleanup goroutine. Call Stop to end it.
func New(cfg Config) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	l := &Limiter{
		clients: make(map[string]*client),
		config:  cfg,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a request from ip may proceed now.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.config.Rate), l.config.Burst)}
		l.clients[ip] = c
	}
	c.lastSeen = l.now()
	return c.limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			metrics.HTTPRateLimited.WithLabelValues(c.FullPath()).Inc()
			apiresponses.RespondTooManyRequests(c)
			return
		}
		c.Next()
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.forgetIdle()
		}
	}
}

func (l *Limiter) forgetIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.config.MaxAge)
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Config() Config {
	return l.config
}
