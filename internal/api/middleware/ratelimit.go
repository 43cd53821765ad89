package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/logging"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTimeout     = 30 * time.Minute
)

// RateLimits are token bucket settings. Rates are tokens per second.
type RateLimits struct {
	SoftRate  int
	SoftBurst int
	HardRate  int
	HardBurst int
}

// RateLimitsFromConfig reads the default buckets from cfg.
func RateLimitsFromConfig(cfg *config.Config) RateLimits {
	return RateLimits{
		SoftRate:  cfg.RateLimitSoftRefillRate,
		SoftBurst: cfg.RateLimitSoftBucketSize,
		HardRate:  cfg.RateLimitHardRefillRate,
		HardBurst: cfg.RateLimitHardBucketSize,
	}
}

type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiter keeps a soft and a hard token bucket per client and route.
// Exceeding the hard bucket is always refused; exceeding the soft one is
// refused unless CaptchaMiddleware marked the request as human.
type RateLimiter struct {
	limits  RateLimits
	logger  *zap.Logger
	mu      sync.Mutex
	clients map[string]*clientLimiter
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
// Call Stop to end the loop.
func NewRateLimiter(limits RateLimits, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		limits:  limits,
		logger:  logging.OrNop(logger),
		clients: make(map[string]*clientLimiter),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *clientLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.clients[key]
	if !ok {
		l = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(rl.limits.SoftRate), rl.limits.SoftBurst),
			hardLimiter: rate.NewLimiter(rate.Limit(rl.limits.HardRate), rl.limits.HardBurst),
		}
		rl.clients[key] = l
	}
	l.lastSeen = now
	return l
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			if n := rl.evictIdle(now); n > 0 {
				rl.logger.Debug("Rate limiter evicted idle clients", zap.Int("count", n))
			}
		}
	}
}

// evictIdle drops clients not seen within limiterIdleTimeout of now.
func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, l := range rl.clients {
		if now.Sub(l.lastSeen) > limiterIdleTimeout {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Limit returns the Gin handler.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := clientIdentity(c).String()
		route := c.FullPath()
		limiter := rl.limiterFor(client+"|"+route, time.Now())

		if !limiter.hardLimiter.Allow() {
			rl.logger.Warn("Hard rate limit exceeded", zap.String("client", client), zap.String("route", route))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		if !c.GetBool(ContextKeyIsHumanVerified) && !limiter.softLimiter.Allow() {
			rl.logger.Info("Soft rate limit exceeded, captcha required", zap.String("client", client), zap.String("route", route))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":            "Captcha validation required",
				"captcha_required": true,
			})
			return
		}

		c.Next()
	}
}
