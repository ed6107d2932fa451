package http

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/metrics"
)

const (
	accessTokenCookie = "access_token"
	actorKey          = "actor"
)

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		metrics.ObserveHTTP(c.FullPath(), method, status, latency)

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// authenticate verifies the access token from the access_token cookie, then
// the Authorization header. With roles given, the caller must hold one of them.
func (s *Server) authenticate(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(accessTokenCookie)
		if err != nil || token == "" {
			token = c.GetHeader("Authorization")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "authorization is missing"})
			return
		}

		claims, err := s.issuer.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "invalid or expired token"})
			return
		}

		actor := claims.Actor()
		if len(roles) > 0 && !hasRole(actor.Role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{Error: "access denied: insufficient role"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func hasRole(role entity.Role, allowed []entity.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// actorFrom returns the caller stored by authenticate
func actorFrom(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{}
}

// limiterIdleTTL is how long an IP may stay quiet before its bucket is dropped
const limiterIdleTTL = 10 * time.Minute

type ipLimiter struct {
	*rate.Limiter
	lastSeen atomic.Int64
}

// rateLimiter keeps one token bucket per client IP. Buckets idle longer than
// limiterIdleTTL are evicted at most once per TTL, on the request path.
type rateLimiter struct {
	limiters  sync.Map
	cfg       RateLimitConfig
	now       func() time.Time
	lastSweep atomic.Int64
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	l := &rateLimiter{cfg: cfg, now: time.Now}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	now := l.now().UnixNano()
	l.maybeSweep(now)

	v, ok := l.limiters.Load(key)
	if !ok {
		v, _ = l.limiters.LoadOrStore(key, &ipLimiter{Limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)})
	}
	lim := v.(*ipLimiter)
	lim.lastSeen.Store(now)
	return lim.Limiter
}

func (l *rateLimiter) maybeSweep(now int64) {
	last := l.lastSweep.Load()
	if now-last < int64(limiterIdleTTL) || !l.lastSweep.CompareAndSwap(last, now) {
		return
	}
	cutoff := now - int64(limiterIdleTTL)
	l.limiters.Range(func(key, v any) bool {
		if v.(*ipLimiter).lastSeen.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

func (l *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Error: "too many requests"})
			return
		}
		c.Next()
	}
}
