package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yungbote/galaxychat-backend/internal/http/response"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
)

// UserLimiter keeps one token bucket per user. Buckets idle for longer than the
// eviction window are dropped on the next sweep.
type UserLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	users     map[string]*userBucket
	lastSweep time.Time
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserLimiter(rps float64, burst int) *UserLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		idle:  10 * time.Minute,
		now:   time.Now,
		users: map[string]*userBucket{},
	}
}

func (l *UserLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for id, b := range l.users {
			if now.Sub(b.lastSeen) > l.idle {
				delete(l.users, id)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.users[userID]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// RateLimit rejects requests over the caller's budget with 429. It must run after
// RequireAuth; a nil limiter disables it.
func RateLimit(l *UserLimiter, onReject func()) gin.HandlerFunc {
	if l == nil || l.limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		userID := ctxutil.UserID(c.Request.Context())
		if userID != "" && !l.Allow(userID) {
			if onReject != nil {
				onReject()
			}
			c.Header("Retry-After", "1")
			response.RespondMessage(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
