package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Idle clients fall out
// of the LRU, which bounds memory no matter how many addresses show up.
type RateLimiter struct {
	name    string
	limit   rate.Limit
	burst   int
	clients *expirable.LRU[string, *rate.Limiter]
	metrics *metrics.Collector
}

func NewRateLimiter(name string, limit rate.Limit, burst, tracked int, m *metrics.Collector) *RateLimiter {
	if tracked <= 0 {
		tracked = 4096
	}
	return &RateLimiter{
		name:    name,
		limit:   limit,
		burst:   burst,
		clients: expirable.NewLRU[string, *rate.Limiter](tracked, nil, 10*time.Minute),
		metrics: m,
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if lim, ok := l.clients.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.clients.Add(key, lim)
	return lim
}

func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := l.limiter(c.ClientIP())
		if lim.Allow() {
			c.Next()
			return
		}

		l.metrics.RateLimited.WithLabelValues(l.name).Inc()
		retry := 1
		if l.limit > 0 {
			retry = int(math.Ceil(1 / float64(l.limit)))
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "too many requests",
			"code":  "RATE_LIMITED",
		})
	}
}
