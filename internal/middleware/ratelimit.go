package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/medbook/clinic-api/pkg/httputil"
)

// RateLimiterConfig configures the global request rate limiter.
type RateLimiterConfig struct {
	RPS   float64
	Burst int
}

// RateLimit applies a process-wide token bucket to all requests.
func RateLimit(cfg RateLimiterConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, httputil.Response{Status: "error", Message: "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
