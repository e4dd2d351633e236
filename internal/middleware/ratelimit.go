package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epeers/vnmarket/internal/ratelimit"
)

// RateLimitByIP throttles each client IP independently. Over-limit requests
// get a 503 with retry-advisory wording rather than a 429: the clients this
// service fronts treat 429 as fatal but retry 503.
func RateLimitByIP(limiter *ratelimit.IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":  "unavailable",
				"detail": "too many requests from this client, please retry shortly",
			})
			return
		}
		c.Next()
	}
}
