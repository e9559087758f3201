package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"eventreg/internal/shared/utils/response"
	"eventreg/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware applies the limit for the matched route's class. A Redis failure
// lets the request through.
func Middleware(limiter *RateLimiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := clientIP(c)
		limitType := Classify(c.Request.Method, c.FullPath())

		result, err := limiter.IsAllowed(c.Request.Context(), clientIP, limitType)
		if err != nil {
			log.WithError(err).Warn("rate limit check failed, allowing request", "path", c.FullPath())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			log.LogRateLimitExceeded(c.Request.Context(), clientIP, c.FullPath())
			response.RespondJSON(c, "error", http.StatusTooManyRequests, "Rate limit exceeded", nil, gin.H{
				"limit":      result.Limit,
				"reset_time": result.ResetTime,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Classify maps a route pattern to its limit class. Seat-taking writes are
// the strictest.
func Classify(method, path string) LimitType {
	switch {
	case path == "/health", path == "/ping", path == "/status":
		return LimitTypeHealth
	case strings.Contains(path, "/admin/"):
		return LimitTypeAdmin
	case method != http.MethodGet && (strings.HasSuffix(path, "/reserve") || strings.HasSuffix(path, "/register")):
		return LimitTypeCheckout
	case strings.Contains(path, "/events"), strings.Contains(path, "/users/"):
		return LimitTypePublic
	default:
		return LimitTypeDefault
	}
}

func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xr := c.GetHeader("X-Real-IP"); net.ParseIP(xr) != nil {
		return xr
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}
