package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/j-veylop/tadox-dashboard-tui/internal/services/auth"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/gateway"
)

// writeError maps a service error onto an HTTP status.
func writeError(c *gin.Context, now time.Time, err error) {
	var (
		cfgErr  *gateway.ConfigurationError
		rlErr   *gateway.RateLimitError
		authErr *auth.AuthError
		apiErr  *gateway.APIError
	)

	switch {
	case errors.As(err, &cfgErr):
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err)
	case errors.As(err, &rlErr):
		secs := int(math.Ceil(rlErr.RetryAfter(now).Seconds()))
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":     err.Error(),
			"code":      "RATE_LIMITED",
			"resetTime": rlErr.ResetTime,
		})
	case errors.As(err, &authErr):
		abort(c, http.StatusUnauthorized, "REAUTH_REQUIRED", err)
	case errors.As(err, &apiErr):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":          err.Error(),
			"code":           "UPSTREAM_ERROR",
			"upstreamStatus": apiErr.StatusCode,
		})
	default:
		abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", err)
	}
}

func abort(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, "INVALID_REQUEST", err)
}
