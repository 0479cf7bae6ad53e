package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "invalid_input", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithQuotaExceeded sends a 403 when the caller hit the document cap
func RespondWithQuotaExceeded(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusForbidden, "quota_exceeded", message, details)
}

// RespondWithPayloadTooLarge sends a 413 when the declared file size exceeds the cap
func RespondWithPayloadTooLarge(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, "payload_too_large", message, details)
}

// RespondWithUpstreamFailure sends a 502 when an external provider call failed
func RespondWithUpstreamFailure(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadGateway, "upstream_provisioning_failed", message, details)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RateLimitBody is the wire shape for 429 responses. Clients read
// limit/remaining/reset to decide when to retry.
type RateLimitBody struct {
	Error     string `json:"error"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     int64  `json:"reset"`
}

// RespondWithRateLimited sends a 429 with the rate limit window state
func RespondWithRateLimited(c *gin.Context, limit, remaining int, reset int64) {
	c.JSON(http.StatusTooManyRequests, RateLimitBody{
		Error:     "Rate limit exceeded",
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	})
}
