// Package httputil provides shared HTTP response helpers.
package httputil

import "github.com/gin-gonic/gin"

// Error codes for standardized API responses.
const (
	ErrCodeNotFound  = "not_found"
	ErrCodeForbidden = "forbidden"
)

// RespondError writes a standardized JSON error response and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	resp := map[string]string{
		"code":    code,
		"message": message,
	}

	if requestID := c.GetString("request_id"); requestID != "" {
		resp["request_id"] = requestID
	}

	c.AbortWithStatusJSON(status, resp)
}
