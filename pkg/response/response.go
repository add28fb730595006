package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo contains error details. Kind is machine-readable; only
// retryable errors may be retried automatically by clients.
type ErrorInfo struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Success sends the payload as the response body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error sends an error response and aborts the handler chain.
func Error(c *gin.Context, statusCode int, kind, message string, retryable bool) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error: ErrorInfo{
			Kind:      kind,
			Message:   message,
			Retryable: retryable,
		},
	})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, kind, message string) {
	Error(c, http.StatusBadRequest, kind, message, false)
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, "Forbidden", message, false)
}

// ServiceUnavailable sends a retryable 503 error response.
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, "Unavailable", message, true)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "Internal", message, false)
}
