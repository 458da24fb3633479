package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
)

// ErrorResponse is the standardized HTTP error body
type ErrorResponse struct {
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	ErrorCode string    `json:"error_code,omitempty"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// apiError aborts the request with the standardized error body
func apiError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorResponse{
		Status:    status,
		Message:   message,
		ErrorCode: code,
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString("RequestID"),
	}})
}

// ErrorHandler turns errors collected on the context into a response
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			status := c.Writer.Status()
			if status < 400 {
				status = http.StatusInternalServerError
			}

			logging.Error("request failed", map[string]interface{}{
				"path":       c.Request.URL.Path,
				"status":     status,
				"request_id": c.GetString("RequestID"),
				"error":      err.Error(),
			})

			if !c.Writer.Written() {
				apiError(c, status, "", "An error occurred while processing your request")
			}
		}
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggingMiddleware logs all requests
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logging.LogHTTPRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
			map[string]interface{}{
				"request_id": c.GetString("RequestID"),
			},
		)
	}
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logging.Error("panic recovered", map[string]interface{}{
					"path":       c.Request.URL.Path,
					"request_id": c.GetString("RequestID"),
					"panic":      err,
					"stack":      string(debug.Stack()),
				})
				apiError(c, http.StatusInternalServerError, "", "An unexpected error occurred")
			}
		}()
		c.Next()
	}
}
