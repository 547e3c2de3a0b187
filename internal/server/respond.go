package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// respondError logs and sends a standardized error response.
func respondError(c *gin.Context, logger *zap.Logger, status int, code, message string, cause error) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("request_id", RequestIDFromContext(c)),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	if status >= 500 {
		logger.Error("http.error", fields...)
	} else {
		logger.Warn("http.error", fields...)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message},
	})
}
