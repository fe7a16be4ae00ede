package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"flierbuilder/internal/api/middleware"
)

// Error 写出 JSON 错误体，附带 Correlation ID 便于对照服务端日志。
func Error(c *gin.Context, status int, msg string) {
	body := gin.H{"error": msg}
	if id := middleware.GetCorrelationID(c); id != "" {
		body["correlation_id"] = id
	}
	c.AbortWithStatusJSON(status, body)
}

func AbortUnauthorized(c *gin.Context)      { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }
