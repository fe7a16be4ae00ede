package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationHeader 在请求和响应中携带 Correlation ID，PDF 任务也沿用该值。
const CorrelationHeader = "X-Correlation-ID"

const (
	correlationIDKey   = "correlationID"
	maxCorrelationSize = 64
)

// CorrelationIDMiddleware 沿用合法的上游 ID，否则生成新的 UUID。
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header(CorrelationHeader, id)

		c.Next()
	}
}

// GetCorrelationID 从上下文中取出 Correlation ID。
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}

// validCorrelationID 只接受可安全写入日志与任务载荷的短 token。
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationSize {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
