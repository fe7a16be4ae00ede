package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// RequireEditor 在配置了口令哈希时，要求会话已通过 /login 校验。
// 页面请求被重定向到登录页，其余请求返回 401。
func RequireEditor(passcodeHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if passcodeHash == "" || IsEditor(c) {
			c.Next()
			return
		}
		if c.Request.Method == http.MethodGet {
			c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}
