package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flierbuilder/internal/api/middleware"
	"flierbuilder/internal/auth"
	"flierbuilder/internal/metrics"
	"flierbuilder/internal/web"
)

// Handlers 汇总路由所需的处理器与中间件依赖。
type Handlers struct {
	Logger       *slog.Logger
	Sessions     *auth.SessionService
	States       middleware.StateStore
	SecureCookie bool
	PasscodeHash string

	Editor  *EditorHandler
	Photos  *PhotoHandler
	Preview *PreviewHandler
	Fliers  *FlierHandler
	Login   *LoginHandler
	Ws      *WsHandler
}

// NewRouter 构建 Gin 路由引擎并注册全部路由。
func NewRouter(h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(h.Logger),
		metrics.GinMiddleware(),
		gin.Recovery(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET(metrics.MetricsPath, gin.WrapH(promhttp.Handler()))
	router.GET("/data.json", DefaultDocument)

	RegisterRoutes(router, h)
	return router
}

// RegisterRoutes 注册依赖会话的路由。
func RegisterRoutes(router *gin.Engine, h Handlers) {
	sessions := router.Group("/")
	sessions.Use(middleware.SessionMiddleware(h.Sessions, h.States, h.SecureCookie))
	{
		sessions.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusSeeOther, "/editor")
		})
		sessions.GET("/login", h.Login.Show)
		sessions.POST("/login", h.Login.Submit)
		sessions.GET("/preview", h.Preview.Show)
		sessions.GET("/photos/*key", h.Photos.Serve)

		editor := sessions.Group("/")
		editor.Use(middleware.RequireEditor(h.PasscodeHash))
		{
			editor.GET("/editor", h.Editor.Show)
			editor.POST("/editor", h.Editor.Submit)
			editor.GET("/editor/errorlog", h.Editor.ErrorLog)
			editor.GET("/editor/open/:id", h.Editor.Open)

			editor.GET("/fliers", h.Fliers.List)
			editor.GET("/fliers/:id", h.Fliers.Download)
			editor.GET("/fliers/:id/pdf", h.Fliers.PDF)

			editor.GET("/ws", h.Ws.HandleConnection)
		}
	}
}

// DefaultDocument 返回内嵌的默认传单。
func DefaultDocument(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/json; charset=utf-8", web.DefaultDocument())
}
