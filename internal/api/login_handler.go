package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"flierbuilder/internal/api/middleware"
	"flierbuilder/internal/auth"
	"flierbuilder/internal/web"
)

const (
	loginAttemptKeyPrefix = "login_attempts:"
	loginAttemptWindow    = 15 * time.Minute
	loginAttemptLimit     = 5
)

// LoginHandler 处理编辑器口令页。
type LoginHandler struct {
	pages        *web.Pages
	passcodeHash string
	counter      redisRateCounter
}

// NewLoginHandler 构造口令处理器；counter 为 nil 时不做频率限制。
func NewLoginHandler(pages *web.Pages, passcodeHash string, counter redisRateCounter) *LoginHandler {
	return &LoginHandler{pages: pages, passcodeHash: passcodeHash, counter: counter}
}

// Show 渲染口令页。
func (h *LoginHandler) Show(c *gin.Context) {
	h.render(c, http.StatusOK, web.LoginView{Next: safeNext(c.Query("next"))})
}

// Submit 校验口令，成功后为会话签发 editor Cookie 并跳转。
func (h *LoginHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	next := safeNext(c.PostForm("next"))

	limited, err := overLimit(ctx, h.counter, loginAttemptKeyPrefix+c.ClientIP(), loginAttemptLimit, loginAttemptWindow)
	if err != nil {
		log.WarnContext(ctx, "login rate limit check failed", slog.Any("error", err))
	} else if limited {
		log.WarnContext(ctx, "login rate limited", slog.String("client_ip", c.ClientIP()))
		h.render(c, http.StatusTooManyRequests, web.LoginView{Next: next, Error: "Too many attempts. Try again later."})
		return
	}

	if !auth.CheckPasscode(c.PostForm("passcode"), h.passcodeHash) {
		log.InfoContext(ctx, "editor passcode rejected")
		h.render(c, http.StatusUnauthorized, web.LoginView{Next: next, Error: "Wrong passcode."})
		return
	}
	if err := middleware.GrantEditor(c); err != nil {
		log.ErrorContext(ctx, "grant editor session failed", slog.Any("error", err))
		Internal(c, "failed to start editor session")
		return
	}
	log.InfoContext(ctx, "editor session granted")
	c.Redirect(http.StatusSeeOther, next)
}

func (h *LoginHandler) render(c *gin.Context, status int, view web.LoginView) {
	var buf bytes.Buffer
	if err := h.pages.Login(&buf, view); err != nil {
		middleware.LoggerFromContext(c).ErrorContext(c.Request.Context(), "render login page failed", slog.Any("error", err))
		Internal(c, "failed to render login page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// safeNext 只接受站内路径，避免开放重定向。
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/editor"
	}
	return next
}
