package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"flierbuilder/internal/auth"
	"flierbuilder/internal/errlog"
	"flierbuilder/internal/session"
)

const (
	sessionIDKey     = "sessionID"
	sessionEditorKey = "sessionEditor"
	sessionStateKey  = "sessionState"
	sessionSvcKey    = "sessionService"
	sessionSecureKey = "sessionSecure"
	sessionDirtyKey  = "sessionDirty"
)

var errMissingSession = errors.New("session middleware not installed")

// StateStore loads and saves the editor state of a session. The error log is
// appended to separately so read-only requests never rewrite the state.
type StateStore interface {
	Load(ctx context.Context, id string) (session.State, error)
	Save(ctx context.Context, id string, state session.State) error
	AppendErrors(ctx context.Context, id string, lines []string) error
	ClearErrors(ctx context.Context, id string) error
}

// SessionMiddleware 从 Cookie 中恢复会话（无效则新建），加载会话状态，
// 并在请求上下文中挂载错误日志。请求结束后只追加新的错误日志；
// 状态仅在处理器调用过 SetSessionState 时写回。
func SessionMiddleware(svc *auth.SessionService, store StateStore, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := LoggerFromContext(c)
		ctx := c.Request.Context()

		sid, editor := "", false
		if raw, err := c.Cookie(auth.CookieName); err == nil {
			if claims, err := svc.Validate(raw); err == nil {
				sid, editor = claims.SessionID, claims.Editor
			} else {
				log.DebugContext(ctx, "discarding invalid session cookie", slog.Any("error", err))
			}
		}
		c.Set(sessionSvcKey, svc)
		c.Set(sessionSecureKey, secureCookie)
		if sid == "" {
			sid = auth.NewSessionID()
			if err := issueCookie(c, sid, false); err != nil {
				log.ErrorContext(ctx, "issue session cookie failed", slog.Any("error", err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
				return
			}
		}

		state, err := store.Load(ctx, sid)
		if err != nil {
			log.WarnContext(ctx, "load session state failed, starting empty", slog.Any("error", err))
			state = session.State{}
		}

		collected := errlog.New(state.ErrorLog...)
		c.Request = c.Request.WithContext(errlog.WithLog(ctx, collected))
		c.Set(sessionIDKey, sid)
		c.Set(sessionEditorKey, editor)
		c.Set(sessionStateKey, state)

		c.Next()

		// 请求可能已被取消，写回使用独立的上下文。
		saveCtx := context.WithoutCancel(c.Request.Context())
		if collected.Cleared() {
			if err := store.ClearErrors(saveCtx, sid); err != nil {
				log.WarnContext(saveCtx, "clear session error log failed", slog.Any("error", err))
			}
		}
		if err := store.AppendErrors(saveCtx, sid, collected.Added()); err != nil {
			log.WarnContext(saveCtx, "append session error log failed", slog.Any("error", err))
		}
		if !c.GetBool(sessionDirtyKey) {
			return
		}
		if err := store.Save(saveCtx, sid, SessionState(c)); err != nil {
			log.ErrorContext(saveCtx, "save session state failed", slog.Any("error", err))
		}
	}
}

func issueCookie(c *gin.Context, sid string, editor bool) error {
	value, ok := c.Get(sessionSvcKey)
	if !ok {
		return errMissingSession
	}
	svc := value.(*auth.SessionService)
	token, err := svc.Issue(sid, editor)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(svc.TTL().Seconds()), "/", "", c.GetBool(sessionSecureKey), true)
	return nil
}

// GrantEditor 为当前会话重新签发带 editor 标记的 Cookie。
func GrantEditor(c *gin.Context) error {
	if err := issueCookie(c, SessionID(c), true); err != nil {
		return err
	}
	c.Set(sessionEditorKey, true)
	return nil
}

// SessionID 返回当前会话 ID。
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// IsEditor 报告当前会话是否已通过口令校验。
func IsEditor(c *gin.Context) bool {
	return c.GetBool(sessionEditorKey)
}

// SessionState 返回当前请求持有的会话状态副本。
func SessionState(c *gin.Context) session.State {
	if value, ok := c.Get(sessionStateKey); ok {
		if state, ok := value.(session.State); ok {
			return state
		}
	}
	return session.State{}
}

// SetSessionState 替换会话状态，并标记请求结束时需要写回。
func SetSessionState(c *gin.Context, state session.State) {
	c.Set(sessionStateKey, state)
	c.Set(sessionDirtyKey, true)
}
