package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"flierbuilder/internal/api/middleware"
	"flierbuilder/internal/metrics"
	"flierbuilder/internal/render"
	"flierbuilder/internal/session"
	"flierbuilder/internal/source"
)

// PreviewHandler 负责渲染传单预览页。
type PreviewHandler struct {
	resolver *source.Resolver
	renderer *render.Renderer
}

// NewPreviewHandler 构造预览处理器。
func NewPreviewHandler(resolver *source.Resolver, renderer *render.Renderer) *PreviewHandler {
	return &PreviewHandler{resolver: resolver, renderer: renderer}
}

// Show 依次尝试交接文档、会话文档、默认资源与内置文档，并渲染第一个可用的。
func (h *PreviewHandler) Show(c *gin.Context) {
	ctx := c.Request.Context()
	state := middleware.SessionState(c)

	doc, name := h.resolver.Resolve(ctx, source.Request{
		SessionID: middleware.SessionID(c),
		State:     state,
	})
	metrics.ObservePreviewSource(name)

	layout := h.renderer.Build(ctx, doc, sessionPhotos(state))
	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, layout); err != nil {
		middleware.LoggerFromContext(c).ErrorContext(ctx, "Failed to render flier", slog.Any("error", err))
		Internal(c, "failed to render flier")
		return
	}
	c.Header("X-Flier-Source", name)
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// sessionPhotos resolves uploaded photo names to the session's photo route.
func sessionPhotos(state session.State) render.PhotoResolver {
	return render.PhotoResolverFunc(func(_ context.Context, path string) (string, error) {
		key, ok := state.PhotoKey(path)
		if !ok {
			return "", fmt.Errorf("%w: %q was not uploaded in this session", render.ErrPhotoUnavailable, path)
		}
		return "/photos/" + (&url.URL{Path: key}).EscapedPath(), nil
	})
}
