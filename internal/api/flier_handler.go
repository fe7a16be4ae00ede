package api

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"flierbuilder/internal/api/middleware"
	"flierbuilder/internal/database"
)

const pdfLinkTTL = 5 * time.Minute

type presigner interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration, params map[string]string) (string, error)
}

// FlierHandler 负责传单存档的查询与下载。
type FlierHandler struct {
	fliers  flierStore
	storage presigner
}

// NewFlierHandler 构造存档处理器。
func NewFlierHandler(fliers flierStore, storage presigner) *FlierHandler {
	return &FlierHandler{fliers: fliers, storage: storage}
}

type flierSummary struct {
	ID          uint      `json:"id"`
	ClubName    string    `json:"club_name"`
	MeetingDate string    `json:"meeting_date"`
	Filename    string    `json:"filename"`
	Status      string    `json:"status"`
	HasPDF      bool      `json:"has_pdf"`
	CreatedAt   time.Time `json:"created_at"`
}

// List 返回最近保存的传单。
func (h *FlierHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(archiveListLimit)))
	if err != nil || limit <= 0 {
		limit = archiveListLimit
	}
	records, err := h.fliers.List(c.Request.Context(), limit)
	if err != nil {
		middleware.LoggerFromContext(c).ErrorContext(c.Request.Context(), "list fliers failed", slog.Any("error", err))
		Internal(c, "failed to list fliers")
		return
	}
	items := make([]flierSummary, 0, len(records))
	for _, r := range records {
		items = append(items, flierSummary{
			ID:          r.ID,
			ClubName:    r.ClubName,
			MeetingDate: r.MeetingDate,
			Filename:    r.Filename,
			Status:      r.Status,
			HasPDF:      r.PdfKey != "",
			CreatedAt:   r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"fliers": items})
}

// Download 以附件形式返回保存的 JSON。
func (h *FlierHandler) Download(c *gin.Context) {
	record, ok := h.load(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.Filename}))
	c.Data(http.StatusOK, "application/json; charset=utf-8", record.Content)
}

// PDF 重定向到 PDF 的限时下载链接；尚未生成时返回 409。
func (h *FlierHandler) PDF(c *gin.Context) {
	record, ok := h.load(c)
	if !ok {
		return
	}
	if record.Status != database.StatusCompleted || record.PdfKey == "" {
		Conflict(c, "pdf is not ready")
		return
	}
	filename := strings.TrimSuffix(record.Filename, ".json") + ".pdf"
	params := map[string]string{
		"response-content-disposition": mime.FormatMediaType("attachment", map[string]string{"filename": filename}),
	}
	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), record.PdfKey, pdfLinkTTL, params)
	if err != nil {
		middleware.LoggerFromContext(c).ErrorContext(c.Request.Context(), "generate presigned url failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.Redirect(http.StatusFound, signedURL)
}

func (h *FlierHandler) load(c *gin.Context) (database.Flier, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid flier id")
		return database.Flier{}, false
	}
	record, err := h.fliers.Get(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, errFlierNotFound) {
			NotFound(c, "flier not found")
			return database.Flier{}, false
		}
		middleware.LoggerFromContext(c).ErrorContext(c.Request.Context(), "load flier failed", slog.Uint64("flier_id", id), slog.Any("error", err))
		Internal(c, "failed to load flier")
		return database.Flier{}, false
	}
	return record, true
}
