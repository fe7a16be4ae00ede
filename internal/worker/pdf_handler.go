package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"flierbuilder/internal/database"
	"flierbuilder/internal/errcode"
	"flierbuilder/internal/flier"
	"flierbuilder/internal/pdf"
	"flierbuilder/internal/render"
	"flierbuilder/internal/storage"
	"flierbuilder/internal/tasks"
)

type objectStore interface {
	objectReader
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

type printer interface {
	Print(ctx context.Context, htmlContent string) (pdf.Output, error)
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// PDFTaskHandler 负责消费传单 PDF 生成任务。
type PDFTaskHandler struct {
	db           *gorm.DB
	storage      objectStore
	printer      printer
	renderer     *render.Renderer
	publisher    publisher
	logger       *slog.Logger
	finalAttempt func(ctx context.Context) bool
}

// NewPDFTaskHandler 创建任务处理器。
func NewPDFTaskHandler(
	db *gorm.DB,
	storage objectStore,
	printer printer,
	renderer *render.Renderer,
	publisher publisher,
	logger *slog.Logger,
) *PDFTaskHandler {
	return &PDFTaskHandler{
		db:           db,
		storage:      storage,
		printer:      printer,
		renderer:     renderer,
		publisher:    publisher,
		logger:       logger,
		finalAttempt: isFinalAsynqAttempt,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PDFTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.FlierPDFPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.ErrorContext(ctx, "unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("flier_id", int(payload.FlierID)),
	)
	log.InfoContext(ctx, "Starting flier PDF generation task...")

	var record database.Flier
	if err := h.db.WithContext(ctx).First(&record, payload.FlierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.WarnContext(ctx, "flier not found, skipping task")
			return nil
		}
		log.ErrorContext(ctx, "query flier failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.String("session_id", record.SessionID))

	failCode := errcode.SystemError
	defer func() {
		if retErr == nil {
			return
		}
		if !errors.Is(retErr, asynq.SkipRetry) && !h.finalAttempt(ctx) {
			return
		}
		if err := h.setStatus(ctx, &record, database.StatusFailed); err != nil {
			log.ErrorContext(ctx, "mark flier failed", slog.Any("error", err))
		}
		notify := FlierNotifyMessage{
			Status:        "error",
			FlierID:       record.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     failCode,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publish(ctx, record.SessionID, notify); err != nil {
			log.ErrorContext(ctx, "publish pdf error notification failed", slog.Any("error", err))
		}
	}()

	if err := h.setStatus(ctx, &record, database.StatusProcessing); err != nil {
		log.ErrorContext(ctx, "mark flier processing failed", slog.Any("error", err))
		return err
	}

	doc, err := flier.DecodeBytes(record.Content)
	if err != nil {
		log.ErrorContext(ctx, "stored flier content is malformed", slog.Any("error", err))
		failCode = errcode.ContentMalformed
		return fmt.Errorf("decode flier content: %v: %w", err, asynq.SkipRetry)
	}
	photos := map[string]string{}
	if len(record.Photos) > 0 {
		if err := json.Unmarshal(record.Photos, &photos); err != nil {
			log.WarnContext(ctx, "stored photo map is malformed, printing without photos", slog.Any("error", err))
		}
	}

	inliner := newPhotoInliner(h.storage, record.SessionID, photos)
	var page bytes.Buffer
	if err := h.renderer.Page(&page, h.renderer.Build(ctx, doc, inliner)); err != nil {
		log.ErrorContext(ctx, "render flier page failed", slog.Any("error", err))
		failCode = errcode.RenderFailed
		return err
	}

	out, err := h.printer.Print(ctx, page.String())
	if err != nil {
		log.ErrorContext(ctx, "print flier failed", slog.Any("error", err))
		failCode = errcode.RenderFailed
		return err
	}

	pdfKey := storage.NewPDFKey(record.ID)
	if _, err := h.storage.UploadFile(ctx, pdfKey, bytes.NewReader(out.PDF), int64(len(out.PDF)), "application/pdf"); err != nil {
		log.ErrorContext(ctx, "upload pdf to minio failed", slog.Any("error", err))
		failCode = errcode.StorageUnavailable
		if storage.IsNoSuchBucket(err) {
			return fmt.Errorf("upload pdf: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	update := map[string]any{
		"pdf_key": pdfKey,
		"status":  database.StatusCompleted,
	}
	if len(out.Thumbnail) > 0 {
		thumbKey := fmt.Sprintf("fliers/%d/thumbnail.jpg", record.ID)
		if _, err := h.storage.UploadFile(ctx, thumbKey, bytes.NewReader(out.Thumbnail), int64(len(out.Thumbnail)), "image/jpeg"); err != nil {
			log.WarnContext(ctx, "upload flier thumbnail failed", slog.Any("error", err))
		} else {
			update["thumbnail_key"] = thumbKey
		}
	}
	if err := h.db.WithContext(ctx).Model(&record).Updates(update).Error; err != nil {
		log.ErrorContext(ctx, "update flier failed", slog.Any("error", err))
		return err
	}

	notify := FlierNotifyMessage{
		Status:        "completed",
		FlierID:       record.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if missing := inliner.Missing(); len(missing) > 0 {
		notify.ErrorCode = errcode.PhotoMissing
		notify.ErrorMessage = "moderator photo unavailable, printed with initials"
		notify.MissingPhotos = missing
		log.WarnContext(ctx, "pdf generated with missing photos", slog.Any("missing_photos", missing))
	}
	if err := h.publish(ctx, record.SessionID, notify); err != nil {
		log.ErrorContext(ctx, "publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.InfoContext(ctx, "Flier PDF generation task completed successfully.")
	return nil
}

func (h *PDFTaskHandler) setStatus(ctx context.Context, record *database.Flier, status string) error {
	return h.db.WithContext(ctx).Model(record).Update("status", status).Error
}

func (h *PDFTaskHandler) publish(ctx context.Context, sessionID string, notify FlierNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.NotifyChannel(sessionID)
	if err := h.publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
