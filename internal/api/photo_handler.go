package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"

	"flierbuilder/internal/api/middleware"
	"flierbuilder/internal/form"
	"flierbuilder/internal/session"
	"flierbuilder/internal/source"
	"flierbuilder/internal/storage"
)

const (
	photoUploadKeyPrefix     = "photo_uploads:"
	defaultDailyPhotoUploads = 20
	maxPhotoNameLength       = 100
)

var (
	errPhotoTooLarge = errors.New("the photo is too large")
	errPhotoType     = errors.New("the photo must be a PNG, JPEG, WebP or GIF image")
	errPhotoInfected = errors.New("the photo was rejected by the virus scanner")
	errPhotoQuota    = errors.New("too many photo uploads today")
)

type photoStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	ReadObject(ctx context.Context, objectKey string, limit int64) ([]byte, string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

type photoScanner interface {
	Scan(r io.Reader) error
}

// clamdScanner 通过 clamd 扫描上传的图片。
type clamdScanner struct {
	addr string
}

func (s clamdScanner) Scan(r io.Reader) error {
	client := clamd.NewClamd(s.addr)
	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan photo: %w", err)
	}
	for result := range results {
		if result.Status != clamd.RES_OK {
			return errPhotoInfected
		}
	}
	return nil
}

// PhotoHandler 负责主持人照片的上传、URL 校验与读取。
type PhotoHandler struct {
	storage    photoStore
	scanner    photoScanner
	client     *http.Client
	counter    redisRateCounter
	maxBytes   int64
	dailyLimit int64
}

// NewPhotoHandler 构造照片处理器；clamdAddr 为空时跳过病毒扫描，counter 为 nil 时不限制上传次数。
func NewPhotoHandler(store photoStore, clamdAddr string, client *http.Client, counter redisRateCounter, maxBytes int64) *PhotoHandler {
	h := &PhotoHandler{
		storage:    store,
		client:     client,
		counter:    counter,
		maxBytes:   maxBytes,
		dailyLimit: defaultDailyPhotoUploads,
	}
	if strings.TrimSpace(clamdAddr) != "" {
		h.scanner = clamdScanner{addr: clamdAddr}
	}
	return h
}

// Apply 根据所选照片类型更新表单中的照片路径，返回新的会话状态与提示信息。
// 失败时照片路径保持不变。
func (h *PhotoHandler) Apply(c *gin.Context, b form.Binding, state session.State) (session.State, string) {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	switch b.Value(form.TmodPhotoType) {
	case form.PhotoNone:
		b.SetValue(form.TmodPhotoPath, "")
		return state, ""

	case form.PhotoURL:
		raw := strings.TrimSpace(b.Value(form.TmodPhotoURL))
		if err := source.ProbeImage(ctx, h.client, raw); err != nil {
			log.ErrorContext(ctx, "Failed to load image", slog.String("url", raw), slog.Any("error", err))
			return state, "The image at that URL could not be loaded."
		}
		b.SetValue(form.TmodPhotoPath, raw)
		return state, ""

	case form.PhotoLocal:
		file, err := c.FormFile(string(form.TmodPhotoLocal))
		if err != nil {
			current := b.Value(form.TmodPhotoPath)
			if _, ok := state.PhotoKey(current); ok {
				return state, ""
			}
			log.ErrorContext(ctx, "Failed to read image file", slog.Any("error", err))
			return state, "Choose an image file to upload."
		}
		name, key, err := h.upload(ctx, middleware.SessionID(c), file)
		if err != nil {
			log.ErrorContext(ctx, "Failed to upload image", slog.String("file", file.Filename), slog.Any("error", err))
			return state, photoAlert(err)
		}
		if previous, ok := state.PhotoKey(name); ok && previous != key {
			if err := h.storage.DeleteObject(ctx, previous); err != nil {
				log.WarnContext(ctx, "delete replaced photo failed", slog.String("object_key", previous), slog.Any("error", err))
			}
		}
		b.SetValue(form.TmodPhotoPath, name)
		log.InfoContext(ctx, "photo uploaded", slog.String("photo", name), slog.String("object_key", key))
		return state.WithPhoto(name, key), ""
	}
	return state, "Choose a photo type."
}

func (h *PhotoHandler) upload(ctx context.Context, sessionID string, file *multipart.FileHeader) (name, key string, err error) {
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		return "", "", errPhotoTooLarge
	}
	limited, err := overLimit(ctx, h.counter, photoUploadKeyPrefix+sessionID, h.dailyLimit, 24*time.Hour)
	if err != nil {
		return "", "", fmt.Errorf("count uploads: %w", err)
	}
	if limited {
		return "", "", errPhotoQuota
	}

	reader, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer reader.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("read upload: %w", err)
	}
	contentType := http.DetectContentType(head[:n])
	ext, ok := storage.PhotoExtensions[contentType]
	if !ok {
		return "", "", errPhotoType
	}

	if h.scanner != nil {
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return "", "", fmt.Errorf("rewind upload: %w", err)
		}
		if err := h.scanner.Scan(reader); err != nil {
			return "", "", err
		}
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("rewind upload: %w", err)
	}

	key = storage.NewPhotoKey(sessionID, ext)
	if _, err := h.storage.UploadFile(ctx, key, reader, file.Size, contentType); err != nil {
		return "", "", err
	}
	return photoName(file.Filename, ext), key, nil
}

func photoAlert(err error) string {
	for _, known := range []error{errPhotoTooLarge, errPhotoType, errPhotoInfected, errPhotoQuota} {
		if errors.Is(err, known) {
			return "Photo rejected: " + known.Error() + "."
		}
	}
	return "The photo could not be uploaded."
}

// photoName reduces an uploaded file name to a safe local photo path.
func photoName(filename, ext string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), ".-")
	if name == "" {
		name = "photo" + ext
	}
	if strings.HasPrefix(strings.ToLower(name), "http") {
		name = "photo-" + name
	}
	if len(name) > maxPhotoNameLength {
		name = name[len(name)-maxPhotoNameLength:]
	}
	return name
}

// Serve 返回当前会话上传的照片。
func (h *PhotoHandler) Serve(c *gin.Context) {
	ctx := c.Request.Context()
	key := strings.TrimPrefix(c.Param("key"), "/")
	state := middleware.SessionState(c)
	if !storage.IsValidPhotoKey(middleware.SessionID(c), key) || !state.OwnsObject(key) {
		NotFound(c, "photo not found")
		return
	}

	data, contentType, err := h.storage.ReadObject(ctx, key, h.maxBytes)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "photo not found")
			return
		}
		middleware.LoggerFromContext(c).ErrorContext(ctx, "read photo failed", slog.String("object_key", key), slog.Any("error", err))
		Internal(c, "failed to read photo")
		return
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, contentType, data)
}

func marshalPhotos(photos map[string]string) (datatypes.JSON, error) {
	if len(photos) == 0 {
		return datatypes.JSON("{}"), nil
	}
	data, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("marshal photos: %w", err)
	}
	return datatypes.JSON(data), nil
}
