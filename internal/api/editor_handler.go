package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"flierbuilder/internal/api/middleware"
	"flierbuilder/internal/database"
	"flierbuilder/internal/errlog"
	"flierbuilder/internal/flier"
	"flierbuilder/internal/form"
	"flierbuilder/internal/metrics"
	"flierbuilder/internal/session"
	"flierbuilder/internal/source"
	"flierbuilder/internal/storage"
	"flierbuilder/internal/tasks"
	"flierbuilder/internal/web"
)

const maxDocumentBytes = 1 << 20

// Editor actions posted by the form buttons.
const (
	actionLoad    = "load"
	actionSave    = "save"
	actionPreview = "preview"
	actionNew     = "new"
	actionPhoto   = "photo"
	actionPDF     = "pdf"
)

type documentSource interface {
	Document(ctx context.Context, req source.Request) (flier.Document, error)
}

type handoffWriter interface {
	Put(ctx context.Context, sessionID string, doc flier.Document) error
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EditorHandler 负责编辑器页面及其表单操作。
type EditorHandler struct {
	pages     *web.Pages
	defaults  documentSource
	handoff   handoffWriter
	fliers    flierStore
	queue     taskEnqueuer
	photos    *PhotoHandler
	maxUpload int64
	taskOpts  []asynq.Option
}

// NewEditorHandler 构造编辑器处理器。
func NewEditorHandler(
	pages *web.Pages,
	defaults documentSource,
	handoff handoffWriter,
	fliers flierStore,
	queue taskEnqueuer,
	photos *PhotoHandler,
	maxUpload int64,
	maxRetry int,
) *EditorHandler {
	return &EditorHandler{
		pages:     pages,
		defaults:  defaults,
		handoff:   handoff,
		fliers:    fliers,
		queue:     queue,
		photos:    photos,
		maxUpload: maxUpload,
		taskOpts:  []asynq.Option{asynq.MaxRetry(maxRetry)},
	}
}

// Show 渲染编辑器；会话尚无文档时加载默认资源，失败则使用空白模板。
func (h *EditorHandler) Show(c *gin.Context) {
	state := middleware.SessionState(c)
	alert := state.Alert
	if state.Document == nil || alert != "" {
		if state.Document == nil {
			state = state.WithDocument(h.startupDocument(c))
		}
		state = state.WithAlert("")
		middleware.SetSessionState(c, state)
	}

	b := form.NewValues()
	form.Populate(*state.Document, b)
	h.render(c, http.StatusOK, b, state, alert)
}

func (h *EditorHandler) startupDocument(c *gin.Context) flier.Document {
	ctx := c.Request.Context()
	doc, err := h.defaults.Document(ctx, source.Request{SessionID: middleware.SessionID(c)})
	if err == nil {
		return doc
	}
	if !errors.Is(err, source.ErrNoDocument) {
		middleware.LoggerFromContext(c).ErrorContext(ctx, "Failed to load default document", slog.Any("error", err))
	}
	return flier.BlankTemplate()
}

// Submit 处理表单按钮：load/save/preview/new/photo/pdf。
func (h *EditorHandler) Submit(c *gin.Context) {
	b, err := form.FromRequest(c.Request, h.maxUpload)
	if err != nil {
		middleware.LoggerFromContext(c).WarnContext(c.Request.Context(), "parse editor form failed", slog.Any("error", err))
		BadRequest(c, "invalid form")
		return
	}

	action := b.Value(form.Action)
	var ok bool
	switch action {
	case actionLoad:
		ok = h.load(c, b)
	case actionSave:
		ok = h.save(c, b)
	case actionPreview:
		ok = h.preview(c, b)
	case actionNew:
		ok = h.reset(c)
	case actionPhoto:
		ok = h.photo(c, b)
	case actionPDF:
		ok = h.exportPDF(c, b)
	default:
		BadRequest(c, "unknown action")
		return
	}

	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	metrics.ObserveEditorAction(action, outcome)
}

func (h *EditorHandler) load(c *gin.Context, b *form.Values) bool {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	state := middleware.SessionState(c)
	form.SyncPhotoGroups(b)

	file, err := c.FormFile("document")
	if err != nil {
		log.ErrorContext(ctx, "Failed to read JSON file", slog.Any("error", err))
		h.render(c, http.StatusBadRequest, b, state, "Choose a JSON file to load.")
		return false
	}
	reader, err := file.Open()
	if err != nil {
		log.ErrorContext(ctx, "Failed to read JSON file", slog.String("file", file.Filename), slog.Any("error", err))
		h.render(c, http.StatusBadRequest, b, state, "The file could not be read.")
		return false
	}
	defer reader.Close()

	doc, err := flier.Decode(io.LimitReader(reader, maxDocumentBytes))
	if err != nil {
		log.ErrorContext(ctx, "Failed to parse JSON file", slog.String("file", file.Filename), slog.Any("error", err))
		h.render(c, http.StatusUnprocessableEntity, b, state, fmt.Sprintf("%s is not a valid flier file.", file.Filename))
		return false
	}

	state = state.WithDocument(doc)
	middleware.SetSessionState(c, state)
	log.InfoContext(ctx, "flier loaded", slog.String("file", file.Filename))

	loaded := form.NewValues()
	form.Populate(doc, loaded)
	h.render(c, http.StatusOK, loaded, state, "")
	return true
}

func (h *EditorHandler) save(c *gin.Context, b *form.Values) bool {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	state := middleware.SessionState(c)
	form.SyncPhotoGroups(b)

	doc, ok := h.collectValid(c, b, state, "Cannot save")
	if !ok {
		return false
	}
	data, err := flier.Marshal(doc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to encode flier", slog.Any("error", err))
		h.render(c, http.StatusInternalServerError, b, state, "The flier could not be saved.")
		return false
	}

	state = state.WithDocument(doc)
	middleware.SetSessionState(c, state)
	if _, err := h.archive(c, doc, data, state, database.StatusSaved); err != nil {
		log.ErrorContext(ctx, "Failed to archive flier", slog.Any("error", err))
	}

	filename := flier.Filename(doc)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	log.InfoContext(ctx, "flier saved", slog.String("filename", filename))
	return true
}

func (h *EditorHandler) preview(c *gin.Context, b *form.Values) bool {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	state := middleware.SessionState(c)

	doc := form.Collect(b)
	if err := h.handoff.Put(ctx, middleware.SessionID(c), doc); err != nil {
		log.ErrorContext(ctx, "Failed to hand off preview document", slog.Any("error", err))
	}
	middleware.SetSessionState(c, state.WithDocument(doc))
	c.Redirect(http.StatusSeeOther, "/preview")
	return true
}

func (h *EditorHandler) reset(c *gin.Context) bool {
	if log := errlog.FromContext(c.Request.Context()); log != nil {
		log.Reset()
	}
	doc := flier.BlankTemplate()
	state := middleware.SessionState(c).WithDocument(doc)
	middleware.SetSessionState(c, state)

	b := form.NewValues()
	form.Populate(doc, b)
	h.render(c, http.StatusOK, b, state, "")
	return true
}

func (h *EditorHandler) photo(c *gin.Context, b *form.Values) bool {
	state, alert := h.photos.Apply(c, b, middleware.SessionState(c))
	form.SyncPhotoGroups(b)
	state = state.WithDocument(form.Collect(b))
	middleware.SetSessionState(c, state)

	status := http.StatusOK
	if alert != "" {
		status = http.StatusUnprocessableEntity
	}
	h.render(c, status, b, state, alert)
	return alert == ""
}

func (h *EditorHandler) exportPDF(c *gin.Context, b *form.Values) bool {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	state := middleware.SessionState(c)
	form.SyncPhotoGroups(b)

	doc, ok := h.collectValid(c, b, state, "Cannot export PDF")
	if !ok {
		return false
	}
	data, err := flier.Marshal(doc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to encode flier", slog.Any("error", err))
		h.render(c, http.StatusInternalServerError, b, state, "The flier could not be exported.")
		return false
	}
	state = state.WithDocument(doc)
	middleware.SetSessionState(c, state)

	record, err := h.archive(c, doc, data, state, database.StatusPending)
	if err != nil {
		log.ErrorContext(ctx, "Failed to archive flier", slog.Any("error", err))
		h.render(c, http.StatusInternalServerError, b, state, "The flier could not be exported.")
		return false
	}

	task, err := tasks.NewPDFGenerateTask(record.ID, middleware.SessionID(c), middleware.GetCorrelationID(c))
	if err == nil {
		_, err = h.queue.EnqueueContext(ctx, task, h.taskOpts...)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to enqueue PDF task", slog.Uint64("flier_id", uint64(record.ID)), slog.Any("error", err))
		if statusErr := h.fliers.SetStatus(ctx, record.ID, database.StatusFailed); statusErr != nil {
			log.WarnContext(ctx, "mark flier failed", slog.Any("error", statusErr))
		}
		h.render(c, http.StatusInternalServerError, b, state, "The PDF could not be queued.")
		return false
	}

	log.InfoContext(ctx, "pdf task enqueued", slog.Uint64("flier_id", uint64(record.ID)))
	h.render(c, http.StatusAccepted, b, state, "PDF export started. A link appears here when it is ready.")
	return true
}

// collectValid reads the form and validates it, rendering the editor with an
// alert when the document is incomplete.
func (h *EditorHandler) collectValid(c *gin.Context, b *form.Values, state session.State, prefix string) (flier.Document, bool) {
	doc := form.Collect(b)
	err := flier.Validate(doc)
	if err == nil {
		return doc, true
	}
	attrs := []any{slog.Any("error", err)}
	var verr *flier.ValidationError
	if errors.As(err, &verr) {
		attrs = append(attrs, slog.String("stage", verr.Stage))
	}
	middleware.LoggerFromContext(c).ErrorContext(c.Request.Context(), "Validation failed", attrs...)
	h.render(c, http.StatusUnprocessableEntity, b, state, fmt.Sprintf("%s: %v", prefix, err))
	return flier.Document{}, false
}

func (h *EditorHandler) archive(c *gin.Context, doc flier.Document, content []byte, state session.State, status string) (database.Flier, error) {
	photos, err := marshalPhotos(state.Photos)
	if err != nil {
		return database.Flier{}, err
	}
	record := database.Flier{
		SessionID:   middleware.SessionID(c),
		ClubName:    doc.ClubInfo.Name,
		MeetingDate: doc.MeetingInfo.Date,
		Filename:    flier.Filename(doc),
		Content:     datatypes.JSON(content),
		Photos:      photos,
		Status:      status,
	}
	if err := h.fliers.Create(c.Request.Context(), &record); err != nil {
		return database.Flier{}, err
	}
	return record, nil
}

// ErrorLog 下载错误日志。
func (h *EditorHandler) ErrorLog(c *gin.Context) {
	text := ""
	if log := errlog.FromContext(c.Request.Context()); log != nil {
		text = log.Text()
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": errlog.Filename}))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// Open 将存档中的传单载入编辑器。
func (h *EditorHandler) Open(c *gin.Context) {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	state := middleware.SessionState(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid flier id")
		return
	}
	record, err := h.fliers.Get(ctx, uint(id))
	if err != nil {
		if errors.Is(err, errFlierNotFound) {
			NotFound(c, "flier not found")
			return
		}
		log.ErrorContext(ctx, "Failed to load archived flier", slog.Uint64("flier_id", id), slog.Any("error", err))
		Internal(c, "failed to load flier")
		return
	}
	doc, err := flier.DecodeBytes(record.Content)
	if err != nil {
		log.ErrorContext(ctx, "Failed to parse archived flier", slog.Uint64("flier_id", id), slog.Any("error", err))
		middleware.SetSessionState(c, state.WithAlert("The archived flier could not be read."))
		c.Redirect(http.StatusSeeOther, "/editor")
		return
	}
	middleware.SetSessionState(c, restorePhotos(c, record, state).WithDocument(doc))
	c.Redirect(http.StatusSeeOther, "/editor")
}

// restorePhotos re-attaches the archived photo objects that belong to the
// current session. Photos uploaded by another session stay with it.
func restorePhotos(c *gin.Context, record database.Flier, state session.State) session.State {
	if len(record.Photos) == 0 {
		return state
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	var photos map[string]string
	if err := json.Unmarshal(record.Photos, &photos); err != nil {
		log.WarnContext(ctx, "archived photo map is malformed", slog.Uint64("flier_id", uint64(record.ID)), slog.Any("error", err))
		return state
	}
	sid := middleware.SessionID(c)
	for name, key := range photos {
		if !storage.IsValidPhotoKey(sid, key) {
			log.InfoContext(ctx, "archived photo belongs to another session", slog.String("photo", name))
			continue
		}
		state = state.WithPhoto(name, key)
	}
	return state
}

func (h *EditorHandler) render(c *gin.Context, status int, b *form.Values, state session.State, alert string) {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	view := web.NewEditorView(b)
	view.Photos = state.PhotoNames()
	view.Alert = alert
	if collected := errlog.FromContext(ctx); collected != nil {
		view.ErrorLog = collected.Lines()
	}
	records, err := h.fliers.List(ctx, archiveListLimit)
	if err != nil {
		log.WarnContext(ctx, "list archived fliers failed", slog.Any("error", err))
	}
	for _, r := range records {
		view.Archive = append(view.Archive, archiveEntry(r))
	}

	var buf bytes.Buffer
	if err := h.pages.Editor(&buf, view); err != nil {
		log.ErrorContext(ctx, "Failed to render editor", slog.Any("error", err))
		Internal(c, "failed to render editor")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func archiveEntry(r database.Flier) web.ArchiveEntry {
	return web.ArchiveEntry{
		ID:          r.ID,
		ClubName:    r.ClubName,
		MeetingDate: r.MeetingDate,
		Filename:    r.Filename,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}
}
