package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"flierbuilder/internal/auth"
	"flierbuilder/internal/database"
	"flierbuilder/internal/errlog"
	"flierbuilder/internal/flier"
	"flierbuilder/internal/handoff"
	"flierbuilder/internal/render"
	"flierbuilder/internal/session"
	"flierbuilder/internal/source"
	"flierbuilder/internal/web"
)

const testSessionID = "sid-1"

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryStates struct {
	mu     sync.Mutex
	states map[string]session.State
}

func newMemoryStates() *memoryStates {
	return &memoryStates{states: map[string]session.State{}}
}

func (m *memoryStates) Load(_ context.Context, id string) (session.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id], nil
}

func (m *memoryStates) Save(_ context.Context, id string, state session.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.ErrorLog = m.states[id].ErrorLog
	m.states[id] = state
	return nil
}

func (m *memoryStates) AppendErrors(_ context.Context, id string, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.states[id]
	state.ErrorLog = append(state.ErrorLog, lines...)
	if over := len(state.ErrorLog) - errlog.MaxLines; over > 0 {
		state.ErrorLog = state.ErrorLog[over:]
	}
	m.states[id] = state
	return nil
}

func (m *memoryStates) ClearErrors(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.states[id]
	state.ErrorLog = nil
	m.states[id] = state
	return nil
}

func (m *memoryStates) get(id string) session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id]
}

type memoryHandoff struct {
	mu   sync.Mutex
	docs map[string]flier.Document
}

func (m *memoryHandoff) Put(_ context.Context, sessionID string, doc flier.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[sessionID] = doc
	return nil
}

func (m *memoryHandoff) Get(_ context.Context, sessionID string) (flier.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[sessionID]
	if !ok {
		return flier.Document{}, handoff.ErrNotFound
	}
	return doc, nil
}

type fakeDefaults struct {
	doc flier.Document
	err error
}

func (f fakeDefaults) Document(context.Context, source.Request) (flier.Document, error) {
	return f.doc, f.err
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks)), Type: task.Type()}, nil
}

type fakePhotoStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakePhotoStore() *fakePhotoStore {
	return &fakePhotoStore{objects: map[string][]byte{}}
}

func (s *fakePhotoStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return &minio.UploadInfo{Key: objectName, Size: int64(len(data))}, nil
}

func (s *fakePhotoStore) ReadObject(_ context.Context, objectKey string, _ int64) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, "", minio.ErrorResponse{Code: "NoSuchKey"}
	}
	return data, "image/png", nil
}

func (s *fakePhotoStore) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	s.deleted = append(s.deleted, objectKey)
	return nil
}

type fakePresigner struct {
	key    string
	params map[string]string
	err    error
}

func (p *fakePresigner) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration, params map[string]string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.key, p.params = objectKey, params
	return "https://files.example.com/" + objectKey + "?X-Amz-Signature=abc", nil
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

type testEnv struct {
	router    *gin.Engine
	sessions  *auth.SessionService
	states    *memoryStates
	handoffs  *memoryHandoff
	fliers    *FlierStore
	queue     *fakeQueue
	photos    *fakePhotoStore
	presigner *fakePresigner
	counter   *fakeCounter
}

type envOptions struct {
	defaults     fakeDefaults
	passcodeHash string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(errlog.NewHandler(slog.NewTextHandler(io.Discard, nil)))
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := quietLogger()

	sessions, err := auth.NewSessionService([]byte(strings.Repeat("k", 32)), time.Hour)
	if err != nil {
		t.Fatalf("session service: %v", err)
	}
	pages, err := web.NewPages()
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	if opts.defaults.doc.ClubInfo.Name == "" && opts.defaults.err == nil {
		opts.defaults.err = source.ErrNoDocument
	}

	env := &testEnv{
		sessions:  sessions,
		states:    newMemoryStates(),
		handoffs:  &memoryHandoff{docs: map[string]flier.Document{}},
		fliers:    NewFlierStore(newTestDB(t)),
		queue:     &fakeQueue{},
		photos:    newFakePhotoStore(),
		presigner: &fakePresigner{},
		counter:   newFakeCounter(),
	}

	resolver := source.NewResolver(logger, source.HandoffSource{Store: env.handoffs}, source.StateSource{})
	photoHandler := NewPhotoHandler(env.photos, "", http.DefaultClient, env.counter, 1<<20)
	env.router = NewRouter(Handlers{
		Logger:       logger,
		Sessions:     sessions,
		States:       env.states,
		PasscodeHash: opts.passcodeHash,
		Editor:       NewEditorHandler(pages, opts.defaults, env.handoffs, env.fliers, env.queue, photoHandler, 1<<20, 3),
		Photos:       photoHandler,
		Preview:      NewPreviewHandler(resolver, render.MustNew(logger)),
		Fliers:       NewFlierHandler(env.fliers, env.presigner),
		Login:        NewLoginHandler(pages, opts.passcodeHash, env.counter),
		Ws:           NewWsHandler(nil, logger, nil),
	})
	return env
}

// cookie returns a session cookie for sid.
func (e *testEnv) cookie(t *testing.T, sid string, editor bool) *http.Cookie {
	t.Helper()
	token, err := e.sessions.Issue(sid, editor)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func validForm(action string) url.Values {
	return url.Values{
		"action":             {action},
		"club-name":          {"Downtown Club"},
		"club-number":        {"1234"},
		"club-area":          {"5"},
		"club-division":      {"B"},
		"club-district":      {"100"},
		"meeting-number":     {"42"},
		"meeting-date":       {"2024-05-01"},
		"meeting-time-start": {"7:00 PM"},
		"meeting-time-end":   {"9:00 PM"},
		"meeting-location":   {"Hall"},
		"theme-text-0":       {"GROW"},
		"theme-color-0":      {"#FFFFFF"},
		"tmod-name":          {"Jane Doe"},
		"tmod-photo-type":    {"none"},
		"contact-name-0":     {"Sam"},
		"contact-phone-0":    {"555-0100"},
	}
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/editor", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type upload struct {
	field, filename string
	content         []byte
}

func postMultipart(t *testing.T, values url.Values, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, vals := range values {
		for _, v := range vals {
			if err := w.WriteField(key, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		if _, err := part.Write(f.content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/editor", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func hasLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

var errBoom = errors.New("boom")

func timeForTest() time.Time {
	return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
}
