// Package source decides which document the preview page renders.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"flierbuilder/internal/flier"
	"flierbuilder/internal/handoff"
	"flierbuilder/internal/session"
)

// ErrNoDocument means a source has nothing to offer; it is not a failure.
var ErrNoDocument = errors.New("no document")

// NameFallback identifies the built-in last-resort document.
const NameFallback = "fallback"

const maxResourceBytes = 1 << 20

// Request carries what sources need to know about the caller.
type Request struct {
	SessionID string
	State     session.State
}

// Source yields a document or an error.
type Source interface {
	Name() string
	Document(ctx context.Context, req Request) (flier.Document, error)
}

// Resolver tries its sources in order and falls back to flier.Fallback.
type Resolver struct {
	sources []Source
	logger  *slog.Logger
	now     func() time.Time
}

func NewResolver(logger *slog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{sources: sources, logger: logger, now: time.Now}
}

// Resolve returns the first document a source yields and the source's name.
// Failures are logged and never returned.
func (r *Resolver) Resolve(ctx context.Context, req Request) (flier.Document, string) {
	for _, src := range r.sources {
		doc, err := src.Document(ctx, req)
		if err == nil {
			r.logger.InfoContext(ctx, "document loaded", slog.String("source", src.Name()))
			return doc, src.Name()
		}
		if errors.Is(err, ErrNoDocument) {
			r.logger.DebugContext(ctx, "source has no document", slog.String("source", src.Name()))
			continue
		}
		r.logger.ErrorContext(ctx, "Failed to load document",
			slog.String("source", src.Name()),
			slog.Any("error", err),
		)
	}
	r.logger.WarnContext(ctx, "using fallback document")
	return flier.Fallback(r.now()), NameFallback
}

type handoffReader interface {
	Get(ctx context.Context, sessionID string) (flier.Document, error)
}

// HandoffSource reads the document the editor handed to the preview.
type HandoffSource struct {
	Store handoffReader
}

func (HandoffSource) Name() string { return "handoff" }

func (s HandoffSource) Document(ctx context.Context, req Request) (flier.Document, error) {
	if req.SessionID == "" {
		return flier.Document{}, ErrNoDocument
	}
	doc, err := s.Store.Get(ctx, req.SessionID)
	if errors.Is(err, handoff.ErrNotFound) {
		return flier.Document{}, ErrNoDocument
	}
	return doc, err
}

// StateSource uses the document already attached to the session.
type StateSource struct{}

func (StateSource) Name() string { return "session" }

func (StateSource) Document(_ context.Context, req Request) (flier.Document, error) {
	if req.State.Document == nil {
		return flier.Document{}, ErrNoDocument
	}
	return *req.State.Document, nil
}

// ResourceSource fetches the well-known JSON resource. Bodies that are not
// JSON are read with the legacy parser.
type ResourceSource struct {
	Client *http.Client
	URL    string
	Logger *slog.Logger
}

func (ResourceSource) Name() string { return "resource" }

func (s ResourceSource) Document(ctx context.Context, _ Request) (flier.Document, error) {
	if strings.TrimSpace(s.URL) == "" {
		return flier.Document{}, ErrNoDocument
	}
	data, err := s.fetch(ctx)
	if err != nil {
		return flier.Document{}, err
	}
	return DecodeResource(ctx, s.logger(), data)
}

func (s ResourceSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s ResourceSource) fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", s.URL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URL, err)
	}
	return data, nil
}

// DecodeResource reads a resource body: JSON when it is an object, the legacy
// format otherwise. Legacy sections that fail to parse are logged and left empty.
func DecodeResource(ctx context.Context, logger *slog.Logger, data []byte) (flier.Document, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		doc, err := flier.DecodeBytes(trimmed)
		if err == nil {
			return doc, nil
		}
		logger.WarnContext(ctx, "resource is not valid JSON, trying legacy format", slog.Any("error", err))
	}

	doc, errs := flier.ParseLegacy(string(data))
	failed := make(map[string]bool, len(errs))
	for _, err := range errs {
		failed[flier.FailedSection(err)] = true
		var syntaxErr *flier.SyntaxError
		if errors.As(err, &syntaxErr) {
			logger.ErrorContext(ctx, "Failed to parse section",
				slog.String("section", syntaxErr.Section),
				slog.Int("line", syntaxErr.Line),
				slog.Int("column", syntaxErr.Column),
				slog.String("error", syntaxErr.Msg),
			)
			continue
		}
		logger.ErrorContext(ctx, "Failed to parse legacy document",
			slog.String("section", flier.FailedSection(err)),
			slog.Any("error", err),
		)
	}
	if !anyUsable(doc, failed) {
		return flier.Document{}, fmt.Errorf("%w: no usable sections", flier.ErrMalformed)
	}
	return doc, nil
}

// anyUsable reports whether some section was both present and parsed.
func anyUsable(doc flier.Document, failed map[string]bool) bool {
	for _, name := range flier.Sections() {
		if !doc.Missing(name) && !failed[name] {
			return true
		}
	}
	return false
}
