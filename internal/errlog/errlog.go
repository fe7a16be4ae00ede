// Package errlog collects the ERROR records of a request so the editor can
// show them and offer them as a download.
package errlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Filename is the download name of the error log.
const Filename = "dataentry-errorlog.txt"

// MaxLines bounds the number of retained entries; older entries are dropped.
const MaxLines = 200

// Log is an append-only list of formatted error lines. Besides the full list
// it remembers what this request added, so callers can persist only the delta.
type Log struct {
	mu      sync.Mutex
	lines   []string
	added   []string
	cleared bool
}

// New returns a log seeded with previously collected lines.
func New(lines ...string) *Log {
	return &Log{lines: append([]string(nil), lines...)}
}

// Append adds one line.
func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = capLines(append(l.lines, line))
	l.added = capLines(append(l.added, line))
}

func capLines(lines []string) []string {
	if over := len(lines) - MaxLines; over > 0 {
		return append([]string(nil), lines[over:]...)
	}
	return lines
}

// Reset drops every line.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	l.added = nil
	l.cleared = true
}

// Added returns the lines appended since New or the last Reset.
func (l *Log) Added() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.added...)
}

// Cleared reports whether Reset was called.
func (l *Log) Cleared() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cleared
}

// Lines returns a copy of the collected lines.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Len returns the number of collected lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Text joins the lines with newlines, as written to the download.
func (l *Log) Text() string {
	return strings.Join(l.Lines(), "\n")
}

type ctxKey struct{}

// WithLog attaches log to ctx.
func WithLog(ctx context.Context, log *Log) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the log attached to ctx, or nil.
func FromContext(ctx context.Context) *Log {
	if ctx == nil {
		return nil
	}
	log, _ := ctx.Value(ctxKey{}).(*Log)
	return log
}

// Handler forwards records to next and additionally appends every ERROR
// record to the Log found in the record's context.
type Handler struct {
	next   slog.Handler
	attrs  []slog.Attr
	groups []string
}

// NewHandler wraps next.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError || h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		if log := FromContext(ctx); log != nil {
			log.Append(h.format(r))
		}
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefixed := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		prefixed = append(prefixed, slog.Attr{Key: h.prefix() + a.Key, Value: a.Value})
	}
	return &Handler{
		next:   h.next.WithAttrs(attrs),
		attrs:  append(append([]slog.Attr(nil), h.attrs...), prefixed...),
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{
		next:   h.next.WithGroup(name),
		attrs:  h.attrs,
		groups: append(append([]string(nil), h.groups...), name),
	}
}

func (h *Handler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

// format renders "{timestamp} [ERROR] {message} {json attrs}".
func (h *Handler) format(r slog.Record) string {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("%s [ERROR] %s", ts.UTC().Format("2006-01-02T15:04:05.000Z07:00"), r.Message)

	data := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(data, "", a)
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		addAttr(data, prefix, a)
		return true
	})
	if len(data) == 0 {
		return line
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return line
	}
	return line + " " + string(encoded)
}

func addAttr(data map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			addAttr(data, prefix+a.Key+".", ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	switch val := v.Any().(type) {
	case error:
		data[prefix+a.Key] = val.Error()
	case fmt.Stringer:
		data[prefix+a.Key] = val.String()
	default:
		data[prefix+a.Key] = val
	}
}
