package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"flierbuilder/internal/flier"
)

//go:embed templates/*.gohtml templates/flier.css
var templateFS embed.FS

// ErrPhotoUnavailable is returned by a PhotoResolver that cannot serve a path.
var ErrPhotoUnavailable = errors.New("photo unavailable")

// PhotoResolver maps a local photo path to a URL the page can load.
type PhotoResolver interface {
	ResolvePhoto(ctx context.Context, path string) (string, error)
}

// PhotoResolverFunc adapts a function to PhotoResolver.
type PhotoResolverFunc func(ctx context.Context, path string) (string, error)

func (f PhotoResolverFunc) ResolvePhoto(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

const (
	moderatorLabel = "TMOD"
	logoText       = "TM"
)

var (
	hexColor   = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{4}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)
	namedColor = regexp.MustCompile(`^[A-Za-z]{3,20}$`)
	classToken = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
)

// Renderer turns documents into flier markup.
type Renderer struct {
	logger *slog.Logger
	tmpl   *template.Template
}

// New parses the embedded templates.
func New(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	css, err := templateFS.ReadFile("templates/flier.css")
	if err != nil {
		return nil, fmt.Errorf("read flier stylesheet: %w", err)
	}
	tmpl, err := template.New("render").Funcs(template.FuncMap{
		"stylesheet": func() template.CSS { return template.CSS(css) },
	}).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse flier templates: %w", err)
	}
	return &Renderer{logger: logger, tmpl: tmpl}, nil
}

// MustNew is New for package-level setup; it panics on template errors.
func MustNew(logger *slog.Logger) *Renderer {
	r, err := New(logger)
	if err != nil {
		panic(err)
	}
	return r
}

// Build computes the layout of doc. Local photo paths are resolved through
// photos; any failure falls back to the initials placeholder.
func (r *Renderer) Build(ctx context.Context, doc flier.Document, photos PhotoResolver) Layout {
	layout := Layout{
		Title: strings.TrimSpace(doc.ClubInfo.Name + " " + meetingTitle(doc.MeetingInfo)),
		Header: Header{
			ClubName:      doc.ClubInfo.Name,
			ClubDetails:   flier.FormatClubDetails(doc.ClubInfo),
			MeetingNumber: "MEETING NO. " + doc.MeetingInfo.Number,
			Logo:          logoText,
		},
		Body: Body{
			Moderator: r.moderator(ctx, doc.Tmod, photos),
			Lines:     make([]Line, 0, len(doc.Theme.Lines)),
		},
		Footer: Footer{
			DateTime: flier.FormatDateTime(doc.MeetingInfo),
			Location: doc.MeetingInfo.Location,
			Contacts: flier.FormatContacts(doc.ContactPersons),
		},
	}
	for i, line := range doc.Theme.Lines {
		layout.Body.Lines = append(layout.Body.Lines, buildLine(i, line))
	}
	return layout
}

func meetingTitle(info flier.MeetingInfo) string {
	if info.Number == "" {
		return ""
	}
	return "#" + info.Number
}

func (r *Renderer) moderator(ctx context.Context, tmod flier.Tmod, photos PhotoResolver) Moderator {
	m := Moderator{
		Alt:   tmod.Name,
		Label: moderatorLabel,
		Name:  "TM " + tmod.Name,
	}
	path := strings.TrimSpace(tmod.PhotoPath)
	if path == "" {
		m.Placeholder = flier.Initials(tmod.Name)
		return m
	}

	src, err := r.resolvePhoto(ctx, path, photos)
	if err != nil {
		r.logger.WarnContext(ctx, "moderator photo unavailable, using placeholder",
			slog.String("path", path),
			slog.Any("error", err),
		)
		m.Placeholder = flier.Initials(tmod.Name)
		return m
	}
	m.PhotoSrc = template.URL(src)
	return m
}

func (r *Renderer) resolvePhoto(ctx context.Context, path string, photos PhotoResolver) (string, error) {
	if IsRemotePhoto(path) {
		return path, nil
	}
	if photos == nil {
		return "", ErrPhotoUnavailable
	}
	src, err := photos.ResolvePhoto(ctx, path)
	if err != nil {
		return "", err
	}
	if !IsRemotePhoto(src) && !strings.HasPrefix(src, "/") {
		return "", fmt.Errorf("%w: unsupported source for %q", ErrPhotoUnavailable, path)
	}
	return src, nil
}

// IsRemotePhoto reports whether path can be used as an image source directly:
// an http(s) URL or an inline image data URL.
func IsRemotePhoto(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:image/")
}

func buildLine(i int, line flier.ThemeLine) Line {
	pos := line.Position(i)
	style := fmt.Sprintf("font-size: %dpx; color: %s; transform: translate(%dpx, %dpx);",
		line.FontSize(), SafeColor(line.Color.Hex()), pos.X, pos.Y)

	out := Line{
		Text:  line.Text,
		Class: fmt.Sprintf("theme-line theme-line-%d", i+1),
		Style: template.CSS(style),
	}
	if line.Decorated() {
		kind, position := line.Decoration.Type, line.Decoration.Position
		if classToken.MatchString(kind) && classToken.MatchString(position) {
			out.Decoration = "decoration " + kind + " " + position
		}
	}
	return out
}

// SafeColor passes hex and named colors through and maps anything else to
// the default color.
func SafeColor(value string) string {
	if hexColor.MatchString(value) || namedColor.MatchString(value) {
		return value
	}
	return flier.DefaultColor
}

// Render writes the flier fragment. Output is produced in full or not at all.
func (r *Renderer) Render(w io.Writer, layout Layout) error {
	return r.execute(w, "flier", layout)
}

// Page writes a standalone printable page holding the flier.
func (r *Renderer) Page(w io.Writer, layout Layout) error {
	return r.execute(w, "page", layout)
}

func (r *Renderer) execute(w io.Writer, name string, layout Layout) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, layout); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
