// Package web holds the editor and login pages and the default document
// served at /data.json.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"flierbuilder/internal/flier"
	"flierbuilder/internal/form"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

//go:embed data.json
var defaultDocument []byte

// DefaultDocument returns the document served at /data.json.
func DefaultDocument() []byte {
	return bytes.Clone(defaultDocument)
}

// FormView exposes a binding to templates.
type FormView struct {
	b form.Binding
}

// NewFormView wraps b.
func NewFormView(b form.Binding) FormView {
	return FormView{b: b}
}

// Get returns the value of a named field.
func (f FormView) Get(name string) string {
	return f.b.Value(form.Field(name))
}

// Row returns the value of a per-row field.
func (f FormView) Row(prefix string, i int) string {
	return f.b.Value(form.Indexed(form.Field(prefix), i))
}

// Hidden reports whether a field group is hidden.
func (f FormView) Hidden(name string) bool {
	return f.b.Hidden(form.Field(name))
}

// Is reports whether a named field currently holds value.
func (f FormView) Is(name, value string) bool {
	return f.Get(name) == value
}

// RowIs reports whether a per-row field currently holds value.
func (f FormView) RowIs(prefix string, i int, value string) bool {
	return f.Row(prefix, i) == value
}

// ArchiveEntry is one saved flier in the editor's archive list.
type ArchiveEntry struct {
	ID          uint
	ClubName    string
	MeetingDate string
	Filename    string
	Status      string
	CreatedAt   time.Time
}

// EditorView is the data of the editor page.
type EditorView struct {
	Form                FormView
	ThemeRows           []int
	ContactRows         []int
	DecorationTypes     []string
	DecorationPositions []string
	PhotoTypes          []string
	Photos              []string
	Archive             []ArchiveEntry
	ErrorLog            []string
	Alert               string
	Source              string
}

// NewEditorView fills the fixed parts of the editor page.
func NewEditorView(b form.Binding) EditorView {
	return EditorView{
		Form:                NewFormView(b),
		ThemeRows:           rows(flier.MaxThemeLines),
		ContactRows:         rows(flier.MaxContacts),
		DecorationTypes:     form.DecorationTypes,
		DecorationPositions: form.DecorationPositions,
		PhotoTypes:          form.PhotoTypes,
	}
}

func rows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// LoginView is the data of the passcode page.
type LoginView struct {
	Next  string
	Error string
}

// Pages renders the HTML pages of the service.
type Pages struct {
	tmpl *template.Template
}

// NewPages parses the embedded page templates.
func NewPages() (*Pages, error) {
	tmpl, err := template.New("web").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return &Pages{tmpl: tmpl}, nil
}

// Editor writes the editor page.
func (p *Pages) Editor(w io.Writer, view EditorView) error {
	return p.execute(w, "editor", view)
}

// Login writes the passcode page.
func (p *Pages) Login(w io.Writer, view LoginView) error {
	return p.execute(w, "login", view)
}

func (p *Pages) execute(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s page: %w", name, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s page: %w", name, err)
	}
	return nil
}
