package web

import (
	"bytes"
	"strings"
	"testing"

	"flierbuilder/internal/flier"
	"flierbuilder/internal/form"
)

func TestEditorPage_RendersForm(t *testing.T) {
	pages, err := NewPages()
	if err != nil {
		t.Fatalf("new pages: %v", err)
	}
	doc, err := flier.DecodeBytes(DefaultDocument())
	if err != nil {
		t.Fatalf("default document: %v", err)
	}
	b := form.NewValues()
	form.Populate(doc, b)

	view := NewEditorView(b)
	view.ErrorLog = []string{"2024-05-01T00:00:00.000Z [ERROR] <boom>"}
	view.Alert = "Validation failed"

	var buf bytes.Buffer
	if err := pages.Editor(&buf, view); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`name="club-name" value="Downtown Toastmasters Club"`,
		`name="theme-text-1" value="VOICE"`,
		`name="theme-color-text-0" value="#FFFFFF"`,
		`<option value="rays" selected>rays</option>`,
		`id="tmod-photo-url-group" hidden`,
		`id="theme-text-2"`,
		`Validation failed`,
		`&lt;boom&gt;`,
		`href="/editor/errorlog"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("editor page missing %q", want)
		}
	}
}

func TestEditorPage_HidesEmptyErrorLog(t *testing.T) {
	pages, _ := NewPages()
	var buf bytes.Buffer
	if err := pages.Editor(&buf, NewEditorView(form.NewValues())); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), `id="error-log"`) {
		t.Fatalf("error log panel must be hidden when empty")
	}
}

func TestDefaultDocument_Validates(t *testing.T) {
	doc, err := flier.DecodeBytes(DefaultDocument())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := flier.Validate(doc); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
