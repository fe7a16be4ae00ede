package form

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Binding reads and writes the editor inputs and toggles the visibility of
// input groups. Handlers hand one to Populate and Collect instead of looking
// fields up globally.
type Binding interface {
	Value(f Field) string
	SetValue(f Field, value string)
	Show(f Field)
	Hide(f Field)
	Hidden(f Field) bool
}

// Values is a Binding over submitted form values.
type Values struct {
	values url.Values
	hidden map[Field]bool
}

// NewValues returns an empty binding.
func NewValues() *Values {
	return &Values{values: url.Values{}, hidden: map[Field]bool{}}
}

// FromForm wraps a parsed request form. The form is copied.
func FromForm(form url.Values) *Values {
	v := NewValues()
	for key, vals := range form {
		v.values[key] = append([]string(nil), vals...)
	}
	return v
}

// FromRequest parses the form of r, multipart or URL-encoded, and wraps it.
func FromRequest(r *http.Request, maxMemory int64) (*Values, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
	}
	return FromForm(r.Form), nil
}

func (v *Values) Value(f Field) string {
	return v.values.Get(string(f))
}

func (v *Values) SetValue(f Field, value string) {
	v.values.Set(string(f), value)
}

func (v *Values) Show(f Field) {
	delete(v.hidden, f)
}

func (v *Values) Hide(f Field) {
	v.hidden[f] = true
}

func (v *Values) Hidden(f Field) bool {
	return v.hidden[f]
}

// Encode returns the values in URL form encoding.
func (v *Values) Encode() string {
	return v.values.Encode()
}
