package flier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrMalformed is returned when input is not a JSON flier document.
var ErrMalformed = errors.New("malformed flier document")

// DefaultFilenameBase names saved files of fliers without a club name.
const DefaultFilenameBase = "toastmasters-flier"

// Decode reads a UTF-8 JSON document.
func Decode(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes parses a JSON document held in memory.
func DecodeBytes(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Document{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

// Encode writes the document as JSON indented with four spaces.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// Marshal returns the indented JSON form of the document.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Filename derives the download name from the club name and meeting date,
// e.g. "downtown-club-2024-05-01.json".
func Filename(doc Document) string {
	base := DefaultFilenameBase
	if name := doc.ClubInfo.Name; name != "" {
		base = strings.ToLower(whitespaceRun.ReplaceAllString(name, "-"))
	}
	if date := doc.MeetingInfo.Date; date != "" {
		base += "-" + date
	}
	return base + ".json"
}
