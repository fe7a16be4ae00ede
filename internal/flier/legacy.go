package flier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError locates a parse failure in the legacy text format.
type SyntaxError struct {
	Section string
	Line    int
	Column  int
	Msg     string
}

func (e *SyntaxError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("legacy %s section: line %d, column %d: %s", e.Section, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("legacy format: line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// SectionError reports a legacy section whose values do not fit the document,
// e.g. `size: 'big'`.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("legacy %s section: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// FailedSection returns the section a ParseLegacy error belongs to, or "".
func FailedSection(err error) string {
	var syntaxErr *SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Section
	}
	var sectionErr *SectionError
	if errors.As(err, &sectionErr) {
		return sectionErr.Section
	}
	return ""
}

// ParseLegacy reads the script-like format older fliers were kept in:
//
//	clubInfo = { name: 'Downtown', number: 1234, }
//
//	theme = { lines: [ { text: 'GROW', size: 44 } ] }
//
// Sections are separated by blank lines. A section that fails to parse or
// does not fit the document is reported and left empty; the remaining
// sections are still used.
func ParseLegacy(text string) (Document, []error) {
	sections := make(map[string]any, len(sectionNames))
	var errs []error

	for _, chunk := range splitChunks(text) {
		name, value, err := parseSection(chunk.text, chunk.line)
		if err != nil {
			if name != "" && isSectionName(name) {
				sections[name] = emptySection(name)
			}
			errs = append(errs, err)
			continue
		}
		if !isSectionName(name) {
			continue
		}
		value = coerceSection(name, value)
		if err := checkSection(name, value); err != nil {
			sections[name] = emptySection(name)
			errs = append(errs, &SectionError{Section: name, Err: err})
			continue
		}
		sections[name] = value
	}

	doc, err := assemble(sections)
	if err != nil {
		// Report a document with no sections rather than a blank one.
		doc, _ = assemble(nil)
		return doc, append(errs, err)
	}
	return doc, errs
}

// checkSection decodes one section alone so a bad value cannot take the
// other sections down with it.
func checkSection(name string, value any) error {
	_, err := assemble(map[string]any{name: value})
	return err
}

func assemble(sections map[string]any) (Document, error) {
	if sections == nil {
		sections = map[string]any{}
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return Document{}, fmt.Errorf("assemble legacy document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

type chunk struct {
	text string
	line int
}

func splitChunks(text string) []chunk {
	var chunks []chunk
	var current []string
	start := 0
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, chunk{text: strings.Join(current, "\n"), line: start})
			current = nil
		}
	}
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if len(current) == 0 {
			start = i + 1
		}
		current = append(current, line)
	}
	flush()
	return chunks
}

func isSectionName(name string) bool {
	for _, s := range sectionNames {
		if s == name {
			return true
		}
	}
	return false
}

func emptySection(name string) any {
	if name == "contactPersons" {
		return []any{}
	}
	return map[string]any{}
}

// coerceSection turns bare numbers and booleans into strings where the
// document expects text, e.g. `number: 1234`.
func coerceSection(name string, value any) any {
	switch name {
	case "clubInfo", "meetingInfo", "tmod":
		return stringifyFields(value)
	case "contactPersons":
		list, ok := value.([]any)
		if !ok {
			return value
		}
		for i, item := range list {
			list[i] = stringifyFields(item)
		}
		return list
	case "theme":
		obj, ok := value.(map[string]any)
		if !ok {
			return value
		}
		lines, ok := obj["lines"].([]any)
		if !ok {
			return value
		}
		for _, item := range lines {
			line, ok := item.(map[string]any)
			if !ok {
				continue
			}
			line["size"] = roundNumber(line["size"])
			if text, ok := line["text"]; ok {
				line["text"] = stringify(text)
			}
			if offset, ok := line["offset"].(map[string]any); ok {
				offset["x"] = roundNumber(offset["x"])
				offset["y"] = roundNumber(offset["y"])
			}
		}
		return obj
	}
	return value
}

func roundNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	f, err := n.Float64()
	if err != nil {
		return v
	}
	return int(math.Trunc(f))
}

func stringifyFields(value any) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}
	for k, v := range obj {
		obj[k] = stringify(v)
	}
	return obj
}

func stringify(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return v
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return &SyntaxError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		r := l.peekRune()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case strings.HasPrefix(l.src[l.pos:], "//"):
			for l.pos < len(l.src) && l.peekRune() != '\n' {
				l.advance()
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			line, col := l.line, l.col
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(line, col, "unterminated comment")
			}
			for stop := l.pos + 2 + end + 2; l.pos < stop; {
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	r := l.peekRune()
	switch {
	case strings.ContainsRune("{}[]:,=;", r):
		l.advance()
		return token{kind: tokPunct, text: string(r), line: line, col: col}, nil
	case r == '\'' || r == '"':
		s, err := l.lexString(r)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, line: line, col: col}, nil
	case r == '-' || r == '+' || r == '.' || unicode.IsDigit(r):
		start := l.pos
		for l.pos < len(l.src) {
			c := l.peekRune()
			if !(unicode.IsDigit(c) || strings.ContainsRune("+-.eE", c)) {
				break
			}
			l.advance()
		}
		text := l.src[start:l.pos]
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return token{}, l.errorf(line, col, "invalid number %q", text)
		}
		return token{kind: tokNumber, text: strings.TrimPrefix(text, "+"), line: line, col: col}, nil
	case r == '_' || r == '$' || unicode.IsLetter(r):
		start := l.pos
		for l.pos < len(l.src) {
			c := l.peekRune()
			if !(c == '_' || c == '$' || unicode.IsLetter(c) || unicode.IsDigit(c)) {
				break
			}
			l.advance()
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], line: line, col: col}, nil
	}
	return token{}, l.errorf(line, col, "unexpected character %q", r)
}

func (l *lexer) lexString(quote rune) (string, error) {
	line, col := l.line, l.col
	l.advance()
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", l.errorf(line, col, "unterminated string")
		}
		r := l.advance()
		switch r {
		case quote:
			return b.String(), nil
		case '\n':
			return "", l.errorf(line, col, "unterminated string")
		case '\\':
			if l.pos >= len(l.src) {
				return "", l.errorf(line, col, "unterminated string")
			}
			esc := l.advance()
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case 'u':
				if l.pos+4 > len(l.src) {
					return "", l.errorf(l.line, l.col, "short unicode escape")
				}
				code, err := strconv.ParseUint(l.src[l.pos:l.pos+4], 16, 32)
				if err != nil {
					return "", l.errorf(l.line, l.col, "invalid unicode escape")
				}
				for i := 0; i < 4; i++ {
					l.advance()
				}
				b.WriteRune(rune(code))
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

type parser struct {
	lex *lexer
	tok token
}

func parseSection(text string, line int) (name string, value any, err error) {
	p := &parser{lex: &lexer{src: text, line: line, col: 1}}
	defer func() {
		var syntaxErr *SyntaxError
		if errors.As(err, &syntaxErr) {
			syntaxErr.Section = name
		}
	}()

	if err := p.advance(); err != nil {
		return "", nil, err
	}
	if p.tok.kind == tokIdent && (p.tok.text == "const" || p.tok.text == "let" || p.tok.text == "var") {
		if err := p.advance(); err != nil {
			return "", nil, err
		}
	}
	if p.tok.kind != tokIdent {
		return "", nil, p.unexpected("section name")
	}
	name = p.tok.text
	if err := p.advance(); err != nil {
		return name, nil, err
	}
	if !p.isPunct("=") && !p.isPunct(":") {
		return name, nil, p.unexpected(`"=" after section name`)
	}
	if err := p.advance(); err != nil {
		return name, nil, err
	}
	value, err = p.parseValue()
	if err != nil {
		return name, nil, err
	}
	if p.isPunct(";") || p.isPunct(",") {
		if err := p.advance(); err != nil {
			return name, nil, err
		}
	}
	if p.tok.kind != tokEOF {
		return name, nil, p.unexpected("end of section")
	}
	return name, value, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) unexpected(want string) error {
	got := p.tok.text
	if p.tok.kind == tokEOF {
		got = "end of input"
	}
	return &SyntaxError{Line: p.tok.line, Column: p.tok.col, Msg: fmt.Sprintf("expected %s, found %q", want, got)}
}

func (p *parser) parseValue() (any, error) {
	tok := p.tok
	switch {
	case p.isPunct("{"):
		return p.parseObject()
	case p.isPunct("["):
		return p.parseArray()
	case tok.kind == tokString:
		return tok.text, p.advance()
	case tok.kind == tokNumber:
		return json.Number(tok.text), p.advance()
	case tok.kind == tokIdent:
		switch tok.text {
		case "true":
			return true, p.advance()
		case "false":
			return false, p.advance()
		case "null", "undefined":
			return nil, p.advance()
		}
	}
	return nil, p.unexpected("a value")
}

func (p *parser) parseObject() (any, error) {
	obj := make(map[string]any)
	if err := p.advance(); err != nil {
		return nil, err
	}
	for !p.isPunct("}") {
		if p.tok.kind != tokIdent && p.tok.kind != tokString {
			return nil, p.unexpected("a key")
		}
		key := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.isPunct(":") {
			return nil, p.unexpected(`":"`)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		obj[key] = value
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !p.isPunct("}") {
			return nil, p.unexpected(`"," or "}"`)
		}
	}
	return obj, p.advance()
}

func (p *parser) parseArray() (any, error) {
	list := make([]any, 0)
	if err := p.advance(); err != nil {
		return nil, err
	}
	for !p.isPunct("]") {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		list = append(list, value)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !p.isPunct("]") {
			return nil, p.unexpected(`"," or "]"`)
		}
	}
	return list, p.advance()
}
