package flier

import (
	"errors"
	"testing"
)

const legacyText = `// data.js as it used to be shipped
clubInfo = {
    name: 'Luminous JLT',
    number: 7591,
    area: 'E1',
    division: "E",
    district: 20,
};

meetingInfo = {
    number: '188',
    date: '2024-05-01',
    timeStart: '7:00 PM',
    timeEnd: '9:00 PM',
    location: 'JLT Cluster X',
}

theme = {
    lines: [
        { text: 'FIND YOUR', size: 44, color: ['WHITE', 'GOLD'], offset: { x: 0, y: 0 }, },
        { text: 'VOICE', size: 52.5, color: '#FFDF6C', hasDecoration: true, decoration: { type: 'rays', position: 'rightBottom' } },
    ],
}

/* moderator */
tmod = { name: 'Jane Doe', photoPath: '' }

contactPersons = [
    { name: 'Sam', phone: '+971 50 000' },
]
`

func TestParseLegacy(t *testing.T) {
	doc, errs := ParseLegacy(legacyText)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if doc.ClubInfo.Name != "Luminous JLT" || doc.ClubInfo.Number != "7591" || doc.ClubInfo.District != "20" {
		t.Fatalf("club info = %+v", doc.ClubInfo)
	}
	if doc.MeetingInfo.Location != "JLT Cluster X" {
		t.Fatalf("meeting info = %+v", doc.MeetingInfo)
	}
	if len(doc.Theme.Lines) != 2 {
		t.Fatalf("expected 2 theme lines, got %d", len(doc.Theme.Lines))
	}
	if got := doc.Theme.Lines[0].Color.Hex(); got != "#FFFFFF" {
		t.Fatalf("legacy color = %q", got)
	}
	if doc.Theme.Lines[1].Size != 52 {
		t.Fatalf("fractional size should truncate, got %d", doc.Theme.Lines[1].Size)
	}
	if !doc.Theme.Lines[1].Decorated() {
		t.Fatalf("second line should be decorated")
	}
	if doc.Tmod.Name != "Jane Doe" || len(doc.ContactPersons) != 1 {
		t.Fatalf("tmod/contacts = %+v / %+v", doc.Tmod, doc.ContactPersons)
	}
	if err := Validate(doc); err != nil {
		t.Fatalf("parsed legacy document should validate: %v", err)
	}
}

func TestParseLegacy_BrokenSectionIsEmptied(t *testing.T) {
	input := `clubInfo = { name: 'Club', number: '1' area: '2' }

tmod = { name: 'Jane Doe' }`

	doc, errs := ParseLegacy(input)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	var syntaxErr *SyntaxError
	if !errors.As(errs[0], &syntaxErr) {
		t.Fatalf("expected SyntaxError, got %T", errs[0])
	}
	if syntaxErr.Section != "clubInfo" || syntaxErr.Line != 1 || syntaxErr.Column != 40 {
		t.Fatalf("unexpected error position: %+v", syntaxErr)
	}
	if doc.Missing("clubInfo") {
		t.Fatalf("broken section should default to an empty object, not be absent")
	}
	if !doc.Missing("clubInfo.name") {
		t.Fatalf("fields of the emptied section should be absent")
	}
	if doc.Tmod.Name != "Jane Doe" {
		t.Fatalf("other sections must survive, got %+v", doc.Tmod)
	}
	if !doc.Missing("meetingInfo") {
		t.Fatalf("sections not in the input are absent")
	}
}

func TestParseLegacy_Errors(t *testing.T) {
	cases := map[string]string{
		"unterminated string": `tmod = { name: 'Jane }`,
		"missing equals":      `tmod { name: 'Jane' }`,
		"unterminated block":  `tmod = { name: 'Jane' } /* trailing`,
		"bad character":       `tmod = { name: @ }`,
		"trailing garbage":    `tmod = { name: 'Jane' } extra`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, errs := ParseLegacy(input)
			if len(errs) == 0 {
				t.Fatalf("expected an error for %q", input)
			}
		})
	}
}

func TestParseLegacy_BadValueEmptiesOnlyItsSection(t *testing.T) {
	input := `clubInfo = { name: 'Downtown', number: 1, area: 2, division: 'A', district: 3 }

theme = { lines: [ { text: 'GROW', size: 'big' } ] }

tmod = { name: 'Jane Doe' }`

	doc, errs := ParseLegacy(input)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	var sectionErr *SectionError
	if !errors.As(errs[0], &sectionErr) || sectionErr.Section != "theme" {
		t.Fatalf("expected a theme SectionError, got %v", errs[0])
	}
	if !errors.Is(errs[0], ErrMalformed) || FailedSection(errs[0]) != "theme" {
		t.Fatalf("error should wrap ErrMalformed and name its section: %v", errs[0])
	}
	if doc.ClubInfo.Name != "Downtown" || doc.Tmod.Name != "Jane Doe" {
		t.Fatalf("valid sections were lost: %+v %+v", doc.ClubInfo, doc.Tmod)
	}
	if len(doc.Theme.Lines) != 0 || doc.Missing("theme") {
		t.Fatalf("theme should be present and empty, got %+v", doc.Theme)
	}
}

func TestParseLegacy_NumericThemeText(t *testing.T) {
	doc, errs := ParseLegacy(`theme = { lines: [ { text: 2024, size: 44 } ] }`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(doc.Theme.Lines) != 1 || doc.Theme.Lines[0].Text != "2024" {
		t.Fatalf("theme lines = %+v", doc.Theme.Lines)
	}
}
