package flier

import (
	"encoding/json"
	"slices"
)

// Document is the flier data shared by the editor and the renderer.
type Document struct {
	ClubInfo       ClubInfo        `json:"clubInfo"`
	MeetingInfo    MeetingInfo     `json:"meetingInfo"`
	Theme          Theme           `json:"theme"`
	Tmod           Tmod            `json:"tmod"`
	ContactPersons []ContactPerson `json:"contactPersons"`

	// absent holds the keys that were missing when the document was decoded.
	absent map[string]bool
}

// ClubInfo identifies the club in the flier header.
type ClubInfo struct {
	Name     string `json:"name"`
	Number   string `json:"number"`
	Area     string `json:"area"`
	Division string `json:"division"`
	District string `json:"district"`
}

// MeetingInfo describes when and where the meeting takes place.
type MeetingInfo struct {
	Number    string `json:"number"`
	Date      string `json:"date"`
	TimeStart string `json:"timeStart"`
	TimeEnd   string `json:"timeEnd"`
	Location  string `json:"location"`
}

// Theme holds the headline lines of the flier.
type Theme struct {
	Lines []ThemeLine `json:"lines"`
}

// ThemeLine is one styled headline string.
type ThemeLine struct {
	Text          string      `json:"text"`
	Size          int         `json:"size,omitempty"`
	Color         Color       `json:"color,omitzero"`
	Offset        *Offset     `json:"offset,omitempty"`
	HasDecoration bool        `json:"hasDecoration"`
	Decoration    *Decoration `json:"decoration,omitempty"`
}

// Offset is a pixel translation of a theme line.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Decoration is a graphical accent attached to a theme line.
type Decoration struct {
	Type     string `json:"type"`
	Position string `json:"position"`
}

// Tmod is the Toastmaster of the Day.
type Tmod struct {
	Name      string `json:"name"`
	PhotoPath string `json:"photoPath"`
}

// ContactPerson is printed in the footer.
type ContactPerson struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

const (
	DefaultSize   = 44
	LineStride    = 30
	DefaultColor  = "#FFDF6C"
	MaxThemeLines = 3
	MaxContacts   = 2
)

// FontSize returns the pixel font size, defaulting to DefaultSize.
func (l ThemeLine) FontSize() int {
	if l.Size <= 0 {
		return DefaultSize
	}
	return l.Size
}

// Position returns the line offset; lines without one sit on a LineStride grid.
func (l ThemeLine) Position(index int) Offset {
	if l.Offset == nil {
		return Offset{X: 0, Y: index * LineStride}
	}
	return *l.Offset
}

// Decorated reports whether the line carries a decoration marker.
func (l ThemeLine) Decorated() bool {
	return l.HasDecoration && l.Decoration != nil
}

// Missing reports whether key (e.g. "clubInfo" or "clubInfo.name") was absent
// when the document was decoded. Documents built in code have no missing keys.
func (d Document) Missing(key string) bool {
	return d.absent[key]
}

var requiredKeys = map[string][]string{
	"clubInfo":    {"name", "number", "area", "division", "district"},
	"meetingInfo": {"number", "date", "timeStart", "timeEnd", "location"},
	"theme":       {"lines"},
	"tmod":        {"name"},
}

var sectionNames = []string{"clubInfo", "meetingInfo", "theme", "tmod", "contactPersons"}

// Sections lists the top-level keys of a document.
func Sections() []string {
	return slices.Clone(sectionNames)
}

// UnmarshalJSON decodes the document and records which sections and required
// keys were absent, so validation can tell a missing key from an empty one.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	absent := make(map[string]bool)
	for _, section := range sectionNames {
		value, ok := raw[section]
		if !ok || isNull(value) {
			absent[section] = true
			continue
		}
		keys, ok := requiredKeys[section]
		if !ok {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(value, &fields); err != nil {
			return err
		}
		for _, key := range keys {
			if v, ok := fields[key]; !ok || isNull(v) {
				absent[section+"."+key] = true
			}
		}
	}

	*d = Document(p)
	if len(absent) > 0 {
		d.absent = absent
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
