package form

import (
	"strconv"
	"strings"

	"flierbuilder/internal/flier"
)

// Populate writes doc into the form. Theme lines beyond MaxThemeLines and
// contacts beyond MaxContacts are ignored; unused rows are reset to their
// defaults.
func Populate(doc flier.Document, b Binding) {
	b.SetValue(ClubName, doc.ClubInfo.Name)
	b.SetValue(ClubNumber, doc.ClubInfo.Number)
	b.SetValue(ClubArea, doc.ClubInfo.Area)
	b.SetValue(ClubDivision, doc.ClubInfo.Division)
	b.SetValue(ClubDistrict, doc.ClubInfo.District)

	b.SetValue(MeetingNumber, doc.MeetingInfo.Number)
	b.SetValue(MeetingDate, doc.MeetingInfo.Date)
	b.SetValue(MeetingTimeStart, doc.MeetingInfo.TimeStart)
	b.SetValue(MeetingTimeEnd, doc.MeetingInfo.TimeEnd)
	b.SetValue(MeetingLocation, doc.MeetingInfo.Location)

	for i := 0; i < flier.MaxThemeLines; i++ {
		var line flier.ThemeLine
		if i < len(doc.Theme.Lines) {
			line = doc.Theme.Lines[i]
		}
		populateLine(b, i, line)
	}

	b.SetValue(TmodName, doc.Tmod.Name)
	populatePhoto(b, doc.Tmod.PhotoPath)

	for i := 0; i < flier.MaxContacts; i++ {
		var person flier.ContactPerson
		if i < len(doc.ContactPersons) {
			person = doc.ContactPersons[i]
		}
		b.SetValue(Indexed(ContactName, i), person.Name)
		b.SetValue(Indexed(ContactPhone, i), person.Phone)
	}
}

func populateLine(b Binding, i int, line flier.ThemeLine) {
	b.SetValue(Indexed(ThemeText, i), line.Text)
	b.SetValue(Indexed(ThemeSize, i), strconv.Itoa(line.FontSize()))

	color := line.Color.Hex()
	if color == "" {
		color = flier.DefaultColor
	}
	b.SetValue(Indexed(ThemeColor, i), color)
	b.SetValue(Indexed(ThemeColorText, i), color)

	pos := line.Position(i)
	b.SetValue(Indexed(ThemeOffsetX, i), strconv.Itoa(pos.X))
	b.SetValue(Indexed(ThemeOffsetY, i), strconv.Itoa(pos.Y))

	kind, position := DecorationNone, DefaultDecorationPosition
	if line.Decoration != nil {
		if line.HasDecoration && line.Decoration.Type != "" {
			kind = line.Decoration.Type
		}
		if line.Decoration.Position != "" {
			position = line.Decoration.Position
		}
	}
	b.SetValue(Indexed(ThemeDecorationType, i), kind)
	b.SetValue(Indexed(ThemeDecorationPosition, i), position)
}

func populatePhoto(b Binding, path string) {
	b.SetValue(TmodPhotoPath, path)
	kind := PhotoKind(path)
	b.SetValue(TmodPhotoType, kind)
	if kind == PhotoURL {
		b.SetValue(TmodPhotoURL, path)
	} else {
		b.SetValue(TmodPhotoURL, "")
	}
	SyncPhotoGroups(b)
}

// SyncPhotoGroups shows the input group of the selected photo type and hides
// the other one.
func SyncPhotoGroups(b Binding) {
	switch b.Value(TmodPhotoType) {
	case PhotoURL:
		b.Hide(TmodPhotoLocalGroup)
		b.Show(TmodPhotoURLGroup)
	case PhotoLocal:
		b.Show(TmodPhotoLocalGroup)
		b.Hide(TmodPhotoURLGroup)
	default:
		b.Hide(TmodPhotoLocalGroup)
		b.Hide(TmodPhotoURLGroup)
	}
}

// PhotoKind classifies a photo path as none, url or local.
func PhotoKind(path string) string {
	switch {
	case strings.TrimSpace(path) == "":
		return PhotoNone
	case strings.HasPrefix(path, "http"):
		return PhotoURL
	default:
		return PhotoLocal
	}
}

// Collect reads the form back into a document. Lines without text and
// contacts missing a name or phone are skipped.
func Collect(b Binding) flier.Document {
	doc := flier.Document{
		ClubInfo: flier.ClubInfo{
			Name:     b.Value(ClubName),
			Number:   b.Value(ClubNumber),
			Area:     b.Value(ClubArea),
			Division: b.Value(ClubDivision),
			District: b.Value(ClubDistrict),
		},
		MeetingInfo: flier.MeetingInfo{
			Number:    b.Value(MeetingNumber),
			Date:      b.Value(MeetingDate),
			TimeStart: b.Value(MeetingTimeStart),
			TimeEnd:   b.Value(MeetingTimeEnd),
			Location:  b.Value(MeetingLocation),
		},
		Theme: flier.Theme{Lines: []flier.ThemeLine{}},
		Tmod: flier.Tmod{
			Name:      b.Value(TmodName),
			PhotoPath: b.Value(TmodPhotoPath),
		},
		ContactPersons: []flier.ContactPerson{},
	}

	if b.Value(TmodPhotoType) == PhotoNone {
		doc.Tmod.PhotoPath = ""
	}

	for i := 0; i < flier.MaxThemeLines; i++ {
		text := b.Value(Indexed(ThemeText, i))
		if text == "" {
			continue
		}
		doc.Theme.Lines = append(doc.Theme.Lines, collectLine(b, i, text))
	}

	for i := 0; i < flier.MaxContacts; i++ {
		name := b.Value(Indexed(ContactName, i))
		phone := b.Value(Indexed(ContactPhone, i))
		if name == "" || phone == "" {
			continue
		}
		doc.ContactPersons = append(doc.ContactPersons, flier.ContactPerson{Name: name, Phone: phone})
	}
	return doc
}

func collectLine(b Binding, i int, text string) flier.ThemeLine {
	size, ok := parseInt(b.Value(Indexed(ThemeSize, i)))
	if !ok || size <= 0 {
		size = flier.DefaultSize
	}
	x, ok := parseInt(b.Value(Indexed(ThemeOffsetX, i)))
	if !ok {
		x = 0
	}
	y, ok := parseInt(b.Value(Indexed(ThemeOffsetY, i)))
	if !ok {
		y = i * flier.LineStride
	}

	color := strings.TrimSpace(b.Value(Indexed(ThemeColorText, i)))
	if color == "" {
		color = strings.TrimSpace(b.Value(Indexed(ThemeColor, i)))
	}

	kind := b.Value(Indexed(ThemeDecorationType, i))
	if kind == "" {
		kind = DecorationNone
	}
	position := b.Value(Indexed(ThemeDecorationPosition, i))
	if position == "" {
		position = DefaultDecorationPosition
	}

	line := flier.ThemeLine{
		Text:          text,
		Size:          size,
		Offset:        &flier.Offset{X: x, Y: y},
		HasDecoration: kind != DecorationNone,
		Decoration:    &flier.Decoration{Type: kind, Position: position},
	}
	if color != "" {
		line.Color = flier.Solid(color)
	}
	return line
}

// parseInt reads an optional sign and the leading run of digits, ignoring
// whatever follows, so "44px" is 44 and "px" fails.
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
