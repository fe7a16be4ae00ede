package flier

import "time"

// BlankTemplate is the document a reset editor starts from.
func BlankTemplate() Document {
	return Document{
		Theme: Theme{Lines: []ThemeLine{
			blankLine(44, 0, "circles", "topRight"),
			blankLine(44, 30, "circle", "right"),
			blankLine(52, 60, "rays", "rightBottom"),
		}},
		ContactPersons: []ContactPerson{{}, {}},
	}
}

func blankLine(size, y int, decoration, position string) ThemeLine {
	return ThemeLine{
		Size:          size,
		Color:         Solid(DefaultColor),
		Offset:        &Offset{X: 0, Y: y},
		HasDecoration: true,
		Decoration:    &Decoration{Type: decoration, Position: position},
	}
}

// Fallback is the literal document rendered when no other source works.
func Fallback(now time.Time) Document {
	lines := BlankTemplate().Theme.Lines
	for i := range lines {
		lines[i].Text = []string{"THEME LINE 1", "THEME LINE 2", "THEME LINE 3"}[i]
	}
	return Document{
		ClubInfo: ClubInfo{
			Name:     "TOASTMASTERS CLUB",
			Number:   "12345",
			Area:     "1",
			Division: "A",
			District: "100",
		},
		MeetingInfo: MeetingInfo{
			Number:    "1",
			Date:      now.UTC().Format(isoDate),
			TimeStart: "7:00 PM",
			TimeEnd:   "9:00 PM",
			Location:  "Meeting Room",
		},
		Theme: Theme{Lines: lines},
		Tmod:  Tmod{Name: "TOASTMASTER"},
		ContactPersons: []ContactPerson{
			{Name: "Contact 1", Phone: "+1234567890"},
			{Name: "Contact 2", Phone: "+0987654321"},
		},
	}
}
