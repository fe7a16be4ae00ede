package render

import "html/template"

// Layout is the view model of one flier: header, body and footer regions.
type Layout struct {
	Title  string
	Header Header
	Body   Body
	Footer Footer
}

type Header struct {
	ClubName      string
	ClubDetails   string
	MeetingNumber string
	Logo          string
}

type Body struct {
	Moderator Moderator
	Lines     []Line
}

// Moderator shows either PhotoSrc or, when it is empty, the Placeholder initials.
type Moderator struct {
	PhotoSrc    template.URL
	Placeholder string
	Alt         string
	Label       string
	Name        string
}

// HasPhoto reports whether a photo source was resolved.
func (m Moderator) HasPhoto() bool {
	return m.PhotoSrc != ""
}

type Line struct {
	Text       string
	Class      string
	Style      template.CSS
	Decoration string
}

type Footer struct {
	DateTime string
	Location string
	Contacts string
}
