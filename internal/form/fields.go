package form

import "fmt"

// Field names one input of the editor form.
type Field string

const (
	ClubName     Field = "club-name"
	ClubNumber   Field = "club-number"
	ClubArea     Field = "club-area"
	ClubDivision Field = "club-division"
	ClubDistrict Field = "club-district"

	MeetingNumber    Field = "meeting-number"
	MeetingDate      Field = "meeting-date"
	MeetingTimeStart Field = "meeting-time-start"
	MeetingTimeEnd   Field = "meeting-time-end"
	MeetingLocation  Field = "meeting-location"

	TmodName            Field = "tmod-name"
	TmodPhotoPath       Field = "tmod-photo-path"
	TmodPhotoType       Field = "tmod-photo-type"
	TmodPhotoURL        Field = "tmod-photo-url"
	TmodPhotoLocal      Field = "tmod-photo-local"
	TmodPhotoURLGroup   Field = "tmod-photo-url-group"
	TmodPhotoLocalGroup Field = "tmod-photo-local-group"

	// Action is the submit button that posted the form.
	Action Field = "action"
)

// Prefixes of the per-row fields; combine them with Indexed.
const (
	ThemeText               Field = "theme-text"
	ThemeSize               Field = "theme-size"
	ThemeColor              Field = "theme-color"
	ThemeColorText          Field = "theme-color-text"
	ThemeOffsetX            Field = "theme-offset-x"
	ThemeOffsetY            Field = "theme-offset-y"
	ThemeDecorationType     Field = "theme-decoration-type"
	ThemeDecorationPosition Field = "theme-decoration-position"

	ContactName  Field = "contact-name"
	ContactPhone Field = "contact-phone"
)

// Indexed returns the field of row i, e.g. Indexed(ThemeText, 0) is "theme-text-0".
func Indexed(prefix Field, i int) Field {
	return Field(fmt.Sprintf("%s-%d", prefix, i))
}

// Photo types offered by the moderator photo selector.
const (
	PhotoNone  = "none"
	PhotoURL   = "url"
	PhotoLocal = "local"
)

const (
	DecorationNone            = "none"
	DefaultDecorationPosition = "topRight"
)

// DecorationTypes lists the selectable decoration styles.
var DecorationTypes = []string{DecorationNone, "circles", "circle", "rays"}

// DecorationPositions lists the selectable decoration anchors.
var DecorationPositions = []string{"topRight", "right", "rightBottom", "topLeft", "left", "leftBottom"}

// PhotoTypes lists the selectable photo sources.
var PhotoTypes = []string{PhotoNone, PhotoURL, PhotoLocal}
