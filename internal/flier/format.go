package flier

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	isoDate  = "2006-01-02"
	longDate = "Monday, January 2, 2006"
)

// FormatClubDetails renders the club identification line of the header.
func FormatClubDetails(info ClubInfo) string {
	return fmt.Sprintf("Club No %s Area %s Division %s District %s",
		info.Number, info.Area, info.Division, info.District)
}

// FormatDate turns an ISO date into its long form, e.g. "Monday, January 1, 2024".
// Input that is not an ISO date is returned unchanged.
func FormatDate(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > len(isoDate) {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.Format(longDate)
		}
	}
	t, err := time.Parse(isoDate, value)
	if err != nil {
		return value
	}
	return t.Format(longDate)
}

// FormatDateTime renders "{date}, {start} - {end}" for the footer.
func FormatDateTime(info MeetingInfo) string {
	return fmt.Sprintf("%s, %s - %s", FormatDate(info.Date), info.TimeStart, info.TimeEnd)
}

// Initials takes the first letter of each whitespace-separated token.
func Initials(name string) string {
	var b strings.Builder
	for _, token := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(token)
		b.WriteRune(r)
	}
	return b.String()
}

// FormatContacts renders "TM {name} {phone}" for every contact.
func FormatContacts(people []ContactPerson) string {
	parts := make([]string, 0, len(people))
	for _, p := range people {
		parts = append(parts, fmt.Sprintf("TM %s %s", p.Name, p.Phone))
	}
	return strings.Join(parts, "  ")
}
