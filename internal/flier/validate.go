package flier

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument is wrapped by every validation failure.
var ErrInvalidDocument = errors.New("invalid flier document")

// Validation stages, in the order they are checked.
const (
	StageSections       = "sections"
	StageClubInfo       = "clubInfo"
	StageMeetingInfo    = "meetingInfo"
	StageTheme          = "theme"
	StageTmod           = "tmod"
	StageContactPersons = "contactPersons"
)

// ValidationError names the stage that rejected a document.
type ValidationError struct {
	Stage   string
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing %v", e.Stage, e.Missing)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// Validate checks that a document carries everything a saved flier needs.
// Required string fields must be present but may be empty.
func Validate(doc Document) error {
	var missing []string
	for _, section := range sectionNames {
		if doc.Missing(section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Stage: StageSections, Missing: missing}
	}

	if missing := missingFields(doc, StageClubInfo); len(missing) > 0 {
		return &ValidationError{Stage: StageClubInfo, Missing: missing}
	}
	if missing := missingFields(doc, StageMeetingInfo); len(missing) > 0 {
		return &ValidationError{Stage: StageMeetingInfo, Missing: missing}
	}
	if doc.Missing("theme.lines") || len(doc.Theme.Lines) == 0 {
		return &ValidationError{Stage: StageTheme, Reason: "theme lines must be a non-empty list"}
	}
	if missing := missingFields(doc, StageTmod); len(missing) > 0 {
		return &ValidationError{Stage: StageTmod, Missing: missing}
	}
	if len(doc.ContactPersons) == 0 {
		return &ValidationError{Stage: StageContactPersons, Reason: "contact persons must be a non-empty list"}
	}
	return nil
}

func missingFields(doc Document, section string) []string {
	var missing []string
	for _, key := range requiredKeys[section] {
		if doc.Missing(section + "." + key) {
			missing = append(missing, key)
		}
	}
	return missing
}
