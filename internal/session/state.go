// Package session holds the editor state of one browser session.
package session

import (
	"maps"
	"slices"

	"flierbuilder/internal/flier"
)

// State is loaded at the start of a request. Handlers work on their own
// copy and save it back only when they change it; there is no shared current
// document.
type State struct {
	Document *flier.Document  `json:"document,omitempty"`
	Photos   map[string]string `json:"photos,omitempty"`
	ErrorLog []string          `json:"-"` // kept in a separate list, see Store
	Alert    string            `json:"alert,omitempty"`
}

// WithDocument returns a copy of s holding doc.
func (s State) WithDocument(doc flier.Document) State {
	s.Document = &doc
	return s
}

// WithPhoto returns a copy of s that maps filename to an object key.
func (s State) WithPhoto(filename, objectKey string) State {
	photos := maps.Clone(s.Photos)
	if photos == nil {
		photos = make(map[string]string, 1)
	}
	photos[filename] = objectKey
	s.Photos = photos
	return s
}

// WithAlert returns a copy of s carrying a message for the next page view.
func (s State) WithAlert(msg string) State {
	s.Alert = msg
	return s
}

// PhotoKey returns the object key stored for filename.
func (s State) PhotoKey(filename string) (string, bool) {
	key, ok := s.Photos[filename]
	return key, ok
}

// OwnsObject reports whether objectKey belongs to one of the session's photos.
func (s State) OwnsObject(objectKey string) bool {
	for _, key := range s.Photos {
		if key == objectKey {
			return true
		}
	}
	return false
}

// PhotoNames lists the uploaded photo filenames in order.
func (s State) PhotoNames() []string {
	return slices.Sorted(maps.Keys(s.Photos))
}
