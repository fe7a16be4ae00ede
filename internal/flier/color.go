package flier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Color is either a solid color or a legacy list of colors. Files written by
// older versions of the tool store a list; only its first entry is used.
type Color struct {
	solid  string
	legacy []string
}

// Solid returns a single-valued color.
func Solid(value string) Color {
	return Color{solid: value}
}

// Legacy returns a list-valued color as stored by older files.
func Legacy(values ...string) Color {
	return Color{legacy: append([]string(nil), values...)}
}

// IsZero reports whether no color was set.
func (c Color) IsZero() bool {
	return c.solid == "" && len(c.legacy) == 0
}

// IsLegacy reports whether the color was stored as a list.
func (c Color) IsLegacy() bool {
	return len(c.legacy) > 0
}

// Hex returns the normalized color used for editing and rendering.
func (c Color) Hex() string {
	if len(c.legacy) > 0 {
		return normalizeColor(c.legacy[0])
	}
	return normalizeColor(c.solid)
}

func normalizeColor(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "WHITE") {
		return "#FFFFFF"
	}
	return value
}

// MarshalJSON keeps the shape the color was decoded from.
func (c Color) MarshalJSON() ([]byte, error) {
	if len(c.legacy) > 0 {
		return json.Marshal(c.legacy)
	}
	return json.Marshal(c.solid)
}

// UnmarshalJSON accepts a string or an array of strings.
func (c *Color) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*c = Color{}
		return nil
	case strings.HasPrefix(trimmed, "["):
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode color list: %w", err)
		}
		*c = Color{legacy: list}
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode color: %w", err)
		}
		*c = Color{solid: s}
		return nil
	}
}
