// Package finger defines the ten finger labels and the reference table that maps
// each keyboard key to the finger that should strike it.
package finger

import (
	"fmt"
	"strings"
)

// ID identifies one finger of one hand, e.g. "lp" for the left pinky.
type ID string

// Finger identifiers as reported by the classification service.
const (
	LeftPinky   ID = "lp"
	LeftRing    ID = "lr"
	LeftMiddle  ID = "lm"
	LeftIndex   ID = "li"
	LeftThumb   ID = "lt"
	RightPinky  ID = "rp"
	RightRing   ID = "rr"
	RightMiddle ID = "rm"
	RightIndex  ID = "ri"
	RightThumb  ID = "rt"
)

// names holds the display name of every finger.
var names = map[ID]string{
	LeftPinky:   "Left Pinky",
	LeftRing:    "Left Ring",
	LeftMiddle:  "Left Middle",
	LeftIndex:   "Left Index",
	LeftThumb:   "Left Thumb",
	RightPinky:  "Right Pinky",
	RightRing:   "Right Ring",
	RightMiddle: "Right Middle",
	RightIndex:  "Right Index",
	RightThumb:  "Right Thumb",
}

// All returns the ten finger identifiers, left hand first.
func All() []ID {
	return []ID{
		LeftPinky, LeftRing, LeftMiddle, LeftIndex, LeftThumb,
		RightPinky, RightRing, RightMiddle, RightIndex, RightThumb,
	}
}

// Valid reports whether id is one of the ten known fingers.
func (id ID) Valid() bool {
	_, ok := names[id]
	return ok
}

// Name returns the human-readable name, or the raw id when unknown.
func (id ID) Name() string {
	if n, ok := names[id]; ok {
		return n
	}
	return string(id)
}

// IsThumb reports whether id is either thumb.
func (id ID) IsThumb() bool {
	return id == LeftThumb || id == RightThumb
}

// Parse converts a label such as "ri" into an ID.
func Parse(label string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(label)))
	if !id.Valid() {
		return "", fmt.Errorf("unknown finger label %q", label)
	}
	return id, nil
}
