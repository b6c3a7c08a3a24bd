package finger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpaceKey is the only key that accepts more than one finger: either thumb.
const SpaceKey = "SPACE"

// defaultTable is the touch-typing assignment used when no override file is given.
var defaultTable = map[string]ID{
	"LEFT CTRL":   LeftPinky,
	"LEFT SHIFT":  LeftPinky,
	"LEFT META":   LeftThumb,
	"BACKTICK":    LeftPinky,
	"1":           LeftRing,
	"Q":           LeftPinky,
	"A":           LeftPinky,
	"Z":           LeftPinky,
	"LEFT ALT":    LeftThumb,
	"FN":          LeftPinky,
	"W":           LeftRing,
	"S":           LeftRing,
	"X":           LeftRing,
	"2":           LeftRing,
	"E":           LeftMiddle,
	"D":           LeftMiddle,
	"C":           LeftIndex,
	"3":           LeftIndex,
	"4":           LeftIndex,
	"R":           LeftIndex,
	"F":           LeftIndex,
	"V":           LeftIndex,
	"5":           LeftIndex,
	"T":           LeftIndex,
	"G":           LeftIndex,
	"B":           LeftIndex,
	SpaceKey:      LeftThumb,
	"6":           RightIndex,
	"7":           RightIndex,
	"Y":           RightIndex,
	"H":           RightIndex,
	"N":           RightIndex,
	"U":           RightMiddle,
	"J":           RightIndex,
	"M":           RightIndex,
	"8":           RightMiddle,
	"I":           RightMiddle,
	"K":           RightMiddle,
	"COMMA":       RightMiddle,
	"9":           RightRing,
	"O":           RightRing,
	"L":           RightRing,
	"DOT":         RightRing,
	"0":           RightPinky,
	"MINUS":       RightPinky,
	"EQUALS":      RightPinky,
	"BACKSPACE":   RightPinky,
	"BACKSLASH":   RightPinky,
	"P":           RightRing,
	"SEMICOLON":   RightPinky,
	"QUOTE":       RightPinky,
	"RETURN":      RightPinky,
	"RIGHT SHIFT": RightPinky,
	"RIGHT ALT":   RightPinky,
	"RIGHT META":  RightPinky,
	"DOWN ARROW":  RightPinky,
	"LEFT ARROW":  RightPinky,
	"UP ARROW":    RightPinky,

	"SQUARE BRACKET OPEN":  RightPinky,
	"SQUARE BRACKET CLOSE": RightPinky,
	"FORWARD SLASH":        RightPinky,
}

// Mapping is the immutable key → expected finger table. It is safe for
// concurrent use because it is never written after construction.
type Mapping struct {
	table map[string]ID
}

// DefaultMapping returns the built-in reference table.
func DefaultMapping() *Mapping {
	return NewMapping(defaultTable)
}

// NewMapping copies table into a new Mapping. Keys are normalised to upper case.
func NewMapping(table map[string]ID) *Mapping {
	m := &Mapping{table: make(map[string]ID, len(table))}
	for k, id := range table {
		m.table[NormalizeKey(k)] = id
	}
	return m
}

// NormalizeKey upper-cases and trims a key identifier.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Expected returns the finger that should strike key. The second result is
// false when the table has no opinion about key.
func (m *Mapping) Expected(key string) (ID, bool) {
	id, ok := m.table[NormalizeKey(key)]
	return id, ok
}

// Accepts reports whether detected is a correct finger for key.
// The space bar accepts either thumb.
func (m *Mapping) Accepts(key string, detected ID) bool {
	if NormalizeKey(key) == SpaceKey && detected.IsThumb() {
		return true
	}
	expected, ok := m.Expected(key)
	return ok && expected == detected
}

// Len returns the number of mapped keys.
func (m *Mapping) Len() int {
	return len(m.table)
}

// LoadMapping builds a Mapping from the default table overlaid with the
// entries of a YAML file of the form `KEY: finger_id`. An empty path returns
// the default table.
func LoadMapping(path string) (*Mapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse mapping yaml: %w", err)
	}

	table := make(map[string]ID, len(defaultTable)+len(overrides))
	for k, id := range defaultTable {
		table[k] = id
	}

	var errs []error
	for k, label := range overrides {
		id, err := Parse(label)
		if err != nil {
			errs = append(errs, fmt.Errorf("key %q: %w", k, err))
			continue
		}
		table[NormalizeKey(k)] = id
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return NewMapping(table), nil
}
