package finger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMapping_Expected(t *testing.T) {
	m := DefaultMapping()

	tests := []struct {
		name   string
		key    string
		want   ID
		wantOK bool
	}{
		{name: "home row left pinky", key: "A", want: LeftPinky, wantOK: true},
		{name: "lower case key", key: "a", want: LeftPinky, wantOK: true},
		{name: "right index", key: "J", want: RightIndex, wantOK: true},
		{name: "multi word key", key: "LEFT SHIFT", want: LeftPinky, wantOK: true},
		{name: "space expects left thumb", key: "SPACE", want: LeftThumb, wantOK: true},
		{name: "unmapped key", key: "F13", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Expected(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("Expected(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Expected(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestMapping_Accepts(t *testing.T) {
	m := DefaultMapping()

	tests := []struct {
		name     string
		key      string
		detected ID
		want     bool
	}{
		{name: "exact match", key: "A", detected: LeftPinky, want: true},
		{name: "wrong finger", key: "A", detected: RightIndex, want: false},
		{name: "space with left thumb", key: "SPACE", detected: LeftThumb, want: true},
		{name: "space with right thumb", key: "SPACE", detected: RightThumb, want: true},
		{name: "space with index", key: "SPACE", detected: RightIndex, want: false},
		{name: "thumb on non-space key", key: "A", detected: RightThumb, want: false},
		{name: "unmapped key never accepts", key: "F13", detected: LeftPinky, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Accepts(tt.key, tt.detected); got != tt.want {
				t.Errorf("Accepts(%q, %q) = %v, want %v", tt.key, tt.detected, got, tt.want)
			}
		})
	}
}

func TestDefaultMapping_OnlyKnownFingers(t *testing.T) {
	for key, id := range defaultTable {
		if !id.Valid() {
			t.Errorf("key %q maps to unknown finger %q", key, id)
		}
	}
}

func TestParse(t *testing.T) {
	for _, id := range All() {
		got, err := Parse(string(id))
		if err != nil {
			t.Errorf("Parse(%q) error = %v", id, err)
		}
		if got != id {
			t.Errorf("Parse(%q) = %q", id, got)
		}
	}

	if got, err := Parse(" RI "); err != nil || got != RightIndex {
		t.Errorf("Parse(\" RI \") = %q, %v; want ri, nil", got, err)
	}

	if _, err := Parse("xx"); err == nil {
		t.Error("Parse(\"xx\") should fail")
	}
}

func TestID_Name(t *testing.T) {
	if got := LeftPinky.Name(); got != "Left Pinky" {
		t.Errorf("Name() = %q, want Left Pinky", got)
	}
	if got := RightIndex.Name(); got != "Right Index" {
		t.Errorf("Name() = %q, want Right Index", got)
	}
	if got := ID("zz").Name(); got != "zz" {
		t.Errorf("Name() of unknown id = %q, want zz", got)
	}
}

func TestLoadMapping(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		m, err := LoadMapping("")
		if err != nil {
			t.Fatalf("LoadMapping() error = %v", err)
		}
		if m.Len() != len(defaultTable) {
			t.Errorf("Len() = %d, want %d", m.Len(), len(defaultTable))
		}
	})

	t.Run("overrides replace defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mapping.yaml")
		content := "a: lr\nf14: rt\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write mapping: %v", err)
		}

		m, err := LoadMapping(path)
		if err != nil {
			t.Fatalf("LoadMapping() error = %v", err)
		}
		if got, _ := m.Expected("A"); got != LeftRing {
			t.Errorf("Expected(A) = %q, want lr", got)
		}
		if got, ok := m.Expected("F14"); !ok || got != RightThumb {
			t.Errorf("Expected(F14) = %q, %v; want rt, true", got, ok)
		}
		if got, _ := m.Expected("J"); got != RightIndex {
			t.Errorf("Expected(J) = %q, want ri (default kept)", got)
		}
	})

	t.Run("unknown finger is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mapping.yaml")
		if err := os.WriteFile(path, []byte("a: thumb\n"), 0644); err != nil {
			t.Fatalf("failed to write mapping: %v", err)
		}
		if _, err := LoadMapping(path); err == nil {
			t.Error("LoadMapping() should reject unknown finger labels")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := LoadMapping(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("LoadMapping() should fail for a missing file")
		}
	})
}
