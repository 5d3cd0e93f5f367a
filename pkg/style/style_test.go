package style

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/citymapgen/citymap/pkg/core"
)

func TestDefaultStyles(t *testing.T) {
	f, err := NewFactory()
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	names := f.Names()
	if len(names) == 0 {
		t.Fatal("expected embedded styles")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}

	for _, name := range names {
		s, err := f.Style(name)
		if err != nil {
			t.Fatalf("Style(%q): %v", name, err)
		}
		if len(s.BuildingsFill) < 4 {
			t.Errorf("style %q: palette has %d colors, want >= 4", name, len(s.BuildingsFill))
		}
		if len(s.BuildingsOutline) != len(s.BuildingsFill) {
			t.Errorf("style %q: outline palette length %d != fill length %d",
				name, len(s.BuildingsOutline), len(s.BuildingsFill))
		}
		if len(s.BuildingsFill) != f.PaletteLength() {
			t.Errorf("style %q: palette length %d != factory length %d",
				name, len(s.BuildingsFill), f.PaletteLength())
		}
	}
}

func TestUnknownStyle(t *testing.T) {
	f, err := NewFactory()
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	_, err = f.Style("nope")
	if err == nil {
		t.Fatal("expected error for unknown style")
	}
	var ce *core.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *core.Error, got %T", err)
	}
	if ce.Code != core.ErrUnknownStyle {
		t.Errorf("code = %s, want %s", ce.Code, core.ErrUnknownStyle)
	}
	if ce.Kind() != core.KindInput {
		t.Errorf("kind = %v, want input", ce.Kind())
	}
}

func TestOutlineShading(t *testing.T) {
	got, err := shade("#ff8040", 2)
	if err != nil {
		t.Fatalf("shade: %v", err)
	}
	if got != "#7f4020" {
		t.Errorf("shade(#ff8040, 2) = %s, want #7f4020", got)
	}

	if _, err := shade("red", 2); err == nil {
		t.Error("expected error for non-hex color")
	}
}

func TestFactoryFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "styles.yaml")
	doc := `styles:
  - name: custom
    background_color: "#ffffff"
    text_color: "#000000"
    roads_color: "#000000"
    parks_color: "#00ff00"
    water_color: "#0000ff"
    buildings_fill: ["#111111", "#222222", "#333333", "#444444"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := NewFactoryFromFile(path)
	if err != nil {
		t.Fatalf("NewFactoryFromFile: %v", err)
	}
	s, err := f.Style("custom")
	if err != nil {
		t.Fatalf("Style: %v", err)
	}
	if s.BuildingsOutline[0] != "#080808" {
		t.Errorf("outline[0] = %s, want #080808", s.BuildingsOutline[0])
	}
}

func TestFactoryRejectsShortPalette(t *testing.T) {
	doc := []byte(`styles:
  - name: tiny
    buildings_fill: ["#111111", "#222222"]
`)
	if _, err := parse(doc); err == nil {
		t.Error("expected error for palette shorter than 4")
	}
}

func TestFactoryRejectsUnequalPalettes(t *testing.T) {
	doc := []byte(`styles:
  - name: a
    buildings_fill: ["#111111", "#222222", "#333333", "#444444"]
  - name: b
    buildings_fill: ["#111111", "#222222", "#333333", "#444444", "#555555"]
`)
	if _, err := parse(doc); err == nil {
		t.Error("expected error for differing palette lengths")
	}
}
