// Package style loads named render styles: colors for each feature
// layer, a building fill palette and the matching outline palette.
package style

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/citymapgen/citymap/pkg/core"
)

//go:embed styles.yaml
var defaultStyles []byte

// Style is one named render style
type Style struct {
	Name            string   `yaml:"name"`
	BackgroundColor string   `yaml:"background_color"`
	TextColor       string   `yaml:"text_color"`
	RoadsColor      string   `yaml:"roads_color"`
	ParksColor      string   `yaml:"parks_color"`
	WaterColor      string   `yaml:"water_color"`
	BuildingsFill   []string `yaml:"buildings_fill"`
	FontFamily      string   `yaml:"font_family"`

	// BuildingsOutline is derived from BuildingsFill at load time:
	// each fill color shaded by 2
	BuildingsOutline []string `yaml:"-"`
}

// document is the top-level YAML structure
type document struct {
	Styles []Style `yaml:"styles"`
}

// Factory loads and serves styles
type Factory struct {
	styles        map[string]Style
	paletteLength int
}

// NewFactory loads the embedded default styles
func NewFactory() (*Factory, error) {
	return parse(defaultStyles)
}

// NewFactoryFromFile loads styles from an external YAML file
func NewFactoryFromFile(path string) (*Factory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading styles file %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Factory, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing styles: %w", err)
	}
	if len(doc.Styles) == 0 {
		return nil, fmt.Errorf("no styles defined")
	}

	f := &Factory{styles: make(map[string]Style, len(doc.Styles))}
	for _, s := range doc.Styles {
		// Four colors is the floor for conflict-free planar coloring
		if len(s.BuildingsFill) < 4 {
			return nil, fmt.Errorf("style %s: buildings_fill must have at least 4 colors, has %d",
				s.Name, len(s.BuildingsFill))
		}
		// Palettes must share one length so color indices are
		// interchangeable across styles
		if f.paletteLength == 0 {
			f.paletteLength = len(s.BuildingsFill)
		} else if len(s.BuildingsFill) != f.paletteLength {
			return nil, fmt.Errorf("style %s: palette length %d differs from %d",
				s.Name, len(s.BuildingsFill), f.paletteLength)
		}

		outline, err := outlinePalette(s.BuildingsFill)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", s.Name, err)
		}
		s.BuildingsOutline = outline
		f.styles[s.Name] = s
	}

	return f, nil
}

// PaletteLength returns the shared building palette length
func (f *Factory) PaletteLength() int {
	return f.paletteLength
}

// Names returns the available style names, sorted
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.styles))
	for name := range f.styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Style returns a style by name
func (f *Factory) Style(name string) (Style, error) {
	s, ok := f.styles[name]
	if !ok {
		return Style{}, core.NewError(core.ErrUnknownStyle, fmt.Sprintf("style %q not available", name)).
			WithGuidance("Available styles: " + strings.Join(f.Names(), ", "))
	}
	return s, nil
}

// outlinePalette derives outline colors by shading each fill by 2
func outlinePalette(fills []string) ([]string, error) {
	outlines := make([]string, len(fills))
	for i, fill := range fills {
		shaded, err := shade(fill, 2)
		if err != nil {
			return nil, err
		}
		outlines[i] = shaded
	}
	return outlines, nil
}

// shade darkens a hex color by dividing each channel
func shade(hexColor string, amount int) (string, error) {
	r, g, b, err := hexToRGB(hexColor)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#%02x%02x%02x", r/amount, g/amount, b/amount), nil
}

// hexToRGB parses a #rrggbb color
func hexToRGB(hexColor string) (int, int, int, error) {
	s := strings.TrimPrefix(hexColor, "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", hexColor)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q: %w", hexColor, err)
	}
	return int(v >> 16), int(v >> 8 & 0xff), int(v & 0xff), nil
}
