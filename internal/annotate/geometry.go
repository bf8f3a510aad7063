package annotate

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/inodb/soda/internal/browser"
)

// Geometry calibrates the crop window and the genomic-to-pixel mapping
// against a particular browser installation. All values are pixels.
//
// A rendering is laid out as
//
//	| border | track tab | label column | border | data area ... | border |
//
// The label column is labelWidth characters of the cart's text size.
type Geometry struct {
	CropTop    int `toml:"crop_top"`
	CropBottom int `toml:"crop_bottom"`
	CropLeft   int `toml:"crop_left"`
	CropRight  int `toml:"crop_right"`

	// LabelColumn is the x offset of the data area in the uncropped image.
	// Zero means derive it from the cart settings.
	LabelColumn      int            `toml:"label_column"`
	TrackTabWidth    int            `toml:"track_tab_width"`
	Border           int            `toml:"border"`
	CharWidths       map[string]int `toml:"char_widths"` // text size -> glyph width
	DefaultCharWidth int            `toml:"default_char_width"`

	// LabelBand is the height of the strip added above the image for
	// overlay labels.
	LabelBand int `toml:"label_band"`
}

// DefaultGeometry matches the stock UCSC browser.
func DefaultGeometry() Geometry {
	return Geometry{
		TrackTabWidth: 11,
		Border:        1,
		CharWidths: map[string]int{
			"6": 5, "8": 6, "10": 7, "12": 8, "14": 9, "18": 11, "24": 14, "34": 20,
		},
		DefaultCharWidth: 6,
		LabelBand:        20,
	}
}

// LoadGeometry reads a TOML calibration profile. Keys absent from the file
// keep their defaults; unknown keys are an error.
func LoadGeometry(path string) (Geometry, error) {
	g := DefaultGeometry()
	md, err := toml.DecodeFile(path, &g)
	if err != nil {
		return Geometry{}, fmt.Errorf("load geometry %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Geometry{}, fmt.Errorf("load geometry %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, fmt.Errorf("load geometry %s: %w", path, err)
	}
	return g, nil
}

// Validate rejects negative sizes.
func (g Geometry) Validate() error {
	for name, v := range map[string]int{
		"crop_top":           g.CropTop,
		"crop_bottom":        g.CropBottom,
		"crop_left":          g.CropLeft,
		"crop_right":         g.CropRight,
		"label_column":       g.LabelColumn,
		"track_tab_width":    g.TrackTabWidth,
		"border":             g.Border,
		"default_char_width": g.DefaultCharWidth,
		"label_band":         g.LabelBand,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	for size, w := range g.CharWidths {
		if _, err := strconv.Atoi(size); err != nil {
			return fmt.Errorf("char_widths key %q is not a text size", size)
		}
		if w <= 0 {
			return fmt.Errorf("char_widths[%s] must be positive, got %d", size, w)
		}
	}
	return nil
}

func (g Geometry) charWidth(textSize int) int {
	if w, ok := g.CharWidths[strconv.Itoa(textSize)]; ok {
		return w
	}
	return g.DefaultCharWidth
}

// DataLeft returns the x offset of the data area in the uncropped image.
func (g Geometry) DataLeft(cart browser.CartSettings) int {
	if g.LabelColumn > 0 {
		return g.LabelColumn
	}
	return g.Border + g.TrackTabWidth + cart.LabelWidth*g.charWidth(cart.TextSize) + g.Border
}

// CropRect returns the crop window for an image of the given size. The
// rectangle is empty when the insets consume the whole image.
func (g Geometry) CropRect(width, height int) image.Rectangle {
	r := image.Rectangle{
		Min: image.Pt(g.CropLeft, g.CropTop),
		Max: image.Pt(width-g.CropRight, height-g.CropBottom),
	}
	if r.Empty() {
		return image.Rectangle{}
	}
	return r
}

// dataSpan returns the [left, right) pixel columns of the data area inside
// the cropped image. left is negative when the crop window starts inside
// the data area; the mapping keeps its true offset so columns stay aligned
// with the rendering.
func (g Geometry) dataSpan(cart browser.CartSettings, crop image.Rectangle, width int) (int, int) {
	left := g.DataLeft(cart) - crop.Min.X
	right := crop.Dx()
	if trailing := crop.Max.X - (width - g.Border); trailing > 0 {
		right -= trailing
	}
	return left, right
}
