package annotate

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// loadFont resolves a family name onto an embedded Go font, or reads a
// TrueType file when family is a path.
//
// PostScript-style names such as "Helvetica-Bold" or "Courier-Oblique" map
// by weight and slant; the typeface itself is not matched.
func loadFont(family string) (*truetype.Font, error) {
	if strings.HasSuffix(strings.ToLower(family), ".ttf") {
		data, err := os.ReadFile(family)
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", family, err)
		}
		f, err := truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", family, err)
		}
		return f, nil
	}

	f, err := truetype.Parse(embeddedFont(family))
	if err != nil {
		return nil, fmt.Errorf("parse embedded font for %q: %w", family, err)
	}
	return f, nil
}

func embeddedFont(family string) []byte {
	name := strings.ToLower(family)
	bold := strings.Contains(name, "bold") || strings.Contains(name, "black") || strings.Contains(name, "heavy")
	italic := strings.Contains(name, "italic") || strings.Contains(name, "oblique")
	mono := strings.Contains(name, "mono") || strings.Contains(name, "courier")

	switch {
	case mono && bold:
		return gomonobold.TTF
	case mono:
		return gomono.TTF
	case bold && italic:
		return gobolditalic.TTF
	case bold:
		return gobold.TTF
	case italic:
		return goitalic.TTF
	default:
		return goregular.TTF
	}
}

// newFace returns a face for one drawing pass. Faces cache glyphs and are
// not safe for concurrent use; the parsed font is.
func newFace(f *truetype.Font, points, dpi float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    points,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}
