// Package annotate crops browser renderings and overlays interval or
// midpoint markers onto them.
package annotate

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ErrConflictingModes is returned when both interval and midpoint marking are
// requested.
var ErrConflictingModes = errors.New("interval and midpoint annotation are mutually exclusive")

// Mode selects the overlay drawn on each image.
type Mode int

const (
	ModeNone Mode = iota
	ModeInterval
	ModeMidpoint
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeInterval:
		return "interval"
	case ModeMidpoint:
		return "midpoint"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Defaults applied uniformly to every entry of a run.
const (
	DefaultColor      = "rgba(255,0,0,0.333)"
	DefaultFontSize   = 5.0
	DefaultFontFamily = "Helvetica-Bold"
	DefaultDPI        = 150.0
)

// Spec describes the overlay for a whole run.
type Spec struct {
	Mode       Mode
	Color      color.NRGBA
	FontSize   float64 // points
	FontFamily string  // family name or path to a .ttf file
	DPI        float64
}

// DefaultSpec returns a NONE-mode spec with default styling.
func DefaultSpec() Spec {
	c, _ := ParseRGBA(DefaultColor)
	return Spec{
		Mode:       ModeNone,
		Color:      c,
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
		DPI:        DefaultDPI,
	}
}

// NewSpec builds a default-styled spec from the two mode toggles.
func NewSpec(interval, midpoint bool) (Spec, error) {
	s := DefaultSpec()
	switch {
	case interval && midpoint:
		return Spec{}, ErrConflictingModes
	case interval:
		s.Mode = ModeInterval
	case midpoint:
		s.Mode = ModeMidpoint
	}
	return s, nil
}

// Validate checks that the spec can be drawn.
func (s Spec) Validate() error {
	if s.Mode < ModeNone || s.Mode > ModeMidpoint {
		return fmt.Errorf("unknown annotation mode %d", int(s.Mode))
	}
	if s.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %g", s.FontSize)
	}
	if s.DPI <= 0 {
		return fmt.Errorf("resolution must be positive, got %g", s.DPI)
	}
	if strings.TrimSpace(s.FontFamily) == "" {
		return errors.New("font family is empty")
	}
	return nil
}

// ParseRGBA parses "rgba(r,g,b,a)" with a in [0,1], "rgb(r,g,b)", "#rrggbb"
// or "#rrggbbaa".
func ParseRGBA(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}

	var args string
	var wantAlpha bool
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		args, wantAlpha = s[5:len(s)-1], true
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		args = s[4 : len(s)-1]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want rgba(r,g,b,a)", s)
	}

	parts := strings.Split(args, ",")
	if (wantAlpha && len(parts) != 4) || (!wantAlpha && len(parts) != 3) {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: wrong number of components", s)
	}

	var ch [3]uint8
	for i := range 3 {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: channel %q out of range 0-255", s, parts[i])
		}
		ch[i] = uint8(v)
	}

	alpha := uint8(255)
	if wantAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: alpha %q out of range 0-1", s, parts[3])
		}
		alpha = uint8(math.Round(a * 255))
	}

	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
}

func parseHex(s string) (color.NRGBA, error) {
	hex := s[1:]
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
