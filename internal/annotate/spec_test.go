package annotate

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/soda/internal/browser"
)

func TestNewSpec(t *testing.T) {
	tests := []struct {
		interval, midpoint bool
		want               Mode
		wantErr            bool
	}{
		{false, false, ModeNone, false},
		{true, false, ModeInterval, false},
		{false, true, ModeMidpoint, false},
		{true, true, ModeNone, true},
	}
	for _, tt := range tests {
		s, err := NewSpec(tt.interval, tt.midpoint)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrConflictingModes))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Mode)
		assert.Equal(t, DefaultFontSize, s.FontSize)
		assert.Equal(t, DefaultFontFamily, s.FontFamily)
		assert.Equal(t, color.NRGBA{255, 0, 0, 85}, s.Color)
	}
}

func TestParseRGBA(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "rgba(255,0,0,0.333)", want: color.NRGBA{255, 0, 0, 85}},
		{in: "rgba( 0, 128, 255, 1 )", want: color.NRGBA{0, 128, 255, 255}},
		{in: "RGB(10,20,30)", want: color.NRGBA{10, 20, 30, 255}},
		{in: "#ff8000", want: color.NRGBA{255, 128, 0, 255}},
		{in: "#ff800080", want: color.NRGBA{255, 128, 0, 128}},
		{in: "rgba(256,0,0,0.5)", wantErr: true},
		{in: "rgba(1,2,3)", wantErr: true},
		{in: "rgba(1,2,3,1.5)", wantErr: true},
		{in: "#fff", wantErr: true},
		{in: "red", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRGBA(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeometry_DataLeft(t *testing.T) {
	g := DefaultGeometry()
	// 1 + 11 + 17*6 + 1
	assert.Equal(t, 115, g.DataLeft(browser.DefaultCartSettings()))
	assert.Equal(t, 1+11+20*8+1, g.DataLeft(browser.CartSettings{TextSize: 12, LabelWidth: 20}))
	// Unknown text size falls back to the default glyph width.
	assert.Equal(t, 1+11+10*6+1, g.DataLeft(browser.CartSettings{TextSize: 9, LabelWidth: 10}))

	g.LabelColumn = 42
	assert.Equal(t, 42, g.DataLeft(browser.DefaultCartSettings()))
}

func TestLoadGeometry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
crop_top = 4
label_column = 130
label_band = 24

[char_widths]
8 = 7
`), 0o644))

	g, err := LoadGeometry(path)
	require.NoError(t, err)
	assert.Equal(t, 4, g.CropTop)
	assert.Equal(t, 130, g.LabelColumn)
	assert.Equal(t, 24, g.LabelBand)
	assert.Equal(t, 7, g.CharWidths["8"])
	assert.Equal(t, 11, g.TrackTabWidth, "defaults kept")

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("crop_tpo = 4\n"), 0o644))
	_, err = LoadGeometry(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crop_tpo")

	negative := filepath.Join(dir, "neg.toml")
	require.NoError(t, os.WriteFile(negative, []byte("label_band = -1\n"), 0o644))
	_, err = LoadGeometry(negative)
	assert.Error(t, err)
}

func TestGeometry_CropRect(t *testing.T) {
	g := Geometry{CropTop: 2, CropBottom: 3, CropLeft: 5, CropRight: 7}
	r := g.CropRect(100, 50)
	assert.Equal(t, 5, r.Min.X)
	assert.Equal(t, 2, r.Min.Y)
	assert.Equal(t, 93, r.Max.X)
	assert.Equal(t, 47, r.Max.Y)

	assert.True(t, Geometry{CropLeft: 60, CropRight: 60}.CropRect(100, 50).Empty())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "none", ModeNone.String())
	assert.Equal(t, "interval", ModeInterval.String())
	assert.Equal(t, "midpoint", ModeMidpoint.String())
}
