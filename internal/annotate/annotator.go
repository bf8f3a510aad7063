package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/inodb/soda/internal/bed"
	"github.com/inodb/soda/internal/browser"
)

// AnnotationError reports an overlay that could not be placed. The image
// returned alongside it is cropped but unannotated.
type AnnotationError struct {
	Region string
	Reason string
}

func (e *AnnotationError) Error() string {
	return fmt.Sprintf("annotation skipped for %s: %s", e.Region, e.Reason)
}

// Annotator crops renderings and draws the run's overlay on them. It is
// safe for concurrent use.
type Annotator struct {
	spec   Spec
	geom   Geometry
	cart   browser.CartSettings
	font   *truetype.Font
	logger *zap.Logger
}

// NewAnnotator creates an annotator for one run.
func NewAnnotator(spec Spec, geom Geometry, cart browser.CartSettings) (*Annotator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	a := &Annotator{spec: spec, geom: geom, cart: cart, logger: zap.NewNop()}
	if spec.Mode != ModeNone {
		f, err := loadFont(spec.FontFamily)
		if err != nil {
			return nil, err
		}
		a.font = f
	}
	return a, nil
}

// SetLogger sets the logger for debug messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Spec returns the run's annotation spec.
func (a *Annotator) Spec() Spec {
	return a.spec
}

// Annotate crops img and overlays the marker for original, the interval as
// given in the input before padding. view is the interval the browser
// rendered, spanning the full data width.
//
// A returned *AnnotationError is a warning: the image is still valid. When
// the crop window consumes the rendering, the fetched image is returned
// as is.
func (a *Annotator) Annotate(img *browser.FetchedImage, view, original bed.Interval) (*browser.FetchedImage, error) {
	src := img.Image
	bounds := src.Bounds()
	crop := a.geom.CropRect(bounds.Dx(), bounds.Dy())
	if crop.Empty() {
		return img, &AnnotationError{
			Region: original.Position(),
			Reason: fmt.Sprintf("crop window leaves nothing of a %dx%d image", bounds.Dx(), bounds.Dy()),
		}
	}

	if a.spec.Mode == ModeNone {
		if crop == image.Rect(0, 0, bounds.Dx(), bounds.Dy()) {
			return img, nil
		}
		return encode(img.Request, imaging.Crop(src, crop.Add(bounds.Min)))
	}

	cropped := imaging.Crop(src, crop.Add(bounds.Min))
	left, right := a.geom.dataSpan(a.cart, crop, bounds.Dx())

	band := a.geom.LabelBand
	canvas := image.NewNRGBA(image.Rect(0, 0, cropped.Bounds().Dx(), cropped.Bounds().Dy()+band))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, cropped.Bounds().Add(image.Pt(0, band)), cropped, cropped.Bounds().Min, draw.Src)

	var err error
	switch a.spec.Mode {
	case ModeInterval:
		err = a.drawInterval(canvas, band, left, right, view, original)
	case ModeMidpoint:
		err = a.drawMidpoint(canvas, band, left, right, view, original)
	}
	if err != nil {
		plain, encErr := encode(img.Request, cropped)
		if encErr != nil {
			return nil, encErr
		}
		return plain, err
	}

	a.logger.Debug("annotated",
		zap.String("region", original.Position()),
		zap.Stringer("mode", a.spec.Mode),
		zap.Int("dataLeft", left),
		zap.Int("dataRight", right))
	return encode(img.Request, canvas)
}

// column maps a genomic position onto a pixel column of the data area.
func column(pos int64, view bed.Interval, left, right int) float64 {
	return float64(left) + float64(pos-view.Start)*float64(right-left)/float64(view.Width())
}

func (a *Annotator) checkSpan(view, original bed.Interval, left, right int) error {
	if right <= left {
		return &AnnotationError{Region: original.Position(), Reason: "no data area left after cropping"}
	}
	if original.Start < view.Start || original.End > view.End {
		return &AnnotationError{
			Region: original.Position(),
			Reason: fmt.Sprintf("outside rendered view %s", view.Position()),
		}
	}
	return nil
}

// checkColumns rejects overlays whose pixel columns [x0, x1) fall outside
// the cropped image, e.g. when the crop window cuts into the data area.
func (a *Annotator) checkColumns(original bed.Interval, x0, x1, right int) error {
	if x0 < 0 || x1 > right {
		return &AnnotationError{
			Region: original.Position(),
			Reason: fmt.Sprintf("columns %d-%d fall outside the cropped data area [0, %d)", x0, x1, right),
		}
	}
	return nil
}

func (a *Annotator) drawInterval(dst draw.Image, band, left, right int, view, original bed.Interval) error {
	if err := a.checkSpan(view, original, left, right); err != nil {
		return err
	}
	x0 := int(math.Floor(column(original.Start, view, left, right)))
	x1 := int(math.Floor(column(original.End, view, left, right) + 0.5))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if err := a.checkColumns(original, x0, x1, right); err != nil {
		return err
	}

	rect := image.Rect(x0, 0, x1, dst.Bounds().Dy())
	draw.Draw(dst, rect, image.NewUniform(a.spec.Color), image.Point{}, draw.Over)

	label := fmt.Sprintf("%s:%d-%d", original.Chrom, original.Start, original.End)
	a.drawLabel(dst, band, label, (x0+x1)/2, alignCenter)
	return nil
}

func (a *Annotator) drawMidpoint(dst draw.Image, band, left, right int, view, original bed.Interval) error {
	if err := a.checkSpan(view, original, left, right); err != nil {
		return err
	}
	mid := original.Midpoint()
	x := int(math.Floor(column(mid, view, left, right)))
	if x >= right {
		x = right - 1
	}
	if err := a.checkColumns(original, x, x+1, right); err != nil {
		return err
	}

	line := image.Rect(x, 0, x+1, dst.Bounds().Dy())
	draw.Draw(dst, line, image.NewUniform(a.spec.Color), image.Point{}, draw.Over)

	label := fmt.Sprintf("%s:%d", original.Chrom, mid)
	a.drawLabel(dst, band, label, x+3, alignLeft)
	return nil
}

type alignment int

const (
	alignLeft alignment = iota
	alignCenter
)

// drawLabel writes text into the label band, kept inside the image.
func (a *Annotator) drawLabel(dst draw.Image, band int, text string, x int, align alignment) {
	if band <= 0 {
		return
	}
	face := newFace(a.font, a.spec.FontSize, a.spec.DPI)
	defer face.Close()

	width := font.MeasureString(face, text).Ceil()
	if align == alignCenter {
		x -= width / 2
	}
	maxX := dst.Bounds().Dx() - width
	if x > maxX {
		x = maxX
	}
	if x < 0 {
		x = 0
	}

	m := face.Metrics()
	textHeight := (m.Ascent + m.Descent).Ceil()
	baseline := (band-textHeight)/2 + m.Ascent.Ceil()
	if baseline > band {
		baseline = band
	}

	ink := a.spec.Color
	ink.A = 255
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

func encode(req browser.RenderRequest, img image.Image) (*browser.FetchedImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	b := img.Bounds()
	return &browser.FetchedImage{
		Request: req,
		Data:    buf.Bytes(),
		Image:   img,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}
