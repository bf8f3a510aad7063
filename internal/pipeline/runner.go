package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/soda/internal/annotate"
	"github.com/inodb/soda/internal/bed"
	"github.com/inodb/soda/internal/browser"
	"github.com/inodb/soda/internal/gallery"
)

// Fetcher retrieves renderings from the genome browser.
type Fetcher interface {
	Fetch(ctx context.Context, req browser.RenderRequest) (*browser.FetchedImage, error)
	FetchPDF(ctx context.Context, req browser.RenderRequest) ([]byte, error)
	ExternalURL(req browser.RenderRequest) string
}

// Annotator crops and marks a fetched image.
type Annotator interface {
	Annotate(img *browser.FetchedImage, view, original bed.Interval) (*browser.FetchedImage, error)
}

// Options configures a Runner.
type Options struct {
	Build     string
	SessionID string
	Workers   int
	FetchPDF  bool
	Logger    *zap.Logger
}

// Result is the outcome for one region. Err is set when the region produced
// no image.
type Result struct {
	Region      Region
	Image       *browser.FetchedImage
	PDF         []byte
	ExternalURL string
	Err         error // fetch failure
	Warnings    []Warning
}

// OK reports whether the region produced an image.
func (r Result) OK() bool {
	return r.Err == nil && r.Image != nil
}

// Entry builds the gallery entry for a successful result.
func (r Result) Entry(build string) gallery.Entry {
	e := gallery.Entry{
		Index:              r.Region.Row,
		ImageURL:           gallery.ImageURL(r.Region.ID),
		ThumbnailURL:       gallery.ThumbnailURL(r.Region.ID),
		ExternalURL:        r.ExternalURL,
		Title:              r.Region.Title(),
		Description:        gallery.Description(build, r.Region.View),
		GenomicRegionLabel: gallery.RegionLabel(r.Region.View),
	}
	if r.Image != nil {
		e.ImageWidth = r.Image.Width
		e.ImageHeight = r.Image.Height
	}
	if len(r.PDF) > 0 {
		e.PDFURL = gallery.PDFURL(r.Region.ID)
	}
	return e
}

// Runner drives fetch and annotate for every region of a run.
type Runner struct {
	fetcher   Fetcher
	annotator Annotator
	opts      Options
	logger    *zap.Logger
	runID     string
}

// NewRunner creates a runner. Each runner gets a fresh run ID.
func NewRunner(f Fetcher, a Annotator, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		fetcher:   f,
		annotator: a,
		opts:      opts,
		logger:    logger,
		runID:     uuid.NewString(),
	}
}

// RunID identifies this run in the manifest and the ledger.
func (r *Runner) RunID() string {
	return r.runID
}

// Run processes every region and returns one result per region in input
// order. Per-region failures are recorded in the results and the report.
// If ctx is cancelled, Run waits for in-flight work to stop and returns
// ctx's error with no results.
func (r *Runner) Run(ctx context.Context, regions []Region) ([]Result, *Report, error) {
	start := time.Now()
	r.logger.Info("processing regions",
		zap.Int("regions", len(regions)),
		zap.Int("workers", r.opts.Workers),
		zap.String("run", r.runID))

	results := collect(process(ctx, feed(ctx, regions), r.opts.Workers, r.processRegion), regions)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	report := NewReport(results)
	report.Elapsed = time.Since(start)
	return results, report, nil
}

func (r *Runner) processRegion(ctx context.Context, region Region) Result {
	res := Result{Region: region}
	req := browser.RenderRequest{
		Interval:  region.View,
		Build:     r.opts.Build,
		SessionID: r.opts.SessionID,
	}
	log := r.logger.With(zap.Int("row", region.Row), zap.String("region", region.View.Position()))

	img, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		log.Warn("fetch failed", zap.String("kind", browser.Kind(err)), zap.Error(err))
		res.Err = err
		return res
	}

	// Annotation problems never cost the region its image: fall back to
	// whatever the annotator returned, else the rendering as fetched.
	annotated, err := r.annotator.Annotate(img, region.View, region.Original)
	if err != nil {
		var aerr *annotate.AnnotationError
		if errors.As(err, &aerr) {
			log.Warn("annotation skipped", zap.Error(err))
		} else {
			log.Warn("annotation failed", zap.Error(err))
		}
		res.Warnings = append(res.Warnings, Warning{Row: region.Row, Region: region.ID, Kind: "annotate", Message: err.Error()})
		if annotated == nil {
			annotated = img
		}
	}
	res.Image = annotated

	if r.opts.FetchPDF {
		pdf, err := r.fetcher.FetchPDF(ctx, req)
		if err != nil {
			log.Warn("pdf unavailable", zap.Error(err))
			res.Warnings = append(res.Warnings, Warning{Row: region.Row, Region: region.ID, Kind: "pdf", Message: err.Error()})
		} else {
			res.PDF = pdf
		}
	}

	res.ExternalURL = r.fetcher.ExternalURL(req)
	log.Debug("region done", zap.Int("width", res.Image.Width), zap.Int("height", res.Image.Height))
	return res
}

// Entries returns gallery entries for the successful results, in order.
func Entries(results []Result, build string) []gallery.Entry {
	var entries []gallery.Entry
	for _, res := range results {
		if res.OK() {
			entries = append(entries, res.Entry(build))
		}
	}
	return entries
}
