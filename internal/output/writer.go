package output

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/soda/internal/gallery"
	"github.com/inodb/soda/internal/pipeline"
)

// Thumbnail bounds in pixels.
const (
	ThumbnailWidth  = 480
	ThumbnailHeight = 480
)

// Options configures a Writer.
type Options struct {
	Dir         string           // gallery root; must not exist
	Renderer    gallery.Renderer // front-end for index.html
	RegionsFile string           // input BED copied into regions/; "" or "-" skips the copy
	ExtraAssets string           // optional directory copied verbatim into the root
	Workers     int              // concurrent file writers
	Logger      *zap.Logger
}

// Writer stages a gallery in a temporary directory next to the target and
// renames it into place once complete, so a failed run leaves no partial
// gallery behind.
type Writer struct {
	opts   Options
	logger *zap.Logger
}

// NewWriter validates the options. It fails with *PathExistsError when the
// target already exists.
func NewWriter(opts Options) (*Writer, error) {
	if err := CheckTarget(opts.Dir); err != nil {
		return nil, err
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("output: renderer is required")
	}
	if opts.ExtraAssets != "" {
		info, err := os.Stat(opts.ExtraAssets)
		if err != nil {
			return nil, fmt.Errorf("gallery source dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("gallery source dir %s is not a directory", opts.ExtraAssets)
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{opts: opts, logger: logger}, nil
}

// Dir returns the gallery root.
func (w *Writer) Dir() string {
	return w.opts.Dir
}

// Write renders the manifest and writes every artifact, then publishes the
// directory.
func (w *Writer) Write(ctx context.Context, m *gallery.Manifest, results []pipeline.Result) (err error) {
	if err := CheckTarget(w.opts.Dir); err != nil {
		return err
	}
	target, err := filepath.Abs(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create output parent: %w", err)
	}

	stage, err := os.MkdirTemp(parent, ".soda-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(stage)
		}
	}()

	for _, sub := range []string{gallery.ImagesDir, gallery.ThumbnailsDir, gallery.PDFsDir, "regions"} {
		if err := os.MkdirAll(filepath.Join(stage, filepath.FromSlash(sub)), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}

	if err := w.writeArtifacts(ctx, stage, results); err != nil {
		return err
	}
	if err := w.writeRegions(stage, results); err != nil {
		return err
	}
	if err := w.writeIndex(stage, m); err != nil {
		return err
	}

	if err := copyFS(stage, w.opts.Renderer.Assets()); err != nil {
		return fmt.Errorf("copy gallery assets: %w", err)
	}
	if w.opts.ExtraAssets != "" {
		if err := copyFS(stage, os.DirFS(w.opts.ExtraAssets)); err != nil {
			return fmt.Errorf("copy gallery source dir: %w", err)
		}
	}

	if err := CheckTarget(target); err != nil {
		return err
	}
	if err := os.Chmod(stage, 0o755); err != nil {
		return fmt.Errorf("publish gallery: %w", err)
	}
	if err := os.Rename(stage, target); err != nil {
		return fmt.Errorf("publish gallery: %w", err)
	}
	w.logger.Info("gallery written",
		zap.String("dir", target),
		zap.Int("entries", len(m.Entries)),
		zap.String("run", m.RunID))
	return nil
}

// writeArtifacts writes images, thumbnails and PDFs for successful results.
func (w *Writer) writeArtifacts(ctx context.Context, stage string, results []pipeline.Result) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)

	for _, res := range results {
		if !res.OK() {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := res.Region.ID
			imagePath := filepath.Join(stage, filepath.FromSlash(gallery.ImageURL(id)))
			if err := os.WriteFile(imagePath, res.Image.Data, 0o644); err != nil {
				return fmt.Errorf("write image for row %d: %w", res.Region.Row, err)
			}

			thumb := imaging.Fit(res.Image.Image, ThumbnailWidth, ThumbnailHeight, imaging.Lanczos)
			thumbPath := filepath.Join(stage, filepath.FromSlash(gallery.ThumbnailURL(id)))
			if err := imaging.Save(thumb, thumbPath); err != nil {
				return fmt.Errorf("write thumbnail for row %d: %w", res.Region.Row, err)
			}

			if len(res.PDF) > 0 {
				pdfPath := filepath.Join(stage, filepath.FromSlash(gallery.PDFURL(id)))
				if err := os.WriteFile(pdfPath, res.PDF, 0o644); err != nil {
					return fmt.Errorf("write pdf for row %d: %w", res.Region.Row, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// writeRegions copies the input BED and writes the annotated BED listing
// every region with its ID and original coordinates.
func (w *Writer) writeRegions(stage string, results []pipeline.Result) error {
	dir := filepath.Join(stage, "regions")
	name := "regions.bed"
	if src := w.opts.RegionsFile; src != "" && src != "-" {
		name = filepath.Base(src)
		if err := copyFile(filepath.Join(dir, name), src); err != nil {
			return fmt.Errorf("copy regions file: %w", err)
		}
	}

	f, err := os.Create(filepath.Join(dir, name+".annotated"))
	if err != nil {
		return fmt.Errorf("write annotated regions: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, res := range results {
		r := res.Region
		fmt.Fprintf(bw, "%s\t%d\t%d\t%s\t%d\t%d\n",
			r.View.Chrom, r.View.Start, r.View.End, r.ID, r.Original.Start, r.Original.End)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write annotated regions: %w", err)
	}
	return f.Close()
}

func (w *Writer) writeIndex(stage string, m *gallery.Manifest) error {
	var html bytes.Buffer
	if err := w.opts.Renderer.Render(&html, m); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(stage, "index.html"), html.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index.html: %w", err)
	}

	var js bytes.Buffer
	if err := m.WriteJSON(&js); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(stage, "manifest.json"), js.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest.json: %w", err)
	}
	return nil
}
