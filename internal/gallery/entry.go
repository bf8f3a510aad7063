// Package gallery assembles region snapshots into a manifest and renders it
// as a static HTML gallery.
package gallery

import (
	"fmt"
	"path"

	"github.com/inodb/soda/internal/bed"
)

// Output layout, relative to the gallery root. URLs always use forward
// slashes.
const (
	ImagesDir     = "images"
	ThumbnailsDir = "images/thumbnails"
	PDFsDir       = "pdfs"
)

// Entry is one gallery item. Field order follows the template contract.
type Entry struct {
	Index              int    `json:"index"` // 1-based input row
	ImageURL           string `json:"image_url"`
	ImageWidth         int    `json:"image_width"`
	ImageHeight        int    `json:"image_height"`
	ThumbnailURL       string `json:"thumbnail_url"`
	PDFURL             string `json:"pdf_url"`
	ExternalURL        string `json:"external_url"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	GenomicRegionLabel string `json:"genomic_region_label"`
}

// ImageURL returns the relative URL of a region's image.
func ImageURL(id string) string { return path.Join(ImagesDir, id+".png") }

// ThumbnailURL returns the relative URL of a region's thumbnail.
func ThumbnailURL(id string) string { return path.Join(ThumbnailsDir, id+".png") }

// PDFURL returns the relative URL of a region's PDF.
func PDFURL(id string) string { return path.Join(PDFsDir, id+".pdf") }

// Description formats "[build] chrom:start-end[ label]".
func Description(build string, iv bed.Interval) string {
	d := fmt.Sprintf("[%s] %s", build, iv.Position())
	if iv.HasLabel() {
		d += " " + iv.Label
	}
	return d
}

// RegionLabel formats "chrom : start - end".
func RegionLabel(iv bed.Interval) string {
	return fmt.Sprintf("%s : %d - %d", iv.Chrom, iv.Start, iv.End)
}
