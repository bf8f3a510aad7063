// Package browser talks to a UCSC-style genome browser: it renders track
// images for genomic intervals, retrieves the matching PDF, and reads
// session cart settings.
package browser

import (
	"image"
	"net/url"

	"github.com/inodb/soda/internal/bed"
)

// RenderRequest fully determines one snapshot fetch. Identical requests
// produce the same rendering.
type RenderRequest struct {
	Interval  bed.Interval // region to display (already padded)
	Build     string       // browser assembly id, e.g. "hg38"
	SessionID string       // hgsid
}

// FetchedImage is a decoded browser rendering.
type FetchedImage struct {
	Request RenderRequest
	Data    []byte // encoded PNG bytes
	Image   image.Image
	Width   int
	Height  int
}

// query returns the parameters shared by every per-region endpoint.
func (r RenderRequest) query() url.Values {
	q := url.Values{}
	q.Set("hgsid", r.SessionID)
	q.Set("db", r.Build)
	q.Set("position", r.Interval.Position())
	return q
}
