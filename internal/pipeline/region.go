// Package pipeline runs the per-region fetch and annotate work and collects
// the ordered results.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/soda/internal/bed"
)

// Region is one input row prepared for rendering.
type Region struct {
	Row      int          // 1-based data row number
	Original bed.Interval // interval as read from the input
	View     bed.Interval // interval sent to the browser (after padding)
	ID       string       // stable file-name stem
}

// Title is the label shown for the region: the BED name column when present,
// else the row number.
func (r Region) Title() string {
	if r.Original.HasLabel() {
		return r.Original.Label
	}
	return strconv.Itoa(r.Row)
}

// BuildRegions pads every interval and assigns row numbers and IDs in input
// order.
func BuildRegions(intervals []bed.Interval, padding int64) ([]Region, error) {
	regions := make([]Region, 0, len(intervals))
	for i, iv := range intervals {
		view := iv
		if padding != 0 {
			var err error
			view, err = bed.Pad(iv, padding)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		regions = append(regions, Region{
			Row:      i + 1,
			Original: iv,
			View:     view,
			ID:       RegionID(i, view),
		})
	}
	return regions, nil
}

// RegionID names a region plot_<index>_<chrom>_<start>_<end>[_<label>] from
// its 0-based index and rendered coordinates.
func RegionID(index int, view bed.Interval) string {
	parts := []string{
		"plot",
		fmt.Sprintf("%06d", index),
		view.Chrom,
		strconv.FormatInt(view.Start, 10),
		strconv.FormatInt(view.End, 10),
	}
	if view.HasLabel() {
		if label := idSafe(view.Label); label != "" {
			parts = append(parts, label)
		}
	}
	return strings.Join(parts, "_")
}

// idSafe reduces s to ASCII and replaces separators that would break the ID
// or a file name.
func idSafe(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20 || r > 0x7e:
			continue
		case r == ' ', r == ':', r == '_', r == '/', r == '\\':
			sb.WriteByte('-')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
