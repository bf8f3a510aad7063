// Package bed provides BED interval parsing and coordinate transforms.
package bed

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInterval is returned when a transform would leave an interval with
// end <= start.
var ErrEmptyInterval = errors.New("interval has no width")

// Interval is a half-open, 0-based genomic interval read from one BED row.
// Values are never mutated; transforms return a new Interval.
type Interval struct {
	Chrom string   // Chromosome name (e.g., "chr1")
	Start int64    // 0-based start, inclusive
	End   int64    // 0-based end, exclusive
	Label string   // Optional 4th column
	Extra []string // Columns after the label, passed through untouched
}

// HasLabel reports whether the row carried a 4th column.
func (iv Interval) HasLabel() bool {
	return iv.Label != ""
}

// Width returns End - Start.
func (iv Interval) Width() int64 {
	return iv.End - iv.Start
}

// Midpoint returns floor((start+end)/2).
func (iv Interval) Midpoint() int64 {
	return floorDiv(iv.Start+iv.End, 2)
}

// Position formats the interval the way genome browsers accept it: chrom:start-end.
func (iv Interval) Position() string {
	return fmt.Sprintf("%s:%d-%d", iv.Chrom, iv.Start, iv.End)
}

func (iv Interval) String() string {
	if iv.Label != "" {
		return iv.Position() + " (" + iv.Label + ")"
	}
	return iv.Position()
}

// Validate checks the interval invariants.
func (iv Interval) Validate() error {
	if strings.TrimSpace(iv.Chrom) == "" {
		return errors.New("empty chromosome name")
	}
	if iv.Start < 0 {
		return fmt.Errorf("negative start %d", iv.Start)
	}
	if iv.End <= iv.Start {
		return fmt.Errorf("end %d must be greater than start %d", iv.End, iv.Start)
	}
	return nil
}

// Pad widens the interval symmetrically about its midpoint by bases on each
// side. Negative bases shrink it. The new bounds are
//
//	start = floor(mid - (halfWidth + bases))
//	end   = ceil(mid + (halfWidth + bases))
//
// where mid and halfWidth are exact (half-integer) values, so the midpoint is
// preserved. A start that would fall below zero is clamped to zero.
func Pad(iv Interval, bases int64) (Interval, error) {
	// Work in doubled coordinates to keep half-integers exact.
	mid2 := iv.Start + iv.End
	half2 := iv.End - iv.Start
	reach2 := half2 + 2*bases
	if reach2 <= 0 {
		return Interval{}, fmt.Errorf("pad %s by %d: %w", iv.Position(), bases, ErrEmptyInterval)
	}

	out := iv
	out.Start = floorDiv(mid2-reach2, 2)
	out.End = ceilDiv(mid2+reach2, 2)
	if out.Start < 0 {
		out.Start = 0
	}
	if out.End <= out.Start {
		return Interval{}, fmt.Errorf("pad %s by %d: %w", iv.Position(), bases, ErrEmptyInterval)
	}
	if iv.Extra != nil {
		out.Extra = append([]string(nil), iv.Extra...)
	}
	return out, nil
}

// Midpoint returns floor((start+end)/2) for iv.
func Midpoint(iv Interval) int64 {
	return iv.Midpoint()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}
