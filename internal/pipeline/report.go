package pipeline

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/soda/internal/browser"
)

// Failure is a region that produced no image.
type Failure struct {
	Row    int
	Region string // region ID
	Kind   string // auth, network, render, other
	Err    error
}

// Warning is a non-fatal problem with a region that still produced an image.
type Warning struct {
	Row     int
	Region  string
	Kind    string // annotate, pdf
	Message string
}

// Report summarizes a run.
type Report struct {
	Attempted int
	Succeeded int
	Failures  []Failure
	Warnings  []Warning
	Elapsed   time.Duration
}

// NewReport tallies results.
func NewReport(results []Result) *Report {
	rep := &Report{Attempted: len(results)}
	for _, res := range results {
		rep.Warnings = append(rep.Warnings, res.Warnings...)
		if res.OK() {
			rep.Succeeded++
			continue
		}
		rep.Failures = append(rep.Failures, Failure{
			Row:    res.Region.Row,
			Region: res.Region.ID,
			Kind:   browser.Kind(res.Err),
			Err:    res.Err,
		})
	}
	return rep
}

// Partial reports whether any region failed.
func (r *Report) Partial() bool {
	return len(r.Failures) > 0
}

// FailedRows returns the 1-based input rows that produced no image.
func (r *Report) FailedRows() []int {
	rows := make([]int, len(r.Failures))
	for i, f := range r.Failures {
		rows[i] = f.Row
	}
	return rows
}

// Summary is a one-line description of the run.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d of %d regions rendered", r.Succeeded, r.Attempted)
	if r.Partial() {
		s += fmt.Sprintf(", %d failed (rows %s)", len(r.Failures), joinInts(r.FailedRows()))
	}
	if len(r.Warnings) > 0 {
		s += fmt.Sprintf(", %d warnings", len(r.Warnings))
	}
	return s
}

// Log writes the summary and every failure.
func (r *Report) Log(logger *zap.Logger) {
	for _, f := range r.Failures {
		logger.Warn("region failed",
			zap.Int("row", f.Row),
			zap.String("region", f.Region),
			zap.String("kind", f.Kind),
			zap.Error(f.Err))
	}
	if r.Partial() {
		logger.Warn(r.Summary(), zap.Duration("elapsed", r.Elapsed))
		return
	}
	logger.Info(r.Summary(), zap.Duration("elapsed", r.Elapsed))
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
