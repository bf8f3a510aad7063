package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/soda/internal/gallery"
	"github.com/inodb/soda/internal/pipeline"
)

// Run describes one completed gallery run.
type Run struct {
	Manifest    *gallery.Manifest
	Results     []pipeline.Result
	Report      *pipeline.Report
	Build       string
	SessionID   string
	BrowserURL  string
	OutputDir   string
	RegionsFile string
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Title     string
	Framework string
	Build     string
	OutputDir string
	Attempted int64
	Succeeded int64
	Failed    int64
}

// RecordRun appends the run, its entries and its failures. If any part
// fails to land, the rows already written for the run are removed again.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	m := run.Manifest
	rep := run.Report
	if m == nil || rep == nil {
		return fmt.Errorf("record run: manifest and report are required")
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Timestamp, m.Title, string(m.Framework),
		run.Build, run.SessionID, run.BrowserURL, run.OutputDir, run.RegionsFile,
		int64(rep.Attempted), int64(rep.Succeeded), int64(len(rep.Failures)), int64(len(rep.Warnings)),
		rep.Elapsed.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := s.appendRunRows(ctx, run); err != nil {
		if derr := s.discardRun(context.WithoutCancel(ctx), m.RunID); derr != nil {
			return fmt.Errorf("%w (cleanup: %v)", err, derr)
		}
		return err
	}
	return nil
}

func (s *Store) appendRunRows(ctx context.Context, run Run) error {
	m := run.Manifest
	if err := s.appendRows(ctx, "entries", func(a *goduckdb.Appender) error {
		for _, res := range run.Results {
			if !res.OK() {
				continue
			}
			e := res.Entry(run.Build)
			r := res.Region
			if err := a.AppendRow(
				m.RunID, int64(r.Row), r.ID, r.View.Chrom,
				r.View.Start, r.View.End, r.Original.Start, r.Original.End,
				e.Title, e.ImageURL, int64(e.ImageWidth), int64(e.ImageHeight),
				e.PDFURL, e.ExternalURL,
			); err != nil {
				return fmt.Errorf("append entry: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	return s.appendRows(ctx, "failures", func(a *goduckdb.Appender) error {
		for _, f := range run.Report.Failures {
			msg := ""
			if f.Err != nil {
				msg = f.Err.Error()
			}
			if err := a.AppendRow(m.RunID, int64(f.Row), f.Region, f.Kind, msg); err != nil {
				return fmt.Errorf("append failure: %w", err)
			}
		}
		return nil
	})
}

// discardRun deletes every row recorded under runID.
func (s *Store) discardRun(ctx context.Context, runID string) error {
	for _, table := range []string{"failures", "entries", "runs"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// appendRows batch-inserts into table using the Appender API.
func (s *Store) appendRows(ctx context.Context, table string, fill func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create %s appender: %w", table, err)
	}
	defer appender.Close()

	if err := fill(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// ListRuns returns recorded runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		run_id, started_at, title, framework, build, output_dir,
		attempted, succeeded, failed
		FROM runs
		ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.Title, &r.Framework, &r.Build, &r.OutputDir,
			&r.Attempted, &r.Succeeded, &r.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// FailedRows returns the failed input rows of a run in row order.
func (s *Store) FailedRows(ctx context.Context, runID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT row_num FROM failures WHERE run_id = ? ORDER BY row_num`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
