package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/soda/internal/annotate"
	"github.com/inodb/soda/internal/bed"
	"github.com/inodb/soda/internal/browser"
	"github.com/inodb/soda/internal/config"
	"github.com/inodb/soda/internal/duckdb"
	"github.com/inodb/soda/internal/gallery"
	"github.com/inodb/soda/internal/output"
	"github.com/inodb/soda/internal/pipeline"
)

// generate runs one gallery build. Configuration problems, unreadable
// regions and an existing output directory fail before any request is sent.
func generate(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Report, error) {
	if err := output.CheckTarget(cfg.OutputDir); err != nil {
		return nil, err
	}

	intervals, err := readRegions(cfg.RegionsFile, logger)
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		logger.Warn("no regions in input", zap.String("file", cfg.RegionsFile))
	}
	regions, err := pipeline.BuildRegions(intervals, cfg.Padding)
	if err != nil {
		return nil, err
	}

	geom, err := cfg.Geometry()
	if err != nil {
		return nil, err
	}
	renderer, err := gallery.NewRenderer(cfg.Framework)
	if err != nil {
		return nil, err
	}
	writer, err := output.NewWriter(output.Options{
		Dir:         cfg.OutputDir,
		Renderer:    renderer,
		RegionsFile: cfg.RegionsFile,
		ExtraAssets: cfg.GallerySrcDir,
		Workers:     cfg.Workers,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	auth, err := cfg.Auth()
	if err != nil {
		return nil, err
	}
	client, err := browser.New(browser.Options{
		BrowserURL: cfg.BrowserURL,
		Timeout:    cfg.Timeout,
		Auth:       auth,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("browser client ready",
		zap.String("url", client.BaseURL()),
		zap.String("auth", auth.Name()),
		zap.String("build", cfg.Build))

	cart := browser.DefaultCartSettings()
	if cfg.Annotation.Mode != annotate.ModeNone {
		cart, err = client.CartSettings(ctx, cfg.SessionID)
		if err != nil {
			logger.Warn("could not read cart settings, using defaults", zap.Error(err))
		}
	}
	ann, err := annotate.NewAnnotator(cfg.Annotation, geom, cart)
	if err != nil {
		return nil, err
	}
	ann.SetLogger(logger)

	runner := pipeline.NewRunner(client, ann, pipeline.Options{
		Build:     cfg.Build,
		SessionID: cfg.SessionID,
		Workers:   cfg.Workers,
		FetchPDF:  cfg.FetchPDF,
		Logger:    logger,
	})
	results, report, err := runner.Run(ctx, regions)
	if err != nil {
		return nil, err
	}

	m := gallery.Assemble(pipeline.Entries(results, cfg.Build), cfg.Title, cfg.Framework, time.Now(), runner.RunID())
	if err := writer.Write(ctx, m, results); err != nil {
		return nil, err
	}

	if cfg.LedgerPath != "" {
		if err := recordRun(ctx, cfg, m, results, report); err != nil {
			logger.Warn("could not record run in ledger", zap.String("ledger", cfg.LedgerPath), zap.Error(err))
		}
	}

	report.Log(logger)
	return report, nil
}

func readRegions(path string, logger *zap.Logger) ([]bed.Interval, error) {
	p, err := bed.NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	p.OnSkip(func(line int, reason string) {
		lvl := zap.DebugLevel
		if reason == "possible blank line" {
			lvl = zap.WarnLevel
		}
		logger.Log(lvl, "skipping line", zap.Int("line", line), zap.String("reason", reason))
	})
	intervals, err := p.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("regions read", zap.String("file", path), zap.Int("regions", len(intervals)))
	return intervals, nil
}

func recordRun(ctx context.Context, cfg config.Config, m *gallery.Manifest, results []pipeline.Result, report *pipeline.Report) error {
	store, err := duckdb.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.RecordRun(ctx, duckdb.Run{
		Manifest:    m,
		Results:     results,
		Report:      report,
		Build:       cfg.Build,
		SessionID:   cfg.SessionID,
		BrowserURL:  cfg.BrowserURL,
		OutputDir:   cfg.OutputDir,
		RegionsFile: cfg.RegionsFile,
	})
}
