package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/soda/internal/config"
	"github.com/inodb/soda/internal/gallery"
	"github.com/inodb/soda/internal/output"
)

// fakeBrowser serves hgRenderTracks. Regions on chromosomes listed in fail
// get a 503.
type fakeBrowser struct {
	*httptest.Server
	requests atomic.Int64
}

func newFakeBrowser(t *testing.T, fail ...string) *fakeBrowser {
	t.Helper()
	fb := &fakeBrowser{}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.requests.Add(1)
		if r.URL.Path != "/cgi-bin/hgRenderTracks" {
			http.NotFound(w, r)
			return
		}
		pos := r.URL.Query().Get("position")
		for _, chrom := range fail {
			if strings.HasPrefix(pos, chrom+":") {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		img := image.NewNRGBA(image.Rect(0, 0, 300, 60))
		for x := 0; x < 300; x++ {
			img.Set(x, 30, color.NRGBA{0, 0, 0, 255})
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, img)
	}))
	t.Cleanup(fb.Close)
	return fb
}

func writeBED(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.bed")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "soda dev")
}

func TestRun_UsageErrors(t *testing.T) {
	bedPath := writeBED(t, "chr1\t100\t200")
	out := filepath.Join(t.TempDir(), "gallery")

	tests := []struct {
		name string
		args []string
	}{
		{"missing required", []string{"-r", bedPath}},
		{"unknown flag", []string{"--frobnicate"}},
		{"stray argument", []string{"-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "extra"}},
		{"conflicting modes", []string{"-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "-i", "-d"}},
		{"bad color", []string{"-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "-w", "red"}},
		{"bad gallery mode", []string{"-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "-m", "carousel"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, ExitUsage, code, stderr)
			assert.NoDirExists(t, out)
		})
	}
}

func TestRun_Gallery(t *testing.T) {
	fb := newFakeBrowser(t)
	bedPath := writeBED(t,
		"track name=peaks",
		"chr1\t1000\t2000\tfirst peak",
		"chr2\t500\t900",
	)
	out := filepath.Join(t.TempDir(), "gallery")

	code, stdout, stderr := runCLI(t,
		"-r", bedPath, "-s", "123_abc", "-b", "hg38", "-o", out,
		"-g", fb.URL, "-t", "Peaks", "-m", "blueimp", "--no-pdf", "--workers", "2")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "2 of 2 regions rendered")

	assert.FileExists(t, filepath.Join(out, "index.html"))
	assert.FileExists(t, filepath.Join(out, "images", "plot_000000_chr1_1000_2000_first-peak.png"))
	assert.FileExists(t, filepath.Join(out, "images", "thumbnails", "plot_000001_chr2_500_900.png"))
	assert.FileExists(t, filepath.Join(out, "regions", "regions.bed"))

	data, err := os.ReadFile(filepath.Join(out, "manifest.json"))
	require.NoError(t, err)
	var m gallery.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Peaks", m.Title)
	assert.Equal(t, gallery.TableSlideshow, m.Framework)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, "first peak", m.Entries[0].Title)
	assert.Equal(t, "2", m.Entries[1].Title)
	assert.Equal(t, 300, m.Entries[0].ImageWidth)
	assert.Empty(t, m.Entries[0].PDFURL)
	assert.Contains(t, m.Entries[0].ExternalURL, fb.URL+"/cgi-bin/hgTracks?db=hg38")

	// Publishing is logged once, with the run id.
	assert.Equal(t, 1, strings.Count(stderr, "gallery written"), stderr)
	assert.Contains(t, stderr, m.RunID)
}

func TestRun_PartialFailure(t *testing.T) {
	bedPath := writeBED(t,
		"chr1\t100\t200",
		"chr2\t100\t200",
		"chr3\t100\t200",
	)

	t.Run("lenient", func(t *testing.T) {
		fb := newFakeBrowser(t, "chr2")
		out := filepath.Join(t.TempDir(), "gallery")
		code, stdout, stderr := runCLI(t, "-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "-g", fb.URL, "--no-pdf")
		assert.Equal(t, ExitSuccess, code, stderr)
		assert.Contains(t, stdout, "2 of 3 regions rendered, 1 failed (rows 2)")

		data, err := os.ReadFile(filepath.Join(out, "manifest.json"))
		require.NoError(t, err)
		var m gallery.Manifest
		require.NoError(t, json.Unmarshal(data, &m))
		require.Len(t, m.Entries, 2)
		assert.Equal(t, 1, m.Entries[0].Index)
		assert.Equal(t, 3, m.Entries[1].Index)
	})

	t.Run("strict", func(t *testing.T) {
		fb := newFakeBrowser(t, "chr2")
		out := filepath.Join(t.TempDir(), "gallery")
		code, _, stderr := runCLI(t, "-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "-g", fb.URL, "--no-pdf", "--strict")
		assert.Equal(t, ExitPartial, code, stderr)
		assert.DirExists(t, out)
	})
}

func TestRun_FatalBeforeFetch(t *testing.T) {
	t.Run("output exists", func(t *testing.T) {
		fb := newFakeBrowser(t)
		bedPath := writeBED(t, "chr1\t100\t200")
		out := t.TempDir()
		code, _, stderr := runCLI(t, "-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "-g", fb.URL)
		assert.Equal(t, ExitError, code)
		assert.Contains(t, stderr, "already exists")
		assert.Zero(t, fb.requests.Load())
	})

	t.Run("malformed row", func(t *testing.T) {
		fb := newFakeBrowser(t)
		bedPath := writeBED(t, "chr1\t100\t200", "chr1\tabc\t300")
		out := filepath.Join(t.TempDir(), "gallery")
		code, _, stderr := runCLI(t, "-r", bedPath, "-s", "s", "-b", "hg38", "-o", out, "-g", fb.URL)
		assert.Equal(t, ExitError, code)
		assert.Contains(t, stderr, "line 2")
		assert.Zero(t, fb.requests.Load())
		assert.NoDirExists(t, out)
	})
}

func TestRun_LedgerAndRuns(t *testing.T) {
	fb := newFakeBrowser(t, "chr2")
	bedPath := writeBED(t, "chr1\t100\t200", "chr2\t100\t200")
	ledger := filepath.Join(t.TempDir(), "ledger.duckdb")
	out := filepath.Join(t.TempDir(), "gallery")

	code, _, stderr := runCLI(t, "-r", bedPath, "-s", "s", "-b", "hg19", "-o", out, "-g", fb.URL, "--no-pdf", "--ledger", ledger)
	require.Equal(t, ExitSuccess, code, stderr)

	code, stdout, stderr := runCLI(t, "runs", "--ledger", ledger)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "RUN")
	assert.Contains(t, stdout, "hg19")
	assert.Contains(t, stdout, "1/2")

	code, _, _ = runCLI(t, "runs")
	assert.Equal(t, ExitUsage, code)
}

func TestConfigCommands(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "soda.yaml")

	code, stdout, _ := runCLI(t, "--config", cfg, "config")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "No configuration set")

	code, stdout, stderr := runCLI(t, "--config", cfg, "config", "set", "gallery-mode", "blueimp")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Set gallery-mode = blueimp")

	code, stdout, _ = runCLI(t, "--config", cfg, "config", "get", "gallery-mode")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "blueimp\n", stdout)

	code, _, _ = runCLI(t, "--config", cfg, "config", "set", "colour", "red")
	assert.Equal(t, ExitUsage, code)

	code, _, _ = runCLI(t, "--config", cfg, "config", "set", "password", "hunter2")
	assert.Equal(t, ExitUsage, code)

	code, _, _ = runCLI(t, "--config", cfg, "config", "get", "title")
	assert.Equal(t, ExitError, code)
}

func TestConfigFileFeedsRun(t *testing.T) {
	fb := newFakeBrowser(t)
	bedPath := writeBED(t, "chr1\t100\t200")
	out := filepath.Join(t.TempDir(), "gallery")
	cfg := filepath.Join(t.TempDir(), "soda.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf("browser-url: %s\nbuild: mm10\nno-pdf: true\n", fb.URL)), 0o644))

	code, _, stderr := runCLI(t, "--config", cfg, "-r", bedPath, "-s", "s", "-o", out)
	require.Equal(t, ExitSuccess, code, stderr)

	data, err := os.ReadFile(filepath.Join(out, "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[mm10] chr1:100-200")
}

func TestExitCode(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want int
	}{
		{"nil", live, nil, ExitSuccess},
		{"generic", live, errors.New("boom"), ExitError},
		{"output exists", live, &output.PathExistsError{Path: "x"}, ExitError},
		{"usage", live, &usageError{err: errors.New("bad flag")}, ExitUsage},
		{"validation", live, fmt.Errorf("wrapped: %w", &config.ValidationError{Key: "build"}), ExitUsage},
		{"partial", live, &partialError{summary: "1 failed"}, ExitPartial},
		{"cancelled context", cancelled, errors.New("anything"), ExitInterrupted},
		{"canceled error", live, fmt.Errorf("run: %w", context.Canceled), ExitInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.ctx, tt.err))
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	newLogger(&buf, true).Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	ctx := withLogger(context.Background(), logger)
	assert.Same(t, logger, loggerFromContext(ctx))
	assert.NotNil(t, loggerFromContext(context.Background()))
}
