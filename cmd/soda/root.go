package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/soda/internal/annotate"
	"github.com/inodb/soda/internal/browser"
	"github.com/inodb/soda/internal/config"
	"github.com/inodb/soda/internal/gallery"
)

const configFileName = ".soda.yaml"

func newRootCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	var (
		cfgFile     string
		profileMode string
	)

	root := &cobra.Command{
		Use:   "soda -r REGIONS.bed -s SESSION -b BUILD -o OUTDIR",
		Short: "Render genome browser snapshots of BED regions into a web gallery",
		Long: `soda fetches a rendering of every region in a BED file from a UCSC-style
genome browser session, optionally marks the interval or its midpoint, and
publishes the images as a self-contained static web gallery.`,
		Example: `  soda -r peaks.bed -s 123_abc -b hg38 -o peaks-gallery
  soda -r peaks.bed -s 123_abc -b hg38 -o out -i -a 500 -m blueimp
  soda -r peaks.bed -s 123_abc -b mm10 -o out -d -g https://browser.example.org -y`,
		Version:       version,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfigFile(v, cfgFile); err != nil {
				return err
			}
			logger := newLogger(stderr, v.GetBool(config.KeyVerbose))
			cmd.SetContext(withLogger(cmd.Context(), logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			if profileMode != "" {
				stop, err := startProfile(profileMode)
				if err != nil {
					return err
				}
				defer stop()
			}

			logger := loggerFromContext(cmd.Context())
			defer logger.Sync() //nolint:errcheck

			report, err := generate(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, report.Summary())
			if cfg.Strict && report.Partial() {
				return &partialError{summary: report.Summary()}
			}
			return nil
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(fmt.Sprintf("soda %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/"+configFileName+")")
	pf.BoolP(config.KeyVerbose, "v", false, "enable debug logging")
	pf.String(config.KeyLedger, "", "DuckDB run ledger to append to")

	f := root.Flags()
	f.SortFlags = false
	f.StringP(config.KeyRegions, "r", "", "BED file of regions (- for stdin)")
	f.StringP(config.KeySession, "s", "", "browser session id (hgsid)")
	f.StringP(config.KeyBuild, "b", "", "browser genome build, e.g. hg38")
	f.StringP(config.KeyOutput, "o", "", "gallery output directory (must not exist)")
	f.StringP(config.KeyTitle, "t", gallery.DefaultTitle, "gallery title")
	f.StringP(config.KeyBrowserURL, "g", browser.DefaultBrowserURL, "genome browser URL")
	f.StringP(config.KeyUsername, "u", "", "basic auth username")
	f.StringP(config.KeyPassword, "p", "", "basic auth password")
	f.BoolP(config.KeyKerberos, "y", false, "authenticate with the Kerberos ticket cache")
	f.Int64P(config.KeyRange, "a", 0, "bases of padding added to each side of a region")
	f.BoolP(config.KeyInterval, "i", false, "shade the original interval")
	f.BoolP(config.KeyMidpoint, "d", false, "mark the interval midpoint")
	f.StringP(config.KeyColor, "w", annotate.DefaultColor, "annotation color, rgba(r,g,b,a)")
	f.Float64P(config.KeyFontSize, "z", annotate.DefaultFontSize, "annotation font size in points")
	f.StringP(config.KeyFontFamily, "f", annotate.DefaultFontFamily, "annotation font family or .ttf path")
	f.Float64P(config.KeyResolution, "e", annotate.DefaultDPI, "annotation resolution in DPI")
	f.String(config.KeyGeometry, "", "TOML calibration profile for cropping")
	f.StringP(config.KeyGalleryMode, "m", string(gallery.Lightbox), "gallery viewer: photoswipe or blueimp")
	f.StringP(config.KeyGallerySrcDir, "l", "", "extra gallery assets copied into the output")
	f.Int(config.KeyWorkers, config.DefaultWorkers, "concurrent region pipelines")
	f.Duration(config.KeyTimeout, config.DefaultTimeout, "per-request timeout")
	f.Bool(config.KeyNoPDF, false, "skip PDF retrieval")
	f.Bool(config.KeyStrict, false, "exit 3 when any region fails")
	f.StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the working directory")
	_ = f.MarkHidden("profile")

	config.SetDefaults(v)
	config.BindEnv(v)
	_ = v.BindPFlags(pf)
	_ = v.BindPFlags(f)

	root.AddCommand(newConfigCmd(&cfgFile, stdout))
	root.AddCommand(newRunsCmd(v, stdout))

	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{err: fmt.Errorf("unexpected argument %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}

// configPath returns the explicit config file or ~/.soda.yaml.
func configPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configFileName), nil
}

// loadConfigFile merges the config file into v. A missing default file is
// not an error; a missing explicit one is.
func loadConfigFile(v *viper.Viper, explicit string) error {
	path, err := configPath(explicit)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && explicit == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

func startProfile(mode string) (func(), error) {
	var kind func(*profile.Profile)
	switch mode {
	case "cpu":
		kind = profile.CPUProfile
	case "mem":
		kind = profile.MemProfile
	default:
		return nil, &usageError{err: fmt.Errorf("unknown profile mode %q (want cpu or mem)", mode)}
	}
	p := profile.Start(kind, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}
