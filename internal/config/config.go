// Package config builds the immutable run configuration from flags,
// environment and the config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/inodb/soda/internal/annotate"
	"github.com/inodb/soda/internal/browser"
	"github.com/inodb/soda/internal/gallery"
)

// Keys shared by flags, environment variables (SODA_<KEY>, dashes become
// underscores) and the config file.
const (
	KeyRegions       = "regions"
	KeyBuild         = "build"
	KeySession       = "session"
	KeyOutput        = "output"
	KeyTitle         = "title"
	KeyGalleryMode   = "gallery-mode"
	KeyGallerySrcDir = "gallery-src-dir"
	KeyInterval      = "interval"
	KeyMidpoint      = "midpoint"
	KeyColor         = "color"
	KeyFontSize      = "font-size"
	KeyFontFamily    = "font-family"
	KeyResolution    = "resolution"
	KeyRange         = "range"
	KeyGeometry      = "geometry"
	KeyBrowserURL    = "browser-url"
	KeyUsername      = "username"
	KeyPassword      = "password"
	KeyKerberos      = "kerberos"
	KeyWorkers       = "workers"
	KeyTimeout       = "timeout"
	KeyNoPDF         = "no-pdf"
	KeyLedger        = "ledger"
	KeyStrict        = "strict"
	KeyVerbose       = "verbose"
)

// Defaults for optional settings.
const (
	DefaultWorkers = 4
	DefaultTimeout = browser.DefaultTimeout
)

// ValidationError reports an invalid or missing setting.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Key, e.Message)
}

// Config is the complete configuration of one run. It is built once and
// passed by value; nothing modifies it afterwards.
type Config struct {
	RegionsFile string
	Build       string
	SessionID   string
	OutputDir   string

	Title         string
	Framework     gallery.Framework
	GallerySrcDir string

	Annotation   annotate.Spec
	GeometryFile string
	Padding      int64

	BrowserURL string
	Username   string
	Password   string
	Kerberos   bool

	Workers  int
	Timeout  time.Duration
	FetchPDF bool

	LedgerPath string
	Strict     bool
	Verbose    bool
}

// SetDefaults registers defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTitle, gallery.DefaultTitle)
	v.SetDefault(KeyGalleryMode, string(gallery.Lightbox))
	v.SetDefault(KeyColor, annotate.DefaultColor)
	v.SetDefault(KeyFontSize, annotate.DefaultFontSize)
	v.SetDefault(KeyFontFamily, annotate.DefaultFontFamily)
	v.SetDefault(KeyResolution, annotate.DefaultDPI)
	v.SetDefault(KeyBrowserURL, browser.DefaultBrowserURL)
	v.SetDefault(KeyWorkers, DefaultWorkers)
	v.SetDefault(KeyTimeout, DefaultTimeout)
}

// BindEnv makes every key readable from SODA_* environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("soda")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// FromViper reads and validates a Config.
func FromViper(v *viper.Viper) (Config, error) {
	c := Config{
		RegionsFile:   strings.TrimSpace(v.GetString(KeyRegions)),
		Build:         strings.TrimSpace(v.GetString(KeyBuild)),
		SessionID:     strings.TrimSpace(v.GetString(KeySession)),
		OutputDir:     strings.TrimSpace(v.GetString(KeyOutput)),
		Title:         v.GetString(KeyTitle),
		GallerySrcDir: v.GetString(KeyGallerySrcDir),
		GeometryFile:  v.GetString(KeyGeometry),
		Padding:       v.GetInt64(KeyRange),
		BrowserURL:    strings.TrimRight(strings.TrimSpace(v.GetString(KeyBrowserURL)), "/"),
		Username:      v.GetString(KeyUsername),
		Password:      v.GetString(KeyPassword),
		Kerberos:      v.GetBool(KeyKerberos),
		Workers:       v.GetInt(KeyWorkers),
		Timeout:       v.GetDuration(KeyTimeout),
		FetchPDF:      !v.GetBool(KeyNoPDF),
		LedgerPath:    v.GetString(KeyLedger),
		Strict:        v.GetBool(KeyStrict),
		Verbose:       v.GetBool(KeyVerbose),
	}

	for key, val := range map[string]string{
		KeyRegions: c.RegionsFile,
		KeyBuild:   c.Build,
		KeySession: c.SessionID,
		KeyOutput:  c.OutputDir,
	} {
		if val == "" {
			return Config{}, &ValidationError{Key: key, Message: "is required"}
		}
	}

	fw, err := gallery.ParseFramework(v.GetString(KeyGalleryMode))
	if err != nil {
		return Config{}, &ValidationError{Key: KeyGalleryMode, Message: err.Error()}
	}
	c.Framework = fw

	spec, err := annotate.NewSpec(v.GetBool(KeyInterval), v.GetBool(KeyMidpoint))
	if err != nil {
		return Config{}, &ValidationError{Key: KeyInterval + "/" + KeyMidpoint, Message: err.Error()}
	}
	color, err := annotate.ParseRGBA(v.GetString(KeyColor))
	if err != nil {
		return Config{}, &ValidationError{Key: KeyColor, Message: err.Error()}
	}
	spec.Color = color
	spec.FontSize = v.GetFloat64(KeyFontSize)
	spec.FontFamily = v.GetString(KeyFontFamily)
	spec.DPI = v.GetFloat64(KeyResolution)
	if err := spec.Validate(); err != nil {
		return Config{}, &ValidationError{Key: "annotation", Message: err.Error()}
	}
	c.Annotation = spec

	if c.BrowserURL == "" {
		c.BrowserURL = browser.DefaultBrowserURL
	}
	if c.Workers <= 0 {
		return Config{}, &ValidationError{Key: KeyWorkers, Message: fmt.Sprintf("must be positive, got %d", c.Workers)}
	}
	if c.Timeout <= 0 {
		return Config{}, &ValidationError{Key: KeyTimeout, Message: fmt.Sprintf("must be positive, got %s", c.Timeout)}
	}
	return c, nil
}

// Auth resolves the configured credentials. A Kerberos ticket takes
// precedence over a username and password.
func (c Config) Auth() (browser.Auth, error) {
	return browser.ResolveAuth(c.Username, c.Password, c.Kerberos, browser.TicketOptions{})
}

// Geometry loads the calibration profile, or the stock geometry when none
// is configured.
func (c Config) Geometry() (annotate.Geometry, error) {
	if c.GeometryFile == "" {
		return annotate.DefaultGeometry(), nil
	}
	return annotate.LoadGeometry(c.GeometryFile)
}
