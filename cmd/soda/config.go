package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/soda/internal/config"
)

// fileOnlyKeys may not be stored in the config file.
var fileOnlyKeys = map[string]bool{
	config.KeyPassword: true,
}

func newConfigCmd(cfgFile *string, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage soda configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.soda.yaml.
Keys match the long flag names; SODA_<KEY> environment variables override them.`,
		Example: `  soda config                                # show all config
  soda config set browser-url https://genome-euro.ucsc.edu
  soda config set gallery-mode blueimp
  soda config get browser-url`,
		Args: noArgs,
		// The file may not exist yet; set creates it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _, err := readConfigFile(*cfgFile)
			if err != nil {
				return err
			}
			return runConfigShow(v, stdout)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, path, err := readConfigFile(*cfgFile)
			if err != nil {
				return err
			}
			return runConfigSet(v, path, args[0], args[1], stdout)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _, err := readConfigFile(*cfgFile)
			if err != nil {
				return err
			}
			return runConfigGet(v, args[0], stdout)
		},
	})

	return cmd
}

// readConfigFile loads only the config file, without flags, environment
// or defaults, so that set writes back exactly what the user stored.
func readConfigFile(explicit string) (*viper.Viper, string, error) {
	path, err := configPath(explicit)
	if err != nil {
		return nil, "", err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("reading config %s: %w", path, err)
	}
	return v, path, nil
}

func runConfigShow(v *viper.Viper, w io.Writer) error {
	settings := v.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintf(w, "# No configuration set. Config file: %s\n", v.ConfigFileUsed())
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(w, string(out))
	return nil
}

func runConfigSet(v *viper.Viper, path, key, value string, w io.Writer) error {
	if !knownKey(key) {
		return &usageError{err: fmt.Errorf("unknown config key %q (known: %v)", key, knownKeys())}
	}
	if fileOnlyKeys[key] {
		return &usageError{err: fmt.Errorf("%s may not be stored in the config file; use SODA_PASSWORD", key)}
	}

	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		v.Set(key, true)
	case "false", "no", "off":
		v.Set(key, false)
	default:
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, path)
	return nil
}

func runConfigGet(v *viper.Viper, key string, w io.Writer) error {
	val := v.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(w, val)
	return nil
}

var settableKeys = []string{
	config.KeyRegions, config.KeyBuild, config.KeySession, config.KeyOutput,
	config.KeyTitle, config.KeyGalleryMode, config.KeyGallerySrcDir,
	config.KeyInterval, config.KeyMidpoint, config.KeyColor, config.KeyFontSize,
	config.KeyFontFamily, config.KeyResolution, config.KeyRange, config.KeyGeometry,
	config.KeyBrowserURL, config.KeyUsername, config.KeyPassword, config.KeyKerberos,
	config.KeyWorkers, config.KeyTimeout, config.KeyNoPDF, config.KeyLedger,
	config.KeyStrict, config.KeyVerbose,
}

func knownKey(key string) bool {
	for _, k := range settableKeys {
		if k == key {
			return true
		}
	}
	return false
}

func knownKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for _, k := range settableKeys {
		if !fileOnlyKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
