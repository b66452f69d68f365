// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cohort

import (
	"os"
	"strings"
	"time"

	"github.com/featurebasedb/cohort/adapt"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/join"
	"github.com/featurebasedb/cohort/source"
	"github.com/featurebasedb/cohort/toml"
	gotoml "github.com/pelletier/go-toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables a config is read from.
const EnvPrefix = "COHORT"

// RegistryConfig places a catalog registry at a location.
type RegistryConfig struct {
	// Name is the catalog name of the registry, e.g. "BEF".
	Name string `toml:"name"`
	// Location is a file, directory or s3:// URL. Empty means the
	// registry's directory below the data directory.
	Location string `toml:"location"`
}

// Config represents the configuration of a Manager.
type Config struct {
	// DataDir is the directory registries are found in when they are
	// registered from the catalog.
	DataDir string `toml:"data-dir"`

	// CacheSize bounds both the raw and the filtered cache.
	CacheSize int `toml:"cache-size"`

	// Workers bounds parallel loads. Zero means one per CPU.
	Workers int `toml:"workers"`

	// AsyncConcurrency bounds asynchronous loads in flight. Zero means one
	// per CPU.
	AsyncConcurrency int `toml:"async-concurrency"`

	// LoadRate limits how many asynchronous loads start per second. Zero
	// means no limit.
	LoadRate float64 `toml:"load-rate"`

	// SlowLoadThreshold is how long a load may take before it is logged.
	SlowLoadThreshold toml.Duration `toml:"slow-load-threshold"`

	// DateFormats are the layouts text dates are parsed with, in order.
	DateFormats []string `toml:"date-formats"`

	Verbose bool `toml:"verbose"`

	S3 source.S3Config `toml:"s3"`

	Registries []RegistryConfig `toml:"registry"`
	Joins      []join.Join      `toml:"join"`
}

// NewConfig returns an instance of Config with default options.
func NewConfig() *Config {
	c := &Config{
		CacheSize:         DefaultCacheSize,
		SlowLoadThreshold: toml.Duration(30 * time.Second),
		DateFormats:       append([]string(nil), adapt.DefaultDateFormats...),
	}
	return c
}

// Flags returns a flag set bound to the fields of c. Table arrays have no
// flags; they come from the config file only.
func (c *Config) Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("cohort", pflag.ContinueOnError)
	flags.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory registries are found in.")
	flags.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "Entries held by each cache.")
	flags.IntVar(&c.Workers, "workers", c.Workers, "Parallel loads. Zero means one per CPU.")
	flags.IntVar(&c.AsyncConcurrency, "async-concurrency", c.AsyncConcurrency, "Asynchronous loads in flight. Zero means one per CPU.")
	flags.Float64Var(&c.LoadRate, "load-rate", c.LoadRate, "Asynchronous loads started per second. Zero means no limit.")
	flags.Var(&c.SlowLoadThreshold, "slow-load-threshold", "Loads taking longer than this are logged.")
	flags.StringSliceVar(&c.DateFormats, "date-formats", c.DateFormats, "Layouts text dates are parsed with, in order.")
	flags.BoolVar(&c.Verbose, "verbose", c.Verbose, "Enable verbose logging.")
	flags.StringVar(&c.S3.Region, "s3.region", c.S3.Region, "Region of the S3 bucket.")
	flags.StringVar(&c.S3.Endpoint, "s3.endpoint", c.S3.Endpoint, "S3 endpoint, for S3 compatible stores.")
	return flags
}

// LoadConfig returns the default config overlaid, lowest priority first,
// with the TOML file at path, COHORT_ environment variables and args.
// An empty path skips the file.
func LoadConfig(path string, args []string) (*Config, error) {
	c := NewConfig()
	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "parsing flags"), errors.ErrValidation)
	}
	if err := c.load(viper.New(), path, flags); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// load sets every flag that was not given explicitly from v, which reads
// the environment and the file at path.
func (c *Config) load(v *viper.Viper, path string, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := map[string]bool{"registry": true, "join": true}
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Newf(errors.ErrIO, "reading configuration file '%s': %v", path, err)
		}
		for _, key := range v.AllKeys() {
			if _, ok := validTags[key]; !ok {
				return errors.Newf(errors.ErrValidation, "invalid option in configuration file: %v", key)
			}
		}
		if err := c.loadTables(path); err != nil {
			return err
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			// A slice from the file would read as "" through GetString.
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = errors.WithCode(errors.Wrapf(err, "option %s", f.Name), errors.ErrValidation)
		}
	})
	return flagErr
}

// loadTables reads the [[registry]] and [[join]] arrays, which have no flag
// form.
func (c *Config) loadTables(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "reading %s", path), errors.ErrIO)
	}
	var tables struct {
		Registries []RegistryConfig `toml:"registry"`
		Joins      []join.Join      `toml:"join"`
	}
	if err := gotoml.Unmarshal(data, &tables); err != nil {
		return errors.WithCode(errors.Wrapf(err, "parsing %s", path), errors.ErrValidation)
	}
	c.Registries = tables.Registries
	c.Joins = tables.Joins
	return nil
}

// TOML renders c as a configuration file.
func (c *Config) TOML() ([]byte, error) {
	buf, err := gotoml.Marshal(*c)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling config")
	}
	return buf, nil
}

// Validate checks c for values no manager could run with.
func (c *Config) Validate() error {
	switch {
	case c.CacheSize < 1:
		return errors.Newf(errors.ErrValidation, "cache-size must be positive, got %d", c.CacheSize)
	case c.Workers < 0:
		return errors.Newf(errors.ErrValidation, "workers must not be negative, got %d", c.Workers)
	case c.AsyncConcurrency < 0:
		return errors.Newf(errors.ErrValidation, "async-concurrency must not be negative, got %d", c.AsyncConcurrency)
	case c.LoadRate < 0:
		return errors.Newf(errors.ErrValidation, "load-rate must not be negative, got %v", c.LoadRate)
	case c.SlowLoadThreshold < 0:
		return errors.Newf(errors.ErrValidation, "slow-load-threshold must not be negative, got %v", c.SlowLoadThreshold)
	}
	seen := make(map[string]bool, len(c.Registries))
	for _, r := range c.Registries {
		name := strings.ToUpper(r.Name)
		if name == "" {
			return errors.New(errors.ErrValidation, "registry without a name")
		}
		if seen[name] {
			return errors.Newf(errors.ErrValidation, "registry %s configured twice", r.Name)
		}
		seen[name] = true
		if r.Location == "" && c.DataDir == "" {
			return errors.Newf(errors.ErrValidation, "registry %s has no location and there is no data-dir", r.Name)
		}
	}
	for _, j := range c.Joins {
		if j.Child == "" || j.Parent == "" || j.ParentColumn == "" {
			return errors.Newf(errors.ErrValidation, "join %s needs child, parent and parent-column", j)
		}
	}
	return nil
}
