// Package config loads openpkg settings from an openpkg.config file in the
// project directory and OPENPKG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/spf13/viper"
)

// FileName is the config file base name; json, yaml and toml extensions are
// recognised.
const FileName = "openpkg.config"

// EnvPrefix prefixes environment overrides, e.g. OPENPKG_LOGGING_LEVEL.
const EnvPrefix = "OPENPKG"

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

var (
	schemaModes   = []string{"static", "runtime", "hybrid"}
	logLevels     = []string{"debug", "info", "warn", "error", "fatal"}
	logFormats    = []string{"text", "json", "logfmt"}
	outputFormats = []string{"json", "yaml", "text"}
)

// Config is the complete openpkg configuration.
type Config struct {
	// ResolveExternalTypes is nil unless set, which lets extraction decide
	// from the presence of node_modules.
	ResolveExternalTypes *bool    `json:"resolveExternalTypes,omitempty" mapstructure:"resolveExternalTypes"`
	SchemaExtraction     string   `json:"schemaExtraction" mapstructure:"schemaExtraction"`
	Docs                 bool     `json:"docs" mapstructure:"docs"`
	Include              []string `json:"include,omitempty" mapstructure:"include"`
	Exclude              []string `json:"exclude,omitempty" mapstructure:"exclude"`
	Registry             string   `json:"registry" mapstructure:"registry"`
	CacheSize            int      `json:"cacheSize" mapstructure:"cacheSize"`
	// CacheDir enables the on-disk spec cache when set.
	CacheDir string `json:"cacheDir,omitempty" mapstructure:"cacheDir"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Output  OutputConfig  `json:"output" mapstructure:"output"`
}

// LoggingConfig controls the binary's log handler.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// OutputConfig controls how specs and diffs are rendered.
type OutputConfig struct {
	Format string `json:"format" mapstructure:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		SchemaExtraction: "static",
		Docs:             true,
		Registry:         DefaultRegistry,
		CacheSize:        64,
		Logging:          LoggingConfig{Level: "info", Format: "text"},
		Output:           OutputConfig{Format: "json"},
	}
}

// LoadOptions selects where configuration is read from.
type LoadOptions struct {
	// Dir is searched for openpkg.config.{json,yaml,toml}.
	Dir string
	// File, when set, is read instead of searching Dir and must exist.
	File string
}

// Load reads configuration, applies environment overrides and validates the
// result. A missing config file in Dir is not an error.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default exists for the tri-state key, so AutomaticEnv alone would
	// not surface it to Unmarshal.
	if err := v.BindEnv("resolveExternalTypes"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(FileName)
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("schemaExtraction", d.SchemaExtraction)
	v.SetDefault("docs", d.Docs)
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("registry", d.Registry)
	v.SetDefault("cacheSize", d.CacheSize)
	v.SetDefault("cacheDir", d.CacheDir)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("output.format", d.Output.Format)
}

func (c *Config) normalize() {
	c.SchemaExtraction = strings.ToLower(strings.TrimSpace(c.SchemaExtraction))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.Registry = strings.TrimRight(strings.TrimSpace(c.Registry), "/")
	if len(c.Include) == 0 {
		c.Include = nil
	}
	if len(c.Exclude) == 0 {
		c.Exclude = nil
	}
}

// Validate checks enumerated fields and glob syntax.
func (c *Config) Validate() error {
	checks := []struct {
		field, value string
		allowed      []string
	}{
		{"schemaExtraction", c.SchemaExtraction, schemaModes},
		{"logging.level", c.Logging.Level, logLevels},
		{"logging.format", c.Logging.Format, logFormats},
		{"output.format", c.Output.Format, outputFormats},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allowed, chk.value) {
			return &ConfigError{
				Field:   chk.field,
				Message: fmt.Sprintf("%q is not one of %s", chk.value, strings.Join(chk.allowed, ", ")),
			}
		}
	}
	if c.CacheSize < 0 {
		return &ConfigError{Field: "cacheSize", Message: "must not be negative"}
	}
	if c.Registry == "" {
		return &ConfigError{Field: "registry", Message: "must not be empty"}
	}
	for field, patterns := range map[string][]string{"include": c.Include, "exclude": c.Exclude} {
		for i, p := range patterns {
			if _, err := doublestar.Match(p, ""); err != nil {
				return &ConfigError{Field: fmt.Sprintf("%s[%d]", field, i), Message: err.Error()}
			}
		}
	}
	return nil
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
