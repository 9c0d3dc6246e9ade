// Package config provides configuration loading and management for ldpatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/ldpatch/ldpatch"
	"github.com/c360studio/ldpatch/patch"
	"gopkg.in/yaml.v3"
)

// Config represents the complete ldpatch configuration
type Config struct {
	JSONLD  JSONLDConfig  `yaml:"jsonld"`
	Patch   PatchConfig   `yaml:"patch"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Watch   WatchConfig   `yaml:"watch"`
}

// JSONLDConfig configures canonicalization and framing
type JSONLDConfig struct {
	// Base is the base IRI for relative identifiers
	Base string `yaml:"base"`
	// ProcessingMode is json-ld-1.0 or json-ld-1.1 (default: json-ld-1.1)
	ProcessingMode string `yaml:"processing_mode"`
	// Format is the canonical serialization format (default: application/n-quads)
	Format string `yaml:"format"`
	// Embed is the default @embed flag for framing
	Embed string `yaml:"embed"`
	// Explicit limits framed output to properties named in the frame
	Explicit bool `yaml:"explicit"`
	// OmitDefault drops missing frame properties instead of emitting null
	OmitDefault bool `yaml:"omit_default"`
	// RequireAll requires every frame property to match
	RequireAll bool `yaml:"require_all"`
	// Unwrap is the single-root unwrap policy: single-root or never
	Unwrap string `yaml:"unwrap"`
	// Preload maps context URLs to local files served without network access
	Preload map[string]string `yaml:"preload"`
}

// PatchConfig configures the patch engine
type PatchConfig struct {
	// AllowMissingRemove makes remove on a missing path a no-op
	AllowMissingRemove bool `yaml:"allow_missing_remove"`
	// EnsurePathOnAdd creates missing parents for add
	EnsurePathOnAdd bool `yaml:"ensure_path_on_add"`
	// Moves lets diff emit move and copy operations
	Moves bool `yaml:"moves"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
	// SubjectPrefix prefixes the apply, diff and project subjects
	SubjectPrefix string `yaml:"subject_prefix"`
	// RequestTimeout bounds a single request
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Enabled exposes /metrics over HTTP
	Enabled bool `yaml:"enabled"`
	// Address is the listen address for the metrics server
	Address string `yaml:"address"`
}

// WatchConfig configures document watching
type WatchConfig struct {
	// DebounceDelay is how long to wait for more writes before diffing
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		JSONLD: JSONLDConfig{
			ProcessingMode: jsonld.ProcessingMode11,
			Format:         jsonld.DefaultFormat,
			Unwrap:         ldpatch.UnwrapSingleRoot.String(),
		},
		NATS: NATSConfig{
			URL:            "",
			Embedded:       true,
			SubjectPrefix:  "ldpatch",
			RequestTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
		Watch: WatchConfig{
			DebounceDelay: 300 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := jsonld.ResolveFormat(c.JSONLD.Format); err != nil {
		return fmt.Errorf("jsonld.format: %w", err)
	}
	switch c.JSONLD.ProcessingMode {
	case "", jsonld.ProcessingMode10, jsonld.ProcessingMode11:
	default:
		return fmt.Errorf("jsonld.processing_mode must be %s or %s", jsonld.ProcessingMode10, jsonld.ProcessingMode11)
	}
	if err := jsonld.ValidateEmbed(c.JSONLD.Embed); err != nil {
		return fmt.Errorf("jsonld.embed: %w", err)
	}
	if _, err := c.UnwrapPolicy(); err != nil {
		return err
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats.subject_prefix is required")
	}
	if strings.ContainsAny(c.NATS.SubjectPrefix, " *>") {
		return fmt.Errorf("nats.subject_prefix must not contain spaces or wildcards")
	}
	if c.NATS.RequestTimeout < 0 {
		return fmt.Errorf("nats.request_timeout must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled")
	}
	if c.Watch.DebounceDelay < 0 {
		return fmt.Errorf("watch.debounce_delay must not be negative")
	}
	return nil
}

// ProcessorOptions returns the JSON-LD options described by the config
func (c *Config) ProcessorOptions() jsonld.Options {
	return jsonld.Options{
		Base:           c.JSONLD.Base,
		ProcessingMode: c.JSONLD.ProcessingMode,
		Format:         c.JSONLD.Format,
		Embed:          c.JSONLD.Embed,
		Explicit:       c.JSONLD.Explicit,
		OmitDefault:    c.JSONLD.OmitDefault,
		RequireAll:     c.JSONLD.RequireAll,
	}
}

// EngineOptions returns the patch engine options described by the config
func (c *Config) EngineOptions() []patch.EngineOption {
	var opts []patch.EngineOption
	if c.Patch.AllowMissingRemove {
		opts = append(opts, patch.WithAllowMissingRemove())
	}
	if c.Patch.EnsurePathOnAdd {
		opts = append(opts, patch.WithEnsurePathOnAdd())
	}
	if c.Patch.Moves {
		opts = append(opts, patch.WithMoves())
	}
	return opts
}

// UnwrapPolicy parses the configured unwrap policy
func (c *Config) UnwrapPolicy() (ldpatch.UnwrapPolicy, error) {
	switch c.JSONLD.Unwrap {
	case "", ldpatch.UnwrapSingleRoot.String():
		return ldpatch.UnwrapSingleRoot, nil
	case ldpatch.UnwrapNever.String():
		return ldpatch.UnwrapNever, nil
	default:
		return 0, fmt.Errorf("jsonld.unwrap must be %s or %s", ldpatch.UnwrapSingleRoot, ldpatch.UnwrapNever)
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyLayer(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
