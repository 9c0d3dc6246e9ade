package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "ldpatch.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/ldpatch"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger  *slog.Logger
	homeDir string
	workDir string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/ldpatch/config.yaml)
// 3. Project config (ldpatch.yaml in current or parent directories)
// 4. Explicit config file, when path is non-empty
//
// Each layer overrides exactly the keys it sets, including false and zero values.
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfigPath != "" {
		if err := applyLayer(config, userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		if err := applyLayer(config, projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if path != "" {
		if err := applyLayer(config, path); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", path))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return fmt.Errorf("cannot determine home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil // Already exists
	}

	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// layerKeys captures the keys of a layer that need more than a plain overwrite.
type layerKeys struct {
	JSONLD struct {
		Preload map[string]string `yaml:"preload"`
	} `yaml:"jsonld"`
	NATS struct {
		URL      *string `yaml:"url"`
		Embedded *bool   `yaml:"embedded"`
	} `yaml:"nats"`
}

// applyLayer decodes the file at path onto config. Relative preload paths
// are resolved against the file's directory, and a layer that sets
// nats.url without nats.embedded switches the embedded server off.
func applyLayer(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var keys layerKeys
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if keys.NATS.URL != nil && *keys.NATS.URL != "" && keys.NATS.Embedded == nil {
		config.NATS.Embedded = false
	}

	if len(keys.JSONLD.Preload) > 0 {
		dir, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return fmt.Errorf("resolve config directory: %w", err)
		}
		for url, file := range keys.JSONLD.Preload {
			if !filepath.IsAbs(file) {
				config.JSONLD.Preload[url] = filepath.Join(dir, file)
			}
		}
	}

	return nil
}

// LoadPreloadedContexts reads every context file listed in jsonld.preload,
// keyed by context URL. Paths loaded from config files are already absolute;
// any other relative path is resolved against baseDir.
func LoadPreloadedContexts(cfg *Config, baseDir string) (map[string]any, error) {
	docs := make(map[string]any, len(cfg.JSONLD.Preload))
	for url, path := range cfg.JSONLD.Preload {
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read preloaded context %s: %w", url, err)
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse preloaded context %s: %w", url, err)
		}
		docs[url] = doc
	}
	return docs, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.homeDir
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for ldpatch.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	dir := l.workDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
