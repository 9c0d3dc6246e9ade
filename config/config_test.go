package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/ldpatch/ldpatch"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.JSONLD.Format != jsonld.FormatNQuads {
		t.Errorf("expected default format %s, got %s", jsonld.FormatNQuads, cfg.JSONLD.Format)
	}
	if cfg.JSONLD.ProcessingMode != jsonld.ProcessingMode11 {
		t.Errorf("expected processing mode %s, got %s", jsonld.ProcessingMode11, cfg.JSONLD.ProcessingMode)
	}
	if cfg.NATS.SubjectPrefix != "ldpatch" {
		t.Errorf("expected subject prefix ldpatch, got %s", cfg.NATS.SubjectPrefix)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "format alias",
			modify:  func(c *Config) { c.JSONLD.Format = jsonld.FormatCanonicalNQuads },
			wantErr: false,
		},
		{
			name:    "unsupported format",
			modify:  func(c *Config) { c.JSONLD.Format = "text/turtle" },
			wantErr: true,
		},
		{
			name:    "bad processing mode",
			modify:  func(c *Config) { c.JSONLD.ProcessingMode = "json-ld-2.0" },
			wantErr: true,
		},
		{
			name:    "bad embed",
			modify:  func(c *Config) { c.JSONLD.Embed = "@sometimes" },
			wantErr: true,
		},
		{
			name:    "unimplemented embed flag",
			modify:  func(c *Config) { c.JSONLD.Embed = "@once" },
			wantErr: true,
		},
		{
			name:    "bad unwrap",
			modify:  func(c *Config) { c.JSONLD.Unwrap = "always" },
			wantErr: true,
		},
		{
			name:    "missing subject prefix",
			modify:  func(c *Config) { c.NATS.SubjectPrefix = "" },
			wantErr: true,
		},
		{
			name:    "wildcard subject prefix",
			modify:  func(c *Config) { c.NATS.SubjectPrefix = "ldpatch.>" },
			wantErr: true,
		},
		{
			name:    "metrics without address",
			modify:  func(c *Config) { c.Metrics.Address = "" },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			modify:  func(c *Config) { c.Watch.DebounceDelay = -time.Second },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
jsonld:
  base: "http://example.org/"
  embed: "@always"
  explicit: true
  unwrap: never
  preload:
    "https://example.org/ctx": ctx.jsonld
patch:
  moves: true
nats:
  url: "nats://test:4222"
  request_timeout: 5s
watch:
  debounce_delay: 1s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.JSONLD.Base != "http://example.org/" {
		t.Errorf("expected base http://example.org/, got %s", cfg.JSONLD.Base)
	}
	if !cfg.JSONLD.Explicit {
		t.Error("expected explicit framing")
	}
	policy, err := cfg.UnwrapPolicy()
	if err != nil || policy != ldpatch.UnwrapNever {
		t.Errorf("expected unwrap never, got %v (%v)", policy, err)
	}
	if cfg.NATS.RequestTimeout != 5*time.Second {
		t.Errorf("expected request timeout 5s, got %v", cfg.NATS.RequestTimeout)
	}
	if cfg.Watch.DebounceDelay != time.Second {
		t.Errorf("expected debounce 1s, got %v", cfg.Watch.DebounceDelay)
	}
	if cfg.JSONLD.Format != jsonld.FormatNQuads {
		t.Errorf("expected default format to survive, got %s", cfg.JSONLD.Format)
	}
	if got := cfg.JSONLD.Preload["https://example.org/ctx"]; got != filepath.Join(tmpDir, "ctx.jsonld") {
		t.Errorf("expected preload relative to the config file, got %s", got)
	}
	if len(cfg.EngineOptions()) != 1 {
		t.Errorf("expected 1 engine option, got %d", len(cfg.EngineOptions()))
	}

	opts := cfg.ProcessorOptions()
	if opts.Embed != "@always" || opts.Base != "http://example.org/" {
		t.Errorf("unexpected processor options: %+v", opts)
	}
}

func TestLoadFromFileURLDisablesEmbedded(t *testing.T) {
	dir := t.TempDir()

	remote := filepath.Join(dir, "remote.yaml")
	if err := os.WriteFile(remote, []byte("nats:\n  url: \"nats://remote:4222\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(remote)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.NATS.Embedded {
		t.Error("setting a NATS URL should disable the embedded server")
	}
	if cfg.JSONLD.Format != jsonld.FormatNQuads {
		t.Errorf("expected format to remain default, got %s", cfg.JSONLD.Format)
	}

	both := filepath.Join(dir, "both.yaml")
	if err := os.WriteFile(both, []byte("nats:\n  url: \"nats://remote:4222\"\n  embedded: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromFile(both)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if !cfg.NATS.Embedded {
		t.Error("an explicit embedded setting should win over the URL rule")
	}
}

func TestLoaderOverlayCanDisableSettings(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()

	userYAML := "jsonld:\n  explicit: true\npatch:\n  moves: true\n"
	userPath := filepath.Join(home, UserConfigDir, UserConfigFile)
	if err := os.MkdirAll(filepath.Dir(userPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userPath, []byte(userYAML), 0644); err != nil {
		t.Fatal(err)
	}

	projectYAML := "jsonld:\n  explicit: false\nmetrics:\n  enabled: false\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte(projectYAML), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.homeDir = home
	l.workDir = project

	cfg, err := l.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Enabled {
		t.Error("project config should disable metrics")
	}
	if cfg.Metrics.Address != ":9090" {
		t.Errorf("expected default metrics address to survive, got %s", cfg.Metrics.Address)
	}
	if cfg.JSONLD.Explicit {
		t.Error("project config should switch explicit framing back off")
	}
	if !cfg.Patch.Moves {
		t.Error("user setting not named by the project config should survive")
	}
}

func TestLoaderResolvesPreloadAgainstDeclaringFile(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	contexts := filepath.Join(home, UserConfigDir, "contexts")
	if err := os.MkdirAll(contexts, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(contexts, "user.jsonld"), []byte(`{"@context":{}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(project, "project.jsonld"), []byte(`{"@context":{}}`), 0644); err != nil {
		t.Fatal(err)
	}

	userYAML := "jsonld:\n  preload:\n    \"https://example.org/user\": contexts/user.jsonld\n"
	if err := os.WriteFile(filepath.Join(home, UserConfigDir, UserConfigFile), []byte(userYAML), 0644); err != nil {
		t.Fatal(err)
	}
	projectYAML := "jsonld:\n  preload:\n    \"https://example.org/project\": project.jsonld\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte(projectYAML), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.homeDir = home
	l.workDir = project

	cfg, err := l.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.JSONLD.Preload["https://example.org/user"]; got != filepath.Join(contexts, "user.jsonld") {
		t.Errorf("user preload resolved to %s", got)
	}
	if got := cfg.JSONLD.Preload["https://example.org/project"]; got != filepath.Join(project, "project.jsonld") {
		t.Errorf("project preload resolved to %s", got)
	}

	docs, err := LoadPreloadedContexts(cfg, t.TempDir())
	if err != nil {
		t.Fatalf("LoadPreloadedContexts() error = %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 preloaded contexts, got %d", len(docs))
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.JSONLD.Base = "http://saved.example/"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.JSONLD.Base != "http://saved.example/" {
		t.Errorf("expected base http://saved.example/, got %s", loaded.JSONLD.Base)
	}
}

func TestLoaderLayering(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	userCfg := DefaultConfig()
	userCfg.JSONLD.Base = "http://user.example/"
	userCfg.NATS.SubjectPrefix = "user"
	if err := userCfg.SaveToFile(filepath.Join(home, UserConfigDir, UserConfigFile)); err != nil {
		t.Fatal(err)
	}

	projectYAML := "nats:\n  subject_prefix: project\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte(projectYAML), 0644); err != nil {
		t.Fatal(err)
	}

	explicitPath := filepath.Join(t.TempDir(), "explicit.yaml")
	if err := os.WriteFile(explicitPath, []byte("jsonld:\n  embed: \"@never\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.homeDir = home
	l.workDir = nested

	cfg, err := l.Load(explicitPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.JSONLD.Base != "http://user.example/" {
		t.Errorf("expected user base, got %s", cfg.JSONLD.Base)
	}
	if cfg.NATS.SubjectPrefix != "project" {
		t.Errorf("expected project subject prefix, got %s", cfg.NATS.SubjectPrefix)
	}
	if cfg.JSONLD.Embed != "@never" {
		t.Errorf("expected explicit embed, got %s", cfg.JSONLD.Embed)
	}

	if _, err := l.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestEnsureUserConfig(t *testing.T) {
	l := NewLoader(nil)
	l.homeDir = t.TempDir()

	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(l.homeDir, UserConfigDir, UserConfigFile)); err != nil {
		t.Errorf("expected user config to exist: %v", err)
	}
	if err := l.EnsureUserConfig(); err != nil {
		t.Errorf("second EnsureUserConfig() error = %v", err)
	}
}

func TestLoadPreloadedContexts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ctx.jsonld"), []byte(`{"@context":{"@vocab":"http://example.org/"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.JSONLD.Preload = map[string]string{"https://example.org/ctx": "ctx.jsonld"}

	docs, err := LoadPreloadedContexts(cfg, dir)
	if err != nil {
		t.Fatalf("LoadPreloadedContexts() error = %v", err)
	}
	if _, ok := docs["https://example.org/ctx"]; !ok {
		t.Error("expected preloaded context")
	}

	cfg.JSONLD.Preload["https://example.org/missing"] = "missing.jsonld"
	if _, err := LoadPreloadedContexts(cfg, dir); err == nil {
		t.Error("expected error for missing context file")
	}
}
