package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Wikibase.Host != "https://losh.ose-germany.de" {
		t.Errorf("expected default host https://losh.ose-germany.de, got %s", cfg.Wikibase.Host)
	}
	if cfg.Wikibase.ReconcileProperty != "P1344" {
		t.Errorf("expected reconcile property P1344, got %s", cfg.Wikibase.ReconcileProperty)
	}
	if cfg.Wikibase.PoolSize != 4 {
		t.Errorf("expected pool size 4, got %d", cfg.Wikibase.PoolSize)
	}
	if cfg.Wikibase.MaxSchemaRepairs != 40 {
		t.Errorf("expected 40 schema repairs, got %d", cfg.Wikibase.MaxSchemaRepairs)
	}
	if cfg.Wikifactory.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Wikifactory.BatchSize)
	}
	if cfg.Wikifactory.UserAgent != "oshi-krawl" {
		t.Errorf("expected user agent oshi-krawl, got %s", cfg.Wikifactory.UserAgent)
	}
	if cfg.Export.Format != "turtle" {
		t.Errorf("expected turtle export, got %s", cfg.Export.Format)
	}
	if cfg.NATS.URL != "" {
		t.Error("expected graph publishing disabled by default")
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
			name:    "missing workdir",
			modify:  func(c *Config) { c.WorkDir = "" },
			wantErr: true,
		},
		{
			name:    "relative wikibase host",
			modify:  func(c *Config) { c.Wikibase.Host = "losh.example.org" },
			wantErr: true,
		},
		{
			name:    "missing reconcile property",
			modify:  func(c *Config) { c.Wikibase.ReconcileProperty = "" },
			wantErr: true,
		},
		{
			name:    "empty pool",
			modify:  func(c *Config) { c.Wikibase.PoolSize = 0 },
			wantErr: true,
		},
		{
			name:    "negative repairs",
			modify:  func(c *Config) { c.Wikibase.MaxSchemaRepairs = -1 },
			wantErr: true,
		},
		{
			name:    "zero repairs",
			modify:  func(c *Config) { c.Wikibase.MaxSchemaRepairs = 0 },
			wantErr: false,
		},
		{
			name:    "zero batch size",
			modify:  func(c *Config) { c.Wikifactory.BatchSize = 0 },
			wantErr: true,
		},
		{
			name:    "negative page cap",
			modify:  func(c *Config) { c.Wikifactory.MaxPages = -2 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.WorkDir = "/tmp/krawl"
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
workdir: "/data/krawl"
wikibase:
  host: "https://wikibase.test"
  user: "bot"
  pool_size: 8
  timeout: 2m
github:
  extensions:
    - toml
nats:
  url: "nats://test:4222"
watch:
  debounce: 1s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.WorkDir != "/data/krawl" {
		t.Errorf("expected workdir /data/krawl, got %s", cfg.WorkDir)
	}
	if cfg.Wikibase.Host != "https://wikibase.test" {
		t.Errorf("expected host https://wikibase.test, got %s", cfg.Wikibase.Host)
	}
	if cfg.Wikibase.PoolSize != 8 {
		t.Errorf("expected pool size 8, got %d", cfg.Wikibase.PoolSize)
	}
	if cfg.Wikibase.Timeout != 2*time.Minute {
		t.Errorf("expected timeout 2m, got %v", cfg.Wikibase.Timeout)
	}
	// Unset keys keep their defaults
	if cfg.Wikibase.ReconcileProperty != "P1344" {
		t.Errorf("expected default reconcile property, got %s", cfg.Wikibase.ReconcileProperty)
	}
	if len(cfg.GitHub.Extensions) != 1 {
		t.Errorf("expected 1 extension, got %d", len(cfg.GitHub.Extensions))
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected debounce 1s, got %v", cfg.Watch.Debounce)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		WorkDir: "/override/path",
		Wikibase: WikibaseConfig{
			User: "bot",
		},
		Wikifactory: WikifactoryConfig{
			MaxPages: 3,
		},
	}

	base.Merge(override)

	if base.Wikibase.User != "bot" {
		t.Errorf("expected user bot, got %s", base.Wikibase.User)
	}
	// Host should remain from base since override didn't set it
	if base.Wikibase.Host != "https://losh.ose-germany.de" {
		t.Errorf("expected host to remain default, got %s", base.Wikibase.Host)
	}
	if base.WorkDir != "/override/path" {
		t.Errorf("expected workdir /override/path, got %s", base.WorkDir)
	}
	if base.Wikifactory.MaxPages != 3 {
		t.Errorf("expected 3 pages, got %d", base.Wikifactory.MaxPages)
	}
	if base.Wikifactory.BatchSize != 50 {
		t.Errorf("expected batch size to remain 50, got %d", base.Wikifactory.BatchSize)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Wikibase.User = "saved-bot"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Wikibase.User != "saved-bot" {
		t.Errorf("expected user saved-bot, got %s", loaded.Wikibase.User)
	}
}

func TestLoaderPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	userConfig := &Config{Wikibase: WikibaseConfig{User: "user-bot", Password: "user-secret"}}
	if err := userConfig.SaveToFile(filepath.Join(home, UserConfigDir, UserConfigFile)); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	projectPath := filepath.Join(project, ProjectConfigFile)
	content := "workdir: \"/from/project\"\nwikibase:\n  user: \"project-bot\"\n"
	if err := os.WriteFile(projectPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	env := map[string]string{
		EnvWikibasePassword: "env-secret",
		EnvThreads:          "12",
		EnvMaxWFPages:       "5",
		EnvGitHubKey:        "ghp_test",
	}
	l := NewLoader(nil, WithConfigFile(projectPath), WithEnv(func(k string) string { return env[k] }))

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WorkDir != "/from/project" {
		t.Errorf("expected workdir from project, got %s", cfg.WorkDir)
	}
	if cfg.Wikibase.User != "project-bot" {
		t.Errorf("expected project user to win over user file, got %s", cfg.Wikibase.User)
	}
	if cfg.Wikibase.Password != "env-secret" {
		t.Errorf("expected environment password, got %s", cfg.Wikibase.Password)
	}
	if cfg.Wikibase.PoolSize != 12 {
		t.Errorf("expected N_THREADS pool size 12, got %d", cfg.Wikibase.PoolSize)
	}
	if cfg.Wikifactory.MaxPages != 5 {
		t.Errorf("expected 5 pages, got %d", cfg.Wikifactory.MaxPages)
	}
	if cfg.GitHub.Token != "ghp_test" {
		t.Errorf("expected GitHub token from environment, got %s", cfg.GitHub.Token)
	}
}

func TestLoaderBadEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	env := map[string]string{EnvWorkDir: "/w", EnvThreads: "many"}
	l := NewLoader(nil, WithEnv(func(k string) string { return env[k] }))

	if _, err := l.Load(); err == nil {
		t.Error("expected error for non-numeric N_THREADS")
	}
}

func TestLoaderMissingConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	l := NewLoader(nil, WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")), WithEnv(func(string) string { return "" }))

	if _, err := l.Load(); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
