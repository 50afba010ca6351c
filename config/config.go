// Package config provides configuration loading and management for krawl.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete krawl configuration
type Config struct {
	// WorkDir holds crawled files, normalized manifests and the ledger
	WorkDir     string            `yaml:"workdir"`
	Wikibase    WikibaseConfig    `yaml:"wikibase"`
	GitHub      GitHubConfig      `yaml:"github"`
	Wikifactory WikifactoryConfig `yaml:"wikifactory"`
	Licenses    LicensesConfig    `yaml:"licenses"`
	Export      ExportConfig      `yaml:"export"`
	NATS        NATSConfig        `yaml:"nats"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Watch       WatchConfig       `yaml:"watch"`
}

// WikibaseConfig configures the knowledge base entities are pushed to
type WikibaseConfig struct {
	// Host is the base URL of the Wikibase instance
	Host string `yaml:"host"`
	// User and Password are bot password credentials; empty User skips login
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// AccessToken is sent as a bearer token when set
	AccessToken string `yaml:"access_token"`
	// ReconcileProperty holds the canonical URI of every entity
	ReconcileProperty string `yaml:"reconcile_property"`
	// PoolSize is the worker count and connection pool size
	PoolSize int `yaml:"pool_size"`
	// MaxSchemaRepairs bounds property creations per entity
	MaxSchemaRepairs int `yaml:"max_schema_repairs"`
	// SocketRetries is the number of retries on connection failures
	SocketRetries int `yaml:"socket_retries"`
	// Timeout bounds a single request
	Timeout time.Duration `yaml:"timeout"`
}

// GitHubConfig configures the GitHub crawl
type GitHubConfig struct {
	Token   string `yaml:"token"`
	APIURL  string `yaml:"api_url"`
	RawHost string `yaml:"raw_host"`
	// Extensions are the manifest formats searched for
	Extensions []string `yaml:"extensions"`
}

// WikifactoryConfig configures the Wikifactory crawl
type WikifactoryConfig struct {
	URL       string `yaml:"url"`
	BatchSize int    `yaml:"batch_size"`
	// MaxPages caps the pages fetched (0 = unlimited)
	MaxPages  int    `yaml:"max_pages"`
	UserAgent string `yaml:"user_agent"`
	From      string `yaml:"from"`
}

// LicensesConfig points at the license lists
type LicensesConfig struct {
	SPDXURL      string `yaml:"spdx_url"`
	BlacklistURL string `yaml:"blacklist_url"`
}

// ExportConfig configures RDF serialization
type ExportConfig struct {
	// Format is turtle, ntriples or jsonld
	Format string `yaml:"format"`
}

// NATSConfig configures graph event publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address of /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// WatchConfig configures push --watch
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		WorkDir: "",
		Wikibase: WikibaseConfig{
			Host:              "https://losh.ose-germany.de",
			ReconcileProperty: "P1344",
			PoolSize:          4,
			MaxSchemaRepairs:  40,
			SocketRetries:     3,
			Timeout:           60 * time.Second,
		},
		GitHub: GitHubConfig{
			APIURL:     "https://api.github.com",
			RawHost:    "https://raw.githubusercontent.com",
			Extensions: []string{"toml", "yml", "json"},
		},
		Wikifactory: WikifactoryConfig{
			URL:       "https://wikifactory.com/api/graphql",
			BatchSize: 50,
			MaxPages:  0,
			UserAgent: "oshi-krawl",
		},
		Licenses: LicensesConfig{
			SPDXURL:      "https://raw.githubusercontent.com/spdx/license-list-data/master/json/licenses.json",
			BlacklistURL: "https://raw.githubusercontent.com/OPEN-NEXT/LOSH/master/Data%20Mapping/SPDX-blacklist",
		},
		Export: ExportConfig{
			Format: "turtle",
		},
		NATS: NATSConfig{
			Subject: "graph.ingest.entity",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("workdir is required")
	}
	if u, err := url.Parse(c.Wikibase.Host); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("wikibase.host must be an absolute URL")
	}
	if c.Wikibase.ReconcileProperty == "" {
		return fmt.Errorf("wikibase.reconcile_property is required")
	}
	if c.Wikibase.PoolSize < 1 {
		return fmt.Errorf("wikibase.pool_size must be at least 1")
	}
	if c.Wikibase.MaxSchemaRepairs < 0 {
		return fmt.Errorf("wikibase.max_schema_repairs must not be negative")
	}
	if c.Wikibase.SocketRetries < 0 {
		return fmt.Errorf("wikibase.socket_retries must not be negative")
	}
	if c.Wikifactory.BatchSize < 1 {
		return fmt.Errorf("wikifactory.batch_size must be at least 1")
	}
	if c.Wikifactory.MaxPages < 0 {
		return fmt.Errorf("wikifactory.max_pages must not be negative")
	}
	return nil
}

// LedgerPath returns the dedup database inside the work directory
func (c *Config) LedgerPath() string {
	return filepath.Join(c.WorkDir, "crawl.sqlite")
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
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

	// Credentials may be stored here
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.WorkDir != "" {
		c.WorkDir = other.WorkDir
	}

	// Wikibase
	setString(&c.Wikibase.Host, other.Wikibase.Host)
	setString(&c.Wikibase.User, other.Wikibase.User)
	setString(&c.Wikibase.Password, other.Wikibase.Password)
	setString(&c.Wikibase.AccessToken, other.Wikibase.AccessToken)
	setString(&c.Wikibase.ReconcileProperty, other.Wikibase.ReconcileProperty)
	setInt(&c.Wikibase.PoolSize, other.Wikibase.PoolSize)
	setInt(&c.Wikibase.MaxSchemaRepairs, other.Wikibase.MaxSchemaRepairs)
	setInt(&c.Wikibase.SocketRetries, other.Wikibase.SocketRetries)
	if other.Wikibase.Timeout != 0 {
		c.Wikibase.Timeout = other.Wikibase.Timeout
	}

	// GitHub
	setString(&c.GitHub.Token, other.GitHub.Token)
	setString(&c.GitHub.APIURL, other.GitHub.APIURL)
	setString(&c.GitHub.RawHost, other.GitHub.RawHost)
	if len(other.GitHub.Extensions) > 0 {
		c.GitHub.Extensions = other.GitHub.Extensions
	}

	// Wikifactory
	setString(&c.Wikifactory.URL, other.Wikifactory.URL)
	setInt(&c.Wikifactory.BatchSize, other.Wikifactory.BatchSize)
	setInt(&c.Wikifactory.MaxPages, other.Wikifactory.MaxPages)
	setString(&c.Wikifactory.UserAgent, other.Wikifactory.UserAgent)
	setString(&c.Wikifactory.From, other.Wikifactory.From)

	// Licenses
	setString(&c.Licenses.SPDXURL, other.Licenses.SPDXURL)
	setString(&c.Licenses.BlacklistURL, other.Licenses.BlacklistURL)

	setString(&c.Export.Format, other.Export.Format)

	// NATS
	setString(&c.NATS.URL, other.NATS.URL)
	setString(&c.NATS.Subject, other.NATS.Subject)

	setString(&c.Metrics.Addr, other.Metrics.Addr)

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
