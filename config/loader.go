package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "krawl.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/krawl"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Environment variables overriding file configuration.
const (
	EnvWorkDir          = "KRAWLER_WORKDIR"
	EnvWikibaseHost     = "KRAWLER_WB_HOST"
	EnvWikibaseUser     = "KRAWLER_WB_USER"
	EnvWikibasePassword = "KRAWLER_WB_PASSWORD"
	EnvWikibaseToken    = "KRAWLER_WB_ACCESS_TOKEN"
	EnvGitHubKey        = "KRAWLER_GITHUB_KEY"
	EnvNATSURL          = "KRAWLER_NATS_URL"
	EnvThreads          = "N_THREADS"
	EnvMaxWFPages       = "MAX_WF_PAGES"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger     *slog.Logger
	configFile string
	getenv     func(string) string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigFile replaces project config discovery with an explicit file.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) {
		l.configFile = path
	}
}

// WithEnv sets the environment lookup (defaults to os.Getenv).
func WithEnv(getenv func(string) string) LoaderOption {
	return func(l *Loader) {
		l.getenv = getenv
	}
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger, getenv: os.Getenv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/krawl/config.yaml)
// 3. Project config (krawl.yaml in current or parent directories, or --config)
// 4. Environment variables
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Load user config
	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	// Load project config; an explicit file must exist
	if l.configFile != "" {
		projectConfig, err := LoadFromFile(l.configFile)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", l.configFile))
		config.Merge(projectConfig)
	} else if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if err := l.applyEnv(config); err != nil {
		return nil, err
	}

	// Fall back to the current directory
	if config.WorkDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			config.WorkDir = cwd
			l.logger.Debug("Using current directory as workdir", slog.String("path", cwd))
		}
	}

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *Loader) applyEnv(c *Config) error {
	setString(&c.WorkDir, l.getenv(EnvWorkDir))
	setString(&c.Wikibase.Host, l.getenv(EnvWikibaseHost))
	setString(&c.Wikibase.User, l.getenv(EnvWikibaseUser))
	setString(&c.Wikibase.Password, l.getenv(EnvWikibasePassword))
	setString(&c.Wikibase.AccessToken, l.getenv(EnvWikibaseToken))
	setString(&c.GitHub.Token, l.getenv(EnvGitHubKey))
	setString(&c.NATS.URL, l.getenv(EnvNATSURL))

	if v := l.getenv(EnvThreads); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreads, err)
		}
		c.Wikibase.PoolSize = n
	}
	if v := l.getenv(EnvMaxWFPages); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxWFPages, err)
		}
		c.Wikifactory.MaxPages = n
	}
	return nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()

	// Check if it already exists
	if _, err := os.Stat(userConfigPath); err == nil {
		return nil // Already exists
	}

	// Create default config
	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for krawl.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}
