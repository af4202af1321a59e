package config

import (
	"fmt"
	"os"
	"path/filepath"

	"docs-sentinel/pkg/models"

	"gopkg.in/yaml.v3"
)

// Config is the complete docs-sentinel configuration.
type Config struct {
	Mirror  MirrorConfig        `yaml:"mirror"`
	Targets []models.SyncTarget `yaml:"targets"`
	Fetch   FetchConfig         `yaml:"fetch"`
	Report  ReportConfig        `yaml:"report"`
	GitHub  GitHubConfig        `yaml:"github"`
	Indexer IndexerConfig       `yaml:"indexer"`
	DB      DBConfig            `yaml:"db"`
}

// MirrorConfig configures the local mirror and the worker pool.
type MirrorConfig struct {
	Root              string   `yaml:"root"`
	Concurrency       int      `yaml:"concurrency"`
	ProgressEvery     int      `yaml:"progress_every"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// FetchConfig configures timeouts, retry counts, and backoff. The manifest
// and content fetches carry independent budgets.
type FetchConfig struct {
	APIBaseURL          string `yaml:"api_base_url"`
	RawBaseURL          string `yaml:"raw_base_url"`
	ManifestTimeoutSecs int    `yaml:"manifest_timeout_secs"`
	ManifestRetries     int    `yaml:"manifest_retries"`
	ContentTimeoutSecs  int    `yaml:"content_timeout_secs"`
	ContentRetries      int    `yaml:"content_retries"`
	BackoffSecs         int    `yaml:"backoff_secs"`
}

// ReportConfig configures the threat report artifact.
type ReportConfig struct {
	Path string `yaml:"path"`
}

// GitHubConfig configures authentication: token or GitHub App.
type GitHubConfig struct {
	Token          string `yaml:"token"`
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// IndexerConfig configures the external indexing tool invoked after a
// successful mirror run. Empty command disables the step.
type IndexerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Glob    string   `yaml:"glob"`
}

// DBConfig configures the optional detection history database.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Load reads, parses, defaults, and validates the configuration file.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandEnv expands environment variables in string fields, so credentials
// can live outside the file.
func (c *Config) expandEnv() {
	c.Mirror.Root = os.ExpandEnv(c.Mirror.Root)
	c.Report.Path = os.ExpandEnv(c.Report.Path)
	c.GitHub.Token = os.ExpandEnv(c.GitHub.Token)
	c.GitHub.PrivateKeyPath = os.ExpandEnv(c.GitHub.PrivateKeyPath)
	c.Indexer.Command = os.ExpandEnv(c.Indexer.Command)
	c.DB.Host = os.ExpandEnv(c.DB.Host)
	c.DB.Password = os.ExpandEnv(c.DB.Password)
	for i := range c.Targets {
		c.Targets[i].DestPath = os.ExpandEnv(c.Targets[i].DestPath)
	}
}

// applyDefaults fills in zero-value fields.
func (c *Config) applyDefaults() {
	if c.Mirror.Concurrency == 0 {
		c.Mirror.Concurrency = 10
	}
	if c.Mirror.ProgressEvery == 0 {
		c.Mirror.ProgressEvery = 25
	}
	if len(c.Mirror.AllowedExtensions) == 0 {
		c.Mirror.AllowedExtensions = []string{".md", ".mdx"}
	}
	if c.Fetch.ManifestTimeoutSecs == 0 {
		c.Fetch.ManifestTimeoutSecs = 30
	}
	if c.Fetch.ManifestRetries == 0 {
		c.Fetch.ManifestRetries = 3
	}
	if c.Fetch.ContentTimeoutSecs == 0 {
		c.Fetch.ContentTimeoutSecs = 20
	}
	if c.Fetch.ContentRetries == 0 {
		c.Fetch.ContentRetries = 3
	}
	if c.Fetch.BackoffSecs == 0 {
		c.Fetch.BackoffSecs = 2
	}
	if c.DB.Port == "" {
		c.DB.Port = "5432"
	}
	for i := range c.Targets {
		if c.Targets[i].DestPath == "" && c.Mirror.Root != "" {
			c.Targets[i].DestPath = filepath.Join(c.Mirror.Root, c.Targets[i].Name)
		}
	}
	// The report artifact lives next to the mirror root by default, so a
	// fresh run can never be confused with a stale one inside the mirror.
	if c.Report.Path == "" && c.Mirror.Root != "" {
		c.Report.Path = filepath.Join(filepath.Dir(c.Mirror.Root), "THREAT_REPORT.txt")
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	seen := make(map[string]bool, len(c.Targets))
	for _, target := range c.Targets {
		if target.Name == "" {
			return fmt.Errorf("target name is required")
		}
		if seen[target.Name] {
			return fmt.Errorf("duplicate target name: %s", target.Name)
		}
		seen[target.Name] = true
		if target.Repo == "" {
			return fmt.Errorf("target %s: repo is required", target.Name)
		}
		if target.Branch == "" {
			return fmt.Errorf("target %s: branch is required", target.Name)
		}
		if target.SourcePath == "" {
			return fmt.Errorf("target %s: source_path is required", target.Name)
		}
		if target.DestPath == "" {
			return fmt.Errorf("target %s: dest_path is required (or set mirror.root)", target.Name)
		}
	}

	if c.Report.Path == "" {
		return fmt.Errorf("report.path is required (or set mirror.root)")
	}
	if c.Mirror.Concurrency < 1 {
		return fmt.Errorf("mirror.concurrency must be at least 1")
	}
	if c.GitHub.Token != "" && c.GitHub.AppID != 0 {
		return fmt.Errorf("github: only one of token or app credentials may be set")
	}
	return nil
}
