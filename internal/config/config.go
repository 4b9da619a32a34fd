package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL  = "https://api.github.com"
	defaultTimeout = 30 * time.Second
)

// Config holds all configuration for a coverage-comment run
type Config struct {
	// GitHub credentials
	GitHubToken      string `env:"GITHUB_TOKEN"`
	GitHubAppID      string `env:"GITHUB_APP_ID"`
	GitHubPrivateKey string `env:"GITHUB_PRIVATE_KEY"`
	GitHubAPIURL     string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`

	// Coverage source: the literal value wins over the profile
	TotalCoverage   string `env:"total_coverage"`
	CoverageProfile string `env:"COVERAGE_PROFILE"`

	// Actions context
	Repository string `env:"GITHUB_REPOSITORY"`
	EventName  string `env:"GITHUB_EVENT_NAME"`
	EventPath  string `env:"GITHUB_EVENT_PATH"`
	OutputPath string `env:"GITHUB_OUTPUT"`

	// Explicit thread identity, overrides the Actions context
	ThreadOwner string `env:"COVERAGE_COMMENT_OWNER"`
	ThreadRepo  string `env:"COVERAGE_COMMENT_REPO"`
	ThreadIssue int    `env:"COVERAGE_COMMENT_ISSUE"`

	LogLevel string        `env:"LOG_LEVEL" envDefault:"info"`
	Timeout  time.Duration `env:"COVERAGE_COMMENT_TIMEOUT" envDefault:"30s"`
}

// Option overrides a loaded value, typically from a command-line flag.
type Option func(*Config)

// WithCoverage sets the coverage percentage text.
func WithCoverage(value string) Option {
	return func(c *Config) { c.TotalCoverage = value }
}

// WithProfile sets the coverprofile path.
func WithProfile(path string) Option {
	return func(c *Config) { c.CoverageProfile = path }
}

// WithThread sets the explicit thread identity. Zero values leave the loaded ones in place.
func WithThread(owner, repo string, issue int) Option {
	return func(c *Config) {
		if owner != "" {
			c.ThreadOwner = owner
		}
		if repo != "" {
			c.ThreadRepo = repo
		}
		if issue != 0 {
			c.ThreadIssue = issue
		}
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// Load loads configuration from environment variables, applies opts and validates the result
func Load(opts ...Option) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.GitHubPrivateKey = normalizePrivateKey(cfg.GitHubPrivateKey)
	cfg.GitHubToken = unquote(cfg.GitHubToken)
	cfg.TotalCoverage = unquote(cfg.TotalCoverage)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UsesAppAuth reports whether credentials come from a GitHub App instead of a token.
func (c *Config) UsesAppAuth() bool {
	return c.GitHubToken == "" && c.GitHubAppID != "" && c.GitHubPrivateKey != ""
}

func normalizePrivateKey(value string) string {
	trimmed := unquote(value)
	if trimmed == "" {
		return ""
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

func unquote(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) >= 2 {
		if (trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"') ||
			(trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'') {
			trimmed = trimmed[1 : len(trimmed)-1]
		}
	}
	return strings.TrimSpace(trimmed)
}

// validate checks that all required configuration is present
func (c *Config) validate() error {
	if err := c.validateCredentials(); err != nil {
		return err
	}

	if err := c.validateCoverageSource(); err != nil {
		return err
	}

	if err := c.validateThread(); err != nil {
		return err
	}

	c.applyDefaults()
	return c.validateEndpoint()
}

func (c *Config) validateCredentials() error {
	if c.GitHubToken != "" {
		return nil
	}
	if c.GitHubAppID == "" && c.GitHubPrivateKey == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	if c.GitHubAppID == "" {
		return fmt.Errorf("GITHUB_APP_ID is required when GITHUB_PRIVATE_KEY is set")
	}
	if c.GitHubPrivateKey == "" {
		return fmt.Errorf("GITHUB_PRIVATE_KEY is required when GITHUB_APP_ID is set")
	}
	return nil
}

func (c *Config) validateCoverageSource() error {
	if c.TotalCoverage == "" && strings.TrimSpace(c.CoverageProfile) == "" {
		return fmt.Errorf("total_coverage or COVERAGE_PROFILE is required")
	}
	return nil
}

// validateThread checks explicit thread overrides; zero values defer to the event.
func (c *Config) validateThread() error {
	if c.ThreadIssue < 0 {
		return fmt.Errorf("COVERAGE_COMMENT_ISSUE must not be negative, got %d", c.ThreadIssue)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.GitHubAPIURL) == "" {
		c.GitHubAPIURL = DefaultAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validateEndpoint() error {
	u, err := url.Parse(strings.TrimSpace(c.GitHubAPIURL))
	if err != nil {
		return fmt.Errorf("invalid GITHUB_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid GITHUB_API_URL %q: scheme must be http or https", c.GitHubAPIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid GITHUB_API_URL %q: host is required", c.GitHubAPIURL)
	}
	return nil
}
