package config

import (
	"strings"
	"testing"
	"time"
)

var managedEnv = []string{
	"GITHUB_TOKEN",
	"GITHUB_APP_ID",
	"GITHUB_PRIVATE_KEY",
	"GITHUB_API_URL",
	"total_coverage",
	"COVERAGE_PROFILE",
	"GITHUB_REPOSITORY",
	"GITHUB_EVENT_NAME",
	"GITHUB_EVENT_PATH",
	"GITHUB_OUTPUT",
	"COVERAGE_COMMENT_OWNER",
	"COVERAGE_COMMENT_REPO",
	"COVERAGE_COMMENT_ISSUE",
	"LOG_LEVEL",
	"COVERAGE_COMMENT_TIMEOUT",
}

// clearEnv blanks every variable Load reads so the host CI environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedEnv {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		opts    []Option
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{
			name: "token and coverage",
			env: map[string]string{
				"GITHUB_TOKEN":      "ghs_test",
				"total_coverage":    "87.5",
				"GITHUB_REPOSITORY": "octo/widgets",
				"GITHUB_EVENT_NAME": "pull_request",
				"GITHUB_EVENT_PATH": "/tmp/event.json",
				"GITHUB_OUTPUT":     "/tmp/output",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.GitHubToken != "ghs_test" {
					t.Errorf("GitHubToken = %q, want ghs_test", cfg.GitHubToken)
				}
				if cfg.TotalCoverage != "87.5" {
					t.Errorf("TotalCoverage = %q, want 87.5", cfg.TotalCoverage)
				}
				if cfg.Repository != "octo/widgets" {
					t.Errorf("Repository = %q, want octo/widgets", cfg.Repository)
				}
				if cfg.EventName != "pull_request" || cfg.EventPath != "/tmp/event.json" {
					t.Errorf("event = %q %q", cfg.EventName, cfg.EventPath)
				}
				if cfg.OutputPath != "/tmp/output" {
					t.Errorf("OutputPath = %q, want /tmp/output", cfg.OutputPath)
				}
				if cfg.GitHubAPIURL != DefaultAPIURL {
					t.Errorf("GitHubAPIURL = %q, want default", cfg.GitHubAPIURL)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
				}
				if cfg.Timeout != 30*time.Second {
					t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
				}
				if cfg.UsesAppAuth() {
					t.Errorf("UsesAppAuth() = true with a token")
				}
			},
		},
		{
			name: "explicit thread and overrides",
			env: map[string]string{
				"GITHUB_TOKEN":             "ghs_test",
				"COVERAGE_PROFILE":         "coverage.out",
				"COVERAGE_COMMENT_OWNER":   "octo",
				"COVERAGE_COMMENT_REPO":    "widgets",
				"COVERAGE_COMMENT_ISSUE":   "17",
				"GITHUB_API_URL":           "https://ghes.example.com/api/v3",
				"LOG_LEVEL":                "debug",
				"COVERAGE_COMMENT_TIMEOUT": "5s",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ThreadOwner != "octo" || cfg.ThreadRepo != "widgets" || cfg.ThreadIssue != 17 {
					t.Errorf("thread = %s/%s#%d", cfg.ThreadOwner, cfg.ThreadRepo, cfg.ThreadIssue)
				}
				if cfg.CoverageProfile != "coverage.out" {
					t.Errorf("CoverageProfile = %q", cfg.CoverageProfile)
				}
				if cfg.GitHubAPIURL != "https://ghes.example.com/api/v3" {
					t.Errorf("GitHubAPIURL = %q", cfg.GitHubAPIURL)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
				}
				if cfg.Timeout != 5*time.Second {
					t.Errorf("Timeout = %s, want 5s", cfg.Timeout)
				}
			},
		},
		{
			name: "options override environment",
			env: map[string]string{
				"GITHUB_TOKEN":           "ghs_test",
				"total_coverage":         "10",
				"COVERAGE_COMMENT_OWNER": "env-owner",
				"COVERAGE_COMMENT_ISSUE": "3",
			},
			opts: []Option{
				WithCoverage("99.9"),
				WithProfile("other.out"),
				WithThread("", "flag-repo", 8),
				WithLogLevel("warn"),
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.TotalCoverage != "99.9" {
					t.Errorf("TotalCoverage = %q, want 99.9", cfg.TotalCoverage)
				}
				if cfg.CoverageProfile != "other.out" {
					t.Errorf("CoverageProfile = %q, want other.out", cfg.CoverageProfile)
				}
				if cfg.ThreadOwner != "env-owner" || cfg.ThreadRepo != "flag-repo" || cfg.ThreadIssue != 8 {
					t.Errorf("thread = %s/%s#%d", cfg.ThreadOwner, cfg.ThreadRepo, cfg.ThreadIssue)
				}
				if cfg.LogLevel != "warn" {
					t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
				}
			},
		},
		{
			name: "quoted values are unwrapped",
			env: map[string]string{
				"GITHUB_TOKEN":   `"ghs_quoted"`,
				"total_coverage": "'75.0'",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.GitHubToken != "ghs_quoted" {
					t.Errorf("GitHubToken = %q, want ghs_quoted", cfg.GitHubToken)
				}
				if cfg.TotalCoverage != "75.0" {
					t.Errorf("TotalCoverage = %q, want 75.0", cfg.TotalCoverage)
				}
			},
		},
		{
			name: "app credentials instead of token",
			env: map[string]string{
				"GITHUB_APP_ID":      "1234",
				"GITHUB_PRIVATE_KEY": `"-----BEGIN KEY-----\nabc\n-----END KEY-----"`,
				"total_coverage":     "50",
			},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.UsesAppAuth() {
					t.Errorf("UsesAppAuth() = false, want true")
				}
				want := "-----BEGIN KEY-----\nabc\n-----END KEY-----"
				if cfg.GitHubPrivateKey != want {
					t.Errorf("GitHubPrivateKey = %q, want %q", cfg.GitHubPrivateKey, want)
				}
			},
		},
		{
			name:    "missing credentials",
			env:     map[string]string{"total_coverage": "50"},
			wantErr: "GITHUB_TOKEN is required",
		},
		{
			name: "app id without key",
			env: map[string]string{
				"GITHUB_APP_ID":  "1234",
				"total_coverage": "50",
			},
			wantErr: "GITHUB_PRIVATE_KEY is required",
		},
		{
			name: "key without app id",
			env: map[string]string{
				"GITHUB_PRIVATE_KEY": "key",
				"total_coverage":     "50",
			},
			wantErr: "GITHUB_APP_ID is required",
		},
		{
			name:    "missing coverage source",
			env:     map[string]string{"GITHUB_TOKEN": "ghs_test"},
			wantErr: "total_coverage or COVERAGE_PROFILE is required",
		},
		{
			name: "non numeric issue",
			env: map[string]string{
				"GITHUB_TOKEN":           "ghs_test",
				"total_coverage":         "50",
				"COVERAGE_COMMENT_ISSUE": "twelve",
			},
			wantErr: "parse environment",
		},
		{
			name: "negative issue",
			env: map[string]string{
				"GITHUB_TOKEN":           "ghs_test",
				"total_coverage":         "50",
				"COVERAGE_COMMENT_ISSUE": "-4",
			},
			wantErr: "COVERAGE_COMMENT_ISSUE",
		},
		{
			name: "bad timeout",
			env: map[string]string{
				"GITHUB_TOKEN":             "ghs_test",
				"total_coverage":           "50",
				"COVERAGE_COMMENT_TIMEOUT": "soon",
			},
			wantErr: "parse environment",
		},
		{
			name: "api url without scheme",
			env: map[string]string{
				"GITHUB_TOKEN":   "ghs_test",
				"total_coverage": "50",
				"GITHUB_API_URL": "ghes.example.com",
			},
			wantErr: "GITHUB_API_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(tt.opts...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigValidateThread(t *testing.T) {
	tests := []struct {
		issue   int
		wantErr bool
	}{
		{issue: 0},
		{issue: 7},
		{issue: -1, wantErr: true},
	}

	for _, tt := range tests {
		cfg := &Config{TotalCoverage: "50", ThreadIssue: tt.issue}
		err := cfg.validateThread()
		if tt.wantErr && err == nil {
			t.Errorf("validateThread() with issue %d: expected error", tt.issue)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("validateThread() with issue %d: unexpected error %v", tt.issue, err)
		}
	}

	// Coverage source checks no longer look at the thread.
	cfg := &Config{TotalCoverage: "50", ThreadIssue: -3}
	if err := cfg.validateCoverageSource(); err != nil {
		t.Errorf("validateCoverageSource() = %v, want nil", err)
	}
}

func TestConfigValidateDefaultsApplied(t *testing.T) {
	cfg := &Config{
		GitHubToken:   "ghs_test",
		TotalCoverage: "1",
	}

	if err := cfg.validate(); err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if cfg.GitHubAPIURL != DefaultAPIURL {
		t.Fatalf("GitHubAPIURL default = %q, want %q", cfg.GitHubAPIURL, DefaultAPIURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("Timeout default = %s, want 30s", cfg.Timeout)
	}
}

func TestNormalizePrivateKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"line1\\nline2", "line1\nline2"},
		{"'line1\r\nline2'", "line1\nline2"},
		{"\"a\\r\\nb\"", "a\nb"},
	}
	for _, tt := range tests {
		if got := normalizePrivateKey(tt.in); got != tt.want {
			t.Errorf("normalizePrivateKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
