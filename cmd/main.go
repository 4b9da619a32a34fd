package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	gh "github.com/google/go-github/v66/github"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cexll/coverage-comment/internal/config"
	"github.com/cexll/coverage-comment/internal/coverage"
	"github.com/cexll/coverage-comment/internal/ghoutput"
	"github.com/cexll/coverage-comment/internal/github"
	"github.com/cexll/coverage-comment/internal/logging"
)

var (
	loadDotEnv      = godotenv.Load
	newGitHubClient = github.NewClient
)

// options holds flag values; empty means "use the environment".
type options struct {
	coverage string
	profile  string
	owner    string
	repo     string
	issue    int
	logLevel string
}

func main() {
	if err := newRootCommand(os.Stderr).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "coverage-comment",
		Short:         "Post or update the total test coverage comment on a pull request",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, stderr)
		},
	}

	cmd.Flags().StringVar(&opts.coverage, "coverage", "", "Coverage percentage, overrides total_coverage")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Go coverprofile to compute coverage from, overrides COVERAGE_PROFILE")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "Repository owner, overrides COVERAGE_COMMENT_OWNER")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "Repository name, overrides COVERAGE_COMMENT_REPO")
	cmd.Flags().IntVar(&opts.issue, "issue", 0, "Issue or pull request number, overrides COVERAGE_COMMENT_ISSUE")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides LOG_LEVEL")

	return cmd
}

func (o *options) configOptions() []config.Option {
	var out []config.Option
	if o.coverage != "" {
		out = append(out, config.WithCoverage(o.coverage))
	}
	if o.profile != "" {
		out = append(out, config.WithProfile(o.profile))
	}
	if o.owner != "" || o.repo != "" || o.issue != 0 {
		out = append(out, config.WithThread(o.owner, o.repo, o.issue))
	}
	if o.logLevel != "" {
		out = append(out, config.WithLogLevel(o.logLevel))
	}
	return out
}

func run(ctx context.Context, opts *options, stderr io.Writer) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	logger := logging.NewLogger(stderr, logging.ParseLevel(opts.logLevel))

	cfg, err := config.Load(opts.configOptions()...)
	if err != nil {
		err = github.InputError("load configuration", err)
		logger.Error("Invalid configuration", "kind", github.KindInput, "error", err)
		return err
	}
	logger = logging.NewLogger(stderr, logging.ParseLevel(cfg.LogLevel))

	if err := upsertCoverageComment(ctx, cfg, logger); err != nil {
		logger.Error("Coverage comment failed", "kind", github.KindOf(err), "error", err)
		return err
	}
	return nil
}

func upsertCoverageComment(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pct, err := resolveCoverage(cfg)
	if err != nil {
		return github.InputError("resolve coverage", err)
	}

	explicit := github.Thread{Owner: cfg.ThreadOwner, Repo: cfg.ThreadRepo, Number: cfg.ThreadIssue}

	// The event payload is only consulted when the thread is not fully given.
	var event *github.Context
	if cfg.EventPath != "" && explicit.Validate() != nil {
		event, err = github.LoadEventContext(cfg.EventName, cfg.EventPath)
		if err != nil {
			return github.InputError("load event", err)
		}
	}

	thread, err := github.ResolveThread(explicit, cfg.Repository, event)
	if err != nil {
		return err
	}

	logger.Info("Posting coverage comment", "thread", thread.String(), "coverage", pct.String())

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := newClient(ctx, cfg, thread, logger)
	if err != nil {
		return err
	}

	res, err := github.NewUpserter(client.Issues, logger).Upsert(ctx, thread, pct)
	if err != nil {
		return err
	}

	logger.Info("Coverage comment posted", "action", res.Action, "comment_id", res.CommentID, "url", res.URL)

	if err := ghoutput.Write(cfg.OutputPath, map[string]string{
		"action":      string(res.Action),
		"comment-id":  strconv.FormatInt(res.CommentID, 10),
		"comment-url": res.URL,
		"coverage":    pct.String(),
	}); err != nil {
		logger.Warn("Failed to write step outputs", "error", err)
	}

	return nil
}

func resolveCoverage(cfg *config.Config) (coverage.Percentage, error) {
	if cfg.TotalCoverage != "" {
		return coverage.ParsePercentage(cfg.TotalCoverage)
	}
	return coverage.TotalFromProfile(cfg.CoverageProfile)
}

func newClient(ctx context.Context, cfg *config.Config, thread github.Thread, logger *slog.Logger) (*gh.Client, error) {
	token := cfg.GitHubToken
	if cfg.UsesAppAuth() {
		logger.Debug("Exchanging GitHub App credentials for an installation token", "app_id", cfg.GitHubAppID)
		appAuth := &github.AppAuth{
			AppID:      cfg.GitHubAppID,
			PrivateKey: cfg.GitHubPrivateKey,
			APIURL:     cfg.GitHubAPIURL,
		}
		installation, err := appAuth.InstallationToken(ctx, thread.Owner, thread.Repo)
		if err != nil {
			return nil, fmt.Errorf("github app auth: %w", err)
		}
		token = installation.Token
	}
	return newGitHubClient(ctx, token, cfg.GitHubAPIURL)
}
