package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/cexll/coverage-comment/internal/coverage"
)

const (
	// CoverageMarker identifies coverage comments; it is also the body prefix.
	CoverageMarker = "**Total Test Coverage:**"
	// BotUserType is the user.type GitHub reports for apps and Actions.
	BotUserType = "Bot"
	// commentsPerPage is the GitHub maximum; only this one page is inspected.
	commentsPerPage = 100
)

// Action records which write an upsert performed.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// IssuesService is the subset of go-github's IssuesService used for comments.
type IssuesService interface {
	ListComments(ctx context.Context, owner, repo string, number int, opts *gh.IssueListCommentsOptions) ([]*gh.IssueComment, *gh.Response, error)
	EditComment(ctx context.Context, owner, repo string, commentID int64, comment *gh.IssueComment) (*gh.IssueComment, *gh.Response, error)
	CreateComment(ctx context.Context, owner, repo string, number int, comment *gh.IssueComment) (*gh.IssueComment, *gh.Response, error)
}

// Result describes the comment left on the thread.
type Result struct {
	Action    Action
	CommentID int64
	URL       string
	Body      string
}

// Upserter keeps a single coverage comment per thread up to date.
type Upserter struct {
	issues IssuesService
	logger *slog.Logger
}

// NewUpserter creates an Upserter. A nil logger discards output.
func NewUpserter(issues IssuesService, logger *slog.Logger) *Upserter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Upserter{issues: issues, logger: logger}
}

// CommentBody renders the coverage comment for pct.
func CommentBody(pct coverage.Percentage) string {
	return fmt.Sprintf("%s %s%%", CoverageMarker, pct.String())
}

// Upsert updates the first bot-authored coverage comment on thread, or creates one.
// Exactly one write is issued when listing succeeds; nothing is retried.
func (u *Upserter) Upsert(ctx context.Context, thread Thread, pct coverage.Percentage) (*Result, error) {
	if u == nil || u.issues == nil {
		return nil, InputError("upsert", fmt.Errorf("nil upserter or issues service"))
	}
	if err := thread.Validate(); err != nil {
		return nil, InputError("upsert", err)
	}
	if pct.IsZero() {
		return nil, InputError("upsert", coverage.ErrMissingCoverage)
	}

	body := CommentBody(pct)

	u.logger.Debug("Listing comments", "thread", thread.String())
	comments, _, err := u.issues.ListComments(ctx, thread.Owner, thread.Repo, thread.Number, &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: commentsPerPage},
	})
	if err != nil {
		return nil, classify("list comments", err)
	}

	existing := FindCoverageComment(comments)
	if existing != nil {
		u.logger.Info("Updating coverage comment", "thread", thread.String(), "comment_id", existing.GetID())
		updated, _, err := u.issues.EditComment(ctx, thread.Owner, thread.Repo, existing.GetID(), &gh.IssueComment{Body: gh.String(body)})
		if err != nil {
			return nil, classify("update comment", err)
		}
		return newResult(ActionUpdated, existing.GetID(), updated, body), nil
	}

	u.logger.Info("Creating coverage comment", "thread", thread.String(), "scanned", len(comments))
	created, _, err := u.issues.CreateComment(ctx, thread.Owner, thread.Repo, thread.Number, &gh.IssueComment{Body: gh.String(body)})
	if err != nil {
		return nil, classify("create comment", err)
	}
	return newResult(ActionCreated, created.GetID(), created, body), nil
}

// FindCoverageComment returns the first bot comment, in listing order, whose body contains CoverageMarker.
func FindCoverageComment(comments []*gh.IssueComment) *gh.IssueComment {
	for _, c := range comments {
		if c == nil {
			continue
		}
		if c.GetUser().GetType() == BotUserType && strings.Contains(c.GetBody(), CoverageMarker) {
			return c
		}
	}
	return nil
}

func newResult(action Action, id int64, written *gh.IssueComment, body string) *Result {
	res := &Result{Action: action, CommentID: id, Body: body}
	if written != nil {
		res.URL = written.GetHTMLURL()
		if written.GetID() != 0 {
			res.CommentID = written.GetID()
		}
	}
	return res
}
