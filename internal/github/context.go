package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// EventType defines GitHub Actions events that carry an issue or pull request
type EventType string

const (
	EventIssueComment             EventType = "issue_comment"
	EventIssues                   EventType = "issues"
	EventPullRequest              EventType = "pull_request"
	EventPullRequestTarget        EventType = "pull_request_target"
	EventPullRequestReview        EventType = "pull_request_review"
	EventPullRequestReviewComment EventType = "pull_request_review_comment"
)

// Context represents the parts of an Actions event payload needed to locate a thread
type Context struct {
	EventName  EventType
	Repository Repository
	Actor      string

	// Issue/PR identification
	IsPR        bool
	IssueNumber int
}

// Repository represents a GitHub repository
type Repository struct {
	Owner    string
	Name     string
	FullName string
}

// Thread identifies the issue or pull request conversation that receives the comment.
type Thread struct {
	Owner  string
	Repo   string
	Number int
}

func (t Thread) String() string {
	return fmt.Sprintf("%s/%s#%d", t.Owner, t.Repo, t.Number)
}

// Validate reports whether t names a concrete thread.
func (t Thread) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return fmt.Errorf("thread owner is empty")
	}
	if strings.TrimSpace(t.Repo) == "" {
		return fmt.Errorf("thread repository is empty")
	}
	if t.Number <= 0 {
		return fmt.Errorf("thread number must be positive, got %d", t.Number)
	}
	return nil
}

// LoadEventContext reads the payload at GITHUB_EVENT_PATH and parses it.
func LoadEventContext(eventName, path string) (*Context, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event payload: %w", err)
	}
	return ParseEventPayload(eventName, payload)
}

// ParseEventPayload parses a GitHub Actions event payload into Context.
// Unknown events are accepted; the issue number is then looked up generically.
func ParseEventPayload(eventName string, payload []byte) (*Context, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}

	ctx := &Context{EventName: EventType(eventName)}

	if repo, ok := data["repository"].(map[string]interface{}); ok {
		ctx.Repository = Repository{
			Owner:    getStringField(repo, "owner", "login"),
			Name:     getStringField(repo, "name"),
			FullName: getStringField(repo, "full_name"),
		}
	}

	if sender, ok := data["sender"].(map[string]interface{}); ok {
		ctx.Actor = getStringField(sender, "login")
	}

	switch ctx.EventName {
	case EventPullRequest, EventPullRequestTarget, EventPullRequestReview, EventPullRequestReviewComment:
		ctx.IsPR = true
		ctx.IssueNumber = int(getNumberField(data, "pull_request", "number"))
	case EventIssueComment, EventIssues:
		if issue, ok := data["issue"].(map[string]interface{}); ok {
			ctx.IssueNumber = int(getNumberField(issue, "number"))
			if pullRequest, hasPR := issue["pull_request"]; hasPR && pullRequest != nil {
				ctx.IsPR = true
			}
		}
	}

	if ctx.IssueNumber == 0 {
		ctx.IssueNumber = issueNumberFallback(data)
	}

	return ctx, nil
}

// issueNumberFallback mirrors the Actions toolkit: issue, then pull_request, then top-level number.
func issueNumberFallback(data map[string]interface{}) int {
	if n := getNumberField(data, "issue", "number"); n > 0 {
		return int(n)
	}
	if n := getNumberField(data, "pull_request", "number"); n > 0 {
		return int(n)
	}
	return int(getNumberField(data, "number"))
}

// ResolveThread combines explicit settings, GITHUB_REPOSITORY and the event payload.
// Explicit values win; event may be nil.
func ResolveThread(explicit Thread, repository string, event *Context) (Thread, error) {
	thread := explicit

	owner, name := splitRepository(repository)
	if thread.Owner == "" {
		thread.Owner = owner
	}
	if thread.Repo == "" {
		thread.Repo = name
	}

	if event != nil {
		if thread.Owner == "" {
			thread.Owner = event.Repository.Owner
		}
		if thread.Repo == "" {
			thread.Repo = event.Repository.Name
		}
		if thread.Number == 0 {
			thread.Number = event.IssueNumber
		}
	}

	if err := thread.Validate(); err != nil {
		return Thread{}, InputError("resolve thread", err)
	}
	return thread, nil
}

func splitRepository(repository string) (string, string) {
	parts := strings.Split(strings.TrimSpace(repository), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ""
	}
	return parts[0], parts[1]
}

// Helper functions for safe map access
func getStringField(data map[string]interface{}, keys ...string) string {
	current := data
	for i, key := range keys {
		if i == len(keys)-1 {
			if val, ok := current[key].(string); ok {
				return val
			}
			return ""
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return ""
		}
	}
	return ""
}

func getNumberField(data map[string]interface{}, keys ...string) float64 {
	current := data
	for i, key := range keys {
		if i == len(keys)-1 {
			if val, ok := current[key].(float64); ok {
				return val
			}
			return 0
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return 0
		}
	}
	return 0
}
