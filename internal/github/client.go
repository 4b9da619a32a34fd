package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com/"

// NewClient returns a go-github client authenticated with token.
// apiURL is the REST root, e.g. GITHUB_API_URL; empty means api.github.com.
func NewClient(ctx context.Context, token, apiURL string) (*gh.Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, InputError("new client", fmt.Errorf("token is empty"))
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := gh.NewClient(httpClient)

	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" || strings.TrimSuffix(apiURL, "/")+"/" == defaultAPIURL {
		return client, nil
	}

	base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
	if err != nil {
		return nil, InputError("new client", fmt.Errorf("invalid api url %q: %w", apiURL, err))
	}
	client.BaseURL = base
	client.UploadURL = base
	return client, nil
}
