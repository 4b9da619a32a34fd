package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v66/github"
)

// Kind classifies why a coverage comment run failed.
type Kind string

const (
	KindInput    Kind = "input"
	KindAuth     Kind = "auth"
	KindNotFound Kind = "not_found"
	KindNetwork  Kind = "network"
	KindAPI      Kind = "api"
)

// Error is the failure outcome of a coverage comment run.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// InputError marks err as caused by missing or malformed input.
func InputError(op string, err error) *Error {
	return &Error{Kind: KindInput, Op: op, Err: err}
}

// KindOf returns the failure kind carried by err, classifying raw API errors on the fly.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return classify("", err).Kind
}

// classify wraps an error returned by go-github with its Kind.
func classify(op string, err error) *Error {
	var known *Error
	if errors.As(err, &known) {
		return known
	}

	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		respErr  *gh.ErrorResponse
		netErr   net.Error
		urlErr   *url.Error
	)

	kind := KindAPI
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		kind = KindAuth
	case errors.As(err, &respErr) && respErr.Response != nil:
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = KindAuth
		case http.StatusNotFound, http.StatusGone:
			kind = KindNotFound
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.As(err, &urlErr), errors.As(err, &netErr):
		kind = KindNetwork
	}

	return &Error{Kind: kind, Op: op, Err: err}
}
