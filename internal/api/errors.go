package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
)

var (
	// ErrNotFound means the resource does not exist or is hidden from the identity.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the identity may not read the resource, e.g. SAML enforcement.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited means the identity has exhausted its request budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransport covers every other remote failure.
	ErrTransport = errors.New("transport error")
)

// RateLimitError is returned when GitHub rejects a request for rate limiting.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	ResetTime time.Time
	Err       error
}

func (e *RateLimitError) Error() string {
	if e.ResetTime.IsZero() {
		return fmt.Sprintf("rate limited: %v", e.Err)
	}
	return fmt.Sprintf("rate limited until %s: %v", e.ResetTime.Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() []error {
	return []error{ErrRateLimited, e.Err}
}

// classify wraps a go-github error with the matching sentinel
func classify(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", msg, err)
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{
			ResetTime: rateErr.Rate.Reset.Time,
			Err:       fmt.Errorf("failed to %s: %w", msg, err),
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var reset time.Time
		if abuseErr.RetryAfter != nil {
			reset = time.Now().Add(*abuseErr.RetryAfter)
		}
		return &RateLimitError{
			ResetTime: reset,
			Err:       fmt.Errorf("failed to %s: %w", msg, err),
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("failed to %s: %w: %w", msg, ErrNotFound, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("failed to %s: %w: %w", msg, ErrForbidden, err)
		case http.StatusTooManyRequests:
			return &RateLimitError{Err: fmt.Errorf("failed to %s: %w", msg, err)}
		}
	}

	return fmt.Errorf("failed to %s: %w: %w", msg, ErrTransport, err)
}

// IsSkippable reports whether err is an expected per-identity outcome
// (not found or forbidden) rather than a batch failure.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
