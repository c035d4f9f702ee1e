package github

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/go-github/v68/github"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
	defaultMaxWait    = time.Minute
)

// retryable reports whether a failed call may succeed if repeated: rate
// limits and server-side failures. Client errors, including auth failures,
// are final.
func retryable(err error) bool {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// retryAfter returns the wait the server asked for, if any. A primary rate
// limit lasts until its reset time, which has second resolution, so one
// extra second is added.
func retryAfter(err error, now time.Time) time.Duration {
	var rle *github.RateLimitError
	if errors.As(err, &rle) && !rle.Rate.Reset.Time.IsZero() {
		return max(rle.Rate.Reset.Time.Sub(now)+time.Second, 0)
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) && abuse.RetryAfter != nil {
		return *abuse.RetryAfter
	}
	return 0
}

// withRetry calls fn until it succeeds, returns a non-retryable error or
// maxRetries is exhausted. Waits double from the client's base backoff and
// never undercut the server's own hint. A hint longer than maxWait makes the
// error final.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		if attempt == c.maxRetries {
			break
		}

		wait := c.backoff << uint(attempt)
		if ra := retryAfter(lastErr, time.Now()); ra > wait {
			if ra > c.maxWait {
				c.logger.Warn("GitHub rate limit resets too late to wait for", "op", op, "wait", ra)
				return lastErr
			}
			wait = ra
		}
		c.logger.Warn("GitHub request failed, retrying", "op", op, "attempt", attempt+1, "wait", wait, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
