package scheduler

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// ErrRateLimited is returned by call sites when the remote answered with
// HTTP 429. The scheduler retries it with backoff.
var ErrRateLimited = errors.New("rate limited (429)")

// ErrTransient tags request-level failures (per-attempt HTTP timeouts,
// dropped connections) that call sites want retried. Wrapping with this
// sentinel keeps them distinct from the caller's own context deadline,
// which is never retried.
var ErrTransient = errors.New("transient network error")

// ErrRetriesExhausted wraps the last transient error after the retry
// budget is spent.
var ErrRetriesExhausted = errors.New("max retries exceeded")

// retryable reports whether an error is in the transient whitelist:
// rate limiting, network timeouts and connection aborts. Everything else
// (RPC errors, malformed responses, other HTTP statuses) propagates
// immediately. Context cancellation is never retryable.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
