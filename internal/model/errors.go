package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

// Failure taxonomy for external calls (calendar provider, AI
// generation, chat delivery). Callers classify with errors.Is.
var (
	// ErrAuthExpired: credential expired or revoked; requires user
	// re-consent, never retried locally.
	ErrAuthExpired = errors.New("auth expired")

	// ErrInvalidCredential: the AI provider rejected the credential;
	// terminal for that provider on that attempt.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrThrottled: rate limited; transient, retried with backoff.
	ErrThrottled = errors.New("throttled")

	// ErrQuotaExceeded: provider quota spent; terminal for the attempt,
	// may trigger fallback to an alternate provider.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrMalformedRequest: the request we built was rejected as invalid.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrUnparsableResponse: provider output did not decode into the
	// expected shape; likely systemic, retried only up to a small ceiling.
	ErrUnparsableResponse = errors.New("unparsable response")

	// ErrNetwork: transport-level failure; transient, retried.
	ErrNetwork = errors.New("network failure")
)

// ThrottledError carries a provider-supplied retry-after hint. It
// matches ErrThrottled under errors.Is.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled (retry after %s)", e.RetryAfter)
}

func (e *ThrottledError) Unwrap() error { return ErrThrottled }

// RetryAfterHint extracts a throttle hint from err, if present.
func RetryAfterHint(err error) (time.Duration, bool) {
	var te *ThrottledError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter, true
	}
	return 0, false
}

// IsTerminalProviderFailure reports whether err should not be retried
// against the same provider within the current attempt.
func IsTerminalProviderFailure(err error) bool {
	return errors.Is(err, ErrAuthExpired) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrQuotaExceeded)
}
