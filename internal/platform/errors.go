package platform

import (
	"errors"
	"fmt"

	"github.com/gitpulse/gitpulse/internal/models"
)

// ErrNotFound covers empty repositories and missing releases. Callers
// treat it as "nothing to report", not a failure.
var ErrNotFound = errors.New("platform: not found")

// ErrUnauthorized signals a bad or expired credential. The caller must
// de-authenticate the affected platform.
var ErrUnauthorized = errors.New("platform: unauthorized")

// CredentialError reports a credential rejected after startup, naming
// the platform that must be logged out. It unwraps to ErrUnauthorized.
type CredentialError struct {
	Platform models.Platform
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("platform %s: credential rejected", e.Platform)
}

func (e *CredentialError) Unwrap() error { return ErrUnauthorized }

// RateLimitedError is returned without a network call when the request
// budget is exhausted.
type RateLimitedError struct {
	Platform          models.Platform
	RetryAfterMinutes int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("platform %s: rate limited, retry in %d minutes", e.Platform, e.RetryAfterMinutes)
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	var rle *RateLimitedError
	return errors.As(err, &rle)
}
