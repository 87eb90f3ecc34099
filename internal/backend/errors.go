package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a table read matches no rows.
	ErrNotFound = errors.New("backend: row not found")
	// ErrMissingConfig is returned when the backend URL or API key is
	// absent at startup. Not recoverable; callers should fail fast.
	ErrMissingConfig = errors.New("backend: missing connection configuration")
)

// AuthError is a user-attributable rejection from the auth backend: invalid
// credentials, unconfirmed email, rate limiting. It is surfaced verbatim to
// the calling form and never retried automatically.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: auth rejected (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend: auth rejected: %s", e.Message)
}

// TransientError wraps a failure that is plausibly temporary: network errors,
// timeouts, 5xx responses. The orchestrator recovers from these with the
// fallback identity policy instead of surfacing them.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("backend: %s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
