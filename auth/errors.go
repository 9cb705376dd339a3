package auth

import (
	"errors"
	"fmt"
)

// ErrSecretMissing is returned by New when the app secret is absent. It is
// deliberately not a *ConfigurationError so callers can tell "no secret"
// apart from every other construction failure.
var ErrSecretMissing = errors.New("fbauth: strategy options require an app secret")

// ConfigurationError reports an invalid or incomplete strategy
// configuration detected by New.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "fbauth: " + e.Reason
	}
	return fmt.Sprintf("fbauth: invalid %s: %s", e.Field, e.Reason)
}

// Request-time failure kinds. They are matched with errors.Is against the
// *RequestError carried by an Error outcome.
var (
	ErrMissingAccessToken   = errors.New("fbauth: missing access token")
	ErrMissingSignedRequest = errors.New("fbauth: missing signed request")
	ErrBadSignedRequest     = errors.New("fbauth: bad signed request")
	ErrSignedRequestExpired = errors.New("fbauth: signed request expired")
)

// ErrPanic wraps a value recovered from a panic during authentication.
var ErrPanic = errors.New("fbauth: panic during authentication")

// RequestError is a request-time authentication failure. Message is the text
// surfaced to the host (custom or default); Kind is one of the Err* kinds
// above.
type RequestError struct {
	Kind    error
	Message string
	// Cause is the underlying error, if any (e.g. a signature failure).
	Cause error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newRequestError(kind error, custom, fallback string, cause error) *RequestError {
	msg := custom
	if msg == "" {
		msg = fallback
	}
	return &RequestError{Kind: kind, Message: msg, Cause: cause}
}
