package auth

import (
	"context"
	"net/http"

	"github.com/ggoodman/fbsignedrequest/provider"
)

// Name is the identifier hosts use to route requests to this strategy.
const Name = "facebookSignedRequest"

// Authenticator is implemented by strategies that a host pipeline can invoke
// per request. Every call returns exactly one Outcome.
type Authenticator interface {
	Name() string
	Authenticate(ctx context.Context, r *http.Request, opts ...AuthenticateOption) Outcome
}

// VerifyFunc maps a resolved identity to an application user.
//
// Returning a non-nil err yields an Error outcome; a nil user yields a Fail
// outcome carrying info; otherwise the outcome is Success(user, info). Return
// an untyped nil for "no user": a typed nil pointer stored in user counts as a
// user.
type VerifyFunc func(ctx context.Context, identity provider.Profile) (user any, info any, err error)

// OutcomeKind discriminates Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeFail
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFail:
		return "fail"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// Outcome is the terminal result of one authentication attempt. Only the
// fields relevant to Kind are set.
type Outcome struct {
	Kind OutcomeKind
	User any   // Success
	Info any   // Success, Fail
	Err  error // Error
}

// Success builds a successful outcome.
func Success(user, info any) Outcome { return Outcome{Kind: OutcomeSuccess, User: user, Info: info} }

// Fail builds a soft failure: the credentials were understood but did not
// map to a user.
func Fail(info any) Outcome { return Outcome{Kind: OutcomeFail, Info: info} }

// Errored builds a hard error outcome.
func Errored(err error) Outcome { return Outcome{Kind: OutcomeError, Err: err} }

// Credentials is the access token and signed request pair supplied by the
// client-side login.
type Credentials struct {
	AccessToken   string
	SignedRequest string
}

// AuthenticateOption adjusts a single Authenticate call.
type AuthenticateOption func(*authenticateOptions)

type authenticateOptions struct {
	creds Credentials
}

// WithCredentials supplies credentials directly. Each non-empty value wins
// over the corresponding request body field; the body is not read when both
// are set.
func WithCredentials(c Credentials) AuthenticateOption {
	return func(o *authenticateOptions) { o.creds = c }
}

func dispatch(user, info any, err error) Outcome {
	if err != nil {
		return Errored(err)
	}
	if user == nil {
		return Fail(info)
	}
	return Success(user, info)
}
