// Package provider defines the narrow capability the authentication strategy
// needs from an identity provider: decoding a signed request, scoping calls to
// an access token and fetching the caller's profile.
//
// The Graph API implementation lives in package graph; Limited Login tokens are
// handled by package limitedlogin. Tests substitute providertest.Client.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSignedRequest is returned by ParseSignedRequest when the assertion
// is malformed, uses an unsupported algorithm or fails signature checks.
var ErrInvalidSignedRequest = errors.New("provider: invalid signed request")

// Client is the identity provider capability used by the strategy.
//
// Implementations must be safe for concurrent use. WithAccessToken must not
// mutate the receiver; it returns a request-scoped copy.
type Client interface {
	// ParseSignedRequest verifies and decodes a signed request string.
	ParseSignedRequest(raw string) (*SignedRequest, error)
	// WithAccessToken returns a client whose profile calls are made on behalf
	// of the holder of tok.
	WithAccessToken(tok string) Client
	// Me fetches the current user's profile restricted to fields.
	Me(ctx context.Context, fields []string) (Profile, error)
}

// SignedRequest is a decoded and verified signed request.
type SignedRequest struct {
	// UserID is the provider-scoped subject identifier. It is empty when the
	// user has not authorized the app.
	UserID    string
	IssuedAt  time.Time
	Algorithm string
	// Code is the optional OAuth code carried by login-flow signed requests.
	Code string
	// Raw holds every decoded claim, including the ones above.
	Raw map[string]any
}

// ExpiresAt returns the instant the signed request stops being fresh for the
// given window. Sub-second precision of the window is ignored.
func (s *SignedRequest) ExpiresAt(window time.Duration) time.Time {
	return s.IssuedAt.Add(window)
}

// Profile is a raw profile record as returned by the provider.
type Profile map[string]any

// ID returns the profile's "id" attribute when it is a string.
func (p Profile) ID() string {
	id, _ := p["id"].(string)
	return id
}
