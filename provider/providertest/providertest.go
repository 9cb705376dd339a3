// Package providertest provides an in-memory provider.Client for tests that
// must not reach the network.
package providertest

import (
	"context"
	"sync"
	"time"

	"github.com/ggoodman/fbsignedrequest/internal/signedrequest"
	"github.com/ggoodman/fbsignedrequest/provider"
)

// Call records a single Me invocation.
type Call struct {
	AccessToken string
	Fields      []string
}

// Client verifies signed requests with a real HMAC check against Secret and
// answers Me from Profiles keyed by access token.
type Client struct {
	Secret   string
	Profiles map[string]provider.Profile
	// MeErr, when set, is returned by every Me call.
	MeErr error
	// MeHook, when set, runs before Me answers. Tests use it to block or panic.
	MeHook func(ctx context.Context) error

	state *state
	token string
}

type state struct {
	mu    sync.Mutex
	calls []Call
}

var _ provider.Client = (*Client)(nil)

// New returns a Client for secret. If secret is empty it defaults to "secret".
func New(secret string) *Client {
	if secret == "" {
		secret = "secret"
	}
	return &Client{Secret: secret, Profiles: map[string]provider.Profile{}, state: &state{}}
}

// ParseSignedRequest verifies raw with c.Secret.
func (c *Client) ParseSignedRequest(raw string) (*provider.SignedRequest, error) {
	v, err := signedrequest.New(signedrequest.DefaultConfig(c.Secret))
	if err != nil {
		return nil, err
	}
	return v.Parse(raw)
}

// WithAccessToken returns a scoped copy sharing the call log.
func (c *Client) WithAccessToken(tok string) provider.Client {
	cp := *c
	cp.token = tok
	return &cp
}

// Me records the call and returns the profile registered for the token, or an
// empty profile when none is registered.
func (c *Client) Me(ctx context.Context, fields []string) (provider.Profile, error) {
	c.state.mu.Lock()
	c.state.calls = append(c.state.calls, Call{AccessToken: c.token, Fields: append([]string(nil), fields...)})
	c.state.mu.Unlock()

	if c.MeHook != nil {
		if err := c.MeHook(ctx); err != nil {
			return nil, err
		}
	}
	if c.MeErr != nil {
		return nil, c.MeErr
	}
	if p, ok := c.Profiles[c.token]; ok {
		return p, nil
	}
	return provider.Profile{}, nil
}

// Calls returns the Me invocations seen so far.
func (c *Client) Calls() []Call {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return append([]Call(nil), c.state.calls...)
}

// SignedRequest mints a signed request for userID issued at issuedAt. An empty
// userID omits the user_id claim.
func (c *Client) SignedRequest(userID string, issuedAt time.Time) string {
	claims := map[string]any{"issued_at": issuedAt.Unix()}
	if userID != "" {
		claims["user_id"] = userID
	}
	s, err := signedrequest.Sign(claims, c.Secret)
	if err != nil {
		panic(err)
	}
	return s
}
