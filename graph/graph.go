// Package graph implements provider.Client on top of the Graph API.
//
// Signed requests are verified locally with the app secret; profile lookups
// call GET /<version>/me?fields=... with the caller's access token as a bearer
// credential and an appsecret_proof bound to that token.
package graph

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ggoodman/fbsignedrequest/internal/signedrequest"
	"github.com/ggoodman/fbsignedrequest/provider"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public Graph API endpoint.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultVersion is the Graph API version requests are pinned to.
	DefaultVersion = "v19.0"
)

var (
	// ErrNoAccessToken is returned by Me when the client was not scoped with
	// WithAccessToken.
	ErrNoAccessToken = errors.New("graph: access token required")
	// ErrUnexpectedResponse indicates the Graph API returned something that
	// is not a JSON object.
	ErrUnexpectedResponse = errors.New("graph: unexpected response")
)

// maxResponseBytes bounds how much of a profile response is read.
const maxResponseBytes = 1 << 20

// APIError is the decoded Graph API error envelope.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	TraceID    string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph: %s (type=%s code=%d status=%d)", e.Message, e.Type, e.Code, e.StatusCode)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph API base URL (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithVersion pins requests to a Graph API version such as "v19.0".
// An empty version sends unversioned requests.
func WithVersion(v string) Option {
	return func(c *Client) { c.version = strings.Trim(v, "/") }
}

// WithHTTPClient sets the base HTTP client. Its transport is wrapped with
// bearer authentication for profile calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithoutAppSecretProof disables the appsecret_proof query parameter.
func WithoutAppSecretProof() Option {
	return func(c *Client) { c.secretProof = false }
}

// Client talks to the Graph API for a single app. The zero value is not
// usable; construct with New.
type Client struct {
	appID       string
	appSecret   string
	baseURL     string
	version     string
	secretProof bool
	httpClient  *http.Client
	verifier    *signedrequest.Verifier

	// accessToken is request-scoped: only copies returned by WithAccessToken
	// carry one.
	accessToken string
}

var _ provider.Client = (*Client)(nil)

// New returns a Client for the given app credentials. It does not contact the
// network.
func New(appID, appSecret string, opts ...Option) (*Client, error) {
	if appID == "" {
		return nil, errors.New("graph: app id is required")
	}
	if appSecret == "" {
		return nil, errors.New("graph: app secret is required")
	}
	v, err := signedrequest.New(signedrequest.DefaultConfig(appSecret))
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	c := &Client{
		appID:       appID,
		appSecret:   appSecret,
		baseURL:     DefaultBaseURL,
		version:     DefaultVersion,
		secretProof: true,
		httpClient:  http.DefaultClient,
		verifier:    v,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AppID returns the app identifier the client was built for.
func (c *Client) AppID() string { return c.appID }

// ParseSignedRequest verifies raw with the app secret.
func (c *Client) ParseSignedRequest(raw string) (*provider.SignedRequest, error) {
	return c.verifier.Parse(raw)
}

// WithAccessToken returns a copy of c whose profile calls use tok.
func (c *Client) WithAccessToken(tok string) provider.Client {
	cp := *c
	cp.accessToken = tok
	return &cp
}

// Me fetches /me restricted to fields. An empty field list lets the Graph API
// pick its defaults (id and name).
func (c *Client) Me(ctx context.Context, fields []string) (provider.Profile, error) {
	if c.accessToken == "" {
		return nil, ErrNoAccessToken
	}

	q := url.Values{}
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	if c.secretProof {
		q.Set("appsecret_proof", AppSecretProof(c.appSecret, c.accessToken))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("me")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("graph: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.bearerClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: GET /me: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("graph: read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var env struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
			env.Error.StatusCode = res.StatusCode
			return nil, env.Error
		}
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, res.StatusCode)
	}

	var profile provider.Profile
	if err := json.Unmarshal(body, &profile); err != nil || profile == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrUnexpectedResponse)
	}
	return profile, nil
}

func (c *Client) endpoint(path string) string {
	if c.version == "" {
		return c.baseURL + "/" + path
	}
	return c.baseURL + "/" + c.version + "/" + path
}

func (c *Client) bearerClient(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.accessToken,
		TokenType:   "Bearer",
	}))
}

// AppSecretProof returns the hex HMAC-SHA256 of accessToken keyed by
// appSecret, as expected in the appsecret_proof parameter.
func AppSecretProof(appSecret, accessToken string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}
