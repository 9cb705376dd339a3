// Package limitedlogin implements provider.Client for Limited Login, where
// the client-side SDK hands out an OIDC identity token (an RS256 JWT) instead
// of an HMAC signed request and a Graph access token.
//
// The same token is expected in both credential fields: ParseSignedRequest
// verifies it and maps sub/iat onto a SignedRequest, and Me projects its
// claims onto the requested profile fields. No Graph call is made.
package limitedlogin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/ggoodman/fbsignedrequest/provider"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is the issuer of Limited Login identity tokens.
	DefaultIssuer = "https://www.facebook.com"
	// DefaultJWKSURI is where the provider publishes its token signing keys.
	DefaultJWKSURI = "https://limited.facebook.com/.well-known/oauth/openid/jwks/"
)

// ErrNoAccessToken is returned by Me on a client not scoped to a token.
var ErrNoAccessToken = errors.New("limitedlogin: no access token")

// ErrInvalidToken indicates the token failed signature, issuer, audience or
// time validation.
var ErrInvalidToken = errors.New("limitedlogin: invalid token")

// Config controls token validation.
type Config struct {
	// AppID is the expected audience.
	AppID string
	// Issuer defaults to DefaultIssuer.
	Issuer      string
	AllowedAlgs []string
	Leeway      time.Duration
}

// DefaultConfig returns a Config with safe defaults for issuer, algorithm and
// leeway.
func DefaultConfig(appID string) *Config {
	return &Config{
		AppID:       appID,
		Issuer:      DefaultIssuer,
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}

// Client verifies Limited Login tokens. Create one with NewFromDiscovery or
// NewStatic.
type Client struct {
	cfg     Config
	iss     string
	keyfunc jwt.Keyfunc
	token   string
}

var _ provider.Client = (*Client)(nil)

// NewFromDiscovery performs OIDC discovery against cfg.Issuer to find the
// JWKS and returns a Client. Keys are refreshed in the background until ctx
// is cancelled.
func NewFromDiscovery(ctx context.Context, cfg *Config) (*Client, error) {
	c, err := normalize(cfg)
	if err != nil {
		return nil, err
	}

	p, err := oidc.NewProvider(ctx, c.Issuer)
	if err != nil {
		return nil, fmt.Errorf("limitedlogin: oidc discovery failed: %w", err)
	}
	var meta struct {
		Issuer  string `json:"issuer"`
		JwksURI string `json:"jwks_uri"`
	}
	if err := p.Claims(&meta); err != nil {
		return nil, fmt.Errorf("limitedlogin: invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("limitedlogin: discovery incomplete: missing jwks_uri")
	}
	return newClient(ctx, c, meta.Issuer, meta.JwksURI)
}

// NewStatic returns a Client that trusts cfg.Issuer without discovery and
// loads keys from jwksURI (DefaultJWKSURI when empty).
func NewStatic(ctx context.Context, cfg *Config, jwksURI string) (*Client, error) {
	c, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	if jwksURI == "" {
		jwksURI = DefaultJWKSURI
	}
	return newClient(ctx, c, c.Issuer, jwksURI)
}

func normalize(cfg *Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("limitedlogin: config is required")
	}
	c := *cfg
	if c.AppID == "" {
		return Config{}, errors.New("limitedlogin: app id is required")
	}
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if len(c.AllowedAlgs) == 0 {
		c.AllowedAlgs = []string{"RS256"}
	}
	c.AllowedAlgs = slices.Clone(c.AllowedAlgs)
	return c, nil
}

func newClient(ctx context.Context, c Config, iss, jwksURI string) (*Client, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("limitedlogin: jwks init failed: %w", err)
	}

	allowed := c.AllowedAlgs
	return &Client{
		cfg: c,
		iss: iss,
		keyfunc: func(t *jwt.Token) (any, error) {
			if alg := t.Method.Alg(); !slices.Contains(allowed, alg) {
				return nil, fmt.Errorf("disallowed alg: %s", alg)
			}
			return kf.Keyfunc(t)
		},
	}, nil
}

// ParseSignedRequest verifies an identity token and exposes it as a signed
// request: sub becomes UserID and iat becomes IssuedAt.
func (c *Client) ParseSignedRequest(raw string) (*provider.SignedRequest, error) {
	claims, alg, err := c.verify(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrInvalidSignedRequest, err)
	}
	sr := &provider.SignedRequest{Algorithm: alg, Raw: claims}
	sr.UserID, _ = claims["sub"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		sr.IssuedAt = iat.Time
	}
	return sr, nil
}

// WithAccessToken returns a copy of c scoped to tok.
func (c *Client) WithAccessToken(tok string) provider.Client {
	dup := *c
	dup.token = tok
	return &dup
}

// Me verifies the scoped token and returns the requested fields found in its
// claims. The id field is taken from sub; "picture" is reported as the plain
// URL string the token carries.
func (c *Client) Me(ctx context.Context, fields []string) (provider.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.token == "" {
		return nil, ErrNoAccessToken
	}
	claims, _, err := c.verify(c.token)
	if err != nil {
		return nil, err
	}

	profile := provider.Profile{}
	for _, f := range fields {
		switch f {
		case "id":
			if sub, _ := claims["sub"].(string); sub != "" {
				profile["id"] = sub
			}
		default:
			if v, ok := claims[f]; ok {
				profile[f] = v
			}
		}
	}
	return profile, nil
}

func (c *Client) verify(tok string) (jwt.MapClaims, string, error) {
	if strings.TrimSpace(tok) == "" {
		return nil, "", fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(c.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.iss),
		jwt.WithAudience(c.cfg.AppID),
		jwt.WithLeeway(c.cfg.Leeway),
	)
	parsed, err := parser.Parse(tok, c.keyfunc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: token parse/verify failed: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", fmt.Errorf("%w: invalid claims type", ErrInvalidToken)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims, parsed.Method.Alg(), nil
}
