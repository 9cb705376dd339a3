// Package signedrequest verifies and decodes provider signed requests of the
// form "<signature>.<payload>" where both segments are base64url encoded and
// the signature is an HMAC-SHA256 over the encoded payload keyed by the app
// secret.
package signedrequest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ggoodman/fbsignedrequest/provider"
	"github.com/golang-jwt/jwt/v5"
)

// AlgHMACSHA256 is the only algorithm the provider issues signed requests with.
const AlgHMACSHA256 = "HMAC-SHA256"

// Config controls signed request verification.
type Config struct {
	Secret      string
	AllowedAlgs []string
}

// DefaultConfig returns a Config accepting HMAC-SHA256 signed requests.
func DefaultConfig(secret string) *Config {
	return &Config{
		Secret:      secret,
		AllowedAlgs: []string{AlgHMACSHA256},
	}
}

// Verifier decodes signed requests for a single app secret. It is safe for
// concurrent use.
type Verifier struct {
	cfg    *Config
	parser *jwt.Parser
}

// New returns a Verifier for cfg.
func New(cfg *Config) (*Verifier, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("secret is required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{AlgHMACSHA256}
	}
	return &Verifier{
		cfg: cfg,
		// Signatures minted by some SDKs keep their base64 padding.
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
	}, nil
}

// Parse verifies raw and returns its decoded form. Every failure wraps
// provider.ErrInvalidSignedRequest.
func (v *Verifier) Parse(raw string) (*provider.SignedRequest, error) {
	sigSeg, payloadSeg, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok || sigSeg == "" || payloadSeg == "" || strings.Contains(payloadSeg, ".") {
		return nil, fmt.Errorf("%w: expected two segments", provider.ErrInvalidSignedRequest)
	}

	sig, err := v.parser.DecodeSegment(sigSeg)
	if err != nil {
		return nil, fmt.Errorf("%w: signature segment: %v", provider.ErrInvalidSignedRequest, err)
	}
	payload, err := v.parser.DecodeSegment(payloadSeg)
	if err != nil {
		return nil, fmt.Errorf("%w: payload segment: %v", provider.ErrInvalidSignedRequest, err)
	}

	claims := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object: %v", provider.ErrInvalidSignedRequest, err)
	}

	alg, _ := claims["algorithm"].(string)
	if !v.algAllowed(alg) {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", provider.ErrInvalidSignedRequest, alg)
	}

	// The signature covers the encoded payload segment, not the decoded JSON.
	if err := jwt.SigningMethodHS256.Verify(payloadSeg, sig, []byte(v.cfg.Secret)); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrInvalidSignedRequest, err)
	}

	sr := &provider.SignedRequest{
		UserID:    stringClaim(claims["user_id"]),
		Algorithm: alg,
		Code:      stringClaim(claims["code"]),
		Raw:       claims,
	}
	if iat, ok := claims["issued_at"].(json.Number); ok {
		secs, err := iat.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: issued_at: %v", provider.ErrInvalidSignedRequest, err)
		}
		sr.IssuedAt = time.Unix(int64(secs), 0)
	}
	return sr, nil
}

func (v *Verifier) algAllowed(alg string) bool {
	for _, a := range v.cfg.AllowedAlgs {
		if strings.EqualFold(a, alg) {
			return true
		}
	}
	return false
}

func stringClaim(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}

// Sign encodes claims and signs them with secret, producing a signed request
// in the provider's wire format. The "algorithm" claim is set when absent.
func Sign(claims map[string]any, secret string) (string, error) {
	out := make(map[string]any, len(claims)+1)
	out["algorithm"] = AlgHMACSHA256
	for k, v := range claims {
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	payloadSeg := base64.RawURLEncoding.EncodeToString(b)
	sig, err := jwt.SigningMethodHS256.Sign(payloadSeg, []byte(secret))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sig) + "." + payloadSeg, nil
}
