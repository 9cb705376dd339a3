package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
)

const (
	// DefaultSignedRequestExpiresIn is the freshness window, in minutes,
	// applied when Config.SignedRequestExpiresIn is nil.
	DefaultSignedRequestExpiresIn = 20

	DefaultAccessTokenField   = "accessToken"
	DefaultSignedRequestField = "signedRequest"
)

// Config is the strategy configuration. New copies it; the strategy never
// observes later mutations by the caller.
type Config struct {
	AppID     string `validate:"required"`
	AppSecret string `validate:"required"`

	// UserFields selects the enriched path: when non-empty the identity is
	// the /me profile restricted to these fields instead of the signed
	// request's user id.
	UserFields []string `validate:"omitempty,dive,required"`

	// SignedRequestExpiresIn is the freshness window in minutes. nil means
	// DefaultSignedRequestExpiresIn; zero or negative disables the check.
	// Only consulted on the minimal path.
	SignedRequestExpiresIn *int

	BadAccessTokenMessage          string
	BadSignedRequestMessage        string
	BadSignedRequestExpiredMessage string

	AccessTokenField   string
	SignedRequestField string
}

// ExpiresIn is a convenience for populating Config.SignedRequestExpiresIn.
func ExpiresIn(minutes int) *int { return &minutes }

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if c.SignedRequestExpiresIn == nil {
		c.SignedRequestExpiresIn = ExpiresIn(DefaultSignedRequestExpiresIn)
	}
	if c.AccessTokenField == "" {
		c.AccessTokenField = DefaultAccessTokenField
	}
	if c.SignedRequestField == "" {
		c.SignedRequestField = DefaultSignedRequestField
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports a missing app id as *ConfigurationError and a missing
// secret as ErrSecretMissing. The app id is checked first.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigurationError{Reason: err.Error()}
	}

	byField := map[string]validator.FieldError{}
	for _, fe := range verrs {
		if _, seen := byField[fe.StructField()]; !seen {
			byField[fe.StructField()] = fe
		}
	}
	if _, ok := byField["AppID"]; ok {
		return &ConfigurationError{Field: "AppID", Reason: "strategy options require an app id"}
	}
	if _, ok := byField["AppSecret"]; ok {
		return ErrSecretMissing
	}
	fe := verrs[0]
	return &ConfigurationError{Field: fe.Namespace(), Reason: fmt.Sprintf("failed %q validation", fe.Tag())}
}

// Copy returns a deep copy safe for mutation by the caller.
func (c Config) Copy() Config {
	dup := c
	dup.UserFields = append([]string(nil), c.UserFields...)
	if len(c.UserFields) == 0 {
		dup.UserFields = nil
	}
	if c.SignedRequestExpiresIn != nil {
		dup.SignedRequestExpiresIn = ExpiresIn(*c.SignedRequestExpiresIn)
	}
	return dup
}

// Enriched reports whether profiles are fetched from the provider.
func (c Config) Enriched() bool { return len(c.UserFields) > 0 }

// expiryWindow returns the freshness window in minutes; <= 0 means disabled.
func (c Config) expiryWindow() int {
	if c.SignedRequestExpiresIn == nil {
		return DefaultSignedRequestExpiresIn
	}
	return *c.SignedRequestExpiresIn
}

// envConfig mirrors Config for envdecode. Lists and the optional window are
// kept as strings so "unset" and "0" stay distinguishable.
type envConfig struct {
	AppID                          string `env:"FACEBOOK_APP_ID"`
	AppSecret                      string `env:"FACEBOOK_APP_SECRET"`
	UserFields                     string `env:"FACEBOOK_USER_FIELDS"`
	SignedRequestExpiresIn         string `env:"FACEBOOK_SIGNED_REQUEST_EXPIRES_IN"`
	BadAccessTokenMessage          string `env:"FACEBOOK_BAD_ACCESS_TOKEN_MESSAGE"`
	BadSignedRequestMessage        string `env:"FACEBOOK_BAD_SIGNED_REQUEST_MESSAGE"`
	BadSignedRequestExpiredMessage string `env:"FACEBOOK_BAD_SIGNED_REQUEST_EXPIRED_MESSAGE"`
	AccessTokenField               string `env:"FACEBOOK_ACCESS_TOKEN_FIELD"`
	SignedRequestField             string `env:"FACEBOOK_SIGNED_REQUEST_FIELD"`
}

// ConfigFromEnv builds a Config from FACEBOOK_* environment variables.
// FACEBOOK_USER_FIELDS is a comma separated list. A non-numeric
// FACEBOOK_SIGNED_REQUEST_EXPIRES_IN disables the freshness check. Missing
// required values are reported by New, not here.
func ConfigFromEnv() (*Config, error) {
	var ec envConfig
	if err := envdecode.Decode(&ec); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	cfg := &Config{
		AppID:                          ec.AppID,
		AppSecret:                      ec.AppSecret,
		BadAccessTokenMessage:          ec.BadAccessTokenMessage,
		BadSignedRequestMessage:        ec.BadSignedRequestMessage,
		BadSignedRequestExpiredMessage: ec.BadSignedRequestExpiredMessage,
		AccessTokenField:               ec.AccessTokenField,
		SignedRequestField:             ec.SignedRequestField,
	}
	for _, f := range strings.Split(ec.UserFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			cfg.UserFields = append(cfg.UserFields, f)
		}
	}
	if s := strings.TrimSpace(ec.SignedRequestExpiresIn); s != "" {
		// A non-numeric window disables the freshness check, same as <= 0.
		n, err := strconv.Atoi(s)
		if err != nil {
			n = 0
		}
		cfg.SignedRequestExpiresIn = &n
	}
	return cfg, nil
}
