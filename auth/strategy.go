package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ggoodman/fbsignedrequest/graph"
	"github.com/ggoodman/fbsignedrequest/internal/logctx"
	"github.com/ggoodman/fbsignedrequest/provider"
	"github.com/ggoodman/fbsignedrequest/storage"
)

const (
	modeMinimal  = "minimal"
	modeEnriched = "enriched"
)

// Strategy authenticates requests carrying an access token and a signed
// request from the provider's client-side login. A Strategy is immutable
// after New and safe for concurrent use.
type Strategy struct {
	cfg    Config
	verify VerifyFunc
	client provider.Client
	log    *slog.Logger

	cache        storage.Storage
	cacheTTL     time.Duration
	now          func() time.Time
	maxBodyBytes int64
}

var _ Authenticator = (*Strategy)(nil)

// New validates cfg and returns a Strategy. A nil cfg, nil verify or missing
// app id yields *ConfigurationError; a missing secret yields
// ErrSecretMissing. New does not contact the network.
func New(cfg *Config, verify VerifyFunc, opts ...Option) (*Strategy, error) {
	if cfg == nil {
		return nil, &ConfigurationError{Reason: "strategy requires to be initialized with options"}
	}
	if verify == nil {
		return nil, &ConfigurationError{Field: "verify", Reason: "strategy requires a verify callback"}
	}
	c := cfg.Copy()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Normalize()

	o := &options{now: time.Now, maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		gc, err := graph.New(c.AppID, c.AppSecret, o.graphOpts...)
		if err != nil {
			return nil, &ConfigurationError{Reason: err.Error()}
		}
		client = gc
	}
	if o.maxBodyBytes <= 0 {
		o.maxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Strategy{
		cfg:          c,
		verify:       verify,
		client:       client,
		log:          logctx.Wrap(o.logger),
		now:          o.now,
		maxBodyBytes: o.maxBodyBytes,
	}
	if o.cache != nil && o.cacheTTL > 0 {
		s.cache = o.cache
		s.cacheTTL = o.cacheTTL
	}
	return s, nil
}

// Name returns "facebookSignedRequest".
func (s *Strategy) Name() string { return Name }

// Config returns a copy of the effective configuration, defaults applied.
func (s *Strategy) Config() Config { return s.cfg.Copy() }

// Authenticate runs the full protocol for r and returns exactly one outcome.
// Panics raised while verifying, resolving or inside the VerifyFunc are
// reported as an Error outcome wrapping ErrPanic.
func (s *Strategy) Authenticate(ctx context.Context, r *http.Request, opts ...AuthenticateOption) (out Outcome) {
	mode := modeMinimal
	if s.cfg.Enriched() {
		mode = modeEnriched
	}
	ad := &logctx.AuthData{Strategy: Name, Mode: mode}
	ctx = logctx.WithAuthData(ctx, ad)

	defer func() {
		if rec := recover(); rec != nil {
			out = Errored(fmt.Errorf("%w: %v", ErrPanic, rec))
			s.log.ErrorContext(ctx, "auth.panic", slog.Any("panic", rec))
		}
	}()

	ao := &authenticateOptions{}
	for _, opt := range opts {
		opt(ao)
	}

	creds, err := s.extractCredentials(r, ao)
	if err != nil {
		s.log.WarnContext(ctx, "auth.extract.fail", slog.String("err", err.Error()))
		return Errored(err)
	}
	if creds.AccessToken == "" {
		s.log.InfoContext(ctx, "auth.extract.missing", slog.String("field", s.cfg.AccessTokenField))
		return Errored(newRequestError(ErrMissingAccessToken, s.cfg.BadAccessTokenMessage,
			fmt.Sprintf("Facebook not logged in (AccessToken not defined on the post body: %s)", s.cfg.AccessTokenField), nil))
	}
	if creds.SignedRequest == "" {
		s.log.InfoContext(ctx, "auth.extract.missing", slog.String("field", s.cfg.SignedRequestField))
		return Errored(newRequestError(ErrMissingSignedRequest, s.cfg.BadSignedRequestMessage,
			fmt.Sprintf("Facebook not logged in (Signed Request not defined on the post body: %s)", s.cfg.SignedRequestField), nil))
	}

	sr, err := s.client.ParseSignedRequest(creds.SignedRequest)
	if err != nil || sr == nil {
		if err == nil {
			err = provider.ErrInvalidSignedRequest
		}
		s.log.InfoContext(ctx, "auth.signed_request.invalid", slog.String("err", err.Error()))
		return Errored(newRequestError(ErrBadSignedRequest, s.cfg.BadSignedRequestMessage, err.Error(), err))
	}
	ad.UserID = sr.UserID

	var identity provider.Profile
	if mode == modeMinimal {
		if err := s.checkMinimal(sr); err != nil {
			s.log.InfoContext(ctx, "auth.signed_request.reject", slog.String("err", err.Error()))
			return Errored(err)
		}
		identity = provider.Profile{"id": sr.UserID}
	} else {
		identity, err = s.fetchProfile(ctx, creds.AccessToken)
		if err != nil {
			s.log.WarnContext(ctx, "auth.profile.fail", slog.String("err", err.Error()))
			return Errored(err)
		}
		if id := identity.ID(); id != "" {
			ad.UserID = id
		}
	}
	s.log.DebugContext(ctx, "auth.identity.resolved")

	out = dispatch(s.verify(ctx, identity))
	s.log.InfoContext(ctx, "auth.verify.done", slog.String("outcome", out.Kind.String()))
	return out
}

// checkMinimal enforces the subject and freshness rules of the minimal path.
func (s *Strategy) checkMinimal(sr *provider.SignedRequest) error {
	if sr.UserID == "" {
		return newRequestError(ErrBadSignedRequest, s.cfg.BadSignedRequestMessage, "User not authenticated", nil)
	}
	window := s.cfg.expiryWindow()
	if window <= 0 {
		return nil
	}
	expiry := sr.IssuedAt.UnixMilli() + int64(window)*60*1000
	if expiry < s.now().UnixMilli() {
		return newRequestError(ErrSignedRequestExpired, s.cfg.BadSignedRequestExpiredMessage, "The Facebook session has expired", nil)
	}
	return nil
}

// fetchProfile returns the enriched identity for accessToken, consulting the
// profile cache when one is configured. Cache failures are logged and never
// fail the request.
func (s *Strategy) fetchProfile(ctx context.Context, accessToken string) (provider.Profile, error) {
	var key string
	if s.cache != nil {
		key = s.cacheKey(accessToken)
		item, err := s.cache.Get(ctx, key, storage.WithNamespace(s.cfg.AppID))
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "auth.profile.cache.get_fail", slog.String("err", err.Error()))
		case item != nil:
			var p provider.Profile
			if err := json.Unmarshal(item.Data, &p); err == nil && p != nil {
				s.log.DebugContext(ctx, "auth.profile.cache.hit")
				return p, nil
			}
		}
	}

	p, err := s.client.WithAccessToken(accessToken).Me(ctx, s.cfg.UserFields)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, b, storage.WithNamespace(s.cfg.AppID), storage.WithTTL(s.cacheTTL)); err != nil {
				s.log.WarnContext(ctx, "auth.profile.cache.set_fail", slog.String("err", err.Error()))
			}
		}
	}
	return p, nil
}

func (s *Strategy) cacheKey(accessToken string) string {
	h := sha256.New()
	h.Write([]byte(s.cfg.AppID))
	h.Write([]byte{0})
	h.Write([]byte(accessToken))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(s.cfg.UserFields, ",")))
	return "profile:" + hex.EncodeToString(h.Sum(nil))
}
