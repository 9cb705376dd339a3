// Package httpauth binds an auth.Authenticator to net/http. The middleware
// runs the strategy once per request, stores the authenticated user on the
// request context and answers failures itself.
//
//	mux.Handle("POST /login/facebook", httpauth.Middleware(strategy)(loginHandler))
//
// Outcome mapping:
//   - Success: next handler runs; UserFromContext returns the user.
//   - Fail: 401 with an invalid_token challenge.
//   - Error for missing credentials: 400 invalid_request.
//   - Error for a bad or expired signed request: 401 invalid_token.
//   - Any other error: 500 without details.
package httpauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ggoodman/fbsignedrequest/auth"
	"github.com/ggoodman/fbsignedrequest/internal/logctx"
	"github.com/google/uuid"
)

const (
	requestIDHeader       = "X-Request-Id"
	wwwAuthenticateHeader = "WWW-Authenticate"
	challengeScheme       = "FacebookSignedRequest"
)

// Option configures the middleware.
type Option func(*config)

type config struct {
	logger *slog.Logger
	realm  string
	onDeny func(w http.ResponseWriter, r *http.Request, out auth.Outcome)
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges. Empty
// omits the attribute.
func WithRealm(realm string) Option {
	return func(c *config) { c.realm = strings.TrimSpace(realm) }
}

// WithDenyHandler replaces the default response for Fail and Error outcomes.
func WithDenyHandler(fn func(w http.ResponseWriter, r *http.Request, out auth.Outcome)) Option {
	return func(c *config) { c.onDeny = fn }
}

type userKey struct{}
type infoKey struct{}

// UserFromContext returns the user stored by a successful authentication.
func UserFromContext(ctx context.Context) (any, bool) {
	u := ctx.Value(userKey{})
	return u, u != nil
}

// InfoFromContext returns the info value of a successful authentication.
func InfoFromContext(ctx context.Context) any {
	return ctx.Value(infoKey{})
}

// WithUser returns ctx carrying the outcome's user and info. Bindings for
// other routers use it so UserFromContext works everywhere.
func WithUser(ctx context.Context, out auth.Outcome) context.Context {
	ctx = context.WithValue(ctx, userKey{}, out.User)
	return context.WithValue(ctx, infoKey{}, out.Info)
}

// Middleware returns a net/http middleware running a for every request.
func Middleware(a auth.Authenticator, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	log := logctx.Wrap(cfg.logger)
	deny := cfg.onDeny
	if deny == nil {
		deny = func(w http.ResponseWriter, r *http.Request, out auth.Outcome) {
			WriteOutcome(w, out, cfg.realm)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logctx.WithRequestData(r.Context(), RequestData(r))

			out := a.Authenticate(ctx, r)
			switch out.Kind {
			case auth.OutcomeSuccess:
				log.DebugContext(ctx, "http.auth.ok", slog.String("strategy", a.Name()))
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), out)))
				return
			case auth.OutcomeFail:
				log.InfoContext(ctx, "http.auth.fail", slog.String("strategy", a.Name()))
			default:
				log.WarnContext(ctx, "http.auth.err", slog.String("strategy", a.Name()), slog.Any("err", out.Err))
			}
			deny(w, r, out)
		})
	}
}

// RequestData describes r for log enrichment, minting a request id when the
// client did not send one.
func RequestData(r *http.Request) *logctx.RequestData {
	id := r.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	return &logctx.RequestData{
		RequestID:  id,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	}
}

// Response is the HTTP rendering of a denied outcome.
type Response struct {
	Status    int
	Challenge string
	Message   string
}

// Render maps a Fail or Error outcome to a Response. It must not be called
// with a Success outcome.
func Render(out auth.Outcome, realm string) Response {
	if out.Kind == auth.OutcomeFail {
		msg := infoMessage(out.Info)
		if msg == "" {
			msg = "authentication failed"
		}
		return Response{
			Status:    http.StatusUnauthorized,
			Challenge: buildChallenge(realm, map[string]string{"error": "invalid_token", "error_description": msg}),
			Message:   msg,
		}
	}

	var rerr *auth.RequestError
	if errors.As(out.Err, &rerr) {
		switch {
		case errors.Is(rerr, auth.ErrMissingAccessToken), errors.Is(rerr, auth.ErrMissingSignedRequest):
			return Response{
				Status:    http.StatusBadRequest,
				Challenge: buildChallenge(realm, map[string]string{"error": "invalid_request", "error_description": rerr.Message}),
				Message:   rerr.Message,
			}
		default:
			return Response{
				Status:    http.StatusUnauthorized,
				Challenge: buildChallenge(realm, map[string]string{"error": "invalid_token", "error_description": rerr.Message}),
				Message:   rerr.Message,
			}
		}
	}
	return Response{Status: http.StatusInternalServerError, Message: "internal error"}
}

// WriteOutcome writes the default response for a denied outcome.
func WriteOutcome(w http.ResponseWriter, out auth.Outcome, realm string) {
	res := Render(out, realm)
	if res.Challenge != "" {
		w.Header().Add(wwwAuthenticateHeader, res.Challenge)
	}
	writeJSONError(w, res.Status, res.Message)
}

// writeJSONError emits {"error":{"code":<status>,"message":"<reason>"}}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// infoMessage extracts a human readable message from a Fail info value.
func infoMessage(info any) string {
	switch v := info.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case map[string]any:
		s, _ := v["message"].(string)
		return s
	case map[string]string:
		return v["message"]
	case interface{ Message() string }:
		return v.Message()
	}
	return ""
}

// buildChallenge renders `<scheme> realm="..", error="..", error_description=".."`.
// Realm is omitted if empty.
func buildChallenge(realm string, params map[string]string) string {
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	pieces := make([]string, 0, 3)
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	for _, k := range []string{"error", "error_description"} {
		if v, ok := params[k]; ok && v != "" {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc(v)))
		}
	}
	if len(pieces) == 0 {
		return challengeScheme
	}
	return challengeScheme + " " + strings.Join(pieces, ", ")
}
