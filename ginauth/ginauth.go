// Package ginauth binds an auth.Authenticator to gin. Responses follow the
// same mapping as package httpauth.
package ginauth

import (
	"log/slog"
	"net/http"

	"github.com/ggoodman/fbsignedrequest/auth"
	"github.com/ggoodman/fbsignedrequest/httpauth"
	"github.com/ggoodman/fbsignedrequest/internal/logctx"
	"github.com/gin-gonic/gin"
)

// Keys under which a successful authentication is stored on the gin context.
const (
	UserKey = "fbauth.user"
	InfoKey = "fbauth.info"
)

// Middleware returns a gin handler that authenticates the request with a.
// On success the user is available via c.Get(UserKey) and via
// httpauth.UserFromContext(c.Request.Context()).
func Middleware(a auth.Authenticator, logger *slog.Logger, realm string) gin.HandlerFunc {
	log := logctx.Wrap(logger)
	return func(c *gin.Context) {
		ctx := logctx.WithRequestData(c.Request.Context(), httpauth.RequestData(c.Request))

		out := a.Authenticate(ctx, c.Request)
		if out.Kind == auth.OutcomeSuccess {
			c.Set(UserKey, out.User)
			c.Set(InfoKey, out.Info)
			c.Request = c.Request.WithContext(httpauth.WithUser(c.Request.Context(), out))
			c.Next()
			return
		}

		res := httpauth.Render(out, realm)
		if out.Kind == auth.OutcomeError {
			log.WarnContext(ctx, "gin.auth.err", slog.String("strategy", a.Name()), slog.Any("err", out.Err))
		} else {
			log.InfoContext(ctx, "gin.auth.fail", slog.String("strategy", a.Name()))
		}
		if res.Challenge != "" {
			c.Header("WWW-Authenticate", res.Challenge)
		}
		c.AbortWithStatusJSON(res.Status, gin.H{"error": gin.H{"code": res.Status, "message": res.Message}})
	}
}

// User returns the authenticated user stored by Middleware.
func User(c *gin.Context) (any, bool) {
	return c.Get(UserKey)
}

// MustUser is like User but responds 401 and returns false when no user is
// present.
func MustUser(c *gin.Context) (any, bool) {
	u, ok := User(c)
	if !ok || u == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": http.StatusUnauthorized, "message": "not authenticated"}})
		return nil, false
	}
	return u, true
}
