package ginauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ggoodman/fbsignedrequest/auth"
	"github.com/ggoodman/fbsignedrequest/httpauth"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticAuthenticator struct{ out auth.Outcome }

func (s staticAuthenticator) Name() string { return "static" }

func (s staticAuthenticator) Authenticate(context.Context, *http.Request, ...auth.AuthenticateOption) auth.Outcome {
	return s.out
}

func newRouter(out auth.Outcome) *gin.Engine {
	r := gin.New()
	r.POST("/login", Middleware(staticAuthenticator{out: out}, nil, "login"), func(c *gin.Context) {
		u, ok := MustUser(c)
		if !ok {
			return
		}
		fromCtx, _ := httpauth.UserFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": u, "ctx": fromCtx})
	})
	return r
}

func TestMiddleware_Success(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(auth.Success("alice", nil)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user"] != "alice" || body["ctx"] != "alice" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMiddleware_Denied(t *testing.T) {
	tests := []struct {
		name       string
		out        auth.Outcome
		wantStatus int
	}{
		{name: "fail", out: auth.Fail("no match"), wantStatus: http.StatusUnauthorized},
		{name: "missing", out: auth.Errored(&auth.RequestError{Kind: auth.ErrMissingSignedRequest, Message: "missing"}), wantStatus: http.StatusBadRequest},
		{name: "expired", out: auth.Errored(&auth.RequestError{Kind: auth.ErrSignedRequestExpired, Message: "expired"}), wantStatus: http.StatusUnauthorized},
		{name: "internal", out: auth.Errored(errors.New("boom")), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			newRouter(tt.out).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("want %d, got %d", tt.wantStatus, rr.Code)
			}
			var body struct {
				Error struct {
					Code int `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantStatus {
				t.Fatalf("unexpected error body %s", rr.Body.String())
			}
		})
	}
}

func TestMustUser_Unauthenticated(t *testing.T) {
	r := gin.New()
	r.GET("/me", func(c *gin.Context) {
		if _, ok := MustUser(c); ok {
			c.Status(http.StatusOK)
		}
	})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rr.Code)
	}
}
