package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ggoodman/fbsignedrequest/internal/signedrequest"
	"github.com/ggoodman/fbsignedrequest/provider"
	"github.com/google/go-cmp/cmp"
)

type recordedRequest struct {
	path          string
	fields        string
	proof         string
	authorization string
}

func newGraphServer(t *testing.T, status int, body any) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.fields = r.URL.Query().Get("fields")
		rec.proof = r.URL.Query().Get("appsecret_proof")
		rec.authorization = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New("ABC123", "secret", opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestMe_HappyPath(t *testing.T) {
	srv, rec := newGraphServer(t, http.StatusOK, map[string]any{"id": "U1", "name": "Ada", "email": "ada@example.com"})
	c := newClient(t, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	got, err := c.WithAccessToken("tok-1").Me(context.Background(), []string{"id", "name", "email"})
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	want := provider.Profile{"id": "U1", "name": "Ada", "email": "ada@example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
	if got.ID() != "U1" {
		t.Fatalf("want id U1, got %q", got.ID())
	}
	if rec.path != "/"+DefaultVersion+"/me" {
		t.Fatalf("unexpected path %q", rec.path)
	}
	if rec.fields != "id,name,email" {
		t.Fatalf("unexpected fields %q", rec.fields)
	}
	if rec.authorization != "Bearer tok-1" {
		t.Fatalf("unexpected authorization %q", rec.authorization)
	}
	if rec.proof != AppSecretProof("secret", "tok-1") {
		t.Fatalf("unexpected appsecret_proof %q", rec.proof)
	}
}

func TestMe_UnversionedWithoutProof(t *testing.T) {
	srv, rec := newGraphServer(t, http.StatusOK, map[string]any{"id": "U1"})
	c := newClient(t, WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()), WithVersion(""), WithoutAppSecretProof())

	if _, err := c.WithAccessToken("tok").Me(context.Background(), nil); err != nil {
		t.Fatalf("me: %v", err)
	}
	if rec.path != "/me" {
		t.Fatalf("unexpected path %q", rec.path)
	}
	if rec.proof != "" || rec.fields != "" {
		t.Fatalf("unexpected query: fields=%q proof=%q", rec.fields, rec.proof)
	}
}

func TestMe_APIError(t *testing.T) {
	srv, _ := newGraphServer(t, http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "Invalid OAuth access token.", "type": "OAuthException", "code": 190, "fbtrace_id": "T"},
	})
	c := newClient(t, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	_, err := c.WithAccessToken("bad").Me(context.Background(), []string{"id"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.Code != 190 || apiErr.StatusCode != http.StatusBadRequest || apiErr.Type != "OAuthException" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestMe_UnexpectedBodies(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
	}{
		{name: "array body", status: http.StatusOK, body: []string{"x"}},
		{name: "null body", status: http.StatusOK, body: nil},
		{name: "server error without envelope", status: http.StatusBadGateway, body: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGraphServer(t, tt.status, tt.body)
			c := newClient(t, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
			if _, err := c.WithAccessToken("tok").Me(context.Background(), nil); !errors.Is(err, ErrUnexpectedResponse) {
				t.Fatalf("want ErrUnexpectedResponse, got %v", err)
			}
		})
	}
}

func TestMe_RequiresAccessToken(t *testing.T) {
	c := newClient(t)
	if _, err := c.Me(context.Background(), nil); !errors.Is(err, ErrNoAccessToken) {
		t.Fatalf("want ErrNoAccessToken, got %v", err)
	}
}

func TestMe_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	c := newClient(t, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.WithAccessToken("tok").Me(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestWithAccessToken_DoesNotMutateShared(t *testing.T) {
	c := newClient(t)
	scoped := c.WithAccessToken("tok")
	if c.accessToken != "" {
		t.Fatalf("shared client was mutated")
	}
	if scoped.(*Client).accessToken != "tok" {
		t.Fatalf("scoped client missing token")
	}
}

func TestParseSignedRequest(t *testing.T) {
	c := newClient(t)
	raw, err := signedrequest.Sign(map[string]any{"user_id": "U1", "issued_at": time.Now().Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sr, err := c.ParseSignedRequest(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sr.UserID != "U1" {
		t.Fatalf("want U1, got %q", sr.UserID)
	}
	if _, err := c.ParseSignedRequest("bogus"); !errors.Is(err, provider.ErrInvalidSignedRequest) {
		t.Fatalf("want ErrInvalidSignedRequest, got %v", err)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New("", "secret"); err == nil {
		t.Fatalf("expected error for missing app id")
	}
	if _, err := New("app", ""); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}
