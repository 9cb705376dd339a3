package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/fbsignedrequest/provider/providertest"
)

func TestAuthenticate_FormBodies(t *testing.T) {
	fake := providertest.New("secret")
	sr := fake.SignedRequest("U1", fixedNow)

	urlencoded := func() *http.Request {
		form := url.Values{"accessToken": {"tok"}, "signedRequest": {sr}}
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return r
	}
	multipartForm := func() *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("accessToken", "tok")
		_ = mw.WriteField("signedRequest", sr)
		_ = mw.Close()
		r := httptest.NewRequest(http.MethodPost, "/", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		return r
	}

	for name, build := range map[string]func() *http.Request{
		"urlencoded": urlencoded,
		"multipart":  multipartForm,
	} {
		t.Run(name, func(t *testing.T) {
			v := &captureVerify{user: "u"}
			s := newStrategy(t, baseConfig(), v.fn, fake)
			r := build()
			out := s.Authenticate(context.Background(), r)
			if out.Kind != OutcomeSuccess {
				t.Fatalf("want success, got %v %v", out.Kind, out.Err)
			}
			if v.identity.ID() != "U1" {
				t.Fatalf("unexpected identity %v", v.identity)
			}
			if r.PostForm.Get("accessToken") != "tok" {
				t.Fatalf("form values not retained for later handlers")
			}
		})
	}
}

func TestAuthenticate_JSONBodyIsRestored(t *testing.T) {
	fake := providertest.New("secret")
	s := newStrategy(t, baseConfig(), (&captureVerify{user: "u"}).fn, fake)

	body := credsBody("tok", fake.SignedRequest("U1", fixedNow))
	r := jsonRequest(body)
	if out := s.Authenticate(context.Background(), r); out.Kind != OutcomeSuccess {
		t.Fatalf("want success, got %v %v", out.Kind, out.Err)
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != body {
		t.Fatalf("body not restored: %q", b)
	}
}

func TestAuthenticate_JSONWithCharset(t *testing.T) {
	fake := providertest.New("secret")
	s := newStrategy(t, baseConfig(), (&captureVerify{user: "u"}).fn, fake)

	r := jsonRequest(credsBody("tok", fake.SignedRequest("U1", fixedNow)))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	if out := s.Authenticate(context.Background(), r); out.Kind != OutcomeSuccess {
		t.Fatalf("want success, got %v %v", out.Kind, out.Err)
	}
}

func TestAuthenticate_UnsupportedContentType(t *testing.T) {
	fake := providertest.New("secret")
	s := newStrategy(t, baseConfig(), (&captureVerify{user: "u"}).fn, fake)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(credsBody("tok", fake.SignedRequest("U1", fixedNow))))
	r.Header.Set("Content-Type", "text/plain")
	out := s.Authenticate(context.Background(), r)
	if !errors.Is(out.Err, ErrMissingAccessToken) {
		t.Fatalf("want missing access token, got %v %v", out.Kind, out.Err)
	}
}

func TestAuthenticate_BodyTooLarge(t *testing.T) {
	fake := providertest.New("secret")
	s := newStrategy(t, baseConfig(), (&captureVerify{user: "u"}).fn, fake, WithMaxBodyBytes(16))

	out := s.Authenticate(context.Background(), jsonRequest(credsBody("tok", fake.SignedRequest("U1", fixedNow.Add(-time.Second)))))
	if out.Kind != OutcomeError || !errors.Is(out.Err, errBodyTooLarge) {
		t.Fatalf("want body too large, got %v %v", out.Kind, out.Err)
	}
}
