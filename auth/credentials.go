package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elnormous/contenttype"
)

var (
	jsonMediaType      = contenttype.NewMediaType("application/json")
	formMediaType      = contenttype.NewMediaType("application/x-www-form-urlencoded")
	multipartMediaType = contenttype.NewMediaType("multipart/form-data")
)

const maxMultipartMemory = 32 << 20

// errBodyTooLarge is returned when a JSON body exceeds the configured limit.
var errBodyTooLarge = errors.New("fbauth: request body too large")

// extractCredentials resolves the credential pair from per-call overrides
// first and the request body second. Missing values are left empty.
func (s *Strategy) extractCredentials(r *http.Request, ao *authenticateOptions) (Credentials, error) {
	creds := ao.creds
	if creds.AccessToken != "" && creds.SignedRequest != "" {
		return creds, nil
	}
	if r == nil {
		return creds, nil
	}

	fields, err := s.bodyFields(r)
	if err != nil {
		return creds, err
	}
	if creds.AccessToken == "" {
		creds.AccessToken = fields[s.cfg.AccessTokenField]
	}
	if creds.SignedRequest == "" {
		creds.SignedRequest = fields[s.cfg.SignedRequestField]
	}
	return creds, nil
}

// bodyFields returns the string-valued top level fields of a JSON object or
// form body. Other content types yield no fields. JSON bodies are restored so
// later handlers can read them again; form values stay on r.PostForm.
func (s *Strategy) bodyFields(r *http.Request) (map[string]string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	ctype, err := contenttype.GetMediaType(r)
	if err != nil {
		return nil, nil
	}

	switch {
	case ctype.Matches(jsonMediaType):
		return s.jsonFields(r)
	case ctype.Matches(formMediaType), ctype.Matches(multipartMediaType):
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("fbauth: parse form body: %w", err)
		}
		out := map[string]string{}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				out[k] = vs[0]
			}
		}
		return out, nil
	}
	return nil, nil
}

func (s *Strategy) jsonFields(r *http.Request) (map[string]string, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("fbauth: read request body: %w", err)
	}
	if int64(len(b)) > s.maxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, s.maxBodyBytes)
	}

	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		// Not an object: the credentials are simply absent.
		return nil, nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if str, ok := v.(string); ok {
			out[k] = str
		}
	}
	return out, nil
}
