// Package auth implements the "facebookSignedRequest" authentication
// strategy. It authenticates a request from the credential pair produced by
// the provider's client-side login: an access token and a signed request
// (an HMAC-signed, base64url-encoded assertion carrying the user id and its
// issue time).
//
// A Strategy is built once with New and shared by all requests. Each call to
// Authenticate returns exactly one Outcome: Success, Fail or Error. Hosts map
// outcomes to responses themselves; packages httpauth and ginauth do this for
// net/http and gin.
//
// # Minimal and enriched identities
//
// Without Config.UserFields the strategy trusts the signed request alone: the
// identity handed to the VerifyFunc is provider.Profile{"id": <user_id>}, the
// signed request must carry a user id, and it must have been issued within
// Config.SignedRequestExpiresIn minutes (20 by default, <= 0 disables the
// check).
//
// With Config.UserFields the strategy calls /me?fields=... with the access
// token and passes the raw profile to the VerifyFunc. The freshness check is
// skipped on this path: a successful profile fetch already proves the token
// is live.
//
// Example:
//
//	strategy, err := auth.New(&auth.Config{
//	    AppID:     os.Getenv("FACEBOOK_APP_ID"),
//	    AppSecret: os.Getenv("FACEBOOK_APP_SECRET"),
//	}, func(ctx context.Context, id provider.Profile) (any, any, error) {
//	    u, err := users.ByFacebookID(ctx, id.ID())
//	    if errors.Is(err, users.ErrNotFound) {
//	        return nil, map[string]string{"message": "no match"}, nil
//	    }
//	    return u, nil, err
//	})
//	if err != nil { log.Fatal(err) }
//
//	out := strategy.Authenticate(r.Context(), r)
//	switch out.Kind {
//	case auth.OutcomeSuccess: // out.User
//	case auth.OutcomeFail:    // 401
//	case auth.OutcomeError:   // inspect out.Err
//	}
//
// # Errors
//
// Construction fails with *ConfigurationError, or ErrSecretMissing when only
// the app secret is absent. Request-time failures are Error outcomes whose
// error is a *RequestError matching one of ErrMissingAccessToken,
// ErrMissingSignedRequest, ErrBadSignedRequest or ErrSignedRequestExpired via
// errors.Is. Messages can be overridden per category through Config.
package auth
