package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/parleychat/parley/pkg/providersdk"
)

// DefaultAccessTokenTTL is the assumed access token validity window
// when the provider states nothing else.
const DefaultAccessTokenTTL = time.Hour

// tokenExpiry derives the access token's expiry instant. The token's
// own exp claim wins when the token decodes as a JWT; failing that,
// the provider's stated expires_in; failing that, the fixed window.
// The result is never zero, so a session always carries an expiry
// alongside its token.
func tokenExpiry(pair *providersdk.TokenPair, now time.Time, fallbackTTL time.Duration) time.Time {
	if exp, ok := jwtExpiry(pair.AccessToken); ok {
		return exp
	}
	if pair.ExpiresIn > 0 {
		return now.Add(time.Duration(pair.ExpiresIn) * time.Second)
	}
	if fallbackTTL <= 0 {
		fallbackTTL = DefaultAccessTokenTTL
	}
	return now.Add(fallbackTTL)
}

// jwtExpiry reads the exp claim from a JWT access token without
// verifying its signature. Verification is the backend's job; we only
// need the provider-stated lifetime.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time.UTC(), true
}
