package providersdk

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseCallback extracts the token pair from a provider redirect URL.
// The provider delivers tokens in the URL fragment; some browser
// surfaces re-deliver the fragment as a query string, so both
// components are accepted (fragment wins when both are present).
func ParseCallback(callbackURL string) (*TokenPair, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback URL: %w", err)
	}

	raw := u.Fragment
	if raw == "" {
		raw = u.RawQuery
	}

	return ParseCallbackFragment(raw)
}

// ParseCallbackFragment parses the fragment component of a callback
// URL: &-joined key=value pairs, order not significant. An
// access_token pair is required; refresh_token and expires_in are
// read when present. A provider-reported error pair fails with a
// typed *ProviderError.
func ParseCallbackFragment(fragment string) (*TokenPair, error) {
	values := make(map[string]string)
	for _, part := range strings.Split(fragment, "&") {
		key, value, found := strings.Cut(part, "=")
		if !found || key == "" {
			continue
		}
		// Values are plain beyond the pair framing, but providers
		// percent-encode error descriptions; unescape when possible.
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		values[key] = value
	}

	if errCode := values["error"]; errCode != "" {
		return nil, &ProviderError{
			Code:        errCode,
			Description: values["error_description"],
		}
	}

	access := values["access_token"]
	if access == "" {
		return nil, ErrNoAccessToken
	}

	pair := &TokenPair{
		AccessToken:  access,
		RefreshToken: values["refresh_token"],
	}

	if raw := values["expires_in"]; raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			pair.ExpiresIn = secs
		}
	}

	return pair, nil
}
