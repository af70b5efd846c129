package providersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to the hosted identity provider. It covers the three
// surfaces the session core needs: the authorization redirect, the
// user directory lookup, and the token refresh endpoint.
type Client struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
}

// NewClient creates a provider client with a sensible request timeout.
func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		AnonKey: anonKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AuthorizeURL constructs the browser authorization URL for the given
// upstream provider (e.g. "google", "apple"). redirectTo is where the
// provider sends the callback carrying the token fragment.
func (c *Client) AuthorizeURL(provider, redirectTo string) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.BaseURL)
	}

	params := url.Values{}
	params.Set("provider", provider)
	params.Set("redirect_to", redirectTo)

	return fmt.Sprintf("%s/authorize?%s", c.BaseURL, params.Encode()), nil
}

// FetchUser exchanges an access token for the canonical user identity.
// Requires a 2xx response carrying at minimum a UUID id and an email;
// display name and avatar are read from the nested metadata object
// when present.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/user", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var ur userResponse
	if err := decodeJSON(resp, &ur, http.StatusOK); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(ur.ID); err != nil {
		return nil, fmt.Errorf("%w: user id %q is not a UUID", ErrMalformedResponse, ur.ID)
	}
	if ur.Email == "" {
		return nil, fmt.Errorf("%w: user response missing email", ErrMalformedResponse)
	}

	return &User{
		ID:        ur.ID,
		Email:     ur.Email,
		FullName:  ur.UserMetadata.FullName,
		AvatarURL: ur.UserMetadata.AvatarURL,
	}, nil
}

// Refresh exchanges a refresh token for a fresh token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/token?grant_type=refresh_token",
		bytes.NewReader(body), map[string]string{
			"Content-Type": "application/json",
		})
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeJSON(resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}

	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response missing access_token", ErrMalformedResponse)
	}

	return &pair, nil
}

// doRequest performs an HTTP request against the provider. The anon
// apikey header rides on every call; per-call headers come on top.
func (c *Client) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.AnonKey)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// decodeJSON decodes a JSON response into the target.
// Returns a typed *ProviderError when the response status does not
// match, and wraps decode failures in ErrMalformedResponse.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return nil
}
