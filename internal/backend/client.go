package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized marks a backend rejection of the current credential.
// The failure has already been reported to the session layer when this
// error surfaces, and the caller must not retry the request itself.
var ErrUnauthorized = errors.New("unauthorized")

// Authorizer supplies the Authorization header for outbound calls and
// receives reports of credential rejections.
type Authorizer interface {
	AuthorizationHeader() (string, bool)
	ReportUnauthorized(ctx context.Context)
}

// Client is the shared transport for the downstream API clients. Every
// request goes through do, which attaches the current credential and
// funnels authentication failures back to the Authorizer.
type Client struct {
	BaseURL    string
	Auth       Authorizer
	HTTPClient *http.Client
}

// NewClient creates a backend transport rooted at baseURL.
func NewClient(baseURL string, auth Authorizer) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Auth:    auth,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// do performs one authorized request. A 401 response collapses the
// session via the Authorizer and comes back as ErrUnauthorized.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if header, _ := c.Auth.AuthorizationHeader(); header != "" {
		req.Header.Set("Authorization", header)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.Auth.ReportUnauthorized(ctx)
		return nil, fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	}

	return resp, nil
}

// doJSON performs an authorized request with a JSON body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = strings.NewReader(string(data))
	}
	return c.do(ctx, method, path, body, map[string]string{"Content-Type": "application/json"})
}

// decodeJSON decodes a response body into target, treating any status
// other than expectedStatus as an error.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
