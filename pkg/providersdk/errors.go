package providersdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidEndpoint is returned when the configured provider base
	// URL cannot produce a usable endpoint.
	ErrInvalidEndpoint = errors.New("invalid_provider_endpoint")

	// ErrNoAccessToken is returned when a callback carries no
	// access_token pair.
	ErrNoAccessToken = errors.New("callback_missing_access_token")

	// ErrMalformedResponse is returned when a 2xx provider response
	// body cannot be decoded or lacks required fields.
	ErrMalformedResponse = errors.New("malformed_provider_response")
)

// ProviderError represents a non-2xx response from the identity
// provider, or a provider-reported error delivered through a callback.
type ProviderError struct {
	// StatusCode is the HTTP status code, zero for callback errors
	StatusCode int

	// Code is the provider's error code (e.g. "access_denied")
	Code string

	// Description is the provider's human-readable description
	Description string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("provider error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// parseErrorResponse turns a non-2xx provider response into a typed
// *ProviderError. The provider uses two error body shapes: OAuth-style
// {"error", "error_description"} and API-style {"code", "msg"}; both
// are tried before falling back to the bare status code.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &ProviderError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
		return &ProviderError{
			StatusCode:  resp.StatusCode,
			Code:        http.StatusText(resp.StatusCode),
			Description: apiErr.Msg,
		}
	}

	return &ProviderError{
		StatusCode:  resp.StatusCode,
		Description: http.StatusText(resp.StatusCode),
	}
}
