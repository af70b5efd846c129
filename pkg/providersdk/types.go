package providersdk

// TokenPair is the credential material the provider hands out, either
// through the implicit-flow callback fragment or the token refresh
// endpoint.
type TokenPair struct {
	// AccessToken is the short-lived bearer credential
	AccessToken string `json:"access_token"`

	// RefreshToken mints new access tokens; the provider may omit it
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the access token lifetime in seconds, when the
	// provider states one
	ExpiresIn int `json:"expires_in,omitempty"`
}

// ErrorResponse is the provider's OAuth-style error body.
// This is used internally for parsing HTTP error responses; client
// code sees the typed ProviderError from errors.go instead.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// apiErrorResponse is the provider's non-OAuth error shape
// ({"code": 400, "msg": "..."}), used by the user and token endpoints.
type apiErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// userResponse is the wire shape of the user directory lookup.
type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

// User is the canonical identity the directory resolves a bearer
// credential to.
type User struct {
	ID        string
	Email     string
	FullName  string
	AvatarURL string
}
