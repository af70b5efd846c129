package domain

import "time"

// Session is the authenticated identity plus its current credential
// material. At most one Session exists per process: it is created by a
// completed sign-in, replaced in place by a successful renewal, and
// destroyed by sign-out or forced logout.
type Session struct {
	UserID    string
	Email     string
	FullName  string
	AvatarURL string

	// AccessToken is the short-lived bearer credential attached to
	// every authorized backend call.
	AccessToken string

	// RefreshToken mints new access tokens. Empty when the provider
	// did not return one.
	RefreshToken string

	// ExpiresAt is always set whenever AccessToken is set, never a
	// valid token without a known expiry.
	ExpiresAt time.Time
}

// Valid reports whether the session carries a usable identity and a
// token with a known expiry.
func (s Session) Valid() bool {
	return s.UserID != "" && s.AccessToken != "" && !s.ExpiresAt.IsZero()
}

// ShouldRefresh reports whether the access token falls inside the
// renewal window at the given instant.
func (s Session) ShouldRefresh(now time.Time, window time.Duration) bool {
	return s.ExpiresAt.Sub(now) < window
}
