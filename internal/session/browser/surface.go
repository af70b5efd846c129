// Package browser provides the interactive surface a sign-in flow
// presents the provider's authorization page on.
package browser

import (
	"context"
	"errors"
)

// ErrCancelled is returned when the user abandons the interactive
// authentication step or the flow's context is cancelled.
var ErrCancelled = errors.New("authentication_cancelled")

// BuildAuthorizeURL is supplied by the sign-in flow. The surface calls
// it with the redirect target it will receive callbacks on, and sends
// the user's browser to the resulting URL.
type BuildAuthorizeURL func(redirectTo string) (string, error)

// Surface presents an authorization URL and waits for the provider to
// redirect back. Implementations deliver at most one callback per
// call and keep no account-selection state between calls, so every
// sign-in re-prompts for account choice.
type Surface interface {
	// Authenticate returns the full callback URL the provider
	// redirected to. A user-abandoned or context-cancelled attempt
	// fails with ErrCancelled.
	Authenticate(ctx context.Context, build BuildAuthorizeURL) (string, error)
}
