package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parleychat/parley/internal/session/browser"
	"github.com/parleychat/parley/internal/session/domain"
	"github.com/parleychat/parley/pkg/idx"
	"github.com/parleychat/parley/pkg/providersdk"
	"github.com/parleychat/parley/pkg/slogx"
)

var (
	ErrInvalidEndpoint = errors.New("invalid_endpoint")
	ErrSignInCancelled = errors.New("sign_in_cancelled")
	ErrCallbackMissing = errors.New("callback_missing")
	ErrExchangeFailed  = errors.New("exchange_failed")
)

// directory is the provider surface the sign-in flow needs.
type directory interface {
	AuthorizeURL(provider, redirectTo string) (string, error)
	FetchUser(ctx context.Context, accessToken string) (*providersdk.User, error)
}

// SignInService turns a user-initiated sign-in request into a
// populated, persisted session. Each attempt is all-or-nothing: any
// failure leaves no partial session in memory or storage.
type SignInService struct {
	Manager   *Manager
	Provider  directory
	Surface   browser.Surface
	Scheduler *RefreshService

	// TokenTTL is the assumed access token validity when the provider
	// states nothing else. Defaults to DefaultAccessTokenTTL.
	TokenTTL time.Duration
}

// SignIn drives the interactive flow against the given upstream
// provider (e.g. "google"): browser authorization, callback parsing,
// directory exchange, then session installation and scheduler
// restart. The returned error matches one of the flow sentinels so
// the UI can tell a cancelled attempt from a broken one.
func (s *SignInService) SignIn(ctx context.Context, provider string) (domain.Session, error) {
	ctx = slogx.WithFlowID(ctx, idx.New().String())
	l := slogx.FromContext(ctx)

	l.Info("starting sign-in", "provider", provider)

	callbackURL, err := s.Surface.Authenticate(ctx, func(redirectTo string) (string, error) {
		return s.Provider.AuthorizeURL(provider, redirectTo)
	})
	if err != nil {
		switch {
		case errors.Is(err, browser.ErrCancelled), errors.Is(err, context.Canceled):
			l.Info("sign-in cancelled by user")
			return domain.Session{}, fmt.Errorf("%w: %v", ErrSignInCancelled, err)
		case errors.Is(err, providersdk.ErrInvalidEndpoint):
			return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
		default:
			return domain.Session{}, fmt.Errorf("%w: %v", ErrCallbackMissing, err)
		}
	}

	pair, err := providersdk.ParseCallback(callbackURL)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrCallbackMissing, err)
	}

	user, err := s.Provider.FetchUser(ctx, pair.AccessToken)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	sess := domain.Session{
		UserID:       user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		AvatarURL:    user.AvatarURL,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    tokenExpiry(pair, time.Now().UTC(), s.TokenTTL),
	}

	if err := s.Manager.ApplySignIn(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("failed to install session: %w", err)
	}

	if s.Scheduler != nil {
		s.Scheduler.Start()
	}

	l.Info("sign-in complete", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	return sess, nil
}
