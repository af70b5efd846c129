package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/parleychat/parley/pkg/providersdk"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoRefreshToken  = errors.New("no_refresh_token")
	ErrRefreshRequest  = errors.New("refresh_request_failed")
	ErrRefreshResponse = errors.New("invalid_refresh_response")
)

const (
	// DefaultCheckInterval is how often the scheduler re-evaluates the
	// token's remaining lifetime.
	DefaultCheckInterval = 5 * time.Minute

	// DefaultRenewalWindow is how close to expiry a token may get
	// before the scheduler renews it.
	DefaultRenewalWindow = 10 * time.Minute

	// renewTimeout bounds a single renewal call.
	renewTimeout = 30 * time.Second
)

// tokenRefresher is the provider surface the scheduler needs.
type tokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*providersdk.TokenPair, error)
}

// RefreshService keeps the access credential from silently expiring
// while the process is alive. One background loop runs per active
// session; Start while running replaces the previous loop, Stop is
// synchronous. A failed renewal is terminal for the current session:
// the loop stops itself and the session collapses later, when a
// backend rejects the stale token and a client reports it.
type RefreshService struct {
	Manager  *Manager
	Provider tokenRefresher
	Logger   *slog.Logger

	// Interval and Window default to DefaultCheckInterval and
	// DefaultRenewalWindow when zero.
	Interval time.Duration
	Window   time.Duration

	// TokenTTL is the assumed access token validity when the provider
	// response does not state one. Defaults to DefaultAccessTokenTTL.
	TokenTTL time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}

	group singleflight.Group
}

// Start launches the background loop, first cancelling any loop that
// is already running so instances never overlap. The new loop
// evaluates the token immediately, before its first periodic wait, so
// a session that expired while the process was down is renewed (or
// found unrenewable) before first use.
func (s *RefreshService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(s.stopCh, s.doneCh)

	s.logger().Debug("refresh scheduler started", "interval", s.interval(), "window", s.window())
}

// Stop shuts the loop down and blocks until it has exited: after Stop
// returns, no renewal call from the stopped instance can be issued.
// Stopping an already-stopped scheduler is a no-op.
func (s *RefreshService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *RefreshService) stopLocked() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh, s.doneCh = nil, nil
}

func (s *RefreshService) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	if !s.evaluate(stopCh) {
		return
	}

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.evaluate(stopCh) {
				return
			}
		case <-stopCh:
			return
		}
	}
}

// evaluate checks the token's remaining lifetime and renews when it
// falls inside the renewal window. Returns false when the loop should
// stop: cancellation, signed out, or a terminal renewal failure.
func (s *RefreshService) evaluate(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return false
	default:
	}

	sess, ok := s.Manager.Current()
	if !ok {
		return false
	}

	if !sess.ShouldRefresh(time.Now(), s.window()) {
		return true
	}

	if err := s.renew(stopCh); err != nil {
		if errors.Is(err, ErrNotSignedIn) {
			return false
		}
		// Terminal for this session. No retry: the stale token will
		// eventually be rejected by a backend, and the forced-logout
		// path takes over from there.
		s.logger().Error("token renewal failed, stopping scheduler", "error", err)
		return false
	}

	s.logger().Info("access token renewed")
	return true
}

// renew performs one renewal. Concurrent triggers collapse into a
// single provider call; a pending stop cancels the call in flight.
func (s *RefreshService) renew(stopCh chan struct{}) error {
	_, err, _ := s.group.Do("renew", func() (any, error) {
		sess, ok := s.Manager.Current()
		if !ok {
			return nil, ErrNotSignedIn
		}
		if sess.RefreshToken == "" {
			return nil, ErrNoRefreshToken
		}

		ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
		defer cancel()
		go func() {
			select {
			case <-stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		pair, err := s.Provider.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			if errors.Is(err, providersdk.ErrMalformedResponse) {
				return nil, errors.Join(ErrRefreshResponse, err)
			}
			return nil, errors.Join(ErrRefreshRequest, err)
		}

		next := sess
		next.AccessToken = pair.AccessToken
		if pair.RefreshToken != "" {
			next.RefreshToken = pair.RefreshToken
		}
		next.ExpiresAt = tokenExpiry(pair, time.Now().UTC(), s.TokenTTL)

		return nil, s.Manager.ApplyRenewal(ctx, next)
	})
	return err
}

func (s *RefreshService) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultCheckInterval
}

func (s *RefreshService) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultRenewalWindow
}

func (s *RefreshService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
