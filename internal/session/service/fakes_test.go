package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/parleychat/parley/internal/session/browser"
	"github.com/parleychat/parley/internal/session/domain"
	"github.com/parleychat/parley/internal/session/store"
	"github.com/parleychat/parley/pkg/providersdk"
)

// memStore is an in-memory store.Store for service tests.
type memStore struct {
	mu       sync.Mutex
	sess     *domain.Session
	saves    int
	clears   int
	failSave bool
}

func (m *memStore) Load(ctx context.Context) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return domain.Session{}, store.ErrNotFound
	}
	return *m.sess, nil
}

func (m *memStore) Save(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.sess = &s
	m.saves++
	return nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	m.clears++
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) saved() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return domain.Session{}, false
	}
	return *m.sess, true
}

func (m *memStore) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// stopCounter satisfies the manager's scheduler dependency.
type stopCounter struct {
	stops atomic.Int32
}

func (s *stopCounter) Stop() { s.stops.Add(1) }

// fakeRefresher satisfies tokenRefresher with a pluggable function.
type fakeRefresher struct {
	calls atomic.Int32
	fn    func(ctx context.Context, refreshToken string) (*providersdk.TokenPair, error)
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*providersdk.TokenPair, error) {
	f.calls.Add(1)
	return f.fn(ctx, refreshToken)
}

// fakeDirectory satisfies the sign-in flow's provider surface.
type fakeDirectory struct {
	authorizeErr error
	user         *providersdk.User
	fetchErr     error

	mu         sync.Mutex
	lastBearer string
}

func (f *fakeDirectory) AuthorizeURL(provider, redirectTo string) (string, error) {
	if f.authorizeErr != nil {
		return "", f.authorizeErr
	}
	return "https://id.example.com/authorize?provider=" + provider + "&redirect_to=" + redirectTo, nil
}

func (f *fakeDirectory) FetchUser(ctx context.Context, accessToken string) (*providersdk.User, error) {
	f.mu.Lock()
	f.lastBearer = accessToken
	f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.user, nil
}

// fakeSurface satisfies browser.Surface, returning a canned callback
// URL after invoking the flow's URL builder.
type fakeSurface struct {
	callbackURL string
	err         error
}

func (f *fakeSurface) Authenticate(ctx context.Context, build browser.BuildAuthorizeURL) (string, error) {
	if _, err := build("parley://auth/callback"); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return f.callbackURL, nil
}
