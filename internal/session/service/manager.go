package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parleychat/parley/internal/session/domain"
	"github.com/parleychat/parley/internal/session/events"
	"github.com/parleychat/parley/internal/session/store"
)

var (
	ErrNotSignedIn = errors.New("not_signed_in")
)

// scheduler is the slice of the refresh service the manager needs when
// a session collapses.
type scheduler interface {
	Stop()
}

// Manager owns the authoritative in-memory session state. It is the
// single point every downstream client uses to obtain authorization
// material and to report an authentication failure, and the only
// writer of the credential store after process start.
//
// State is primed from the store once at startup and from then on only
// flows outward: sign-in, renewal, sign-out, and forced logout mutate
// memory and the store together; nothing reads the store back.
type Manager struct {
	Store  store.Store
	Bus    *events.Bus
	Logger *slog.Logger

	// AnonKey is the fallback credential for anonymous calls when no
	// session exists. Empty means no fallback.
	AnonKey string

	mu      sync.RWMutex
	current *domain.Session

	schedMu sync.Mutex
	sched   scheduler
}

// SetScheduler wires the refresh service the manager stops on session
// collapse. Called once at application wiring.
func (m *Manager) SetScheduler(s scheduler) {
	m.schedMu.Lock()
	m.sched = s
	m.schedMu.Unlock()
}

// Prime derives the in-memory state from the credential store. Called
// once at process start, before anything reads the session.
func (m *Manager) Prime(ctx context.Context) error {
	sess, err := m.Store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to prime session state: %w", err)
	}

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()

	m.logger().Info("session restored from storage", "user_id", sess.UserID)
	return nil
}

// Current returns the active session, if any.
func (m *Manager) Current() (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return domain.Session{}, false
	}
	return *m.current, true
}

// SignedIn reports whether a session is active.
func (m *Manager) SignedIn() bool {
	_, ok := m.Current()
	return ok
}

// AuthorizationHeader returns the Authorization header value for an
// outbound call: the session's bearer token when signed in, otherwise
// the anonymous fallback. ok reports whether any header value exists,
// not whether a session is active; callers wanting the latter use
// SignedIn. Never touches the network or the store.
func (m *Manager) AuthorizationHeader() (value string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current != nil {
		return "Bearer " + m.current.AccessToken, true
	}
	if m.AnonKey != "" {
		return "Bearer " + m.AnonKey, true
	}
	return "", false
}

// ApplySignIn installs a freshly authenticated session: one durable
// write, then the in-memory state. A store failure leaves memory
// untouched so no partial session is ever observable.
func (m *Manager) ApplySignIn(ctx context.Context, sess domain.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("refusing incomplete session for user %q", sess.UserID)
	}

	if err := m.Store.Save(ctx, sess); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()

	return nil
}

// ApplyRenewal atomically replaces the credential material of the
// active session in both the store and memory. The renewal must
// belong to the signed-in user; a renewal landing after the session
// collapsed is dropped with ErrNotSignedIn.
func (m *Manager) ApplyRenewal(ctx context.Context, sess domain.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("refusing incomplete renewal for user %q", sess.UserID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.UserID != sess.UserID {
		return ErrNotSignedIn
	}

	if err := m.Store.Save(ctx, sess); err != nil {
		return err
	}

	m.current = &sess
	return nil
}

// SignOut is the explicit, user-initiated sign-out: collapse state,
// stop renewal, clear storage. No forced-logout event is published;
// the user asked for this.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	active := m.current != nil
	m.current = nil
	m.mu.Unlock()

	if !active {
		return nil
	}

	m.stopScheduler()

	if err := m.Store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	m.logger().Info("signed out")
	return nil
}

// ReportUnauthorized is called by any downstream client whose backend
// call came back with an authentication failure. Idempotent: the
// state transition is guarded, so however many in-flight requests
// report the same stale session, the store is cleared, the scheduler
// stopped and the forced sign-out broadcast exactly once. Reports
// while signed out are no-ops.
func (m *Manager) ReportUnauthorized(ctx context.Context) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return
	}
	userID := m.current.UserID
	m.current = nil
	m.mu.Unlock()

	m.logger().Warn("backend rejected credential, forcing logout", "user_id", userID)

	if err := m.Store.Clear(ctx); err != nil {
		m.logger().Error("failed to clear credentials during forced logout", "error", err)
	}

	m.stopScheduler()

	if m.Bus != nil {
		m.Bus.Publish(events.KindSignedOutForced, "credential rejected by backend")
	}
}

func (m *Manager) stopScheduler() {
	m.schedMu.Lock()
	sched := m.sched
	m.schedMu.Unlock()

	if sched != nil {
		sched.Stop()
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
