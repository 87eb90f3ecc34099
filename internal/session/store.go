// Package session tracks the current authenticated session and notifies
// listeners when it changes.
//
// Purpose:
//
//	The Store is the single owner of the session credential bundle. It loads
//	a persisted session at startup, rotates it on sign-in/sign-up/refresh,
//	clears it on sign-out, and fans change events out to subscribers (the
//	orchestrator re-enters its resolution cycle on each event).
//
// Thread Safety:
//   - All methods are safe for concurrent use. Listeners are invoked outside
//     the store's lock, so a listener may call back into the store.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YodHeVauHe/CallCenterX/internal/backend"
)

// Listener receives the new session on every auth event; nil means the
// session was cleared.
type Listener func(sess *backend.Session)

// Store holds the current session and its persistence.
type Store struct {
	auth    backend.AuthClient
	persist Persistence
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	current   *backend.Session
	listeners map[int]Listener
	nextID    int
}

// NewStore builds a session store. persist may be nil, in which case the
// session lives only in memory.
func NewStore(auth backend.AuthClient, persist Persistence, logger zerolog.Logger) *Store {
	if persist == nil {
		persist = NewMemoryStore()
	}
	return &Store{
		auth:      auth,
		persist:   persist,
		logger:    logger.With().Str("component", "session_store").Logger(),
		now:       time.Now,
		listeners: map[int]Listener{},
	}
}

// Load restores a persisted session, if any. Called once at startup, before
// the orchestrator's first resolution cycle. A corrupt or unreadable
// persisted session is discarded, not fatal.
func (s *Store) Load(ctx context.Context) {
	sess, err := s.persist.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable persisted session")
		_ = s.persist.Clear(ctx)
		return
	}
	if sess == nil {
		return
	}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

// Held returns the session the store currently holds without attempting a
// refresh, even if it is expired. Used by the orchestrator's fallback path
// when a refresh fails transiently but stale identity hints still exist.
func (s *Store) Held() *backend.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Current returns the session, or nil when none exists. An expired session
// with a refresh token is refreshed through the auth client first; a refresh
// failure is reported as an error rather than silently treated as signed-out,
// so the caller can distinguish "no session" from "backend unreachable".
func (s *Store) Current(ctx context.Context) (*backend.Session, error) {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()

	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(s.now()) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		// Expired with no way to refresh: the session is gone.
		s.Clear(ctx)
		return nil, nil
	}

	refreshed, err := s.auth.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if backend.IsAuthError(err) {
			// The refresh token itself was rejected; sign-out semantics.
			s.Clear(ctx)
			return nil, nil
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	s.Set(ctx, refreshed)
	return refreshed, nil
}

// SignIn authenticates and installs the resulting session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.Set(ctx, sess)
	return sess, nil
}

// SignUp registers a new subject. When the backend issues a session
// immediately (no email confirmation required) it is installed.
func (s *Store) SignUp(ctx context.Context, email, password string, hints backend.ProfileHints) (*backend.SignUpResult, error) {
	result, err := s.auth.SignUp(ctx, email, password, hints)
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		s.Set(ctx, result.Session)
	}
	return result, nil
}

// SignOut revokes the current session at the backend and clears it locally.
// The local clear happens regardless of whether revocation succeeds.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()

	var err error
	if sess != nil {
		err = s.auth.SignOut(ctx, sess.AccessToken)
	}
	s.Clear(ctx)
	return err
}

// Set installs a new session, persists it, and notifies listeners.
func (s *Store) Set(ctx context.Context, sess *backend.Session) {
	s.mu.Lock()
	s.current = sess
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if err := s.persist.Save(ctx, sess); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist session")
	}
	for _, fn := range listeners {
		fn(sess)
	}
}

// Clear discards the session, removes it from persistence, and notifies
// listeners with nil.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if err := s.persist.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
	if !had {
		return
	}
	for _, fn := range listeners {
		fn(nil)
	}
}

// Subscribe registers a listener for session changes and returns its
// unsubscribe func. Callers must unsubscribe on teardown so listeners do not
// leak across re-initialization.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}
