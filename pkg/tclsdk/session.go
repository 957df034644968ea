package tclsdk

import (
	"context"
	"sync"
	"time"
)

// SessionState tracks where a session is in its lifecycle.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
	StateRefreshing      SessionState = "refreshing"

	// StateFailed is terminal: only a new Authenticate call leaves it.
	StateFailed SessionState = "failed"
)

// Session is an authenticated account session. It owns a credential store,
// the account identity needed for refresh, and the in-flight refresh handle
// that lets concurrent refresh triggers share a single network chain.
//
// A Session belongs to the integration instance that created it and must not
// be shared across accounts.
type Session struct {
	mu    sync.Mutex
	state SessionState

	email   string
	userID  string
	country string

	// passwordDigest is retained in memory so refresh can fall back to a
	// full login once the SSO token expires. It is the digest, never the
	// plaintext, and it never leaves the process.
	passwordDigest string

	store *CredentialStore

	// pending is the shared handle for the refresh currently in flight, nil
	// when none is. Waiters block on its channel instead of a lock, so a
	// refresh in progress never blocks readers of still-valid tokens.
	pending *pendingRefresh
}

// pendingRefresh is the shared outcome of one in-flight refresh.
type pendingRefresh struct {
	done chan struct{}
	err  error
}

func newSession(email, passwordDigest string) *Session {
	return &Session{
		state:          StateAuthenticating,
		email:          email,
		passwordDigest: passwordDigest,
		store:          NewCredentialStore(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Store exposes the session's credential store.
func (s *Session) Store() *CredentialStore {
	return s.store
}

// Token is shorthand for Store().Get.
func (s *Session) Token(kind TokenKind) (Token, bool) {
	return s.store.Get(kind)
}

// Email returns the account email this session was created for.
func (s *Session) Email() string {
	return s.email
}

// Country returns the account's country code, needed by directory calls.
func (s *Session) Country() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.country
}

// Usable reports whether the session can serve calls right now: it is in a
// live state and holds an unexpired token of the given kind.
func (s *Session) Usable(kind TokenKind, now time.Time) bool {
	state := s.State()
	if state != StateAuthenticated && state != StateRefreshing {
		return false
	}

	t, ok := s.store.Get(kind)
	return ok && !t.Expired(now)
}

// Close tears the session down: credentials are dropped and the retained
// password digest is forgotten.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateUnauthenticated
	s.passwordDigest = ""
	s.userID = ""
	s.mu.Unlock()

	s.store.Clear()
}

// setIdentity records the account identity returned by login.
func (s *Session) setIdentity(userID, country string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.country = country
}

// identity returns the retained refresh inputs under one lock.
func (s *Session) identity() (userID, digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.passwordDigest
}

// beginRefresh either registers a new in-flight refresh and returns it with
// owner=true, or returns the existing one with owner=false so the caller can
// wait on it.
func (s *Session) beginRefresh() (p *pendingRefresh, owner bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return s.pending, false
	}

	s.pending = &pendingRefresh{done: make(chan struct{})}
	if s.state == StateAuthenticated {
		s.state = StateRefreshing
	}
	return s.pending, true
}

// finishRefresh publishes the outcome of the in-flight refresh and settles
// the session state. On failure, already-valid tokens keep the session alive;
// it goes Failed only once every held token has actually expired.
func (s *Session) finishRefresh(p *pendingRefresh, err error) {
	s.mu.Lock()
	p.err = err
	s.pending = nil

	switch {
	case err == nil:
		s.state = StateAuthenticated
	case s.store.AllExpired(time.Now()):
		s.state = StateFailed
	case s.state == StateRefreshing:
		// Stale but unexpired tokens remain usable during the outage.
		s.state = StateAuthenticated
	}
	s.mu.Unlock()

	close(p.done)
}

// wait blocks until the refresh completes or the caller's context ends.
// A waiter that gives up does not cancel the refresh for everyone else.
func (p *pendingRefresh) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
