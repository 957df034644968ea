package tclsdk

import (
	"sync"
	"time"
)

// CredentialStore holds the current token of each kind and is the single
// source of truth for "am I authenticated". Writes from one refresh cycle
// land atomically: a reader either sees the whole new set or the whole old
// one, never a mix.
type CredentialStore struct {
	mu     sync.RWMutex
	tokens map[TokenKind]Token
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{tokens: make(map[TokenKind]Token)}
}

// Get returns the current token of the given kind, if present. Presence says
// nothing about validity; callers check Expired themselves.
func (s *CredentialStore) Get(kind TokenKind) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[kind]
	return t, ok
}

// Replace installs all given tokens under one lock acquisition, so the whole
// refresh cycle becomes visible together. Kinds not present in the arguments
// keep their current value.
func (s *CredentialStore) Replace(tokens ...Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tokens {
		s.tokens[t.Kind] = t
	}
}

// Clear drops every token. Used on session teardown.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = make(map[TokenKind]Token)
}

// ExpiringWithin reports whether any held token expires within d of now.
// An empty store counts as expiring: there is nothing valid to present.
func (s *CredentialStore) ExpiringWithin(d time.Duration) bool {
	return s.expiringWithinAt(time.Now(), d)
}

func (s *CredentialStore) expiringWithinAt(now time.Time, d time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.tokens) == 0 {
		return true
	}
	for _, t := range s.tokens {
		if t.ExpiringWithin(now, d) {
			return true
		}
	}
	return false
}

// AllExpired reports whether every held token is past its expiry at now.
// This is the condition under which a failed refresh finally marks the
// session Failed; while anything is still valid the session stays usable.
func (s *CredentialStore) AllExpired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if !t.Expired(now) {
			return false
		}
	}
	return true
}
