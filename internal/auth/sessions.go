package auth

import (
	"sync"
	"time"
)

// sessionStore is the in-memory session table. Expired sessions are
// evicted on lookup and swept periodically by the manager.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func (st *sessionStore) put(id string, s *Session) {
	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()
}

// lookup returns the live session for id, or nil. An expired session is
// dropped instead of returned.
func (st *sessionStore) lookup(id string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil
	}
	if time.Now().After(s.ExpiresAt) {
		st.drop(id)
		return nil
	}
	return s
}

func (st *sessionStore) drop(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// sweep removes every session that expired before now.
func (st *sessionStore) sweep(now time.Time) {
	st.mu.Lock()
	for id, s := range st.sessions {
		if now.After(s.ExpiresAt) {
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()
}
