package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenreach/engage/internal/config"
)

func newTestManager(enabled bool) *Manager {
	return NewManager(&config.AuthConfig{
		Enabled:      enabled,
		CookieName:   "engage_session",
		CookieMaxAge: 3600,
	})
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	m := newTestManager(true)
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lists", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body["error"])
}

func TestRequireAuthAcceptsValidSession(t *testing.T) {
	m := newTestManager(true)
	sessionID, err := m.CreateSession("ops@example.com", "Ops")
	require.NoError(t, err)

	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.AddCookie(&http.Cookie{Name: "engage_session", Value: sessionID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthDisabledPassesThrough(t *testing.T) {
	m := newTestManager(false)
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lists", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredSessionEvicted(t *testing.T) {
	m := newTestManager(true)
	sessionID, err := m.CreateSession("ops@example.com", "Ops")
	require.NoError(t, err)

	m.store.mu.Lock()
	m.store.sessions[sessionID].ExpiresAt = time.Now().Add(-time.Minute)
	m.store.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.AddCookie(&http.Cookie{Name: "engage_session", Value: sessionID})
	assert.Nil(t, m.GetSession(req))

	m.store.mu.RLock()
	_, exists := m.store.sessions[sessionID]
	m.store.mu.RUnlock()
	assert.False(t, exists)
}

func TestSweepDropsOnlyExpiredSessions(t *testing.T) {
	m := newTestManager(true)
	stale, err := m.CreateSession("gone@example.com", "Gone")
	require.NoError(t, err)
	live, err := m.CreateSession("here@example.com", "Here")
	require.NoError(t, err)

	m.store.mu.Lock()
	m.store.sessions[stale].ExpiresAt = time.Now().Add(-time.Hour)
	m.store.mu.Unlock()

	m.store.sweep(time.Now())

	assert.Nil(t, m.store.lookup(stale))
	assert.NotNil(t, m.store.lookup(live))
}

func TestHandleLogoutClearsSession(t *testing.T) {
	m := newTestManager(true)
	sessionID, err := m.CreateSession("ops@example.com", "Ops")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "engage_session", Value: sessionID})
	rec := httptest.NewRecorder()
	m.HandleLogout(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Nil(t, m.GetSession(req))
}
