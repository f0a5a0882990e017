package session

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "fantasygate_session"

	// sidKey is the cookie value key holding the opaque session id. The id
	// is the only thing stored client-side; token material never leaves
	// the server.
	sidKey = "sid"
)

// CookieManager wraps gorilla/sessions for the one cookie this gateway
// uses: an authenticated, HTTP-only carrier for the session id.
type CookieManager struct {
	store *sessions.CookieStore
}

// NewCookieManager creates a cookie manager. secret signs the cookie and
// should be 32 bytes. secure controls the Secure attribute; only disable it
// for plain-HTTP local development.
func NewCookieManager(secret []byte, secure bool) *CookieManager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieManager{store: store}
}

// SessionID extracts the session id from the request cookie. ok is false
// when there is no cookie or it carries no id.
func (m *CookieManager) SessionID(r *http.Request) (string, bool) {
	cookie, err := m.store.Get(r, CookieName)
	if err != nil {
		return "", false
	}
	id, ok := cookie.Values[sidKey].(string)
	return id, ok && id != ""
}

// SetSessionID writes the session id into the response cookie.
func (m *CookieManager) SetSessionID(r *http.Request, w http.ResponseWriter, id string) error {
	cookie, err := m.store.Get(r, CookieName)
	if err != nil {
		cookie, _ = m.store.New(r, CookieName)
	}
	cookie.Values[sidKey] = id
	return cookie.Save(r, w)
}

// Clear expires the cookie. Clearing an absent cookie is a no-op so logout
// stays idempotent.
func (m *CookieManager) Clear(r *http.Request, w http.ResponseWriter) error {
	cookie, err := m.store.Get(r, CookieName)
	if err != nil {
		cookie, _ = m.store.New(r, CookieName)
	}
	cookie.Options.MaxAge = -1
	delete(cookie.Values, sidKey)
	return cookie.Save(r, w)
}
