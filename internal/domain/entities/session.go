package entities

import "time"

// Session holds the per-browser login state for one user of the gateway.
// It is identified by an opaque, cryptographically random id; the id is the
// only thing that ever reaches the browser (inside the signed session cookie).
type Session struct {
	ID             string    `json:"id" db:"id"`
	OAuthState     string    `json:"-" db:"oauth_state"`         // single-use CSRF state, present only between login and callback
	AccessToken    string    `json:"-" db:"access_token"`        // never serialize to JSON
	RefreshToken   string    `json:"-" db:"refresh_token"`       // never serialize to JSON
	ExpiresIn      int64     `json:"expires_in" db:"expires_in"` // validity window in seconds, as reported by the provider
	TokenTimestamp time.Time `json:"token_timestamp" db:"token_timestamp"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Authenticated reports whether the session holds a usable access token.
func (s *Session) Authenticated() bool {
	return s.AccessToken != ""
}

// TokenDeadline returns the instant the current access token stops being
// valid. Zero if the session holds no token.
func (s *Session) TokenDeadline() time.Time {
	if !s.Authenticated() {
		return time.Time{}
	}
	return s.TokenTimestamp.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// NeedsRefresh reports whether the access token is within skew of its
// deadline (or already past it) at the given instant.
func (s *Session) NeedsRefresh(now time.Time, skew time.Duration) bool {
	if !s.Authenticated() {
		return false
	}
	return !now.Before(s.TokenDeadline().Add(-skew))
}

// ApplyTokens installs a freshly exchanged or refreshed credential pair.
// Access and refresh tokens are always written together; if the provider
// omitted a rotated refresh token the prior one is kept.
func (s *Session) ApplyTokens(accessToken, refreshToken string, expiresIn int64, now time.Time) {
	s.AccessToken = accessToken
	if refreshToken != "" {
		s.RefreshToken = refreshToken
	}
	s.ExpiresIn = expiresIn
	s.TokenTimestamp = now
	s.UpdatedAt = now
}

// ClearTokens drops both credentials together.
func (s *Session) ClearTokens() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.ExpiresIn = 0
	s.TokenTimestamp = time.Time{}
}
