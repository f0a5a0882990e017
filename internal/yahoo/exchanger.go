// Package yahoo talks to the Yahoo OAuth2 and Fantasy Sports endpoints. It
// is the only package that performs provider I/O; session storage policy
// stays with the callers.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Yahoo endpoint defaults. Overridable through config for tests.
const (
	DefaultAuthURL    = "https://api.login.yahoo.com/oauth2/request_auth"
	DefaultTokenURL   = "https://api.login.yahoo.com/oauth2/get_token"
	DefaultAPIBaseURL = "https://fantasysports.yahooapis.com/fantasy/v2"
)

var (
	// ErrExchangeFailed covers a rejected or expired authorization code
	// as well as transport failures during the code exchange.
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrRefreshFailed covers a rejected refresh token or a transport
	// failure during refresh. Terminal for the session holding it.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Tokens is one credential pair as returned by the token endpoint.
// RefreshToken may be empty when the provider does not rotate it.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// ExchangerConfig holds the OAuth2 client registration.
type ExchangerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	Timeout      time.Duration
}

// Exchanger performs the code-for-token and refresh-token exchanges against
// the provider's token endpoint. Both operations are idempotent with respect
// to the caller: a failed attempt leaves no partial state anywhere.
type Exchanger struct {
	cfg     *oauth2.Config
	timeout time.Duration
}

// NewExchanger creates an Exchanger from the client registration.
func NewExchanger(cfg ExchangerConfig) *Exchanger {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Exchanger{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		timeout: timeout,
	}
}

// AuthCodeURL builds the provider authorization URL with the given CSRF
// state embedded verbatim.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.cfg.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for a token pair.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tok, err := e.cfg.Exchange(ctx, code)
	if err != nil {
		return Tokens{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	return tokensFromOAuth2(tok), nil
}

// Refresh exchanges a refresh token for a new token pair. The returned
// RefreshToken is empty when the provider did not rotate it; the caller
// keeps the one it already holds.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tok, err := e.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return Tokens{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	out := tokensFromOAuth2(tok)
	if out.RefreshToken == refreshToken {
		// Same credential back from the token source, not a rotation.
		out.RefreshToken = ""
	}
	return out, nil
}

func tokensFromOAuth2(tok *oauth2.Token) Tokens {
	out := Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
	}
	if out.ExpiresIn <= 0 && !tok.Expiry.IsZero() {
		out.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return out
}
