// Package handlers implements the gateway's HTTP endpoints.
package handlers

import (
	"context"
	"log/slog"

	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
	"github.com/fleetingfascinations/fantasygate/internal/session"
	"github.com/fleetingfascinations/fantasygate/internal/yahoo"
)

// CodeExchanger is the part of the token exchanger the handlers need.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (yahoo.Tokens, error)
}

// ResourceFetcher fetches fantasy API resources with a bearer credential.
type ResourceFetcher interface {
	Fetch(ctx context.Context, resourcePath, accessToken string) (int, []byte, error)
}

// Handler composes the session store, cookie manager, refresh gate and
// provider clients behind the gateway's endpoints.
type Handler struct {
	store      repositories.SessionRepository
	cookies    *session.CookieManager
	gate       *session.RefreshGate
	exchanger  CodeExchanger
	fantasy    ResourceFetcher
	appRootURL string
	log        *slog.Logger
}

// New creates a Handler.
func New(
	store repositories.SessionRepository,
	cookies *session.CookieManager,
	gate *session.RefreshGate,
	exchanger CodeExchanger,
	fantasy ResourceFetcher,
	appRootURL string,
) *Handler {
	return &Handler{
		store:      store,
		cookies:    cookies,
		gate:       gate,
		exchanger:  exchanger,
		fantasy:    fantasy,
		appRootURL: appRootURL,
		log:        slog.Default().With(slog.String("component", "handlers")),
	}
}
