package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
	"github.com/fleetingfascinations/fantasygate/internal/pkg/metrics"
	"github.com/fleetingfascinations/fantasygate/internal/yahoo"
)

// DefaultRefreshSkew is how long before the provider-reported deadline a
// token is already treated as stale, so a proxied call never goes out with
// a credential about to die mid-flight.
const DefaultRefreshSkew = 300 * time.Second

var (
	// ErrUnauthenticated means the session holds no access token at all.
	// The provider is never contacted in this case.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrReauthRequired means the refresh token is dead and the session
	// has been destroyed; the user must log in again.
	ErrReauthRequired = errors.New("re-authentication required")
)

// Refresher is the part of the token exchanger the gate needs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (yahoo.Tokens, error)
}

// RefreshGate guards proxied requests: it hands out a session whose access
// token is valid for at least the skew window, refreshing it first when
// necessary. Concurrent requests for the same session are collapsed into a
// single refresh via singleflight, so two racing requests can never spend
// the same refresh token twice or interleave token-field writes.
type RefreshGate struct {
	store     repositories.SessionRepository
	exchanger Refresher
	skew      time.Duration
	group     singleflight.Group
	now       func() time.Time
	log       *slog.Logger
}

// GateOption configures a RefreshGate.
type GateOption func(*RefreshGate)

// WithSkew overrides the refresh safety margin.
func WithSkew(skew time.Duration) GateOption {
	return func(g *RefreshGate) { g.skew = skew }
}

// WithNowFunc overrides the clock (for tests).
func WithNowFunc(now func() time.Time) GateOption {
	return func(g *RefreshGate) { g.now = now }
}

// NewRefreshGate creates the gate.
func NewRefreshGate(store repositories.SessionRepository, exchanger Refresher, opts ...GateOption) *RefreshGate {
	g := &RefreshGate{
		store:     store,
		exchanger: exchanger,
		skew:      DefaultRefreshSkew,
		now:       time.Now,
		log:       slog.Default().With(slog.String("component", "refresh_gate")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ensure loads the session and guarantees its access token is usable.
// Refresh is attempted at most once per call; a failure destroys the
// session and returns ErrReauthRequired so the caller surfaces an
// authentication failure rather than a retryable server error.
func (g *RefreshGate) Ensure(ctx context.Context, sessionID string) (*entities.Session, error) {
	sess, err := g.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !sess.NeedsRefresh(g.now(), g.skew) {
		return sess, nil
	}

	v, err, _ := g.group.Do(sessionID, func() (interface{}, error) {
		return g.refresh(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.Session), nil
}

// refresh runs the serialized read-check-refresh-write sequence. It re-reads
// the session first: a request that lost the singleflight race (or arrived
// just after a refresh completed) adopts the rotated tokens instead of
// spending the now-stale refresh token again.
func (g *RefreshGate) refresh(ctx context.Context, sessionID string) (*entities.Session, error) {
	sess, err := g.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !sess.NeedsRefresh(g.now(), g.skew) {
		return sess, nil
	}

	tokens, err := g.exchanger.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		g.log.Warn("token refresh failed, destroying session",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		if delErr := g.store.Delete(ctx, sessionID); delErr != nil {
			g.log.Error("failed to destroy session after refresh failure",
				slog.String("session_id", sessionID),
				slog.String("error", delErr.Error()))
		}
		return nil, ErrReauthRequired
	}

	sess.ApplyTokens(tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn, g.now())
	if err := g.store.Set(ctx, sess); err != nil {
		return nil, err
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	return sess, nil
}
