package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
	"github.com/fleetingfascinations/fantasygate/internal/pkg/metrics"
	"github.com/fleetingfascinations/fantasygate/internal/session"
)

// Login initiates the OAuth authorization code flow.
// GET /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess, err := h.loadOrCreateSession(r)
	if err != nil {
		h.log.Error("failed to load session", slog.String("error", err.Error()))
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	// Generate state parameter for CSRF protection. A fresh login always
	// overwrites any previous state: one live value per session, at most.
	state, err := session.GenerateState()
	if err != nil {
		h.log.Error("failed to generate state", slog.String("error", err.Error()))
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	sess.OAuthState = state

	if err := h.store.Set(r.Context(), sess); err != nil {
		h.log.Error("failed to save session", slog.String("error", err.Error()))
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	if err := h.cookies.SetSessionID(r, w, sess.ID); err != nil {
		h.log.Error("failed to set session cookie", slog.String("error", err.Error()))
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	metrics.LoginStarts.Inc()
	http.Redirect(w, r, h.exchanger.AuthCodeURL(state), http.StatusFound)
}

// AuthCallback handles the provider redirect back to the gateway.
// GET /auth/callback?code&state
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	sessionID, ok := h.cookies.SessionID(r)
	if !ok {
		metrics.CallbackResults.WithLabelValues("state_mismatch").Inc()
		http.Error(w, "Authorization code or state missing or invalid.", http.StatusBadRequest)
		return
	}

	sess, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			metrics.CallbackResults.WithLabelValues("state_mismatch").Inc()
			http.Error(w, "Authorization code or state missing or invalid.", http.StatusBadRequest)
			return
		}
		h.log.Error("failed to load session", slog.String("error", err.Error()))
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	// Consume the stored state before anything else. The read and the
	// clear are one atomic store operation, so of two racing callbacks
	// only one ever sees the live value; the state is single-use even
	// under concurrency, and a replayed callback always misses.
	storedState, err := h.store.ConsumeState(r.Context(), sess.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			metrics.CallbackResults.WithLabelValues("state_mismatch").Inc()
			http.Error(w, "Authorization code or state missing or invalid.", http.StatusBadRequest)
			return
		}
		h.log.Error("failed to consume state", slog.String("error", err.Error()))
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}
	// Keep the local copy in step so the token upsert below does not
	// write the consumed state back.
	sess.OAuthState = ""

	if code == "" || state == "" || storedState == "" || state != storedState {
		h.log.Warn("state mismatch on callback, possible CSRF attempt",
			slog.String("session_id", sess.ID))
		metrics.CallbackResults.WithLabelValues("state_mismatch").Inc()
		http.Error(w, "Authorization code or state missing or invalid.", http.StatusBadRequest)
		return
	}

	tokens, err := h.exchanger.ExchangeCode(r.Context(), code)
	if err != nil {
		// Log the provider detail, surface only the generic outcome.
		h.log.Error("code exchange failed",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()))
		metrics.CallbackResults.WithLabelValues("exchange_failed").Inc()
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	sess.ApplyTokens(tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn, time.Now())
	if err := h.store.Set(r.Context(), sess); err != nil {
		h.log.Error("failed to save tokens", slog.String("error", err.Error()))
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	metrics.CallbackResults.WithLabelValues("success").Inc()
	http.Redirect(w, r, h.appRootURL, http.StatusFound)
}

// CheckAuth reports whether the session is authenticated. Read-only.
// GET /api/check-auth
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.cookies.SessionID(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	sess, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h.log.Error("failed to load session", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if sess.Authenticated() {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusUnauthorized)
	}
}

// Logout destroys the session and clears the cookie. Idempotent: a second
// logout looks exactly like the first from the client's side.
// POST /api/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := h.cookies.SessionID(r); ok {
		if err := h.store.Delete(r.Context(), sessionID); err != nil {
			h.log.Error("failed to destroy session", slog.String("error", err.Error()))
			http.Error(w, "Failed to log out", http.StatusInternalServerError)
			return
		}
	}

	if err := h.cookies.Clear(r, w); err != nil {
		h.log.Error("failed to clear session cookie", slog.String("error", err.Error()))
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}

	metrics.Logouts.Inc()
	w.WriteHeader(http.StatusOK)
}

// loadOrCreateSession returns the request's session, creating an empty one
// when the browser arrives without a valid cookie.
func (h *Handler) loadOrCreateSession(r *http.Request) (*entities.Session, error) {
	if sessionID, ok := h.cookies.SessionID(r); ok {
		sess, err := h.store.Get(r.Context(), sessionID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, err
		}
		// Cookie names a destroyed session; fall through to a fresh one.
	}

	now := time.Now()
	return &entities.Session{
		ID:        session.NewSessionID(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
