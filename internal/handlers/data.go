package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/pkg/metrics"
	"github.com/fleetingfascinations/fantasygate/internal/session"
	"github.com/fleetingfascinations/fantasygate/internal/yahoo"
)

// resources is the allow-list of proxyable fantasy collections. The gateway
// is not an open proxy: unknown selectors are rejected before any upstream
// call.
var resources = map[string]string{
	"leagues": "/users;use_login=1/games;game_keys=nfl/leagues?format=json",
	"games":   "/users;use_login=1/games?format=json",
	"teams":   "/users;use_login=1/games;game_keys=nfl/teams?format=json",
}

const defaultResource = "leagues"

// Data proxies a fantasy API request for the logged-in user, refreshing the
// access token first when it is near its deadline. The upstream status and
// body are relayed unmodified.
// GET /api/data?resource=<selector>
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	selector := r.URL.Query().Get("resource")
	if selector == "" {
		selector = defaultResource
	}
	path, ok := resources[selector]
	if !ok {
		http.Error(w, "Unknown resource", http.StatusBadRequest)
		return
	}

	sess, ok := h.gatedSession(w, r)
	if !ok {
		return
	}

	status, body, err := h.fetch(r, selector, path, sess)
	if err != nil {
		h.log.Error("upstream fetch failed",
			slog.String("resource", selector),
			slog.String("error", err.Error()))
		http.Error(w, "Failed to fetch data", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// Leagues returns the user's leagues as a normalized list for the league
// picker, decoding Yahoo's ambiguous collection shapes at the boundary.
// GET /api/leagues
func (h *Handler) Leagues(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.gatedSession(w, r)
	if !ok {
		return
	}

	status, body, err := h.fetch(r, "leagues", resources["leagues"], sess)
	if err != nil {
		h.log.Error("upstream fetch failed", slog.String("error", err.Error()))
		http.Error(w, "Failed to fetch leagues", http.StatusBadGateway)
		return
	}
	if status != http.StatusOK {
		h.log.Warn("upstream returned non-OK for leagues", slog.Int("status", status))
		http.Error(w, "Failed to fetch leagues", http.StatusBadGateway)
		return
	}

	leagues, err := yahoo.ParseLeagues(body)
	if err != nil {
		h.log.Error("failed to parse leagues response", slog.String("error", err.Error()))
		http.Error(w, "Failed to fetch leagues", http.StatusBadGateway)
		return
	}
	if leagues == nil {
		leagues = []yahoo.League{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]yahoo.League{"leagues": leagues})
}

// gatedSession runs the refresh gate and translates its failures into the
// response the SPA expects: authentication problems are 401 so the client
// re-triggers login instead of retrying blindly.
func (h *Handler) gatedSession(w http.ResponseWriter, r *http.Request) (*entities.Session, bool) {
	sessionID, ok := h.cookies.SessionID(r)
	if !ok {
		http.Error(w, "User not authenticated", http.StatusUnauthorized)
		return nil, false
	}

	sess, err := h.gate.Ensure(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnauthenticated):
			http.Error(w, "User not authenticated", http.StatusUnauthorized)
		case errors.Is(err, session.ErrReauthRequired):
			// The session is gone; take the dangling cookie with it.
			if clearErr := h.cookies.Clear(r, w); clearErr != nil {
				h.log.Error("failed to clear session cookie", slog.String("error", clearErr.Error()))
			}
			http.Error(w, "Session expired, please log in again", http.StatusUnauthorized)
		default:
			h.log.Error("refresh gate failed", slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return nil, false
	}

	return sess, true
}

func (h *Handler) fetch(r *http.Request, selector, path string, sess *entities.Session) (int, []byte, error) {
	start := time.Now()
	status, body, err := h.fantasy.Fetch(r.Context(), path, sess.AccessToken)
	metrics.ObserveUpstream(selector, start)
	if err == nil {
		metrics.ProxyRequests.WithLabelValues(selector, statusClass(status)).Inc()
	} else {
		metrics.ProxyRequests.WithLabelValues(selector, "error").Inc()
	}
	return status, body, err
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
