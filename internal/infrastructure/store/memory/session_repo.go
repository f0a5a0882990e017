// Package memory provides an in-process session repository. It exists for
// tests and single-instance development; production deployments use the
// postgres or redis backends so the gateway can run as multiple stateless
// instances behind a load balancer.
package memory

import (
	"context"
	"sync"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
)

// SessionRepository is a map-backed repositories.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]entities.Session
}

// NewSessionRepository creates an empty in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]entities.Session)}
}

// Get retrieves a copy of the session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*entities.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	// Copy so callers cannot mutate stored state without going through Set.
	out := session
	return &out, nil
}

// Set creates or overwrites a session.
func (r *SessionRepository) Set(ctx context.Context, session *entities.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// ConsumeState atomically reads and clears the stored anti-forgery state.
func (r *SessionRepository) ConsumeState(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return "", repositories.ErrSessionNotFound
	}
	state := session.OAuthState
	session.OAuthState = ""
	r.sessions[id] = session
	return state, nil
}

// Delete destroys a session. Missing ids are not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// Ping always succeeds.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return nil
}

// Len reports the number of stored sessions. Used by tests.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
