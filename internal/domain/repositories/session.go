package repositories

import (
	"context"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
)

// SessionRepository defines the capability interface for session storage.
// The gateway only ever addresses sessions by id; there is no cross-session
// enumeration. Implementations must be safe for concurrent use, since many
// requests execute against shared storage at once.
type SessionRepository interface {
	// Get retrieves a session by its id.
	// Returns ErrSessionNotFound if no such session exists.
	Get(ctx context.Context, id string) (*entities.Session, error)

	// Set creates or overwrites the session identified by session.ID.
	// The full record is written in one operation so a reader never
	// observes a mixture of old and new token fields.
	Set(ctx context.Context, session *entities.Session) error

	// Delete destroys a session. Deleting an id that does not exist is
	// not an error, which keeps logout idempotent.
	Delete(ctx context.Context, id string) error

	// ConsumeState atomically reads and clears the session's anti-forgery
	// state, returning the value that was stored (empty if none was live).
	// The read and the clear are one operation: of any number of
	// concurrent consumers, exactly one observes a live state value.
	// Returns ErrSessionNotFound if no such session exists.
	ConsumeState(ctx context.Context, id string) (string, error)

	// Ping checks that the backend is reachable. Called at startup so a
	// dead store aborts the process instead of silently running without
	// persistence.
	Ping(ctx context.Context) error
}
