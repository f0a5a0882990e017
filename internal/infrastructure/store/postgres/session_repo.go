package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
)

// SessionRepository implements repositories.SessionRepository on PostgreSQL.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repositories.SessionRepository {
	return &SessionRepository{db: db}
}

// sessionRow represents a session as stored in the database.
// token_timestamp is nullable: a session that has not completed a login yet
// holds no token and no timestamp.
type sessionRow struct {
	ID             string       `db:"id"`
	OAuthState     string       `db:"oauth_state"`
	AccessToken    string       `db:"access_token"`
	RefreshToken   string       `db:"refresh_token"`
	ExpiresIn      int64        `db:"expires_in"`
	TokenTimestamp sql.NullTime `db:"token_timestamp"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r *sessionRow) toEntity() *entities.Session {
	session := &entities.Session{
		ID:           r.ID,
		OAuthState:   r.OAuthState,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.TokenTimestamp.Valid {
		session.TokenTimestamp = r.TokenTimestamp.Time
	}
	return session
}

func rowFromEntity(session *entities.Session) *sessionRow {
	row := &sessionRow{
		ID:           session.ID,
		OAuthState:   session.OAuthState,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
	if !session.TokenTimestamp.IsZero() {
		row.TokenTimestamp = sql.NullTime{Time: session.TokenTimestamp, Valid: true}
	}
	return row
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*entities.Session, error) {
	var row sessionRow
	query := `SELECT * FROM sessions WHERE id = $1 LIMIT 1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return row.toEntity(), nil
}

// Set creates or overwrites a session. The upsert writes the whole row at
// once so concurrent readers never see half of a token rotation.
func (r *SessionRepository) Set(ctx context.Context, session *entities.Session) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, oauth_state, access_token, refresh_token, expires_in, token_timestamp, created_at, updated_at)
		VALUES (:id, :oauth_state, :access_token, :refresh_token, :expires_in, :token_timestamp, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			oauth_state = EXCLUDED.oauth_state,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_in = EXCLUDED.expires_in,
			token_timestamp = EXCLUDED.token_timestamp,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.NamedExecContext(ctx, query, rowFromEntity(session)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// ConsumeState atomically reads and clears the stored anti-forgery state.
// The UPDATE takes the row lock before reading, so two concurrent consumers
// serialize and only the first one sees a live value.
func (r *SessionRepository) ConsumeState(ctx context.Context, id string) (string, error) {
	query := `
		UPDATE sessions SET oauth_state = '', updated_at = NOW()
		FROM (SELECT id, oauth_state FROM sessions WHERE id = $1 FOR UPDATE) prior
		WHERE sessions.id = prior.id
		RETURNING prior.oauth_state
	`

	var state string
	err := r.db.GetContext(ctx, &state, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repositories.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to consume state: %w", err)
	}

	return state, nil
}

// Delete destroys a session. Missing rows are not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
