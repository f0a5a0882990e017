package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
)

const sessionKeyPrefix = "session:"

// SessionRepository implements repositories.SessionRepository on Redis.
// Each session is a JSON blob with a TTL, so abandoned sessions expire on
// their own instead of accumulating.
type SessionRepository struct {
	client *goredis.Client
	ttl    time.Duration
}

// Options configures the Redis session repository.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewSessionRepository creates a Redis-backed session repository and
// verifies connectivity.
func NewSessionRepository(opts Options) (*SessionRepository, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &SessionRepository{client: client, ttl: ttl}, nil
}

// sessionBlob is the stored representation. Tokens are included here on
// purpose: this is the server-side store, the one place credentials live.
type sessionBlob struct {
	ID             string    `json:"id"`
	OAuthState     string    `json:"oauth_state,omitempty"`
	AccessToken    string    `json:"access_token,omitempty"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	ExpiresIn      int64     `json:"expires_in,omitempty"`
	TokenTimestamp time.Time `json:"token_timestamp,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*entities.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repositories.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var blob sessionBlob
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &entities.Session{
		ID:             blob.ID,
		OAuthState:     blob.OAuthState,
		AccessToken:    blob.AccessToken,
		RefreshToken:   blob.RefreshToken,
		ExpiresIn:      blob.ExpiresIn,
		TokenTimestamp: blob.TokenTimestamp,
		CreatedAt:      blob.CreatedAt,
		UpdatedAt:      blob.UpdatedAt,
	}, nil
}

// Set creates or overwrites a session in a single SET, refreshing its TTL.
func (r *SessionRepository) Set(ctx context.Context, session *entities.Session) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	blob := sessionBlob{
		ID:             session.ID,
		OAuthState:     session.OAuthState,
		AccessToken:    session.AccessToken,
		RefreshToken:   session.RefreshToken,
		ExpiresIn:      session.ExpiresIn,
		TokenTimestamp: session.TokenTimestamp,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKeyPrefix+session.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// consumeStateScript reads and clears oauth_state in one server-side step.
// Scripts execute atomically in Redis, so concurrent consumers serialize
// here without a round-trip WATCH transaction.
var consumeStateScript = goredis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return false
end
local blob = cjson.decode(data)
local state = blob['oauth_state']
if state == nil then
  state = ''
end
blob['oauth_state'] = nil
redis.call('SET', KEYS[1], cjson.encode(blob), 'KEEPTTL')
return state
`)

// ConsumeState atomically reads and clears the stored anti-forgery state.
func (r *SessionRepository) ConsumeState(ctx context.Context, id string) (string, error) {
	state, err := consumeStateScript.Run(ctx, r.client, []string{sessionKeyPrefix + id}).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", repositories.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to consume state: %w", err)
	}
	return state, nil
}

// Delete destroys a session. Deleting a missing key is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *SessionRepository) Close() error {
	return r.client.Close()
}
