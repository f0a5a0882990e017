package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/infrastructure/store/memory"
	"github.com/fleetingfascinations/fantasygate/internal/yahoo"
)

// fakeRefresher counts refresh calls and serves a canned result.
type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	tokens yahoo.Tokens
	err    error
	delay  time.Duration
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (yahoo.Tokens, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return yahoo.Tokens{}, f.err
	}
	return f.tokens, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func seedSession(t *testing.T, store *memory.SessionRepository, issuedAt time.Time) *entities.Session {
	t.Helper()
	sess := &entities.Session{
		ID:             "sess-1",
		AccessToken:    "A1",
		RefreshToken:   "R1",
		ExpiresIn:      3600,
		TokenTimestamp: issuedAt,
	}
	if err := store.Set(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}

func TestEnsureFreshTokenPassesThrough(t *testing.T) {
	store := memory.NewSessionRepository()
	now := time.Now()
	seedSession(t, store, now) // valid for a full hour

	refresher := &fakeRefresher{}
	gate := NewRefreshGate(store, refresher, WithNowFunc(func() time.Time { return now }))

	sess, err := gate.Ensure(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if sess.AccessToken != "A1" {
		t.Errorf("AccessToken = %q, want A1", sess.AccessToken)
	}
	if refresher.callCount() != 0 {
		t.Errorf("refresh calls = %d, want 0", refresher.callCount())
	}
}

func TestEnsureRefreshesInsideSkewWindow(t *testing.T) {
	store := memory.NewSessionRepository()
	now := time.Now()
	// Deadline is 60s away, inside the 300s skew.
	seedSession(t, store, now.Add(-3540*time.Second))

	refresher := &fakeRefresher{tokens: yahoo.Tokens{AccessToken: "A2", RefreshToken: "R2", ExpiresIn: 3600}}
	gate := NewRefreshGate(store, refresher, WithNowFunc(func() time.Time { return now }))

	sess, err := gate.Ensure(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if refresher.callCount() != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.callCount())
	}
	if sess.AccessToken != "A2" || sess.RefreshToken != "R2" {
		t.Errorf("tokens = %q/%q, want A2/R2", sess.AccessToken, sess.RefreshToken)
	}
	if !sess.TokenTimestamp.Equal(now) {
		t.Errorf("TokenTimestamp = %v, want %v", sess.TokenTimestamp, now)
	}

	// The rotated tokens must be durable, not just on the returned copy.
	stored, err := store.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Get after refresh: %v", err)
	}
	if stored.AccessToken != "A2" || stored.RefreshToken != "R2" {
		t.Errorf("stored tokens = %q/%q, want A2/R2", stored.AccessToken, stored.RefreshToken)
	}
}

func TestEnsureKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	store := memory.NewSessionRepository()
	now := time.Now()
	seedSession(t, store, now.Add(-2*time.Hour))

	refresher := &fakeRefresher{tokens: yahoo.Tokens{AccessToken: "A2", ExpiresIn: 3600}}
	gate := NewRefreshGate(store, refresher, WithNowFunc(func() time.Time { return now }))

	sess, err := gate.Ensure(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if sess.RefreshToken != "R1" {
		t.Errorf("RefreshToken = %q, want prior R1 kept", sess.RefreshToken)
	}
}

func TestEnsureRefreshFailureDestroysSession(t *testing.T) {
	store := memory.NewSessionRepository()
	now := time.Now()
	seedSession(t, store, now.Add(-2*time.Hour))

	refresher := &fakeRefresher{err: yahoo.ErrRefreshFailed}
	gate := NewRefreshGate(store, refresher, WithNowFunc(func() time.Time { return now }))

	_, err := gate.Ensure(context.Background(), "sess-1")
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("error = %v, want ErrReauthRequired", err)
	}
	if store.Len() != 0 {
		t.Errorf("session survived failed refresh, store has %d entries", store.Len())
	}

	// A later request for the destroyed session is plainly unauthenticated.
	_, err = gate.Ensure(context.Background(), "sess-1")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("error after destruction = %v, want ErrUnauthenticated", err)
	}
}

func TestEnsureUnknownSession(t *testing.T) {
	gate := NewRefreshGate(memory.NewSessionRepository(), &fakeRefresher{})
	_, err := gate.Ensure(context.Background(), "nope")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("error = %v, want ErrUnauthenticated", err)
	}
}

func TestEnsureNoTokenNeverContactsProvider(t *testing.T) {
	store := memory.NewSessionRepository()
	sess := &entities.Session{ID: "sess-1", OAuthState: "pending-login"}
	if err := store.Set(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	refresher := &fakeRefresher{}
	gate := NewRefreshGate(store, refresher)

	_, err := gate.Ensure(context.Background(), "sess-1")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("error = %v, want ErrUnauthenticated", err)
	}
	if refresher.callCount() != 0 {
		t.Errorf("refresh calls = %d, want 0", refresher.callCount())
	}
}

func TestEnsureConcurrentRequestsRefreshOnce(t *testing.T) {
	store := memory.NewSessionRepository()
	now := time.Now()
	seedSession(t, store, now.Add(-2*time.Hour))

	refresher := &fakeRefresher{
		tokens: yahoo.Tokens{AccessToken: "A2", RefreshToken: "R2", ExpiresIn: 3600},
		delay:  20 * time.Millisecond,
	}
	gate := NewRefreshGate(store, refresher, WithNowFunc(func() time.Time { return now }))

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*entities.Session, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gate.Ensure(context.Background(), "sess-1")
		}(i)
	}
	wg.Wait()

	if got := refresher.callCount(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error: %v", i, errs[i])
		}
		if results[i].AccessToken != "A2" {
			t.Errorf("worker %d AccessToken = %q, want A2", i, results[i].AccessToken)
		}
	}
}
