package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleetingfascinations/fantasygate/internal/domain/entities"
	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
)

func TestSessionRoundTrip(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	sess := &entities.Session{
		ID:             "sess-1",
		AccessToken:    "A1",
		RefreshToken:   "R1",
		ExpiresIn:      3600,
		TokenTimestamp: time.Now(),
	}
	if err := repo.Set(ctx, sess); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.AccessToken != "A1" || got.RefreshToken != "R1" {
		t.Errorf("tokens = %q/%q, want A1/R1", got.AccessToken, got.RefreshToken)
	}

	// The returned session is a copy; mutating it must not touch the store.
	got.AccessToken = "mutated"
	again, _ := repo.Get(ctx, "sess-1")
	if again.AccessToken != "A1" {
		t.Error("Get returned a live reference into the store")
	}
}

func TestGetUnknownSession(t *testing.T) {
	repo := NewSessionRepository()
	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	if err := repo.Set(ctx, &entities.Session{ID: "sess-1"}); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := repo.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if repo.Len() != 0 {
		t.Errorf("Len = %d after delete, want 0", repo.Len())
	}
	// Deleting again is not an error.
	if err := repo.Delete(ctx, "sess-1"); err != nil {
		t.Errorf("second Delete error: %v", err)
	}
}

func TestConsumeStateIsSingleUse(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	repo.Set(ctx, &entities.Session{ID: "sess-1", OAuthState: "state-1"})

	state, err := repo.ConsumeState(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ConsumeState error: %v", err)
	}
	if state != "state-1" {
		t.Errorf("state = %q, want state-1", state)
	}

	// Already consumed: the second read observes it cleared.
	state, err = repo.ConsumeState(ctx, "sess-1")
	if err != nil {
		t.Fatalf("second ConsumeState error: %v", err)
	}
	if state != "" {
		t.Errorf("state = %q after consumption, want empty", state)
	}

	_, err = repo.ConsumeState(ctx, "nope")
	if !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestConsumeStateConcurrentWinnerIsUnique(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	repo.Set(ctx, &entities.Session{ID: "sess-1", OAuthState: "state-1"})

	const workers = 16
	states := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i], _ = repo.ConsumeState(ctx, "sess-1")
		}(i)
	}
	wg.Wait()

	var winners int
	for _, s := range states {
		if s == "state-1" {
			winners++
		} else if s != "" {
			t.Errorf("unexpected state value %q", s)
		}
	}
	if winners != 1 {
		t.Errorf("live state observed by %d consumers, want exactly 1", winners)
	}
}

func TestSetOverwrites(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	repo.Set(ctx, &entities.Session{ID: "sess-1", AccessToken: "A1"})
	repo.Set(ctx, &entities.Session{ID: "sess-1", AccessToken: "A2"})

	got, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.AccessToken != "A2" {
		t.Errorf("AccessToken = %q, want A2", got.AccessToken)
	}
	if repo.Len() != 1 {
		t.Errorf("Len = %d, want 1", repo.Len())
	}
}
