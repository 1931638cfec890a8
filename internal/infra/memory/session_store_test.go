package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizdown-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0, nil)

	session := domain.Session{ID: "s1", Quiz: sampleQuiz("Math"), Status: domain.SessionInProgress}
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.SessionInProgress {
		t.Fatalf("unexpected status %q", got.Status)
	}

	got.Status = domain.SessionCompleted
	if again, _ := store.Get(ctx, "s1"); again.Status != domain.SessionInProgress {
		t.Fatalf("store must not share session values with callers")
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreExpiresAndSweeps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(time.Minute, nil)
	store.clock = func() time.Time { return now }

	_ = store.Put(ctx, domain.Session{ID: "old"})
	now = now.Add(30 * time.Second)
	_ = store.Put(ctx, domain.Session{ID: "new"})

	now = now.Add(45 * time.Second)
	if _, err := store.Get(ctx, "old"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be hidden, got %v", err)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Fatalf("fresh session should be readable: %v", err)
	}

	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("expected 1 session left, got %d", len(store.sessions))
	}
}

func TestSessionStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0, nil)
	for _, id := range []string{"abc-1", "abc-2", "xyz-1"} {
		_ = store.Put(ctx, domain.Session{ID: id})
	}

	sessions, err := store.List(ctx, "abc-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	all, _ := store.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
}
