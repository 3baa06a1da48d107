package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satriahrh/charla/domain"
	"github.com/satriahrh/charla/domain/entities"
)

func TestSessionRepository_CreateAndGet(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	session := entities.NewSession("Eres un tutor de español.")
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	got, err := repo.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got != session {
		t.Error("Expected the same session instance")
	}

	if err := repo.Create(ctx, session); err == nil {
		t.Error("Expected error when creating a duplicate session")
	}

	if err := repo.Create(ctx, nil); err == nil {
		t.Error("Expected error for nil session")
	}
}

func TestSessionRepository_GetMissing(t *testing.T) {
	repo := NewSessionRepository()

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepository_Delete(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	session := entities.NewSession("preamble")
	_ = repo.Create(ctx, session)

	if err := repo.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if repo.Count() != 0 {
		t.Errorf("Expected 0 sessions, got %d", repo.Count())
	}
	if err := repo.Delete(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepository_ExpireIdle(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	stale := entities.NewSession("preamble")
	fresh := entities.NewSession("preamble")
	_ = repo.Create(ctx, stale)
	_ = repo.Create(ctx, fresh)

	repo.now = func() time.Time { return fresh.LastActiveAt.Add(10 * time.Minute) }
	stale.LastActiveAt = fresh.LastActiveAt.Add(-time.Hour)

	expired, err := repo.ExpireIdle(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(expired) != 1 || expired[0] != stale.ID {
		t.Errorf("Expected only %s to expire, got %v", stale.ID, expired)
	}
	if _, err := repo.GetByID(ctx, fresh.ID); err != nil {
		t.Errorf("Expected fresh session to remain, got %v", err)
	}
	if _, err := repo.GetByID(ctx, stale.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Expected stale session to be expired, got %v", err)
	}
}
