package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/charla/domain"
	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

// SessionRepository is an in-memory SessionRepository. Sessions live only as
// long as the process.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session
	now      func() time.Time
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates an empty in-memory session repository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*entities.Session),
		now:      time.Now,
	}
}

// Create implements repositories.SessionRepository
func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	r.sessions[session.ID] = session
	return nil
}

// GetByID implements repositories.SessionRepository
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Delete implements repositories.SessionRepository
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// ExpireIdle implements repositories.SessionRepository
func (r *SessionRepository) ExpireIdle(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, session := range r.sessions {
		if session.IdleFor(now) > maxIdle {
			delete(r.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired, nil
}

// Count returns the number of active sessions
func (r *SessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
