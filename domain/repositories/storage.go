package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/charla/domain/entities"
)

// SessionRepository keeps the sessions of currently connected learners
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	Delete(ctx context.Context, id string) error
	// ExpireIdle removes sessions idle for longer than maxIdle and returns
	// their IDs.
	ExpireIdle(ctx context.Context, maxIdle time.Duration) ([]string, error)
}
