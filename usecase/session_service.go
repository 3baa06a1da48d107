package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/domain"
	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
)

// DefaultPreamble seeds every new session unless configured otherwise
const DefaultPreamble = "Eres un compañero de conversación amable para estudiantes de español. " +
	"Responde siempre en español sencillo, con frases cortas y naturales. " +
	"Si el estudiante comete un error, corrígelo con suavidad y sigue la conversación " +
	"con una pregunta para que siga hablando."

// SessionService manages the sessions of connected learners and serializes
// exchanges against each of them
type SessionService struct {
	repo         repositories.SessionRepository
	conversation *ConversationService
	preamble     string
	logger       *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	ended []func(id string)
}

// NewSessionService creates a new session service
func NewSessionService(
	repo repositories.SessionRepository,
	conversation *ConversationService,
	preamble string,
	logger *zap.Logger,
) *SessionService {
	if preamble == "" {
		preamble = DefaultPreamble
	}
	return &SessionService{
		repo:         repo,
		conversation: conversation,
		preamble:     preamble,
		logger:       logger,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Start creates a session seeded with the system preamble
func (s *SessionService) Start(ctx context.Context) (*entities.Session, error) {
	session := entities.NewSession(s.preamble)
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	s.logger.Info("Session started", zap.String("sessionID", session.ID))
	return session, nil
}

// Get returns an active session
func (s *SessionService) Get(ctx context.Context, id string) (*entities.Session, error) {
	return s.repo.GetByID(ctx, id)
}

// OnEnd registers fn to be called with the ID of every session that is
// ended or expired. Resources held per session are released there.
func (s *SessionService) OnEnd(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, fn)
}

// End discards a session and its history
func (s *SessionService) End(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.release(id)

	s.logger.Info("Session ended", zap.String("sessionID", id))
	return nil
}

// ExpireIdle ends sessions that have been idle for longer than maxIdle
func (s *SessionService) ExpireIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	expired, err := s.repo.ExpireIdle(ctx, maxIdle)
	if err != nil {
		return 0, err
	}

	for _, id := range expired {
		s.release(id)
	}

	if len(expired) > 0 {
		s.logger.Info("Expired idle sessions", zap.Int("count", len(expired)), zap.Duration("maxIdle", maxIdle))
	}
	return len(expired), nil
}

// release drops the session lock and notifies OnEnd listeners
func (s *SessionService) release(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	listeners := append([]func(string){}, s.ended...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}

// Exchange runs one exchange against session id. A submission made while the
// session is still processing the previous one fails with ErrSessionBusy.
func (s *SessionService) Exchange(ctx context.Context, id string, input entities.InputSource, presenter Presenter) (ExchangeResult, error) {
	return s.ExchangeFrom(ctx, id, func() (entities.InputSource, error) {
		return input, nil
	}, presenter)
}

// ExchangeFrom is Exchange with the input produced by take, which only runs
// once the session exists and its lock is held. A busy or missing session
// leaves the input source untouched.
func (s *SessionService) ExchangeFrom(ctx context.Context, id string, take func() (entities.InputSource, error), presenter Presenter) (ExchangeResult, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ExchangeResult{}, err
	}

	lock := s.lockFor(id)
	if !lock.TryLock() {
		return ExchangeResult{}, domain.ErrSessionBusy
	}
	defer lock.Unlock()

	input, err := take()
	if err != nil {
		return ExchangeResult{}, err
	}
	return s.conversation.Exchange(ctx, session, input, presenter)
}

func (s *SessionService) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
