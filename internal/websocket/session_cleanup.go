package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/charla/usecase"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultMaxIdle         = 30 * time.Minute
)

// SessionCleanupService ends sessions whose learner has gone quiet
type SessionCleanupService struct {
	sessions *usecase.SessionService
	interval time.Duration
	maxIdle  time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service. Zero
// durations use 5 minutes between runs and 30 minutes of idleness.
func NewSessionCleanupService(sessions *usecase.SessionService, interval, maxIdle time.Duration, logger *zap.Logger) *SessionCleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	return &SessionCleanupService{
		sessions: sessions,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("interval", s.interval),
		zap.Duration("maxIdle", s.maxIdle))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	<-s.done
	s.logger.Info("Session cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *SessionCleanupService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup performs the actual cleanup of expired sessions
func (s *SessionCleanupService) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := s.sessions.ExpireIdle(ctx, s.maxIdle)
	if err != nil {
		s.logger.Error("Failed to expire sessions", zap.Error(err))
		return
	}

	s.logger.Debug("Session cleanup completed", zap.Int("expired", expired))
}
