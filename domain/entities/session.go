package entities

import (
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/charla/domain"
)

// Role represents the author of a turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the conversation
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the append-only log of turns for one conversation.
// The first turn is always the system preamble.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	mu      sync.RWMutex
	history []Turn
}

// NewSession creates a session seeded with the system preamble
func NewSession(preamble string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActiveAt: now,
		history:      []Turn{{Role: RoleSystem, Content: preamble}},
	}
}

// AppendUserTurn records a learner utterance. Empty or whitespace-only text
// is rejected and leaves the history untouched.
func (s *Session) AppendUserTurn(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("user turn must not be empty: %w", domain.ErrInvalidInput)
	}
	s.append(Turn{Role: RoleUser, Content: text})
	return nil
}

// AppendAssistantTurn records the assistant reply. An empty reply is kept so
// that every exchange leaves a pair of turns in the log.
func (s *Session) AppendAssistantTurn(text string) {
	s.append(Turn{Role: RoleAssistant, Content: text})
}

func (s *Session) append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
	s.LastActiveAt = time.Now()
}

// FullHistory returns a copy of every turn including the system preamble,
// in the order they were appended.
func (s *Session) FullHistory() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// VisibleHistory yields the turns after the system preamble. Each range
// over the returned sequence observes the history as of that moment.
func (s *Session) VisibleHistory() iter.Seq[Turn] {
	return func(yield func(Turn) bool) {
		s.mu.RLock()
		turns := make([]Turn, len(s.history)-1)
		copy(turns, s.history[1:])
		s.mu.RUnlock()

		for _, t := range turns {
			if !yield(t) {
				return
			}
		}
	}
}

// Len returns the number of turns including the system preamble
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// IdleFor reports how long the session has gone without a new turn
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.LastActiveAt)
}

// WindowTurns keeps the system turn and the last n turns after it.
// n <= 0 returns turns unchanged.
func WindowTurns(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n+1 {
		return turns
	}
	out := make([]Turn, 0, n+1)
	out = append(out, turns[0])
	return append(out, turns[len(turns)-n:]...)
}
