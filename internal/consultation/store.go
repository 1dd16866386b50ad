// Package consultation owns the current consultation session and the
// append-only list of finished sessions.
package consultation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
)

// DefaultTitle is applied to every new session.
const DefaultTitle = "Patient Consultation"

// Store is safe for concurrent use.
type Store struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.RWMutex
	current  *domain.Session
	openedAt time.Time
	history  []domain.Session
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a new current session for pair.
func (s *Store) Open(pair domain.LanguagePair) (domain.Session, error) {
	if err := ValidatePair(pair); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return domain.Session{}, fault.New(fault.KindInvalidConfiguration, "session %s is still open", s.current.ID)
	}

	now := s.now()
	s.current = &domain.Session{
		ID:        s.newID(),
		Title:     DefaultTitle,
		CreatedAt: now,
		Languages: pair,
		Messages:  []domain.Message{},
	}
	s.openedAt = now
	s.logInfo("session opened", "session_id", s.current.ID, "provider", pair.Provider, "patient", pair.Patient)
	return s.current.Clone(), nil
}

// Append adds msg to the current session, assigning an id when unset.
func (s *Store) Append(msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domain.Message{}, fault.New(fault.KindNoActiveSession, "append message")
	}
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Message{}, fmt.Errorf("generate message id: %w", err)
		}
		msg.ID = id.String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.current.Messages = append(s.current.Messages, msg)
	return msg, nil
}

// Close stamps the wall-clock duration, archives the current session, and
// clears it. Sessions without messages cannot be closed; use Discard.
func (s *Store) Close() (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domain.Session{}, fault.New(fault.KindNoActiveSession, "close session")
	}
	if len(s.current.Messages) == 0 {
		return domain.Session{}, fault.New(fault.KindEmptySession, "session %s has no messages", s.current.ID)
	}
	return s.archiveLocked(), nil
}

// Discard ends the current session. A session holding messages is archived
// like Close; an empty one is dropped. It reports the archived session, if any.
func (s *Store) Discard() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domain.Session{}, false
	}
	if len(s.current.Messages) == 0 {
		s.logInfo("session discarded", "session_id", s.current.ID)
		s.current = nil
		return domain.Session{}, false
	}
	return s.archiveLocked(), true
}

func (s *Store) archiveLocked() domain.Session {
	closed := s.current.Clone()
	elapsed := s.now().Sub(s.openedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	closed.DurationSeconds = int64(elapsed / time.Second)

	s.history = append(s.history, closed)
	s.current = nil
	s.logInfo("session closed",
		"session_id", closed.ID,
		"duration_s", closed.DurationSeconds,
		"messages", len(closed.Messages),
	)
	return closed.Clone()
}

// Delete removes a historical session. The current session is unaffected.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.history {
		if s.history[i].ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("session %q not found in history", id)
}

// Current returns a snapshot of the open session.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Session{}, false
	}
	return s.current.Clone(), true
}

// HasCurrent reports whether a session is open.
func (s *Store) HasCurrent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// History returns finished sessions oldest first.
func (s *Store) History() []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Session, 0, len(s.history))
	for _, session := range s.history {
		out = append(out, session.Clone())
	}
	return out
}

// ValidatePair requires two supported, distinct languages.
func ValidatePair(pair domain.LanguagePair) error {
	if !pair.Provider.Valid() {
		return fault.New(fault.KindInvalidConfiguration, "unsupported provider language %q", pair.Provider)
	}
	if !pair.Patient.Valid() {
		return fault.New(fault.KindInvalidConfiguration, "unsupported patient language %q", pair.Patient)
	}
	if pair.Provider == pair.Patient {
		return fault.New(fault.KindInvalidConfiguration, "provider and patient both use %s", pair.Provider.Name())
	}
	return nil
}

func (s *Store) logInfo(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Info(msg, args...)
}
