package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizdown-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions are stored as deep copies and expire ttl after their last Put;
// a zero ttl keeps them for the life of the process.
type SessionStore struct {
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]storedSession
}

type storedSession struct {
	session   domain.Session
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		logger:   logger,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok || s.expired(entry, s.clock()) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (s *SessionStore) Put(_ context.Context, session domain.Session) error {
	entry := storedSession{session: session.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.mu.Lock()
	s.sessions[session.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) List(_ context.Context, prefix string) ([]domain.Session, error) {
	now := s.clock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Session
	for id, entry := range s.sessions {
		if !strings.HasPrefix(id, prefix) || s.expired(entry, now) {
			continue
		}
		out = append(out, entry.session.Clone())
	}
	return out, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Start runs Sweep every interval until ctx is done.
func (s *SessionStore) Start(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go s.run(ctx, interval)
}

func (s *SessionStore) run(ctx context.Context, interval time.Duration) {
	s.logger.Info("session sweeper started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

func (s *SessionStore) expired(entry storedSession, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !entry.expiresAt.After(now)
}
