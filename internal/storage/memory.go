package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaenox/bilim-bot/internal/models"
)

type MemoryStorage struct {
	mu        sync.RWMutex
	sessions  map[string]*models.ChatSession
	owners    map[string]int64
	order     []string
	answers   []*models.PreparedAnswer
	solutions []*models.HandwrittenSolution
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*models.ChatSession),
		owners:   make(map[string]int64),
	}
}

// Session methods
func (s *MemoryStorage) SaveSession(ctx context.Context, ownerID int64, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := session.Clone()
	if _, exists := s.sessions[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.sessions[c.ID] = &c
	s.owners[c.ID] = ownerID
	return nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, sessionID string, message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	m := *message
	if m.Attachments != nil {
		m.Attachments = append([]models.Attachment(nil), m.Attachments...)
	}
	session.Messages = append(session.Messages, m)
	if m.Timestamp.After(session.UpdatedAt) {
		session.UpdatedAt = m.Timestamp
	}
	return nil
}

func (s *MemoryStorage) ListSessions(ctx context.Context, ownerID int64) ([]models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := []models.ChatSession{}
	for _, id := range s.order {
		if s.owners[id] != ownerID {
			continue
		}
		sessions = append(sessions, s.sessions[id].Clone())
	}
	return sessions, nil
}

// Catalog methods
func (s *MemoryStorage) SavePreparedAnswer(ctx context.Context, answer *models.PreparedAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *answer
	s.answers = append(s.answers, &a)
	return nil
}

func (s *MemoryStorage) SaveHandwrittenSolution(ctx context.Context, solution *models.HandwrittenSolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := *solution
	h.Keywords = append([]string{}, solution.Keywords...)
	s.solutions = append(s.solutions, &h)
	return nil
}

func (s *MemoryStorage) ListPreparedAnswers(ctx context.Context) ([]*models.PreparedAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*models.PreparedAnswer(nil), s.answers...), nil
}

func (s *MemoryStorage) ListHandwrittenSolutions(ctx context.Context) ([]*models.HandwrittenSolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*models.HandwrittenSolution(nil), s.solutions...), nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
