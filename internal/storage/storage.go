package storage

import (
	"context"
	"errors"

	"github.com/xaenox/bilim-bot/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type Storage interface {
	SessionStorage
	CatalogStorage
	Close() error
}

// SessionStorage keeps chat sessions across restarts, keyed by the user who owns them.
type SessionStorage interface {
	SaveSession(ctx context.Context, ownerID int64, session *models.ChatSession) error
	AppendMessage(ctx context.Context, sessionID string, message *models.ChatMessage) error
	ListSessions(ctx context.Context, ownerID int64) ([]models.ChatSession, error)
}

// CatalogStorage keeps prepared answers and handwritten solutions added at runtime.
type CatalogStorage interface {
	SavePreparedAnswer(ctx context.Context, answer *models.PreparedAnswer) error
	SaveHandwrittenSolution(ctx context.Context, solution *models.HandwrittenSolution) error
	ListPreparedAnswers(ctx context.Context) ([]*models.PreparedAnswer, error)
	ListHandwrittenSolutions(ctx context.Context) ([]*models.HandwrittenSolution, error)
}
