package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/bilim-bot/internal/models"
)

func TestMemoryStorageSessions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	defer s.Close()

	created := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	session := &models.ChatSession{
		ID:        "s1",
		Title:     "Homework",
		Category:  models.CategoryHomework,
		CreatedAt: created,
		UpdatedAt: created,
		Messages:  []models.ChatMessage{{ID: "m1", Sender: models.SenderUser, Content: "hi", Timestamp: created}},
	}
	require.NoError(t, s.SaveSession(ctx, 1, session))
	require.NoError(t, s.SaveSession(ctx, 2, &models.ChatSession{ID: "s2", Category: models.CategoryExams}))

	// later changes to the caller's copy must not leak into storage
	session.Messages[0].Content = "changed"

	reply := &models.ChatMessage{
		ID:          "m2",
		Sender:      models.SenderAssistant,
		Content:     "hello",
		Timestamp:   created.Add(time.Minute),
		Attachments: []models.Attachment{{Type: models.ImageAttachment, URL: "x.jpg"}},
	}
	require.NoError(t, s.AppendMessage(ctx, "s1", reply))

	sessions, err := s.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	got := sessions[0]
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hi", got.Messages[0].Content)
	assert.Equal(t, "hello", got.Messages[1].Content)
	assert.Equal(t, created.Add(time.Minute), got.UpdatedAt)

	other, err := s.ListSessions(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryStorageAppendUnknownSession(t *testing.T) {
	s := NewMemoryStorage()
	err := s.AppendMessage(context.Background(), "missing", &models.ChatMessage{ID: "m"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStorageSaveSessionTwiceKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.SaveSession(ctx, 1, &models.ChatSession{ID: "a"}))
	require.NoError(t, s.SaveSession(ctx, 1, &models.ChatSession{ID: "b"}))
	require.NoError(t, s.SaveSession(ctx, 1, &models.ChatSession{ID: "a", Title: "renamed"}))

	sessions, err := s.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, "renamed", sessions[0].Title)
	assert.Equal(t, "b", sessions[1].ID)
}

func TestMemoryStorageCatalog(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.SaveHandwrittenSolution(ctx, &models.HandwrittenSolution{ID: "h1", Title: "t"}))
	require.NoError(t, s.SavePreparedAnswer(ctx, &models.PreparedAnswer{ID: "a1", Question: "q", Answer: "a"}))
	require.NoError(t, s.SavePreparedAnswer(ctx, &models.PreparedAnswer{ID: "a2", Question: "q2", Answer: "a2"}))

	answers, err := s.ListPreparedAnswers(ctx)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, "a1", answers[0].ID)
	assert.Equal(t, "a2", answers[1].ID)

	solutions, err := s.ListHandwrittenSolutions(ctx)
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	assert.Equal(t, "h1", solutions[0].ID)
	assert.NotNil(t, solutions[0].Keywords)
}
