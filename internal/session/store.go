package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/bilim-bot/internal/models"
	"go.uber.org/zap"
)

// Persister receives every session change so it can be stored outside the process.
type Persister interface {
	SaveSession(ctx context.Context, ownerID int64, session *models.ChatSession) error
	AppendMessage(ctx context.Context, sessionID string, message *models.ChatMessage) error
}

// Listener is told about every assistant message once it has been appended.
type Listener func(session models.ChatSession, message models.ChatMessage, solution *models.HandwrittenSolution)

type Options struct {
	OwnerID   int64
	Scheduler Scheduler
	Persister Persister
	Listener  Listener
	Logger    *zap.Logger
}

// CreateParams describes a new session. At most one of InitialMessage,
// BookTopics and Subject drives the seed message, in that order.
type CreateParams struct {
	Title          string
	Category       models.Category
	InitialMessage string
	BookID         string
	BookTopics     []string
	TestID         string
	Subject        *models.SubjectResult
}

// Store owns the chat sessions of one user and the current-session pointer.
// All mutations go through a single mutex, so replies for a session are
// always appended after the user message that triggered them.
type Store struct {
	mu              sync.Mutex
	sessions        map[string]*models.ChatSession
	order           []string
	currentID       string
	pendingSolution *models.HandwrittenSolution
	scheduled       int

	ownerID   int64
	matcher   Matcher
	scheduler Scheduler
	persister Persister
	listener  Listener
	logger    *zap.Logger
	now       func() time.Time
}

func New(m Matcher, opts Options) *Store {
	s := &Store{
		sessions:  make(map[string]*models.ChatSession),
		ownerID:   opts.OwnerID,
		matcher:   m,
		scheduler: opts.Scheduler,
		persister: opts.Persister,
		listener:  opts.Listener,
		logger:    opts.Logger,
		now:       time.Now,
	}
	if s.scheduler == nil {
		s.scheduler = ImmediateScheduler{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Restore loads previously persisted sessions. Sessions already known are skipped.
func (s *Store) Restore(sessions []models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range sessions {
		if _, exists := s.sessions[sess.ID]; exists {
			continue
		}
		c := sess.Clone()
		s.sessions[c.ID] = &c
		s.order = append(s.order, c.ID)
	}
}

// GetSessions returns sessions in creation order. An empty category returns all of them.
func (s *Store) GetSessions(category models.Category) []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatSession, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id]
		if category != "" && sess.Category != category {
			continue
		}
		out = append(out, sess.Clone())
	}
	return out
}

func (s *Store) GetSessionByID(id string) (models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return models.ChatSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.Clone(), nil
}

// CurrentSession returns the session messages are currently appended to.
func (s *Store) CurrentSession() (models.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentID == "" {
		return models.ChatSession{}, false
	}
	return s.sessions[s.currentID].Clone(), true
}

func (s *Store) SetCurrentSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.currentID = id
	return nil
}

// ClearCurrentSession leaves the session in place but makes none current.
func (s *Store) ClearCurrentSession() {
	s.mu.Lock()
	s.currentID = ""
	s.mu.Unlock()
}

// PendingSolution returns the handwritten solution sent with the latest assistant reply.
func (s *Store) PendingSolution() *models.HandwrittenSolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSolution
}

// Pending reports how many assistant replies are scheduled but not yet appended.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// CreateSession registers a session holding a single seed message, makes it
// current and schedules the assistant's first reply.
func (s *Store) CreateSession(ctx context.Context, p CreateParams) models.ChatSession {
	now := s.now()
	sess := &models.ChatSession{
		ID:        uuid.New().String(),
		Title:     p.Title,
		Category:  p.Category,
		CreatedAt: now,
		UpdatedAt: now,
		BookID:    p.BookID,
		TestID:    p.TestID,
	}

	var attachments []models.Attachment
	if p.BookID != "" {
		attachments = []models.Attachment{{Type: models.BookAttachment, URL: p.BookID}}
	}

	s.mu.Lock()
	s.appendLocked(sess, seedMessage(p), models.SenderUser, attachments)
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	s.currentID = sess.ID
	s.scheduled++
	snapshot := sess.Clone()
	if s.persister != nil {
		if err := s.persister.SaveSession(ctx, s.ownerID, sess); err != nil {
			s.logger.Error("Failed to save session",
				zap.Error(err),
				zap.String("session_id", sess.ID))
		}
	}
	s.mu.Unlock()

	s.logger.Info("Session created",
		zap.String("session_id", snapshot.ID),
		zap.String("category", string(snapshot.Category)),
		zap.Int64("owner_id", s.ownerID))

	reply := firstReply(p)
	s.scheduler.Schedule(func() {
		s.deliver(snapshot.ID, reply)
	})

	return snapshot
}

func seedMessage(p CreateParams) string {
	switch {
	case p.InitialMessage != "":
		return p.InitialMessage
	case len(p.BookTopics) > 0:
		return fmt.Sprintf("Я хочу повторить книгу «%s»", p.Title)
	case p.Subject != nil:
		return fmt.Sprintf("Я хочу разобрать свои ошибки по предмету «%s»", p.Subject.Subject)
	default:
		return fmt.Sprintf("Привет! Хочу начать новый чат: %s", p.Title)
	}
}

func firstReply(p CreateParams) Reply {
	switch {
	case len(p.BookTopics) > 0:
		return Reply{Content: bookTopicsReply(p.Title, p.BookTopics), Source: SourceContext}
	case p.Subject != nil:
		return Reply{Content: scoreCommentary(*p.Subject), Source: SourceContext}
	default:
		return Reply{Content: greeting(p.Category), Source: SourceContext}
	}
}

// AddMessage appends a message to the current session.
func (s *Store) AddMessage(ctx context.Context, content string, sender models.Sender, attachments ...models.Attachment) (models.ChatMessage, error) {
	msg, _, err := s.addToCurrent(ctx, content, sender, attachments)
	return msg, err
}

// SendUserMessage appends the user's message to the current session and
// schedules the assistant's answer to it.
func (s *Store) SendUserMessage(ctx context.Context, text string, attachments ...models.Attachment) (models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return models.ChatMessage{}, ErrEmptyQuery
	}

	msg, sess, err := s.addToCurrent(ctx, text, models.SenderUser, attachments)
	if err != nil {
		return models.ChatMessage{}, err
	}

	s.mu.Lock()
	s.scheduled++
	s.mu.Unlock()

	s.scheduler.Schedule(func() {
		s.deliver(sess.ID, Respond(s.matcher, sess.Category, msg))
	})
	return msg, nil
}

func (s *Store) addToCurrent(ctx context.Context, content string, sender models.Sender, attachments []models.Attachment) (models.ChatMessage, models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentID == "" {
		return models.ChatMessage{}, models.ChatSession{}, ErrNoActiveSession
	}
	sess := s.sessions[s.currentID]
	msg := s.appendLocked(sess, content, sender, attachments)
	s.persistLocked(ctx, sess.ID, &msg)

	if msg.Attachments != nil {
		msg.Attachments = append([]models.Attachment(nil), msg.Attachments...)
	}
	return msg, models.ChatSession{ID: sess.ID, Category: sess.Category}, nil
}

// deliver appends an assistant reply to the session it was scheduled for,
// even if the user has switched sessions in the meantime.
func (s *Store) deliver(sessionID string, r Reply) {
	s.mu.Lock()
	s.scheduled--
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("Reply for unknown session dropped", zap.String("session_id", sessionID))
		return
	}
	msg := s.appendLocked(sess, r.Content, models.SenderAssistant, nil)
	s.pendingSolution = r.Solution
	s.persistLocked(context.Background(), sessionID, &msg)
	snapshot := sess.Clone()
	s.mu.Unlock()

	s.logger.Debug("Assistant replied",
		zap.String("session_id", sessionID),
		zap.String("source", string(r.Source)))

	if s.listener != nil {
		s.listener(snapshot, msg, r.Solution)
	}
}

func (s *Store) appendLocked(sess *models.ChatSession, content string, sender models.Sender, attachments []models.Attachment) models.ChatMessage {
	ts := s.now()
	if ts.Before(sess.UpdatedAt) {
		ts = sess.UpdatedAt
	}

	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		Sender:    sender,
		Content:   content,
		Timestamp: ts,
	}
	if len(attachments) > 0 {
		msg.Attachments = append([]models.Attachment(nil), attachments...)
	}

	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = ts
	return msg
}

func (s *Store) persistLocked(ctx context.Context, sessionID string, msg *models.ChatMessage) {
	if s.persister == nil {
		return
	}
	if err := s.persister.AppendMessage(ctx, sessionID, msg); err != nil {
		s.logger.Error("Failed to save message",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.String("message_id", msg.ID))
	}
}
