package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/xaenox/bilim-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveSession(ctx context.Context, ownerID int64, session *models.ChatSession) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chat_sessions (id, owner_id, title, category, book_id, test_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, updated_at = EXCLUDED.updated_at`

	_, err = tx.ExecContext(ctx, query,
		session.ID,
		ownerID,
		session.Title,
		string(session.Category),
		session.BookID,
		session.TestID,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}

	for i := range session.Messages {
		if err := insertMessage(ctx, tx, session.ID, &session.Messages[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing session: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMessage(ctx context.Context, db execer, sessionID string, message *models.ChatMessage) error {
	attachments, err := json.Marshal(message.Attachments)
	if err != nil {
		return fmt.Errorf("error encoding attachments: %w", err)
	}
	if message.Attachments == nil {
		attachments = []byte("[]")
	}

	query := `
		INSERT INTO chat_messages (id, session_id, sender, content, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	_, err = db.ExecContext(ctx, query,
		message.ID,
		sessionID,
		string(message.Sender),
		message.Content,
		string(attachments),
		message.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("error saving message: %w", err)
	}
	return nil
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, sessionID string, message *models.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = GREATEST(updated_at, $1) WHERE id = $2`,
		message.Timestamp, sessionID)
	if err != nil {
		return fmt.Errorf("error updating session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if err := insertMessage(ctx, tx, sessionID, message); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStorage) ListSessions(ctx context.Context, ownerID int64) ([]models.ChatSession, error) {
	query := `
		SELECT id, title, category, book_id, test_id, created_at, updated_at
		FROM chat_sessions
		WHERE owner_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.ChatSession{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			session  models.ChatSession
			category string
		)
		err := rows.Scan(
			&session.ID,
			&session.Title,
			&category,
			&session.BookID,
			&session.TestID,
			&session.CreatedAt,
			&session.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning session: %w", err)
		}
		session.Category = models.Category(category)
		index[session.ID] = len(sessions)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}

	msgRows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, sender, content, attachments, created_at
		FROM chat_messages
		WHERE session_id = ANY($1)
		ORDER BY seq`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var (
			message     models.ChatMessage
			sessionID   string
			sender      string
			attachments []byte
		)
		if err := msgRows.Scan(&message.ID, &sessionID, &sender, &message.Content, &attachments, &message.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		message.Sender = models.Sender(sender)
		if err := json.Unmarshal(attachments, &message.Attachments); err != nil {
			s.logger.Warn("Skipping malformed attachments",
				zap.Error(err),
				zap.String("message_id", message.ID))
		}
		if len(message.Attachments) == 0 {
			message.Attachments = nil
		}

		i := index[sessionID]
		sessions[i].Messages = append(sessions[i].Messages, message)
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return sessions, nil
}

func (s *PostgresStorage) SavePreparedAnswer(ctx context.Context, answer *models.PreparedAnswer) error {
	solutionID := ""
	if answer.HandwrittenSolution != nil {
		solutionID = answer.HandwrittenSolution.ID
	}

	query := `
		INSERT INTO prepared_answers (id, question, answer, keywords, subject, topic, solution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		answer.ID,
		answer.Question,
		answer.Answer,
		pq.Array(nonNil(answer.Keywords)),
		answer.Subject,
		answer.Topic,
		solutionID,
	)
	if err != nil {
		return fmt.Errorf("error saving prepared answer: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveHandwrittenSolution(ctx context.Context, solution *models.HandwrittenSolution) error {
	query := `
		INSERT INTO handwritten_solutions (id, subject, topic, title, image_src, keywords)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		solution.ID,
		solution.Subject,
		solution.Topic,
		solution.Title,
		solution.ImageSrc,
		pq.Array(nonNil(solution.Keywords)),
	)
	if err != nil {
		return fmt.Errorf("error saving handwritten solution: %w", err)
	}
	return nil
}

// ListPreparedAnswers returns stored answers in insertion order. A linked
// solution is returned as a stub carrying only its id.
func (s *PostgresStorage) ListPreparedAnswers(ctx context.Context) ([]*models.PreparedAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, answer, keywords, subject, topic, solution_id
		FROM prepared_answers
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("error querying prepared answers: %w", err)
	}
	defer rows.Close()

	var answers []*models.PreparedAnswer
	for rows.Next() {
		a := &models.PreparedAnswer{}
		var solutionID string
		err := rows.Scan(
			&a.ID,
			&a.Question,
			&a.Answer,
			pq.Array(&a.Keywords),
			&a.Subject,
			&a.Topic,
			&solutionID,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning prepared answer: %w", err)
		}
		if solutionID != "" {
			a.HandwrittenSolution = &models.HandwrittenSolution{ID: solutionID}
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *PostgresStorage) ListHandwrittenSolutions(ctx context.Context) ([]*models.HandwrittenSolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, topic, title, image_src, keywords
		FROM handwritten_solutions
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("error querying handwritten solutions: %w", err)
	}
	defer rows.Close()

	var solutions []*models.HandwrittenSolution
	for rows.Next() {
		h := &models.HandwrittenSolution{}
		if err := rows.Scan(&h.ID, &h.Subject, &h.Topic, &h.Title, &h.ImageSrc, pq.Array(&h.Keywords)); err != nil {
			return nil, fmt.Errorf("error scanning handwritten solution: %w", err)
		}
		solutions = append(solutions, h)
	}
	return solutions, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// nonNil keeps pq from sending NULL for keyword columns declared NOT NULL.
func nonNil(keywords []string) []string {
	if keywords == nil {
		return []string{}
	}
	return keywords
}
