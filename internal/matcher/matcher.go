package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xaenox/bilim-bot/internal/models"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinScore is the lowest score a prepared answer needs to be returned.
const MinScore = 5

const (
	questionWeight = 10
	keywordWeight  = 2
	wordWeight     = 1
	subjectWeight  = 2
	topicWeight    = 3

	minWordLength = 4
)

var ErrInvalidEntry = errors.New("invalid catalog entry")

var punctuation = strings.NewReplacer(
	".", "", ",", "", "/", "", "#", "", "!", "", "$", "", "%", "", "^", "",
	"&", "", "*", "", ";", "", ":", "", "{", "", "}", "", "=", "", "-", "",
	"_", "", "`", "", "~", "", "(", "", ")", "",
)

// Normalize lowercases s and strips the punctuation ignored by matching.
func Normalize(s string) string {
	// cases.Caser keeps state, so one is built per call.
	return punctuation.Replace(cases.Lower(language.Und).String(s))
}

// CatalogStore persists entries added at runtime.
type CatalogStore interface {
	SavePreparedAnswer(ctx context.Context, answer *models.PreparedAnswer) error
	SaveHandwrittenSolution(ctx context.Context, solution *models.HandwrittenSolution) error
}

type indexedAnswer struct {
	entry    *models.PreparedAnswer
	question string
	subject  string
	topic    string
	keywords []string
}

func index(a *models.PreparedAnswer) indexedAnswer {
	kws := make([]string, 0, len(a.Keywords))
	for _, k := range a.Keywords {
		if k = Normalize(k); k != "" {
			kws = append(kws, k)
		}
	}
	return indexedAnswer{
		entry:    a,
		question: Normalize(a.Question),
		subject:  Normalize(a.Subject),
		topic:    Normalize(a.Topic),
		keywords: kws,
	}
}

// Matcher picks the prepared answer that best fits a free-text question.
// Returned entries are shared with the catalog and must not be modified.
type Matcher struct {
	mu        sync.RWMutex
	answers   []indexedAnswer
	solutions []*models.HandwrittenSolution
	store     CatalogStore
	logger    *zap.Logger
}

// New builds a matcher over the given catalog. store may be nil, in which case
// runtime additions live only as long as the process.
func New(answers []*models.PreparedAnswer, solutions []*models.HandwrittenSolution, store CatalogStore, logger *zap.Logger) *Matcher {
	m := &Matcher{
		answers:   make([]indexedAnswer, 0, len(answers)),
		solutions: append([]*models.HandwrittenSolution(nil), solutions...),
		store:     store,
		logger:    logger,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	for _, a := range answers {
		m.answers = append(m.answers, index(m.link(a)))
	}
	return m
}

// link swaps a solution stub (id only, as loaded from storage) for the catalog entry.
func (m *Matcher) link(a *models.PreparedAnswer) *models.PreparedAnswer {
	if a.HandwrittenSolution == nil || a.HandwrittenSolution.ImageSrc != "" {
		return a
	}
	for _, s := range m.solutions {
		if s.ID == a.HandwrittenSolution.ID {
			linked := *a
			linked.HandwrittenSolution = s
			return &linked
		}
	}
	m.logger.Warn("Prepared answer links unknown solution",
		zap.String("answer_id", a.ID),
		zap.String("solution_id", a.HandwrittenSolution.ID))
	return a
}

// Match returns the best scoring entry and its score, or nil when nothing
// reaches MinScore.
func (m *Matcher) Match(query string) (*models.PreparedAnswer, int) {
	q := Normalize(query)
	if strings.TrimSpace(q) == "" {
		return nil, 0
	}
	words := strings.Fields(q)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.PreparedAnswer
	bestScore := 0
	for i := range m.answers {
		s := score(q, words, &m.answers[i])
		// strict comparison keeps the earliest entry on ties
		if s > bestScore {
			best, bestScore = m.answers[i].entry, s
		}
	}

	if bestScore < MinScore {
		return nil, bestScore
	}
	return best, bestScore
}

// FindBestMatch returns the best prepared answer for query, or nil.
func (m *Matcher) FindBestMatch(query string) *models.PreparedAnswer {
	best, s := m.Match(query)
	if best != nil {
		m.logger.Debug("Prepared answer matched",
			zap.String("answer_id", best.ID),
			zap.Int("score", s))
	}
	return best
}

// Score reports how well entry fits query.
func Score(query string, entry *models.PreparedAnswer) int {
	q := Normalize(query)
	ia := index(entry)
	return score(q, strings.Fields(q), &ia)
}

func score(q string, words []string, a *indexedAnswer) int {
	total := 0
	if a.question != "" && strings.Contains(q, a.question) {
		total += questionWeight
	}
	for _, kw := range a.keywords {
		if strings.Contains(q, kw) {
			total += keywordWeight
		}
	}
	for _, w := range words {
		if utf8.RuneCountInString(w) < minWordLength {
			continue
		}
		for _, kw := range a.keywords {
			if strings.Contains(kw, w) {
				total += wordWeight
			}
		}
	}
	if a.subject != "" && strings.Contains(q, a.subject) {
		total += subjectWeight
	}
	if a.topic != "" && strings.Contains(q, a.topic) {
		total += topicWeight
	}
	return total
}

// GetHandwrittenSolution looks up a solution by exact id.
func (m *Matcher) GetHandwrittenSolution(id string) *models.HandwrittenSolution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.solutions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// AddPreparedAnswer appends entry to the catalog under a fresh id.
func (m *Matcher) AddPreparedAnswer(ctx context.Context, entry models.PreparedAnswer) (*models.PreparedAnswer, error) {
	if strings.TrimSpace(entry.Question) == "" || strings.TrimSpace(entry.Answer) == "" || len(entry.Keywords) == 0 {
		return nil, fmt.Errorf("%w: question, answer and keywords are required", ErrInvalidEntry)
	}

	a := entry
	a.ID = uuid.New().String()
	a.Keywords = append([]string(nil), entry.Keywords...)

	if m.store != nil {
		if err := m.store.SavePreparedAnswer(ctx, &a); err != nil {
			return nil, fmt.Errorf("failed to save prepared answer: %w", err)
		}
	}

	m.mu.Lock()
	linked := m.link(&a)
	m.answers = append(m.answers, index(linked))
	m.mu.Unlock()

	m.logger.Info("Prepared answer added",
		zap.String("answer_id", a.ID),
		zap.String("subject", a.Subject))
	return linked, nil
}

// AddHandwrittenSolution appends entry to the solution catalog under a fresh id.
func (m *Matcher) AddHandwrittenSolution(ctx context.Context, entry models.HandwrittenSolution) (*models.HandwrittenSolution, error) {
	if entry.Subject == "" || entry.Topic == "" || entry.Title == "" || entry.ImageSrc == "" {
		return nil, fmt.Errorf("%w: subject, topic, title and image are required", ErrInvalidEntry)
	}

	s := entry
	s.ID = uuid.New().String()
	s.Keywords = []string{}
	for _, k := range entry.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			s.Keywords = append(s.Keywords, k)
		}
	}

	if m.store != nil {
		if err := m.store.SaveHandwrittenSolution(ctx, &s); err != nil {
			return nil, fmt.Errorf("failed to save handwritten solution: %w", err)
		}
	}

	m.mu.Lock()
	m.solutions = append(m.solutions, &s)
	m.mu.Unlock()

	m.logger.Info("Handwritten solution added", zap.String("solution_id", s.ID))
	return &s, nil
}
