package models

import (
	"fmt"
	"time"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type AttachmentType string

const (
	VoiceAttachment      AttachmentType = "voice"
	ImageAttachment      AttachmentType = "image"
	DrawingAttachment    AttachmentType = "drawing"
	CalculatorAttachment AttachmentType = "calculator"
	BookAttachment       AttachmentType = "book"
)

type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url"`
}

// Category is the purpose a chat session was opened for
type Category string

const (
	CategoryHomework   Category = "homework"
	CategoryTests      Category = "tests"
	CategorySORSOCh    Category = "SOR_SOCh"
	CategoryRevision   Category = "revision"
	CategoryMotivation Category = "motivation"
	CategoryPlanning   Category = "planning"
	CategoryAnalysis   Category = "analysis"
	CategoryExams      Category = "exams"
	CategoryAdmissions Category = "admissions"
)

var categories = []Category{
	CategoryHomework,
	CategoryTests,
	CategorySORSOCh,
	CategoryRevision,
	CategoryMotivation,
	CategoryPlanning,
	CategoryAnalysis,
	CategoryExams,
	CategoryAdmissions,
}

// Categories returns every known category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory accepts only the closed set of categories.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ChatMessage is a single immutable entry of a session
type ChatMessage struct {
	ID          string       `json:"id"`
	Sender      Sender       `json:"sender"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// HasAttachment reports whether the message carries an attachment of type t.
func (m ChatMessage) HasAttachment(t AttachmentType) bool {
	for _, a := range m.Attachments {
		if a.Type == t {
			return true
		}
	}
	return false
}

// ChatSession represents one conversation thread between a user and the tutor
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Category  Category      `json:"category"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	BookID    string        `json:"book_id,omitempty"`
	TestID    string        `json:"test_id,omitempty"`
}

// Clone returns a copy that shares no slices with s.
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = make([]ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		if m.Attachments != nil {
			m.Attachments = append([]Attachment(nil), m.Attachments...)
		}
		out.Messages[i] = m
	}
	return out
}

// SubjectResult carries a test score the user wants to go over
type SubjectResult struct {
	Subject  string   `json:"subject"`
	Score    int      `json:"score"`
	MaxScore int      `json:"max_score"`
	Mistakes []string `json:"mistakes,omitempty"`
}

// Percent returns the score as a whole percentage of MaxScore.
func (r SubjectResult) Percent() int {
	if r.MaxScore <= 0 {
		return 0
	}
	return r.Score * 100 / r.MaxScore
}
