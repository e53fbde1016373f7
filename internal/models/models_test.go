package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCategory("sor_soch")
	assert.Error(t, err)
	_, err = ParseCategory("")
	assert.Error(t, err)
}

func TestCategoriesIsACopy(t *testing.T) {
	cs := Categories()
	cs[0] = "broken"
	assert.Equal(t, CategoryHomework, Categories()[0])
}

func TestChatSessionClone(t *testing.T) {
	s := ChatSession{
		ID: "s1",
		Messages: []ChatMessage{{
			ID:          "m1",
			Content:     "hi",
			Timestamp:   time.Now(),
			Attachments: []Attachment{{Type: ImageAttachment, URL: "a.png"}},
		}},
	}

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages[0].Attachments[0].URL = "b.png"
	c.Messages = append(c.Messages, ChatMessage{ID: "m2"})

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, "a.png", s.Messages[0].Attachments[0].URL)
	assert.Len(t, s.Messages, 1)
}

func TestSubjectResultPercent(t *testing.T) {
	assert.Equal(t, 75, SubjectResult{Score: 15, MaxScore: 20}.Percent())
	assert.Equal(t, 0, SubjectResult{Score: 5}.Percent())
}

func TestHasAttachment(t *testing.T) {
	m := ChatMessage{Attachments: []Attachment{{Type: VoiceAttachment}}}
	assert.True(t, m.HasAttachment(VoiceAttachment))
	assert.False(t, m.HasAttachment(ImageAttachment))
}
