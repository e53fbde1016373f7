package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/bilim-bot/internal/matcher"
	"github.com/xaenox/bilim-bot/internal/models"
	"go.uber.org/zap"
)

func defaultMatcher() *matcher.Matcher {
	answers, solutions := matcher.DefaultCatalog()
	return matcher.New(answers, solutions, nil, zap.NewNop())
}

func TestCannedReply(t *testing.T) {
	tests := []struct {
		name     string
		category models.Category
		text     string
		contains string
	}{
		{"admissions grant", models.CategoryAdmissions, "хочу подать на грант", "образовательный грант"},
		{"admissions documents", models.CategoryAdmissions, "Какие ДОКУМЕНТЫ нужны?", "сертификат ЕНТ"},
		{"homework derivative", models.CategoryHomework, "не понимаю производные", "скорость изменения"},
		{"motivation tired", models.CategoryMotivation, "я очень устал", "перерыв"},
		{"planning week", models.CategoryPlanning, "план на неделю", "План на неделю"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CannedReply(tt.category, tt.text)
			require.True(t, ok)
			assert.Contains(t, got, tt.contains)
		})
	}
}

func TestCannedReplyFirstRuleWins(t *testing.T) {
	got, ok := CannedReply(models.CategoryAdmissions, "какие документы нужны на грант")
	require.True(t, ok)
	assert.Contains(t, got, "образовательный грант")
}

func TestCannedReplyAbbreviationsMatchWholeWords(t *testing.T) {
	for _, text := range []string{"Когда будет СОЧ?", "готовлюсь к сор по физике", "сор, соч"} {
		got, ok := CannedReply(models.CategorySORSOCh, text)
		require.True(t, ok, text)
		assert.Contains(t, got, "всей четверти", text)
	}

	for _, text := range []string{"пишем сочинение", "сорок задач", "сортировка"} {
		_, ok := CannedReply(models.CategorySORSOCh, text)
		assert.False(t, ok, text)
	}
}

func TestCannedReplyIsCategoryScoped(t *testing.T) {
	_, ok := CannedReply(models.CategoryHomework, "хочу подать на грант")
	assert.False(t, ok)

	_, ok = CannedReply(models.Category("unknown"), "грант")
	assert.False(t, ok)
}

func TestRespond(t *testing.T) {
	m := defaultMatcher()

	tests := []struct {
		name         string
		category     models.Category
		msg          models.ChatMessage
		wantSource   ReplySource
		wantSolution string
		wantPrefix   string
	}{
		{
			name:       "prepared answer first",
			category:   models.CategoryAdmissions,
			msg:        models.ChatMessage{Content: "Как решать квадратные уравнения?"},
			wantSource: SourcePreparedAnswer,
			wantPrefix: "Чтобы решить квадратное уравнение",
		},
		{
			name:         "prepared answer with solution",
			category:     models.CategoryHomework,
			msg:          models.ChatMessage{Content: "расскажи про производную функции"},
			wantSource:   SourcePreparedAnswer,
			wantSolution: "math-derivative-1",
		},
		{
			name:       "canned by category",
			category:   models.CategoryAdmissions,
			msg:        models.ChatMessage{Content: "хочу подать на грант"},
			wantSource: SourceCanned,
		},
		{
			name:     "image attachment",
			category: models.CategoryTests,
			msg: models.ChatMessage{
				Content:     "вот задача",
				Attachments: []models.Attachment{{Type: models.ImageAttachment, URL: "photo.jpg"}},
			},
			wantSource:   SourceImage,
			wantSolution: ImageSolutionID,
		},
		{
			name:       "category fallback",
			category:   models.CategoryHomework,
			msg:        models.ChatMessage{Content: "привет, как дела"},
			wantSource: SourceCategoryFallback,
		},
		{
			name:       "generic fallback",
			category:   models.CategoryAnalysis,
			msg:        models.ChatMessage{Content: "привет, как дела"},
			wantSource: SourceGeneric,
			wantPrefix: "Расскажи подробнее",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Respond(m, tt.category, tt.msg)
			assert.Equal(t, tt.wantSource, r.Source)
			assert.NotEmpty(t, r.Content)
			if tt.wantPrefix != "" {
				assert.True(t, strings.HasPrefix(r.Content, tt.wantPrefix), r.Content)
			}
			if tt.wantSolution == "" {
				assert.Nil(t, r.Solution)
			} else {
				require.NotNil(t, r.Solution)
				assert.Equal(t, tt.wantSolution, r.Solution.ID)
			}
		})
	}
}

func TestScoreCommentary(t *testing.T) {
	got := scoreCommentary(models.SubjectResult{Subject: "Физика", Score: 9, MaxScore: 20, Mistakes: []string{"Кинематика", "Динамика"}})
	assert.Contains(t, got, "9 из 20 (45%)")
	assert.Contains(t, got, "Есть над чем поработать")
	assert.Contains(t, got, "Кинематика, Динамика")

	got = scoreCommentary(models.SubjectResult{Subject: "Химия", Score: 18, MaxScore: 20})
	assert.Contains(t, got, "Отличный результат")
	assert.NotContains(t, got, "Ошибки были")
}

func TestBookTopicsReply(t *testing.T) {
	got := bookTopicsReply("Алгебра 9", []string{"Функции", "Прогрессии"})
	assert.Contains(t, got, "«Алгебра 9»")
	assert.True(t, strings.HasSuffix(got, "2. Прогрессии"))
	assert.Contains(t, got, "1. Функции\n")
}

func TestEveryCategoryHasGreeting(t *testing.T) {
	for _, c := range models.Categories() {
		assert.NotEqual(t, "Привет! Чем могу помочь?", greeting(c), c)
	}
}
