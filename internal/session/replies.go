package session

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xaenox/bilim-bot/internal/matcher"
	"github.com/xaenox/bilim-bot/internal/models"
)

// ImageSolutionID is the worked solution shown for photographed problems.
const ImageSolutionID = "math-quadratic-1"

const (
	imageReply = "Давай разберём эту задачу вместе! Я посмотрел на фото. " +
		"Сначала выпишем, что дано и что нужно найти, а потом решим по шагам. " +
		"Вот пример похожего решения от руки."
	genericReply = "Расскажи подробнее, что именно вызывает трудности? Я помогу разобраться шаг за шагом."
)

type ReplySource string

const (
	SourcePreparedAnswer   ReplySource = "prepared_answer"
	SourceCanned           ReplySource = "canned"
	SourceImage            ReplySource = "image"
	SourceCategoryFallback ReplySource = "category_fallback"
	SourceGeneric          ReplySource = "generic"
	SourceContext          ReplySource = "context"
)

// Reply is the assistant answer chosen for a user message.
type Reply struct {
	Content  string
	Solution *models.HandwrittenSolution
	Source   ReplySource
}

// Matcher finds prepared answers for free text.
type Matcher interface {
	FindBestMatch(query string) *models.PreparedAnswer
	GetHandwrittenSolution(id string) *models.HandwrittenSolution
}

// A rule fires when the message contains one of its triggers or has one of
// its words as a whole word. Short abbreviations go in words so they do not
// fire inside longer words.
type cannedRule struct {
	triggers []string
	words    []string
	reply    string
}

type categoryReplies struct {
	rules    []cannedRule
	fallback string
}

// Rules are checked in order and the first trigger found in the message wins.
var cannedReplies = map[models.Category]categoryReplies{
	models.CategoryHomework: {
		rules: []cannedRule{
			{
				triggers: []string{"производн"},
				reply: "Производная показывает скорость изменения функции. Запиши функцию, определи, какие правила нужны " +
					"(степенная функция, произведение, сложная функция), и применяй их по очереди. Пришли своё решение, проверим вместе.",
			},
			{
				triggers: []string{"уравнен"},
				reply: "Начнём с вида уравнения: линейное, квадратное или с дробями? Перенеси всё в одну сторону, " +
					"упрости и только потом ищи корни. Напиши, на каком шаге застрял.",
			},
			{
				triggers: []string{"сочинен", "эссе"},
				reply: "Хорошее сочинение строится из трёх частей: вступление с главной мыслью, основная часть с аргументами " +
					"и примерами, заключение с выводом. Давай сначала сформулируем твою главную мысль.",
			},
		},
		fallback: "Пришли условие задачи или фото тетради, и разберём её по шагам.",
	},
	models.CategoryTests: {
		rules: []cannedRule{
			{
				triggers: []string{"пробн"},
				reply: "Пробный тест лучше проходить в реальных условиях: засеки время, убери телефон и не подглядывай в ответы. " +
					"После теста разберём каждую ошибку.",
			},
			{
				triggers: []string{"не успева", "время"},
				reply: "Чтобы успевать, сначала реши лёгкие вопросы, а сложные отметь и вернись к ним в конце. " +
					"На один вопрос в среднем должно уходить не больше двух минут.",
			},
		},
	},
	models.CategorySORSOCh: {
		rules: []cannedRule{
			{
				triggers: []string{"суммативн"},
				words:    []string{"соч", "сор"},
				reply: "СОР проверяет знания по разделу, а СОЧ — по всей четверти. Возьми список тем четверти, " +
					"отметь те, в которых не уверен, и начнём с них.",
			},
			{
				triggers: []string{"критери", "дескриптор"},
				reply: "Баллы за СОР и СОЧ ставят по дескрипторам. Внимательно прочитай каждый дескриптор к заданию: " +
					"он прямо говорит, что нужно показать в ответе, чтобы получить балл.",
			},
		},
	},
	models.CategoryRevision: {
		rules: []cannedRule{
			{
				triggers: []string{"формул"},
				reply: "Формулы лучше повторять не зубрёжкой, а через задачи: выпиши формулу, реши по ней две задачи " +
					"и через день попробуй вспомнить её без подсказки.",
			},
			{
				triggers: []string{"ошибк"},
				reply: "Разбор ошибок — самый быстрый способ вырасти. Для каждой ошибки запиши правильный ответ и причину: " +
					"невнимательность, незнание правила или нехватка времени.",
			},
		},
	},
	models.CategoryMotivation: {
		rules: []cannedRule{
			{
				triggers: []string{"устал", "нет сил"},
				reply: "Усталость — это сигнал, а не слабость. Сделай перерыв на 15 минут, выпей воды и пройдись. " +
					"Потом начни с самого простого задания, чтобы снова войти в ритм.",
			},
			{
				triggers: []string{"лень", "не хочу"},
				reply: "Попробуй правило пяти минут: пообещай себе позаниматься всего пять минут. " +
					"Чаще всего самое трудное — начать, а дальше дело пойдёт.",
			},
			{
				triggers: []string{"боюсь", "страшно"},
				reply: "Волноваться перед учёбой и экзаменами нормально. Давай разобьём подготовку на маленькие шаги: " +
					"каждый выполненный шаг сделает тебя увереннее.",
			},
		},
		fallback: "Расскажи, что сейчас мешает учиться, и вместе найдём, как с этим справиться.",
	},
	models.CategoryPlanning: {
		rules: []cannedRule{
			{
				triggers: []string{"расписан"},
				reply: "Составим расписание: выпиши все предметы и дедлайны, оцени, сколько времени нужно на каждый, " +
					"и распредели занятия блоками по 45 минут с перерывами.",
			},
			{
				triggers: []string{"недел"},
				reply: "План на неделю: в начале недели — новые темы, в середине — практика, в выходные — повторение " +
					"и один пробный тест. Какие предметы включаем?",
			},
		},
		fallback: "Скажи, к какой дате и по каким предметам нужно подготовиться, и я помогу составить план.",
	},
	models.CategoryAnalysis: {
		rules: []cannedRule{
			{
				triggers: []string{"балл", "результат"},
				reply: "Давай посмотрим на результаты по темам, а не только на общий балл. " +
					"Так станет видно, какие темы уже получаются, а какие стоит подтянуть.",
			},
			{
				triggers: []string{"слаб"},
				reply: "Слабые темы лучше прорабатывать по одной: теория, три лёгкие задачи, две сложные и мини-тест в конце.",
			},
		},
	},
	models.CategoryExams: {
		rules: []cannedRule{
			{
				triggers: []string{"волну", "стресс"},
				reply: "Перед экзаменом выспись, а утром не пытайся выучить новое. На экзамене глубоко вдохни, " +
					"прочитай все задания и начни с тех, в которых уверен.",
			},
			{
				triggers: []string{"подготов"},
				reply: "Подготовку к экзамену построим так: диагностический тест, список слабых тем, " +
					"ежедневная практика и пробный экзамен раз в неделю.",
			},
		},
		fallback: "Какой экзамен ты сдаёшь и сколько времени осталось до него?",
	},
	models.CategoryAdmissions: {
		rules: []cannedRule{
			{
				triggers: []string{"грант"},
				reply: "Чтобы получить образовательный грант, нужно сдать ЕНТ и набрать проходной балл по выбранной группе " +
					"образовательных программ. Затем подай заявление на конкурс грантов и укажи до четырёх вузов по приоритету.",
			},
			{
				triggers: []string{"документ"},
				reply: "Для поступления обычно нужны: заявление, аттестат или диплом, сертификат ЕНТ, удостоверение личности, " +
					"фотографии 3×4 и медицинская справка формы 075/у.",
			},
			{
				triggers: []string{"специальност", "професси"},
				reply: "При выборе специальности подумай о трёх вещах: что тебе интересно, какие предметы даются лучше всего " +
					"и какие профессии востребованы. Давай начнём с твоих любимых предметов.",
			},
			{
				triggers: []string{"общежити"},
				reply: "Место в общежитии обычно дают по заявлению после зачисления. Уточни в приёмной комиссии сроки подачи " +
					"и список документов.",
			},
		},
		fallback: "Расскажи, в какой вуз и на какую специальность ты хочешь поступить, и я подскажу следующие шаги.",
	},
}

// CannedReply returns the first canned paragraph whose trigger appears in text.
func CannedReply(category models.Category, text string) (string, bool) {
	cr, ok := cannedReplies[category]
	if !ok {
		return "", false
	}
	t := matcher.Normalize(text)
	words := make(map[string]bool)
	for _, w := range strings.Fields(t) {
		words[strings.TrimFunc(w, unicode.IsPunct)] = true
	}

	for _, rule := range cr.rules {
		for _, trigger := range rule.triggers {
			if strings.Contains(t, trigger) {
				return rule.reply, true
			}
		}
		for _, w := range rule.words {
			if words[w] {
				return rule.reply, true
			}
		}
	}
	return "", false
}

// Respond chooses the assistant answer to msg within a session of the given category.
func Respond(m Matcher, category models.Category, msg models.ChatMessage) Reply {
	if answer := m.FindBestMatch(msg.Content); answer != nil {
		return Reply{Content: answer.Answer, Solution: answer.HandwrittenSolution, Source: SourcePreparedAnswer}
	}

	if text, ok := CannedReply(category, msg.Content); ok {
		return Reply{Content: text, Source: SourceCanned}
	}

	if msg.HasAttachment(models.ImageAttachment) {
		return Reply{Content: imageReply, Solution: m.GetHandwrittenSolution(ImageSolutionID), Source: SourceImage}
	}

	if cr, ok := cannedReplies[category]; ok && cr.fallback != "" {
		return Reply{Content: cr.fallback, Source: SourceCategoryFallback}
	}

	return Reply{Content: genericReply, Source: SourceGeneric}
}

var greetings = map[models.Category]string{
	models.CategoryHomework:   "Привет! Я помогу с домашним заданием. Напиши задачу или пришли фото.",
	models.CategoryTests:      "Привет! Давай готовиться к тестам. По какому предмету потренируемся?",
	models.CategorySORSOCh:    "Привет! Подготовимся к СОР и СОЧ. Какой предмет и раздел?",
	models.CategoryRevision:   "Привет! Давай повторим пройденное. Какую тему освежим?",
	models.CategoryMotivation: "Привет! Я рядом, чтобы поддержать. Как ты сейчас себя чувствуешь?",
	models.CategoryPlanning:   "Привет! Давай спланируем учёбу. На какой срок составим план?",
	models.CategoryAnalysis:   "Привет! Разберём твои результаты. Какие оценки или тесты посмотрим?",
	models.CategoryExams:      "Привет! Готовимся к экзаменам. Какой экзамен тебя ждёт?",
	models.CategoryAdmissions: "Привет! Помогу с поступлением. Что хочешь узнать про вузы, гранты или документы?",
}

func greeting(category models.Category) string {
	if g, ok := greetings[category]; ok {
		return g
	}
	return "Привет! Чем могу помочь?"
}

func bookTopicsReply(title string, topics []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Отлично! Давай повторим книгу «%s». Выбери тему, с которой начнём:\n", title)
	for i, t := range topics {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	return strings.TrimRight(b.String(), "\n")
}

func scoreCommentary(r models.SubjectResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Твой результат по предмету «%s»: %d из %d (%d%%). ", r.Subject, r.Score, r.MaxScore, r.Percent())

	switch p := r.Percent(); {
	case p >= 80:
		b.WriteString("Отличный результат! Осталось отшлифовать несколько моментов.")
	case p >= 50:
		b.WriteString("Неплохо, но есть темы, которые стоит подтянуть.")
	default:
		b.WriteString("Есть над чем поработать, но мы справимся вместе.")
	}

	if len(r.Mistakes) > 0 {
		fmt.Fprintf(&b, " Ошибки были в темах: %s. Начнём с первой?", strings.Join(r.Mistakes, ", "))
	}
	return b.String()
}
