package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/bilim-bot/internal/matcher"
	"github.com/xaenox/bilim-bot/internal/models"
	"github.com/xaenox/bilim-bot/internal/session"
	"go.uber.org/zap"
)

var categoryTitles = map[models.Category]string{
	models.CategoryHomework:   "Домашнее задание",
	models.CategoryTests:      "Тесты",
	models.CategorySORSOCh:    "СОР и СОЧ",
	models.CategoryRevision:   "Повторение",
	models.CategoryMotivation: "Мотивация",
	models.CategoryPlanning:   "Планирование",
	models.CategoryAnalysis:   "Анализ результатов",
	models.CategoryExams:      "Экзамены",
	models.CategoryAdmissions: "Поступление",
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "categories":
		b.handleCategories(message)
	case "new":
		b.withStore(ctx, message, b.handleNew)
	case "sessions":
		b.withStore(ctx, message, b.handleSessions)
	case "select":
		b.withStore(ctx, message, b.handleSelect)
	case "close":
		b.withStore(ctx, message, b.handleClose)
	case "solution":
		b.withStore(ctx, message, b.handleSolution)
	case "addanswer":
		b.handleAddAnswer(ctx, message)
	case "addsolution":
		b.handleAddSolution(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Неизвестная команда. Список команд: /help")
	}
}

func (b *Bot) withStore(ctx context.Context, message *tgbotapi.Message, fn func(context.Context, *tgbotapi.Message, *session.Store)) {
	st, err := b.storeFor(ctx, message.From.ID, message.Chat.ID)
	if err != nil {
		b.logger.Error("Failed to get session store",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Не удалось загрузить твои чаты. Попробуй позже.")
		return
	}
	fn(ctx, message, st)
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Привет! Я BilimApp, твой репетитор. 📚
Помогу с домашкой, подготовкой к СОР, СОЧ и ЕНТ, поступлением и планом учёбы.

Начни чат командой /new <категория>, например: /new homework
Все команды: /help`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Команды:
/new <категория> [название] - начать новый чат
/sessions [категория] - список твоих чатов
/select <номер> - вернуться к чату
/close - выйти из текущего чата
/solution - показать последнее решение от руки
/categories - список категорий

В чате можно писать вопросы, присылать фото задач и голосовые сообщения.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleCategories(message *tgbotapi.Message) {
	b.sendMessage(message.Chat.ID, formatCategories())
}

func formatCategories() string {
	var sb strings.Builder
	sb.WriteString("Категории:\n")
	for _, c := range models.Categories() {
		fmt.Fprintf(&sb, "%s - %s\n", c, categoryTitles[c])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseNewArgs splits "/new <category> [title]" arguments.
func parseNewArgs(args string) (models.Category, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", "", errors.New("category is required")
	}

	category, err := models.ParseCategory(fields[0])
	if err != nil {
		return "", "", err
	}

	title := strings.Join(fields[1:], " ")
	if title == "" {
		title = categoryTitles[category]
	}
	return category, title, nil
}

func (b *Bot) handleNew(ctx context.Context, message *tgbotapi.Message, st *session.Store) {
	category, title, err := parseNewArgs(message.CommandArguments())
	if err != nil {
		b.sendMessage(message.Chat.ID, "Укажи категорию: /new <категория> [название]\n\n"+formatCategories())
		return
	}

	st.CreateSession(ctx, session.CreateParams{Title: title, Category: category})
}

func (b *Bot) handleSessions(ctx context.Context, message *tgbotapi.Message, st *session.Store) {
	var filter models.Category
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" {
		c, err := models.ParseCategory(arg)
		if err != nil {
			b.sendMessage(message.Chat.ID, "Нет такой категории.\n\n"+formatCategories())
			return
		}
		filter = c
	}

	all := st.GetSessions("")
	if len(all) == 0 {
		b.sendMessage(message.Chat.ID, "У тебя пока нет чатов. Начни новый: /new <категория>")
		return
	}

	current, _ := st.CurrentSession()
	b.sendMarkdown(message.Chat.ID, formatSessions(all, filter, current.ID))
}

// formatSessions numbers sessions by their position in the full list so that
// /select works the same with or without a category filter.
func formatSessions(sessions []models.ChatSession, filter models.Category, currentID string) string {
	var sb strings.Builder
	sb.WriteString("*Твои чаты:*\n")
	shown := 0
	for i, s := range sessions {
		if filter != "" && s.Category != filter {
			continue
		}
		shown++
		marker := ""
		if s.ID == currentID {
			marker = " ◀"
		}
		line := fmt.Sprintf("%d. %s (%s, сообщений: %d)%s", i+1, s.Title, categoryTitles[s.Category], len(s.Messages), marker)
		sb.WriteString(escapeMarkdown(line) + "\n")
	}
	if shown == 0 {
		sb.WriteString(escapeMarkdown("В этой категории чатов нет.") + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) handleSelect(ctx context.Context, message *tgbotapi.Message, st *session.Store) {
	n, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	all := st.GetSessions("")
	if err != nil || n < 1 || n > len(all) {
		b.sendMessage(message.Chat.ID, "Укажи номер чата из списка /sessions")
		return
	}

	selected := all[n-1]
	if err := st.SetCurrentSession(selected.ID); err != nil {
		b.logger.Error("Failed to select session",
			zap.Error(err),
			zap.String("session_id", selected.ID))
		b.sendErrorMessage(message.Chat.ID, "Не удалось открыть чат.")
		return
	}

	text := fmt.Sprintf("Открыт чат «%s».", selected.Title)
	if len(selected.Messages) > 0 {
		last := selected.Messages[len(selected.Messages)-1]
		text += "\n\nПоследнее сообщение:\n" + last.Content
	}
	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleClose(ctx context.Context, message *tgbotapi.Message, st *session.Store) {
	st.ClearCurrentSession()
	b.sendMessage(message.Chat.ID, "Чат закрыт. Выбери другой: /sessions или начни новый: /new <категория>")
}

func (b *Bot) handleSolution(ctx context.Context, message *tgbotapi.Message, st *session.Store) {
	solution := st.PendingSolution()
	if solution == nil {
		b.sendMessage(message.Chat.ID, "К последнему ответу нет решения от руки.")
		return
	}
	b.sendSolution(message.Chat.ID, solution)
}

// parseAnswerArgs reads "question | answer | kw1, kw2 | subject | topic | solution id".
// Subject, topic and solution id are optional.
func parseAnswerArgs(args string) (models.PreparedAnswer, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 {
		return models.PreparedAnswer{}, errors.New("question, answer and keywords are required")
	}

	answer := models.PreparedAnswer{
		Question: parts[0],
		Answer:   parts[1],
		Keywords: splitKeywords(parts[2]),
	}
	if len(parts) > 3 {
		answer.Subject = parts[3]
	}
	if len(parts) > 4 {
		answer.Topic = parts[4]
	}
	if len(parts) > 5 && parts[5] != "" {
		answer.HandwrittenSolution = &models.HandwrittenSolution{ID: parts[5]}
	}
	return answer, nil
}

func (b *Bot) handleAddAnswer(ctx context.Context, message *tgbotapi.Message) {
	if !b.admins[message.From.ID] {
		b.sendMessage(message.Chat.ID, "Неизвестная команда. Список команд: /help")
		return
	}

	entry, err := parseAnswerArgs(message.CommandArguments())
	if err != nil {
		b.sendMessage(message.Chat.ID, "Формат: /addanswer вопрос | ответ | ключ1, ключ2 | предмет | тема | id решения")
		return
	}

	added, err := b.matcher.AddPreparedAnswer(ctx, entry)
	if errors.Is(err, matcher.ErrInvalidEntry) {
		b.sendMessage(message.Chat.ID, "Нужны вопрос, ответ и хотя бы одно ключевое слово.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to add prepared answer",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Не удалось сохранить ответ.")
		return
	}

	b.sendMessage(message.Chat.ID, "Ответ добавлен: "+added.ID)
}

func splitKeywords(s string) []string {
	var keywords []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// parseSolutionArgs reads "subject | topic | title | image path | kw1, kw2".
// Keywords are optional.
func parseSolutionArgs(args string) (models.HandwrittenSolution, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 4 {
		return models.HandwrittenSolution{}, errors.New("subject, topic, title and image are required")
	}

	solution := models.HandwrittenSolution{
		Subject:  parts[0],
		Topic:    parts[1],
		Title:    parts[2],
		ImageSrc: parts[3],
	}
	if len(parts) > 4 {
		solution.Keywords = splitKeywords(parts[4])
	}
	return solution, nil
}

func (b *Bot) handleAddSolution(ctx context.Context, message *tgbotapi.Message) {
	if !b.admins[message.From.ID] {
		b.sendMessage(message.Chat.ID, "Неизвестная команда. Список команд: /help")
		return
	}

	entry, err := parseSolutionArgs(message.CommandArguments())
	if err != nil {
		b.sendMessage(message.Chat.ID, "Формат: /addsolution предмет | тема | название | путь к картинке | ключ1, ключ2")
		return
	}

	added, err := b.matcher.AddHandwrittenSolution(ctx, entry)
	if errors.Is(err, matcher.ErrInvalidEntry) {
		b.sendMessage(message.Chat.ID, "Нужны предмет, тема, название и путь к картинке.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to add handwritten solution",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Не удалось сохранить решение.")
		return
	}

	b.sendMessage(message.Chat.ID, "Решение добавлено: "+added.ID+"\nСсылайся на него в /addanswer.")
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
