package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/patrickmn/go-cache"
	"github.com/xaenox/bilim-bot/internal/matcher"
	"github.com/xaenox/bilim-bot/internal/models"
	"github.com/xaenox/bilim-bot/internal/session"
	"github.com/xaenox/bilim-bot/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	Token      string
	Debug      bool
	Admins     []int64
	ReplyDelay time.Duration
	SessionTTL time.Duration
	AssetsURL  string
}

type Bot struct {
	api       *tgbotapi.BotAPI
	storage   storage.Storage
	matcher   *matcher.Matcher
	delays    *session.DelayScheduler
	stores    *cache.Cache
	loads     singleflight.Group
	handlers  sync.WaitGroup
	admins    map[int64]bool
	assetsURL string
	logger    *zap.Logger
}

func New(opts Options, storage storage.Storage, matcher *matcher.Matcher, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = opts.Debug

	var delays *session.DelayScheduler
	if opts.ReplyDelay > 0 {
		delays = session.NewDelayScheduler(opts.ReplyDelay)
	}

	admins := make(map[int64]bool, len(opts.Admins))
	for _, id := range opts.Admins {
		admins[id] = true
	}

	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	b := &Bot{
		api:       api,
		storage:   storage,
		matcher:   matcher,
		delays:    delays,
		stores:    cache.New(opts.SessionTTL, 10*time.Minute),
		admins:    admins,
		assetsURL: strings.TrimRight(opts.AssetsURL, "/"),
		logger:    logger,
	}
	b.stores.OnEvicted(b.onStoreEvicted)
	return b, nil
}

// Start polls Telegram until Stop is called. It returns once the messages
// already received have been handled and their replies delivered.
func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		b.handlers.Add(1)
		go func(message *tgbotapi.Message) {
			defer b.handlers.Done()
			b.handleMessage(message)
		}(update.Message)
	}

	b.logger.Info("Polling stopped, delivering pending replies")
	b.drain()
	return nil
}

// drain waits for in-flight handlers and then for the replies they scheduled.
func (b *Bot) drain() {
	b.handlers.Wait()
	if b.delays != nil {
		b.delays.Wait()
	}
}

// Stop ends polling. Start returns when the remaining work is done.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

// schedulerFor gives every user their own reply queue, so one user's replies
// keep their order without waiting on anybody else's.
func (b *Bot) schedulerFor() session.Scheduler {
	if b.delays == nil {
		return session.ImmediateScheduler{}
	}
	return b.delays.Lane()
}

// storeFor returns the session store of a user, restoring it from storage
// when it is not cached. Concurrent misses for one user share a single load.
func (b *Bot) storeFor(ctx context.Context, userID, chatID int64) (*session.Store, error) {
	key := strconv.FormatInt(userID, 10)

	if st, ok := b.cachedStore(key); ok {
		return st, nil
	}

	v, err, _ := b.loads.Do(key, func() (interface{}, error) {
		if st, ok := b.cachedStore(key); ok {
			return st, nil
		}

		sessions, err := b.storage.ListSessions(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load sessions: %w", err)
		}

		st := session.New(b.matcher, session.Options{
			OwnerID:   userID,
			Scheduler: b.schedulerFor(),
			Persister: b.storage,
			Listener:  b.replyListener(chatID),
			Logger:    b.logger.With(zap.Int64("user_id", userID)),
		})
		st.Restore(sessions)
		if len(sessions) > 0 {
			last := mostRecent(sessions)
			if err := st.SetCurrentSession(last.ID); err != nil {
				b.logger.Warn("Failed to resume session", zap.Error(err))
			}
		}

		b.stores.Set(key, st, cache.DefaultExpiration)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Store), nil
}

// cachedStore returns a cached store and restarts its idle expiry.
func (b *Bot) cachedStore(key string) (*session.Store, bool) {
	x, found := b.stores.Get(key)
	if !found {
		return nil, false
	}
	st := x.(*session.Store)
	// Replace fails if the entry expired in between; st is still usable.
	_ = b.stores.Replace(key, st, cache.DefaultExpiration)
	return st, true
}

// onStoreEvicted puts a store back while it still has replies scheduled,
// otherwise they would land in a store nobody can reach.
func (b *Bot) onStoreEvicted(key string, x interface{}) {
	st := x.(*session.Store)
	if st.Pending() == 0 {
		return
	}

	b.loads.Do(key, func() (interface{}, error) {
		if err := b.stores.Add(key, st, cache.DefaultExpiration); err != nil {
			b.logger.Warn("Session store reloaded while replies were pending",
				zap.String("user_id", key),
				zap.Int("pending", st.Pending()))
		}
		return st, nil
	})
}

func mostRecent(sessions []models.ChatSession) models.ChatSession {
	last := sessions[0]
	for _, s := range sessions[1:] {
		if s.UpdatedAt.After(last.UpdatedAt) {
			last = s
		}
	}
	return last
}

func (b *Bot) replyListener(chatID int64) session.Listener {
	return func(_ models.ChatSession, message models.ChatMessage, solution *models.HandwrittenSolution) {
		b.sendMessage(chatID, message.Content)
		if solution != nil {
			b.sendSolution(chatID, solution)
		}
	}
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.From == nil {
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	st, err := b.storeFor(ctx, message.From.ID, message.Chat.ID)
	if err != nil {
		b.logger.Error("Failed to get session store",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Не удалось загрузить твои чаты. Попробуй позже.")
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}

	_, err = st.SendUserMessage(ctx, content, b.attachments(message)...)
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		b.sendMessage(message.Chat.ID, "Сначала начни чат: /new <категория>. Список категорий: /categories")
	case errors.Is(err, session.ErrEmptyQuery):
		b.sendMessage(message.Chat.ID, "Напиши вопрос текстом или пришли фото задачи.")
	case err != nil:
		b.logger.Error("Failed to send user message",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Не удалось отправить сообщение. Попробуй ещё раз.")
	}
}

func (b *Bot) attachments(message *tgbotapi.Message) []models.Attachment {
	var out []models.Attachment

	if len(message.Photo) > 0 {
		// the last size is the largest one
		photo := message.Photo[len(message.Photo)-1]
		if url, err := b.api.GetFileDirectURL(photo.FileID); err == nil {
			out = append(out, models.Attachment{Type: models.ImageAttachment, URL: url})
		} else {
			b.logger.Warn("Failed to resolve photo URL", zap.Error(err))
		}
	}

	if message.Voice != nil {
		if url, err := b.api.GetFileDirectURL(message.Voice.FileID); err == nil {
			out = append(out, models.Attachment{Type: models.VoiceAttachment, URL: url})
		} else {
			b.logger.Warn("Failed to resolve voice URL", zap.Error(err))
		}
	}

	return out
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendSolution(chatID int64, solution *models.HandwrittenSolution) {
	if b.assetsURL == "" {
		b.sendMessage(chatID, "📎 Решение от руки: "+solution.Title)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(b.assetsURL+solution.ImageSrc))
	photo.Caption = solution.Title
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("Failed to send solution",
			zap.Error(err),
			zap.String("solution_id", solution.ID),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	b.sendMessage(chatID, "⚠️ "+text)
}
