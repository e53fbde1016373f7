package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/xaenox/bilim-bot/internal/bot"
	"github.com/xaenox/bilim-bot/internal/matcher"
	"github.com/xaenox/bilim-bot/internal/storage"
	"github.com/xaenox/bilim-bot/pkg/config"
	"github.com/xaenox/bilim-bot/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config config.yaml: %v", err)
	}

	// Initialize logger
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		zl.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		zl.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig, zl)
		if err != nil {
			zl.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize matcher with the shipped catalog plus everything added at runtime
	m, err := loadMatcher(ctx, store, zl)
	if err != nil {
		zl.Fatal("Failed to load catalog", zap.Error(err))
	}

	// Initialize bot
	b, err := bot.New(bot.Options{
		Token:      cfg.Telegram.Token,
		Debug:      cfg.Telegram.Debug,
		Admins:     cfg.Telegram.Admins,
		ReplyDelay: cfg.Chat.ReplyDelay,
		SessionTTL: cfg.Chat.SessionTTL,
		AssetsURL:  cfg.Chat.AssetsURL,
	}, store, m, zl)
	if err != nil {
		zl.Fatal("Failed to create bot", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		zl.Info("Shutting down")
		b.Stop()
	}()

	// Start the bot; it returns after Stop once pending replies are delivered,
	// so storage is still open for them
	if err := b.Start(); err != nil {
		zl.Fatal("Bot error", zap.Error(err))
	}
	zl.Info("Bot stopped")
}

func loadMatcher(ctx context.Context, store storage.CatalogStorage, zl *zap.Logger) (*matcher.Matcher, error) {
	answers, solutions := matcher.DefaultCatalog()

	storedSolutions, err := store.ListHandwrittenSolutions(ctx)
	if err != nil {
		return nil, err
	}
	storedAnswers, err := store.ListPreparedAnswers(ctx)
	if err != nil {
		return nil, err
	}

	zl.Info("Catalog loaded",
		zap.Int("answers", len(answers)+len(storedAnswers)),
		zap.Int("solutions", len(solutions)+len(storedSolutions)))

	return matcher.New(
		append(answers, storedAnswers...),
		append(solutions, storedSolutions...),
		store,
		zl,
	), nil
}
