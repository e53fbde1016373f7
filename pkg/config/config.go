package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token  string  `mapstructure:"token"`
	Debug  bool    `mapstructure:"debug"`
	Admins []int64 `mapstructure:"admins"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type ChatConfig struct {
	// ReplyDelay paces assistant replies; zero replies immediately.
	ReplyDelay time.Duration `mapstructure:"reply_delay"`
	// SessionTTL is how long an idle user's sessions stay in memory. Zero
	// disables expiry.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// AssetsURL is prefixed to handwritten solution image paths.
	AssetsURL string `mapstructure:"assets_url"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if port, err = strconv.Atoi(u.Port()); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)
	v.SetDefault("chat.reply_delay", "1s")
	v.SetDefault("chat.session_ttl", "1h")
	v.SetDefault("log.level", "info")

	// Enable environment variable support
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if config.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is not set")
	}
	if config.Chat.ReplyDelay < 0 {
		return nil, fmt.Errorf("chat.reply_delay must not be negative")
	}
	if config.Chat.SessionTTL < 0 {
		return nil, fmt.Errorf("chat.session_ttl must not be negative")
	}
	// zero keeps stores forever; otherwise a store must outlive its replies
	if config.Chat.SessionTTL > 0 && config.Chat.SessionTTL <= config.Chat.ReplyDelay {
		return nil, fmt.Errorf("chat.session_ttl (%s) must be longer than chat.reply_delay (%s)",
			config.Chat.SessionTTL, config.Chat.ReplyDelay)
	}

	return &config, nil
}
