package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	LogLevel string `mapstructure:"log_level"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	RedisAddr   string `mapstructure:"redis_addr"`

	KafkaBrokers       []string `mapstructure:"kafka_brokers"`
	NotificationsTopic string   `mapstructure:"notifications_topic"`
	NotificationsGroup string   `mapstructure:"notifications_group"`

	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	NotifyHookURL    string `mapstructure:"notify_hook_url"`

	TinkoffTerminalKey     string `mapstructure:"tinkoff_terminal_key"`
	TinkoffPassword        string `mapstructure:"tinkoff_password"`
	TinkoffNotificationURL string `mapstructure:"tinkoff_notification_url"`
	TinkoffAPIURL          string `mapstructure:"tinkoff_api_url"`

	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	SlowDownWindow  time.Duration `mapstructure:"slowdown_window"`
	SlowDownDelay   time.Duration `mapstructure:"slowdown_delay"`
	RequestKeyTTL   time.Duration `mapstructure:"request_key_ttl"`

	OTLPEndpoint       string   `mapstructure:"otel_exporter_otlp_endpoint"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

var defaults = map[string]any{
	"http_addr":                   ":8080",
	"log_level":                   "info",
	"postgres_dsn":                "host=localhost user=postgres password=postgres dbname=gym sslmode=disable",
	"auto_migrate":                true,
	"redis_addr":                  "localhost:6379",
	"kafka_brokers":               []string{"localhost:9092"},
	"notifications_topic":         "notifications",
	"notifications_group":         "gym-ledger-notifications",
	"telegram_bot_token":          "",
	"notify_hook_url":             "",
	"tinkoff_terminal_key":        "",
	"tinkoff_password":            "",
	"tinkoff_notification_url":    "",
	"tinkoff_api_url":             "https://securepay.tinkoff.ru/v2",
	"rate_limit_window":           10 * time.Second,
	"slowdown_window":             5 * time.Second,
	"slowdown_delay":              500 * time.Millisecond,
	"request_key_ttl":             24 * time.Hour,
	"otel_exporter_otlp_endpoint": "",
	"cors_allowed_origins":        []string{"*"},
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}
	return fromEnv(viper.New())
}

func fromEnv(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"auto_migrate", cfg.AutoMigrate,
		"telegram", cfg.TelegramBotToken != "")
	return &cfg, nil
}
