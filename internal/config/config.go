package config

import (
	"fmt"
	"log"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DBDSN       string `mapstructure:"DB_DSN"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`

	// Кампус: часовой пояс и окно бронирования
	Timezone    string `mapstructure:"TIMEZONE"`
	OpeningTime string `mapstructure:"OPENING_TIME"`
	ClosingTime string `mapstructure:"CLOSING_TIME"`

	ArchiveSweepSpec string        `mapstructure:"ARCHIVE_SWEEP_SPEC"`
	RatingGrace      time.Duration `mapstructure:"RATING_GRACE"`

	StorageMaxRetries uint64        `mapstructure:"STORAGE_MAX_RETRIES"`
	StorageRetryBase  time.Duration `mapstructure:"STORAGE_RETRY_BASE"`

	RateLimitPerMin int `mapstructure:"RATE_LIMIT_PER_MIN"`
	EventBuffer     int `mapstructure:"EVENT_BUFFER"`

	// Redis-ретранслятор событий, выключен если адрес пустой
	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int    `mapstructure:"REDIS_DB"`
	RedisEventsChannel string `mapstructure:"REDIS_EVENTS_CHANNEL"`

	// Telegram-уведомления, выключены если токен пустой
	TelegramToken       string        `mapstructure:"TELEGRAM_TOKEN"`
	TelegramBotUsername string        `mapstructure:"TELEGRAM_BOT_USERNAME"`
	TelegramLinkTTL     time.Duration `mapstructure:"TELEGRAM_LINK_TTL"`

	location *time.Location
	hours    model.OperatingHours
}

var defaults = map[string]any{
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"DB_DSN":                "",
	"HTTP_ADDR":             ":8080",
	"TIMEZONE":              "Local",
	"OPENING_TIME":          "07:30",
	"CLOSING_TIME":          "21:00",
	"ARCHIVE_SWEEP_SPEC":    "@every 10m",
	"RATING_GRACE":          "72h",
	"STORAGE_MAX_RETRIES":   3,
	"STORAGE_RETRY_BASE":    "50ms",
	"RATE_LIMIT_PER_MIN":    120,
	"EVENT_BUFFER":          64,
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"REDIS_EVENTS_CHANNEL":  "plc:booking-events",
	"TELEGRAM_TOKEN":        "",
	"TELEGRAM_BOT_USERNAME": "",
	"TELEGRAM_LINK_TTL":     "15m",
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded\n")

	return &cfg, nil
}

func (c *Config) validate() error {
	// Проверяем обязательные поля
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required but not set")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("load TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc

	open, err := model.ParseTimeOfDay(c.OpeningTime)
	if err != nil {
		return fmt.Errorf("OPENING_TIME: %w", err)
	}
	closing, err := model.ParseTimeOfDay(c.ClosingTime)
	if err != nil {
		return fmt.Errorf("CLOSING_TIME: %w", err)
	}
	if open >= closing {
		return fmt.Errorf("OPENING_TIME %s must be before CLOSING_TIME %s", open, closing)
	}
	c.hours = model.OperatingHours{Open: open, Close: closing}

	if _, err := cron.ParseStandard(c.ArchiveSweepSpec); err != nil {
		return fmt.Errorf("ARCHIVE_SWEEP_SPEC %q: %w", c.ArchiveSweepSpec, err)
	}

	if c.EventBuffer <= 0 {
		return fmt.Errorf("EVENT_BUFFER must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}
	if c.TelegramLinkTTL <= 0 {
		return fmt.Errorf("TELEGRAM_LINK_TTL must be positive")
	}

	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// Location часовой пояс кампуса
func (c *Config) Location() *time.Location {
	return c.location
}

// Hours окно, в котором разрешены занятия
func (c *Config) Hours() model.OperatingHours {
	return c.hours
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
