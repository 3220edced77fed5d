package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string
	LogLevel      string
	Environment   string
	Timezone      string

	// OCR / extraction
	OCRLanguages        []string // tesseract language codes
	ConfidenceFloor     float64
	SimilarityThreshold float64
	ProviderTimeout     time.Duration
	FallbackTimeout     time.Duration

	// Generative providers (optional; extraction degrades gracefully)
	GeminiAPIKey   string
	GeminiModel    string
	TogetherAPIKey string
	TogetherModel  string

	// WhatsApp Cloud API (optional channel)
	WhatsAppToken      string
	WhatsAppPhoneID    string
	WhatsAppCostPerMsg float64

	// Scheduling
	CronSpecReminderTick string
	CronSpecOverdueSweep string
	ReminderLookbackDays int
	ReminderLookaheadHrs int
	MaxSendAttempts      int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))
	cfg.Timezone = getEnv("TIMEZONE", "Asia/Singapore")

	cfg.OCRLanguages = strings.Split(getEnv("OCR_LANGUAGES", "eng+msa+chi_sim"), "+")

	var err error
	if cfg.ConfidenceFloor, err = getFloat("OCR_CONFIDENCE_FLOOR", 0.4); err != nil {
		return nil, err
	}
	if cfg.SimilarityThreshold, err = getFloat("OCR_SIMILARITY_THRESHOLD", 0.8); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getDuration("OCR_PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FallbackTimeout, err = getDuration("OCR_FALLBACK_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnv("GEMINI_MODEL", "gemini-1.5-flash")
	cfg.TogetherAPIKey = os.Getenv("TOGETHER_API_KEY")
	cfg.TogetherModel = getEnv("TOGETHER_MODEL", "meta-llama/Llama-4-Scout-17B-16E-Instruct")

	cfg.WhatsAppToken = os.Getenv("WHATSAPP_TOKEN")
	cfg.WhatsAppPhoneID = os.Getenv("WHATSAPP_PHONE_ID")
	if cfg.WhatsAppCostPerMsg, err = getFloat("WHATSAPP_COST_PER_MESSAGE", 0.005); err != nil {
		return nil, err
	}

	// Three checks a day, matching the windows parents actually read
	// messages in.
	cfg.CronSpecReminderTick = getEnv("CRON_SPEC_REMINDER_TICK", "0 8,13,18 * * *")
	cfg.CronSpecOverdueSweep = getEnv("CRON_SPEC_OVERDUE_SWEEP", "30 0 * * *")

	if cfg.ReminderLookbackDays, err = getInt("REMINDER_LOOKBACK_DAYS", 14); err != nil {
		return nil, err
	}
	if cfg.ReminderLookaheadHrs, err = getInt("REMINDER_LOOKAHEAD_HOURS", 36); err != nil {
		return nil, err
	}
	if cfg.MaxSendAttempts, err = getInt("MAX_SEND_ATTEMPTS", 3); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
