package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken string
	LLMProvider      string
	LLMEndpoint      string
	LLMToken         string
	LLMModel         string
	WhisperModel     string
	PostgreDSN       string
	LogLevel         string

	// Admin access for /analytics
	AdminUsername string

	// Request admission tuning
	Cooldown        time.Duration
	ProcessingDelay time.Duration
	LLMTimeout      time.Duration

	// Credit accounting
	InitialCredits int64

	// Conversation context
	HistoryWindow int

	// Reward/metrics HTTP server
	RewardPort string

	// Path to the banner image sent with /start
	BannerPath string
}

func Load() (*Config, error) {
	// .env is optional in production, required vars are validated below
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		LLMProvider:      getEnvOrDefault("LLM_PROVIDER", "groq"),
		LLMEndpoint:      getEnvOrDefault("LLM_ENDPOINT", "https://api.groq.com/openai/v1"),
		LLMToken:         os.Getenv("LLM_TOKEN"),
		LLMModel:         getEnvOrDefault("LLM_MODEL", "llama-3.1-8b-instant"),
		WhisperModel:     getEnvOrDefault("WHISPER_MODEL", "whisper-large-v3"),
		PostgreDSN:       os.Getenv("POSTGRE_DSN"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		AdminUsername:    os.Getenv("ADMIN_USERNAME"),
		Cooldown:         getEnvMillis("COOLDOWN_MS", 30000),
		ProcessingDelay:  getEnvMillis("PROCESSING_DELAY_MS", 10000),
		LLMTimeout:       getEnvMillis("LLM_TIMEOUT_MS", 30000),
		InitialCredits:   getEnvInt64("INITIAL_CREDITS", 5),
		HistoryWindow:    int(getEnvInt64("HISTORY_WINDOW", 7)),
		RewardPort:       getEnvOrDefault("REWARD_PORT", "8080"),
		BannerPath:       getEnvOrDefault("BANNER_PATH", "banner.png"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("required environment variable TELEGRAM_BOT_TOKEN is not set")
	}
	if c.Cooldown < 0 || c.ProcessingDelay < 0 {
		return fmt.Errorf("cooldown and processing delay must not be negative")
	}
	if c.HistoryWindow < 2 {
		return fmt.Errorf("HISTORY_WINDOW must be at least 2 (system entry plus one turn)")
	}
	return nil
}

func (c *Config) HasLLMConfig() bool {
	return c.LLMProvider != "" && c.LLMEndpoint != "" && c.LLMToken != "" && c.LLMModel != ""
}

func (c *Config) HasDatabaseConfig() bool {
	return c.PostgreDSN != ""
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvMillis(key string, defaultMillis int64) time.Duration {
	return time.Duration(getEnvInt64(key, defaultMillis)) * time.Millisecond
}
