// Package config reads runtime settings for the server, the admin CLI and
// the desk client from the environment. Binaries call godotenv.Load first so
// a local .env file can supply the same keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// Reconnection policy of the desk client.
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = 1000 * time.Millisecond

	DefaultJWTTTL          = 72 * time.Hour
	DefaultMaxUploadBytes  = 10 << 20
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds server settings.
type Config struct {
	HTTPAddr        string
	DatabaseDSN     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	JWTTTL          time.Duration
	UploadDir       string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration

	TelegramBotToken    string
	TelegramAlertChatID int64
}

// AgentConfig holds desk client settings.
type AgentConfig struct {
	ServerURL         string
	Token             string
	UserID            string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// ErrMissingSecret is returned when JWT_SECRET is empty.
var ErrMissingSecret = errors.New("JWT_SECRET is not set")

// Load reads the server configuration.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseDSN:      getEnv("DATABASE_DSN", "host=localhost user=user password=password dbname=brokerdesk port=5432 sslmode=disable"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6380"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getEnvDuration("JWT_TTL", DefaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes); err != nil {
		return nil, err
	}
	if cfg.TelegramAlertChatID, err = getEnvInt64("TELEGRAM_ALERT_CHAT_ID", 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAgent reads the desk client configuration.
func LoadAgent() (*AgentConfig, error) {
	cfg := &AgentConfig{
		ServerURL: getEnv("DESK_SERVER_URL", "http://localhost:8080"),
		Token:     os.Getenv("DESK_TOKEN"),
		UserID:    os.Getenv("DESK_USER_ID"),
	}
	if cfg.UserID == "" {
		return nil, errors.New("DESK_USER_ID is not set")
	}

	var err error
	if cfg.ReconnectAttempts, err = getEnvInt("DESK_RECONNECT_ATTEMPTS", DefaultReconnectAttempts); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay, err = getEnvDuration("DESK_RECONNECT_DELAY", DefaultReconnectDelay); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
