package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the server reads from the environment.
type Config struct {
	Port              int
	Env               string
	LogLevel          string
	DatabaseURL       string
	ResponseWindow    time.Duration
	StartCountdown    time.Duration
	MaxPlayersPerRoom int
	MessageRate       float64
	MessageBurst      int
	AllowedOrigin     string
}

// Load reads .env when present, then the process environment. Variables
// already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.Port, err = intEnv("PORT", 8080); err != nil {
		return Config{}, err
	}
	cfg.Env = stringEnv("APP_ENV", "local")
	cfg.LogLevel = stringEnv("LOG_LEVEL", "info")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.ResponseWindow, err = durationEnv("RESPONSE_WINDOW", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StartCountdown, err = durationEnv("START_COUNTDOWN", 0); err != nil {
		return Config{}, err
	}
	if cfg.MaxPlayersPerRoom, err = intEnv("MAX_PLAYERS_PER_ROOM", 10); err != nil {
		return Config{}, err
	}
	if cfg.MessageRate, err = floatEnv("MESSAGE_RATE", 5); err != nil {
		return Config{}, err
	}
	if cfg.MessageBurst, err = intEnv("MESSAGE_BURST", 10); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigin = stringEnv("ALLOWED_ORIGIN", "*")
	return cfg, nil
}

// Production reports whether logs should be machine readable.
func (c Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// AllowsAnyOrigin reports whether browsers from every origin may connect.
func (c Config) AllowsAnyOrigin() bool {
	return c.AllowedOrigin == "" || c.AllowedOrigin == "*"
}

// OriginAllowed is the single origin policy for HTTP and websocket requests.
// Requests without an Origin header are not from a browser and pass.
func (c Config) OriginAllowed(origin string) bool {
	return c.AllowsAnyOrigin() || origin == "" || origin == c.AllowedOrigin
}

func stringEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
