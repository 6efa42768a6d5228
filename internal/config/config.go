// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"kopiloka-assistant/internal/credential"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultMaxOutputTokens = 1024
	defaultTemperature     = 0.7
	defaultRequestTimeout  = 30 * time.Second
	defaultListenAddr      = ":8080"
)

// keyEnv names the environment variable holding each provider's API key.
var keyEnv = map[string]string{
	ProviderGemini:    "GEMINI_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

type Config struct {
	Provider string
	// APIKey is the key read from the provider's env variable. When empty,
	// APIKeyParameter names the SSM parameter to read it from.
	APIKey          string
	APIKeyParameter string
	Model           string
	BaseURL         string
	MaxOutputTokens int
	Temperature     float64
	RequestTimeout  time.Duration
	JournalTable    string
	ListenAddr      string
	LogLevel        slog.Level
}

// Load builds a Config from getenv, usually os.Getenv. A missing credential
// is reported as credential.ErrMissing so callers can refuse to start.
func Load(getenv func(string) string) (Config, error) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		Provider:        strings.ToLower(env("LLM_PROVIDER")),
		APIKeyParameter: env("API_KEY_PARAMETER"),
		Model:           env("LLM_MODEL"),
		BaseURL:         env("LLM_BASE_URL"),
		JournalTable:    env("JOURNAL_TABLE"),
		ListenAddr:      env("LISTEN_ADDR"),
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderGemini
	}
	name, ok := keyEnv[cfg.Provider]
	if !ok {
		return Config{}, fmt.Errorf("config: unknown LLM_PROVIDER %q", cfg.Provider)
	}
	cfg.APIKey = env(name)
	if cfg.APIKey == "" && cfg.APIKeyParameter == "" {
		return Config{}, fmt.Errorf("config: %w: set %s or API_KEY_PARAMETER", credential.ErrMissing, name)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	var errs []error
	var err error
	if cfg.MaxOutputTokens, err = envInt(env("MAX_OUTPUT_TOKENS"), defaultMaxOutputTokens); err != nil || cfg.MaxOutputTokens <= 0 {
		errs = append(errs, errors.New("MAX_OUTPUT_TOKENS must be a positive integer"))
	}
	if cfg.Temperature, err = envFloat(env("TEMPERATURE"), defaultTemperature); err != nil || cfg.Temperature < 0 || cfg.Temperature > 2 {
		errs = append(errs, errors.New("TEMPERATURE must be a number between 0 and 2"))
	}
	if cfg.RequestTimeout, err = envDuration(env("REQUEST_TIMEOUT"), defaultRequestTimeout); err != nil || cfg.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be a positive duration"))
	}
	if cfg.LogLevel, err = logLevel(env("LOG_LEVEL")); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// KeyEnv returns the environment variable that holds the provider's key.
func (c Config) KeyEnv() string {
	return keyEnv[c.Provider]
}

func envInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func envFloat(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

// envDuration accepts a Go duration ("45s") or a whole number of seconds.
func envDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func logLevel(v string) (slog.Level, error) {
	if v == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not a valid level", v)
	}
	return lvl, nil
}
