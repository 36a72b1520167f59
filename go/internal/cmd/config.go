package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the API server configuration. It is read from a YAML file and
// then overridden from the environment.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Quiz struct {
		RoomCodeLength int           `yaml:"room_code_length"`
		PublicOrigin   string        `yaml:"public_origin"`
		JoinPath       string        `yaml:"join_path"`
		AvatarURL      string        `yaml:"avatar_url"`
		TickInterval   time.Duration `yaml:"tick_interval"`
		// QuestionBank serves questions when no OpenRouter key is set:
		// "builtin" for the bundled bank or a path to a YAML bank. Empty disables it.
		QuestionBank string `yaml:"question_bank"`
	} `yaml:"quiz"`

	Auth struct {
		Username     string        `yaml:"username"`
		Password     string        `yaml:"-"`
		PasswordHash string        `yaml:"password_hash"`
		Secret       string        `yaml:"-"`
		TokenTTL     time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Identity struct {
		// RedisAddr selects the Redis store. Empty keeps identities in memory.
		RedisAddr string        `yaml:"redis_addr"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"identity"`

	NATS struct {
		URL          string `yaml:"url"`
		ConsumerName string `yaml:"consumer_name"`
	} `yaml:"nats"`

	Relay struct {
		// Embedded runs the change relay inside the API server.
		Embedded         bool          `yaml:"embedded"`
		FallbackInterval time.Duration `yaml:"fallback_interval"`
	} `yaml:"relay"`

	OpenRouter struct {
		APIKey  string        `yaml:"-"`
		Model   string        `yaml:"model"`
		Referer string        `yaml:"referer"`
		Title   string        `yaml:"title"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"openrouter"`
}

func defaultConfig() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.AllowedOrigins = []string{"*"}
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Quiz.PublicOrigin = "http://localhost:5173"
	c.Quiz.JoinPath = "/"
	c.Quiz.TickInterval = time.Second
	c.Auth.Username = "admin"
	c.Auth.TokenTTL = 12 * time.Hour
	c.Identity.TTL = 12 * time.Hour
	c.NATS.URL = "nats://127.0.0.1:4222"
	c.NATS.ConsumerName = "quiz-gateway"
	c.Relay.FallbackInterval = 10 * time.Second
	c.OpenRouter.Timeout = time.Minute
	return &c
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Quiz.PublicOrigin = getEnv("PUBLIC_ORIGIN", c.Quiz.PublicOrigin)
	c.Quiz.RoomCodeLength = getEnvAsInt("ROOM_CODE_LENGTH", c.Quiz.RoomCodeLength)
	c.Quiz.QuestionBank = getEnv("QUESTION_BANK", c.Quiz.QuestionBank)
	c.Auth.Username = getEnv("ADMIN_USERNAME", c.Auth.Username)
	c.Auth.Password = getEnv("ADMIN_PASSWORD", c.Auth.Password)
	c.Auth.PasswordHash = getEnv("ADMIN_PASSWORD_HASH", c.Auth.PasswordHash)
	c.Auth.Secret = getEnv("AUTH_SECRET", c.Auth.Secret)
	c.Identity.RedisAddr = getEnv("REDIS_ADDR", c.Identity.RedisAddr)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.ConsumerName = getEnv("GATEWAY_CONSUMER", c.NATS.ConsumerName)
	c.Relay.Embedded = getEnvAsBool("RELAY_EMBEDDED", c.Relay.Embedded)
	c.OpenRouter.APIKey = getEnv("OPENROUTER_API_KEY", c.OpenRouter.APIKey)
	c.OpenRouter.Model = getEnv("OPENROUTER_MODEL", c.OpenRouter.Model)
	c.OpenRouter.Referer = getEnv("HTTP_REFERER", c.OpenRouter.Referer)
	c.OpenRouter.Title = getEnv("X_TITLE", c.OpenRouter.Title)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
