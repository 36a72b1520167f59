package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizcoletivo/go/clients/openrouter"
	"github.com/mcdev12/quizcoletivo/go/clients/questionbank"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	c, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, time.Second, c.Quiz.TickInterval)
	assert.Equal(t, "quiz-gateway", c.NATS.ConsumerName)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
quiz:
  room_code_length: 8
  public_origin: https://quiz.example.com
identity:
  redis_addr: redis:6379
  ttl: 2h
relay:
  embedded: true
`), 0o600))

	t.Setenv("PORT", "")
	t.Setenv("PUBLIC_ORIGIN", "https://play.example.com")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("RELAY_EMBEDDED", "false")

	c, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Server.Port)
	assert.Equal(t, 8, c.Quiz.RoomCodeLength)
	assert.Equal(t, "https://play.example.com", c.Quiz.PublicOrigin)
	assert.Equal(t, "redis:6379", c.Identity.RedisAddr)
	assert.Equal(t, 2*time.Hour, c.Identity.TTL)
	assert.Equal(t, "hunter2", c.Auth.Password)
	assert.False(t, c.Relay.Embedded)
	assert.Equal(t, "/", c.Quiz.JoinPath, "unset keys keep defaults")
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o600))
	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestSetupGenerator(t *testing.T) {
	c := defaultConfig()

	g, err := setupGenerator(c)
	require.NoError(t, err)
	assert.Nil(t, g, "no key and no bank")

	c.Quiz.QuestionBank = "builtin"
	g, err = setupGenerator(c)
	require.NoError(t, err)
	assert.IsType(t, &questionbank.Bank{}, g)

	c.Quiz.QuestionBank = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = setupGenerator(c)
	assert.Error(t, err)

	c.OpenRouter.APIKey = "sk-test"
	g, err = setupGenerator(c)
	require.NoError(t, err)
	assert.IsType(t, &openrouter.Client{}, g)
}
