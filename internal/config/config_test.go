package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, "wss://api.example.com/ws/chat", cfg.WebSocketURL)
	assert.Equal(t, 3, cfg.Chat.MaxRetries)
	assert.Equal(t, time.Second, cfg.Chat.RetryDelay)
	assert.Equal(t, 50, cfg.Chat.MaxQueueSize)
	assert.True(t, cfg.Chat.EnableWebSocket)
	assert.True(t, cfg.Chat.EnableMessageQueue)
	assert.True(t, cfg.Chat.ContextValidation)
	assert.Equal(t, 30*time.Second, cfg.Chat.WebSocketTimeout)
	assert.Equal(t, time.Second, cfg.Cache.CleanupDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:9000")
	t.Setenv("CHAT_MAX_RETRIES", "5")
	t.Setenv("CHAT_RETRY_DELAY", "250")
	t.Setenv("CHAT_ENABLE_WEBSOCKET", "off")
	t.Setenv("CACHE_CLEANUP_DELAY", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Chat.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Chat.RetryDelay)
	assert.False(t, cfg.Chat.EnableWebSocket)
	assert.Equal(t, 2*time.Second, cfg.Cache.CleanupDelay)
	assert.Equal(t, "ws://localhost:9000/ws/chat", cfg.WebSocketURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CHAT_MAX_QUEUE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_MAX_QUEUE_SIZE")
}

func TestAllowedOrigins(t *testing.T) {
	dev := &Config{FrontendURL: "http://localhost:3000"}
	assert.Equal(t, []string{"*"}, dev.AllowedOrigins())

	prod := &Config{FrontendURL: "https://app.example.com"}
	assert.Equal(t, []string{"https://app.example.com"}, prod.AllowedOrigins())
}

func TestLoadRoutes(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		routes, err := LoadRoutes("")
		require.NoError(t, err)
		assert.Equal(t, DefaultRoutes(), routes)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "routes.yaml")
		require.NoError(t, os.WriteFile(path, []byte("areas:\n  hub: /dashboard\n"), 0o644))

		routes, err := LoadRoutes(path)
		require.NoError(t, err)
		assert.Equal(t, "/dashboard", routes.Hub)
		assert.Equal(t, "/contribution", routes.Contribution)
	})

	t.Run("chat outside contribution is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "routes.yaml")
		require.NoError(t, os.WriteFile(path, []byte("areas:\n  contribution_chat: /chat\n"), 0o644))

		_, err := LoadRoutes(path)
		require.Error(t, err)
	})
}
