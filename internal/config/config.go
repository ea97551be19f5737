// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	BackendURL   string
	WebSocketURL string
	UserID       string
	DBPath       string // empty = in-memory only, no snapshot
	RoutesFile   string
	Chat         ChatConfig
	Cache        CacheConfig
}

// ChatConfig holds the chat delivery knobs.
type ChatConfig struct {
	EnableWebSocket    bool
	EnableMessageQueue bool
	MaxRetries         int
	RetryDelay         time.Duration
	MaxQueueSize       int
	ContextValidation  bool
	MessagePause       time.Duration
	WebSocketTimeout   time.Duration
	RequestTimeout     time.Duration
}

// CacheConfig controls the navigation cache controller.
type CacheConfig struct {
	CleanupDelay        time.Duration
	ShowNotifications   bool
	MaintenanceInterval time.Duration // 0 disables the maintenance worker
	MemoryThreshold     float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8090"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		BackendURL:   strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		WebSocketURL: getEnv("WEBSOCKET_URL", ""),
		UserID:       getEnv("CHAT_USER_ID", ""),
		DBPath:       getEnv("DB_PATH", ""),
		RoutesFile:   getEnv("ROUTES_FILE", ""),
		Chat: ChatConfig{
			EnableWebSocket:    getEnvBool("CHAT_ENABLE_WEBSOCKET", true),
			EnableMessageQueue: getEnvBool("CHAT_ENABLE_MESSAGE_QUEUE", true),
			MaxRetries:         getEnvInt("CHAT_MAX_RETRIES", 3),
			RetryDelay:         getEnvDuration("CHAT_RETRY_DELAY", time.Second),
			MaxQueueSize:       getEnvInt("CHAT_MAX_QUEUE_SIZE", 50),
			ContextValidation:  getEnvBool("CHAT_CONTEXT_VALIDATION", true),
			MessagePause:       getEnvDuration("CHAT_MESSAGE_PAUSE", 100*time.Millisecond),
			WebSocketTimeout:   getEnvDuration("CHAT_WEBSOCKET_TIMEOUT", 30*time.Second),
			RequestTimeout:     getEnvDuration("CHAT_REQUEST_TIMEOUT", 60*time.Second),
		},
		Cache: CacheConfig{
			CleanupDelay:        getEnvDuration("CACHE_CLEANUP_DELAY", time.Second),
			ShowNotifications:   getEnvBool("CACHE_SHOW_NOTIFICATIONS", true),
			MaintenanceInterval: getEnvDuration("CACHE_MAINTENANCE_INTERVAL", 10*time.Minute),
			MemoryThreshold:     getEnvFloat("CACHE_MEMORY_THRESHOLD", 0.8),
		},
	}

	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = deriveWebSocketURL(cfg.BackendURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("BACKEND_URL is not a valid URL: %w", err)
	}
	if c.Chat.MaxRetries < 0 {
		return fmt.Errorf("CHAT_MAX_RETRIES must be >= 0")
	}
	if c.Chat.RetryDelay <= 0 {
		return fmt.Errorf("CHAT_RETRY_DELAY must be > 0")
	}
	if c.Chat.MaxQueueSize <= 0 {
		return fmt.Errorf("CHAT_MAX_QUEUE_SIZE must be > 0")
	}
	if c.Chat.WebSocketTimeout <= 0 {
		return fmt.Errorf("CHAT_WEBSOCKET_TIMEOUT must be > 0")
	}
	if c.Cache.CleanupDelay < 0 {
		return fmt.Errorf("CACHE_CLEANUP_DELAY must be >= 0")
	}
	if c.Cache.MemoryThreshold <= 0 || c.Cache.MemoryThreshold > 1 {
		return fmt.Errorf("CACHE_MEMORY_THRESHOLD must be in (0, 1]")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the bridge API.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

// deriveWebSocketURL maps http(s)://host/base to ws(s)://host/base/ws/chat.
func deriveWebSocketURL(backendURL string) string {
	u, err := url.Parse(backendURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat"
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("1.5s") or bare milliseconds ("1000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
