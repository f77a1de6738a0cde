// Package config loads and validates application configuration from the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	GitHub    GitHubConfig
	Anthropic AnthropicConfig
	Analysis  AnalysisConfig
	Outreach  OutreachConfig
	Slack     SlackConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Server    ServerConfig
	configDir string // Internal: Directory where config was loaded from
}

// GitHubConfig represents GitHub-specific configuration
type GitHubConfig struct {
	Token          string        // GitHub Personal Access Token for the fork account
	APIURL         string        // GitHub API base URL
	ForkOwner      string        // Account or org that receives forks
	BotLogin       string        // Login of the review bot whose comments are fetched
	RequestTimeout time.Duration // Request timeout for GitHub API

	// Rate limiting
	RequestsPerMinute int
	BurstLimit        int
}

// AnthropicConfig holds the LLM completion API configuration
type AnthropicConfig struct {
	APIKey     string // API key
	BaseURL    string // API base URL
	APIVersion string // API version header value

	Model       string        // Model used for triage and email drafting
	Timeout     time.Duration // Request timeout
	MaxRetries  int           // Maximum number of retries on failure
	MaxTokens   int           // Max tokens to generate
	Temperature float64       // Sampling temperature

	// Rate limiting
	RequestsPerMinute int
	BurstLimit        int
}

// AnalysisConfig controls the PR analysis pipeline
type AnalysisConfig struct {
	// RequireExplanations validates against the older prompt revision that
	// forces the model to emit explanation and macroscopeCommentText for
	// every comment.
	RequireExplanations bool
	PromptName          string // Active prompt template name
}

// OutreachConfig holds fields interpolated into drafted emails
type OutreachConfig struct {
	SenderName    string
	SenderCompany string
	ProductName   string
}

// SlackConfig represents the webhook notification configuration
type SlackConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	CacheSize       int           // Cache size in KiB
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Query timeout
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// ServerConfig holds configuration for the dashboard API server
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New returns a new empty Config
func New() *Config {
	return &Config{
		GitHub:    GitHubConfig{},
		Anthropic: AnthropicConfig{},
		Analysis:  AnalysisConfig{},
		Outreach:  OutreachConfig{},
		Slack:     SlackConfig{},
		Database:  DatabaseConfig{},
		Logging:   LoggingConfig{},
		Server:    ServerConfig{},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateGitHub(); err != nil {
		return fmt.Errorf("GitHub config: %w", err)
	}

	if err := c.validateAnthropic(); err != nil {
		return fmt.Errorf("Anthropic config: %w", err)
	}

	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateGitHub() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if c.GitHub.ForkOwner == "" {
		return fmt.Errorf("fork owner cannot be empty")
	}

	if c.GitHub.BotLogin == "" {
		return fmt.Errorf("bot login cannot be empty")
	}

	if c.GitHub.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	return nil
}

func (c *Config) validateAnthropic() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	if c.Anthropic.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if c.Anthropic.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Anthropic.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}

	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// Create the directory if it doesn't exist
	dir := filepath.Dir(c.Database.Path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("busy timeout must be positive")
	}

	if c.Database.ConnMaxLife <= 0 {
		return fmt.Errorf("connection max life must be positive")
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 from the environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
