package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	cfg := New()

	// If configDir is empty, use the default
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".prospector")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	// Default database and log paths live in the config directory
	cfg.Database.Path = filepath.Join(configDir, "prospector.db")
	defaultLogPath := filepath.Join(configDir, "prospector.log")

	// Use provided config file path or default
	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// ENV_FILE_PATH overrides everything else
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(configFilePath); err != nil {
			// Then try current directory as fallback
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	// GitHub configuration
	cfg.GitHub = GitHubConfig{
		Token:             getEnvString("PROSPECTOR_GITHUB_TOKEN", ""),
		APIURL:            getEnvString("PROSPECTOR_GITHUB_API_URL", "https://api.github.com"),
		ForkOwner:         getEnvString("PROSPECTOR_GITHUB_FORK_OWNER", ""),
		BotLogin:          getEnvString("PROSPECTOR_GITHUB_BOT_LOGIN", "macroscope-reviews[bot]"),
		RequestTimeout:    getEnvDuration("PROSPECTOR_GITHUB_REQUEST_TIMEOUT", 30*time.Second),
		RequestsPerMinute: getEnvInt("PROSPECTOR_GITHUB_REQUESTS_PER_MINUTE", 0),
		BurstLimit:        getEnvInt("PROSPECTOR_GITHUB_BURST_LIMIT", 5),
	}

	// Anthropic configuration
	cfg.Anthropic = AnthropicConfig{
		APIKey:            getEnvString("PROSPECTOR_ANTHROPIC_API_KEY", ""),
		BaseURL:           getEnvString("PROSPECTOR_ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		APIVersion:        getEnvString("PROSPECTOR_ANTHROPIC_API_VERSION", "2023-06-01"),
		Model:             getEnvString("PROSPECTOR_ANTHROPIC_MODEL", "claude-3-7-sonnet-20250219"),
		Timeout:           getEnvDuration("PROSPECTOR_ANTHROPIC_TIMEOUT", 120*time.Second),
		MaxRetries:        getEnvInt("PROSPECTOR_ANTHROPIC_MAX_RETRIES", 3),
		MaxTokens:         getEnvInt("PROSPECTOR_ANTHROPIC_MAX_TOKENS", 8192),
		Temperature:       getEnvFloat("PROSPECTOR_ANTHROPIC_TEMPERATURE", 0.1),
		RequestsPerMinute: getEnvInt("PROSPECTOR_ANTHROPIC_REQUESTS_PER_MINUTE", 0),
		BurstLimit:        getEnvInt("PROSPECTOR_ANTHROPIC_BURST_LIMIT", 1),
	}

	// Analysis configuration
	cfg.Analysis = AnalysisConfig{
		RequireExplanations: getEnvBool("PROSPECTOR_ANALYSIS_REQUIRE_EXPLANATIONS", false),
		PromptName:          getEnvString("PROSPECTOR_ANALYSIS_PROMPT_NAME", "pr-triage"),
	}

	// Outreach configuration
	cfg.Outreach = OutreachConfig{
		SenderName:    getEnvString("PROSPECTOR_OUTREACH_SENDER_NAME", ""),
		SenderCompany: getEnvString("PROSPECTOR_OUTREACH_SENDER_COMPANY", "Macroscope"),
		ProductName:   getEnvString("PROSPECTOR_OUTREACH_PRODUCT_NAME", "Macroscope"),
	}

	// Slack configuration
	cfg.Slack = SlackConfig{
		Enabled:    getEnvBool("PROSPECTOR_SLACK_ENABLED", false),
		WebhookURL: getEnvString("PROSPECTOR_SLACK_WEBHOOK_URL", ""),
		Timeout:    getEnvDuration("PROSPECTOR_SLACK_TIMEOUT", 10*time.Second),
	}

	// Database configuration
	cfg.Database = DatabaseConfig{
		Path:            getEnvString("PROSPECTOR_DB_PATH", cfg.Database.Path),
		JournalMode:     getEnvString("PROSPECTOR_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("PROSPECTOR_DB_SYNCHRONOUS", "NORMAL"),
		BusyTimeout:     getEnvInt("PROSPECTOR_DB_BUSY_TIMEOUT", 5000),
		CacheSize:       getEnvInt("PROSPECTOR_DB_CACHE_SIZE", -64000),
		ForeignKeys:     getEnvBool("PROSPECTOR_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("PROSPECTOR_DB_CONN_MAX_LIFE", time.Hour),
		QueryTimeout:    getEnvDuration("PROSPECTOR_DB_QUERY_TIMEOUT", 30*time.Second),
	}

	// Logging configuration
	cfg.Logging = LoggingConfig{
		Level:      getEnvString("PROSPECTOR_LOG_LEVEL", "info"),
		Format:     getEnvString("PROSPECTOR_LOG_FORMAT", "text"),
		Output:     getEnvString("PROSPECTOR_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("PROSPECTOR_LOG_ADD_SOURCE", false),
		TimeFormat: getEnvString("PROSPECTOR_LOG_TIME_FORMAT", time.RFC3339),
	}

	// Server configuration
	cfg.Server = ServerConfig{
		Host:         getEnvString("PROSPECTOR_SERVER_HOST", "127.0.0.1"),
		Port:         getEnvInt("PROSPECTOR_SERVER_PORT", 8910),
		ReadTimeout:  getEnvDuration("PROSPECTOR_SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("PROSPECTOR_SERVER_WRITE_TIMEOUT", 120*time.Second),
	}

	return cfg, nil
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}
