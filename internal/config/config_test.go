package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()

	cfg := New()
	cfg.GitHub = GitHubConfig{
		Token:          "ghp_test",
		APIURL:         "https://api.github.com",
		ForkOwner:      "prospect-forks",
		BotLogin:       "macroscope-reviews[bot]",
		RequestTimeout: 30 * time.Second,
	}
	cfg.Anthropic = AnthropicConfig{
		APIKey:     "sk-test",
		Model:      "claude-sonnet-4-20250514",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		MaxTokens:  4096,
	}
	cfg.Database = DatabaseConfig{
		Path:         t.TempDir() + "/prospector.db",
		JournalMode:  "WAL",
		BusyTimeout:  5000,
		ConnMaxLife:  time.Hour,
		QueryTimeout: 30 * time.Second,
	}
	cfg.Logging = LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
	cfg.Server = ServerConfig{
		Host: "127.0.0.1",
		Port: 8080,
	}
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig(t).Validate())
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing github token",
			mutate:  func(c *Config) { c.GitHub.Token = "" },
			wantErr: "token cannot be empty",
		},
		{
			name:    "missing fork owner",
			mutate:  func(c *Config) { c.GitHub.ForkOwner = "" },
			wantErr: "fork owner cannot be empty",
		},
		{
			name:    "missing bot login",
			mutate:  func(c *Config) { c.GitHub.BotLogin = "" },
			wantErr: "bot login cannot be empty",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Anthropic.APIKey = "" },
			wantErr: "api key cannot be empty",
		},
		{
			name:    "zero max tokens",
			mutate:  func(c *Config) { c.Anthropic.MaxTokens = 0 },
			wantErr: "max_tokens must be positive",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetSet(t *testing.T) {
	original := globalConfig
	defer Set(original)

	Set(nil)
	_, err := Get()
	assert.Error(t, err)

	cfg := validConfig(t)
	Set(cfg)
	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PROSPECTOR_GITHUB_TOKEN", "ghp_env")
	t.Setenv("PROSPECTOR_GITHUB_FORK_OWNER", "acme-forks")
	t.Setenv("PROSPECTOR_SERVER_PORT", "9090")
	t.Setenv("PROSPECTOR_ANALYSIS_REQUIRE_EXPLANATIONS", "true")

	cfg, err := LoadFromEnv(t.TempDir(), "nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "ghp_env", cfg.GitHub.Token)
	assert.Equal(t, "acme-forks", cfg.GitHub.ForkOwner)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Analysis.RequireExplanations)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLogLevel("debug").String())
	assert.Equal(t, "WARN", ParseLogLevel("WARN").String())
	assert.Equal(t, "INFO", ParseLogLevel("unknown").String())
}
