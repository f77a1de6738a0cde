// Package app provides the application initialization and lifecycle management
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/database"
	"github.com/macroscopehq/prospector/internal/email"
	"github.com/macroscopehq/prospector/internal/fork"
	"github.com/macroscopehq/prospector/internal/github"
	"github.com/macroscopehq/prospector/internal/gitops"
	"github.com/macroscopehq/prospector/internal/llm"
	"github.com/macroscopehq/prospector/internal/loggy"
	"github.com/macroscopehq/prospector/internal/prompt"
	"github.com/macroscopehq/prospector/internal/server"
	"github.com/macroscopehq/prospector/internal/slack"
)

// App represents the application instance with its dependencies
type App struct {
	Config      *config.Config
	Forks       fork.Repository
	ForkService *fork.Service
	Analysis    *analysis.Service
	GitHub      *github.Service
	Prompts     prompt.Repository
	Composer    *email.Composer
	Emails      email.Repository
	Server      *server.Server
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing", "log_level", cfg.Logging.Level)

	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	app := initServices(cfg, db)
	loggy.Info("Application initialized successfully")
	return app, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices wires all application services
func initServices(cfg *config.Config, db *sql.DB) *App {
	logger := loggy.GetGlobalLogger()

	ghClient := github.NewClient(cfg, logger)
	ghService := github.NewService(ghClient, cfg, logger)
	gitService := gitops.NewService(cfg, logger)

	forkRepo := fork.NewSQLRepository(db, logger)
	forkService := fork.NewService(forkRepo, ghService, gitService, cfg, logger)

	promptRepo := prompt.NewSQLRepository(db, logger)
	promptBuilder := prompt.NewBuilder(promptRepo, cfg, logger)

	llmClient := llm.NewAnthropicClient(cfg.Anthropic, logger)

	// A nil *slack.Notifier must stay a nil interface
	var notifier analysis.Notifier
	if n := slack.NewNotifier(cfg, logger); n != nil {
		notifier = n
	}

	analysisRepo := analysis.NewSQLRepository(db, logger)
	analysisService := analysis.NewService(ghService, promptBuilder, llmClient, analysisRepo, notifier, cfg, logger)

	emailRepo := email.NewSQLRepository(db, logger)
	composer := email.NewComposer(emailRepo, llmClient, cfg, logger)

	srv := server.New(cfg, &server.Services{
		Forks:       forkRepo,
		ForkService: forkService,
		Analysis:    analysisService,
		GitHub:      ghService,
		Composer:    composer,
		Emails:      emailRepo,
		Prompts:     promptRepo,
	}, logger)

	return &App{
		Config:      cfg,
		Forks:       forkRepo,
		ForkService: forkService,
		Analysis:    analysisService,
		GitHub:      ghService,
		Prompts:     promptRepo,
		Composer:    composer,
		Emails:      emailRepo,
		Server:      srv,
	}
}

// Shutdown performs cleanup when the application is shutting down
func (a *App) Shutdown(ctx context.Context) error {
	loggy.Info("Application shutting down")

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			loggy.Error("Failed to shut down HTTP server", "error", err)
		}
	}

	if err := database.CloseDB(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// FromContext retrieves the app instance stored in the CLI metadata
func FromContext(c *cli.Context) (*App, error) {
	a, ok := c.App.Metadata["app"].(*App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}
