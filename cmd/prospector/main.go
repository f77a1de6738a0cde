package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/macroscopehq/prospector/internal/app"
	"github.com/macroscopehq/prospector/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:  "prospector",
		Usage: "Review-bot driven prospecting for open source repositories",
		Description: "Prospector forks upstream repositories, recreates their pull requests " +
			"so the review bot can comment, triages the bot's findings with an LLM, " +
			"and drafts outreach emails from the best bug it found.",
		Version: Version,
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Before: func(c *cli.Context) error {
			application, err := app.New()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			// Store the app instance in the context for later use
			c.App.Metadata = map[string]interface{}{
				"app": application,
			}

			return nil
		},
		After: func(c *cli.Context) error {
			if application, ok := c.App.Metadata["app"].(*app.App); ok {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return application.Shutdown(ctx)
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.ServeCommand(),
			commands.ForkCommand(),
			commands.AnalyzeCommand(),
			commands.EmailCommand(),
			commands.PromptCommand(),
			commands.MigrateCommand(),
			commands.InitCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
