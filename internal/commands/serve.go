// Package commands defines the CLI commands for the prospector binary.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/macroscopehq/prospector/internal/app"
	"github.com/macroscopehq/prospector/internal/utils"
)

// ServeCommand returns the CLI command that runs the HTTP API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard API server",
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			utils.PrintInfo(fmt.Sprintf("Starting API server on %s:%d",
				application.Config.Server.Host, application.Config.Server.Port))

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.Server.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				utils.PrintInfo(fmt.Sprintf("Received %s, shutting down", sig))
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return application.Server.Shutdown(ctx)
		},
	}
}
