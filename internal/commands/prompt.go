package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/macroscopehq/prospector/internal/app"
	"github.com/macroscopehq/prospector/internal/utils"
)

// PromptCommand returns the CLI command for prompt template management
func PromptCommand() *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Manage versioned LLM prompt templates",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store a new prompt version from a file and activate it",
				ArgsUsage: "<name> <file>",
				Action:    promptSetAction,
			},
			{
				Name:      "list",
				Usage:     "List versions of a named prompt",
				ArgsUsage: "<name>",
				Action:    promptListAction,
			},
			{
				Name:      "activate",
				Usage:     "Activate a stored prompt version",
				ArgsUsage: "<prompt ID>",
				Action:    promptActivateAction,
			},
		},
	}
}

func promptSetAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 2 {
		return fmt.Errorf("expected prompt name and file path")
	}

	name := c.Args().Get(0)
	body, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("reading prompt file: %w", err)
	}

	p, err := application.Prompts.Create(c.Context, name, string(body))
	if err != nil {
		return err
	}

	utils.PrintSuccess(fmt.Sprintf("Stored %s version %d", p.Name, p.Version))
	utils.PrintKeyValue("ID", p.ID)
	return nil
}

func promptListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one prompt name")
	}

	prompts, err := application.Prompts.ListVersions(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	if len(prompts) == 0 {
		utils.PrintInfo("No stored versions, the built-in default is in use")
		return nil
	}

	t := utils.NewTable("ID", "Version", "Active", "Created")
	for _, p := range prompts {
		active := ""
		if p.IsActive {
			active = "yes"
		}
		t.AppendRow(table.Row{
			p.ID,
			p.Version,
			active,
			p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	return nil
}

func promptActivateAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one prompt ID")
	}

	id := c.Args().First()
	if err := application.Prompts.Activate(c.Context, id); err != nil {
		return err
	}

	utils.PrintSuccess(fmt.Sprintf("Activated prompt %s", id))
	return nil
}
