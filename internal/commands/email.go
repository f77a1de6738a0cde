package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/macroscopehq/prospector/internal/app"
	"github.com/macroscopehq/prospector/internal/email"
	"github.com/macroscopehq/prospector/internal/fork"
	"github.com/macroscopehq/prospector/internal/utils"
)

// EmailCommand returns the CLI command for outreach email drafts
func EmailCommand() *cli.Command {
	return &cli.Command{
		Name:  "email",
		Usage: "Manage outreach email drafts",
		Subcommands: []*cli.Command{
			{
				Name:      "compose",
				Usage:     "Draft an outreach email from a PR's latest analysis",
				ArgsUsage: "<tracked PR ID>",
				Action:    emailComposeAction,
			},
			{
				Name:      "list",
				Usage:     "List email drafts for a tracked PR",
				ArgsUsage: "<tracked PR ID>",
				Action:    emailListAction,
			},
			{
				Name:      "show",
				Usage:     "Show an email draft",
				ArgsUsage: "<email ID>",
				Action:    emailShowAction,
			},
			{
				Name:      "sent",
				Usage:     "Mark an email draft as sent",
				ArgsUsage: "<email ID>",
				Action:    emailSentAction,
			},
		},
	}
}

func emailComposeAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one tracked PR ID")
	}

	pr, err := application.Forks.GetPRByID(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	f, err := application.Forks.GetForkByID(c.Context, pr.ForkID)
	if err != nil {
		return err
	}

	_, result, err := application.Analysis.GetLatest(c.Context, pr.ID)
	if err != nil {
		return err
	}

	draft, err := application.Composer.Compose(c.Context, email.ComposeInput{
		PRID:         pr.ID,
		RepoFullName: f.UpstreamFullName(),
		PRNumber:     pr.UpstreamNumber,
		PRTitle:      pr.Title,
		Author:       pr.Author,
	}, result)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Compose failed: %s", err))
		return err
	}

	if err := application.ForkService.MarkStatus(c.Context, pr.ID, fork.PRStatusEmailed); err != nil {
		utils.PrintWarning(fmt.Sprintf("Could not update PR status: %s", err))
	}

	utils.PrintSuccess(fmt.Sprintf("Draft created: %s", draft.ID))
	printDraft(draft)
	return nil
}

func emailListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one tracked PR ID")
	}

	drafts, err := application.Emails.ListByPR(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	if len(drafts) == 0 {
		utils.PrintInfo("No email drafts yet")
		return nil
	}

	t := utils.NewTable("ID", "Subject", "Status", "Created")
	for _, d := range drafts {
		t.AppendRow(table.Row{
			d.ID,
			text.Trim(d.Subject, 60),
			string(d.Status),
			d.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	return nil
}

func emailShowAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one email ID")
	}

	draft, err := application.Emails.GetByID(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	printDraft(draft)
	return nil
}

func emailSentAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one email ID")
	}

	id := c.Args().First()
	if err := application.Emails.UpdateStatus(c.Context, id, email.StatusSent); err != nil {
		return err
	}

	utils.PrintSuccess(fmt.Sprintf("Marked %s as sent", id))
	return nil
}

func printDraft(d *email.Draft) {
	utils.PrintKeyValue("Subject", d.Subject)
	utils.PrintKeyValue("Status", string(d.Status))
	renderMarkdown(d.Body)
}
