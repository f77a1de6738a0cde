package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/macroscopehq/prospector/internal/app"
	"github.com/macroscopehq/prospector/internal/github"
	"github.com/macroscopehq/prospector/internal/utils"
)

// ForkCommand returns the CLI command for fork management
func ForkCommand() *cli.Command {
	return &cli.Command{
		Name:  "fork",
		Usage: "Manage forks of prospect repositories",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Fork an upstream repository",
				ArgsUsage: "<repo URL or owner/repo>",
				Action:    forkCreateAction,
			},
			{
				Name:   "list",
				Usage:  "List tracked forks",
				Action: forkListAction,
			},
			{
				Name:      "track",
				Usage:     "Recreate an upstream PR on its fork",
				ArgsUsage: "<fork ID> <upstream PR number>",
				Action:    forkTrackAction,
			},
		},
	}
}

func forkCreateAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one repository argument")
	}

	owner, repo, err := github.ParseRepoURL(c.Args().First())
	if err != nil {
		return err
	}

	utils.PrintInfo(fmt.Sprintf("Forking %s/%s", owner, repo))

	f, err := application.ForkService.EnsureFork(c.Context, owner, repo)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Fork failed: %s", err))
		return err
	}

	utils.PrintSuccess(fmt.Sprintf("Fork ready: %s", f.ForkFullName()))
	utils.PrintKeyValue("ID", f.ID)
	utils.PrintKeyValue("URL", f.HTMLURL)
	return nil
}

func forkListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	forks, err := application.Forks.ListForks(c.Context)
	if err != nil {
		return err
	}

	if len(forks) == 0 {
		utils.PrintInfo("No forks yet")
		return nil
	}

	t := utils.NewTable("ID", "Upstream", "Fork", "Status", "Created")
	for _, f := range forks {
		t.AppendRow(table.Row{
			f.ID,
			f.UpstreamFullName(),
			f.ForkFullName(),
			string(f.Status),
			f.CreatedAt.Format("2006-01-02"),
		})
	}
	t.Render()
	return nil
}

func forkTrackAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 2 {
		return fmt.Errorf("expected fork ID and upstream PR number")
	}

	forkID := c.Args().Get(0)
	var number int
	if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &number); err != nil || number <= 0 {
		return fmt.Errorf("invalid PR number %q", c.Args().Get(1))
	}

	f, err := application.Forks.GetForkByID(c.Context, forkID)
	if err != nil {
		return err
	}

	utils.PrintInfo(fmt.Sprintf("Recreating %s#%d on %s", f.UpstreamFullName(), number, f.ForkFullName()))

	pr, err := application.ForkService.RecreatePR(c.Context, f, number)
	if err != nil {
		utils.PrintError(fmt.Sprintf("PR recreation failed: %s", err))
		return err
	}

	utils.PrintSuccess(fmt.Sprintf("Recreated as %s#%d", f.ForkFullName(), pr.ForkNumber))
	utils.PrintKeyValue("ID", pr.ID)
	utils.PrintKeyValue("URL", pr.HTMLURL)
	return nil
}
