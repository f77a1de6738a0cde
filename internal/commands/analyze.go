package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/app"
	"github.com/macroscopehq/prospector/internal/fork"
	"github.com/macroscopehq/prospector/internal/utils"
)

// AnalyzeCommand returns the CLI command that triages a tracked PR
func AnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run LLM triage on a tracked PR's bot comments",
		ArgsUsage: "<tracked PR ID>",
		Action:    analyzeAction,
	}
}

func analyzeAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one tracked PR ID")
	}
	prID := c.Args().First()

	pr, err := application.Forks.GetPRByID(c.Context, prID)
	if err != nil {
		return err
	}
	f, err := application.Forks.GetForkByID(c.Context, pr.ForkID)
	if err != nil {
		return err
	}

	utils.PrintInfo(fmt.Sprintf("Analyzing %s#%d", f.ForkFullName(), pr.ForkNumber))

	result, err := application.Analysis.AnalyzePR(c.Context, analysis.PRRef{
		PRID:   pr.ID,
		Owner:  f.ForkOwner,
		Repo:   f.ForkRepo,
		Number: pr.ForkNumber,
		Title:  pr.Title,
		Author: pr.Author,
	})
	if err != nil {
		utils.PrintError(fmt.Sprintf("Analysis failed: %s", err))
		return err
	}

	if err := application.ForkService.MarkStatus(c.Context, pr.ID, fork.PRStatusAnalyzed); err != nil {
		utils.PrintWarning(fmt.Sprintf("Could not update PR status: %s", err))
	}

	printResult(result)
	return nil
}

var severityColors = map[analysis.Category]*color.Color{
	analysis.CategoryBugCritical: color.New(color.FgRed, color.Bold),
	analysis.CategoryBugHigh:     color.New(color.FgRed),
	analysis.CategoryBugMedium:   color.New(color.FgYellow),
	analysis.CategoryBugLow:      color.New(color.FgYellow, color.Faint),
}

func printResult(result *analysis.Result) {
	if !result.HasMeaningfulBugs() {
		utils.PrintWarning("No meaningful bugs found")
		if result.Version == analysis.SchemaV1 && result.V1.Reason != "" {
			utils.PrintKeyValue("Reason", result.V1.Reason)
		}
		if result.Version == analysis.SchemaV2 {
			utils.PrintKeyValue("Recommendation", result.V2.Summary.Recommendation)
		}
		return
	}

	switch result.Version {
	case analysis.SchemaV2:
		printV2(result.V2)
	case analysis.SchemaV1:
		printV1(result.V1)
	}
}

func printV2(v2 *analysis.PRAnalysisResultV2) {
	utils.PrintSuccess(fmt.Sprintf("%d meaningful bug(s), %d outreach-ready",
		v2.MeaningfulBugsCount, v2.OutreachReadyCount))

	var md strings.Builder
	for _, bug := range v2.MeaningfulBugsSorted() {
		label := severityLabel(bug.Category)
		marker := ""
		if best := v2.BestBugForOutreach(); best != nil && best.Index == bug.Index {
			marker = " (best outreach candidate)"
		}

		fmt.Printf("%s %s%s\n", label, bug.Title, marker)
		location := bug.FilePath
		if bug.LineNumber != nil {
			location = fmt.Sprintf("%s:%d", bug.FilePath, *bug.LineNumber)
		}
		utils.PrintKeyValue("  at", location)

		if bug.Explanation != nil && *bug.Explanation != "" {
			md.WriteString(fmt.Sprintf("### %s\n\n%s\n\n", bug.Title, *bug.Explanation))
		}
	}

	md.WriteString(fmt.Sprintf("---\n\n**Recommendation:** %s\n", v2.Summary.Recommendation))
	renderMarkdown(md.String())
}

func printV1(v1 *analysis.PRAnalysisResultV1) {
	utils.PrintSuccess(fmt.Sprintf("%d meaningful bug(s)", len(v1.Bugs)))

	for _, bug := range v1.Bugs {
		label := severityLabel(analysis.Category("bug_" + bug.Severity))
		marker := ""
		if bug.IsMostImpactful {
			marker = " (most impactful)"
		}
		fmt.Printf("%s %s%s\n", label, bug.Title, marker)
		utils.PrintKeyValue("  at", bug.FilePath)
	}
}

func severityLabel(c analysis.Category) string {
	label := "[" + strings.TrimPrefix(string(c), "bug_") + "]"
	if col, ok := severityColors[c]; ok {
		return col.Sprint(label)
	}
	return label
}

// renderMarkdown pretty-prints markdown to the terminal, falling back to
// raw text when the renderer cannot be built
func renderMarkdown(md string) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Println(md)
		return
	}

	out, err := r.Render(md)
	if err != nil {
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}
