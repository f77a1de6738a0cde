package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

// defaultTriagePrompt is the built-in triage instruction, used when no
// stored prompt is active for the configured name.
const defaultTriagePrompt = `You are a senior engineer triaging automated code review comments on a pull request. For each review comment, decide whether it describes a real, meaningful bug (incorrect behavior, data loss, security issue, crash) or merely a style preference, nitpick, or suggestion.

Classify every comment into exactly one category:
- bug_critical: security vulnerabilities, data loss, crashes in common paths
- bug_high: incorrect behavior users will hit
- bug_medium: incorrect behavior in edge cases
- bug_low: minor correctness issues with limited impact
- suggestion: a reasonable improvement that is not a bug
- style: formatting and naming preferences
- nitpick: trivial remarks

A comment is outreach-ready when the bug is real, easy to explain to the repository's maintainer in two sentences, and does not require deep codebase context to verify.`

// outputRules pins the JSON response contract. It is appended to every
// triage prompt, including operator-edited ones stored in the database, so
// prompt edits cannot silently break the response schema.
const outputRules = `

OUTPUT RULES:
Respond with a single JSON object and nothing else. The object MUST have exactly these fields:

{
  "totalCommentsProcessed": <number of comments you were given>,
  "meaningfulBugsCount": <number of comments classified as a bug_* category with isMeaningfulBug true>,
  "outreachReadyCount": <number of comments with outreachReady true>,
  "bestBugForOutreachIndex": <the "index" value of the single best outreach candidate, or null if none>,
  "allComments": [
    {
      "index": <the comment's index as given in the input, starting at 0>,
      "filePath": "<file the comment is on>",
      "lineNumber": <line number or null>,
      "category": "bug_critical|bug_high|bug_medium|bug_low|suggestion|style|nitpick",
      "title": "<one-line summary of the finding>",
      "explanation": "<2-4 sentence explanation for bug_* categories, null otherwise>",
      "explanationShort": "<one-sentence version, null for non-bugs>",
      "impactScenario": "<concrete scenario where this bites, null for non-bugs>",
      "codeSuggestion": "<corrected code if obvious, otherwise null>",
      "isMeaningfulBug": <true only for real bugs>,
      "outreachReady": <true only if this bug alone would justify an email>,
      "outreachSkipReason": "<why this is not outreach material, null if outreachReady is true>"
    }
  ],
  "summary": {
    "bugsBySeverity": {"<severity>": <count>},
    "nonBugs": {"<category>": <count>},
    "recommendation": "<one or two sentences on whether and how to reach out>"
  }
}

Every element of allComments corresponds to exactly one input comment, referenced by its index. Do not invent comments, do not merge comments, and do not omit any. Use JSON null for unknown or inapplicable nullable fields, never empty strings.`

const triageUserTemplate = `Pull request #{{.Number}} "{{.Title}}" by {{.Author}} in {{.Owner}}/{{.Repo}} received {{len .Comments}} automated review comment(s).

{{range $i, $c := .Comments -}}
--- Comment {{$i}} (index {{$i}}) ---
File: {{$c.Path}}{{if $c.Line}}, line {{$c.Line}}{{end}}
{{- if $c.DiffHunk}}
Diff context:
{{$c.DiffHunk}}
{{- end}}
Comment:
{{$c.Body}}

{{end -}}
Triage every comment above.`

// Builder renders triage prompts, preferring the active stored prompt over
// the built-in default.
type Builder struct {
	repo       Repository
	promptName string
	logger     *loggy.Logger
	userTmpl   *template.Template
}

// NewBuilder creates a prompt builder. The repository may be nil, in which
// case only the built-in prompt is used.
func NewBuilder(repo Repository, cfg *config.Config, logger *loggy.Logger) *Builder {
	return &Builder{
		repo:       repo,
		promptName: cfg.Analysis.PromptName,
		logger:     logger,
		userTmpl:   template.Must(template.New("triage_user").Parse(triageUserTemplate)),
	}
}

// BuildTriagePrompt implements analysis.PromptBuilder. The system prompt is
// the active stored prompt body (or the built-in default) with the output
// rules appended; the user prompt lists the comments with their indexes.
func (b *Builder) BuildTriagePrompt(ctx context.Context, pr analysis.PRRef, comments []analysis.MacroscopeComment) (string, string, error) {
	system := defaultTriagePrompt

	if b.repo != nil {
		stored, err := b.repo.GetActive(ctx, b.promptName)
		switch {
		case err == nil:
			system = stored.Body
		case errors.Is(err, ErrPromptNotFound):
			b.logger.Debug("No active stored prompt, using built-in", "name", b.promptName)
		default:
			return "", "", fmt.Errorf("loading active prompt %q: %w", b.promptName, err)
		}
	}

	system += outputRules

	var buf bytes.Buffer
	err := b.userTmpl.Execute(&buf, struct {
		analysis.PRRef
		Comments []analysis.MacroscopeComment
	}{PRRef: pr, Comments: comments})
	if err != nil {
		return "", "", fmt.Errorf("rendering triage prompt: %w", err)
	}

	return system, buf.String(), nil
}
