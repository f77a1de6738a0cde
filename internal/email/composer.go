package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/template"

	enry "github.com/go-enry/go-enry/v2"
	"github.com/tidwall/gjson"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/llm"
	"github.com/macroscopehq/prospector/internal/loggy"
	"github.com/macroscopehq/prospector/internal/ulid"
)

// ErrNoOutreachBug is returned when the analysis picked no bug worth an
// email, so there is nothing to compose.
var ErrNoOutreachBug = errors.New("analysis has no outreach-ready bug")

const composeSystemPrompt = `You write short, technical cold outreach emails for a developer tool. The recipient is a maintainer or contributor of an open source repository. The email's hook is a specific real bug our code review tool found in one of their recent pull requests.

Rules:
- At most 120 words in the body.
- Lead with the bug, not the product.
- Plain text, no markdown, no bullet lists.
- One sentence about the product at the end, no pricing, no feature list.
- No false urgency, no flattery, no "I hope this finds you well".

Respond with a single JSON object: {"subject": "...", "body": "..."}`

const composeUserTemplate = `Repository: {{.RepoFullName}}
Pull request: #{{.PRNumber}} "{{.PRTitle}}" by {{.Author}}
{{if .Language}}Primary language of the affected file: {{.Language}}
{{end -}}
Bug found by the review tool:
  Title: {{.Bug.Title}}
  File: {{.Bug.FilePath}}{{if .Bug.LineNumber}} line {{.Bug.LineNumber}}{{end}}
  Severity category: {{.Bug.Category}}
{{- if .Explanation}}
  Explanation: {{.Explanation}}
{{- end}}
{{- if .Bug.ImpactScenario}}
  Impact: {{deref .Bug.ImpactScenario}}
{{- end}}

Sender: {{.SenderName}} at {{.SenderCompany}}. The product is {{.ProductName}}.

Write the outreach email.`

// ComposeInput carries everything the composer needs about the target PR
type ComposeInput struct {
	PRID         string
	RepoFullName string
	PRNumber     int
	PRTitle      string
	Author       string
}

// Composer drafts outreach emails with the LLM and stores them
type Composer struct {
	repo      Repository
	llmClient llm.Client
	outreach  config.OutreachConfig
	model     string
	logger    *loggy.Logger
	userTmpl  *template.Template
}

// NewComposer creates a new email composer
func NewComposer(repo Repository, llmClient llm.Client, cfg *config.Config, logger *loggy.Logger) *Composer {
	tmpl := template.New("compose_user").Funcs(template.FuncMap{
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	})

	return &Composer{
		repo:      repo,
		llmClient: llmClient,
		outreach:  cfg.Outreach,
		model:     cfg.Anthropic.Model,
		logger:    logger,
		userTmpl:  template.Must(tmpl.Parse(composeUserTemplate)),
	}
}

// Compose drafts an outreach email for the best bug of an analysis result
// and stores it. Fails with ErrNoOutreachBug when the analysis picked no
// outreach candidate.
func (c *Composer) Compose(ctx context.Context, in ComposeInput, result *analysis.Result) (*Draft, error) {
	bug, explanation := pickBug(result)
	if bug == nil {
		return nil, ErrNoOutreachBug
	}

	user, err := c.renderUserPrompt(in, bug, explanation)
	if err != nil {
		return nil, err
	}

	resp, err := c.llmClient.Complete(ctx, llm.Request{
		Model:  c.model,
		System: composeSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completing email request: %w", err)
	}

	subject, body, err := parseEmailResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	draft := &Draft{
		ID:      ulid.EmailID(),
		PRID:    in.PRID,
		Subject: subject,
		Body:    body,
		Status:  StatusDraft,
	}
	if err := c.repo.Create(ctx, draft); err != nil {
		return nil, err
	}

	return draft, nil
}

func (c *Composer) renderUserPrompt(in ComposeInput, bug *analysis.AnalysisComment, explanation string) (string, error) {
	language := enry.GetLanguage(filepath.Base(bug.FilePath), nil)

	var buf bytes.Buffer
	err := c.userTmpl.Execute(&buf, struct {
		RepoFullName  string
		PRNumber      int
		PRTitle       string
		Author        string
		Language      string
		Bug           *analysis.AnalysisComment
		Explanation   string
		SenderName    string
		SenderCompany string
		ProductName   string
	}{
		RepoFullName:  in.RepoFullName,
		PRNumber:      in.PRNumber,
		PRTitle:       in.PRTitle,
		Author:        in.Author,
		Language:      language,
		Bug:           bug,
		Explanation:   explanation,
		SenderName:    c.outreach.SenderName,
		SenderCompany: c.outreach.SenderCompany,
		ProductName:   c.outreach.ProductName,
	})
	if err != nil {
		return "", fmt.Errorf("rendering email prompt: %w", err)
	}

	return buf.String(), nil
}

// pickBug selects the outreach bug from either schema. V2 uses the
// model's explicit pick; V1 prefers the bug flagged most impactful and
// falls back to the first one.
func pickBug(result *analysis.Result) (*analysis.AnalysisComment, string) {
	switch result.Version {
	case analysis.SchemaV2:
		best := result.V2.BestBugForOutreach()
		if best == nil {
			return nil, ""
		}
		explanation := ""
		if best.Explanation != nil {
			explanation = *best.Explanation
		} else if best.ExplanationShort != nil {
			explanation = *best.ExplanationShort
		}
		return best, explanation

	case analysis.SchemaV1:
		if !result.V1.MeaningfulBugsFound || len(result.V1.Bugs) == 0 {
			return nil, ""
		}
		chosen := result.V1.Bugs[0]
		for _, b := range result.V1.Bugs {
			if b.IsMostImpactful {
				chosen = b
				break
			}
		}
		return &analysis.AnalysisComment{
			FilePath:       chosen.FilePath,
			LineNumber:     chosen.LineNumber,
			Category:       analysis.Category("bug_" + chosen.Severity),
			Title:          chosen.Title,
			CodeSuggestion: chosen.CodeSuggestion,
		}, chosen.Explanation
	}

	return nil, ""
}

func parseEmailResponse(content string) (subject, body string, err error) {
	jsonContent, err := analysis.ExtractJSON(content)
	if err != nil {
		return "", "", fmt.Errorf("extracting email JSON: %w", err)
	}

	root := gjson.Parse(jsonContent)
	subject = root.Get("subject").String()
	body = root.Get("body").String()
	if subject == "" || body == "" {
		return "", "", fmt.Errorf("email response missing subject or body")
	}

	return subject, body, nil
}
