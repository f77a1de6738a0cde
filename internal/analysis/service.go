package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/llm"
	"github.com/macroscopehq/prospector/internal/loggy"
	"github.com/macroscopehq/prospector/internal/ulid"
)

// ErrNoComments is returned when the recreated PR carries no bot review
// comments, meaning there is nothing to triage.
var ErrNoComments = errors.New("no bot review comments to analyze")

// PRRef identifies the PR being analyzed plus the metadata the prompt needs.
type PRRef struct {
	PRID   string
	Owner  string
	Repo   string
	Number int
	Title  string
	Author string
}

// CommentSource fetches the bot-authored review comments for a PR.
type CommentSource interface {
	ListBotReviewComments(ctx context.Context, owner, repo string, number int) ([]MacroscopeComment, error)
}

// PromptBuilder renders the triage prompt for a set of review comments.
type PromptBuilder interface {
	BuildTriagePrompt(ctx context.Context, pr PRRef, comments []MacroscopeComment) (system string, user string, err error)
}

// Notifier receives completed analyses that contain outreach-ready
// findings. Implementations must treat delivery as best effort; the
// service never fails a request on a notification error.
type Notifier interface {
	AnalysisCompleted(ctx context.Context, pr PRRef, result *Result) error
}

// Service runs the full triage pipeline: fetch comments, prompt the LLM,
// normalize the response, backfill comment text, and persist the result.
type Service struct {
	comments  CommentSource
	prompts   PromptBuilder
	llmClient llm.Client
	repo      Repository
	notifier  Notifier
	validator Validator
	model     string
	logger    *loggy.Logger
}

// NewService creates a new analysis service. The notifier may be nil.
func NewService(
	comments CommentSource,
	prompts PromptBuilder,
	llmClient llm.Client,
	repo Repository,
	notifier Notifier,
	cfg *config.Config,
	logger *loggy.Logger,
) *Service {
	return &Service{
		comments:  comments,
		prompts:   prompts,
		llmClient: llmClient,
		repo:      repo,
		notifier:  notifier,
		validator: Validator{RequireExplanations: cfg.Analysis.RequireExplanations},
		model:     cfg.Anthropic.Model,
		logger:    logger,
	}
}

// AnalyzePR triages the bot comments on a PR and stores the result as the
// PR's latest analysis, replacing any previous one.
func (s *Service) AnalyzePR(ctx context.Context, pr PRRef) (*Result, error) {
	comments, err := s.comments.ListBotReviewComments(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("listing bot review comments: %w", err)
	}
	if len(comments) == 0 {
		return nil, ErrNoComments
	}

	s.logger.Info("Analyzing PR",
		"pr_id", pr.PRID,
		"repo", pr.Owner+"/"+pr.Repo,
		"number", pr.Number,
		"comments", len(comments),
	)

	system, user, err := s.prompts.BuildTriagePrompt(ctx, pr, comments)
	if err != nil {
		return nil, fmt.Errorf("building triage prompt: %w", err)
	}

	resp, err := s.llmClient.Complete(ctx, llm.Request{
		Model:  s.model,
		System: system,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completing triage request: %w", err)
	}

	result, raw, err := s.normalize(resp.Content, comments)
	if err != nil {
		return nil, err
	}

	record := &PRAnalysis{
		ID:            ulid.AnalysisID(),
		PRID:          pr.PRID,
		SchemaVersion: result.Version,
		Model:         resp.Model,
		AnalysisJSON:  raw,
	}
	if err := s.repo.SaveLatest(ctx, record); err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	if s.notifier != nil && result.HasOutreachReady() {
		if err := s.notifier.AnalysisCompleted(ctx, pr, result); err != nil {
			s.logger.Warn("Analysis notification failed", "pr_id", pr.PRID, "error", err)
		}
	}

	return result, nil
}

// normalize extracts, validates and backfills the LLM response, returning
// the decoded result and the exact bytes to persist.
func (s *Service) normalize(content string, comments []MacroscopeComment) (*Result, []byte, error) {
	jsonContent, err := ExtractJSON(content)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting JSON from response: %w", err)
	}

	result, err := s.validator.Decode([]byte(jsonContent))
	if err != nil {
		return nil, nil, err
	}

	if result.Version == SchemaV2 {
		result.V2 = Backfill(result.V2, comments)
	}

	raw, err := marshalResult(result)
	if err != nil {
		return nil, nil, err
	}

	return result, raw, nil
}

func marshalResult(r *Result) ([]byte, error) {
	var payload any
	switch r.Version {
	case SchemaV2:
		payload = r.V2
	default:
		payload = r.V1
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializing analysis result: %w", err)
	}
	return raw, nil
}

// GetLatest returns the stored latest analysis for a PR, decoded.
func (s *Service) GetLatest(ctx context.Context, prID string) (*PRAnalysis, *Result, error) {
	record, err := s.repo.GetLatestByPR(ctx, prID)
	if err != nil {
		return nil, nil, err
	}

	result, err := record.Decode()
	if err != nil {
		return nil, nil, fmt.Errorf("decoding stored analysis %s: %w", record.ID, err)
	}

	return record, result, nil
}
