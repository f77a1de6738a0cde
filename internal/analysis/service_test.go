package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/llm"
	"github.com/macroscopehq/prospector/internal/loggy"
)

type stubCommentSource struct {
	comments []MacroscopeComment
	err      error
}

func (s *stubCommentSource) ListBotReviewComments(ctx context.Context, owner, repo string, number int) ([]MacroscopeComment, error) {
	return s.comments, s.err
}

type stubPromptBuilder struct{}

func (stubPromptBuilder) BuildTriagePrompt(ctx context.Context, pr PRRef, comments []MacroscopeComment) (string, string, error) {
	return "triage system prompt", "triage user prompt", nil
}

type stubLLMClient struct {
	content string
	err     error
	lastReq llm.Request
}

func (s *stubLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, Model: "claude-test"}, nil
}

type stubAnalysisRepo struct {
	saved *PRAnalysis
}

func (s *stubAnalysisRepo) SaveLatest(ctx context.Context, a *PRAnalysis) error {
	s.saved = a
	return nil
}

func (s *stubAnalysisRepo) GetLatestByPR(ctx context.Context, prID string) (*PRAnalysis, error) {
	if s.saved == nil || s.saved.PRID != prID {
		return nil, ErrAnalysisNotFound
	}
	return s.saved, nil
}

func (s *stubAnalysisRepo) DeleteByPR(ctx context.Context, prID string) error {
	s.saved = nil
	return nil
}

type stubNotifier struct {
	called bool
	result *Result
}

func (s *stubNotifier) AnalysisCompleted(ctx context.Context, pr PRRef, result *Result) error {
	s.called = true
	s.result = result
	return nil
}

func newTestService(llmContent string, comments []MacroscopeComment) (*Service, *stubAnalysisRepo, *stubNotifier) {
	cfg := config.New()
	cfg.Anthropic.Model = "claude-test"

	repo := &stubAnalysisRepo{}
	notifier := &stubNotifier{}
	svc := NewService(
		&stubCommentSource{comments: comments},
		stubPromptBuilder{},
		&stubLLMClient{content: llmContent},
		repo,
		notifier,
		cfg,
		loggy.NewNoopLogger(),
	)
	return svc, repo, notifier
}

func testPRRef() PRRef {
	return PRRef{
		PRID:   "pr-01HTEST0000000000000000001",
		Owner:  "macroscope-prospects",
		Repo:   "widgets",
		Number: 7,
		Title:  "Fix cache eviction",
		Author: "octocat",
	}
}

func TestAnalyzePR(t *testing.T) {
	// Models wrap the payload in prose and fences despite instructions
	response := "Here is my triage:\n\n```json\n" + sampleV2 + "\n```\n"
	svc, repo, notifier := newTestService(response, testComments())

	result, err := svc.AnalyzePR(context.Background(), testPRRef())
	require.NoError(t, err)
	assert.Equal(t, SchemaV2, result.Version)

	require.NotNil(t, repo.saved)
	assert.Equal(t, "pr-01HTEST0000000000000000001", repo.saved.PRID)
	assert.Equal(t, SchemaV2, repo.saved.SchemaVersion)
	assert.Equal(t, "claude-test", repo.saved.Model)

	// The persisted blob is the post-backfill serialization, not the raw
	// model output
	saved := string(repo.saved.AnalysisJSON)
	assert.Contains(t, saved, `"macroscopeCommentText":"rows.Err() is never checked here"`)
	assert.Contains(t, saved, `"macroscopeCommentText":"this compares secrets with =="`)

	decoded, err := repo.saved.Decode()
	require.NoError(t, err)
	assert.Equal(t, SchemaV2, decoded.Version)
	assert.Equal(t, "rows.Err() is never checked here", decoded.V2.AllComments[0].MacroscopeCommentText)

	assert.True(t, notifier.called)
	assert.Equal(t, result, notifier.result)
}

func TestAnalyzePRNoComments(t *testing.T) {
	svc, repo, notifier := newTestService(sampleV2, nil)

	_, err := svc.AnalyzePR(context.Background(), testPRRef())
	assert.ErrorIs(t, err, ErrNoComments)
	assert.Nil(t, repo.saved)
	assert.False(t, notifier.called)
}

func TestAnalyzePRCommentFetchError(t *testing.T) {
	cfg := config.New()
	repo := &stubAnalysisRepo{}
	svc := NewService(
		&stubCommentSource{err: errors.New("boom")},
		stubPromptBuilder{},
		&stubLLMClient{},
		repo,
		nil,
		cfg,
		loggy.NewNoopLogger(),
	)

	_, err := svc.AnalyzePR(context.Background(), testPRRef())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing bot review comments")
	assert.Nil(t, repo.saved)
}

func TestAnalyzePRUnrecognizedResponse(t *testing.T) {
	svc, repo, _ := newTestService(`{"hello": "world"}`, testComments())

	_, err := svc.AnalyzePR(context.Background(), testPRRef())
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Nil(t, repo.saved)
}

func TestAnalyzePRSkipsNotifyWithoutOutreach(t *testing.T) {
	const noOutreach = `{
		"totalCommentsProcessed": 1,
		"meaningfulBugsCount": 1,
		"outreachReadyCount": 0,
		"bestBugForOutreachIndex": null,
		"allComments": [
			{
				"index": 0,
				"filePath": "a.go",
				"lineNumber": 1,
				"category": "bug_low",
				"title": "Minor off-by-one in log message",
				"explanation": null,
				"explanationShort": null,
				"impactScenario": null,
				"codeSuggestion": null,
				"isMeaningfulBug": true,
				"outreachReady": false,
				"outreachSkipReason": "too minor to lead with"
			}
		],
		"summary": {"bugsBySeverity": {"low": 1}, "recommendation": "Not worth an email."}
	}`

	svc, repo, notifier := newTestService(noOutreach, testComments()[:1])

	result, err := svc.AnalyzePR(context.Background(), testPRRef())
	require.NoError(t, err)

	// The analysis is persisted either way; only the webhook is skipped
	assert.NotNil(t, repo.saved)
	assert.False(t, result.HasOutreachReady())
	assert.False(t, notifier.called)
}

func TestAnalyzePRNotifiesOnLegacySchema(t *testing.T) {
	svc, repo, notifier := newTestService(sampleV1, testComments())

	result, err := svc.AnalyzePR(context.Background(), testPRRef())
	require.NoError(t, err)
	assert.Equal(t, SchemaV1, result.Version)
	assert.Equal(t, SchemaV1, repo.saved.SchemaVersion)
	assert.True(t, notifier.called)
}

func TestGetLatestRoundTrip(t *testing.T) {
	svc, _, _ := newTestService("```json\n"+sampleV2+"\n```", testComments())
	ref := testPRRef()

	_, err := svc.AnalyzePR(context.Background(), ref)
	require.NoError(t, err)

	record, result, err := svc.GetLatest(context.Background(), ref.PRID)
	require.NoError(t, err)
	assert.Equal(t, ref.PRID, record.PRID)
	assert.Equal(t, SchemaV2, result.Version)
	assert.Equal(t, 2, result.V2.MeaningfulBugsCount)

	_, _, err = svc.GetLatest(context.Background(), "pr-unknown")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}
