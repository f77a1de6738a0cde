package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

type stubAnalysisRepo struct {
	record *analysis.PRAnalysis
}

func (s *stubAnalysisRepo) SaveLatest(ctx context.Context, a *analysis.PRAnalysis) error {
	s.record = a
	return nil
}

func (s *stubAnalysisRepo) GetLatestByPR(ctx context.Context, prID string) (*analysis.PRAnalysis, error) {
	if s.record == nil || s.record.PRID != prID {
		return nil, analysis.ErrAnalysisNotFound
	}
	return s.record, nil
}

func (s *stubAnalysisRepo) DeleteByPR(ctx context.Context, prID string) error { return nil }

func testServer(analysisRepo analysis.Repository) *Server {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
	}
	services := &Services{
		Analysis: analysis.NewService(nil, nil, nil, analysisRepo, nil, cfg, loggy.NewNoopLogger()),
	}
	return New(cfg, services, loggy.NewNoopLogger())
}

func TestGetAnalysisEndpoint(t *testing.T) {
	raw := []byte(`{
		"totalCommentsProcessed": 1,
		"meaningfulBugsCount": 1,
		"outreachReadyCount": 1,
		"bestBugForOutreachIndex": 0,
		"allComments": [{
			"index": 0,
			"filePath": "a.go",
			"lineNumber": 5,
			"category": "bug_high",
			"title": "off by one",
			"explanation": "loop bound is wrong",
			"explanationShort": null,
			"impactScenario": null,
			"codeSuggestion": null,
			"isMeaningfulBug": true,
			"outreachReady": true,
			"outreachSkipReason": null,
			"macroscopeCommentText": "the loop goes one past the end"
		}],
		"summary": {"bugsBySeverity": {"high": 1}, "recommendation": "reach out"}
	}`)

	repo := &stubAnalysisRepo{record: &analysis.PRAnalysis{
		ID:            "ana-01HTEST0000000000000000000",
		PRID:          "pr-01HTEST0000000000000000001",
		SchemaVersion: analysis.SchemaV2,
		Model:         "claude-3-7-sonnet-20250219",
		AnalysisJSON:  raw,
		CreatedAt:     time.Now(),
	}}

	srv := testServer(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/prs/pr-01HTEST0000000000000000001/analysis", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var view struct {
		SchemaVersion string          `json:"schema_version"`
		Result        json.RawMessage `json:"result"`
		LegacyResult  struct {
			MeaningfulBugsFound bool `json:"meaningfulBugsFound"`
			Bugs                []struct {
				Title           string `json:"title"`
				Severity        string `json:"severity"`
				IsMostImpactful bool   `json:"isMostImpactful"`
			} `json:"bugs"`
		} `json:"legacy_result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))

	assert.Equal(t, "v2", view.SchemaVersion)
	assert.JSONEq(t, string(raw), string(view.Result))

	// The legacy projection is derived on read
	assert.True(t, view.LegacyResult.MeaningfulBugsFound)
	require.Len(t, view.LegacyResult.Bugs, 1)
	assert.Equal(t, "off by one", view.LegacyResult.Bugs[0].Title)
	assert.Equal(t, "high", view.LegacyResult.Bugs[0].Severity)
	assert.True(t, view.LegacyResult.Bugs[0].IsMostImpactful)
}

func TestGetAnalysisNotFound(t *testing.T) {
	srv := testServer(&stubAnalysisRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/prs/pr-missing/analysis", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestWriteErrorMapping(t *testing.T) {
	srv := testServer(&stubAnalysisRepo{})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantField  string
	}{
		{
			name:       "validation error carries field and element index",
			err:        &analysis.ValidationError{Field: "allComments.title", Index: 2},
			wantStatus: http.StatusBadGateway,
			wantField:  "allComments.title",
		},
		{
			name:       "schema mismatch is a bad gateway",
			err:        analysis.ErrSchemaMismatch,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "no comments is a conflict",
			err:        analysis.ErrNoComments,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown errors are internal",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			srv.writeError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantField, resp.Field)
			if tt.wantField != "" {
				require.NotNil(t, resp.Index)
				assert.Equal(t, 2, *resp.Index)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(&stubAnalysisRepo{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}
