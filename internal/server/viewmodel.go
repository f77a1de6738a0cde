package server

import (
	"encoding/json"
	"time"

	"github.com/macroscopehq/prospector/internal/analysis"
)

// commentView is the API shape of a bot review comment. The markdown body
// is rendered to sanitized HTML; the raw body is kept for consumers that
// do their own rendering.
type commentView struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Line      *int      `json:"line"`
	Body      string    `json:"body"`
	BodyHTML  string    `json:"body_html"`
	DiffHunk  string    `json:"diff_hunk,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newCommentView(c analysis.MacroscopeComment) commentView {
	return commentView{
		ID:        c.ID,
		Path:      c.Path,
		Line:      c.Line,
		Body:      c.Body,
		BodyHTML:  renderMarkdown(c.Body),
		DiffHunk:  c.DiffHunk,
		CreatedAt: c.CreatedAt,
	}
}

// analysisView is the API shape of a stored analysis. Result is the
// schema-tagged payload as persisted; LegacyResult is the V1 projection,
// present for both schemas so older consumers have a stable shape.
type analysisView struct {
	ID            string                       `json:"id"`
	PRID          string                       `json:"pr_id"`
	SchemaVersion analysis.SchemaVersion       `json:"schema_version"`
	Model         string                       `json:"model,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
	Result        json.RawMessage              `json:"result"`
	LegacyResult  *analysis.PRAnalysisResultV1 `json:"legacy_result"`
}

func newAnalysisView(record *analysis.PRAnalysis, result *analysis.Result) analysisView {
	view := analysisView{
		ID:            record.ID,
		PRID:          record.PRID,
		SchemaVersion: record.SchemaVersion,
		Model:         record.Model,
		CreatedAt:     record.CreatedAt,
		Result:        json.RawMessage(record.AnalysisJSON),
	}

	switch result.Version {
	case analysis.SchemaV2:
		view.LegacyResult = result.V2.ToV1()
	case analysis.SchemaV1:
		view.LegacyResult = result.V1
	}

	return view
}
