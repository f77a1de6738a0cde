// Package analysis turns raw review-bot comments into triaged,
// outreach-ready bug findings via an LLM, and normalizes the two response
// schemas the model is known to emit.
package analysis

import (
	"sort"
	"time"
)

// SchemaVersion identifies which response schema an LLM result matched.
type SchemaVersion string

const (
	// SchemaV1 is the legacy flat response shape
	SchemaV1 SchemaVersion = "v1"
	// SchemaV2 is the current per-comment response shape
	SchemaV2 SchemaVersion = "v2"
)

// Category classifies a single triaged comment.
type Category string

const (
	CategoryBugCritical Category = "bug_critical"
	CategoryBugHigh     Category = "bug_high"
	CategoryBugMedium   Category = "bug_medium"
	CategoryBugLow      Category = "bug_low"
	CategorySuggestion  Category = "suggestion"
	CategoryStyle       Category = "style"
	CategoryNitpick     Category = "nitpick"
)

// Rank returns the sort rank of a category, lower is more severe.
// Unknown categories sort last.
func (c Category) Rank() int {
	switch c {
	case CategoryBugCritical:
		return 0
	case CategoryBugHigh:
		return 1
	case CategoryBugMedium:
		return 2
	case CategoryBugLow:
		return 3
	case CategorySuggestion:
		return 4
	case CategoryStyle:
		return 5
	case CategoryNitpick:
		return 6
	default:
		return 7
	}
}

// CollapseSeverity maps a V2 category onto the restricted V1 severity set.
// Unknown categories collapse to medium rather than failing.
func CollapseSeverity(c Category) string {
	switch c {
	case CategoryBugCritical:
		return "critical"
	case CategoryBugHigh:
		return "high"
	case CategoryBugMedium, CategoryBugLow:
		return "medium"
	default:
		return "medium"
	}
}

// MacroscopeComment is one bot-authored review comment fetched from the
// recreated PR. Immutable once fetched.
type MacroscopeComment struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Line      *int      `json:"line"`
	Body      string    `json:"body"`
	DiffHunk  string    `json:"diffHunk"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalysisComment is one LLM-triaged finding derived from exactly one
// MacroscopeComment, referenced by position in the original comment list.
// The five nullable fields are pointers without omitempty so they serialize
// as explicit nulls.
type AnalysisComment struct {
	Index                 int      `json:"index"`
	FilePath              string   `json:"filePath"`
	LineNumber            *int     `json:"lineNumber"`
	Category              Category `json:"category"`
	Title                 string   `json:"title"`
	Explanation           *string  `json:"explanation"`
	ExplanationShort      *string  `json:"explanationShort"`
	ImpactScenario        *string  `json:"impactScenario"`
	CodeSuggestion        *string  `json:"codeSuggestion"`
	IsMeaningfulBug       bool     `json:"isMeaningfulBug"`
	OutreachReady         bool     `json:"outreachReady"`
	OutreachSkipReason    *string  `json:"outreachSkipReason"`
	MacroscopeCommentText string   `json:"macroscopeCommentText"`
}

// AnalysisSummary aggregates counts by severity/type plus a free-text
// recommendation.
type AnalysisSummary struct {
	BugsBySeverity map[string]int `json:"bugsBySeverity"`
	NonBugs        map[string]int `json:"nonBugs,omitempty"`
	Recommendation string         `json:"recommendation"`
}

// PRAnalysisResultV2 is the current response shape.
type PRAnalysisResultV2 struct {
	TotalCommentsProcessed  int               `json:"totalCommentsProcessed"`
	MeaningfulBugsCount     int               `json:"meaningfulBugsCount"`
	OutreachReadyCount      int               `json:"outreachReadyCount"`
	BestBugForOutreachIndex *int              `json:"bestBugForOutreachIndex"`
	AllComments             []AnalysisComment `json:"allComments"`
	Summary                 AnalysisSummary   `json:"summary"`
}

// BugSnippet is the flattened V1 representation of a meaningful bug.
type BugSnippet struct {
	Title           string  `json:"title"`
	Explanation     string  `json:"explanation"`
	FilePath        string  `json:"filePath"`
	LineNumber      *int    `json:"lineNumber,omitempty"`
	Severity        string  `json:"severity"`
	CodeSuggestion  *string `json:"codeSuggestion,omitempty"`
	IsMostImpactful bool    `json:"isMostImpactful"`
}

// PRAnalysisResultV1 is the legacy response shape.
type PRAnalysisResultV1 struct {
	MeaningfulBugsFound      bool         `json:"meaningfulBugsFound"`
	Reason                   string       `json:"reason,omitempty"`
	Bugs                     []BugSnippet `json:"bugs,omitempty"`
	TotalMacroscopeBugsFound int          `json:"totalMacroscopeBugsFound,omitempty"`
}

// Result is the tagged union of the two schemas. Exactly one of V1/V2 is
// set, matching Version.
type Result struct {
	Version SchemaVersion
	V1      *PRAnalysisResultV1
	V2      *PRAnalysisResultV2
}

// HasMeaningfulBugs reports whether the result contains at least one
// meaningful bug, branching on schema.
func (r *Result) HasMeaningfulBugs() bool {
	switch r.Version {
	case SchemaV2:
		return r.V2 != nil && r.V2.MeaningfulBugsCount > 0
	case SchemaV1:
		return r.V1 != nil && r.V1.MeaningfulBugsFound
	default:
		return false
	}
}

// HasOutreachReady reports whether the result contains at least one
// finding worth an outreach email. The legacy schema has no per-comment
// outreach flag, so any meaningful bug qualifies.
func (r *Result) HasOutreachReady() bool {
	switch r.Version {
	case SchemaV2:
		return r.V2 != nil && r.V2.OutreachReadyCount > 0
	case SchemaV1:
		return r.V1 != nil && r.V1.MeaningfulBugsFound
	default:
		return false
	}
}

// BestBugForOutreach returns the comment whose index matches
// bestBugForOutreachIndex, or nil when the index is null or does not
// resolve. Lookup is by the index field, not array position, to tolerate
// index drift.
func (v2 *PRAnalysisResultV2) BestBugForOutreach() *AnalysisComment {
	if v2.BestBugForOutreachIndex == nil {
		return nil
	}
	want := *v2.BestBugForOutreachIndex
	for i := range v2.AllComments {
		if v2.AllComments[i].Index == want {
			return &v2.AllComments[i]
		}
	}
	return nil
}

// MeaningfulBugsSorted returns the meaningful bugs ordered by severity
// rank, ties broken by original comment order.
func (v2 *PRAnalysisResultV2) MeaningfulBugsSorted() []AnalysisComment {
	bugs := make([]AnalysisComment, 0, len(v2.AllComments))
	for _, c := range v2.AllComments {
		if c.IsMeaningfulBug {
			bugs = append(bugs, c)
		}
	}
	sort.SliceStable(bugs, func(i, j int) bool {
		return bugs[i].Category.Rank() < bugs[j].Category.Rank()
	})
	return bugs
}

// OutreachReady returns the comments flagged ready for outreach, in
// original order.
func (v2 *PRAnalysisResultV2) OutreachReady() []AnalysisComment {
	ready := make([]AnalysisComment, 0, len(v2.AllComments))
	for _, c := range v2.AllComments {
		if c.OutreachReady {
			ready = append(ready, c)
		}
	}
	return ready
}

// ToV1 converts a V2 result to the legacy shape for consumers that still
// read it. With no meaningful bugs the result is the negative V1 form with
// the summary recommendation as the reason.
func (v2 *PRAnalysisResultV2) ToV1() *PRAnalysisResultV1 {
	bugs := v2.MeaningfulBugsSorted()
	if len(bugs) == 0 {
		return &PRAnalysisResultV1{
			MeaningfulBugsFound: false,
			Reason:              v2.Summary.Recommendation,
		}
	}

	snippets := make([]BugSnippet, 0, len(bugs))
	marked := false
	for _, b := range bugs {
		snippet := BugSnippet{
			Title:          b.Title,
			Explanation:    explanationText(b),
			FilePath:       b.FilePath,
			LineNumber:     b.LineNumber,
			Severity:       CollapseSeverity(b.Category),
			CodeSuggestion: b.CodeSuggestion,
		}
		// Index values come from the model and may repeat; only the first
		// match gets the most-impactful flag
		if !marked && v2.BestBugForOutreachIndex != nil && b.Index == *v2.BestBugForOutreachIndex {
			snippet.IsMostImpactful = true
			marked = true
		}
		snippets = append(snippets, snippet)
	}

	return &PRAnalysisResultV1{
		MeaningfulBugsFound:      true,
		Bugs:                     snippets,
		TotalMacroscopeBugsFound: len(snippets),
	}
}

// explanationText picks the long explanation when present, falling back to
// the short one. Explanations are nulled out for low-severity comments.
func explanationText(c AnalysisComment) string {
	if c.Explanation != nil && *c.Explanation != "" {
		return *c.Explanation
	}
	if c.ExplanationShort != nil {
		return *c.ExplanationShort
	}
	return ""
}

// PRAnalysis is the persisted form of an analysis: the validated result
// serialized verbatim into a single text column, keyed by PR. Only the
// latest analysis per PR is retained.
type PRAnalysis struct {
	ID            string        `json:"id"`
	PRID          string        `json:"pr_id"`
	SchemaVersion SchemaVersion `json:"schema_version"`
	Model         string        `json:"model"`
	AnalysisJSON  []byte        `json:"analysis_json"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Decode parses the stored JSON blob back into a Result.
func (a *PRAnalysis) Decode() (*Result, error) {
	return DecodeResult(a.AnalysisJSON)
}
