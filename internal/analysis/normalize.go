package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Classify determines which response schema a raw LLM result matches.
// A result is V2 if it carries both the allComments list and the summary
// object; V1 if it carries the meaningfulBugsFound boolean instead.
// Anything else is ErrSchemaMismatch.
func Classify(raw []byte) (SchemaVersion, error) {
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("%w: not a JSON object", ErrSchemaMismatch)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return "", fmt.Errorf("%w: not a JSON object", ErrSchemaMismatch)
	}

	if root.Get("allComments").Exists() && root.Get("summary").Exists() {
		return SchemaV2, nil
	}
	if root.Get("meaningfulBugsFound").Exists() {
		return SchemaV1, nil
	}

	return "", ErrSchemaMismatch
}

// Validator performs structural validation of recognized schemas.
//
// RequireExplanations selects the older prompt revision's contract, which
// forces the model to emit explanation and macroscopeCommentText on every
// comment; the current revision omits them so the server can backfill.
type Validator struct {
	RequireExplanations bool
}

// Decode classifies raw LLM output and validates it against the matched
// schema, producing the tagged union. Classification and validation
// failures are both fatal to the analysis request.
func (v Validator) Decode(raw []byte) (*Result, error) {
	version, err := Classify(raw)
	if err != nil {
		return nil, err
	}

	switch version {
	case SchemaV2:
		v2, err := v.ValidateV2(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Version: SchemaV2, V2: v2}, nil
	default:
		v1, err := v.ValidateV1(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Version: SchemaV1, V1: v1}, nil
	}
}

// DecodeResult decodes with the default (current-revision) validator.
// Used for blobs re-read from storage, which were validated on the way in.
func DecodeResult(raw []byte) (*Result, error) {
	return Validator{}.Decode(raw)
}

// ValidateV2 checks the presence and types of every required V2 field and
// decodes the payload. Checks are purely structural: it does not verify
// that bestBugForOutreachIndex resolves to a real element, which consumers
// handle defensively.
func (v Validator) ValidateV2(raw []byte) (*PRAnalysisResultV2, error) {
	root := gjson.ParseBytes(raw)

	for _, field := range []string{"totalCommentsProcessed", "meaningfulBugsCount", "outreachReadyCount"} {
		if root.Get(field).Type != gjson.Number {
			return nil, newValidationError(field)
		}
	}

	comments := root.Get("allComments")
	if !comments.IsArray() {
		return nil, newValidationError("allComments")
	}

	var elemErr *ValidationError
	index := 0
	comments.ForEach(func(_, el gjson.Result) bool {
		if err := v.validateV2Comment(el, index); err != nil {
			elemErr = err
			return false
		}
		index++
		return true
	})
	if elemErr != nil {
		return nil, elemErr
	}

	summary := root.Get("summary")
	if !summary.IsObject() {
		return nil, newValidationError("summary")
	}
	if !summary.Get("bugsBySeverity").IsObject() {
		return nil, newValidationError("summary.bugsBySeverity")
	}
	if rec := summary.Get("recommendation"); rec.Type != gjson.String || rec.String() == "" {
		return nil, newValidationError("summary.recommendation")
	}

	var result PRAnalysisResultV2
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding V2 result: %w", err)
	}

	return &result, nil
}

func (v Validator) validateV2Comment(el gjson.Result, index int) *ValidationError {
	if !el.IsObject() {
		return newElementValidationError("allComments", index)
	}

	if el.Get("index").Type != gjson.Number {
		return newElementValidationError("allComments.index", index)
	}
	for _, field := range []string{"filePath", "category", "title"} {
		if el.Get(field).Type != gjson.String {
			return newElementValidationError("allComments."+field, index)
		}
	}
	for _, field := range []string{"isMeaningfulBug", "outreachReady"} {
		if !isBool(el.Get(field)) {
			return newElementValidationError("allComments."+field, index)
		}
	}

	if v.RequireExplanations {
		// Older prompt revisions require these straight from the model.
		for _, field := range []string{"explanation", "macroscopeCommentText"} {
			if !el.Get(field).Exists() {
				return newElementValidationError("allComments."+field, index)
			}
		}
	}

	return nil
}

// ValidateV1 checks the legacy schema: a true meaningfulBugsFound requires
// a non-empty bugs array whose elements each carry title, explanation,
// filePath and severity; a false one requires a reason.
func (v Validator) ValidateV1(raw []byte) (*PRAnalysisResultV1, error) {
	root := gjson.ParseBytes(raw)

	found := root.Get("meaningfulBugsFound")
	if !isBool(found) {
		return nil, newValidationError("meaningfulBugsFound")
	}

	if found.Bool() {
		bugs := root.Get("bugs")
		if !bugs.IsArray() || len(bugs.Array()) == 0 {
			return nil, newValidationError("bugs")
		}

		var elemErr *ValidationError
		index := 0
		bugs.ForEach(func(_, el gjson.Result) bool {
			for _, field := range []string{"title", "explanation", "filePath", "severity"} {
				if el.Get(field).Type != gjson.String {
					elemErr = newElementValidationError("bugs."+field, index)
					return false
				}
			}
			index++
			return true
		})
		if elemErr != nil {
			return nil, elemErr
		}
	} else if root.Get("reason").Type != gjson.String {
		return nil, newValidationError("reason")
	}

	var result PRAnalysisResultV1
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding V1 result: %w", err)
	}

	return &result, nil
}

func isBool(r gjson.Result) bool {
	return r.Type == gjson.True || r.Type == gjson.False
}

// Backfill returns a copy of the V2 result with macroscopeCommentText
// populated from the original comment list. The comment list is the arena
// and each AnalysisComment.Index is an untrusted index into it: lookups
// are bounds-checked, and a hallucinated index degrades to an empty string
// instead of failing the request.
func Backfill(v2 *PRAnalysisResultV2, originalComments []MacroscopeComment) *PRAnalysisResultV2 {
	out := *v2
	out.AllComments = make([]AnalysisComment, len(v2.AllComments))
	copy(out.AllComments, v2.AllComments)

	for i := range out.AllComments {
		idx := out.AllComments[i].Index
		if idx >= 0 && idx < len(originalComments) {
			out.AllComments[i].MacroscopeCommentText = originalComments[idx].Body
		} else {
			out.AllComments[i].MacroscopeCommentText = ""
		}
	}

	return &out
}
