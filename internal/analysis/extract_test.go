package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"meaningfulBugsFound": false, "reason": "none"}`,
			want:  `{"meaningfulBugsFound": false, "reason": "none"}`,
		},
		{
			name:  "json code fence",
			input: "Here is my analysis:\n```json\n{\"meaningfulBugsFound\": true}\n```\nLet me know if you need more.",
			want:  `{"meaningfulBugsFound": true}`,
		},
		{
			name:  "unlabeled code fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "object surrounded by prose",
			input: `Sure! The result is {"a": {"b": 2}} as requested.`,
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "braces inside strings do not confuse the scan",
			input: `{"code": "if x { return }", "done": true}`,
			want:  `{"code": "if x { return }", "done": true}`,
		},
		{
			name:  "escaped quotes inside strings",
			input: `{"text": "he said \"hi {\" loudly"}`,
			want:  `{"text": "he said \"hi {\" loudly"}`,
		},
		{
			name:    "no object at all",
			input:   "I could not produce an analysis.",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			input:   `{"a": {"b": 2}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
