package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		input     string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{input: "https://github.com/acme/widgets", wantOwner: "acme", wantRepo: "widgets"},
		{input: "https://github.com/acme/widgets.git", wantOwner: "acme", wantRepo: "widgets"},
		{input: "https://github.com/acme/widgets/pull/42", wantOwner: "acme", wantRepo: "widgets"},
		{input: "git@github.com:acme/widgets.git", wantOwner: "acme", wantRepo: "widgets"},
		{input: "acme/widgets", wantOwner: "acme", wantRepo: "widgets"},
		{input: "https://github.com/acme", wantErr: true},
		{input: "", wantErr: true},
		{input: "just-a-name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestListBotReviewComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/7/comments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{
				"id": 1,
				"path": "cache.go",
				"line": 12,
				"body": "this map is written without a lock",
				"diff_hunk": "@@ -10,3 +10,4 @@",
				"created_at": "2025-06-01T10:00:00Z",
				"user": {"login": "macroscope-reviews[bot]"}
			},
			{
				"id": 2,
				"path": "main.go",
				"body": "thanks for the PR!",
				"created_at": "2025-06-01T10:05:00Z",
				"user": {"login": "some-human"}
			},
			{
				"id": 3,
				"path": "main.go",
				"body": "possible nil dereference",
				"created_at": "2025-06-01T10:06:00Z",
				"user": {"login": "macroscope-reviews[bot]"}
			}
		]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &config.Config{
		GitHub: config.GitHubConfig{BotLogin: "macroscope-reviews[bot]"},
	}

	client, err := NewClientForTesting(srv.URL, cfg, loggy.NewNoopLogger())
	require.NoError(t, err)

	svc := NewService(client, cfg, loggy.NewNoopLogger())
	comments, err := svc.ListBotReviewComments(context.Background(), "acme", "widgets", 7)
	require.NoError(t, err)

	require.Len(t, comments, 2)
	assert.Equal(t, int64(1), comments[0].ID)
	assert.Equal(t, "cache.go", comments[0].Path)
	require.NotNil(t, comments[0].Line)
	assert.Equal(t, 12, *comments[0].Line)
	assert.Equal(t, int64(3), comments[1].ID)
	assert.Nil(t, comments[1].Line)
}
