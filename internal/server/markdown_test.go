package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	assert.Empty(t, renderMarkdown(""))

	html := renderMarkdown("**bold** and `code`")
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<code>code</code>")

	// Script tags from untrusted comment bodies are stripped
	html = renderMarkdown(`hello <script>alert("x")</script> world`)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "hello")

	// GFM tables render
	html = renderMarkdown("| a | b |\n|---|---|\n| 1 | 2 |")
	assert.Contains(t, html, "<table>")
}
