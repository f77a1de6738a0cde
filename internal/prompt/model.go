// Package prompt stores and renders the versioned LLM prompt templates
// used for PR triage and outreach email drafting.
package prompt

import "time"

// Prompt is a stored prompt template. Prompts are versioned by name; at
// most one version per name is active at a time.
type Prompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
