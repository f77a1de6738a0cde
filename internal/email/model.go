// Package email drafts and stores outreach emails for analyzed PRs.
package email

import "time"

// Status tracks the lifecycle of an email draft
type Status string

const (
	// StatusDraft means the email was generated but not sent
	StatusDraft Status = "draft"
	// StatusSent means the operator marked the email as sent
	StatusSent Status = "sent"
)

// Draft is a stored outreach email for a tracked PR
type Draft struct {
	ID        string    `json:"id"`
	PRID      string    `json:"pr_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
