// Package llm provides the client abstraction for chat-completion
// providers used by the analysis and outreach pipelines.
package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request. Zero values for
// MaxTokens and Temperature defer to the client's configured defaults.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption for a completion
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a provider-agnostic completion response
type Response struct {
	Content    string
	Model      string
	StopReason string
	Usage      Usage
}

// Client is implemented by each provider
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// newLimiter builds a client-side rate limiter from a requests-per-minute
// budget. A non-positive budget disables limiting.
func newLimiter(requestsPerMinute int, burst int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}
