package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

// AnthropicClient talks to the Anthropic Messages API
type AnthropicClient struct {
	apiKey           string
	baseURL          string
	apiVersion       string
	defaultModel     string
	defaultMaxTokens int
	temperature      float64
	maxRetries       int
	httpClient       *http.Client
	limiter          *rate.Limiter
	logger           *loggy.Logger
}

// NewAnthropicClient creates a new Anthropic client from config
func NewAnthropicClient(cfg config.AnthropicConfig, logger *loggy.Logger) *AnthropicClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "2023-06-01"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicClient{
		apiKey:           cfg.APIKey,
		baseURL:          baseURL,
		apiVersion:       apiVersion,
		defaultModel:     cfg.Model,
		defaultMaxTokens: maxTokens,
		temperature:      cfg.Temperature,
		maxRetries:       cfg.MaxRetries,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		limiter:          newLimiter(cfg.RequestsPerMinute, cfg.BurstLimit),
		logger:           logger,
	}
}

// messagesRequest is the wire format of a Messages API request
type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// messagesResponse is the wire format of a Messages API response
type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a completion request, waiting on the client-side rate
// limiter and retrying transient failures with exponential backoff.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.defaultMaxTokens
	}

	wire := messagesRequest{
		Model:     req.Model,
		System:    req.System,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		wire.Temperature = &req.Temperature
	} else if c.temperature > 0 {
		wire.Temperature = &c.temperature
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	var resp messagesResponse
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return c.doRequest(ctx, body, &resp)
	}

	err = backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx))
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Content:    text.String(),
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage:      resp.Usage,
	}, nil
}

func (c *AnthropicClient) doRequest(ctx context.Context, body []byte, out *messagesResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Anthropic API error",
			"status", resp.StatusCode,
			"body", string(respBody),
		)

		apiErr := c.parseError(resp.StatusCode, respBody)
		// Only rate limits and server errors are worth retrying
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}

	return nil
}

func (c *AnthropicClient) parseError(status int, body []byte) error {
	var wire messagesResponse
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != nil {
		return fmt.Errorf("anthropic API error (%d %s): %s", status, wire.Error.Type, wire.Error.Message)
	}
	return fmt.Errorf("anthropic API error: status %d", status)
}
