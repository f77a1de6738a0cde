// Package slack posts pipeline notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

// Notifier posts messages to a Slack incoming webhook. Delivery is best
// effort; callers log failures and move on.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *loggy.Logger
}

// NewNotifier creates a new Slack notifier, or nil when Slack is disabled
// in config. A nil *Notifier is safe to pass where analysis.Notifier is
// accepted as a nil interface check happens at the call site.
func NewNotifier(cfg *config.Config, logger *loggy.Logger) *Notifier {
	if !cfg.Slack.Enabled || cfg.Slack.WebhookURL == "" {
		return nil
	}

	timeout := cfg.Slack.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Notifier{
		webhookURL: cfg.Slack.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type message struct {
	Text string `json:"text"`
}

// AnalysisCompleted implements analysis.Notifier. The service only
// invokes it for analyses with outreach-ready findings.
func (n *Notifier) AnalysisCompleted(ctx context.Context, pr analysis.PRRef, result *analysis.Result) error {
	count := 0
	switch result.Version {
	case analysis.SchemaV2:
		count = result.V2.MeaningfulBugsCount
	case analysis.SchemaV1:
		count = len(result.V1.Bugs)
	}

	text := fmt.Sprintf(":mag: Analysis of %s/%s#%d found %d meaningful bug(s)",
		pr.Owner, pr.Repo, pr.Number, count)
	if result.Version == analysis.SchemaV2 {
		if best := result.V2.BestBugForOutreach(); best != nil {
			text += fmt.Sprintf("\nBest outreach candidate: %s", best.Title)
		}
	}

	return n.post(ctx, text)
}

// DraftCreated notifies that an outreach email draft is ready for review
func (n *Notifier) DraftCreated(ctx context.Context, repoFullName string, prNumber int, subject string) error {
	return n.post(ctx, fmt.Sprintf(":email: Outreach draft ready for %s#%d: %q", repoFullName, prNumber, subject))
}

func (n *Notifier) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(message{Text: text})
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("Posted Slack notification")
	return nil
}
