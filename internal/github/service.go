package github

import (
	"context"
	"time"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

// Service provides the higher-level GitHub operations the pipelines need
type Service struct {
	client   *Client
	botLogin string
	logger   *loggy.Logger
}

// NewService creates a new GitHub service
func NewService(client *Client, cfg *config.Config, logger *loggy.Logger) *Service {
	return &Service{
		client:   client,
		botLogin: cfg.GitHub.BotLogin,
		logger:   logger,
	}
}

// Client exposes the underlying API client
func (s *Service) Client() *Client {
	return s.client
}

// ListBotReviewComments returns the review comments authored by the
// configured review bot on a PR, mapped into the analysis input shape.
// Comments by other users are ignored.
func (s *Service) ListBotReviewComments(ctx context.Context, owner, repo string, number int) ([]analysis.MacroscopeComment, error) {
	comments, err := s.client.ListReviewComments(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	var out []analysis.MacroscopeComment
	for _, c := range comments {
		if c.GetUser().GetLogin() != s.botLogin {
			continue
		}

		out = append(out, analysis.MacroscopeComment{
			ID:        c.GetID(),
			Path:      c.GetPath(),
			Line:      c.Line,
			Body:      c.GetBody(),
			DiffHunk:  c.GetDiffHunk(),
			CreatedAt: c.GetCreatedAt().Time,
		})
	}

	s.logger.Debug("Fetched bot review comments",
		"repo", owner+"/"+repo,
		"number", number,
		"total", len(comments),
		"bot", len(out),
	)

	return out, nil
}

// WaitForRepository polls until a freshly forked repository becomes
// reachable or the deadline passes. GitHub creates forks asynchronously
// and small repos usually appear within seconds.
func (s *Service) WaitForRepository(ctx context.Context, owner, repo string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := 2 * time.Second

	for {
		if _, err := s.client.GetRepository(ctx, owner, repo); err == nil {
			return nil
		} else if time.Now().After(deadline) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
