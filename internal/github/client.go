// Package github wraps the GitHub REST API for fork management, PR
// recreation and review comment retrieval.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/google/go-github/v59/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

// Client is a thin wrapper around go-github with the transport stack the
// prospector needs:
//  1. httpcache for ETag-based conditional request caching
//  2. go-github-ratelimit for secondary rate limit handling (sleeps on 429)
//  3. oauth2 token auth
// plus a client-side primary rate limiter.
type Client struct {
	gh      *github.Client
	config  *config.GitHubConfig
	limiter *rate.Limiter
	logger  *loggy.Logger
}

// NewClient creates a new GitHub API client from config
func NewClient(cfg *config.Config, logger *loggy.Logger) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHub.Token})

	cacheTransport := httpcache.NewMemoryCacheTransport()
	base := github_ratelimit.NewClient(cacheTransport)

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	tc := oauth2.NewClient(ctx, ts)

	timeout := cfg.GitHub.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	tc.Timeout = timeout

	var gh *github.Client
	if cfg.GitHub.APIURL != "" && cfg.GitHub.APIURL != "https://api.github.com" {
		var err error
		gh, err = github.NewClient(tc).WithEnterpriseURLs(cfg.GitHub.APIURL, cfg.GitHub.APIURL)
		if err != nil {
			logger.Warn("Invalid GitHub API URL, falling back to default", "url", cfg.GitHub.APIURL, "error", err)
			gh = github.NewClient(tc)
		}
	} else {
		gh = github.NewClient(tc)
	}

	return &Client{
		gh:      gh,
		config:  &cfg.GitHub,
		limiter: newLimiter(cfg.GitHub.RequestsPerMinute, cfg.GitHub.BurstLimit),
		logger:  logger,
	}
}

// NewClientForTesting creates a client against an httptest server
func NewClientForTesting(baseURL string, cfg *config.Config, logger *loggy.Logger) (*Client, error) {
	gh := github.NewClient(nil)
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	gh.BaseURL = u

	return &Client{
		gh:      gh,
		config:  &cfg.GitHub,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  logger,
	}, nil
}

func newLimiter(requestsPerMinute, burst int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// GetPullRequest gets a pull request by number
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return pr, nil
}

// GetRepository gets a repository by owner and name
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}
	return r, nil
}

// CreateFork forks a repository into the configured fork owner's account.
// GitHub forks asynchronously, so an AcceptedError still yields the fork
// object; callers poll with GetRepository until the fork is reachable.
func (c *Client) CreateFork(ctx context.Context, owner, repo, forkName string) (*github.Repository, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.RepositoryCreateForkOptions{
		DefaultBranchOnly: false,
	}
	if forkName != "" {
		opts.Name = forkName
	}
	if c.config.ForkOwner != "" {
		opts.Organization = c.config.ForkOwner
	}

	fork, _, err := c.gh.Repositories.CreateFork(ctx, owner, repo, opts)
	if err != nil {
		if _, accepted := err.(*github.AcceptedError); !accepted {
			return nil, fmt.Errorf("forking %s/%s: %w", owner, repo, err)
		}
		c.logger.Debug("Fork accepted, creation in progress", "repo", owner+"/"+repo)
	}

	return fork, nil
}

// CreatePullRequest opens a pull request on the given repository
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, req *github.NewPullRequest) (*github.PullRequest, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, fmt.Errorf("creating pull request on %s/%s: %w", owner, repo, err)
	}
	return pr, nil
}

// ListReviewComments lists all review comments on a pull request, paging
// through the full set.
func (c *Client) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestComment, error) {
	opts := &github.PullRequestListCommentsOptions{
		Sort:      "created",
		Direction: "asc",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var all []*github.PullRequestComment
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing review comments on %s/%s#%d: %w", owner, repo, number, err)
		}
		all = append(all, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ParseRepoURL extracts owner and repo from a GitHub repository or PR URL.
// Accepts https URLs, git@ remotes and bare "owner/repo" strings.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".git")

	if strings.HasPrefix(s, "git@") {
		// git@github.com:owner/repo
		if _, rest, ok := strings.Cut(s, ":"); ok {
			s = rest
		}
	} else if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", "", fmt.Errorf("parsing repository URL %q: %w", raw, err)
		}
		s = strings.TrimPrefix(u.Path, "/")
	}

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot extract owner/repo from %q", raw)
	}

	return parts[0], parts[1], nil
}
