// Package gitops performs the git plumbing for PR recreation: cloning the
// upstream PR's head branch and pushing it to the fork.
package gitops

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/loggy"
)

// Service provides git clone/push operations against GitHub remotes
type Service struct {
	token  string
	logger *loggy.Logger
}

// NewService creates a new git service
func NewService(cfg *config.Config, logger *loggy.Logger) *Service {
	return &Service{
		token:  cfg.GitHub.Token,
		logger: logger,
	}
}

func (s *Service) auth() *http.BasicAuth {
	// GitHub accepts any username with a token
	return &http.BasicAuth{
		Username: "x-access-token",
		Password: s.token,
	}
}

// MirrorBranch clones a single branch of the source repository into a
// temporary directory and pushes it to the destination repository under
// destBranch. The temporary clone is removed before returning.
func (s *Service) MirrorBranch(ctx context.Context, srcURL, srcBranch, destURL, destBranch string) error {
	dir, err := os.MkdirTemp("", "prospector-mirror-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	s.logger.Debug("Cloning branch",
		"src", srcURL,
		"branch", srcBranch,
		"dir", dir,
	)

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           srcURL,
		Auth:          s.auth(),
		ReferenceName: plumbing.NewBranchReferenceName(srcBranch),
		SingleBranch:  true,
		Depth:         0,
	})
	if err != nil {
		return fmt.Errorf("cloning %s@%s: %w", srcURL, srcBranch, err)
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "fork",
		URLs: []string{destURL},
	}); err != nil {
		return fmt.Errorf("adding fork remote: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf(
		"+refs/heads/%s:refs/heads/%s", srcBranch, destBranch,
	))

	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "fork",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       s.auth(),
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("pushing %s to %s: %w", destBranch, destURL, err)
	}

	s.logger.Info("Mirrored branch",
		"src", srcURL,
		"branch", srcBranch,
		"dest", destURL,
		"dest_branch", destBranch,
	)

	return nil
}
