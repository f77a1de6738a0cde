package fork

import (
	"context"
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v59/github"
	"github.com/goombaio/namegenerator"

	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/github"
	"github.com/macroscopehq/prospector/internal/gitops"
	"github.com/macroscopehq/prospector/internal/loggy"
	"github.com/macroscopehq/prospector/internal/ulid"
)

// forkReadyTimeout bounds how long we wait for GitHub to finish an
// asynchronous fork before giving up.
const forkReadyTimeout = 2 * time.Minute

// Service orchestrates fork creation and PR recreation
type Service struct {
	repo      Repository
	gh        *github.Service
	git       *gitops.Service
	forkOwner string
	nameGen   namegenerator.Generator
	logger    *loggy.Logger
}

// NewService creates a new fork service
func NewService(repo Repository, ghSvc *github.Service, git *gitops.Service, cfg *config.Config, logger *loggy.Logger) *Service {
	return &Service{
		repo:      repo,
		gh:        ghSvc,
		git:       git,
		forkOwner: cfg.GitHub.ForkOwner,
		nameGen:   namegenerator.NewNameGenerator(time.Now().UnixNano()),
		logger:    logger,
	}
}

// EnsureFork returns the fork of the given upstream repository, creating
// it when it does not exist yet. Fork names collide when two upstreams
// share a repo name; a collision gets a generated suffix.
func (s *Service) EnsureFork(ctx context.Context, upstreamOwner, upstreamRepo string) (*Fork, error) {
	existing, err := s.repo.GetForkByUpstream(ctx, upstreamOwner, upstreamRepo)
	if err == nil {
		if existing.Status == StatusReady {
			return existing, nil
		}
		return s.completeFork(ctx, existing)
	}
	if !errors.Is(err, ErrForkNotFound) {
		return nil, err
	}

	upstream, err := s.gh.Client().GetRepository(ctx, upstreamOwner, upstreamRepo)
	if err != nil {
		return nil, fmt.Errorf("resolving upstream repository: %w", err)
	}

	forkName := upstreamRepo
	if s.nameTaken(ctx, forkName) {
		forkName = fmt.Sprintf("%s-%s", upstreamRepo, s.nameGen.Generate())
		s.logger.Info("Fork name taken, using generated name",
			"upstream", upstreamOwner+"/"+upstreamRepo,
			"fork_name", forkName,
		)
	}

	f := &Fork{
		ID:            ulid.ForkID(),
		UpstreamOwner: upstreamOwner,
		UpstreamRepo:  upstreamRepo,
		ForkOwner:     s.forkOwner,
		ForkRepo:      forkName,
		DefaultBranch: upstream.GetDefaultBranch(),
		Status:        StatusPending,
	}
	if err := s.repo.CreateFork(ctx, f); err != nil {
		return nil, err
	}

	if _, err := s.gh.Client().CreateFork(ctx, upstreamOwner, upstreamRepo, forkName); err != nil {
		f.Status = StatusFailed
		if uerr := s.repo.UpdateFork(ctx, f); uerr != nil {
			s.logger.Error("Failed to mark fork as failed", "id", f.ID, "error", uerr)
		}
		return nil, err
	}

	return s.completeFork(ctx, f)
}

// completeFork waits for the fork to become reachable and marks it ready
func (s *Service) completeFork(ctx context.Context, f *Fork) (*Fork, error) {
	if err := s.gh.WaitForRepository(ctx, f.ForkOwner, f.ForkRepo, forkReadyTimeout); err != nil {
		f.Status = StatusFailed
		if uerr := s.repo.UpdateFork(ctx, f); uerr != nil {
			s.logger.Error("Failed to mark fork as failed", "id", f.ID, "error", uerr)
		}
		return nil, fmt.Errorf("waiting for fork %s: %w", f.ForkFullName(), err)
	}

	repo, err := s.gh.Client().GetRepository(ctx, f.ForkOwner, f.ForkRepo)
	if err != nil {
		return nil, err
	}

	f.Status = StatusReady
	f.HTMLURL = repo.GetHTMLURL()
	if f.DefaultBranch == "" {
		f.DefaultBranch = repo.GetDefaultBranch()
	}
	if err := s.repo.UpdateFork(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("Fork ready", "id", f.ID, "fork", f.ForkFullName())
	return f, nil
}

func (s *Service) nameTaken(ctx context.Context, name string) bool {
	_, err := s.gh.Client().GetRepository(ctx, s.forkOwner, name)
	return err == nil
}

// RecreatePR mirrors an upstream PR's head branch onto the fork and opens
// a matching PR there, so the review bot will comment on it.
func (s *Service) RecreatePR(ctx context.Context, f *Fork, upstreamNumber int) (*TrackedPR, error) {
	if existing, err := s.repo.GetPRByUpstreamNumber(ctx, f.ID, upstreamNumber); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrPRNotFound) {
		return nil, err
	}

	upstreamPR, err := s.gh.Client().GetPullRequest(ctx, f.UpstreamOwner, f.UpstreamRepo, upstreamNumber)
	if err != nil {
		return nil, err
	}

	headBranch := upstreamPR.GetHead().GetRef()
	destBranch := fmt.Sprintf("pr-%d-%s", upstreamNumber, headBranch)

	pr := &TrackedPR{
		ID:             ulid.PRID(),
		ForkID:         f.ID,
		UpstreamNumber: upstreamNumber,
		Title:          upstreamPR.GetTitle(),
		Author:         upstreamPR.GetUser().GetLogin(),
		HeadBranch:     destBranch,
		BaseBranch:     f.DefaultBranch,
		Status:         PRStatusCreated,
	}
	if err := s.repo.CreatePR(ctx, pr); err != nil {
		return nil, err
	}

	// The head branch may live on the contributor's fork rather than the
	// upstream repository itself
	srcURL := upstreamPR.GetHead().GetRepo().GetCloneURL()
	if srcURL == "" {
		srcURL = fmt.Sprintf("https://github.com/%s/%s.git", f.UpstreamOwner, f.UpstreamRepo)
	}
	destURL := fmt.Sprintf("https://github.com/%s/%s.git", f.ForkOwner, f.ForkRepo)

	if err := s.git.MirrorBranch(ctx, srcURL, headBranch, destURL, destBranch); err != nil {
		return s.failPR(ctx, pr, err)
	}

	created, err := s.gh.Client().CreatePullRequest(ctx, f.ForkOwner, f.ForkRepo, &gh.NewPullRequest{
		Title: gh.String(upstreamPR.GetTitle()),
		Body:  gh.String(upstreamPR.GetBody()),
		Head:  gh.String(destBranch),
		Base:  gh.String(f.DefaultBranch),
	})
	if err != nil {
		return s.failPR(ctx, pr, err)
	}

	pr.ForkNumber = created.GetNumber()
	pr.HTMLURL = created.GetHTMLURL()
	if err := s.repo.UpdatePR(ctx, pr); err != nil {
		return nil, err
	}

	s.logger.Info("Recreated PR",
		"id", pr.ID,
		"upstream", fmt.Sprintf("%s#%d", f.UpstreamFullName(), upstreamNumber),
		"fork", fmt.Sprintf("%s#%d", f.ForkFullName(), pr.ForkNumber),
	)

	return pr, nil
}

func (s *Service) failPR(ctx context.Context, pr *TrackedPR, cause error) (*TrackedPR, error) {
	pr.Status = PRStatusFailed
	if err := s.repo.UpdatePR(ctx, pr); err != nil {
		s.logger.Error("Failed to mark PR as failed", "id", pr.ID, "error", err)
	}
	return nil, cause
}

// MarkStatus updates a tracked PR's lifecycle status
func (s *Service) MarkStatus(ctx context.Context, prID string, status PRStatus) error {
	pr, err := s.repo.GetPRByID(ctx, prID)
	if err != nil {
		return err
	}
	pr.Status = status
	return s.repo.UpdatePR(ctx, pr)
}
