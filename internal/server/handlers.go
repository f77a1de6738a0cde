package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/email"
	"github.com/macroscopehq/prospector/internal/fork"
	"github.com/macroscopehq/prospector/internal/github"
	"github.com/macroscopehq/prospector/internal/prompt"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Index *int   `json:"index,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Normalization failures
// are 502s: the service worked, the model's output did not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var vErr *analysis.ValidationError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadGateway
		resp.Field = vErr.Field
		if vErr.Index >= 0 {
			idx := vErr.Index
			resp.Index = &idx
		}
	case errors.Is(err, analysis.ErrSchemaMismatch):
		status = http.StatusBadGateway
	case errors.Is(err, fork.ErrForkNotFound),
		errors.Is(err, fork.ErrPRNotFound),
		errors.Is(err, analysis.ErrAnalysisNotFound),
		errors.Is(err, email.ErrDraftNotFound),
		errors.Is(err, prompt.ErrPromptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, analysis.ErrNoComments),
		errors.Is(err, email.ErrNoOutreachBug):
		status = http.StatusConflict
	}

	if status >= 500 {
		s.logger.Error("Request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}

	writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// --- forks ---

func (s *Server) handleListForks(w http.ResponseWriter, r *http.Request) {
	forks, err := s.services.Forks.ListForks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forks)
}

func (s *Server) handleCreateFork(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoURL string `json:"repo_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	owner, repo, err := github.ParseRepoURL(req.RepoURL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	f, err := s.services.ForkService.EnsureFork(r.Context(), owner, repo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFork(w http.ResponseWriter, r *http.Request) {
	f, err := s.services.Forks.GetForkByID(r.Context(), chi.URLParam(r, "forkID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// --- tracked PRs ---

func (s *Server) handleListPRs(w http.ResponseWriter, r *http.Request) {
	prs, err := s.services.Forks.ListPRsByFork(r.Context(), chi.URLParam(r, "forkID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prs)
}

func (s *Server) handleRecreatePR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UpstreamNumber int `json:"upstream_number"`
	}
	if err := decodeBody(r, &req); err != nil || req.UpstreamNumber <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "upstream_number is required"})
		return
	}

	f, err := s.services.Forks.GetForkByID(r.Context(), chi.URLParam(r, "forkID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pr, err := s.services.ForkService.RecreatePR(r.Context(), f, req.UpstreamNumber)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pr)
}

func (s *Server) handleGetPR(w http.ResponseWriter, r *http.Request) {
	pr, err := s.services.Forks.GetPRByID(r.Context(), chi.URLParam(r, "prID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

// loadPR resolves a tracked PR and its fork from the URL
func (s *Server) loadPR(r *http.Request) (*fork.TrackedPR, *fork.Fork, error) {
	pr, err := s.services.Forks.GetPRByID(r.Context(), chi.URLParam(r, "prID"))
	if err != nil {
		return nil, nil, err
	}
	f, err := s.services.Forks.GetForkByID(r.Context(), pr.ForkID)
	if err != nil {
		return nil, nil, err
	}
	return pr, f, nil
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	pr, f, err := s.loadPR(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	comments, err := s.services.GitHub.ListBotReviewComments(r.Context(), f.ForkOwner, f.ForkRepo, pr.ForkNumber)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, newCommentView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// --- analysis ---

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	pr, f, err := s.loadPR(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.services.Analysis.AnalyzePR(r.Context(), analysis.PRRef{
		PRID:   pr.ID,
		Owner:  f.ForkOwner,
		Repo:   f.ForkRepo,
		Number: pr.ForkNumber,
		Title:  pr.Title,
		Author: pr.Author,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.ForkService.MarkStatus(r.Context(), pr.ID, fork.PRStatusAnalyzed); err != nil {
		s.logger.Warn("Failed to update PR status", "pr_id", pr.ID, "error", err)
	}

	record, decoded, err := s.services.Analysis.GetLatest(r.Context(), pr.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAnalysisView(record, decoded))
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	record, result, err := s.services.Analysis.GetLatest(r.Context(), chi.URLParam(r, "prID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisView(record, result))
}

// --- emails ---

func (s *Server) handleComposeEmail(w http.ResponseWriter, r *http.Request) {
	pr, f, err := s.loadPR(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	_, result, err := s.services.Analysis.GetLatest(r.Context(), pr.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	draft, err := s.services.Composer.Compose(r.Context(), email.ComposeInput{
		PRID:         pr.ID,
		RepoFullName: f.UpstreamFullName(),
		PRNumber:     pr.UpstreamNumber,
		PRTitle:      pr.Title,
		Author:       pr.Author,
	}, result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.ForkService.MarkStatus(r.Context(), pr.ID, fork.PRStatusEmailed); err != nil {
		s.logger.Warn("Failed to update PR status", "pr_id", pr.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.services.Emails.ListByPR(r.Context(), chi.URLParam(r, "prID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (s *Server) handleMarkEmailSent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "emailID")
	if err := s.services.Emails.UpdateStatus(r.Context(), id, email.StatusSent); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(email.StatusSent)})
}

// --- prompts ---

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Body string `json:"body"`
	}
	if err := decodeBody(r, &req); err != nil || req.Name == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name and body are required"})
		return
	}

	p, err := s.services.Prompts.Create(r.Context(), req.Name, req.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPromptVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.services.Prompts.ListVersions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleActivatePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "promptID")
	if err := s.services.Prompts.Activate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "active": "true"})
}
