// Package fork manages forked repositories and the PRs recreated on them.
package fork

import "time"

// Status tracks the lifecycle of a fork
type Status string

const (
	// StatusPending means the fork was requested but not yet reachable
	StatusPending Status = "pending"
	// StatusReady means the fork exists and can receive branches
	StatusReady Status = "ready"
	// StatusFailed means fork creation did not complete
	StatusFailed Status = "failed"
)

// Fork is a fork of an upstream repository under the prospecting account
type Fork struct {
	ID            string    `json:"id"`
	UpstreamOwner string    `json:"upstream_owner"`
	UpstreamRepo  string    `json:"upstream_repo"`
	ForkOwner     string    `json:"fork_owner"`
	ForkRepo      string    `json:"fork_repo"`
	DefaultBranch string    `json:"default_branch"`
	Status        Status    `json:"status"`
	HTMLURL       string    `json:"html_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpstreamFullName returns "owner/repo" for the upstream repository
func (f *Fork) UpstreamFullName() string {
	return f.UpstreamOwner + "/" + f.UpstreamRepo
}

// ForkFullName returns "owner/repo" for the fork
func (f *Fork) ForkFullName() string {
	return f.ForkOwner + "/" + f.ForkRepo
}

// PRStatus tracks the lifecycle of a recreated PR
type PRStatus string

const (
	// PRStatusCreated means the PR was recreated on the fork
	PRStatusCreated PRStatus = "created"
	// PRStatusReviewed means the review bot finished commenting
	PRStatusReviewed PRStatus = "reviewed"
	// PRStatusAnalyzed means the comments were triaged by the LLM
	PRStatusAnalyzed PRStatus = "analyzed"
	// PRStatusEmailed means an outreach email draft exists
	PRStatusEmailed PRStatus = "emailed"
	// PRStatusFailed means recreation or analysis failed
	PRStatusFailed PRStatus = "failed"
)

// TrackedPR is an upstream pull request recreated on a fork so the review
// bot can comment on it. ForkNumber is zero until the recreated PR exists.
type TrackedPR struct {
	ID             string    `json:"id"`
	ForkID         string    `json:"fork_id"`
	UpstreamNumber int       `json:"upstream_number"`
	ForkNumber     int       `json:"fork_number,omitempty"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	HeadBranch     string    `json:"head_branch"`
	BaseBranch     string    `json:"base_branch"`
	Status         PRStatus  `json:"status"`
	HTMLURL        string    `json:"html_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
