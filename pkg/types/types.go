package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Repository is the canonical repository shape. Both the GraphQL (v4) and
// REST (v3) remote shapes project into it; v4 responses deserialize directly.
type Repository struct {
	ID               string            `json:"id"`
	NameWithOwner    string            `json:"nameWithOwner"`
	Description      *string           `json:"description,omitempty"`
	SSHURL           string            `json:"sshUrl"`
	URL              string            `json:"url"`
	DefaultBranch    BranchRef         `json:"defaultBranchRef"`
	CreatedAt        time.Time         `json:"createdAt"`
	Parent           *RepositoryParent `json:"parent,omitempty"`
	HasIssuesEnabled bool              `json:"hasIssuesEnabled"`
	IsFork           bool              `json:"isFork"`
	Stats            *Stats            `json:"stats,omitempty"`
}

// BranchRef names a branch.
type BranchRef struct {
	Name string `json:"name"`
}

// RepositoryParent points a fork at its upstream.
type RepositoryParent struct {
	NameWithOwner string `json:"nameWithOwner"`
	SSHURL        string `json:"sshUrl"`
	URL           string `json:"url"`
}

// Owner returns the owner half of nameWithOwner.
func (r *Repository) Owner() string {
	for i := 0; i < len(r.NameWithOwner); i++ {
		if r.NameWithOwner[i] == '/' {
			return r.NameWithOwner[:i]
		}
	}
	return r.NameWithOwner
}

// Name returns the name half of nameWithOwner.
func (r *Repository) Name() string {
	for i := 0; i < len(r.NameWithOwner); i++ {
		if r.NameWithOwner[i] == '/' {
			return r.NameWithOwner[i+1:]
		}
	}
	return ""
}

// Stats aggregates per-stage results as a repository flows through the
// pipeline. Each stage replaces or augments its own section.
type Stats struct {
	Format *FormatStats    `json:"format,omitempty"`
	Fix    *FixStats       `json:"fix,omitempty"`
	PRs    []PullRequest   `json:"prs,omitempty"`
	Aux    json.RawMessage `json:"aux,omitempty"`
}

// FormatStats describes the outcome of the formatter stage.
type FormatStats struct {
	FilesChanged uint64 `json:"filesChanged"`
	LinesAdded   uint64 `json:"linesAdded"`
	LinesRemoved uint64 `json:"linesRemoved"`
	Branch       string `json:"branch"`
}

// FixStats describes the outcome of an automated lint-fix stage.
type FixStats struct {
	LintsFound uint64 `json:"lintsFound"`
	LintsFixed uint64 `json:"lintsFixed"`
}

// PRStatus is the review state of a tracked pull request.
type PRStatus string

const (
	PROpen   PRStatus = "Open"
	PRMerged PRStatus = "Merged"
	PRClosed PRStatus = "Closed"
)

// PullRequest is one tracked pull request against an upstream repository.
type PullRequest struct {
	Title  string   `json:"title"`
	Number int      `json:"number"`
	Status PRStatus `json:"status"`
}

// HasPR reports whether stats already track a pull request with the number.
func (s *Stats) HasPR(number int) bool {
	if s == nil {
		return false
	}
	for _, pr := range s.PRs {
		if pr.Number == number {
			return true
		}
	}
	return false
}

// DeriveFork projects a v3 fork-creation response onto the canonical shape,
// carrying over the parent's identity fields and setting the parent pointer.
func DeriveFork(parent *Repository, payload []byte) (*Repository, error) {
	var v3 struct {
		ID            json.Number `json:"id"`
		FullName      string      `json:"full_name"`
		Description   *string     `json:"description"`
		HTMLURL       string      `json:"html_url"`
		SSHURL        string      `json:"ssh_url"`
		DefaultBranch string      `json:"default_branch"`
		HasIssues     bool        `json:"has_issues"`
		CreatedAt     time.Time   `json:"created_at"`
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&v3); err != nil {
		return nil, fmt.Errorf("fork response is not a valid repository: %w", err)
	}
	if v3.FullName == "" {
		return nil, fmt.Errorf("fork response is missing full_name")
	}

	fork := *parent
	fork.IsFork = true
	fork.Parent = &RepositoryParent{
		NameWithOwner: parent.NameWithOwner,
		SSHURL:        parent.SSHURL,
		URL:           parent.URL,
	}
	fork.ID = v3.ID.String()
	fork.NameWithOwner = v3.FullName
	fork.Description = v3.Description
	fork.URL = v3.HTMLURL
	fork.SSHURL = v3.SSHURL
	fork.DefaultBranch = BranchRef{Name: v3.DefaultBranch}
	fork.HasIssuesEnabled = v3.HasIssues
	fork.CreatedAt = v3.CreatedAt

	return &fork, nil
}

// Notification is one entry of the remote notifications feed. The feed
// mapping is intentionally a stub: the raw payload is retained as-is.
type Notification struct {
	Raw json.RawMessage `json:"raw"`
}
