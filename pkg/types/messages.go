package types

import (
	"github.com/mersinvald/rustyrobot/pkg/search"
)

// Event is the tagged event union published on the event topic. Exactly one
// field is set; the field name is the wire tag.
type Event struct {
	RepositoryFetched   *Repository   `json:"RepositoryFetched,omitempty"`
	RepositoryForked    *Repository   `json:"RepositoryForked,omitempty"`
	ForkDeleted         *Repository   `json:"ForkDeleted,omitempty"`
	RepositoryFormatted *Repository   `json:"RepositoryFormatted,omitempty"`
	PRCreated           *Repository   `json:"PRCreated,omitempty"`
	PRStatusChange      *Repository   `json:"PRStatusChange,omitempty"`
	Notification        *Notification `json:"Notification,omitempty"`
}

// Request is the tagged request union consumed by the github worker.
type Request struct {
	Fetch              *FetchRequest    `json:"Fetch,omitempty"`
	Fork               *Repository      `json:"Fork,omitempty"`
	DeleteFork         *Repository      `json:"DeleteFork,omitempty"`
	CreatePR           *CreatePRRequest `json:"CreatePR,omitempty"`
	FetchNotifications *struct{}        `json:"FetchNotifications,omitempty"`
	CheckPRStatus      *Repository      `json:"CheckPRStatus,omitempty"`
}

// FetchRequest asks the github worker to run one paginated search.
type FetchRequest struct {
	Query search.Query `json:"query"`
}

// CreatePRRequest asks the github worker to open a pull request from the
// fork's working branch against the upstream default branch.
type CreatePRRequest struct {
	Repo    Repository `json:"repo"`
	Branch  string     `json:"branch"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Tag returns the variant name of the event, or "" when unset.
func (e *Event) Tag() string {
	switch {
	case e.RepositoryFetched != nil:
		return "RepositoryFetched"
	case e.RepositoryForked != nil:
		return "RepositoryForked"
	case e.ForkDeleted != nil:
		return "ForkDeleted"
	case e.RepositoryFormatted != nil:
		return "RepositoryFormatted"
	case e.PRCreated != nil:
		return "PRCreated"
	case e.PRStatusChange != nil:
		return "PRStatusChange"
	case e.Notification != nil:
		return "Notification"
	}
	return ""
}

// Repo returns the repository payload of the event, if the variant has one.
func (e *Event) Repo() *Repository {
	switch {
	case e.RepositoryFetched != nil:
		return e.RepositoryFetched
	case e.RepositoryForked != nil:
		return e.RepositoryForked
	case e.ForkDeleted != nil:
		return e.ForkDeleted
	case e.RepositoryFormatted != nil:
		return e.RepositoryFormatted
	case e.PRCreated != nil:
		return e.PRCreated
	case e.PRStatusChange != nil:
		return e.PRStatusChange
	}
	return nil
}

// Tag returns the variant name of the request, or "" when unset.
func (r *Request) Tag() string {
	switch {
	case r.Fetch != nil:
		return "Fetch"
	case r.Fork != nil:
		return "Fork"
	case r.DeleteFork != nil:
		return "DeleteFork"
	case r.CreatePR != nil:
		return "CreatePR"
	case r.FetchNotifications != nil:
		return "FetchNotifications"
	case r.CheckPRStatus != nil:
		return "CheckPRStatus"
	}
	return ""
}
