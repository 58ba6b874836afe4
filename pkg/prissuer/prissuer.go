// Package prissuer turns formatted repositories into pull-request creation
// requests against their upstreams.
package prissuer

import (
	"github.com/mersinvald/rustyrobot/pkg/kafka"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

const (
	prTitle   = "Formatting Suggestions"
	prMessage = "I've run rustfmt on your repo. Please take a look!"
)

// Handle is the pr-issuer stage handler. A formatted repository without
// format stats violates the stage contract and is a service-level failure.
func Handle(event types.Event, emit func(types.Request)) error {
	repo := event.RepositoryFormatted
	if repo == nil {
		return nil
	}

	if repo.Stats == nil {
		return kafka.Internalf("stats are empty after the formatting stage")
	}
	if repo.Stats.Format == nil {
		return kafka.Internalf("formatting stats are empty after the formatting stage")
	}

	emit(types.Request{CreatePR: &types.CreatePRRequest{
		Repo:    *repo,
		Branch:  repo.Stats.Format.Branch,
		Title:   prTitle,
		Message: prMessage,
	}})
	return nil
}

// Wants pre-filters the event stream down to the variant the stage handles.
func Wants(event types.Event) bool {
	return event.RepositoryFormatted != nil
}
