// Package forker translates fetch events into fork requests: every
// repository that comes out of a search gets queued for forking.
package forker

import (
	"github.com/mersinvald/rustyrobot/pkg/types"
)

// Handle is the forker stage handler.
func Handle(event types.Event, emit func(types.Request)) error {
	if repo := event.RepositoryFetched; repo != nil {
		emit(types.Request{Fork: repo})
	}
	return nil
}

// Wants pre-filters the event stream down to the variant the stage handles.
func Wants(event types.Event) bool {
	return event.RepositoryFetched != nil
}
