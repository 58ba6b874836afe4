// Package statuschecker requests a status poll for every repository that
// has pull requests tracked against its upstream.
package statuschecker

import (
	"github.com/mersinvald/rustyrobot/pkg/types"
)

// Handle is the status-checker stage handler: each PRCreated event queues a
// CheckPRStatus request. The github worker re-emits PRStatusChange only when
// a tracked PR actually transitioned.
func Handle(event types.Event, emit func(types.Request)) error {
	if repo := event.PRCreated; repo != nil {
		emit(types.Request{CheckPRStatus: repo})
	}
	return nil
}

// Wants pre-filters the event stream down to the variant the stage handles.
func Wants(event types.Event) bool {
	return event.PRCreated != nil
}
