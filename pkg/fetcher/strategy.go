package fetcher

import (
	"fmt"
	"time"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/search"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

const dateLayout = "2006-01-02"

// lastDateKey is the state key persisting the date-window cursor.
const lastDateKey = "last_date"

// Emitter publishes fetch requests, satisfied by *kafka.Producer.
type Emitter interface {
	Send(value any) error
}

// StateStore persists the window cursor, satisfied by *kafka.Store.
type StateStore interface {
	Set(key string, value any) error
	GetString(key string) string
	Sync() error
}

// State is the shared context a strategy executes against.
type State struct {
	Shutdown *shutdown.Coordinator
	Store    StateStore
	Producer Emitter
}

// Strategy turns a base query into a stream of fetch requests.
type Strategy interface {
	Execute(state *State, base search.Builder) error
}

// Simple emits a single fetch request for the base query.
type Simple struct{}

// Execute builds and emits one request.
func (Simple) Execute(state *State, base search.Builder) error {
	query, err := base.Build()
	if err != nil {
		return err
	}
	return state.Producer.Send(types.Request{
		Fetch: &types.FetchRequest{Query: query},
	})
}

// DateWindow splits a large search into date-windowed sub-queries, one
// fetch request per window, persisting the cursor between windows so an
// interrupted run resumes where it stopped.
type DateWindow struct {
	// DaysPerRequest is the window length. Must be at least 1.
	DaysPerRequest int

	// StartDate is the repo creation date to begin from. When zero the
	// persisted cursor is used, and failing that, today.
	StartDate time.Time

	// EndDate is the repo creation date to stop at, inclusive. When zero,
	// today.
	EndDate time.Time
}

// Execute walks the date range window by window. Before each emission the
// window start is persisted as the cursor and synced, so the last persisted
// value after a normal return is the start of the final window.
func (w DateWindow) Execute(state *State, base search.Builder) error {
	if w.DaysPerRequest < 1 {
		return fmt.Errorf("fetcher: days per request must be at least 1, got %d", w.DaysPerRequest)
	}

	logger := log.WithComponent("fetcher.datewindow")
	today := time.Now().UTC().Truncate(24 * time.Hour)

	cursor := w.StartDate
	if cursor.IsZero() {
		if persisted := state.Store.GetString(lastDateKey); persisted != "" {
			parsed, err := time.Parse(dateLayout, persisted)
			if err != nil {
				logger.Error().Err(err).Str(lastDateKey, persisted).Msg("failed to parse persisted cursor, using today")
				parsed = today
			}
			cursor = parsed
		} else {
			cursor = today
		}
	}

	end := w.EndDate
	if end.IsZero() {
		end = today
	}

	for !cursor.After(end) && !state.Shutdown.ShouldShutdown() {
		windowStart := cursor
		windowEnd := cursor.AddDate(0, 0, w.DaysPerRequest-1)

		if err := state.Store.Set(lastDateKey, windowStart.Format(dateLayout)); err != nil {
			return err
		}
		if err := state.Store.Sync(); err != nil {
			return err
		}
		cursor = windowEnd.AddDate(0, 0, 1)

		fragment := fmt.Sprintf("created:%s..%s", windowStart.Format(dateLayout), windowEnd.Format(dateLayout))
		logger.Info().Str("window", fragment).Msg("requesting")

		if err := (Simple{}).Execute(state, base.RawQuery(fragment)); err != nil {
			return err
		}
	}

	return nil
}
