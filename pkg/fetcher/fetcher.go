package fetcher

import (
	"time"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/search"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
)

// Fetcher drives a strategy over the shared state.
type Fetcher struct {
	state    *State
	strategy Strategy
}

// New creates a fetcher with the given strategy.
func New(state *State, strategy Strategy) *Fetcher {
	return &Fetcher{state: state, strategy: strategy}
}

// Fetch runs the strategy once over the base query.
func (f *Fetcher) Fetch(base search.Builder) error {
	return f.strategy.Execute(f.state, base)
}

// Run is the fetcher service loop: it executes the strategy, then re-runs it
// every period until shutdown. The strategy's explicit start date applies
// only to the first round; later rounds resume from the persisted cursor.
func Run(coordinator *shutdown.Coordinator, store StateStore, producer Emitter, strategy DateWindow, base search.Builder, period time.Duration) error {
	logger := log.WithComponent("fetcher")

	lock := coordinator.Started("fetcher loop")
	defer lock.Release()

	state := &State{
		Shutdown: coordinator,
		Store:    store,
		Producer: producer,
	}

	fetchTime := time.Now()
	for !coordinator.ShouldShutdown() {
		if time.Now().Before(fetchTime) {
			time.Sleep(time.Second)
			continue
		}

		fetcher := New(state, strategy)
		// Later rounds pick the cursor up from state instead of starting over.
		strategy.StartDate = time.Time{}

		if err := fetcher.Fetch(base); err != nil {
			logger.Error().Err(err).Msg("failed to fetch repositories")
		} else {
			fetchTime = time.Now().Add(period)
		}
	}

	return nil
}
