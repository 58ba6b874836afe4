package shutdown

import (
	"fmt"
	"sync"

	"github.com/mersinvald/rustyrobot/pkg/log"
)

// Coordinator is the process-wide graceful shutdown primitive. It carries a
// monotonic shutdown flag and a registry of named running worker slots. All
// handles obtained from one Coordinator share the same underlying state.
type Coordinator struct {
	mu       sync.RWMutex
	workers  map[string]struct{}
	shutdown bool
}

// New creates a shutdown coordinator with no registered workers.
func New() *Coordinator {
	return &Coordinator{
		workers: make(map[string]struct{}),
	}
}

// Shutdown requests process shutdown. Once set the flag is never cleared.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
}

// ShouldShutdown reports whether shutdown has been requested. Long loops
// check this at every iteration boundary.
func (c *Coordinator) ShouldShutdown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shutdown
}

// Running lists the names of currently registered worker slots.
func (c *Coordinator) Running() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.workers))
	for name := range c.workers {
		names = append(names, name)
	}
	return names
}

// Started registers a named worker slot and returns its release lock.
// The caller must release the slot on every exit path:
//
//	lock := shutdown.Started("producer flusher")
//	defer lock.Release()
//
// A duplicate name is a programming error and panics.
func (c *Coordinator) Started(name string) *Lock {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.workers[name]; exists {
		panic(fmt.Sprintf("shutdown: worker name collision on %q", name))
	}
	c.workers[name] = struct{}{}
	log.Logger.Info().Str("worker", name).Msg("worker started")
	return &Lock{name: name, coordinator: c}
}

// Lock represents a registered worker slot. Release deregisters it.
type Lock struct {
	name        string
	coordinator *Coordinator
	once        sync.Once
}

// Release deregisters the worker slot. Safe to call more than once.
func (l *Lock) Release() {
	l.once.Do(func() {
		l.coordinator.mu.Lock()
		defer l.coordinator.mu.Unlock()
		delete(l.coordinator.workers, l.name)
		log.Logger.Info().Str("worker", l.name).Msg("worker stopped")
	})
}
