// Package dumper archives every event flowing through the bus into the
// local event store for offline inspection.
package dumper

import (
	"github.com/google/uuid"

	"github.com/mersinvald/rustyrobot/pkg/kafka"
	"github.com/mersinvald/rustyrobot/pkg/storage"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

// Dumper persists consumed events.
type Dumper struct {
	store storage.Store
}

// New creates a dumper over store.
func New(store storage.Store) *Dumper {
	return &Dumper{store: store}
}

// Handle archives one event. Emit is never called; the dumper is a sink.
// An archive write failure is service-level: losing the archive silently
// defeats its purpose, and redelivery after restart is harmless here.
func (d *Dumper) Handle(event types.Event, emit func(types.Event)) error {
	if event.Tag() == "" {
		return kafka.Otherf("event carries no known variant")
	}

	archived := &storage.ArchivedEvent{
		ID:    uuid.NewString(),
		Event: event,
	}
	if repo := event.Repo(); repo != nil {
		archived.Key = repo.ID
	}

	if err := d.store.AppendEvent(archived); err != nil {
		return kafka.Internal(err)
	}
	return nil
}
