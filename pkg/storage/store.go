package storage

import "github.com/mersinvald/rustyrobot/pkg/types"

// ArchivedEvent is one event as persisted by the dumper.
type ArchivedEvent struct {
	ID    string      `json:"id"`
	Key   string      `json:"key"`
	Event types.Event `json:"event"`
}

// Store is the interface for the local event archive, implemented by the
// BoltDB-backed store.
type Store interface {
	AppendEvent(event *ArchivedEvent) error
	GetEvent(id string) (*ArchivedEvent, error)
	ListEvents(tag string) ([]*ArchivedEvent, error)
	CountEvents() (int, error)

	Close() error
}
