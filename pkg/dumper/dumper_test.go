package dumper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersinvald/rustyrobot/pkg/kafka"
	"github.com/mersinvald/rustyrobot/pkg/storage"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

func newBoltDumper(t *testing.T) (*Dumper, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

func TestEventsAreArchived(t *testing.T) {
	dumper, store := newBoltDumper(t)

	repo := &types.Repository{ID: "id-1", NameWithOwner: "owner/project"}
	require.NoError(t, dumper.Handle(types.Event{RepositoryFetched: repo}, nil))
	require.NoError(t, dumper.Handle(types.Event{RepositoryForked: repo}, nil))
	require.NoError(t, dumper.Handle(types.Event{RepositoryFetched: repo}, nil))

	count, err := store.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	fetched, err := store.ListEvents("RepositoryFetched")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, "id-1", fetched[0].Key)
	assert.Equal(t, "owner/project", fetched[0].Event.RepositoryFetched.NameWithOwner)

	forked, err := store.ListEvents("RepositoryForked")
	require.NoError(t, err)
	assert.Len(t, forked, 1)
}

func TestUnknownVariantIsBusinessError(t *testing.T) {
	dumper, store := newBoltDumper(t)

	err := dumper.Handle(types.Event{}, nil)
	require.Error(t, err)
	assert.Equal(t, kafka.KindOther, kafka.Classify(err))

	count, err := store.CountEvents()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestArchivedEventRoundTrip(t *testing.T) {
	dumper, store := newBoltDumper(t)

	repo := &types.Repository{ID: "id-9", NameWithOwner: "a/b"}
	require.NoError(t, dumper.Handle(types.Event{ForkDeleted: repo}, nil))

	all, err := store.ListEvents("")
	require.NoError(t, err)
	require.Len(t, all, 1)

	got, err := store.GetEvent(all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "ForkDeleted", got.Event.Tag())
}
