package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	messages []kafkago.Message
	failures int
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.failures > 0 {
		w.failures--
		return errors.New("broker queue full")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func newTestStore(writer stateWriter) *Store {
	store := NewStore(DefaultConfig(), "rustyrobot.test.state")
	store.writer = writer
	return store
}

func deltaMap(store *Store) map[string]string {
	delta := make(map[string]string)
	for _, change := range store.Delta() {
		delta[change.Key] = string(change.Value)
	}
	return delta
}

func TestDelta(t *testing.T) {
	store := newTestStore(&captureWriter{})

	require.NoError(t, store.Set("delta_key_1", 1))
	assert.Equal(t, map[string]string{"delta_key_1": "1"}, deltaMap(store))

	require.NoError(t, store.Set("delta_key_2", 2))
	assert.Equal(t, map[string]string{"delta_key_1": "1", "delta_key_2": "2"}, deltaMap(store))

	require.NoError(t, store.Set("delta_key_2", 1))
	assert.Equal(t, map[string]string{"delta_key_1": "1", "delta_key_2": "1"}, deltaMap(store))

	require.NoError(t, store.Sync())
	assert.Empty(t, store.Delta())

	// Re-setting an unchanged value produces no delta entry.
	require.NoError(t, store.Set("delta_key_1", 1))
	assert.Empty(t, store.Delta())

	require.NoError(t, store.Set("delta_key_2", 2))
	assert.Equal(t, map[string]string{"delta_key_2": "2"}, deltaMap(store))
}

func TestSyncPublishesDeltaAndAdvancesSnapshot(t *testing.T) {
	writer := &captureWriter{}
	store := newTestStore(writer)

	require.NoError(t, store.Set("key1", "helloworld"))
	require.NoError(t, store.Set("key2", 12345))
	require.NoError(t, store.Sync())

	require.Len(t, writer.messages, 2)
	published := make(map[string]string)
	for _, msg := range writer.messages {
		published[string(msg.Key)] = string(msg.Value)
	}
	assert.Equal(t, `"helloworld"`, published["key1"])
	assert.Equal(t, `12345`, published["key2"])

	// Unchanged state publishes nothing.
	require.NoError(t, store.Sync())
	assert.Len(t, writer.messages, 2)
}

func TestSyncRetriesPublish(t *testing.T) {
	writer := &captureWriter{failures: 2}
	store := newTestStore(writer)

	require.NoError(t, store.Set("key", "value"))
	require.NoError(t, store.Sync())
	assert.Len(t, writer.messages, 1)
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	writer := &captureWriter{}
	store := newTestStore(writer)

	require.NoError(t, store.Set("key1", "helloworld"))
	require.NoError(t, store.Set("key2", 12345))
	require.NoError(t, store.Set("key3", []int{1, 2, 3, 4, 5}))
	require.NoError(t, store.Sync())

	// A fresh store materialized from the published log sees the same
	// values.
	restored := newTestStore(&captureWriter{})
	for _, msg := range writer.messages {
		require.NoError(t, restored.apply(msg.Key, msg.Value))
	}
	restored.new = make(map[string]json.RawMessage, len(restored.old))
	for key, value := range restored.old {
		restored.new[key] = value
	}

	assert.Equal(t, "helloworld", restored.GetString("key1"))
	assert.Equal(t, int64(12345), restored.GetInt64("key2"))
	var list []int
	require.NoError(t, restored.Get("key3", &list))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, list)

	// Restored state is the new baseline: no delta until a change lands.
	assert.Empty(t, restored.Delta())
}

func TestApplyRejectsMalformedStateChanges(t *testing.T) {
	store := newTestStore(&captureWriter{})

	assert.Error(t, store.apply(nil, []byte(`1`)))
	assert.Error(t, store.apply([]byte("key"), nil))
	assert.Error(t, store.apply([]byte("key"), []byte{0xDE}))
}

func TestIncrement(t *testing.T) {
	store := newTestStore(&captureWriter{})

	store.Increment("requests received")
	store.Increment("requests received")
	store.Increment("requests received")
	assert.Equal(t, int64(3), store.GetInt64("requests received"))

	// Unset counters start from zero.
	assert.Equal(t, int64(0), store.GetInt64("repositories fetched"))
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(&captureWriter{})

	var out string
	assert.Error(t, store.Get("absent", &out))
	assert.Equal(t, "", store.GetString("absent"))
}
