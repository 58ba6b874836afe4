package shutdown

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersinvald/rustyrobot/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
}

func TestShutdownFlagIsMonotonic(t *testing.T) {
	c := New()
	assert.False(t, c.ShouldShutdown())

	c.Shutdown()
	assert.True(t, c.ShouldShutdown())

	// Requesting again keeps the flag set.
	c.Shutdown()
	assert.True(t, c.ShouldShutdown())
}

func TestStartedRegistersAndReleaseDeregisters(t *testing.T) {
	c := New()

	lock := c.Started("consumer loop")
	require.Equal(t, []string{"consumer loop"}, c.Running())

	lock.Release()
	assert.Empty(t, c.Running())

	// Release is idempotent.
	lock.Release()
	assert.Empty(t, c.Running())
}

func TestStartedPanicsOnNameCollision(t *testing.T) {
	c := New()
	lock := c.Started("flusher")
	defer lock.Release()

	assert.Panics(t, func() {
		c.Started("flusher")
	})
}

func TestRunningListsAllSlots(t *testing.T) {
	c := New()
	a := c.Started("a")
	b := c.Started("b")
	defer a.Release()
	defer b.Release()

	assert.ElementsMatch(t, []string{"a", "b"}, c.Running())
}

func TestSlotNameFreedAfterRelease(t *testing.T) {
	c := New()
	lock := c.Started("restore consumer")
	lock.Release()

	assert.NotPanics(t, func() {
		c.Started("restore consumer").Release()
	})
}
