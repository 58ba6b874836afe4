package fetcher

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/search"
	"github.com/mersinvald/rustyrobot/pkg/shutdown"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
}

type fakeStore struct {
	values map[string]string
	syncs  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (s *fakeStore) Set(key string, value any) error {
	s.values[key] = value.(string)
	return nil
}

func (s *fakeStore) GetString(key string) string {
	return s.values[key]
}

func (s *fakeStore) Sync() error {
	s.syncs++
	return nil
}

type fakeEmitter struct {
	requests []types.Request
}

func (e *fakeEmitter) Send(value any) error {
	e.requests = append(e.requests, value.(types.Request))
	return nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func baseQuery() search.Builder {
	return search.NewQuery().
		SearchFor(search.SearchForRepository).
		Lang(search.LangRust).
		Count(100)
}

func windowFragments(t *testing.T, requests []types.Request) []string {
	t.Helper()
	var fragments []string
	for _, req := range requests {
		require.NotNil(t, req.Fetch)
		raw := req.Fetch.Query.RawQuery
		idx := len(raw) - len("created:2018-01-01..2018-01-01")
		fragments = append(fragments, raw[idx:])
	}
	return fragments
}

func TestDateWindowEmitsOneRequestPerDay(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	state := &State{
		Shutdown: shutdown.New(),
		Store:    store,
		Producer: emitter,
	}

	strategy := DateWindow{
		DaysPerRequest: 1,
		StartDate:      date(2018, time.January, 1),
		EndDate:        date(2018, time.January, 3),
	}

	require.NoError(t, strategy.Execute(state, baseQuery()))

	require.Len(t, emitter.requests, 3)
	assert.Equal(t, []string{
		"created:2018-01-01..2018-01-01",
		"created:2018-01-02..2018-01-02",
		"created:2018-01-03..2018-01-03",
	}, windowFragments(t, emitter.requests))

	// The persisted cursor is the start of the final window.
	assert.Equal(t, "2018-01-03", store.GetString("last_date"))
	assert.Equal(t, 3, store.syncs)
}

func TestDateWindowMultiDayWindows(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	state := &State{Shutdown: shutdown.New(), Store: store, Producer: emitter}

	strategy := DateWindow{
		DaysPerRequest: 7,
		StartDate:      date(2018, time.January, 1),
		EndDate:        date(2018, time.January, 10),
	}

	require.NoError(t, strategy.Execute(state, baseQuery()))

	require.Len(t, emitter.requests, 2)
	assert.Equal(t, []string{
		"created:2018-01-01..2018-01-07",
		"created:2018-01-08..2018-01-14",
	}, windowFragments(t, emitter.requests))
	assert.Equal(t, "2018-01-08", store.GetString("last_date"))
}

func TestDateWindowResumesFromPersistedCursor(t *testing.T) {
	store := newFakeStore()
	store.values["last_date"] = "2018-01-02"
	emitter := &fakeEmitter{}
	state := &State{Shutdown: shutdown.New(), Store: store, Producer: emitter}

	strategy := DateWindow{
		DaysPerRequest: 1,
		EndDate:        date(2018, time.January, 3),
	}

	require.NoError(t, strategy.Execute(state, baseQuery()))

	assert.Equal(t, []string{
		"created:2018-01-02..2018-01-02",
		"created:2018-01-03..2018-01-03",
	}, windowFragments(t, emitter.requests))
}

func TestDateWindowStopsOnShutdown(t *testing.T) {
	coordinator := shutdown.New()
	coordinator.Shutdown()

	store := newFakeStore()
	emitter := &fakeEmitter{}
	state := &State{Shutdown: coordinator, Store: store, Producer: emitter}

	strategy := DateWindow{
		DaysPerRequest: 1,
		StartDate:      date(2018, time.January, 1),
		EndDate:        date(2018, time.January, 31),
	}

	require.NoError(t, strategy.Execute(state, baseQuery()))
	assert.Empty(t, emitter.requests)
}

func TestDateWindowRejectsZeroDays(t *testing.T) {
	state := &State{Shutdown: shutdown.New(), Store: newFakeStore(), Producer: &fakeEmitter{}}
	err := DateWindow{DaysPerRequest: 0}.Execute(state, baseQuery())
	assert.Error(t, err)
}

func TestSimpleEmitsSingleRequest(t *testing.T) {
	emitter := &fakeEmitter{}
	state := &State{Shutdown: shutdown.New(), Store: newFakeStore(), Producer: emitter}

	require.NoError(t, Simple{}.Execute(state, baseQuery()))

	require.Len(t, emitter.requests, 1)
	require.NotNil(t, emitter.requests[0].Fetch)
	assert.Equal(t, 100, emitter.requests[0].Fetch.Query.Count)
	assert.Equal(t, "language:Rust", emitter.requests[0].Fetch.Query.RawQuery)
}
