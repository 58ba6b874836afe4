package forker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersinvald/rustyrobot/pkg/types"
)

func TestFetchedRepositoryBecomesForkRequest(t *testing.T) {
	repo := &types.Repository{ID: "id-1", NameWithOwner: "owner/project"}

	var requests []types.Request
	err := Handle(types.Event{RepositoryFetched: repo}, func(req types.Request) {
		requests = append(requests, req)
	})
	require.NoError(t, err)

	require.Len(t, requests, 1)
	require.NotNil(t, requests[0].Fork)
	assert.Equal(t, "owner/project", requests[0].Fork.NameWithOwner)
}

func TestOtherEventsAreIgnored(t *testing.T) {
	repo := &types.Repository{ID: "id-1"}

	var requests []types.Request
	err := Handle(types.Event{RepositoryForked: repo}, func(req types.Request) {
		requests = append(requests, req)
	})
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestWants(t *testing.T) {
	repo := &types.Repository{}
	assert.True(t, Wants(types.Event{RepositoryFetched: repo}))
	assert.False(t, Wants(types.Event{RepositoryForked: repo}))
	assert.False(t, Wants(types.Event{}))
}
