package statuschecker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersinvald/rustyrobot/pkg/types"
)

func TestPRCreatedQueuesStatusCheck(t *testing.T) {
	repo := &types.Repository{
		ID: "id-fork",
		Stats: &types.Stats{
			PRs: []types.PullRequest{{Number: 17, Status: types.PROpen}},
		},
	}

	var requests []types.Request
	err := Handle(types.Event{PRCreated: repo}, func(req types.Request) {
		requests = append(requests, req)
	})
	require.NoError(t, err)

	require.Len(t, requests, 1)
	require.NotNil(t, requests[0].CheckPRStatus)
	assert.Equal(t, "id-fork", requests[0].CheckPRStatus.ID)
}

func TestOtherEventsAreIgnored(t *testing.T) {
	err := Handle(types.Event{RepositoryFetched: &types.Repository{}}, func(types.Request) {
		t.Fatal("nothing should be emitted")
	})
	assert.NoError(t, err)
}
