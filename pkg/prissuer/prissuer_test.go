package prissuer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersinvald/rustyrobot/pkg/kafka"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

func formattedRepo() *types.Repository {
	return &types.Repository{
		ID:            "id-fork",
		NameWithOwner: "rustyrobot/project",
		Stats: &types.Stats{
			Format: &types.FormatStats{
				FilesChanged: 3,
				Branch:       "rustyrobot_suggested_formatting",
			},
		},
	}
}

func TestFormattedRepositoryBecomesCreatePR(t *testing.T) {
	var requests []types.Request
	err := Handle(types.Event{RepositoryFormatted: formattedRepo()}, func(req types.Request) {
		requests = append(requests, req)
	})
	require.NoError(t, err)

	require.Len(t, requests, 1)
	pr := requests[0].CreatePR
	require.NotNil(t, pr)
	assert.Equal(t, "rustyrobot_suggested_formatting", pr.Branch)
	assert.Equal(t, "Formatting Suggestions", pr.Title)
	assert.NotEmpty(t, pr.Message)
}

func TestMissingStatsIsInternal(t *testing.T) {
	repo := formattedRepo()
	repo.Stats = nil

	err := Handle(types.Event{RepositoryFormatted: repo}, func(types.Request) {
		t.Fatal("nothing should be emitted")
	})
	require.Error(t, err)
	assert.Equal(t, kafka.KindInternal, kafka.Classify(err))
}

func TestMissingFormatStatsIsInternal(t *testing.T) {
	repo := formattedRepo()
	repo.Stats.Format = nil

	err := Handle(types.Event{RepositoryFormatted: repo}, func(types.Request) {
		t.Fatal("nothing should be emitted")
	})
	require.Error(t, err)
	assert.Equal(t, kafka.KindInternal, kafka.Classify(err))
}

func TestOtherEventsAreIgnored(t *testing.T) {
	err := Handle(types.Event{ForkDeleted: &types.Repository{}}, func(types.Request) {
		t.Fatal("nothing should be emitted")
	})
	assert.NoError(t, err)
}
