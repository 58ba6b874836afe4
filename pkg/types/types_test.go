package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRepo() *Repository {
	return &Repository{
		ID:            "MDEwOlJlcG9zaXRvcnkx",
		NameWithOwner: "upstream/project",
		SSHURL:        "git@github.com:upstream/project.git",
		URL:           "https://github.com/upstream/project",
		DefaultBranch: BranchRef{Name: "master"},
		CreatedAt:     time.Date(2018, 8, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestEventIsExternallyTagged(t *testing.T) {
	event := Event{RepositoryFetched: sampleRepo()}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Len(t, wire, 1)
	_, ok := wire["RepositoryFetched"]
	assert.True(t, ok, "variant name must be the single top-level key")

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "RepositoryFetched", decoded.Tag())
	assert.Equal(t, "upstream/project", decoded.RepositoryFetched.NameWithOwner)
}

func TestRequestTags(t *testing.T) {
	tests := []struct {
		name    string
		request Request
		tag     string
	}{
		{"fetch", Request{Fetch: &FetchRequest{}}, "Fetch"},
		{"fork", Request{Fork: sampleRepo()}, "Fork"},
		{"delete", Request{DeleteFork: sampleRepo()}, "DeleteFork"},
		{"create pr", Request{CreatePR: &CreatePRRequest{}}, "CreatePR"},
		{"notifications", Request{FetchNotifications: &struct{}{}}, "FetchNotifications"},
		{"check status", Request{CheckPRStatus: sampleRepo()}, "CheckPRStatus"},
		{"empty", Request{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tag, tt.request.Tag())
		})
	}
}

func TestOwnerName(t *testing.T) {
	repo := sampleRepo()
	assert.Equal(t, "upstream", repo.Owner())
	assert.Equal(t, "project", repo.Name())
}

func TestDeriveFork(t *testing.T) {
	parent := sampleRepo()
	payload := []byte(`{
		"id": 134625150,
		"full_name": "rustyrobot/project",
		"description": "a project",
		"html_url": "https://github.com/rustyrobot/project",
		"ssh_url": "git@github.com:rustyrobot/project.git",
		"default_branch": "master",
		"has_issues": false,
		"created_at": "2018-08-11T09:00:00Z"
	}`)

	fork, err := DeriveFork(parent, payload)
	require.NoError(t, err)

	assert.True(t, fork.IsFork)
	require.NotNil(t, fork.Parent)
	assert.Equal(t, "upstream/project", fork.Parent.NameWithOwner)
	assert.Equal(t, parent.SSHURL, fork.Parent.SSHURL)

	assert.Equal(t, "134625150", fork.ID)
	assert.Equal(t, "rustyrobot/project", fork.NameWithOwner)
	assert.Equal(t, "git@github.com:rustyrobot/project.git", fork.SSHURL)
	assert.Equal(t, "master", fork.DefaultBranch.Name)
	assert.False(t, fork.HasIssuesEnabled)
	require.NotNil(t, fork.Description)
	assert.Equal(t, "a project", *fork.Description)

	// The parent itself is untouched.
	assert.False(t, parent.IsFork)
	assert.Nil(t, parent.Parent)
}

func TestDeriveForkRejectsGarbage(t *testing.T) {
	_, err := DeriveFork(sampleRepo(), []byte(`"not an object"`))
	assert.Error(t, err)

	_, err = DeriveFork(sampleRepo(), []byte(`{}`))
	assert.Error(t, err)
}

func TestStatsHasPR(t *testing.T) {
	var stats *Stats
	assert.False(t, stats.HasPR(1))

	stats = &Stats{PRs: []PullRequest{{Number: 7, Status: PROpen}}}
	assert.True(t, stats.HasPR(7))
	assert.False(t, stats.HasPR(8))
}
