package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersinvald/rustyrobot/pkg/search"
)

// graphqlStub answers the construction probes (login, rateLimit) and routes
// search queries to onSearch.
type graphqlStub struct {
	t        *testing.T
	onSearch func(w http.ResponseWriter, query string)
	searches int
}

func (s *graphqlStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&body))

	switch {
	case strings.Contains(body.Query, "viewer"):
		fmt.Fprint(w, `{"data": {"viewer": {"login": "rustyrobot"}}}`)
	case strings.Contains(body.Query, "search("):
		s.searches++
		s.onSearch(w, body.Query)
	case strings.Contains(body.Query, "rateLimit"):
		fmt.Fprintf(w, `{"data": {"rateLimit": {"limit": 5000, "remaining": 4998, "resetAt": %q}}}`,
			time.Now().Add(time.Hour).Format(time.RFC3339))
	default:
		s.t.Fatalf("unexpected query: %s", body.Query)
	}
}

func newTestV4(t *testing.T, stub *graphqlStub) *V4 {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	client, err := NewV4("test-token", WithV4Endpoint(server.URL))
	require.NoError(t, err)
	return client
}

func TestV4ResolvesLoginAndRateLimitOnConstruction(t *testing.T) {
	client := newTestV4(t, &graphqlStub{t: t})

	assert.Equal(t, "rustyrobot", client.Login())

	limits := client.Limits()
	assert.Equal(t, 5000, limits.Limit)
	assert.Equal(t, 4998, limits.Remaining)
	assert.Equal(t, 2, limits.Used)
}

func searchPage(cursor string, hasNext bool, names ...string) string {
	nodes := make([]string, len(names))
	for i, name := range names {
		nodes[i] = fmt.Sprintf(`{
			"id": "id-%s",
			"nameWithOwner": %q,
			"sshUrl": "git@github.com:%s.git",
			"url": "https://github.com/%s",
			"defaultBranchRef": {"name": "master"},
			"createdAt": "2018-08-10T00:00:00Z",
			"hasIssuesEnabled": true,
			"isFork": false
		}`, name, name, name, name)
	}
	return fmt.Sprintf(`{"data": {"search": {
		"pageInfo": {"endCursor": %q, "hasNextPage": %t},
		"repositoryCount": %d,
		"nodes": [%s]
	}}}`, cursor, hasNext, len(names), strings.Join(nodes, ","))
}

func TestSearchDecodesRepositories(t *testing.T) {
	stub := &graphqlStub{t: t}
	stub.onSearch = func(w http.ResponseWriter, query string) {
		assert.Contains(t, query, `type: REPOSITORY, first: 100, query: "language:Rust"`)
		fmt.Fprint(w, searchPage("cursor-1", false, "owner/one", "owner/two"))
	}
	client := newTestV4(t, stub)

	query, err := search.NewQuery().
		SearchFor(search.SearchForRepository).
		Lang(search.LangRust).
		Count(100).
		Build()
	require.NoError(t, err)

	result, err := Search(client, query)
	require.NoError(t, err)

	assert.Equal(t, 2, result.RepositoryCount)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, "owner/one", result.Nodes[0].NameWithOwner)
	assert.Equal(t, "master", result.Nodes[0].DefaultBranch.Name)
	assert.False(t, result.PageInfo.HasNextPage)
}

func TestV4RetriesAfterRateLimitRejection(t *testing.T) {
	rejected := false
	stub := &graphqlStub{t: t}
	stub.onSearch = func(w http.ResponseWriter, query string) {
		if !rejected {
			rejected = true
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "API rate limit exceeded for user"}`)
			return
		}
		fmt.Fprint(w, searchPage("", false, "owner/one"))
	}
	client := newTestV4(t, stub)

	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	query, err := search.NewQuery().SearchFor(search.SearchForRepository).Count(10).Build()
	require.NoError(t, err)

	result, err := Search(client, query)
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 1)
	assert.Equal(t, 2, stub.searches)
	assert.Len(t, slept, 1, "one sleep for the rejected attempt")
}

func TestV4AdmissionWaitsForResetWindow(t *testing.T) {
	stub := &graphqlStub{t: t}
	stub.onSearch = func(w http.ResponseWriter, query string) {
		fmt.Fprint(w, searchPage("", false))
	}
	client := newTestV4(t, stub)

	now := time.Now()
	client.now = func() time.Time { return now }

	var slept time.Duration
	client.sleep = func(d time.Duration) { slept += d }

	// Exhausted quota with the reset two seconds ahead: the call must wait
	// out the window before going to the wire, and complete exactly once.
	client.limit.set(RateLimit{Limit: 5000, Remaining: 0, ResetAt: now.Add(2 * time.Second)})

	query, err := search.NewQuery().SearchFor(search.SearchForRepository).Count(10).Build()
	require.NoError(t, err)

	_, err = Search(client, query)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, slept, 2*time.Second)
	assert.Equal(t, 1, stub.searches)
}

func TestV4SearchPiggybacksRateLimitSnapshot(t *testing.T) {
	stub := &graphqlStub{t: t}
	stub.onSearch = func(w http.ResponseWriter, query string) {
		fmt.Fprintf(w, `{"data": {
			"rateLimit": {"limit": 5000, "remaining": 1234, "resetAt": %q},
			"search": {"pageInfo": {"endCursor": null, "hasNextPage": false}, "repositoryCount": 0, "nodes": []}
		}}`, time.Now().Add(time.Hour).Format(time.RFC3339))
	}
	client := newTestV4(t, stub)

	query, err := search.NewQuery().SearchFor(search.SearchForRepository).Count(10).Build()
	require.NoError(t, err)

	_, err = Search(client, query)
	require.NoError(t, err)
	assert.Equal(t, 1234, client.Limits().Remaining)
}

func TestV4EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	_, err := NewV4("test-token", WithV4Endpoint(server.URL))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
