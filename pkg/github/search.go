package github

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mersinvald/rustyrobot/pkg/search"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

// PageInfo carries the paging cursor of one search page.
type PageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// SearchResult is one page of repository search results.
type SearchResult struct {
	PageInfo        PageInfo           `json:"pageInfo"`
	RepositoryCount int                `json:"repositoryCount"`
	Nodes           []types.Repository `json:"nodes"`
}

// repoSearchQuery is the GraphQL document for one search page. $ARGS$ is
// replaced with the rendered argument list; the rateLimit section keeps the
// client's snapshot current without a separate probe.
const repoSearchQuery = `
query {
	rateLimit {
		limit
		remaining
		resetAt
	}
	search($ARGS$) {
		pageInfo {
			endCursor
			hasNextPage
		}
		repositoryCount
		nodes {
			... on Repository {
				id
				nameWithOwner
				description
				sshUrl
				url
				defaultBranchRef {
					name
				}
				createdAt
				parent {
					nameWithOwner
					sshUrl
					url
				}
				hasIssuesEnabled
				isFork
			}
		}
	}
}`

// Search runs one page of a repository search.
func Search(client *V4, query search.Query) (*SearchResult, error) {
	document := strings.Replace(uglify(repoSearchQuery), "$ARGS$", query.ArgList(), 1)

	data, err := client.Request("search", document, "data", "search")
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search result: %w", err)
	}
	return &result, nil
}

// uglify collapses a readable GraphQL document onto one line.
func uglify(document string) string {
	lines := strings.Split(document, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, " ")
}
