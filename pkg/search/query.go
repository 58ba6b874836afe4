package search

import (
	"fmt"
	"strings"
)

// SearchFor is the closed set of search targets the pipeline understands.
type SearchFor string

const (
	SearchForRepository SearchFor = "REPOSITORY"
)

// Lang restricts a search to one implementation language.
type Lang string

const (
	LangRust Lang = "Rust"
)

func (l Lang) querySegment() string {
	return "language:" + string(l)
}

// Query is a complete, validated search specification.
type Query struct {
	SearchFor SearchFor `json:"searchFor"`
	RawQuery  string    `json:"rawQuery,omitempty"`
	Count     int       `json:"count"`
	After     *string   `json:"after,omitempty"`
}

// Builder accumulates query fragments and validates on Build.
type Builder struct {
	searchFor SearchFor
	fragments []string
	count     int
	countSet  bool
	after     *string
}

// NewQuery starts a query builder.
func NewQuery() Builder {
	return Builder{}
}

// Builder returns a builder pre-populated from the query, used to append a
// paging cursor or extra fragments to an existing specification.
func (q Query) Builder() Builder {
	b := Builder{
		searchFor: q.SearchFor,
		count:     q.Count,
		countSet:  true,
		after:     q.After,
	}
	if q.RawQuery != "" {
		b.fragments = []string{q.RawQuery}
	}
	return b
}

// SearchFor sets the search target.
func (b Builder) SearchFor(t SearchFor) Builder {
	b.searchFor = t
	return b
}

// RawQuery appends a raw query fragment. Fragments are space-joined.
func (b Builder) RawQuery(fragment string) Builder {
	b.fragments = append(b.fragments[:len(b.fragments):len(b.fragments)], fragment)
	return b
}

// Lang appends a language restriction fragment.
func (b Builder) Lang(lang Lang) Builder {
	return b.RawQuery(lang.querySegment())
}

// Owner appends a user restriction fragment.
func (b Builder) Owner(owner string) Builder {
	return b.RawQuery("user:" + owner)
}

// Count sets the page size. Valid range is 1..100.
func (b Builder) Count(count int) Builder {
	b.count = count
	b.countSet = true
	return b
}

// After sets the paging cursor.
func (b Builder) After(cursor string) Builder {
	b.after = &cursor
	return b
}

// Build validates the accumulated specification. An unset count defaults to
// 10; an explicit count outside 1..100 is rejected.
func (b Builder) Build() (Query, error) {
	count := b.count
	if !b.countSet {
		count = 10
	}
	if count < 1 || count > 100 {
		return Query{}, fmt.Errorf("search: count must be in 1..100, got %d", count)
	}
	if b.searchFor == "" {
		return Query{}, fmt.Errorf("search: target is not defined")
	}
	return Query{
		SearchFor: b.searchFor,
		RawQuery:  strings.Join(b.fragments, " "),
		Count:     count,
		After:     b.after,
	}, nil
}

// ArgList renders the query as a GraphQL search argument list.
func (q Query) ArgList() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "type: %s, first: %d", q.SearchFor, q.Count)
	if q.RawQuery != "" {
		fmt.Fprintf(&sb, ", query: %q", q.RawQuery)
	}
	if q.After != nil {
		fmt.Fprintf(&sb, ", after: %q", *q.After)
	}
	return sb.String()
}
