package engine

import (
	"encoding/json"

	"github.com/starford/ansuz/internal/dql"
	"github.com/starford/ansuz/internal/value"
)

// Entry is one flat result row.
type Entry struct {
	FilePath    string        `json:"filePath"`
	FileName    string        `json:"fileName"`
	Frontmatter value.Value   `json:"frontmatter"`
	Cells       []value.Value `json:"cells"`
}

// Group is one GROUP BY bucket.
type Group struct {
	Key   value.Value   `json:"key"`
	Rows  []Entry       `json:"rows"`
	Cells []value.Value `json:"cells"`
}

// Result is the output of one query. Entries is empty when the query is
// grouped; Groups is nil when it is not.
type Result struct {
	Query      *dql.Query
	Headers    []string
	Entries    []Entry
	Groups     []Group
	TotalCount int
}

// MarshalJSON omits "groups" for ungrouped queries but keeps an empty list
// for grouped queries that matched nothing.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Query      *dql.Query `json:"query"`
		Headers    []string   `json:"headers"`
		Entries    []Entry    `json:"entries"`
		Groups     *[]Group   `json:"groups,omitempty"`
		TotalCount int        `json:"totalCount"`
	}{
		Query:      r.Query,
		Headers:    r.Headers,
		Entries:    r.Entries,
		TotalCount: r.TotalCount,
	}
	if out.Headers == nil {
		out.Headers = []string{}
	}
	if out.Entries == nil {
		out.Entries = []Entry{}
	}
	if r.Query != nil && r.Query.Grouped() {
		groups := r.Groups
		if groups == nil {
			groups = []Group{}
		}
		out.Groups = &groups
	}
	return json.Marshal(out)
}

// Rows returns the number of displayed rows: groups when grouped, entries
// otherwise.
func (r *Result) Rows() int {
	if r.Query != nil && r.Query.Grouped() {
		return len(r.Groups)
	}
	return len(r.Entries)
}
