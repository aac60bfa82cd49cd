// Package engine executes parsed queries against a metadata index snapshot.
package engine

import (
	"strings"

	"github.com/starford/ansuz/internal/metaindex"
	"github.com/starford/ansuz/internal/value"
)

// Scope resolves dotted field paths for one row.
type Scope interface {
	Field(path string) value.Value
}

// Resolve looks up path on rec. "file.*" names come from the record's
// virtual fields; anything else walks the frontmatter one segment at a time.
// Misses resolve to undefined.
func Resolve(rec *metaindex.Record, path string) value.Value {
	if rec == nil || path == "" {
		return value.Undefined
	}
	if path == "file" {
		return rec.File()
	}
	if name, ok := strings.CutPrefix(path, "file."); ok {
		v, _ := rec.Virtual(name)
		return v
	}
	cur := rec.Frontmatter
	for _, seg := range strings.Split(path, ".") {
		next, ok := cur.Get(seg)
		if !ok {
			return value.Undefined
		}
		cur = next
	}
	return cur
}

// rowScope resolves fields of a single document. Inside a group the group-by
// field resolves to the group key.
type rowScope struct {
	rec     *metaindex.Record
	groupBy string
	key     value.Value
}

func (s rowScope) Field(path string) value.Value {
	if s.groupBy != "" && path == s.groupBy {
		return s.key
	}
	return Resolve(s.rec, path)
}

// groupScope resolves fields of a whole group: the group-by field (or "key")
// is the key, "rows" is the member links and "rows.<f>" lists f per member.
type groupScope struct {
	groupBy string
	key     value.Value
	rows    []*metaindex.Record
}

func (s groupScope) Field(path string) value.Value {
	switch {
	case path == s.groupBy, path == "key":
		return s.key
	case path == "rows":
		items := make([]value.Value, len(s.rows))
		for i, r := range s.rows {
			items[i] = value.LinkTo(r.Link())
		}
		return value.List(items...)
	}
	if field, ok := strings.CutPrefix(path, "rows."); ok {
		items := make([]value.Value, len(s.rows))
		for i, r := range s.rows {
			items[i] = rowScope{rec: r, groupBy: s.groupBy, key: s.key}.Field(field)
		}
		return value.List(items...)
	}
	return value.Undefined
}
