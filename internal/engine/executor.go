package engine

import (
	"slices"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/dql"
	"github.com/starford/ansuz/internal/metaindex"
	"github.com/starford/ansuz/internal/value"
)

// Options tune query execution.
type Options struct {
	// EmptyMarker is rendered by dateformat for non-date values.
	EmptyMarker string
	// DefaultLimit caps queries without a LIMIT clause. Zero means no cap.
	DefaultLimit int
	// Now anchors date(today) and friends. Zero means time.Now().
	Now time.Time
}

// IDHeader is the header of the implicit identity column.
const IDHeader = "File"

// Execute runs q against idx. It only fails when idx is nil; every
// per-row problem degrades to an undefined cell.
func Execute(idx *metaindex.Index, q *dql.Query, opts Options) (*Result, error) {
	if idx == nil {
		return nil, apperr.ErrIndexNotReady
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.EmptyMarker == "" {
		opts.EmptyMarker = DefaultEmptyMarker
	}
	ex := &executor{idx: idx, q: q, opts: opts, ev: &evaluator{idx: idx, now: opts.Now}}

	rows := ex.filter(ex.selectCandidates())
	limit, capped := ex.limit()
	res := &Result{Query: q, Headers: ex.headers(), Entries: []Entry{}}
	if q.Grouped() {
		groups := ex.sortGroups(ex.group(rows))
		res.TotalCount = len(groups)
		groups = truncate(groups, limit, capped)
		res.Groups = make([]Group, len(groups))
		for i, g := range groups {
			res.Groups[i] = ex.assembleGroup(g)
		}
		return res, nil
	}

	rows = ex.sortRows(rows)
	res.TotalCount = len(rows)
	rows = truncate(rows, limit, capped)
	res.Entries = make([]Entry, len(rows))
	for i, r := range rows {
		res.Entries[i] = ex.assembleEntry(rowScope{rec: r})
	}
	return res, nil
}

type executor struct {
	idx  *metaindex.Index
	q    *dql.Query
	opts Options
	ev   *evaluator
}

type bucket struct {
	key  value.Value
	rows []*metaindex.Record
}

func (ex *executor) selectCandidates() []*metaindex.Record {
	all := ex.idx.Records()
	if ex.q.From == nil {
		return all
	}
	out := make([]*metaindex.Record, 0, len(all))
	for _, r := range all {
		if matchSource(ex.idx, ex.q.From, r) {
			out = append(out, r)
		}
	}
	return out
}

func (ex *executor) filter(rows []*metaindex.Record) []*metaindex.Record {
	if ex.q.Where == nil {
		return rows
	}
	out := make([]*metaindex.Record, 0, len(rows))
	for _, r := range rows {
		if ex.ev.eval(ex.q.Where, rowScope{rec: r}).Truthy() {
			out = append(out, r)
		}
	}
	return out
}

// group buckets rows by the group-by value, keeping first-seen key order.
// Rows with an undefined key form their own bucket.
func (ex *executor) group(rows []*metaindex.Record) []*bucket {
	var order []*bucket
	byKey := make(map[string]*bucket)
	for _, r := range rows {
		key := Resolve(r, ex.q.GroupBy)
		k := key.Key()
		b, ok := byKey[k]
		if !ok {
			b = &bucket{key: key}
			byKey[k] = b
			order = append(order, b)
		}
		b.rows = append(b.rows, r)
	}
	return order
}

// limit returns the row cap and whether one applies.
func (ex *executor) limit() (int, bool) {
	if ex.q.HasLimit {
		return ex.q.Limit, true
	}
	return ex.opts.DefaultLimit, ex.opts.DefaultLimit > 0
}

func truncate[T any](items []T, limit int, ok bool) []T {
	if ok && len(items) > limit {
		return items[:limit]
	}
	return items
}

// sortColumn lets a sort key name a column alias.
func (ex *executor) sortColumn(k dql.SortKey) dql.Column {
	if k.Func == dql.FuncNone {
		for _, c := range ex.q.Columns {
			if c.Alias != "" && c.Alias == k.Field {
				return c
			}
		}
	}
	return k.Column
}

func (ex *executor) sortRows(rows []*metaindex.Record) []*metaindex.Record {
	if len(ex.q.Sort) == 0 {
		return rows
	}
	return stableSort(rows, ex.q.Sort, func(r *metaindex.Record) Scope { return rowScope{rec: r} }, ex)
}

func (ex *executor) sortGroups(groups []*bucket) []*bucket {
	if len(ex.q.Sort) == 0 {
		return groups
	}
	return stableSort(groups, ex.q.Sort, ex.groupScope, ex)
}

func (ex *executor) groupScope(b *bucket) Scope {
	return groupScope{groupBy: ex.q.GroupBy, key: b.key, rows: b.rows}
}

// stableSort orders items by keys. Undefined sorts after every defined value
// regardless of direction; ties keep their input order.
func stableSort[T any](items []T, keys []dql.SortKey, scope func(T) Scope, ex *executor) []T {
	type keyed struct {
		item T
		vals []value.Value
	}
	rows := make([]keyed, len(items))
	for i, it := range items {
		s := scope(it)
		vals := make([]value.Value, len(keys))
		for j, k := range keys {
			vals[j] = columnValue(s, ex.sortColumn(k), ex.opts.EmptyMarker)
		}
		rows[i] = keyed{item: it, vals: vals}
	}
	slices.SortStableFunc(rows, func(a, b keyed) int {
		for j, k := range keys {
			av, bv := a.vals[j], b.vals[j]
			switch {
			case av.IsUndefined() && bv.IsUndefined():
				continue
			case av.IsUndefined():
				return 1
			case bv.IsUndefined():
				return -1
			}
			c := value.Compare(av, bv)
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.item
	}
	return out
}

func (ex *executor) headers() []string {
	q := ex.q
	var hs []string
	if !q.WithoutID || (q.Type == dql.List && len(q.Columns) == 0) {
		if q.Grouped() {
			hs = append(hs, q.GroupBy)
		} else {
			hs = append(hs, IDHeader)
		}
	}
	for _, c := range q.Columns {
		hs = append(hs, c.Header())
	}
	return hs
}

func (ex *executor) cells(s Scope, id value.Value) []value.Value {
	q := ex.q
	cells := make([]value.Value, 0, len(q.Columns)+1)
	if !q.WithoutID || (q.Type == dql.List && len(q.Columns) == 0) {
		cells = append(cells, id)
	}
	for _, c := range q.Columns {
		cells = append(cells, columnValue(s, c, ex.opts.EmptyMarker))
	}
	return cells
}

func (ex *executor) assembleEntry(s rowScope) Entry {
	return Entry{
		FilePath:    s.rec.Path,
		FileName:    s.rec.Name,
		Frontmatter: s.rec.Frontmatter,
		Cells:       ex.cells(s, value.LinkTo(s.rec.Link())),
	}
}

func (ex *executor) assembleGroup(b *bucket) Group {
	g := Group{Key: b.key, Rows: make([]Entry, len(b.rows))}
	for i, r := range b.rows {
		g.Rows[i] = ex.assembleEntry(rowScope{rec: r, groupBy: ex.q.GroupBy, key: b.key})
	}
	g.Cells = ex.cells(ex.groupScope(b), b.key)
	return g
}
