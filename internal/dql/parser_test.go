package dql

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/value"
)

func mustParse(t *testing.T, text string) *Query {
	t.Helper()
	q, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return q
}

func TestParse_TableColumns(t *testing.T) {
	q := mustParse(t, `TABLE status AS "State", length(tags) AS n, dateformat(file.mtime, "YYYY-MM-DD"), owner.name`)
	if q.Type != Table || q.WithoutID {
		t.Fatalf("type=%v withoutID=%v", q.Type, q.WithoutID)
	}
	want := []Column{
		{Field: "status", Alias: "State"},
		{Field: "tags", Alias: "n", Func: FuncLength},
		{Field: "file.mtime", Func: FuncDateFormat, Format: "YYYY-MM-DD"},
		{Field: "owner.name"},
	}
	if len(q.Columns) != len(want) {
		t.Fatalf("columns = %+v", q.Columns)
	}
	for i := range want {
		if q.Columns[i] != want[i] {
			t.Errorf("column[%d] = %+v, want %+v", i, q.Columns[i], want[i])
		}
	}
	if q.Columns[2].Header() != `dateformat(file.mtime, "YYYY-MM-DD")` {
		t.Errorf("header = %q", q.Columns[2].Header())
	}
}

func TestParse_WithoutIDAndClauses(t *testing.T) {
	q := mustParse(t, `table without id file.link, due from "projects" where status != "done" sort due desc, file.name limit 10`)
	if !q.WithoutID {
		t.Error("WITHOUT ID not set")
	}
	if f, ok := q.From.(FolderSource); !ok || f.Path != "projects" {
		t.Errorf("from = %#v", q.From)
	}
	if q.Where == nil || q.Where.String() != `(status != "done")` {
		t.Errorf("where = %v", q.Where)
	}
	if len(q.Sort) != 2 || !q.Sort[0].Desc || q.Sort[0].Field != "due" || q.Sort[1].Desc {
		t.Errorf("sort = %+v", q.Sort)
	}
	if !q.HasLimit || q.Limit != 10 {
		t.Errorf("limit = %d (%v)", q.Limit, q.HasLimit)
	}
}

func TestParse_ListOptionalColumn(t *testing.T) {
	q := mustParse(t, "LIST")
	if q.Type != List || len(q.Columns) != 0 {
		t.Errorf("q = %+v", q)
	}
	q = mustParse(t, "LIST file.mtime FROM #work")
	if len(q.Columns) != 1 || q.Columns[0].Field != "file.mtime" {
		t.Errorf("columns = %+v", q.Columns)
	}
	if _, err := Parse("LIST a, b"); err == nil {
		t.Error("LIST with two columns should fail")
	}
}

func TestParse_GroupByEitherOrder(t *testing.T) {
	a := mustParse(t, "TABLE length(rows) GROUP BY status SORT length(rows) DESC")
	b := mustParse(t, "TABLE length(rows) SORT length(rows) DESC GROUP BY status")
	for _, q := range []*Query{a, b} {
		if q.GroupBy != "status" || !q.Grouped() {
			t.Errorf("groupBy = %q", q.GroupBy)
		}
		if len(q.Sort) != 1 || q.Sort[0].Func != FuncLength || q.Sort[0].Field != "rows" {
			t.Errorf("sort = %+v", q.Sort)
		}
	}
}

func TestParse_Sources(t *testing.T) {
	q := mustParse(t, `LIST FROM #project/alpha and -"archive" or [[Roadmap|the plan]]`)
	want := `((#project/alpha and -"archive") or [[Roadmap]])`
	if got := q.From.String(); got != want {
		t.Errorf("from = %s, want %s", got, want)
	}
	q = mustParse(t, `LIST FROM ""`)
	if f, ok := q.From.(FolderSource); !ok || f.Path != "" {
		t.Errorf("from = %#v", q.From)
	}
	q = mustParse(t, `LIST FROM !(#a or #b)`)
	if _, ok := q.From.(NotSource); !ok {
		t.Errorf("from = %#v", q.From)
	}
}

func TestParse_WhereExpressions(t *testing.T) {
	cases := map[string]string{
		`x = 1 and y > -2.5`:                     `((x = 1) and (y > -2.5))`,
		`!done or not archived`:                  `(!done or !archived)`,
		`contains(file.tags, "work")`:            `contains(file.tags, "work")`,
		`due < date("2024-03-01")`:               `(due < date("2024-03-01"))`,
		`due <= date(today)`:                     `(due <= date("today"))`,
		`owner = [[bob]] or owner = null`:        `((owner = [[bob]]) or (owner = null))`,
		`(a or b) and c`:                         `((a or b) and c)`,
		`startswith(lower(file.name), "2024")`:   `startswith(lower(file.name), "2024")`,
	}
	for in, want := range cases {
		q := mustParse(t, "LIST WHERE "+in)
		if got := q.Where.String(); got != want {
			t.Errorf("WHERE %s\n got  %s\n want %s", in, got, want)
		}
	}
	q := mustParse(t, `LIST WHERE due = date("2024-03-01")`)
	lit := q.Where.(Binary).R.(Literal)
	if d, ok := lit.Value.AsDate(); !ok || d.Day() != 1 || d.Month() != 3 {
		t.Errorf("date literal = %v", lit.Value.Text())
	}
	if lit.Value.Kind() != value.KindDate {
		t.Errorf("kind = %v", lit.Value.Kind())
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		text string
		pos  int
		msg  string
	}{
		{"", 0, "TABLE or LIST"},
		{"SELECT x", 0, "TABLE or LIST"},
		{"TABLE", 5, "at least one column"},
		{"TABLE FROM \"x\"", 6, "at least one column"},
		{"TABLE upper(x)", 6, "unknown function"},
		{"TABLE dateformat(x)", 18, "','"},
		{"TABLE x y", 8, "unexpected"},
		{"TABLE x LIMIT 10 SORT y", 17, "out of order"},
		{"TABLE x WHERE y = 1 FROM \"z\"", 20, "out of order"},
		{"TABLE x SORT a SORT b", 15, "duplicate SORT"},
		{"TABLE x LIMIT 2.5", 14, "whole number"},
		{"TABLE x WHERE", 13, "expected expression"},
		{"TABLE x WHERE foo(1)", 14, "unknown function"},
		{"TABLE x WHERE due = date(\"not a date\")", 20, "invalid date"},
		{"TABLE \"x", 6, "unterminated string"},
		{"TABLE x FROM [[a", 13, "unterminated link"},
		{"TABLE x @", 8, "unexpected character"},
		{"TABLE WITHOUT x", 14, "expected ID"},
		{"TABLE x AS", 10, "alias"},
		{"TABLE x GROUP status", 14, "expected BY"},
	}
	for _, c := range cases {
		q, err := Parse(c.text)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", c.text)
			continue
		}
		if q != nil {
			t.Errorf("Parse(%q) returned a partial AST", c.text)
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q) error %T is not *SyntaxError", c.text, err)
			continue
		}
		if se.Pos != c.pos {
			t.Errorf("Parse(%q) pos = %d, want %d (%v)", c.text, se.Pos, c.pos, err)
		}
		if !strings.Contains(err.Error(), c.msg) {
			t.Errorf("Parse(%q) error %q does not mention %q", c.text, err, c.msg)
		}
		if !errors.Is(err, apperr.ErrInvalidQuery) {
			t.Errorf("Parse(%q) error does not unwrap to ErrInvalidQuery", c.text)
		}
	}
}

func TestParse_CaseInsensitiveKeywords(t *testing.T) {
	q := mustParse(t, "Table Without Id name As Title From #x Where a Sort name Asc Limit 1")
	if !q.WithoutID || q.Columns[0].Alias != "Title" || !q.HasLimit {
		t.Errorf("q = %s", q)
	}
}

func TestQuery_JSON(t *testing.T) {
	q := mustParse(t, `TABLE length(rows) AS count FROM #a GROUP BY status SORT status DESC LIMIT 3`)
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"TABLE","withoutId":false,"columns":[{"field":"rows","alias":"count","function":"length"}],"from":"#a","sort":[{"field":"status","direction":"desc"}],"groupBy":"status","limit":3}`
	if string(data) != want {
		t.Errorf("json =\n%s\nwant\n%s", data, want)
	}
}

func TestQuery_StringRoundTrips(t *testing.T) {
	q := mustParse(t, `TABLE WITHOUT ID file.link AS "Note", dateformat(due, "MMM D") FROM "a" WHERE x = 1 SORT due DESC GROUP BY kind LIMIT 5`)
	again := mustParse(t, q.String())
	if again.String() != q.String() {
		t.Errorf("canonical form not stable:\n%s\n%s", q, again)
	}
}
