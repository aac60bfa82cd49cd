// Package dql parses the Dataview-style query language into an immutable AST.
package dql

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/value"
)

// Type is the query output shape.
type Type int

const (
	Table Type = iota
	List
)

func (t Type) String() string {
	if t == List {
		return "LIST"
	}
	return "TABLE"
}

// Function is an optional per-column function.
type Function int

const (
	FuncNone Function = iota
	FuncLength
	FuncDateFormat
)

func (f Function) String() string {
	switch f {
	case FuncLength:
		return "length"
	case FuncDateFormat:
		return "dateformat"
	}
	return ""
}

// Column is one projected field.
type Column struct {
	Field  string   // dotted path
	Alias  string   // optional display name
	Func   Function // optional
	Format string   // dateformat pattern
}

// Expr renders the column expression without its alias.
func (c Column) Expr() string {
	switch c.Func {
	case FuncLength:
		return "length(" + c.Field + ")"
	case FuncDateFormat:
		return "dateformat(" + c.Field + ", " + strconv.Quote(c.Format) + ")"
	}
	return c.Field
}

// Header is the display name of the column.
func (c Column) Header() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Expr()
}

func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Field    string `json:"field"`
		Alias    string `json:"alias,omitempty"`
		Function string `json:"function,omitempty"`
		Format   string `json:"format,omitempty"`
	}{c.Field, c.Alias, c.Func.String(), c.Format})
}

// SortKey orders rows by a column expression.
type SortKey struct {
	Column
	Desc bool
}

func (k SortKey) MarshalJSON() ([]byte, error) {
	dir := "asc"
	if k.Desc {
		dir = "desc"
	}
	return json.Marshal(struct {
		Field     string `json:"field"`
		Function  string `json:"function,omitempty"`
		Format    string `json:"format,omitempty"`
		Direction string `json:"direction"`
	}{k.Field, k.Func.String(), k.Format, dir})
}

// Query is the parsed form of one query. It is not modified after Parse.
type Query struct {
	Text      string
	Type      Type
	WithoutID bool
	Columns   []Column
	From      Source // nil selects every document
	Where     Expr   // nil keeps every candidate
	Sort      []SortKey
	GroupBy   string
	Limit     int
	HasLimit  bool
}

// Grouped reports whether the query has a GROUP BY clause.
func (q *Query) Grouped() bool { return q.GroupBy != "" }

func (q *Query) MarshalJSON() ([]byte, error) {
	out := struct {
		Type      string    `json:"type"`
		WithoutID bool      `json:"withoutId"`
		Columns   []Column  `json:"columns"`
		From      string    `json:"from,omitempty"`
		Where     string    `json:"where,omitempty"`
		Sort      []SortKey `json:"sort,omitempty"`
		GroupBy   string    `json:"groupBy,omitempty"`
		Limit     *int      `json:"limit,omitempty"`
	}{
		Type:      q.Type.String(),
		WithoutID: q.WithoutID,
		Columns:   q.Columns,
		Sort:      q.Sort,
		GroupBy:   q.GroupBy,
	}
	if out.Columns == nil {
		out.Columns = []Column{}
	}
	if q.From != nil {
		out.From = q.From.String()
	}
	if q.Where != nil {
		out.Where = q.Where.String()
	}
	if q.HasLimit {
		limit := q.Limit
		out.Limit = &limit
	}
	return json.Marshal(out)
}

// String renders the query in canonical form.
func (q *Query) String() string {
	var sb strings.Builder
	sb.WriteString(q.Type.String())
	if q.WithoutID {
		sb.WriteString(" WITHOUT ID")
	}
	for i, c := range q.Columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(' ')
		sb.WriteString(c.Expr())
		if c.Alias != "" {
			sb.WriteString(" AS " + strconv.Quote(c.Alias))
		}
	}
	if q.From != nil {
		sb.WriteString(" FROM " + q.From.String())
	}
	if q.Where != nil {
		sb.WriteString(" WHERE " + q.Where.String())
	}
	for i, k := range q.Sort {
		if i == 0 {
			sb.WriteString(" SORT ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(k.Expr())
		if k.Desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	if q.GroupBy != "" {
		sb.WriteString(" GROUP BY " + q.GroupBy)
	}
	if q.HasLimit {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return sb.String()
}

// Source selects candidate documents.
type Source interface {
	String() string
	sourceNode()
}

// FolderSource matches documents under Path, or the document at Path.
type FolderSource struct{ Path string }

// TagSource matches documents carrying Tag or one of its nested sub-tags.
type TagSource struct{ Tag string }

// LinkSource matches documents that link to Target.
type LinkSource struct{ Target string }

// NotSource negates X.
type NotSource struct{ X Source }

// BinarySource combines two sources with "and" or "or".
type BinarySource struct {
	Op   string
	L, R Source
}

func (FolderSource) sourceNode() {}
func (TagSource) sourceNode()    {}
func (LinkSource) sourceNode()   {}
func (NotSource) sourceNode()    {}
func (BinarySource) sourceNode() {}

func (s FolderSource) String() string { return strconv.Quote(s.Path) }
func (s TagSource) String() string    { return "#" + s.Tag }
func (s LinkSource) String() string   { return "[[" + s.Target + "]]" }
func (s NotSource) String() string    { return "-" + s.X.String() }
func (s BinarySource) String() string {
	return "(" + s.L.String() + " " + s.Op + " " + s.R.String() + ")"
}

// Expr is a WHERE clause expression.
type Expr interface {
	String() string
	exprNode()
}

// Literal is a constant value. Link literals carry the raw target.
type Literal struct{ Value value.Value }

// FieldRef looks up a dotted field path.
type FieldRef struct{ Path string }

// Unary applies "!" (not) or "-" (negate) to X.
type Unary struct {
	Op string
	X  Expr
}

// Binary applies a comparison or boolean operator.
type Binary struct {
	Op   string
	L, R Expr
}

// Call invokes a built-in function.
type Call struct {
	Name string
	Args []Expr
}

func (Literal) exprNode()  {}
func (FieldRef) exprNode() {}
func (Unary) exprNode()    {}
func (Binary) exprNode()   {}
func (Call) exprNode()     {}

func (e Literal) String() string {
	switch e.Value.Kind() {
	case value.KindString:
		s, _ := e.Value.AsString()
		return strconv.Quote(s)
	case value.KindUndefined:
		return "null"
	case value.KindLink:
		l, _ := e.Value.AsLink()
		return "[[" + l.Path + "]]"
	case value.KindDate:
		return "date(" + strconv.Quote(e.Value.Text()) + ")"
	}
	return e.Value.Text()
}

func (e FieldRef) String() string { return e.Path }
func (e Unary) String() string    { return e.Op + e.X.String() }
func (e Binary) String() string {
	return "(" + e.L.String() + " " + e.Op + " " + e.R.String() + ")"
}
func (e Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}
