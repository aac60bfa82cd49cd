package engine

import (
	"strings"
	"time"

	"github.com/starford/ansuz/internal/dql"
	"github.com/starford/ansuz/internal/metaindex"
	"github.com/starford/ansuz/internal/value"
)

// matchSource reports whether rec is selected by src.
func matchSource(idx *metaindex.Index, src dql.Source, rec *metaindex.Record) bool {
	switch s := src.(type) {
	case nil:
		return true
	case dql.FolderSource:
		if s.Path == "" {
			return true
		}
		return rec.Path == s.Path || rec.Path == s.Path+".md" || strings.HasPrefix(rec.Path, s.Path+"/")
	case dql.TagSource:
		want := strings.ToLower(strings.TrimPrefix(s.Tag, "#"))
		for _, t := range rec.Tags {
			t = strings.ToLower(t)
			if t == want || strings.HasPrefix(t, want+"/") {
				return true
			}
		}
		return false
	case dql.LinkSource:
		target := idx.Resolve(s.Target)
		for _, l := range rec.Outlinks {
			if l.Path == target {
				return true
			}
		}
		return false
	case dql.NotSource:
		return !matchSource(idx, s.X, rec)
	case dql.BinarySource:
		if s.Op == "and" {
			return matchSource(idx, s.L, rec) && matchSource(idx, s.R, rec)
		}
		return matchSource(idx, s.L, rec) || matchSource(idx, s.R, rec)
	}
	return false
}

// evaluator computes WHERE expressions. It never fails: anything it cannot
// make sense of evaluates to undefined.
type evaluator struct {
	idx *metaindex.Index
	now time.Time
}

func (e *evaluator) eval(x dql.Expr, s Scope) value.Value {
	switch n := x.(type) {
	case dql.Literal:
		if l, ok := n.Value.AsLink(); ok {
			return value.LinkTo(value.NewLink(e.idx.Resolve(l.Path), l.Display))
		}
		return n.Value
	case dql.FieldRef:
		return s.Field(n.Path)
	case dql.Unary:
		v := e.eval(n.X, s)
		if n.Op == "-" {
			if f, ok := v.AsNumber(); ok {
				return value.Number(-f)
			}
			return value.Undefined
		}
		return value.Bool(!v.Truthy())
	case dql.Binary:
		switch n.Op {
		case "and":
			return value.Bool(e.eval(n.L, s).Truthy() && e.eval(n.R, s).Truthy())
		case "or":
			return value.Bool(e.eval(n.L, s).Truthy() || e.eval(n.R, s).Truthy())
		}
		return value.Bool(e.compare(n.Op, e.eval(n.L, s), e.eval(n.R, s)))
	case dql.Call:
		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			args[i] = e.eval(a, s)
		}
		return e.call(n.Name, args)
	}
	return value.Undefined
}

// coerce brings a and b to a common kind where a sensible conversion exists:
// strings compared with links become links, strings compared with dates
// become dates.
func (e *evaluator) coerce(a, b value.Value) (value.Value, value.Value) {
	switch {
	case a.Kind() == value.KindLink && b.Kind() == value.KindString:
		s, _ := b.AsString()
		return a, value.LinkTo(value.NewLink(e.idx.Resolve(s), ""))
	case a.Kind() == value.KindString && b.Kind() == value.KindLink:
		b, a = e.coerce(b, a)
		return a, b
	case a.Kind() == value.KindDate && b.Kind() == value.KindString:
		if t, ok := CoerceDate(b); ok {
			return a, value.Date(t)
		}
	case a.Kind() == value.KindString && b.Kind() == value.KindDate:
		if t, ok := CoerceDate(a); ok {
			return value.Date(t), b
		}
	}
	return a, b
}

func (e *evaluator) equal(a, b value.Value) bool {
	a, b = e.coerce(a, b)
	return value.Equal(a, b)
}

func (e *evaluator) compare(op string, a, b value.Value) bool {
	switch op {
	case "=":
		return e.equal(a, b)
	case "!=":
		return !e.equal(a, b)
	}
	a, b = e.coerce(a, b)
	if a.IsUndefined() || b.IsUndefined() || a.Kind() != b.Kind() {
		return false
	}
	c := value.Compare(a, b)
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

func (e *evaluator) call(name string, args []value.Value) value.Value {
	switch name {
	case "contains":
		return value.Bool(e.contains(args[0], args[1]))
	case "startswith", "endswith":
		s, ok1 := args[0].AsString()
		p, ok2 := args[1].AsString()
		if !ok1 || !ok2 {
			return value.Bool(false)
		}
		if name == "startswith" {
			return value.Bool(strings.HasPrefix(s, p))
		}
		return value.Bool(strings.HasSuffix(s, p))
	case "lower":
		if s, ok := args[0].AsString(); ok {
			return value.String(strings.ToLower(s))
		}
		return args[0]
	case "length":
		return Length(args[0])
	case "date":
		return e.date(args[0])
	}
	return value.Undefined
}

func (e *evaluator) contains(haystack, needle value.Value) bool {
	switch haystack.Kind() {
	case value.KindList:
		items, _ := haystack.AsList()
		for _, item := range items {
			if e.equal(item, needle) {
				return true
			}
		}
	case value.KindString:
		s, _ := haystack.AsString()
		if sub, ok := needle.AsString(); ok {
			return strings.Contains(s, sub)
		}
	case value.KindMapping:
		if key, ok := needle.AsString(); ok {
			_, found := haystack.Get(key)
			return found
		}
	case value.KindLink:
		return e.equal(haystack, needle)
	}
	return false
}

func (e *evaluator) date(v value.Value) value.Value {
	if s, ok := v.AsString(); ok && dql.RelativeDates[s] {
		today := time.Date(e.now.Year(), e.now.Month(), e.now.Day(), 0, 0, 0, 0, e.now.Location())
		switch s {
		case "now":
			return value.Date(e.now)
		case "today":
			return value.Date(today)
		case "yesterday":
			return value.Date(today.AddDate(0, 0, -1))
		case "tomorrow":
			return value.Date(today.AddDate(0, 0, 1))
		}
	}
	if t, ok := CoerceDate(v); ok {
		return value.Date(t)
	}
	return value.Undefined
}
