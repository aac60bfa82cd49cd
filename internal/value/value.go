// Package value defines the closed set of typed values that flow through the
// query engine: frontmatter fields, virtual file fields, column cells and
// group keys are all represented as a Value.
package value

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindString
	KindNumber
	KindBoolean
	KindDate
	KindList
	KindMapping
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	case KindMapping:
		return "mapping"
	case KindLink:
		return "link"
	default:
		return "undefined"
	}
}

// Link is a reference to another document in the vault.
type Link struct {
	Path    string // vault-relative target path
	Name    string // display name (basename without extension)
	Display string // optional alias from [[target|alias]]
}

// Text returns the label a renderer should show for the link.
func (l Link) Text() string {
	if l.Display != "" {
		return l.Display
	}
	return l.Name
}

// Value is an immutable tagged variant. The zero Value is undefined.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
	list []Value
	m    map[string]Value
	keys []string // mapping key order
	link Link
}

// Undefined is the value of every unresolved field.
var Undefined = Value{}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric value from an int.
func Int(n int) Value { return Number(float64(n)) }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Date returns a date value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// List returns a list value. The slice is not copied.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Mapping returns a mapping value whose iteration order is keys.
// Keys missing from m are ignored.
func Mapping(m map[string]Value, keys []string) Value {
	ordered := make([]string, 0, len(m))
	for _, k := range keys {
		if _, ok := m[k]; ok {
			ordered = append(ordered, k)
		}
	}
	if len(ordered) != len(m) {
		ordered = sortedKeys(m)
	}
	return Value{kind: KindMapping, m: m, keys: ordered}
}

// LinkTo returns a link value.
func LinkTo(l Link) Value { return Value{kind: KindLink, link: l} }

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBoolean }

// AsDate returns the date payload.
func (v Value) AsDate() (time.Time, bool) { return v.t, v.kind == KindDate }

// AsList returns the list payload. Callers must not modify it.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsLink returns the link payload.
func (v Value) AsLink() (Link, bool) { return v.link, v.kind == KindLink }

// Len returns the number of list items or mapping keys.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMapping:
		return len(v.m)
	}
	return 0
}

// Get looks up key in a mapping. ok is false when v is not a mapping or the
// key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Undefined, false
	}
	child, ok := v.m[key]
	return child, ok
}

// Keys returns the mapping keys in document order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	return v.keys
}

// Truthy follows the usual query-language truthiness: undefined, false, 0,
// empty strings, empty lists and empty mappings are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0
	case KindBoolean:
		return v.b
	case KindDate, KindLink:
		return true
	case KindList:
		return len(v.list) > 0
	case KindMapping:
		return len(v.m) > 0
	}
	return false
}

// Text renders v as plain text.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindDate:
		return formatDate(v.t)
	case KindLink:
		return v.link.Text()
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Text()
		}
		return strings.Join(parts, ", ")
	case KindMapping:
		parts := make([]string, 0, len(v.keys))
		for _, k := range v.keys {
			parts = append(parts, k+": "+v.m[k].Text())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}
