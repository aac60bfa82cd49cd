package value

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestFromYAML_KeepsKeyOrderAndTypes(t *testing.T) {
	src := "title: Hello\ncount: 3\ndone: true\ncreated: 2025-11-30\nrelated: \"[[other|Other Note]]\"\nnested:\n  b: 1\n  a: 2\nempty:\n"
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, err := FromYAML(&node)
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if v.Kind() != KindMapping {
		t.Fatalf("kind = %v, want mapping", v.Kind())
	}
	want := []string{"title", "count", "done", "created", "related", "nested", "empty"}
	got := v.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if n, ok := mustGet(t, v, "count").AsNumber(); !ok || n != 3 {
		t.Errorf("count = %v", mustGet(t, v, "count"))
	}
	if b, ok := mustGet(t, v, "done").AsBool(); !ok || !b {
		t.Errorf("done not true")
	}
	if d, ok := mustGet(t, v, "created").AsDate(); !ok || d.Year() != 2025 || d.Month() != time.November {
		t.Errorf("created = %v", mustGet(t, v, "created"))
	}
	l, ok := mustGet(t, v, "related").AsLink()
	if !ok {
		t.Fatalf("related should be a link")
	}
	if l.Path != "other" || l.Display != "Other Note" || l.Text() != "Other Note" {
		t.Errorf("link = %+v", l)
	}
	if !mustGet(t, v, "empty").IsUndefined() {
		t.Errorf("null should map to undefined")
	}
	if keys := mustGet(t, v, "nested").Keys(); keys[0] != "b" || keys[1] != "a" {
		t.Errorf("nested keys = %v", keys)
	}
}

func mustGet(t *testing.T, v Value, key string) Value {
	t.Helper()
	child, ok := v.Get(key)
	if !ok {
		t.Fatalf("missing key %q", key)
	}
	return child
}

func TestCompare_OrdersWithinKind(t *testing.T) {
	cases := []struct {
		a, b Value
		want int
	}{
		{Number(1), Number(2), -1},
		{String("b"), String("a"), 1},
		{Bool(false), Bool(true), -1},
		{List(String("x")), List(String("x")), 0},
		{List(String("x")), List(String("x"), String("y")), -1},
		{Date(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), Date(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)), -1},
		{LinkTo(NewLink("a.md", "")), LinkTo(NewLink("a.md", "alias")), 0},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", c.a.Text(), c.b.Text(), got, c.want)
		}
	}
}

func TestKey_MatchesEqual(t *testing.T) {
	a := List(String("x"))
	b := List(String("x"))
	c := List(String("y"))
	if a.Key() != b.Key() || !Equal(a, b) {
		t.Error("equal lists must share a key")
	}
	if a.Key() == c.Key() || Equal(a, c) {
		t.Error("different lists must not share a key")
	}
	if Number(0).Key() != Number(-0.0).Key() {
		t.Error("zero keys differ")
	}
	if String("1").Key() == Number(1).Key() {
		t.Error("string and number keys must differ")
	}
	m1 := Mapping(map[string]Value{"a": Int(1), "b": Int(2)}, []string{"a", "b"})
	m2 := Mapping(map[string]Value{"a": Int(1), "b": Int(2)}, []string{"b", "a"})
	if m1.Key() != m2.Key() {
		t.Error("mapping key must not depend on key order")
	}
}

func TestKey_DatesOutsideNanoRange(t *testing.T) {
	a := Date(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC))
	b := Date(time.Date(1, 1, 2, 0, 0, 0, 0, time.UTC))
	if a.Key() == b.Key() {
		t.Errorf("distinct dates share key %q", a.Key())
	}
	far := Date(time.Date(3000, 6, 1, 0, 0, 0, 0, time.UTC))
	farther := Date(time.Date(3000, 6, 2, 0, 0, 0, 0, time.UTC))
	if far.Key() == farther.Key() {
		t.Errorf("distinct dates share key %q", far.Key())
	}
	utc := time.Date(2025, 3, 1, 12, 0, 0, 5, time.UTC)
	zone := time.FixedZone("X", 3*3600)
	if Date(utc).Key() != Date(utc.In(zone)).Key() {
		t.Error("same instant in different zones must share a key")
	}
}

func TestFromYAML_RejectsAliasCycle(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("a: &x [*x]\n"), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := FromYAML(&node); !errors.Is(err, ErrAliasCycle) {
		t.Errorf("err = %v, want ErrAliasCycle", err)
	}
}

func TestFromYAML_RejectsOversizedExpansion(t *testing.T) {
	src := "a: &a [x, x, x, x, x, x, x, x, x, x]\n" +
		"b: &b [*a, *a, *a, *a, *a, *a, *a, *a, *a, *a]\n" +
		"c: &c [*b, *b, *b, *b, *b, *b, *b, *b, *b, *b]\n" +
		"d: &d [*c, *c, *c, *c, *c, *c, *c, *c, *c, *c]\n" +
		"e: [*d, *d, *d, *d, *d, *d, *d, *d, *d, *d]\n"
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := FromYAML(&node); !errors.Is(err, ErrTooManyNodes) {
		t.Errorf("err = %v, want ErrTooManyNodes", err)
	}
}

func TestTruthy(t *testing.T) {
	falsy := []Value{Undefined, String(""), Number(0), Bool(false), List()}
	for _, v := range falsy {
		if v.Truthy() {
			t.Errorf("%v should be falsy", v.Kind())
		}
	}
	truthy := []Value{String("x"), Number(-1), Bool(true), List(Undefined), LinkTo(NewLink("a", ""))}
	for _, v := range truthy {
		if !v.Truthy() {
			t.Errorf("%v should be truthy", v.Kind())
		}
	}
}

func TestMarshalJSON_LinksAreTagged(t *testing.T) {
	v := List(LinkTo(NewLink("notes/a.md", "")), String("plain"), Undefined)
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"type":"link","path":"notes/a.md","name":"a"},"plain",null]`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestParseLink(t *testing.T) {
	l, ok := ParseLink("[[folder/Note#Heading|Shown]]")
	if !ok {
		t.Fatal("expected link")
	}
	if l.Path != "folder/Note" || l.Name != "Note" || l.Display != "Shown" {
		t.Errorf("link = %+v", l)
	}
	if _, ok := ParseLink("not a [[link]]"); ok {
		t.Error("embedded links are plain strings")
	}
	if _, ok := ParseLink("[[]]"); ok {
		t.Error("empty target is not a link")
	}
}

func TestMapLinks_Nested(t *testing.T) {
	v := Mapping(map[string]Value{
		"refs": List(LinkTo(NewLink("a", ""))),
	}, []string{"refs"})
	out := MapLinks(v, func(l Link) Link {
		l.Path += ".md"
		return l
	})
	refs, _ := out.Get("refs")
	items, _ := refs.AsList()
	l, _ := items[0].AsLink()
	if l.Path != "a.md" {
		t.Errorf("path = %q", l.Path)
	}
	orig, _ := v.Get("refs")
	origItems, _ := orig.AsList()
	if ol, _ := origItems[0].AsLink(); ol.Path != "a" {
		t.Error("MapLinks mutated its input")
	}
}
