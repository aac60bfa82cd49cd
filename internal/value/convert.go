package value

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var linkLiteralRe = regexp.MustCompile(`^\[\[([^\[\]]+)\]\]$`)

// ParseLink recognizes a wikilink literal such as "[[folder/note|alias]]".
// The returned link's Path is the raw target; vault resolution happens later.
func ParseLink(s string) (Link, bool) {
	m := linkLiteralRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Link{}, false
	}
	target, display, _ := strings.Cut(m[1], "|")
	target = strings.TrimSpace(target)
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return Link{}, false
	}
	return NewLink(target, strings.TrimSpace(display)), true
}

// NewLink builds a link whose Name is the basename of p without extension.
func NewLink(p, display string) Link {
	return Link{Path: p, Name: BaseName(p), Display: display}
}

// BaseName returns the last path element without its extension.
func BaseName(p string) string {
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// FromAny converts a decoded YAML/JSON value. Unknown Go types become
// strings through fmt.Sprint so that conversion never fails.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Undefined
	case Value:
		return t
	case string:
		if l, ok := ParseLink(t); ok {
			return LinkTo(l)
		}
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case time.Time:
		return Date(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, child := range t {
			m[k] = FromAny(child)
		}
		return Mapping(m, nil)
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, child := range t {
			m[fmt.Sprint(k)] = FromAny(child)
		}
		return Mapping(m, nil)
	}
	return String(fmt.Sprint(x))
}

// MaxYAMLNodes caps how many nodes FromYAML expands, counting every alias
// expansion, so a small document cannot blow up through nested anchors.
const MaxYAMLNodes = 10000

var (
	// ErrAliasCycle is returned when an alias refers back to one of its own
	// ancestors.
	ErrAliasCycle = errors.New("value: yaml alias cycle")
	// ErrTooManyNodes is returned when expansion passes MaxYAMLNodes.
	ErrTooManyNodes = errors.New("value: yaml document expands to too many nodes")
)

// FromYAML converts a YAML node tree, keeping mapping keys in document order
// and turning unquoted timestamps into dates. Aliases are expanded; cyclic
// aliases and oversized expansions fail.
func FromYAML(n *yaml.Node) (Value, error) {
	c := yamlConverter{visiting: make(map[*yaml.Node]struct{})}
	return c.convert(n)
}

type yamlConverter struct {
	visiting map[*yaml.Node]struct{}
	nodes    int
}

func (c *yamlConverter) convert(n *yaml.Node) (Value, error) {
	if n == nil {
		return Undefined, nil
	}
	if c.nodes++; c.nodes > MaxYAMLNodes {
		return Undefined, ErrTooManyNodes
	}
	if _, open := c.visiting[n]; open {
		return Undefined, ErrAliasCycle
	}
	c.visiting[n] = struct{}{}
	defer delete(c.visiting, n)

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Undefined, nil
		}
		return c.convert(n.Content[0])
	case yaml.AliasNode:
		return c.convert(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, len(n.Content))
		for i, child := range n.Content {
			v, err := c.convert(child)
			if err != nil {
				return Undefined, err
			}
			items[i] = v
		}
		return List(items...), nil
	case yaml.MappingNode:
		m := make(map[string]Value, len(n.Content)/2)
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			v, err := c.convert(n.Content[i+1])
			if err != nil {
				return Undefined, err
			}
			if _, dup := m[k]; !dup {
				keys = append(keys, k)
			}
			m[k] = v
		}
		return Mapping(m, keys), nil
	case yaml.ScalarNode:
		return fromScalar(n), nil
	}
	return Undefined, nil
}

func fromScalar(n *yaml.Node) Value {
	switch n.ShortTag() {
	case "!!null":
		return Undefined
	case "!!bool":
		if b, err := strconv.ParseBool(n.Value); err == nil {
			return Bool(b)
		}
		var b bool
		if err := n.Decode(&b); err == nil {
			return Bool(b)
		}
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return Number(f)
		}
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err == nil {
			return Date(t)
		}
	}
	if l, ok := ParseLink(n.Value); ok {
		return LinkTo(l)
	}
	return String(n.Value)
}

// MapLinks returns a copy of v with every link (including links nested in
// lists and mappings) replaced by fn(link).
func MapLinks(v Value, fn func(Link) Link) Value {
	switch v.kind {
	case KindLink:
		return LinkTo(fn(v.link))
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = MapLinks(item, fn)
		}
		return List(items...)
	case KindMapping:
		m := make(map[string]Value, len(v.m))
		for k, child := range v.m {
			m[k] = MapLinks(child, fn)
		}
		return Mapping(m, v.keys)
	}
	return v
}
