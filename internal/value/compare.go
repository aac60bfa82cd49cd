package value

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Compare orders two values. Values of the same kind compare by payload;
// values of different kinds compare by kind rank, so the order is total.
// Undefined ranks below everything here; callers that need "undefined last"
// must handle it before calling Compare.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindNumber:
		return cmp.Compare(a.num, b.num)
	case KindBoolean:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindDate:
		return a.t.Compare(b.t)
	case KindLink:
		return strings.Compare(a.link.Path, b.link.Path)
	case KindList:
		for i := 0; i < len(a.list) && i < len(b.list); i++ {
			if c := Compare(a.list[i], b.list[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.list), len(b.list))
	case KindMapping:
		return strings.Compare(a.Key(), b.Key())
	}
	return 0
}

// Equal reports structural equality.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	return Compare(a, b) == 0
}

// Key returns a canonical string such that Key(a) == Key(b) exactly when
// Equal(a, b). It is used to bucket values in maps.
func Key(v Value) string { return v.Key() }

// Key is the method form of the package-level Key.
func (v Value) Key() string {
	var sb strings.Builder
	v.writeKey(&sb)
	return sb.String()
}

func (v Value) writeKey(sb *strings.Builder) {
	switch v.kind {
	case KindUndefined:
		sb.WriteString("u")
	case KindString:
		sb.WriteString("s")
		sb.WriteString(strconv.Quote(v.str))
	case KindNumber:
		sb.WriteString("n")
		if v.num == 0 {
			sb.WriteString("0") // -0 and 0 compare equal
			return
		}
		sb.WriteString(strconv.FormatFloat(v.num, 'g', -1, 64))
	case KindBoolean:
		sb.WriteString("b")
		sb.WriteString(strconv.FormatBool(v.b))
	case KindDate:
		sb.WriteString("d")
		sb.WriteString(strconv.FormatInt(v.t.Unix(), 10))
		sb.WriteString(".")
		sb.WriteString(strconv.Itoa(v.t.Nanosecond()))
	case KindLink:
		sb.WriteString("l")
		sb.WriteString(strconv.Quote(v.link.Path))
	case KindList:
		sb.WriteString("[")
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(",")
			}
			item.writeKey(sb)
		}
		sb.WriteString("]")
	case KindMapping:
		sb.WriteString("{")
		for i, k := range sortedKeys(v.m) {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(":")
			v.m[k].writeKey(sb)
		}
		sb.WriteString("}")
	}
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
