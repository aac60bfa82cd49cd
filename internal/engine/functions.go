package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"

	"github.com/starford/ansuz/internal/dql"
	"github.com/starford/ansuz/internal/value"
)

// DefaultEmptyMarker is rendered by dateformat for values that are not dates.
const DefaultEmptyMarker = "-"

// Length counts list items or string characters. Everything else is 0.
func Length(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindList:
		return value.Int(v.Len())
	case value.KindString:
		s, _ := v.AsString()
		return value.Int(utf8.RuneCountInString(s))
	}
	return value.Int(0)
}

// CoerceDate accepts native dates and ISO-like strings.
func CoerceDate(v value.Value) (time.Time, bool) {
	switch v.Kind() {
	case value.KindDate:
		return v.AsDate()
	case value.KindString:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// DateFormat renders v with a moment-style layout such as "YYYY-MM-DD".
// Text inside [brackets] is copied literally. Values that are not dates
// render as empty.
func DateFormat(v value.Value, layout, empty string) value.Value {
	t, ok := CoerceDate(v)
	if !ok {
		return value.String(empty)
	}
	return value.String(formatMoment(t, layout))
}

// dateTokens is ordered longest first so that "MMMM" wins over "MM" and "M".
var dateTokens = []string{
	"YYYY", "MMMM", "dddd",
	"MMM", "ddd",
	"YY", "MM", "DD", "HH", "hh", "mm", "ss",
	"M", "D", "H", "h", "A", "a",
}

func formatMoment(t time.Time, layout string) string {
	var sb strings.Builder
	for i := 0; i < len(layout); {
		if layout[i] == '[' {
			if end := strings.IndexByte(layout[i:], ']'); end > 0 {
				sb.WriteString(layout[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range dateTokens {
			if strings.HasPrefix(layout[i:], tok) {
				sb.WriteString(tokenValue(tok, t))
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			_, w := utf8.DecodeRuneInString(layout[i:])
			sb.WriteString(layout[i : i+w])
			i += w
		}
	}
	return sb.String()
}

func tokenValue(tok string, t time.Time) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return fmt.Sprint(int(t.Month()))
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return fmt.Sprint(t.Day())
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Weekday().String()[:3]
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return fmt.Sprint(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12)
	case "h":
		return fmt.Sprint(hour12)
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	}
	return tok
}

// applyColumn runs the column's function over an already resolved value.
func applyColumn(v value.Value, c dql.Column, empty string) value.Value {
	switch c.Func {
	case dql.FuncLength:
		return Length(v)
	case dql.FuncDateFormat:
		return DateFormat(v, c.Format, empty)
	}
	return v
}

// columnValue evaluates c for one row or group.
func columnValue(s Scope, c dql.Column, empty string) value.Value {
	if g, ok := s.(groupScope); ok && c.Func == dql.FuncLength && c.Field == "rows" {
		return value.Int(len(g.rows))
	}
	return applyColumn(s.Field(c.Field), c, empty)
}
