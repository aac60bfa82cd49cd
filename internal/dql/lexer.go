package dql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokTag
	tokLink
	tokComma
	tokLParen
	tokRParen
	tokMinus
	tokBang
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
)

type token struct {
	kind tokenKind
	text string // raw source text
	val  string // decoded payload for strings, tags and links
	pos  int    // byte offset in the query text
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of query"
	}
	return t.text
}

// is reports whether t is the keyword kw, case-insensitively.
func (t token) is(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// lex splits the query text into tokens.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		start := i
		switch {
		case unicode.IsSpace(r):
			i += w
			continue
		case isIdentStart(r):
			i = scanIdent(src, i)
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
			continue
		case r >= '0' && r <= '9':
			i = scanNumber(src, i)
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
			continue
		case r == '"' || r == '\'':
			val, end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			i = end
			toks = append(toks, token{kind: tokString, text: src[start:i], val: val, pos: start})
			continue
		case r == '#':
			j := i + 1
			for j < len(src) {
				r2, w2 := utf8.DecodeRuneInString(src[j:])
				if !isIdentPart(r2) && r2 != '/' {
					break
				}
				j += w2
			}
			if j == i+1 {
				return nil, &SyntaxError{Pos: start, Token: "#", Msg: "expected tag name after '#'"}
			}
			i = j
			toks = append(toks, token{kind: tokTag, text: src[start:i], val: src[start+1 : i], pos: start})
			continue
		case strings.HasPrefix(src[i:], "[["):
			end := strings.Index(src[i:], "]]")
			if end < 0 {
				return nil, &SyntaxError{Pos: start, Token: "[[", Msg: "unterminated link"}
			}
			i += end + 2
			inner := strings.TrimSpace(src[start+2 : i-2])
			if inner == "" {
				return nil, &SyntaxError{Pos: start, Token: src[start:i], Msg: "empty link"}
			}
			toks = append(toks, token{kind: tokLink, text: src[start:i], val: inner, pos: start})
			continue
		}

		kind := tokEOF
		w2 := 1
		switch r {
		case ',':
			kind = tokComma
		case '(':
			kind = tokLParen
		case ')':
			kind = tokRParen
		case '-':
			kind = tokMinus
		case '=':
			kind = tokEq
			if strings.HasPrefix(src[i:], "==") {
				w2 = 2
			}
		case '!':
			kind = tokBang
			if strings.HasPrefix(src[i:], "!=") {
				kind, w2 = tokNeq, 2
			}
		case '<':
			kind = tokLt
			if strings.HasPrefix(src[i:], "<=") {
				kind, w2 = tokLte, 2
			}
		case '>':
			kind = tokGt
			if strings.HasPrefix(src[i:], ">=") {
				kind, w2 = tokGte, 2
			}
		default:
			return nil, &SyntaxError{Pos: start, Token: string(r), Msg: fmt.Sprintf("unexpected character %q", r)}
		}
		i += w2
		toks = append(toks, token{kind: kind, text: src[start:i], pos: start})
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// scanIdent consumes a dotted identifier such as file.name or rows.due-date.
func scanIdent(src string, i int) int {
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		if isIdentPart(r) {
			i += w
			continue
		}
		if r == '.' && i+1 < len(src) {
			next, _ := utf8.DecodeRuneInString(src[i+1:])
			if isIdentStart(next) || unicode.IsDigit(next) {
				i += w
				continue
			}
		}
		break
	}
	return i
}

func scanNumber(src string, i int) int {
	dot := false
	for i < len(src) {
		c := src[i]
		if c >= '0' && c <= '9' {
			i++
			continue
		}
		if c == '.' && !dot && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
			dot = true
			i++
			continue
		}
		break
	}
	return i
}

func scanString(src string, i int) (string, int, error) {
	quote := src[i]
	var sb strings.Builder
	j := i + 1
	for j < len(src) {
		c := src[j]
		switch {
		case c == '\\' && j+1 < len(src):
			next := src[j+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(next)
			}
			j += 2
		case c == quote:
			return sb.String(), j + 1, nil
		default:
			sb.WriteByte(c)
			j++
		}
	}
	return "", 0, &SyntaxError{Pos: i, Token: src[i:], Msg: "unterminated string"}
}
