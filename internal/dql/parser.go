package dql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/starford/ansuz/internal/value"
)

var clauseKeywords = map[string]bool{
	"from": true, "where": true, "sort": true, "group": true, "limit": true,
}

var reservedWords = map[string]bool{
	"as": true, "and": true, "or": true, "not": true, "asc": true, "desc": true,
	"true": true, "false": true, "null": true,
}

// functionArity lists the functions callable in WHERE expressions.
var functionArity = map[string]int{
	"contains":   2,
	"startswith": 2,
	"endswith":   2,
	"lower":      1,
	"length":     1,
	"date":       1,
}

// RelativeDates are the date(...) arguments evaluated at query time.
var RelativeDates = map[string]bool{"today": true, "now": true, "yesterday": true, "tomorrow": true}

type parser struct {
	toks []token
	pos  int
}

// Parse turns query text into a Query. On failure it returns a *SyntaxError
// and no partial AST.
func Parse(text string) (*Query, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	q, err := p.query()
	if err != nil {
		return nil, err
	}
	q.Text = text
	return q, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	tok := t.text
	if t.kind == tokEOF {
		tok = ""
	}
	return &SyntaxError{Pos: t.pos, Token: tok, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", what, t)
	}
	return t, nil
}

func (p *parser) expectKeyword(kw string) error {
	t := p.next()
	if !t.is(kw) {
		return p.errorf(t, "expected %s, found %s", strings.ToUpper(kw), t)
	}
	return nil
}

func isClauseStart(t token) bool {
	return t.kind == tokIdent && clauseKeywords[strings.ToLower(t.text)]
}

func (p *parser) query() (*Query, error) {
	q := &Query{}
	t := p.next()
	switch {
	case t.is("table"):
		q.Type = Table
	case t.is("list"):
		q.Type = List
	default:
		return nil, p.errorf(t, "query must start with TABLE or LIST")
	}

	if p.peek().is("without") {
		p.next()
		if err := p.expectKeyword("id"); err != nil {
			return nil, err
		}
		q.WithoutID = true
	}

	if err := p.columns(q); err != nil {
		return nil, err
	}

	if p.peek().is("from") {
		p.next()
		src, err := p.source()
		if err != nil {
			return nil, err
		}
		q.From = src
	}
	if p.peek().is("where") {
		p.next()
		expr, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		q.Where = expr
	}

	for {
		t := p.peek()
		switch {
		case t.is("sort"):
			if q.Sort != nil {
				return nil, p.errorf(t, "duplicate SORT clause")
			}
			p.next()
			keys, err := p.sortKeys()
			if err != nil {
				return nil, err
			}
			q.Sort = keys
			continue
		case t.is("group"):
			if q.GroupBy != "" {
				return nil, p.errorf(t, "duplicate GROUP BY clause")
			}
			p.next()
			if err := p.expectKeyword("by"); err != nil {
				return nil, err
			}
			f, err := p.field()
			if err != nil {
				return nil, err
			}
			q.GroupBy = f
			continue
		}
		break
	}

	if p.peek().is("limit") {
		p.next()
		t, err := p.expect(tokNumber, "row count after LIMIT")
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.Atoi(t.text)
		if convErr != nil {
			return nil, p.errorf(t, "LIMIT must be a whole number")
		}
		q.Limit, q.HasLimit = n, true
	}

	if t := p.peek(); t.kind != tokEOF {
		if isClauseStart(t) {
			return nil, p.errorf(t, "clause %s is out of order or repeated", strings.ToUpper(t.text))
		}
		return nil, p.errorf(t, "unexpected %s", t)
	}
	return q, nil
}

func (p *parser) columns(q *Query) error {
	t := p.peek()
	if t.kind == tokEOF || isClauseStart(t) {
		if q.Type == Table {
			return p.errorf(t, "TABLE requires at least one column")
		}
		return nil
	}
	for {
		c, err := p.column()
		if err != nil {
			return err
		}
		q.Columns = append(q.Columns, c)
		if p.peek().kind != tokComma {
			return nil
		}
		comma := p.next()
		if q.Type == List {
			return p.errorf(comma, "LIST accepts at most one column")
		}
	}
}

func (p *parser) column() (Column, error) {
	c, err := p.colExpr()
	if err != nil {
		return Column{}, err
	}
	if p.peek().is("as") {
		p.next()
		t := p.next()
		switch {
		case t.kind == tokString && t.val != "":
			c.Alias = t.val
		case t.kind == tokIdent && !isClauseStart(t) && !reservedWords[strings.ToLower(t.text)]:
			c.Alias = t.text
		default:
			return Column{}, p.errorf(t, "expected alias after AS, found %s", t)
		}
	}
	return c, nil
}

func (p *parser) colExpr() (Column, error) {
	if p.peekAt(1).kind != tokLParen {
		f, err := p.field()
		return Column{Field: f}, err
	}
	name := p.next()
	if name.kind != tokIdent {
		return Column{}, p.errorf(name, "expected field or function, found %s", name)
	}
	p.next() // (
	switch strings.ToLower(name.text) {
	case "length":
		f, err := p.field()
		if err != nil {
			return Column{}, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return Column{}, err
		}
		return Column{Field: f, Func: FuncLength}, nil
	case "dateformat":
		f, err := p.field()
		if err != nil {
			return Column{}, err
		}
		if _, err := p.expect(tokComma, "',' before the date format"); err != nil {
			return Column{}, err
		}
		format, err := p.expect(tokString, "quoted date format")
		if err != nil {
			return Column{}, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return Column{}, err
		}
		return Column{Field: f, Func: FuncDateFormat, Format: format.val}, nil
	}
	return Column{}, p.errorf(name, "unknown function %q", name.text)
}

func (p *parser) field() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", p.errorf(t, "expected field name, found %s", t)
	}
	if lower := strings.ToLower(t.text); clauseKeywords[lower] || reservedWords[lower] {
		return "", p.errorf(t, "expected field name, found keyword %s", strings.ToUpper(t.text))
	}
	return t.text, nil
}

func (p *parser) sortKeys() ([]SortKey, error) {
	var keys []SortKey
	for {
		c, err := p.colExpr()
		if err != nil {
			return nil, err
		}
		k := SortKey{Column: c}
		switch t := p.peek(); {
		case t.is("asc"), t.is("ascending"):
			p.next()
		case t.is("desc"), t.is("descending"):
			p.next()
			k.Desc = true
		}
		keys = append(keys, k)
		if p.peek().kind != tokComma {
			return keys, nil
		}
		p.next()
	}
}

func (p *parser) source() (Source, error) {
	l, err := p.sourceAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().is("or") {
		p.next()
		r, err := p.sourceAnd()
		if err != nil {
			return nil, err
		}
		l = BinarySource{Op: "or", L: l, R: r}
	}
	return l, nil
}

func (p *parser) sourceAnd() (Source, error) {
	l, err := p.sourceTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().is("and") {
		p.next()
		r, err := p.sourceTerm()
		if err != nil {
			return nil, err
		}
		l = BinarySource{Op: "and", L: l, R: r}
	}
	return l, nil
}

func (p *parser) sourceTerm() (Source, error) {
	t := p.next()
	switch t.kind {
	case tokMinus, tokBang:
		x, err := p.sourceTerm()
		if err != nil {
			return nil, err
		}
		return NotSource{X: x}, nil
	case tokString:
		return FolderSource{Path: strings.Trim(t.val, "/")}, nil
	case tokTag:
		return TagSource{Tag: t.val}, nil
	case tokLink:
		l, ok := value.ParseLink(t.text)
		if !ok {
			return nil, p.errorf(t, "invalid link")
		}
		return LinkSource{Target: l.Path}, nil
	case tokLParen:
		src, err := p.source()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, p.errorf(t, "expected folder, #tag or [[link]] source, found %s", t)
}

func (p *parser) orExpr() (Expr, error) {
	l, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().is("or") {
		p.next()
		r, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: "or", L: l, R: r}
	}
	return l, nil
}

func (p *parser) andExpr() (Expr, error) {
	l, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().is("and") {
		p.next()
		r, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: "and", L: l, R: r}
	}
	return l, nil
}

func (p *parser) notExpr() (Expr, error) {
	if t := p.peek(); t.kind == tokBang || t.is("not") {
		p.next()
		x, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "!", X: x}, nil
	}
	return p.cmpExpr()
}

var comparisonOps = map[tokenKind]string{
	tokEq: "=", tokNeq: "!=", tokLt: "<", tokLte: "<=", tokGt: ">", tokGte: ">=",
}

func (p *parser) cmpExpr() (Expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	op, ok := comparisonOps[p.peek().kind]
	if !ok {
		return l, nil
	}
	p.next()
	r, err := p.unary()
	if err != nil {
		return nil, err
	}
	return Binary{Op: op, L: l, R: r}, nil
}

func (p *parser) unary() (Expr, error) {
	if p.peek().kind == tokMinus {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if lit, ok := x.(Literal); ok {
			if n, ok := lit.Value.AsNumber(); ok {
				return Literal{Value: value.Number(-n)}, nil
			}
		}
		return Unary{Op: "-", X: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return Literal{Value: value.String(t.val)}, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number")
		}
		return Literal{Value: value.Number(n)}, nil
	case tokLink:
		l, ok := value.ParseLink(t.text)
		if !ok {
			return nil, p.errorf(t, "invalid link")
		}
		return Literal{Value: value.LinkTo(l)}, nil
	case tokLParen:
		x, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	case tokIdent:
		lower := strings.ToLower(t.text)
		switch lower {
		case "true":
			return Literal{Value: value.Bool(true)}, nil
		case "false":
			return Literal{Value: value.Bool(false)}, nil
		case "null":
			return Literal{Value: value.Undefined}, nil
		}
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		if clauseKeywords[lower] || reservedWords[lower] {
			return nil, p.errorf(t, "expected expression, found keyword %s", strings.ToUpper(t.text))
		}
		return FieldRef{Path: t.text}, nil
	}
	return nil, p.errorf(t, "expected expression, found %s", t)
}

func (p *parser) call(name token) (Expr, error) {
	fn := strings.ToLower(name.text)
	arity, ok := functionArity[fn]
	if !ok {
		return nil, p.errorf(name, "unknown function %q", name.text)
	}
	p.next() // (
	var args []Expr
	if p.peek().kind != tokRParen {
		for {
			a, err := p.orExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if len(args) != arity {
		return nil, p.errorf(name, "%s expects %d argument(s), got %d", fn, arity, len(args))
	}
	if fn == "date" {
		return dateCall(p, name, args[0])
	}
	return Call{Name: fn, Args: args}, nil
}

// dateCall folds date("2024-01-31") into a date literal. Relative words such
// as today stay a call and are evaluated per query.
func dateCall(p *parser, name token, arg Expr) (Expr, error) {
	var s string
	switch a := arg.(type) {
	case Literal:
		str, ok := a.Value.AsString()
		if !ok {
			return Call{Name: "date", Args: []Expr{arg}}, nil
		}
		s = str
	case FieldRef:
		if !RelativeDates[strings.ToLower(a.Path)] {
			return Call{Name: "date", Args: []Expr{arg}}, nil
		}
		s = a.Path
	default:
		return Call{Name: "date", Args: []Expr{arg}}, nil
	}
	if RelativeDates[strings.ToLower(s)] {
		return Call{Name: "date", Args: []Expr{Literal{Value: value.String(strings.ToLower(s))}}}, nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil, p.errorf(name, "invalid date %q", s)
	}
	return Literal{Value: value.Date(t)}, nil
}
