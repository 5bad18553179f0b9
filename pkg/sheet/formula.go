package sheet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind uint8

const (
	tEOF tokenKind = iota
	tNumber
	tString
	tIdent
	tLParen
	tRParen
	tComma
	tPlus
	tMinus
	tStar
	tSlash
	tEQ
	tNE
	tLT
	tLE
	tGT
	tGE
)

var tokenNames = [...]string{
	tEOF:    "end of formula",
	tNumber: "number",
	tString: "string",
	tIdent:  "name",
	tLParen: "(",
	tRParen: ")",
	tComma:  ",",
	tPlus:   "+",
	tMinus:  "-",
	tStar:   "*",
	tSlash:  "/",
	tEQ:     "=",
	tNE:     "<>",
	tLT:     "<",
	tLE:     "<=",
	tGT:     ">",
	tGE:     ">=",
}

func (k tokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

type token struct {
	kind tokenKind
	pos  int
	text string
	num  float64
}

// ParseError reports a malformed formula.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("formula: %s at offset %d", e.Msg, e.Pos)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			// Exponent: 1e3, 2.5E-4.
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && src[j] >= '0' && src[j] <= '9' {
					for j < len(src) && src[j] >= '0' && src[j] <= '9' {
						j++
					}
					i = j
				}
			}
			f, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &ParseError{Pos: start, Msg: fmt.Sprintf("bad number %q", src[start:i])}
			}
			toks = append(toks, token{kind: tNumber, pos: start, text: src[start:i], num: f})
		case c == '"':
			start := i
			i++
			var b strings.Builder
			for {
				if i >= len(src) {
					return nil, &ParseError{Pos: start, Msg: "unterminated string"}
				}
				if src[i] == '"' {
					// "" is an escaped quote.
					if i+1 < len(src) && src[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(src[i])
				i++
			}
			toks = append(toks, token{kind: tString, pos: start, text: b.String()})
		case isNameStart(rune(c)):
			start := i
			for i < len(src) && isNamePart(rune(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tIdent, pos: start, text: src[start:i]})
		default:
			kind, width := operator(src[i:])
			if width == 0 {
				return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, token{kind: kind, pos: i, text: src[i : i+width]})
			i += width
		}
	}
	return append(toks, token{kind: tEOF, pos: len(src)}), nil
}

func operator(s string) (tokenKind, int) {
	if len(s) >= 2 {
		switch s[:2] {
		case "<>":
			return tNE, 2
		case "<=":
			return tLE, 2
		case ">=":
			return tGE, 2
		}
	}
	switch s[0] {
	case '(':
		return tLParen, 1
	case ')':
		return tRParen, 1
	case ',':
		return tComma, 1
	case '+':
		return tPlus, 1
	case '-':
		return tMinus, 1
	case '*':
		return tStar, 1
	case '/':
		return tSlash, 1
	case '=':
		return tEQ, 1
	case '<':
		return tLT, 1
	case '>':
		return tGT, 1
	}
	return tEOF, 0
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r)
}

// ValidName reports whether name can be used as an entry name and referenced
// from formulas.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !isNameStart(r) || !isNamePart(r) {
			return false
		}
	}
	if _, ok := functions[strings.ToUpper(name)]; ok {
		return false
	}
	return true
}

type expr interface {
	exprNode()
}

type (
	numberLit struct{ value float64 }
	stringLit struct{ value string }
	refExpr   struct{ name string }

	unaryExpr struct {
		op tokenKind
		x  expr
	}

	binaryExpr struct {
		op          tokenKind
		left, right expr
	}

	callExpr struct {
		fn   string
		args []expr
	}
)

func (*numberLit) exprNode() {}
func (*stringLit) exprNode() {}
func (*refExpr) exprNode() {}
func (*unaryExpr) exprNode() {}
func (*binaryExpr) exprNode() {}
func (*callExpr) exprNode() {}

var (
	binopPriority = [...]struct{ left, right int }{
		tEQ:    {1, 1},
		tNE:    {1, 1},
		tLT:    {1, 1},
		tLE:    {1, 1},
		tGT:    {1, 1},
		tGE:    {1, 1},
		tPlus:  {2, 2},
		tMinus: {2, 2},
		tStar:  {3, 3},
		tSlash: {3, 3},
	}
	unopPriority = 4
)

func isBinop(k tokenKind) bool {
	return int(k) < len(binopPriority) && binopPriority[k].left > 0
}

type parser struct {
	toks []token
	pos  int
	tok  token
}

// parse parses a formula body (the text after the leading '=').
func parse(src string) (e expr, err error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, tok: toks[0]}

	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			e, err = nil, pe
		}
	}()

	e = p.parseSubExpr(0)
	p.expect(tEOF)
	return e, nil
}

func (p *parser) next() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	p.tok = p.toks[p.pos]
}

func (p *parser) expect(k tokenKind) token {
	t := p.tok
	if t.kind != k {
		p.errorf("expected %s, found %s", k, t.kind)
	}
	p.next()
	return t
}

func (p *parser) errorf(format string, args ...any) {
	panic(&ParseError{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)})
}

// parseSubExpr parses an expression whose binary operators bind tighter
// than priority.
func (p *parser) parseSubExpr(priority int) expr {
	var left expr
	if p.tok.kind == tMinus || p.tok.kind == tPlus {
		op := p.tok.kind
		p.next()
		left = &unaryExpr{op: op, x: p.parseSubExpr(unopPriority)}
	} else {
		left = p.parseOperand()
	}

	for isBinop(p.tok.kind) && binopPriority[p.tok.kind].left > priority {
		op := p.tok.kind
		p.next()
		right := p.parseSubExpr(binopPriority[op].right)
		left = &binaryExpr{op: op, left: left, right: right}
	}
	return left
}

func (p *parser) parseOperand() expr {
	switch p.tok.kind {
	case tNumber:
		t := p.expect(tNumber)
		return &numberLit{value: t.num}
	case tString:
		t := p.expect(tString)
		return &stringLit{value: t.text}
	case tLParen:
		p.next()
		e := p.parseSubExpr(0)
		p.expect(tRParen)
		return e
	case tIdent:
		t := p.expect(tIdent)
		if p.tok.kind != tLParen {
			return &refExpr{name: t.text}
		}
		name := strings.ToUpper(t.text)
		arity, ok := functions[name]
		if !ok {
			panic(&ParseError{Pos: t.pos, Msg: fmt.Sprintf("unknown function %s", t.text)})
		}
		p.next()
		var args []expr
		for p.tok.kind != tRParen {
			args = append(args, p.parseSubExpr(0))
			if p.tok.kind != tComma {
				break
			}
			p.next()
		}
		p.expect(tRParen)
		if len(args) < arity.min || arity.max >= 0 && len(args) > arity.max {
			panic(&ParseError{Pos: t.pos, Msg: fmt.Sprintf("wrong number of arguments to %s", name)})
		}
		return &callExpr{fn: name, args: args}
	default:
		p.errorf("unexpected %s", p.tok.kind)
		panic("unreachable")
	}
}

// Check reports whether raw is a well-formed entry. Literals always are;
// for formulas the error is a *ParseError whose Pos is an offset into the
// text after the leading "=".
func Check(raw string) error {
	body, ok := formulaBody(raw)
	if !ok {
		return nil
	}
	_, err := parse(body)
	return err
}

// References returns the distinct entry names a formula reads, in order of
// first appearance. Literals and malformed formulas have none.
func References(raw string) []string {
	body, ok := formulaBody(raw)
	if !ok {
		return nil
	}
	e, err := parse(body)
	if err != nil {
		return nil
	}
	var (
		names []string
		seen  = map[string]bool{}
		walk  func(expr)
	)
	walk = func(e expr) {
		switch e := e.(type) {
		case *refExpr:
			if !seen[e.name] {
				seen[e.name] = true
				names = append(names, e.name)
			}
		case *unaryExpr:
			walk(e.x)
		case *binaryExpr:
			walk(e.left)
			walk(e.right)
		case *callExpr:
			for _, a := range e.args {
				walk(a)
			}
		}
	}
	walk(e)
	return names
}

// formulaBody strips the leading '=' of a formula.
func formulaBody(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "=") {
		return "", false
	}
	return s[1:], true
}
