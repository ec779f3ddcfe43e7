package condition

// Expression AST. The grammar, lowest precedence first:
//
//	or     = and { "||" and }
//	and    = cmp { "&&" cmp }
//	cmp    = unary [ ("==" | "!=" | "<" | "<=" | ">" | ">=") unary ]
//	unary  = "!" unary | primary
//	primary = literal | identifier | "(" or ")"
type expr interface {
	exprNode()
}

type literalExpr struct {
	value any // float64 | string | bool | nil
}

type identExpr struct {
	name string
	pos  int
}

type unaryExpr struct {
	op      tokenKind // tokenNot
	operand expr
}

type binaryExpr struct {
	op          tokenKind
	left, right expr
	pos         int
}

func (literalExpr) exprNode() {}
func (identExpr) exprNode()   {}
func (unaryExpr) exprNode()   {}
func (binaryExpr) exprNode()  {}

type parser struct {
	tokens []token
	idx    int
}

// parse builds the AST for a condition expression. The whole input must be
// consumed; trailing tokens are a parse error.
func parse(input string) (expr, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, &ParseError{Pos: p.peek().pos, Message: "unexpected trailing input"}
	}
	return e, nil
}

func (p *parser) peek() token { return p.tokens[p.idx] }

func (p *parser) next() token {
	t := p.tokens[p.idx]
	if t.kind != tokenEOF {
		p.idx++
	}
	return t
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: tokenOr, left: left, right: right, pos: op.pos}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		op := p.next()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: tokenAnd, left: left, right: right, pos: op.pos}
	}
	return left, nil
}

func (p *parser) parseCmp() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryExpr{op: op.kind, left: left, right: right, pos: op.pos}, nil
	}
	return left, nil
}

func (p *parser) parseUnary() (expr, error) {
	if p.peek().kind == tokenNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: tokenNot, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokenNumber:
		return literalExpr{value: t.num}, nil
	case tokenString:
		return literalExpr{value: t.text}, nil
	case tokenTrue:
		return literalExpr{value: true}, nil
	case tokenFalse:
		return literalExpr{value: false}, nil
	case tokenNull:
		return literalExpr{value: nil}, nil
	case tokenIdent:
		return identExpr{name: t.text, pos: t.pos}, nil
	case tokenLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRParen {
			return nil, &ParseError{Pos: p.peek().pos, Message: "expected ')'"}
		}
		p.next()
		return e, nil
	case tokenEOF:
		return nil, &ParseError{Pos: t.pos, Message: "unexpected end of expression"}
	default:
		return nil, &ParseError{Pos: t.pos, Message: "unexpected token"}
	}
}
