package parser

import (
	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/text"
	"github.com/tenorlang/tenor/source/token"
)

// ── Literals ──────────────────────────────────────────────────────────────────

func (p *Parser) parseLiteral() (ast.RawLiteral, *err.Error) {
	tok := p.peek()
	switch {
	case tok.Type == token.IDENT && tok.Literal == "true":
		p.advance()
		return ast.BoolLit{Value: true}, nil
	case tok.Type == token.IDENT && tok.Literal == "false":
		p.advance()
		return ast.BoolLit{Value: false}, nil
	case tok.Type == token.INT:
		n, _ := parseInt(tok.Literal)
		p.advance()
		return ast.IntLit{Value: n}, nil
	case tok.Type == token.DECIMAL:
		s := tok.Literal
		p.advance()
		return ast.FloatLit{Value: s}, nil
	case tok.Type == token.STRING:
		s := tok.Literal
		p.advance()
		return ast.StrLit{Value: s}, nil
	case tok.Type == token.IDENT && tok.Literal == "Money":
		p.advance()
		if e := p.expectLBrace(); e != nil {
			return nil, e
		}
		amount := ""
		currency := ""
		for p.peek().Type != token.RBRACE {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "amount":
				if amount, e = p.takeStr(); e != nil {
					return nil, e
				}
			case "currency":
				if currency, e = p.takeStr(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/money/key", key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRBrace(); e != nil {
			return nil, e
		}
		return ast.MoneyLit{Amount: amount, Currency: currency}, nil
	}
	return nil, p.throw("parse/literal/expected", text.DescribeTok(tok))
}

// ── Expressions ───────────────────────────────────────────────────────────────

func (p *Parser) parseExpr() (ast.RawExpr, *err.Error) {
	return p.parseOrExpr()
}

func (p *Parser) parseOrExpr() (ast.RawExpr, *err.Error) {
	left, e := p.parseAndExpr()
	if e != nil {
		return nil, e
	}
	for p.peek().Type == token.OR || p.isWord("or") {
		p.advance()
		right, e := p.parseAndExpr()
		if e != nil {
			return nil, e
		}
		left = ast.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (ast.RawExpr, *err.Error) {
	left, e := p.parseUnaryExpr()
	if e != nil {
		return nil, e
	}
	for p.peek().Type == token.AND || p.isWord("and") {
		p.advance()
		right, e := p.parseUnaryExpr()
		if e != nil {
			return nil, e
		}
		left = ast.And{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnaryExpr() (ast.RawExpr, *err.Error) {
	if p.peek().Type == token.NOT || p.isWord("not") {
		p.advance()
		e, er := p.parseAtomExpr()
		if er != nil {
			return nil, er
		}
		return ast.Not{Operand: e}, nil
	}
	return p.parseAtomExpr()
}

func (p *Parser) parseAtomExpr() (ast.RawExpr, *err.Error) {
	if p.peek().Type == token.FORALL || p.peek().Type == token.EXISTS {
		isForall := p.peek().Type == token.FORALL
		line := p.curLine()
		p.advance()
		variable, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if p.peek().Type != token.IN {
			return nil, p.throw("parse/quant/in")
		}
		p.advance()
		domain, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if p.peek().Type != token.DOT {
			return nil, p.throw("parse/quant/dot")
		}
		p.advance()
		body, e := p.parseExpr()
		if e != nil {
			return nil, e
		}
		if isForall {
			return ast.Forall{Var: variable, Domain: domain, Body: body, Line: line}, nil
		}
		return ast.Exists{Var: variable, Domain: domain, Body: body, Line: line}, nil
	}

	if p.isWord("verdict_present") {
		line := p.curLine()
		p.advance()
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		id, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.VerdictPresent{Id: id, Line: line}, nil
	}

	if p.peek().Type == token.LPAREN {
		p.advance()
		e, er := p.parseExpr()
		if er != nil {
			return nil, er
		}
		if er := p.expectRParen(); er != nil {
			return nil, er
		}
		return e, nil
	}

	line := p.curLine()
	left, e := p.parseTerm()
	if e != nil {
		return nil, e
	}
	op, e := p.parseCompareOp()
	if e != nil {
		return nil, e
	}
	right, e := p.parseTerm()
	if e != nil {
		return nil, e
	}
	return ast.Compare{Op: op, Left: left, Right: right, Line: line}, nil
}

func (p *Parser) parseCompareOp() (string, *err.Error) {
	var op string
	switch p.peek().Type {
	case token.EQ:
		op = "="
	case token.NEQ:
		op = "!="
	case token.LT:
		op = "<"
	case token.LTE:
		op = "<="
	case token.GT:
		op = ">"
	case token.GTE:
		op = ">="
	default:
		return "", p.throw("parse/compare/op", text.DescribeTok(p.peek()))
	}
	p.advance()
	return op, nil
}

func (p *Parser) parseBaseTerm() (ast.RawTerm, *err.Error) {
	tok := p.peek()
	switch {
	case tok.Type == token.IDENT && tok.Literal == "true":
		p.advance()
		return ast.Literal{Lit: ast.BoolLit{Value: true}}, nil
	case tok.Type == token.IDENT && tok.Literal == "false":
		p.advance()
		return ast.Literal{Lit: ast.BoolLit{Value: false}}, nil
	case tok.Type == token.INT:
		n, _ := parseInt(tok.Literal)
		p.advance()
		return ast.Literal{Lit: ast.IntLit{Value: n}}, nil
	case tok.Type == token.DECIMAL:
		s := tok.Literal
		p.advance()
		return ast.Literal{Lit: ast.FloatLit{Value: s}}, nil
	case tok.Type == token.STRING:
		s := tok.Literal
		p.advance()
		return ast.Literal{Lit: ast.StrLit{Value: s}}, nil
	case tok.Type == token.IDENT && tok.Literal == "Money":
		lit, e := p.parseLiteral()
		if e != nil {
			return nil, e
		}
		return ast.Literal{Lit: lit}, nil
	case tok.Type == token.IDENT:
		name := tok.Literal
		p.advance()
		if p.peek().Type == token.DOT {
			p.advance()
			field, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			return ast.FieldRef{Var: name, Field: field}, nil
		}
		return ast.FactRef{Name: name}, nil
	}
	return nil, p.throw("parse/term/expected", text.DescribeTok(tok))
}

func (p *Parser) parseTerm() (ast.RawTerm, *err.Error) {
	left, e := p.parseBaseTerm()
	if e != nil {
		return nil, e
	}
	if p.peek().Type == token.STAR {
		p.advance()
		right, e := p.parseBaseTerm()
		if e != nil {
			return nil, e
		}
		return ast.Mul{Left: left, Right: right}, nil
	}
	return left, nil
}
