// The parser turns the token stream of one file into raw constructs.
// All constructs carry provenance (file, line of the opening keyword).
// No type checking or resolution is done here, that is elaboration's job.

package parser

import (
	"fmt"
	"strconv"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/lexer"
	"github.com/tenorlang/tenor/source/settings"
	"github.com/tenorlang/tenor/source/text"
	"github.com/tenorlang/tenor/source/token"
)

type Parser struct {
	tokens   []token.Token
	pos      int
	filename string
}

func New(tokens []token.Token, filename string) *Parser {
	return &Parser{tokens: tokens, filename: filename}
}

// Parse lexes and parses a whole file, stopping at the first error.
func Parse(filename, input string) ([]ast.RawConstruct, *err.Error) {
	toks, lexErr := lexer.LexAll(filename, input)
	if lexErr != nil {
		return nil, lexErr
	}
	return New(toks, filename).ParseFile()
}

// ParseRecovering lexes and parses a whole file in multi-error recovery mode,
// returning the successfully parsed constructs plus the accumulated errors.
// A lexer error prevents any recovery and comes back alone as the fatal error.
//
// The parser recovers at construct boundaries: when an error occurs inside a
// construct body, it skips tokens until it reaches a closing brace at the
// matching nesting level or a top-level keyword, then resumes parsing.
func ParseRecovering(filename, input string, maxErrors int) ([]ast.RawConstruct, err.Errors, *err.Error) {
	toks, lexErr := lexer.LexAll(filename, input)
	if lexErr != nil {
		return nil, nil, lexErr
	}
	constructs, errors := New(toks, filename).ParseFileRecovering(maxErrors)
	return constructs, errors, nil
}

func (p *Parser) cur() *token.Token {
	i := p.pos
	if i > len(p.tokens)-1 {
		i = len(p.tokens) - 1
	}
	return &p.tokens[i]
}

func (p *Parser) peek() *token.Token {
	return p.cur()
}

func (p *Parser) curLine() int {
	return p.cur().Line
}

func (p *Parser) advance() *token.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	if settings.SHOW_PARSER {
		fmt.Println("Parser consuming token", *t)
	}
	return t
}

func (p *Parser) throw(errorID string, args ...any) *err.Error {
	return err.CreateErr(errorID, 0, p.filename, p.curLine(), args...)
}

func (p *Parser) isWord(w string) bool {
	return p.peek().Type == token.IDENT && p.peek().Literal == w
}

func (p *Parser) expectType(tt token.TokenType, desc string) *err.Error {
	if p.peek().Type == tt {
		p.advance()
		return nil
	}
	return p.throw("parse/expect", desc, text.DescribeTok(p.peek()))
}

func (p *Parser) expectWord(expected string) (int, *err.Error) {
	line := p.curLine()
	if p.isWord(expected) {
		p.advance()
		return line, nil
	}
	return 0, p.throw("parse/expect", "'"+expected+"'", text.DescribeTok(p.peek()))
}

func (p *Parser) expectColon() *err.Error  { return p.expectType(token.COLON, "':'") }
func (p *Parser) expectComma() *err.Error  { return p.expectType(token.COMMA, "','") }
func (p *Parser) expectEq() *err.Error     { return p.expectType(token.EQ, "'='") }
func (p *Parser) expectLBrace() *err.Error { return p.expectType(token.LBRACE, "'{'") }
func (p *Parser) expectRBrace() *err.Error { return p.expectType(token.RBRACE, "'}'") }
func (p *Parser) expectLParen() *err.Error { return p.expectType(token.LPAREN, "'('") }
func (p *Parser) expectRParen() *err.Error { return p.expectType(token.RPAREN, "')'") }
func (p *Parser) expectLBrack() *err.Error { return p.expectType(token.LBRACK, "'['") }
func (p *Parser) expectRBrack() *err.Error { return p.expectType(token.RBRACK, "']'") }

func (p *Parser) takeWord() (string, *err.Error) {
	if p.peek().Type == token.IDENT {
		return p.advance().Literal, nil
	}
	return "", p.throw("parse/expect", "identifier", text.DescribeTok(p.peek()))
}

func (p *Parser) takeStr() (string, *err.Error) {
	if p.peek().Type == token.STRING {
		return p.advance().Literal, nil
	}
	return "", p.throw("parse/expect", "string literal", text.DescribeTok(p.peek()))
}

func (p *Parser) takeInt() (int64, *err.Error) {
	switch p.peek().Type {
	case token.INT:
		n, _ := parseInt(p.peek().Literal)
		p.advance()
		return n, nil
	case token.IDENT:
		if n, ok := parseInt(p.peek().Literal); ok {
			p.advance()
			return n, nil
		}
	}
	return 0, p.throw("parse/expect", "integer", text.DescribeTok(p.peek()))
}

func parseInt(s string) (int64, bool) {
	n, e := strconv.ParseInt(s, 10, 64)
	return n, e == nil
}

// ── Top level ─────────────────────────────────────────────────────────────────

func (p *Parser) ParseFile() ([]ast.RawConstruct, *err.Error) {
	constructs := []ast.RawConstruct{}
	for p.peek().Type != token.EOF {
		c, e := p.parseConstruct()
		if e != nil {
			return nil, e
		}
		constructs = append(constructs, c)
	}
	if e := checkSystemFile(constructs); e != nil {
		return nil, e
	}
	return constructs, nil
}

func (p *Parser) ParseFileRecovering(maxErrors int) ([]ast.RawConstruct, err.Errors) {
	constructs := []ast.RawConstruct{}
	errors := err.Errors{}
	for p.peek().Type != token.EOF {
		c, e := p.parseConstruct()
		if e != nil {
			errors = append(errors, e)
			if len(errors) >= maxErrors {
				break
			}
			p.recoverToNextConstruct()
			continue
		}
		constructs = append(constructs, c)
	}
	if len(errors) == 0 {
		if e := checkSystemFile(constructs); e != nil {
			errors = append(errors, e)
		}
	}
	return constructs, errors
}

// At most one system declaration per file, and a file with one may not contain
// contract constructs; the member contracts live in their own files.
func checkSystemFile(constructs []ast.RawConstruct) *err.Error {
	var firstSystem *ast.System
	for _, c := range constructs {
		if sys, ok := c.(ast.System); ok {
			if firstSystem != nil {
				return err.CreateErr("parse/system/multiple", 0, sys.Prov.File, sys.Prov.Line)
			}
			s := sys
			firstSystem = &s
		}
	}
	if firstSystem == nil {
		return nil
	}
	for _, c := range constructs {
		switch c.(type) {
		case ast.System, ast.Import:
		default:
			prov := c.GetProv()
			return err.CreateErr("parse/system/mixed", 0, prov.File, prov.Line)
		}
	}
	return nil
}

func (p *Parser) isConstructKeyword() bool {
	return p.peek().Type == token.IDENT && token.ConstructKeywords[p.peek().Literal]
}

// Skip tokens until we find a closing brace at the original nesting level, or
// a top-level construct keyword at nesting level 0.
func (p *Parser) recoverToNextConstruct() {
	depth := 0
	for {
		switch p.peek().Type {
		case token.EOF:
			return
		case token.LBRACE:
			depth++
			p.advance()
		case token.RBRACE:
			if depth <= 0 {
				p.advance()
				return
			}
			depth--
			p.advance()
		default:
			if depth == 0 && p.isConstructKeyword() {
				return
			}
			p.advance()
		}
	}
}

func (p *Parser) parseConstruct() (ast.RawConstruct, *err.Error) {
	line := p.curLine()
	if p.peek().Type != token.IDENT {
		return nil, p.throw("parse/construct/keyword", text.DescribeTok(p.peek()))
	}
	switch p.peek().Literal {
	case "import":
		return p.parseImport(line)
	case "type":
		return p.parseTypeDecl(line)
	case "fact":
		return p.parseFact(line)
	case "entity":
		return p.parseEntity(line)
	case "rule":
		return p.parseRule(line)
	case "operation":
		return p.parseOperation(line)
	case "flow":
		return p.parseFlow(line)
	case "persona":
		return p.parsePersona(line)
	case "system":
		return p.parseSystem(line)
	case "source":
		return p.parseSource(line)
	}
	return nil, p.throw("parse/construct/unknown", p.peek().Literal)
}

func (p *Parser) prov(line int) ast.Provenance {
	return ast.Provenance{File: p.filename, Line: line}
}

func (p *Parser) parseImport(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	path, e := p.takeStr()
	if e != nil {
		return nil, e
	}
	return ast.Import{Path: path, Prov: p.prov(line)}, nil
}

func (p *Parser) parsePersona(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	return ast.Persona{Id: id, Prov: p.prov(line)}, nil
}
