package parser

import (
	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/text"
	"github.com/tenorlang/tenor/source/token"
)

func (p *Parser) parseTypeDecl(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	fields, e := p.parseRecordFields()
	if e != nil {
		return nil, e
	}
	return ast.TypeDecl{Id: id, Fields: fields, Prov: p.prov(line)}, nil
}

func (p *Parser) parseFact(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	var factType ast.RawType
	var source ast.RawSourceDecl
	var deflt ast.RawLiteral
	for p.peek().Type != token.RBRACE {
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "type":
			if factType, e = p.parseType(); e != nil {
				return nil, e
			}
		case "source":
			if source, e = p.parseFactSource(); e != nil {
				return nil, e
			}
		case "default":
			if deflt, e = p.parseLiteral(); e != nil {
				return nil, e
			}
		default:
			return nil, p.throw("parse/fact/field", key)
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	if factType == nil {
		return nil, p.throw("parse/fact/type")
	}
	if source == nil {
		return nil, p.throw("parse/fact/source")
	}
	return ast.Fact{Id: id, Type: factType, Source: source, Default: deflt, Prov: p.prov(line)}, nil
}

// Freetext: source: "some.string"
// Structured: source: source_id { path: "..." }
func (p *Parser) parseFactSource() (ast.RawSourceDecl, *err.Error) {
	if p.peek().Type == token.STRING {
		s, e := p.takeStr()
		if e != nil {
			return nil, e
		}
		return ast.FreetextSource{Text: s}, nil
	}
	sourceId, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	if _, e := p.expectWord("path"); e != nil {
		return nil, e
	}
	if e := p.expectColon(); e != nil {
		return nil, e
	}
	path, e := p.takeStr()
	if e != nil {
		return nil, e
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return ast.StructuredSource{SourceId: sourceId, Path: path}, nil
}

func (p *Parser) parseSource(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	protocol := ""
	description := ""
	fields := map[string]string{}
	for p.peek().Type != token.RBRACE {
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "protocol":
			if protocol, e = p.parseProtocolTag(); e != nil {
				return nil, e
			}
		case "description":
			if description, e = p.takeStr(); e != nil {
				return nil, e
			}
		default:
			// All other fields: accept string or bare word as string value.
			var val string
			if p.peek().Type == token.STRING {
				val, e = p.takeStr()
			} else {
				val, e = p.takeWord()
			}
			if e != nil {
				return nil, e
			}
			fields[key] = val
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	if protocol == "" {
		return nil, p.throw("parse/source/protocol")
	}
	return ast.Source{Id: id, Protocol: protocol, Fields: fields, Description: description,
		Prov: p.prov(line)}, nil
}

// Protocol tags can be dotted extension tags like x_internal.event_bus.
func (p *Parser) parseProtocolTag() (string, *err.Error) {
	tag, e := p.takeWord()
	if e != nil {
		return "", e
	}
	for p.peek().Type == token.DOT {
		p.advance()
		next, e := p.takeWord()
		if e != nil {
			return "", e
		}
		tag = tag + "." + next
	}
	return tag, nil
}

func (p *Parser) parseEntity(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	states := []string{}
	initial := ""
	initialLine := line
	transitions := []ast.Transition{}
	parent := ""
	parentLine := 0
	for p.peek().Type != token.RBRACE {
		fieldLine := p.curLine()
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "states":
			if states, e = p.parseIdentArray(); e != nil {
				return nil, e
			}
		case "initial":
			initialLine = fieldLine
			if initial, e = p.takeWord(); e != nil {
				return nil, e
			}
		case "transitions":
			if transitions, e = p.parseTransitions(); e != nil {
				return nil, e
			}
		case "parent":
			parentLine = fieldLine
			if parent, e = p.takeWord(); e != nil {
				return nil, e
			}
		default:
			return nil, p.throw("parse/field/unknown", "Entity", key)
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return ast.Entity{Id: id, States: states, Initial: initial, InitialLine: initialLine,
		Transitions: transitions, Parent: parent, ParentLine: parentLine, Prov: p.prov(line)}, nil
}

func (p *Parser) parseTransitions() ([]ast.Transition, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	transitions := []ast.Transition{}
	for p.peek().Type != token.RBRACK {
		tLine := p.curLine()
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		from, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectTransitionSep(); e != nil {
			return nil, e
		}
		to, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		transitions = append(transitions, ast.Transition{From: from, To: to, Line: tLine})
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return transitions, nil
}

func (p *Parser) expectTransitionSep() *err.Error {
	switch p.peek().Type {
	case token.COMMA, token.GT:
		p.advance()
		return nil
	}
	return p.throw("parse/transition/sep", text.DescribeTok(p.peek()))
}

func (p *Parser) parseRule(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	hasStratum := false
	stratum := int64(0)
	stratumLine := line
	var when ast.RawExpr
	verdictType := ""
	var payloadType ast.RawType = ast.BoolType{}
	var payloadValue ast.RawTerm = ast.Literal{Lit: ast.BoolLit{Value: true}}
	produceLine := line
	for p.peek().Type != token.RBRACE {
		fieldLine := p.curLine()
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "stratum":
			stratumLine = fieldLine
			if stratum, e = p.takeInt(); e != nil {
				return nil, e
			}
			hasStratum = true
		case "when":
			if when, e = p.parseExpr(); e != nil {
				return nil, e
			}
		case "produce":
			produceLine = fieldLine
			if verdictType, payloadType, payloadValue, e = p.parseProduce(); e != nil {
				return nil, e
			}
		default:
			return nil, p.throw("parse/field/unknown", "Rule", key)
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	if !hasStratum {
		return nil, p.throw("parse/rule/stratum")
	}
	if when == nil {
		return nil, p.throw("parse/rule/when")
	}
	return ast.Rule{Id: id, Stratum: stratum, StratumLine: stratumLine, When: when,
		VerdictType: verdictType, PayloadType: payloadType, PayloadValue: payloadValue,
		ProduceLine: produceLine, Prov: p.prov(line)}, nil
}

func (p *Parser) parseProduce() (string, ast.RawType, ast.RawTerm, *err.Error) {
	if _, e := p.expectWord("verdict"); e != nil {
		return "", nil, nil, e
	}
	verdictType, e := p.takeWord()
	if e != nil {
		return "", nil, nil, e
	}
	// A bare verdict carries the default Bool(true) payload.
	if p.peek().Type != token.LBRACE {
		return verdictType, ast.BoolType{}, ast.Literal{Lit: ast.BoolLit{Value: true}}, nil
	}
	if e := p.expectLBrace(); e != nil {
		return "", nil, nil, e
	}
	if _, e := p.expectWord("payload"); e != nil {
		return "", nil, nil, e
	}
	if e := p.expectColon(); e != nil {
		return "", nil, nil, e
	}
	payloadType, e := p.parseType()
	if e != nil {
		return "", nil, nil, e
	}
	if e := p.expectEq(); e != nil {
		return "", nil, nil, e
	}
	payloadValue, e := p.parseTerm()
	if e != nil {
		return "", nil, nil, e
	}
	if e := p.expectRBrace(); e != nil {
		return "", nil, nil, e
	}
	return verdictType, payloadType, payloadValue, nil
}

func (p *Parser) parseOperation(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	personas := []string{}
	allowedPersonasLine := line
	var precondition ast.RawExpr
	effects := []ast.Effect{}
	errorContract := []string{}
	outcomes := []string{}
	for p.peek().Type != token.RBRACE {
		fieldLine := p.curLine()
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "allowed_personas":
			allowedPersonasLine = fieldLine
			if personas, e = p.parseIdentArray(); e != nil {
				return nil, e
			}
		case "precondition":
			if precondition, e = p.parseExpr(); e != nil {
				return nil, e
			}
		case "effects":
			if effects, e = p.parseEffects(); e != nil {
				return nil, e
			}
		case "error_contract":
			if errorContract, e = p.parseIdentArray(); e != nil {
				return nil, e
			}
		case "outcomes":
			if outcomes, e = p.parseIdentArray(); e != nil {
				return nil, e
			}
		default:
			return nil, p.throw("parse/field/unknown", "Operation", key)
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	if precondition == nil {
		return nil, p.throw("parse/field/missing", "Operation", "precondition")
	}
	return ast.Operation{Id: id, AllowedPersonas: personas, AllowedPersonasLine: allowedPersonasLine,
		Precondition: precondition, Effects: effects, ErrorContract: errorContract,
		Outcomes: outcomes, Prov: p.prov(line)}, nil
}

func (p *Parser) parseEffects() ([]ast.Effect, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	effects := []ast.Effect{}
	for p.peek().Type != token.RBRACK {
		eLine := p.curLine()
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		entity, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectComma(); e != nil {
			return nil, e
		}
		from, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectComma(); e != nil {
			return nil, e
		}
		to, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		// Optional outcome label. A comma followed by anything but a word is a
		// trailing comma, so we back up over it.
		outcome := ""
		if p.peek().Type == token.COMMA {
			savedPos := p.pos
			p.advance()
			if p.peek().Type == token.IDENT {
				if outcome, e = p.takeWord(); e != nil {
					return nil, e
				}
			} else {
				p.pos = savedPos
			}
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		effects = append(effects, ast.Effect{EntityId: entity, From: from, To: to,
			Outcome: outcome, Line: eLine})
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return effects, nil
}
