package parser

import (
	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/token"
)

func (p *Parser) parseSystem(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	sys := ast.System{Id: id, Prov: p.prov(line)}
	for p.peek().Type != token.RBRACE {
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "members":
			if sys.Members, e = p.parseSystemMembers(); e != nil {
				return nil, e
			}
		case "shared_personas":
			if sys.SharedPersonas, e = p.parseSharedBindings("persona", "shared_personas"); e != nil {
				return nil, e
			}
		case "triggers":
			if sys.Triggers, e = p.parseSystemTriggers(); e != nil {
				return nil, e
			}
		case "shared_entities":
			if sys.SharedEntities, e = p.parseSharedBindings("entity", "shared_entities"); e != nil {
				return nil, e
			}
		default:
			return nil, p.throw("parse/field/unknown", "System", key)
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return sys, nil
}

func (p *Parser) parseSystemMembers() ([]ast.Member, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	members := []ast.Member{}
	for p.peek().Type != token.RBRACK {
		id, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		path, e := p.takeStr()
		if e != nil {
			return nil, e
		}
		members = append(members, ast.Member{Id: id, Path: path})
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return members, nil
}

// Shared persona and shared entity blocks have the same shape, only
// the key naming the bound construct differs.
func (p *Parser) parseSharedBindings(idKey, blockName string) ([]ast.SharedBinding, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	bindings := []ast.SharedBinding{}
	for p.peek().Type != token.RBRACK {
		if e := p.expectLBrace(); e != nil {
			return nil, e
		}
		binding := ast.SharedBinding{Contracts: []string{}}
		for p.peek().Type != token.RBRACE {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case idKey:
				if binding.Id, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "contracts":
				if binding.Contracts, e = p.parseIdentArray(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", blockName, key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRBrace(); e != nil {
			return nil, e
		}
		bindings = append(bindings, binding)
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return bindings, nil
}

func (p *Parser) parseSystemTriggers() ([]ast.RawTrigger, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	triggers := []ast.RawTrigger{}
	for p.peek().Type != token.RBRACK {
		if e := p.expectLBrace(); e != nil {
			return nil, e
		}
		trigger := ast.RawTrigger{}
		for p.peek().Type != token.RBRACE {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "source":
				if trigger.SourceContract, e = p.takeWord(); e != nil {
					return nil, e
				}
				if p.peek().Type != token.DOT {
					return nil, p.throw("parse/trigger/dot/a")
				}
				p.advance()
				if trigger.SourceFlow, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "on":
				if trigger.On, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "target":
				if trigger.TargetContract, e = p.takeWord(); e != nil {
					return nil, e
				}
				if p.peek().Type != token.DOT {
					return nil, p.throw("parse/trigger/dot/b")
				}
				p.advance()
				if trigger.TargetFlow, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "persona":
				if trigger.Persona, e = p.takeWord(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "trigger", key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRBrace(); e != nil {
			return nil, e
		}
		triggers = append(triggers, trigger)
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return triggers, nil
}
