package parser

import (
	"math"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/token"
)

func (p *Parser) parseType() (ast.RawType, *err.Error) {
	name, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	switch name {
	case "Bool":
		return ast.BoolType{}, nil
	case "Date":
		return ast.DateType{}, nil
	case "DateTime":
		return ast.DateTimeType{}, nil
	case "Int":
		if p.peek().Type != token.LPAREN {
			return ast.IntType{Min: math.MinInt64, Max: math.MaxInt64}, nil
		}
		p.advance()
		min, max, e := p.parseIntParams()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.IntType{Min: min, Max: max}, nil
	case "Decimal":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		precision, e := p.parseNamedOrPositionalInt("precision")
		if e != nil {
			return nil, e
		}
		if p.peek().Type == token.COMMA {
			p.advance()
		}
		scale, e := p.parseNamedOrPositionalInt("scale")
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.DecimalType{Precision: int(precision), Scale: int(scale)}, nil
	case "Text":
		if p.peek().Type != token.LPAREN {
			return ast.TextType{MaxLength: 0}, nil
		}
		p.advance()
		maxLength, e := p.parseNamedOrPositionalInt("max_length")
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.TextType{MaxLength: int(maxLength)}, nil
	case "Money":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		if p.isWord("currency") {
			p.advance()
			if e := p.expectColon(); e != nil {
				return nil, e
			}
		}
		currency, e := p.takeStr()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.MoneyType{Currency: currency}, nil
	case "Duration":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		unit := ""
		min := int64(0)
		max := int64(math.MaxInt64)
		for p.peek().Type != token.RPAREN {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "unit":
				if unit, e = p.takeStr(); e != nil {
					return nil, e
				}
			case "min":
				if min, e = p.takeInt(); e != nil {
					return nil, e
				}
			case "max":
				if max, e = p.takeInt(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/param/unknown", "Duration", key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.DurationType{Unit: unit, Min: min, Max: max}, nil
	case "Enum":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		if p.isWord("values") {
			p.advance()
			if e := p.expectColon(); e != nil {
				return nil, e
			}
		}
		values, e := p.parseStringArray()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.EnumType{Values: values}, nil
	case "List":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		var elementType ast.RawType
		max := int64(0)
		for p.peek().Type != token.RPAREN {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "element_type":
				if elementType, e = p.parseType(); e != nil {
					return nil, e
				}
			case "max":
				if max, e = p.takeInt(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/param/unknown", "List", key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		if elementType == nil {
			return nil, p.throw("parse/list/element")
		}
		return ast.ListType{ElementType: elementType, Max: max}, nil
	case "Record":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		if p.isWord("fields") {
			p.advance()
			if e := p.expectColon(); e != nil {
				return nil, e
			}
		}
		fields, e := p.parseRecordFields()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.RecordType{Fields: fields}, nil
	case "TaggedUnion":
		variants, e := p.parseRecordFields()
		if e != nil {
			return nil, e
		}
		return ast.TaggedUnionType{Variants: variants}, nil
	}
	return ast.TypeRef{Name: name}, nil
}

func (p *Parser) parseNamedOrPositionalInt(key string) (int64, *err.Error) {
	if p.isWord(key) {
		p.advance()
		if e := p.expectColon(); e != nil {
			return 0, e
		}
	}
	return p.takeInt()
}

func (p *Parser) parseIntParams() (int64, int64, *err.Error) {
	if p.isWord("min") {
		p.advance()
		if e := p.expectColon(); e != nil {
			return 0, 0, e
		}
	}
	min, e := p.takeInt()
	if e != nil {
		return 0, 0, e
	}
	if p.peek().Type == token.COMMA {
		p.advance()
	}
	if p.isWord("max") {
		p.advance()
		if e := p.expectColon(); e != nil {
			return 0, 0, e
		}
	}
	max, e := p.takeInt()
	if e != nil {
		return 0, 0, e
	}
	return min, max, nil
}

func (p *Parser) parseStringArray() ([]string, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	values := []string{}
	for p.peek().Type != token.RBRACK {
		s, e := p.takeStr()
		if e != nil {
			return nil, e
		}
		values = append(values, s)
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return values, nil
}

func (p *Parser) parseIdentArray() ([]string, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	items := []string{}
	for p.peek().Type != token.RBRACK {
		w, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		items = append(items, w)
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return items, nil
}

func (p *Parser) parseRecordFields() (map[string]ast.RawType, *err.Error) {
	fields := map[string]ast.RawType{}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	for p.peek().Type != token.RBRACE {
		name, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		t, e := p.parseType()
		if e != nil {
			return nil, e
		}
		fields[name] = t
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return fields, nil
}
