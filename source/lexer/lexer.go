package lexer

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/settings"
	"github.com/tenorlang/tenor/source/token"
)

type Lexer struct {
	input  []rune
	pos    int  // index of the rune after ch
	ch     rune // current rune, 0 means end of input
	line   int
	source string // bare filename, stamped into every token
	Error  *err.Error
}

func NewLexer(source, input string) *Lexer {
	l := &Lexer{
		input:  []rune(input),
		line:   1,
		source: source,
	}
	l.readChar()
	return l
}

// LexAll drives the lexer to the end of the input. The bundle loader wants all
// the tokens of a file at once so that it can hand slices of them around; the
// hub lexes incrementally and calls NextToken itself.
func LexAll(source, input string) ([]token.Token, *err.Error) {
	l := NewLexer(source, input)
	toks := []token.Token{}
	for {
		tok := l.NextToken()
		if l.Error != nil {
			return toks, l.Error
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.pos]
	}
	l.pos++
}

func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) NextToken() token.Token {
	if ok := l.skipWhitespaceAndComments(); !ok {
		return l.Throw("lex/comment/unterm")
	}

	switch l.ch {
	case 0:
		return l.NewToken(token.EOF, "")
	case '{':
		return l.slurpToken(token.LBRACE, "{")
	case '}':
		return l.slurpToken(token.RBRACE, "}")
	case '[':
		return l.slurpToken(token.LBRACK, "[")
	case ']':
		return l.slurpToken(token.RBRACK, "]")
	case '(':
		return l.slurpToken(token.LPAREN, "(")
	case ')':
		return l.slurpToken(token.RPAREN, ")")
	case ':':
		return l.slurpToken(token.COLON, ":")
	case ',':
		return l.slurpToken(token.COMMA, ",")
	case '.':
		return l.slurpToken(token.DOT, ".")
	case '*':
		return l.slurpToken(token.STAR, "*")
	case '=':
		return l.slurpToken(token.EQ, "=")
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			return l.slurpToken(token.NEQ, "!=")
		}
		return l.Throw("lex/char/a")
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			return l.slurpToken(token.LTE, "<=")
		}
		return l.slurpToken(token.LT, "<")
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			return l.slurpToken(token.GTE, ">=")
		}
		return l.slurpToken(token.GT, ">")
	case '∧':
		return l.slurpToken(token.AND, "∧")
	case '∨':
		return l.slurpToken(token.OR, "∨")
	case '¬':
		return l.slurpToken(token.NOT, "¬")
	case '∀':
		return l.slurpToken(token.FORALL, "∀")
	case '∃':
		return l.slurpToken(token.EXISTS, "∃")
	case '∈':
		return l.slurpToken(token.IN, "∈")
	case '→':
		// The arrow in transition tuples is the same token as '>'.
		return l.slurpToken(token.GT, "→")
	case '"':
		return l.readString()
	case '-':
		if isDigit(l.peekChar()) {
			return l.readNumber()
		}
		if l.peekChar() == '>' {
			l.readChar()
			return l.slurpToken(token.GT, "->")
		}
		return l.Throw("lex/char/b", "-")
	}
	if isDigit(l.ch) {
		return l.readNumber()
	}
	if isWordStart(l.ch) {
		return l.readWord()
	}
	return l.Throw("lex/char/b", string(l.ch))
}

// skipWhitespaceAndComments returns false only on an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() bool {
	for {
		switch {
		case l.ch == '\n':
			l.line++
			l.readChar()
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for {
				if l.ch == 0 {
					return false
				}
				if l.ch == '\n' {
					l.line++
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
		default:
			return true
		}
	}
}

func (l *Lexer) readString() token.Token {
	l.readChar() // opening quote
	result := []rune{}
	for {
		switch l.ch {
		case '"':
			l.readChar()
			return l.NewToken(token.STRING, string(result))
		case 0:
			return l.Throw("lex/str/unterm")
		case '\n':
			return l.Throw("lex/str/unterm")
		case '\\':
			l.readChar()
			switch l.ch {
			case '"':
				result = append(result, '"')
			case '\\':
				result = append(result, '\\')
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 0:
				return l.Throw("lex/str/escape")
			default:
				// Unknown escapes keep the backslash.
				result = append(result, '\\', l.ch)
			}
			l.readChar()
		default:
			result = append(result, l.ch)
			l.readChar()
		}
	}
}

func (l *Lexer) readNumber() token.Token {
	start := l.pos - 1
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	// A fractional part only if the dot is followed by a digit, so that
	// 'x.field' never swallows the dot.
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		return l.NewToken(token.DECIMAL, string(l.input[start:l.pos-1]))
	}
	literal := string(l.input[start : l.pos-1])
	if _, e := strconv.ParseInt(literal, 10, 64); e != nil {
		return l.Throw("lex/int/invalid", literal)
	}
	return l.NewToken(token.INT, literal)
}

func (l *Lexer) readWord() token.Token {
	start := l.pos - 1
	for isWordPart(l.ch) {
		l.readChar()
	}
	return l.NewToken(token.IDENT, string(l.input[start:l.pos-1]))
}

func (l *Lexer) slurpToken(tType token.TokenType, literal string) token.Token {
	l.readChar()
	return l.NewToken(tType, literal)
}

func (l *Lexer) NewToken(tType token.TokenType, literal string) token.Token {
	tok := token.Token{Type: tType, Literal: literal, Line: l.line, Source: l.source}
	if settings.SHOW_LEXER {
		fmt.Println("Lexer emitting token", tok)
	}
	return tok
}

func (l *Lexer) Throw(errorID string, args ...any) token.Token {
	l.Error = err.CreateErr(errorID, 0, l.source, l.line, args...)
	return l.NewToken(token.ILLEGAL, errorID)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isWordStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isWordPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
