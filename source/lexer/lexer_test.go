package lexer

import (
	"testing"

	"github.com/tenorlang/tenor/source/token"
)

type testItem struct {
	expectedType    token.TokenType
	expectedLiteral string
	line            int
}

func runTest(t *testing.T, input string, items []testItem) {
	l := NewLexer("test.tenor", input)
	for i, item := range items {
		tok := l.NextToken()
		if tok.Type != item.expectedType {
			t.Fatalf("test %d: wrong token type, wanted %q, got %q (literal %q)",
				i, item.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != item.expectedLiteral {
			t.Fatalf("test %d: wrong literal, wanted %q, got %q", i, item.expectedLiteral, tok.Literal)
		}
		if tok.Line != item.line {
			t.Fatalf("test %d: wrong line, wanted %d, got %d", i, item.line, tok.Line)
		}
	}
}

func TestPunctuationAndOperators(t *testing.T) {
	input := `{ } [ ] ( ) : , . * = != < <= > >= ∧ ∨ ¬ ∀ ∃ ∈ →`
	items := []testItem{
		{token.LBRACE, "{", 1},
		{token.RBRACE, "}", 1},
		{token.LBRACK, "[", 1},
		{token.RBRACK, "]", 1},
		{token.LPAREN, "(", 1},
		{token.RPAREN, ")", 1},
		{token.COLON, ":", 1},
		{token.COMMA, ",", 1},
		{token.DOT, ".", 1},
		{token.STAR, "*", 1},
		{token.EQ, "=", 1},
		{token.NEQ, "!=", 1},
		{token.LT, "<", 1},
		{token.LTE, "<=", 1},
		{token.GT, ">", 1},
		{token.GTE, ">=", 1},
		{token.AND, "∧", 1},
		{token.OR, "∨", 1},
		{token.NOT, "¬", 1},
		{token.FORALL, "∀", 1},
		{token.EXISTS, "∃", 1},
		{token.IN, "∈", 1},
		{token.GT, "→", 1},
		{token.EOF, "", 1},
	}
	runTest(t, input, items)
}

func TestFactDeclaration(t *testing.T) {
	input := `fact amount_due {
  type: Money(currency: "USD")
  source: "billing.amount_due"
}`
	items := []testItem{
		{token.IDENT, "fact", 1},
		{token.IDENT, "amount_due", 1},
		{token.LBRACE, "{", 1},
		{token.IDENT, "type", 2},
		{token.COLON, ":", 2},
		{token.IDENT, "Money", 2},
		{token.LPAREN, "(", 2},
		{token.IDENT, "currency", 2},
		{token.COLON, ":", 2},
		{token.STRING, "USD", 2},
		{token.RPAREN, ")", 2},
		{token.IDENT, "source", 3},
		{token.COLON, ":", 3},
		{token.STRING, "billing.amount_due", 3},
		{token.RBRACE, "}", 4},
		{token.EOF, "", 4},
	}
	runTest(t, input, items)
}

func TestNumbers(t *testing.T) {
	input := `0 42 -17 3.14 -0.5 100.00 7.x`
	items := []testItem{
		{token.INT, "0", 1},
		{token.INT, "42", 1},
		{token.INT, "-17", 1},
		{token.DECIMAL, "3.14", 1},
		{token.DECIMAL, "-0.5", 1},
		{token.DECIMAL, "100.00", 1},
		// A dot not followed by a digit is field access, not a fraction.
		{token.INT, "7", 1},
		{token.DOT, ".", 1},
		{token.IDENT, "x", 1},
		{token.EOF, "", 1},
	}
	runTest(t, input, items)
}

func TestStringEscapes(t *testing.T) {
	input := `"plain" "with \"quotes\"" "tab\there" "line\nbreak" "odd\escape"`
	items := []testItem{
		{token.STRING, "plain", 1},
		{token.STRING, `with "quotes"`, 1},
		{token.STRING, "tab\there", 1},
		{token.STRING, "line\nbreak", 1},
		{token.STRING, `odd\escape`, 1},
		{token.EOF, "", 1},
	}
	runTest(t, input, items)
}

func TestComments(t *testing.T) {
	input := `rule r1 // trailing comment
/* block
   comment */ { }`
	items := []testItem{
		{token.IDENT, "rule", 1},
		{token.IDENT, "r1", 1},
		{token.LBRACE, "{", 3},
		{token.RBRACE, "}", 3},
		{token.EOF, "", 3},
	}
	runTest(t, input, items)
}

func TestAsciiArrow(t *testing.T) {
	input := `(pending -> approved)`
	items := []testItem{
		{token.LPAREN, "(", 1},
		{token.IDENT, "pending", 1},
		{token.GT, "->", 1},
		{token.IDENT, "approved", 1},
		{token.RPAREN, ")", 1},
		{token.EOF, "", 1},
	}
	runTest(t, input, items)
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		input   string
		errorID string
	}{
		{`"no closing quote`, "lex/str/unterm"},
		{"\"newline\ninside\"", "lex/str/unterm"},
		{`"ends with backslash\`, "lex/str/escape"},
		{`/* never closed`, "lex/comment/unterm"},
		{`a ! b`, "lex/char/a"},
		{`a - b`, "lex/char/b"},
		{`99999999999999999999`, "lex/int/invalid"},
		{`#`, "lex/char/b"},
	}
	for i, test := range tests {
		l := NewLexer("test.tenor", test.input)
		for {
			tok := l.NextToken()
			if tok.Type == token.ILLEGAL || tok.Type == token.EOF {
				break
			}
		}
		if l.Error == nil {
			t.Fatalf("test %d: expected a lex error, got none", i)
		}
		if l.Error.ErrorId != test.errorID {
			t.Fatalf("test %d: wanted error %q, got %q", i, test.errorID, l.Error.ErrorId)
		}
		if l.Error.Pass != 0 {
			t.Fatalf("test %d: lex errors should be pass 0, got %d", i, l.Error.Pass)
		}
	}
}
