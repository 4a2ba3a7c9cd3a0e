package token

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers + literals
	IDENT   = "IDENT"   // fact, delivery_confirmed, x, ...
	INT     = "int"     // 1343456
	DECIMAL = "decimal" // 1.23, kept as a string to preserve the exact representation
	STRING  = "string"  // "foo"

	// Comparison operators
	EQ  = "="
	NEQ = "!="
	LT  = "<"
	LTE = "<="
	GT  = ">" // also produced by '->' and the rightwards-arrow glyph
	GTE = ">="

	// Arithmetic
	STAR = "*"

	// Logical operators. The glyphs lex to these directly; the words
	// 'and', 'or', 'not' stay as IDENTs and are matched by the parser.
	AND    = "∧"
	OR     = "∨"
	NOT    = "¬"
	FORALL = "∀"
	EXISTS = "∃"
	IN     = "∈"

	COLON = ":"
	COMMA = ","
	DOT   = "."

	LPAREN = "("
	RPAREN = ")"
	LBRACE = "{"
	RBRACE = "}"
	LBRACK = "["
	RBRACK = "]"
)

type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Source  string
}

// The top-level declaration keywords. An IDENT carrying one of these begins
// a new construct, which is what the parser's error recovery resynchronizes on.
var ConstructKeywords = map[string]bool{
	"import":    true,
	"type":      true,
	"fact":      true,
	"entity":    true,
	"rule":      true,
	"operation": true,
	"flow":      true,
	"persona":   true,
	"system":    true,
	"source":    true,
}
