package text

// This consists of a bunch of text utilities to help in generating pretty and
// meaningful help messages, error messages, etc.

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tenorlang/tenor/source/token"
)

const (
	VERSION        = "1.0"
	BUNDLE_VERSION = "1.1.0"
	BULLET         = "  ▪ "
	BULLET_SPACING = "    " // I.e. whitespace the same width as BULLET.
	GOOD_BULLET    = "\033[32m  ▪ \033[0m"
	BROKEN         = "\033[31m  ✖ \033[0m"
	PROMPT         = "→ "

	RESET  = "\033[0m"
	RED    = "\033[31m"
	GREEN  = "\033[32m"
	YELLOW = "\033[33m"
	CYAN   = "\033[36m"
)

// ExtractFileName turns "contracts/loan.tenor" into "loan", which is how a root
// file names its bundle.
func ExtractFileName(s string) string {
	base := filepath.Base(s)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var OK = Green("OK")

func Cyan(s string) string {
	return CYAN + s + RESET
}

func Emph(s string) string {
	return "'" + s + "'"
}

func Red(s string) string {
	return RED + s + RESET
}

func Green(s string) string {
	return GREEN + s + RESET
}

func Yellow(s string) string {
	return YELLOW + s + RESET
}

func Logo() string {
	var padding string
	if len(VERSION)%2 == 1 {
		padding = " "
	}
	titleText := " Tenor" + padding + " version " + VERSION + " "
	leftMargin := "  "
	bar := strings.Repeat("═", len(titleText)+2)
	logoString := "\n" +
		leftMargin + "╔" + bar + "╗\n" +
		leftMargin + "║ " + titleText + " ║\n" +
		leftMargin + "╚" + bar + "╝\n\n"
	return logoString
}

const HELP = "\nUsage: tenor [-v | --version] [-h | --help]\n" +
	"             <command> [args]\n\n" +
	"Commands are:\n\n" +
	"  hub               Starts the interactive hub.\n" +
	"  run <f>           Starts the hub with a contract file loaded.\n" +
	"  elaborate <f>     Elaborates a contract file and prints the canonical bundle.\n" +
	"  eval <f> <facts>  Evaluates a facts document against a contract file.\n" +
	"  serve [addr] [f]  Serves elaboration and evaluation over HTTP.\n\n"

func DescribePos(tok *token.Token) string {
	prettySource := tok.Source
	if prettySource == "" {
		return ""
	}
	if prettySource != "hub input" {
		prettySource = "'" + prettySource + "'"
	}
	if tok.Line > 0 {
		return " at line " + strconv.Itoa(tok.Line) + " of " + prettySource
	}
	return " in " + prettySource
}

// Describes a token for the purposes of error messages etc.
func DescribeTok(tok *token.Token) string {
	switch tok.Type {
	case token.IDENT:
		return "Word(" + strconv.Quote(tok.Literal) + ")"
	case token.STRING:
		return "Str(" + strconv.Quote(tok.Literal) + ")"
	case token.INT:
		return "Int(" + tok.Literal + ")"
	case token.DECIMAL:
		return "Float(" + strconv.Quote(tok.Literal) + ")"
	case token.EOF:
		return "Eof"
	case token.LBRACE:
		return "LBrace"
	case token.RBRACE:
		return "RBrace"
	case token.LBRACK:
		return "LBracket"
	case token.RBRACK:
		return "RBracket"
	case token.LPAREN:
		return "LParen"
	case token.RPAREN:
		return "RParen"
	case token.COLON:
		return "Colon"
	case token.COMMA:
		return "Comma"
	case token.DOT:
		return "Dot"
	case token.EQ:
		return "Eq"
	case token.NEQ:
		return "Neq"
	case token.LT:
		return "Lt"
	case token.LTE:
		return "Lte"
	case token.GT:
		return "Gt"
	case token.GTE:
		return "Gte"
	case token.STAR:
		return "Star"
	case token.AND:
		return "And"
	case token.OR:
		return "Or"
	case token.NOT:
		return "Not"
	case token.FORALL:
		return "Forall"
	case token.EXISTS:
		return "Exists"
	case token.IN:
		return "In"
	}
	return "'" + tok.Literal + "'"
}
