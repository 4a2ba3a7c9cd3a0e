// All this does is contain in one place the constants controlling which bits of the
// inner workings of the lexer/parser/elaborator/evaluator are displayed to me for
// debugging purposes. In a release they must all be set to false.

package settings

const (
	// These do what it sounds like.
	SHOW_LEXER  = false
	SHOW_PARSER = false
	SHOW_BUNDLE = false // Dumps the canonical bundle JSON after a successful elaboration.
	SHOW_EVAL   = false // Traces rule firings and flow step transitions during evaluation.

	SHOW_TESTS = true // Says whether the tests should say what is being tested, useful if one of them crashes and we don't know which.

	// The maximum number of parse errors collected from one file before the parser
	// gives up on it; and the ceiling on steps executed in one flow run.
	MAX_PARSE_ERRORS = 10
	MAX_FLOW_STEPS   = 1000
)
