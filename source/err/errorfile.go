package err

import (
	"fmt"
)

// A map from error identifiers to functions that supply the corresponding error
// messages and explanations.
//
// Errors in the map are in alphabetical order of their identifiers.
//
// Major categories are bundle, check, index, lex, parse, types, and validate,
// corresponding to the passes of the elaborator that throw them.
//
// Two otherwise identical errors thrown in different places in the Go code must
// be assigned different identifiers, if only by suffixing /a, /b, etc to the
// identifier, so that we can always recover the throwing site from the id.

type ErrorCreator struct {
	Message     func(args ...any) string
	Explanation func(args ...any) string
}

var ErrorCreatorMap = map[string]ErrorCreator{

	// TEMPLATE
	"": {
		Message: func(args ...any) string {
			return ""
		},
		Explanation: func(args ...any) string {
			return ""
		},
	},

	"bundle/cycle": {
		Message: func(args ...any) string {
			return fmt.Sprintf("import cycle detected: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "The import graph of a contract must be acyclic: a file may not import itself, " +
				"whether directly or through a chain of other imports. The message shows the chain " +
				"of files that closes the loop."
		},
	},

	"bundle/dup": {
		Message: func(args ...any) string {
			return fmt.Sprintf("duplicate %v id '%v': first declared in %v", args[0], args[1], args[2])
		},
		Explanation: func(args ...any) string {
			return "When imports are assembled into a single bundle, every construct of a given kind " +
				"must keep a unique id across all the files involved. Here two different files " +
				"declare the same construct, so the bundle would be ambiguous."
		},
	},

	"bundle/escape": {
		Message: func(args ...any) string {
			return fmt.Sprintf("import '%v' escapes the contract root directory", args[0])
		},
		Explanation: func(args ...any) string {
			return "Imports are resolved relative to the importing file but must stay inside the " +
				"directory containing the root contract file. A path that climbs out of that " +
				"directory would make the bundle depend on files outside the contract."
		},
	},

	"bundle/open": {
		Message: func(args ...any) string {
			return fmt.Sprintf("cannot open file: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "The root contract file could not be opened. The usual causes are a misspelled " +
				"path or missing read permissions."
		},
	},

	"bundle/read": {
		Message: func(args ...any) string {
			return fmt.Sprintf("cannot read file '%v': %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "A file in the import graph resolved to a real path but could not be read."
		},
	},

	"bundle/resolve/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("import resolution failed: cannot resolve path '%v': %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "An import names a file that does not exist relative to the importing file."
		},
	},

	"bundle/resolve/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("import resolution failed: cannot resolve path '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "An import names a path that could not be brought into canonical form, " +
				"usually because some component of the path does not exist."
		},
	},

	"bundle/resolve/c": {
		Message: func(args ...any) string {
			return fmt.Sprintf("cannot resolve import '%v': %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "A file in the import graph could not be brought into canonical form."
		},
	},

	"bundle/root": {
		Message: func(args ...any) string {
			return fmt.Sprintf("cannot canonicalize root directory: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "The directory containing the root contract file could not be brought into " +
				"canonical form, which is needed to sandbox import resolution."
		},
	},

	"bundle/typelib": {
		Message: func(args ...any) string {
			return fmt.Sprintf("type library '%v' must be self-contained: it may not import other files", args[0])
		},
		Explanation: func(args ...any) string {
			return "A file consisting only of type declarations is a type library, and type " +
				"libraries are leaves of the import graph: they may be imported but may not " +
				"themselves import. This keeps shared type vocabularies portable between contracts."
		},
	},

	"check/bool/op": {
		Message: func(args ...any) string {
			return fmt.Sprintf("type error: operator '%v' not defined for Bool; Bool supports only = and ≠", args[0])
		},
		Explanation: func(args ...any) string {
			return "Bool values are not ordered, so the only comparisons defined for them are " +
				"equality and inequality."
		},
	},

	"check/fact/unresolved/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unresolved fact reference: '%v' is not declared in this contract", args[0])
		},
		Explanation: func(args ...any) string {
			return "A predicate refers to a fact by name, but no fact of that name is declared " +
				"anywhere in the bundle. Every name a predicate uses must either be a declared " +
				"fact or a variable bound by an enclosing quantifier."
		},
	},

	"check/fact/unresolved/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unresolved fact reference: '%v' is not declared in this contract", args[0])
		},
		Explanation: func(args ...any) string {
			return "The domain of a quantifier must be a declared fact, since the quantifier " +
				"ranges over that fact's list of elements."
		},
	},

	"check/money/currency": {
		Message: func(args ...any) string {
			return fmt.Sprintf("type error: cannot compare %v with %v; Money comparisons require identical currency codes", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "Money amounts in different currencies have no defined ordering without an " +
				"exchange rate, and contracts do not carry exchange rates. Convert both sides " +
				"to the same currency before comparing them."
		},
	},

	"check/mul/range": {
		Message: func(args ...any) string {
			return fmt.Sprintf("type error: product range %v is not contained in declared verdict payload type %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "When a verdict payload is computed by multiplication, the range of every " +
				"possible product must fit inside the declared payload type. Widen the declared " +
				"bounds or narrow the operands."
		},
	},

	"check/mul/vars": {
		Message: func(args ...any) string {
			return "type error: variable × variable multiplication is not permitted in PredicateExpression; only variable × literal_numeric is allowed"
		},
		Explanation: func(args ...any) string {
			return "Multiplying two facts together would make the range of the result depend on " +
				"runtime data in a way that cannot be bounded at elaboration time. Scaling a " +
				"fact by a literal keeps the result range checkable."
		},
	},

	"check/quant/domain": {
		Message: func(args ...any) string {
			return fmt.Sprintf("type error: quantifier domain '%v' has type %v; domain must be List-typed", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "A quantifier ranges over the elements of a list, so its domain fact must " +
				"have a List type."
		},
	},

	"check/type/unknown/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown type reference '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "A field of a type declaration refers to a named type for which no " +
				"declaration exists in the bundle."
		},
	},

	"check/type/unknown/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown type reference '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "The type of a fact refers to a named type for which no declaration exists " +
				"in the bundle."
		},
	},

	"check/type/unknown/c": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown type reference '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "The payload type of a verdict refers to a named type for which no " +
				"declaration exists in the bundle."
		},
	},

	"eval/bundle": {
		Message: func(args ...any) string {
			return fmt.Sprintf("cannot load bundle: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "A bundle handed to the evaluation host could not be decoded into runtime " +
				"form. Bundles are normally produced by the elaborator, so this usually means " +
				"the bytes were truncated or edited after elaboration."
		},
	},

	"index/dup": {
		Message: func(args ...any) string {
			return fmt.Sprintf("duplicate %v id '%v': first declared at line %v", args[0], args[1], args[2])
		},
		Explanation: func(args ...any) string {
			return "Two constructs of the same kind in the same file share an id. Ids are how " +
				"the rest of the contract refers to a construct, so they must be unique per kind."
		},
	},

	"lex/char/a": {
		Message: func(args ...any) string {
			return "unexpected character '!'"
		},
		Explanation: func(args ...any) string {
			return "A bare '!' is not an operator. Inequality is written '!=' or '≠'."
		},
	},

	"lex/char/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unexpected character '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "This character has no meaning in the language."
		},
	},

	"lex/comment/unterm": {
		Message: func(args ...any) string {
			return "unterminated block comment"
		},
		Explanation: func(args ...any) string {
			return "A '/*' comment was opened but the file ended before the matching '*/'."
		},
	},

	"lex/int/invalid": {
		Message: func(args ...any) string {
			return fmt.Sprintf("invalid integer '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "Integer literals must fit in a signed 64-bit integer."
		},
	},

	"lex/str/escape": {
		Message: func(args ...any) string {
			return "unterminated escape in string"
		},
		Explanation: func(args ...any) string {
			return "The file ended immediately after a backslash inside a string literal, " +
				"so the escape sequence is incomplete."
		},
	},

	"lex/str/unterm": {
		Message: func(args ...any) string {
			return "unterminated string literal"
		},
		Explanation: func(args ...any) string {
			return "A string literal was opened but a newline or the end of the file arrived " +
				"before the closing quote. String literals must fit on one line."
		},
	},

	"parse/compare/op": {
		Message: func(args ...any) string {
			return fmt.Sprintf("expected comparison operator, got %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "A predicate at this position must compare two terms with one of " +
				"=, !=, <, <=, >, or >=."
		},
	},

	"parse/construct/keyword": {
		Message: func(args ...any) string {
			return fmt.Sprintf("expected construct keyword, got %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "At the top level of a file only construct declarations may appear, each " +
				"introduced by one of the keywords import, type, fact, entity, rule, operation, " +
				"flow, persona, source, or system."
		},
	},

	"parse/construct/unknown": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unexpected token '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "This word is not a construct keyword, so it cannot begin a top-level declaration."
		},
	},

	"parse/expect": {
		Message: func(args ...any) string {
			return fmt.Sprintf("expected %v, got %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The parser required a specific token at this point in the grammar and " +
				"found something else."
		},
	},

	"parse/fact/field": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown Fact field '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "The body of a fact declaration may contain only the fields 'type', " +
				"'source', and 'default'."
		},
	},

	"parse/fact/source": {
		Message: func(args ...any) string {
			return "Fact missing 'source'"
		},
		Explanation: func(args ...any) string {
			return "Every fact must name where its value comes from, either as a freetext " +
				"string or as a structured reference to a declared source."
		},
	},

	"parse/fact/type": {
		Message: func(args ...any) string {
			return "Fact missing 'type'"
		},
		Explanation: func(args ...any) string {
			return "Every fact must declare the type of its value."
		},
	},

	"parse/field/missing": {
		Message: func(args ...any) string {
			return fmt.Sprintf("%v missing '%v'", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The construct or step named in the message requires this field and the " +
				"declaration does not supply it."
		},
	},

	"parse/field/unknown": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown %v field '%v'", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The body of the construct or step named in the message does not have a " +
				"field of this name. The message names the thing being declared; check its " +
				"declaration form for the fields it accepts."
		},
	},

	"parse/handler/kind": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown failure handler kind '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "A failure handler must be one of Terminate, Compensate, or Escalate."
		},
	},

	"parse/int/invalid": {
		Message: func(args ...any) string {
			return fmt.Sprintf("invalid integer literal: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "A word appeared where an integer was wanted and could not be read as one."
		},
	},

	"parse/list/element": {
		Message: func(args ...any) string {
			return "List missing element_type"
		},
		Explanation: func(args ...any) string {
			return "A List type must say what it is a list of, e.g. " +
				"List(element_type: Int, max: 10)."
		},
	},

	"parse/literal/expected": {
		Message: func(args ...any) string {
			return fmt.Sprintf("expected literal value, got %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "Only literal values may appear here: true, false, an integer, a decimal, " +
				"a string, or a Money literal."
		},
	},

	"parse/money/key": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown Money key '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "A Money literal has exactly two keys, 'amount' and 'currency'."
		},
	},

	"parse/param/unknown": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown %v param '%v'", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The parenthesized parameter list of this type does not accept a " +
				"parameter of this name."
		},
	},

	"parse/quant/dot": {
		Message: func(args ...any) string {
			return "expected '.' after quantifier domain"
		},
		Explanation: func(args ...any) string {
			return "A quantified predicate is written ∀ x ∈ domain . body; the '.' separates " +
				"the binder from the body."
		},
	},

	"parse/quant/in": {
		Message: func(args ...any) string {
			return "expected ∈ after quantifier variable"
		},
		Explanation: func(args ...any) string {
			return "A quantified predicate is written ∀ x ∈ domain . body; the ∈ introduces " +
				"the domain the variable ranges over."
		},
	},

	"parse/rule/stratum": {
		Message: func(args ...any) string {
			return "Rule missing 'stratum'"
		},
		Explanation: func(args ...any) string {
			return "Every rule must declare its stratum, the evaluation layer it belongs to. " +
				"Rules that reference no verdicts belong at stratum 0."
		},
	},

	"parse/rule/when": {
		Message: func(args ...any) string {
			return "Rule missing 'when'"
		},
		Explanation: func(args ...any) string {
			return "Every rule must declare a 'when' predicate saying when it fires."
		},
	},

	"parse/source/protocol": {
		Message: func(args ...any) string {
			return "Source missing 'protocol'"
		},
		Explanation: func(args ...any) string {
			return "Every source declaration must say what protocol it speaks."
		},
	},

	"parse/step/kind": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown step kind '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "A flow step must be one of OperationStep, BranchStep, HandoffStep, " +
				"SubFlowStep, or ParallelStep."
		},
	},

	"parse/step/missing": {
		Message: func(args ...any) string {
			return fmt.Sprintf("%v missing %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The step named in the message requires this field and the declaration " +
				"does not supply it."
		},
	},

	"parse/system/mixed": {
		Message: func(args ...any) string {
			return "System files may not contain contract constructs"
		},
		Explanation: func(args ...any) string {
			return "A file declaring a system composes whole contracts and may contain " +
				"nothing else; the member contracts live in their own files."
		},
	},

	"parse/system/multiple": {
		Message: func(args ...any) string {
			return "multiple System declarations in a single file"
		},
		Explanation: func(args ...any) string {
			return "Each file may declare at most one system."
		},
	},

	"parse/term/expected": {
		Message: func(args ...any) string {
			return fmt.Sprintf("expected term, got %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "A term in a comparison is a fact reference, a field access on a bound " +
				"variable, or a literal value, optionally scaled by '*'."
		},
	},

	"parse/transition/sep": {
		Message: func(args ...any) string {
			return fmt.Sprintf("expected ',' or '->'/'→', got %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "The two states of a transition tuple are separated by a comma or an arrow."
		},
	},

	"parse/trigger/dot/a": {
		Message: func(args ...any) string {
			return "expected '.' after source contract in trigger"
		},
		Explanation: func(args ...any) string {
			return "The source of a trigger is written member_id.flow_id."
		},
	},

	"parse/trigger/dot/b": {
		Message: func(args ...any) string {
			return "expected '.' after target contract in trigger"
		},
		Explanation: func(args ...any) string {
			return "The target of a trigger is written member_id.flow_id."
		},
	},

	"types/cycle": {
		Message: func(args ...any) string {
			return fmt.Sprintf("TypeDecl cycle detected: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "Type declarations may refer to one another but the references must not " +
				"form a loop, since a cyclic type would have no finite values."
		},
	},

	"validate/entity/initial": {
		Message: func(args ...any) string {
			return fmt.Sprintf("initial state '%v' is not declared in states: [%v]", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The initial state of an entity must be one of the states it declares."
		},
	},

	"validate/entity/parent": {
		Message: func(args ...any) string {
			return fmt.Sprintf("entity hierarchy cycle detected: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "Entity parent links must form a forest. An entity that is, however " +
				"indirectly, its own ancestor is a contradiction."
		},
	},

	"validate/entity/transition": {
		Message: func(args ...any) string {
			return fmt.Sprintf("transition endpoint '%v' is not declared in states: [%v]", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "Both ends of every declared transition must be declared states of the entity."
		},
	},

	"validate/fact/source": {
		Message: func(args ...any) string {
			return fmt.Sprintf("fact '%v' references undeclared source '%v'", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "A structured fact source names a Source construct, which must be declared " +
				"somewhere in the bundle."
		},
	},

	"validate/flow/cycle": {
		Message: func(args ...any) string {
			return fmt.Sprintf("flow step graph is not acyclic: cycle detected involving steps [%v]", args[0])
		},
		Explanation: func(args ...any) string {
			return "The steps of a flow, linked by their outcomes, branches, and handoffs, " +
				"must form a directed acyclic graph so that every execution terminates."
		},
	},

	"validate/flow/entry": {
		Message: func(args ...any) string {
			return fmt.Sprintf("entry step '%v' is not declared in steps", args[0])
		},
		Explanation: func(args ...any) string {
			return "The entry field of a flow must name one of the flow's declared steps."
		},
	},

	"validate/flow/handler": {
		Message: func(args ...any) string {
			return fmt.Sprintf("OperationStep '%v' must declare a FailureHandler", args[0])
		},
		Explanation: func(args ...any) string {
			return "Operations can fail, so every OperationStep must say what happens when " +
				"its operation does: Terminate, Compensate, or Escalate."
		},
	},

	"validate/flow/internal/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("internal error: step neighbor '%v' not found in in_degree map", args[0])
		},
		Explanation: func(args ...any) string {
			return "This indicates a bug in the validator itself rather than in your contract."
		},
	},

	"validate/flow/internal/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("internal error: flow '%v' detected in cycle path via in_path set but not found in path vector", args[0])
		},
		Explanation: func(args ...any) string {
			return "This indicates a bug in the validator itself rather than in your contract."
		},
	},

	"validate/flow/outcome/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("outcome map omits outcome '%v' declared by operation '%v'; every declared outcome must be routed", args[1], args[0])
		},
		Explanation: func(args ...any) string {
			return "A step invoking an operation must say where execution goes for each " +
				"outcome the operation declares. An unrouted outcome would leave the flow " +
				"with nowhere to go when the operation completes that way."
		},
	},

	"validate/flow/outcome/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("outcome label '%v' is not declared by operation '%v'; declared outcomes are: [%v]", args[0], args[1], args[2])
		},
		Explanation: func(args ...any) string {
			return "A step's outcome map may only route outcomes the operation actually " +
				"declares; any other label could never be produced."
		},
	},

	"validate/flow/parallel/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("parallel branches '%v' and '%v' both declare effects on entity '%v'; parallel branch entity effect sets must be disjoint", args[0], args[1], args[2])
		},
		Explanation: func(args ...any) string {
			return "Parallel branches execute concurrently, so two branches that both change " +
				"the state of the same entity would race. The sets of entities each branch " +
				"affects must not overlap."
		},
	},

	"validate/flow/parallel/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("parallel branches '%v' and '%v' both affect entity '%v' (%v transitively through %v); parallel branch entity effect sets must be disjoint", args[0], args[1], args[2], args[3], args[4])
		},
		Explanation: func(args ...any) string {
			return "A branch affects an entity not only through its own OperationSteps but " +
				"also through any sub-flows it invokes. The overlap here arises through a " +
				"SubFlowStep; the message shows the chain."
		},
	},

	"validate/flow/ref": {
		Message: func(args ...any) string {
			return fmt.Sprintf("flow reference cycle detected: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "Flows may invoke other flows as sub-flows, but the invocation graph must " +
				"be acyclic: a flow that eventually invokes itself would never terminate."
		},
	},

	"validate/flow/step": {
		Message: func(args ...any) string {
			return fmt.Sprintf("step reference '%v' is not declared in steps", args[0])
		},
		Explanation: func(args ...any) string {
			return "Every step a flow routes to by name must be declared in that flow's steps."
		},
	},

	"validate/op/entity": {
		Message: func(args ...any) string {
			return fmt.Sprintf("effect references undeclared entity '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "Every entity an operation's effects mention must be declared in the bundle."
		},
	},

	"validate/op/outcome/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("effect (%v, %v, %v) is missing an outcome label; multi-outcome operations require every effect to specify which outcome it belongs to", args[0], args[1], args[2])
		},
		Explanation: func(args ...any) string {
			return "When an operation declares two or more outcomes, each effect must say " +
				"which outcome it belongs to, since different outcomes may change entities " +
				"differently."
		},
	},

	"validate/op/outcome/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("effect (%v, %v, %v) references undeclared outcome '%v'; declared outcomes are: [%v]", args[0], args[1], args[2], args[3], args[4])
		},
		Explanation: func(args ...any) string {
			return "An effect's outcome label must be one of the outcomes the operation declares."
		},
	},

	"validate/op/outcome/c": {
		Message: func(args ...any) string {
			return fmt.Sprintf("duplicate outcome '%v'; outcome labels must be unique within an Operation", args[0])
		},
		Explanation: func(args ...any) string {
			return "Outcome labels name the distinct ways an operation can complete, so each " +
				"label may appear only once."
		},
	},

	"validate/op/outcomes": {
		Message: func(args ...any) string {
			return fmt.Sprintf("outcome '%v' conflicts with error_contract; outcomes and error_contract must be disjoint", args[0])
		},
		Explanation: func(args ...any) string {
			return "Outcomes are the ways an operation can succeed; the error contract lists " +
				"the ways it can fail. A label cannot mean both."
		},
	},

	"validate/op/persona": {
		Message: func(args ...any) string {
			return fmt.Sprintf("undeclared persona '%v' in allowed_personas", args[0])
		},
		Explanation: func(args ...any) string {
			return "When a contract declares personas, every persona an operation allows must " +
				"be among them."
		},
	},

	"validate/op/personas": {
		Message: func(args ...any) string {
			return "allowed_personas must be non-empty; an Operation with no allowed personas can never be invoked"
		},
		Explanation: func(args ...any) string {
			return "An operation that nobody is allowed to perform is dead code at best and a " +
				"mistake at worst, so it is rejected."
		},
	},

	"validate/op/transition": {
		Message: func(args ...any) string {
			return fmt.Sprintf("effect (%v, %v, %v) is not a declared transition in entity %v; declared transitions are: [%v]", args[0], args[1], args[2], args[3], args[4])
		},
		Explanation: func(args ...any) string {
			return "An operation may only move an entity along transitions the entity itself " +
				"declares. Add the transition to the entity or correct the effect."
		},
	},

	"validate/rule/stratum": {
		Message: func(args ...any) string {
			return fmt.Sprintf("stratum must be a non-negative integer; got %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "Strata number the layers of rule evaluation from 0 upwards."
		},
	},

	"validate/rule/verdict/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unresolved VerdictType reference: '%v' is not produced by any rule in this contract", args[0])
		},
		Explanation: func(args ...any) string {
			return "A rule asks whether a verdict is present, but no rule in the bundle ever " +
				"produces a verdict of that type, so the question could never be answered yes."
		},
	},

	"validate/rule/verdict/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("stratum violation: rule '%v' at stratum %v references verdict '%v' produced by rule '%v' at stratum %v; verdict_refs must reference strata strictly less than the referencing rule's stratum", args[0], args[1], args[2], args[3], args[4])
		},
		Explanation: func(args ...any) string {
			return "Rules are evaluated stratum by stratum, so a rule may only depend on " +
				"verdicts that are already settled when its own stratum runs, which means " +
				"verdicts produced at strictly lower strata."
		},
	},

	"validate/rule/verdict/c": {
		Message: func(args ...any) string {
			return fmt.Sprintf("VerdictType '%v' is already produced by rule '%v'. Each VerdictType may be produced by at most one rule (S8).", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "If two rules could produce the same verdict type, the meaning of that " +
				"verdict's presence would depend on which rule fired. One verdict type, one rule."
		},
	},

	"validate/source/field": {
		Message: func(args ...any) string {
			return fmt.Sprintf("source '%v' with protocol '%v' is missing required field '%v'", args[0], args[1], args[2])
		},
		Explanation: func(args ...any) string {
			return "Each core protocol tag requires certain fields: http needs base_url, " +
				"database needs dialect, graphql and grpc need endpoint."
		},
	},

	"validate/source/protocol/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("invalid extension protocol tag '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "Extension protocol tags start with 'x_' and consist of dot-separated " +
				"segments, each beginning with a lowercase letter and containing only " +
				"lowercase letters, digits, and underscores."
		},
	},

	"validate/source/protocol/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("unknown protocol tag '%v'", args[0])
		},
		Explanation: func(args ...any) string {
			return "The protocol of a Source must be one of the core tags (http, database, " +
				"graphql, grpc, static, manual) or an extension tag starting with 'x_'."
		},
	},

	"validate/system/entity/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("contract '%v' in shared_entity '%v' is not a System member", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "Only member contracts of the system may share an entity."
		},
	},

	"validate/system/entity/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("shared_entity '%v' must reference at least 2 member contracts; got %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "Sharing an entity with fewer than two contracts shares it with nobody."
		},
	},

	"validate/system/member/a": {
		Message: func(args ...any) string {
			return "System must declare at least one member contract"
		},
		Explanation: func(args ...any) string {
			return "A system is a composition of contracts; an empty one composes nothing."
		},
	},

	"validate/system/member/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("duplicate member id '%v' in System '%v'", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "Member ids name the contracts of a system, so they must be unique within it."
		},
	},

	"validate/system/member/c": {
		Message: func(args ...any) string {
			return fmt.Sprintf("member '%v' is a System file; nested Systems are not permitted", args[0])
		},
		Explanation: func(args ...any) string {
			return "Systems compose contracts, not other systems. A member path must point " +
				"to a contract file."
		},
	},

	"validate/system/persona/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("contract '%v' in shared_persona '%v' is not a System member", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "Only member contracts of the system may share a persona."
		},
	},

	"validate/system/persona/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("shared_persona '%v' must reference at least 2 member contracts; got %v", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "Sharing a persona with fewer than two contracts shares it with nobody."
		},
	},

	"validate/system/trigger/a": {
		Message: func(args ...any) string {
			return fmt.Sprintf("trigger source contract '%v' is not a System member", args[0])
		},
		Explanation: func(args ...any) string {
			return "Triggers may only connect flows of the system's own member contracts."
		},
	},

	"validate/system/trigger/b": {
		Message: func(args ...any) string {
			return fmt.Sprintf("trigger target contract '%v' is not a System member", args[0])
		},
		Explanation: func(args ...any) string {
			return "Triggers may only connect flows of the system's own member contracts."
		},
	},

	"validate/system/trigger/c": {
		Message: func(args ...any) string {
			return fmt.Sprintf("invalid trigger outcome '%v'; must be 'success', 'failure', or 'escalation'", args[0])
		},
		Explanation: func(args ...any) string {
			return "A flow finishes in one of three ways, and a trigger fires on one of them."
		},
	},

	"validate/system/trigger/d": {
		Message: func(args ...any) string {
			return fmt.Sprintf("self-referential trigger: %v.%v triggers itself", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "A flow whose completion triggers itself would run forever."
		},
	},

	"validate/system/trigger/e": {
		Message: func(args ...any) string {
			return fmt.Sprintf("persona '%v' not declared in target contract '%v'", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The persona a trigger runs the target flow as must be declared by the " +
				"target contract."
		},
	},

	"validate/system/trigger/f": {
		Message: func(args ...any) string {
			return fmt.Sprintf("trigger persona '%v' not in allowed_personas of entry operation '%v' in target flow '%v'", args[0], args[1], args[2])
		},
		Explanation: func(args ...any) string {
			return "If the target flow opens with an OperationStep, the persona the trigger " +
				"supplies must be allowed to perform that operation, or the triggered flow " +
				"would fail on its first step every time."
		},
	},

	"validate/system/trigger/g": {
		Message: func(args ...any) string {
			return fmt.Sprintf("trigger cycle detected: %v", args[0])
		},
		Explanation: func(args ...any) string {
			return "Triggers chain flows together, and the chains must not loop back on " +
				"themselves, or one completion would set off an unending cascade."
		},
	},

	"validate/system/trigger/h": {
		Message: func(args ...any) string {
			return fmt.Sprintf("internal error: trigger node (%v, %v) detected in cycle via in_path set but not found in path vector", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "This indicates a bug in the validator itself rather than in your contract."
		},
	},
}
