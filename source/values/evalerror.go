package values

import (
	"fmt"
	"strings"
)

// EvalError is the closed set of runtime evaluation failures. Unlike the
// elaboration errors in the err package these carry no source position:
// they arise from fact sets and interchange bundles, not source text.
type EvalErrorCode int

const (
	MISSING_FACT EvalErrorCode = iota
	TYPE_MISMATCH
	OVERFLOW
	INVALID_OPERATOR
	UNKNOWN_FACT
	UNKNOWN_VERDICT
	DESERIALIZE
	TYPE_ERROR
	LIST_OVERFLOW
	INVALID_ENUM
	NOT_A_RECORD
	UNBOUND_VARIABLE
	FLOW_ERROR
)

type EvalError struct {
	Code    EvalErrorCode
	Message string
}

func (e *EvalError) Error() string {
	return e.Message
}

func MissingFact(factId string) *EvalError {
	return &EvalError{MISSING_FACT, fmt.Sprintf("missing required fact: %s", factId)}
}

func TypeMismatch(factId, expected, got string) *EvalError {
	return &EvalError{TYPE_MISMATCH, fmt.Sprintf("type mismatch for fact '%s': expected %s, got %s", factId, expected, got)}
}

func Overflow(message string) *EvalError {
	return &EvalError{OVERFLOW, fmt.Sprintf("numeric overflow: %s", message)}
}

func InvalidOperator(op string) *EvalError {
	return &EvalError{INVALID_OPERATOR, fmt.Sprintf("invalid operator: %s", op)}
}

func UnknownFact(factId string) *EvalError {
	return &EvalError{UNKNOWN_FACT, fmt.Sprintf("unknown fact: %s", factId)}
}

func UnknownVerdict(verdictType string) *EvalError {
	return &EvalError{UNKNOWN_VERDICT, fmt.Sprintf("unknown verdict: %s", verdictType)}
}

func DeserializeError(format string, args ...any) *EvalError {
	return &EvalError{DESERIALIZE, "deserialization error: " + fmt.Sprintf(format, args...)}
}

func TypeError(message string) *EvalError {
	return &EvalError{TYPE_ERROR, fmt.Sprintf("type error: %s", message)}
}

func ListOverflow(factId string, actual, max int) *EvalError {
	return &EvalError{LIST_OVERFLOW, fmt.Sprintf("list fact '%s' has %d elements, max is %d", factId, actual, max)}
}

func InvalidEnum(factId, value string, variants []string) *EvalError {
	quoted := make([]string, len(variants))
	for i, v := range variants {
		quoted[i] = `"` + v + `"`
	}
	return &EvalError{INVALID_ENUM, fmt.Sprintf("invalid enum value '%s' for fact '%s', valid: [%s]",
		value, factId, strings.Join(quoted, ", "))}
}

func NotARecord(message string) *EvalError {
	return &EvalError{NOT_A_RECORD, fmt.Sprintf("not a record: %s", message)}
}

func UnboundVariable(name string) *EvalError {
	return &EvalError{UNBOUND_VARIABLE, fmt.Sprintf("unbound variable: %s", name)}
}

func FlowError(flowId, message string) *EvalError {
	return &EvalError{FLOW_ERROR, fmt.Sprintf("flow error in '%s': %s", flowId, message)}
}
