// The evaluator package is the runtime half of Tenor: it assembles fact
// sets from caller-supplied JSON, runs the stratified rules to a verdict
// set, executes persona-gated operations against entity state, and walks
// flows against a frozen snapshot.
package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tenorlang/tenor/source/values"
)

// validDurationUnits are the units a Duration fact may carry.
var validDurationUnits = []string{"seconds", "minutes", "hours", "days"}

// AssembleFacts builds a FactSet from a decoded JSON object mapping fact
// ids to values. Every fact the contract declares must either be present
// or carry a default; facts the contract doesn't declare are ignored.
func AssembleFacts(contract *values.Contract, factsJSON any) (*values.FactSet, *values.EvalError) {
	factsObj, ok := factsJSON.(map[string]any)
	if !ok {
		return nil, values.DeserializeError("facts must be a JSON object")
	}

	factSet := values.NewFactSet()

	for _, decl := range contract.Facts {
		if factVal, present := factsObj[decl.Id]; present {
			value, err := parseAndTypecheck(decl.Id, factVal, decl.Type)
			if err != nil {
				return nil, err
			}
			factSet.Insert(decl.Id, value)
		} else if decl.Default != nil {
			factSet.Insert(decl.Id, *decl.Default)
		} else {
			return nil, values.MissingFact(decl.Id)
		}
	}

	return factSet, nil
}

// parseAndTypecheck parses a JSON value against the declared type and then
// validates the type-specific constraints. A parse failure is reported as a
// type mismatch naming the JSON type we actually got.
func parseAndTypecheck(factId string, v any, typeSpec values.TypeSpec) (values.Value, *values.EvalError) {
	parsed, err := values.ParsePlainValue(v, typeSpec)
	if err != nil {
		return values.Value{}, values.TypeMismatch(factId, typeSpec.Base, jsonTypeName(v))
	}
	if err := validateValue(factId, parsed, typeSpec); err != nil {
		return values.Value{}, err
	}
	return parsed, nil
}

// ValidDate reports whether s is a calendar-correct ISO 8601 date,
// YYYY-MM-DD. "2023-02-29" is rejected, 2023 not being a leap year.
func ValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil && len(s) == 10
}

// ValidDatetime reports whether s starts with a calendar-correct ISO 8601
// datetime, YYYY-MM-DDThh:mm:ss. Timezone suffixes (Z, +00:00) are allowed
// but not checked, only the first nineteen characters are.
func ValidDatetime(s string) bool {
	if len(s) < 19 {
		return false
	}
	_, err := time.Parse("2006-01-02T15:04:05", s[:19])
	return err == nil
}

func validateValue(factId string, value values.Value, typeSpec values.TypeSpec) *values.EvalError {
	switch value.T {
	case values.ENUM:
		s := value.V.(string)
		if len(typeSpec.Values) > 0 && !contains(typeSpec.Values, s) {
			return values.InvalidEnum(factId, s, typeSpec.Values)
		}
	case values.LIST:
		items := value.V.([]values.Value)
		if typeSpec.Max != nil && int64(len(items)) > *typeSpec.Max {
			return values.ListOverflow(factId, len(items), int(*typeSpec.Max))
		}
	case values.INT:
		i := value.V.(int64)
		if typeSpec.Min != nil && typeSpec.Max != nil {
			if i < *typeSpec.Min || i > *typeSpec.Max {
				return values.TypeMismatch(factId,
					fmt.Sprintf("Int(%d, %d)", *typeSpec.Min, *typeSpec.Max),
					fmt.Sprintf("%d", i))
			}
		}
	case values.TEXT:
		s := value.V.(string)
		if typeSpec.MaxLength != nil && len(s) > *typeSpec.MaxLength {
			return values.TypeMismatch(factId,
				fmt.Sprintf("Text(max_length=%d)", *typeSpec.MaxLength),
				fmt.Sprintf("text of length %d", len(s)))
		}
	case values.DATE:
		s := value.V.(string)
		if !ValidDate(s) {
			return values.TypeError(fmt.Sprintf(
				"fact '%s': invalid Date format '%s', expected ISO 8601 (YYYY-MM-DD)", factId, s))
		}
	case values.DATETIME:
		s := value.V.(string)
		if !ValidDatetime(s) {
			return values.TypeError(fmt.Sprintf(
				"fact '%s': invalid DateTime format '%s', expected ISO 8601 (YYYY-MM-DDT...)", factId, s))
		}
	case values.DURATION:
		d := value.V.(values.Duration)
		if !contains(validDurationUnits, d.Unit) {
			return values.TypeError(fmt.Sprintf(
				"fact '%s': invalid Duration unit '%s', expected one of: %s",
				factId, d.Unit, strings.Join(validDurationUnits, ", ")))
		}
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// jsonTypeName names a decoded JSON value for error messages.
func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return "unknown"
}
