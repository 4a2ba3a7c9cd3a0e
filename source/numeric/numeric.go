// Package numeric is the fixed-point arithmetic model of evaluation. All
// decimal arithmetic goes through shopspring/decimal with banker's rounding
// (round half to even); float64 never appears on the evaluation path.
package numeric

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/tenorlang/tenor/source/values"
)

// PromoteIntToDecimal converts an integer to a decimal at the target
// type's scale.
func PromoteIntToDecimal(val int64, target values.TypeSpec) decimal.Decimal {
	scale := 0
	if target.Scale != nil {
		scale = *target.Scale
	}
	return decimal.NewFromInt(val).RoundBank(int32(scale))
}

// EvalMul multiplies two decimals, rounds the product to the result scale,
// and checks it against the declared precision.
func EvalMul(left, right decimal.Decimal, resultPrecision, resultScale int) (decimal.Decimal, *values.EvalError) {
	rounded := left.Mul(right).RoundBank(int32(resultScale))
	if err := checkPrecision(rounded, resultPrecision, resultScale); err != nil {
		return decimal.Decimal{}, err
	}
	return rounded, nil
}

// EvalIntMul multiplies an integer fact by an integer literal, checking
// both int64 overflow and the declared range of the result type.
func EvalIntMul(left, literal int64, resultType values.TypeSpec) (values.Value, *values.EvalError) {
	if left == -1 && literal == math.MinInt64 || left == math.MinInt64 && literal == -1 {
		return values.Value{}, values.Overflow("integer multiplication overflow")
	}
	product := left * literal
	if left != 0 && product/left != literal {
		return values.Value{}, values.Overflow("integer multiplication overflow")
	}
	if resultType.Min != nil && resultType.Max != nil {
		if product < *resultType.Min || product > *resultType.Max {
			return values.Value{}, values.Overflow(fmt.Sprintf(
				"result %d outside declared range [%d, %d]", product, *resultType.Min, *resultType.Max))
		}
	}
	return values.MakeInt(product), nil
}

// checkPrecision verifies that a value's integer part fits within
// precision minus scale digits. Beyond 28 integer digits any
// representable value is accepted.
func checkPrecision(val decimal.Decimal, precision, scale int) *values.EvalError {
	intPart := val.Truncate(0).Abs()
	if precision <= scale {
		// No integer digits allowed, the value must be purely fractional.
		if intPart.IsPositive() {
			return values.Overflow(fmt.Sprintf(
				"result %s exceeds declared precision(%d, %d)", val.String(), precision, scale))
		}
		return nil
	}
	maxIntDigits := precision - scale
	if maxIntDigits > 28 {
		return nil
	}
	maxVal := decimal.New(1, int32(maxIntDigits)).Sub(decimal.New(1, 0))
	if intPart.GreaterThan(maxVal) {
		return values.Overflow(fmt.Sprintf(
			"result %s exceeds declared precision(%d, %d)", val.String(), precision, scale))
	}
	return nil
}

// CompareValues compares two values with the given operator. When a
// comparison type is present it directs promotion; otherwise operands
// must share a type.
func CompareValues(left, right values.Value, op string, comparisonType *values.TypeSpec) (bool, *values.EvalError) {
	if comparisonType != nil {
		return compareWithPromotion(left, right, op, *comparisonType)
	}
	switch {
	case left.T == values.BOOL && right.T == values.BOOL:
		return compareBools(left.V.(bool), right.V.(bool), op)
	case left.T == values.INT && right.T == values.INT:
		return compareInts(left.V.(int64), right.V.(int64), op)
	case left.T == values.DECIMAL && right.T == values.DECIMAL:
		return compareDecimals(left.V.(decimal.Decimal), right.V.(decimal.Decimal), op)
	case left.T == values.TEXT && right.T == values.TEXT:
		if op != "=" && op != "!=" {
			return false, values.TypeError(fmt.Sprintf(
				"operator '%s' not defined for Text; Text supports only = and !=", op))
		}
		return compareStrings(left.V.(string), right.V.(string), op)
	case left.T == values.ENUM && right.T == values.ENUM:
		if op != "=" && op != "!=" {
			return false, values.TypeError(fmt.Sprintf(
				"operator '%s' not defined for Enum; Enum supports only = and !=", op))
		}
		return compareStrings(left.V.(string), right.V.(string), op)
	case left.T == values.MONEY && right.T == values.MONEY:
		l, r := left.V.(values.Money), right.V.(values.Money)
		if l.Currency != r.Currency {
			return false, values.TypeError(fmt.Sprintf(
				"cannot compare Money with different currencies: %s vs %s", l.Currency, r.Currency))
		}
		return compareDecimals(l.Amount, r.Amount, op)
	case left.T == values.DATE && right.T == values.DATE:
		// ISO-8601 dates compare correctly as strings.
		return compareStrings(left.V.(string), right.V.(string), op)
	case left.T == values.DATETIME && right.T == values.DATETIME:
		return compareStrings(left.V.(string), right.V.(string), op)
	case left.T == values.DURATION && right.T == values.DURATION:
		l, r := left.V.(values.Duration), right.V.(values.Duration)
		if l.Unit != r.Unit {
			return false, values.TypeError(fmt.Sprintf(
				"cannot compare Duration with different units: %s vs %s (cross-unit Duration comparison not supported)",
				l.Unit, r.Unit))
		}
		return compareInts(l.Value, r.Value, op)
	}
	return false, values.TypeError(fmt.Sprintf(
		"cannot compare %s with %s", left.TypeName(), right.TypeName()))
}

func compareWithPromotion(left, right values.Value, op string, ct values.TypeSpec) (bool, *values.EvalError) {
	switch ct.Base {
	case "Decimal":
		l, err := coerceToDecimal(left, ct)
		if err != nil {
			return false, err
		}
		r, err := coerceToDecimal(right, ct)
		if err != nil {
			return false, err
		}
		return compareDecimals(l, r, op)
	case "Money":
		l, ok := left.V.(values.Money)
		if !ok {
			return false, values.TypeError("cannot coerce " + left.TypeName() + " to Money")
		}
		r, ok := right.V.(values.Money)
		if !ok {
			return false, values.TypeError("cannot coerce " + right.TypeName() + " to Money")
		}
		if l.Currency != r.Currency {
			return false, values.TypeError(fmt.Sprintf(
				"cannot compare Money with different currencies: %s vs %s", l.Currency, r.Currency))
		}
		return compareDecimals(l.Amount, r.Amount, op)
	case "Int":
		l, ok := left.V.(int64)
		if !ok {
			return false, values.TypeError("cannot coerce " + left.TypeName() + " to Int")
		}
		r, ok := right.V.(int64)
		if !ok {
			return false, values.TypeError("cannot coerce " + right.TypeName() + " to Int")
		}
		return compareInts(l, r, op)
	}
	return CompareValues(left, right, op, nil)
}

func coerceToDecimal(val values.Value, target values.TypeSpec) (decimal.Decimal, *values.EvalError) {
	switch val.T {
	case values.DECIMAL:
		scale := 0
		if target.Scale != nil {
			scale = *target.Scale
		}
		return val.V.(decimal.Decimal).RoundBank(int32(scale)), nil
	case values.INT:
		return PromoteIntToDecimal(val.V.(int64), target), nil
	}
	return decimal.Decimal{}, values.TypeError("cannot coerce " + val.TypeName() + " to Decimal")
}

func compareBools(l, r bool, op string) (bool, *values.EvalError) {
	switch op {
	case "=":
		return l == r, nil
	case "!=":
		return l != r, nil
	}
	return false, values.InvalidOperator(op)
}

func compareInts(l, r int64, op string) (bool, *values.EvalError) {
	switch op {
	case "=":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return false, values.InvalidOperator(op)
}

func compareDecimals(l, r decimal.Decimal, op string) (bool, *values.EvalError) {
	switch op {
	case "=":
		return l.Equal(r), nil
	case "!=":
		return !l.Equal(r), nil
	case "<":
		return l.LessThan(r), nil
	case "<=":
		return l.LessThanOrEqual(r), nil
	case ">":
		return l.GreaterThan(r), nil
	case ">=":
		return l.GreaterThanOrEqual(r), nil
	}
	return false, values.InvalidOperator(op)
}

func compareStrings(l, r, op string) (bool, *values.EvalError) {
	switch op {
	case "=":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return false, values.InvalidOperator(op)
}
