// Package values defines the runtime values of contract evaluation: the
// tagged Value type, type specifications decoded from interchange bundles,
// fact and verdict sets, and the predicate tree the evaluator walks.
package values

import (
	"sort"

	"github.com/shopspring/decimal"
)

type ValueType uint32

const (
	UNDEFINED_VALUE ValueType = iota // The zero value should never occur in a live FactSet.
	BOOL
	INT
	DECIMAL
	TEXT
	DATE
	DATETIME
	MONEY
	DURATION
	ENUM
	RECORD
	LIST
	TAGGED
)

// Value is a tagged runtime value. The payload in V depends on T:
// BOOL holds bool, INT holds int64, DECIMAL holds decimal.Decimal,
// TEXT/DATE/DATETIME/ENUM hold string, MONEY holds Money, DURATION holds
// Duration, RECORD holds map[string]Value, LIST holds []Value, and
// TAGGED holds Tagged.
type Value struct {
	T ValueType
	V any
}

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

type Duration struct {
	Value int64
	Unit  string
}

type Tagged struct {
	Tag     string
	Payload *Value
}

var (
	FALSE = Value{T: BOOL, V: false}
	TRUE  = Value{T: BOOL, V: true}
)

func MakeBool(b bool) Value               { return Value{T: BOOL, V: b} }
func MakeInt(i int64) Value               { return Value{T: INT, V: i} }
func MakeDecimal(d decimal.Decimal) Value { return Value{T: DECIMAL, V: d} }
func MakeText(s string) Value             { return Value{T: TEXT, V: s} }
func MakeDate(s string) Value             { return Value{T: DATE, V: s} }
func MakeDatetime(s string) Value         { return Value{T: DATETIME, V: s} }
func MakeEnum(s string) Value             { return Value{T: ENUM, V: s} }
func MakeMoney(amount decimal.Decimal, currency string) Value {
	return Value{T: MONEY, V: Money{Amount: amount, Currency: currency}}
}
func MakeDuration(value int64, unit string) Value {
	return Value{T: DURATION, V: Duration{Value: value, Unit: unit}}
}
func MakeRecord(fields map[string]Value) Value { return Value{T: RECORD, V: fields} }
func MakeList(elements []Value) Value          { return Value{T: LIST, V: elements} }
func MakeTagged(tag string, payload Value) Value {
	return Value{T: TAGGED, V: Tagged{Tag: tag, Payload: &payload}}
}

// TypeName renders the value's type for error messages.
func (v Value) TypeName() string {
	switch v.T {
	case BOOL:
		return "Bool"
	case INT:
		return "Int"
	case DECIMAL:
		return "Decimal"
	case TEXT:
		return "Text"
	case DATE:
		return "Date"
	case DATETIME:
		return "DateTime"
	case MONEY:
		return "Money"
	case DURATION:
		return "Duration"
	case ENUM:
		return "Enum"
	case RECORD:
		return "Record"
	case LIST:
		return "List"
	case TAGGED:
		return "TaggedUnion"
	}
	return "Undefined"
}

// AsBool extracts the boolean payload or fails with a type error.
func (v Value) AsBool() (bool, *EvalError) {
	if v.T == BOOL {
		return v.V.(bool), nil
	}
	return false, TypeError("expected Bool, got " + v.TypeName())
}

// ToJSON renders a value in the kind-tagged output format used by verdict
// payloads and execution traces.
func (v Value) ToJSON() any {
	switch v.T {
	case BOOL:
		return map[string]any{"kind": "bool_value", "value": v.V.(bool)}
	case INT:
		return map[string]any{"kind": "int_value", "value": v.V.(int64)}
	case DECIMAL:
		return map[string]any{"kind": "decimal_value", "value": v.V.(decimal.Decimal).String()}
	case TEXT:
		return map[string]any{"kind": "text_value", "value": v.V.(string)}
	case DATE:
		return map[string]any{"kind": "date_value", "value": v.V.(string)}
	case DATETIME:
		return map[string]any{"kind": "datetime_value", "value": v.V.(string)}
	case MONEY:
		m := v.V.(Money)
		return map[string]any{"kind": "money_value", "amount": m.Amount.String(), "currency": m.Currency}
	case DURATION:
		d := v.V.(Duration)
		return map[string]any{"kind": "duration_value", "value": d.Value, "unit": d.Unit}
	case ENUM:
		return map[string]any{"kind": "enum_value", "value": v.V.(string)}
	case RECORD:
		fields := v.V.(map[string]Value)
		out := make(map[string]any, len(fields))
		for k, fv := range fields {
			out[k] = fv.ToJSON()
		}
		return map[string]any{"kind": "record_value", "fields": out}
	case LIST:
		elements := v.V.([]Value)
		arr := make([]any, len(elements))
		for i, e := range elements {
			arr[i] = e.ToJSON()
		}
		return map[string]any{"kind": "list_value", "elements": arr}
	case TAGGED:
		tu := v.V.(Tagged)
		return map[string]any{"kind": "tagged_union_value", "tag": tu.Tag, "payload": tu.Payload.ToJSON()}
	}
	return nil
}

// Equal reports deep value equality. Decimals compare numerically, so
// 1.50 equals 1.5.
func (v Value) Equal(w Value) bool {
	if v.T != w.T {
		return false
	}
	switch v.T {
	case BOOL:
		return v.V.(bool) == w.V.(bool)
	case INT:
		return v.V.(int64) == w.V.(int64)
	case DECIMAL:
		return v.V.(decimal.Decimal).Equal(w.V.(decimal.Decimal))
	case TEXT, DATE, DATETIME, ENUM:
		return v.V.(string) == w.V.(string)
	case MONEY:
		a, b := v.V.(Money), w.V.(Money)
		return a.Currency == b.Currency && a.Amount.Equal(b.Amount)
	case DURATION:
		return v.V.(Duration) == w.V.(Duration)
	case RECORD:
		a, b := v.V.(map[string]Value), w.V.(map[string]Value)
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	case LIST:
		a, b := v.V.([]Value), w.V.([]Value)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case TAGGED:
		a, b := v.V.(Tagged), w.V.(Tagged)
		return a.Tag == b.Tag && a.Payload.Equal(*b.Payload)
	}
	return false
}

// SortedKeys returns the keys of a map of values in ascending order.
func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
