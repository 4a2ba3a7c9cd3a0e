package values

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseDefaultValue decodes a fact default from interchange JSON. Defaults
// produced by the elaborator are kind-tagged (bool_literal, int_literal,
// decimal_value, money_value); anything else falls through to the plain
// decoder for the declared type.
func ParseDefaultValue(v any, typeSpec TypeSpec) (Value, *EvalError) {
	if obj, ok := v.(map[string]any); ok {
		if kind, ok := obj["kind"].(string); ok {
			switch kind {
			case "bool_literal":
				b, ok := obj["value"].(bool)
				if !ok {
					return Value{}, DeserializeError("bool_literal missing 'value'")
				}
				return MakeBool(b), nil
			case "int_literal":
				i, ok := jsonInt(obj["value"])
				if !ok {
					return Value{}, DeserializeError("int_literal missing 'value'")
				}
				return MakeInt(i), nil
			case "decimal_value":
				s, ok := obj["value"].(string)
				if !ok {
					return Value{}, DeserializeError("decimal_value missing 'value'")
				}
				d, err := decimal.NewFromString(s)
				if err != nil {
					return Value{}, DeserializeError("invalid decimal: %v", err)
				}
				return MakeDecimal(d), nil
			case "money_value":
				currency, eerr := jsonStr(v, "currency")
				if eerr != nil {
					return Value{}, eerr
				}
				amountObj, present := obj["amount"]
				if !present {
					return Value{}, DeserializeError("money_value missing 'amount'")
				}
				amountStr, eerr := jsonStr(amountObj, "value")
				if eerr != nil {
					return Value{}, DeserializeError("money_value amount missing 'value'")
				}
				amount, err := decimal.NewFromString(amountStr)
				if err != nil {
					return Value{}, DeserializeError("invalid money amount: %v", err)
				}
				return MakeMoney(amount, currency), nil
			}
		}
	}
	return ParsePlainValue(v, typeSpec)
}

// ParsePlainValue decodes a plain JSON value (no kind wrapper) according to
// the declared type. This is the format external fact inputs arrive in.
func ParsePlainValue(v any, typeSpec TypeSpec) (Value, *EvalError) {
	switch typeSpec.Base {
	case "Bool":
		b, ok := v.(bool)
		if !ok {
			return Value{}, DeserializeError("expected boolean")
		}
		return MakeBool(b), nil
	case "Int":
		i, ok := jsonInt(v)
		if !ok {
			return Value{}, DeserializeError("expected integer")
		}
		return MakeInt(i), nil
	case "Decimal":
		// Either a plain string or a structured decimal_value object.
		s, ok := v.(string)
		if !ok {
			if inner, eerr := jsonStr(v, "value"); eerr == nil {
				s = inner
			} else {
				return Value{}, DeserializeError("Decimal must be a string or structured decimal_value")
			}
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, DeserializeError("invalid decimal: %v", err)
		}
		return MakeDecimal(d), nil
	case "Money":
		obj, ok := v.(map[string]any)
		if !ok {
			return Value{}, DeserializeError("Money value missing 'amount' field")
		}
		amountVal, present := obj["amount"]
		if !present {
			return Value{}, DeserializeError("Money value missing 'amount' field")
		}
		// The amount is a plain string in fact inputs and a nested
		// decimal_value object in interchange literals.
		amountStr, ok := amountVal.(string)
		if !ok {
			inner, eerr := jsonStr(amountVal, "value")
			if eerr != nil {
				return Value{}, DeserializeError("Money 'amount' must be a string or structured decimal_value")
			}
			amountStr = inner
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return Value{}, DeserializeError("invalid money amount: %v", err)
		}
		currency, ok := obj["currency"].(string)
		if !ok {
			currency = typeSpec.Currency
		}
		return MakeMoney(amount, currency), nil
	case "Text":
		s, ok := v.(string)
		if !ok {
			return Value{}, DeserializeError("expected text string")
		}
		return MakeText(s), nil
	case "Date":
		s, ok := v.(string)
		if !ok {
			return Value{}, DeserializeError("expected date string")
		}
		return MakeDate(s), nil
	case "DateTime":
		s, ok := v.(string)
		if !ok {
			return Value{}, DeserializeError("expected datetime string")
		}
		return MakeDatetime(s), nil
	case "Duration":
		obj, _ := v.(map[string]any)
		val, ok := jsonInt(obj["value"])
		if !ok {
			return Value{}, DeserializeError("Duration missing 'value'")
		}
		unit, ok := obj["unit"].(string)
		if !ok {
			unit = typeSpec.Unit
			if unit == "" {
				unit = "seconds"
			}
		}
		return MakeDuration(val, unit), nil
	case "Enum":
		s, ok := v.(string)
		if !ok {
			return Value{}, DeserializeError("expected enum string")
		}
		return MakeEnum(s), nil
	case "Record":
		obj, ok := v.(map[string]any)
		if !ok {
			return Value{}, DeserializeError("expected record object")
		}
		if typeSpec.Fields == nil {
			return Value{}, DeserializeError("Record type missing 'fields'")
		}
		fields := make(map[string]Value, len(typeSpec.Fields))
		for _, k := range SortedKeys(typeSpec.Fields) {
			fv, present := obj[k]
			if !present {
				return Value{}, DeserializeError("Record missing field '%s'", k)
			}
			parsed, eerr := ParsePlainValue(fv, typeSpec.Fields[k])
			if eerr != nil {
				return Value{}, eerr
			}
			fields[k] = parsed
		}
		return MakeRecord(fields), nil
	case "List":
		arr, ok := v.([]any)
		if !ok {
			return Value{}, DeserializeError("expected list array")
		}
		if typeSpec.ElementType == nil {
			return Value{}, DeserializeError("List type missing 'element_type'")
		}
		elements := make([]Value, 0, len(arr))
		for _, item := range arr {
			parsed, eerr := ParsePlainValue(item, *typeSpec.ElementType)
			if eerr != nil {
				return Value{}, eerr
			}
			elements = append(elements, parsed)
		}
		return MakeList(elements), nil
	case "TaggedUnion":
		obj, ok := v.(map[string]any)
		if !ok {
			return Value{}, DeserializeError("expected tagged union object")
		}
		tag, ok := obj["tag"].(string)
		if !ok {
			return Value{}, DeserializeError("TaggedUnion missing 'tag'")
		}
		payloadVal, present := obj["payload"]
		if !present {
			return Value{}, DeserializeError("TaggedUnion missing 'payload'")
		}
		if typeSpec.Variants == nil {
			return Value{}, DeserializeError("TaggedUnion type missing 'variants'")
		}
		vt, ok := typeSpec.Variants[tag]
		if !ok {
			return Value{}, DeserializeError("unknown TaggedUnion variant '%s'", tag)
		}
		payload, eerr := ParsePlainValue(payloadVal, vt)
		if eerr != nil {
			return Value{}, eerr
		}
		return MakeTagged(tag, payload), nil
	}
	return Value{}, DeserializeError("unsupported type base: %s", typeSpec.Base)
}

// ParseLiteralValue decodes a literal from interchange JSON. Scalar bases
// are stored bare; structured bases reuse the kind-tagged default format.
func ParseLiteralValue(v any, typeSpec TypeSpec) (Value, *EvalError) {
	switch typeSpec.Base {
	case "Bool":
		b, ok := v.(bool)
		if !ok {
			return Value{}, DeserializeError("expected boolean literal")
		}
		return MakeBool(b), nil
	case "Int":
		i, ok := jsonInt(v)
		if !ok {
			return Value{}, DeserializeError("expected integer literal")
		}
		return MakeInt(i), nil
	case "Text":
		s, ok := v.(string)
		if !ok {
			return Value{}, DeserializeError("expected text literal")
		}
		return MakeText(s), nil
	case "Enum":
		s, ok := v.(string)
		if !ok {
			return Value{}, DeserializeError("expected enum literal")
		}
		return MakeEnum(s), nil
	}
	return ParseDefaultValue(v, typeSpec)
}

// InferLiteral guesses a value and type from a bare JSON literal, for
// predicate nodes the elaborator emits without a type annotation. Untyped
// strings default to Text.
func InferLiteral(v any) (Value, TypeSpec, *EvalError) {
	if b, ok := v.(bool); ok {
		return MakeBool(b), BaseSpec("Bool"), nil
	}
	if i, ok := jsonInt(v); ok {
		return MakeInt(i), BaseSpec("Int"), nil
	}
	if s, ok := v.(string); ok {
		return MakeText(s), BaseSpec("Text"), nil
	}
	return Value{}, TypeSpec{}, DeserializeError("cannot infer type for literal: %s", fmt.Sprint(v))
}
