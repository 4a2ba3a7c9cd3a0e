package values

import (
	"encoding/json"
)

// TypeSpec is a resolved base type as it appears in an interchange bundle.
// Optional refinements are pointers so that absent and zero stay distinct.
type TypeSpec struct {
	Base        string
	Precision   *int
	Scale       *int
	Currency    string
	Min         *int64
	Max         *int64
	MaxLength   *int
	Values      []string
	Fields      map[string]TypeSpec
	ElementType *TypeSpec
	Unit        string
	Variants    map[string]TypeSpec
}

// BaseSpec makes a TypeSpec with no refinements.
func BaseSpec(base string) TypeSpec {
	return TypeSpec{Base: base}
}

// TypeSpecFromJSON decodes a BaseType object from interchange JSON.
func TypeSpecFromJSON(v any) (TypeSpec, *EvalError) {
	obj, ok := v.(map[string]any)
	if !ok {
		return TypeSpec{}, DeserializeError("TypeSpec must be a JSON object")
	}
	base, ok := obj["base"].(string)
	if !ok {
		return TypeSpec{}, DeserializeError("TypeSpec missing 'base' field")
	}
	ts := TypeSpec{Base: base}
	if p, ok := jsonInt(obj["precision"]); ok {
		pi := int(p)
		ts.Precision = &pi
	}
	if s, ok := jsonInt(obj["scale"]); ok {
		si := int(s)
		ts.Scale = &si
	}
	if c, ok := obj["currency"].(string); ok {
		ts.Currency = c
	}
	if m, ok := jsonInt(obj["min"]); ok {
		ts.Min = &m
	}
	if m, ok := jsonInt(obj["max"]); ok {
		ts.Max = &m
	}
	if l, ok := jsonInt(obj["max_length"]); ok {
		li := int(l)
		ts.MaxLength = &li
	}
	if u, ok := obj["unit"].(string); ok {
		ts.Unit = u
	}
	if arr, ok := obj["values"].([]any); ok {
		for _, e := range arr {
			if s, ok := e.(string); ok {
				ts.Values = append(ts.Values, s)
			}
		}
	}
	if fieldsObj, ok := obj["fields"].(map[string]any); ok {
		ts.Fields = make(map[string]TypeSpec, len(fieldsObj))
		for k, fv := range fieldsObj {
			ft, err := TypeSpecFromJSON(fv)
			if err != nil {
				return TypeSpec{}, err
			}
			ts.Fields[k] = ft
		}
	}
	if et, present := obj["element_type"]; present {
		elem, err := TypeSpecFromJSON(et)
		if err != nil {
			return TypeSpec{}, err
		}
		ts.ElementType = &elem
	}
	if variantsObj, ok := obj["variants"].(map[string]any); ok {
		ts.Variants = make(map[string]TypeSpec, len(variantsObj))
		for k, vv := range variantsObj {
			vt, err := TypeSpecFromJSON(vv)
			if err != nil {
				return TypeSpec{}, err
			}
			ts.Variants[k] = vt
		}
	}
	return ts, nil
}

// jsonInt coerces the number representations produced by encoding/json
// (json.Number under UseNumber, float64 otherwise) into an int64.
func jsonInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func jsonStr(v any, field string) (string, *EvalError) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", DeserializeError("missing string field '%s'", field)
	}
	s, ok := obj[field].(string)
	if !ok {
		return "", DeserializeError("missing string field '%s'", field)
	}
	return s, nil
}
