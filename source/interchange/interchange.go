// Package interchange renders elaborated constructs as the canonical
// interchange bundle: one JSON object with lexically sorted keys, constructs
// in a fixed kind order, and structured numeric values. The same input always
// produces the same bytes.
package interchange

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/text"
)

type jmap = map[string]any

// Serialize renders the constructs as a canonical interchange bundle.
// Constructs are emitted grouped by kind (personas, sources, facts, entities,
// rules, operations, flows, systems), each group sorted by id, and rules
// additionally grouped by ascending stratum.
func Serialize(constructs []ast.RawConstruct, bundleId string) []byte {
	factTypes := map[string]ast.RawType{}
	for _, c := range constructs {
		if f, ok := c.(ast.Fact); ok {
			factTypes[f.Id] = f.Type
		}
	}

	var personas, sources, facts, entities, operations, flows, systems []ast.RawConstruct
	rulesByStratum := map[int64][]ast.RawConstruct{}
	for _, c := range constructs {
		switch c := c.(type) {
		case ast.Persona:
			personas = append(personas, c)
		case ast.Source:
			sources = append(sources, c)
		case ast.Fact:
			facts = append(facts, c)
		case ast.Entity:
			entities = append(entities, c)
		case ast.Rule:
			rulesByStratum[c.Stratum] = append(rulesByStratum[c.Stratum], c)
		case ast.Operation:
			operations = append(operations, c)
		case ast.Flow:
			flows = append(flows, c)
		case ast.System:
			systems = append(systems, c)
		}
	}

	byId := func(group []ast.RawConstruct) {
		sort.Slice(group, func(i, j int) bool { return group[i].GetId() < group[j].GetId() })
	}
	byId(personas)
	byId(sources)
	byId(facts)
	byId(entities)
	byId(operations)
	byId(flows)
	byId(systems)

	strata := make([]int64, 0, len(rulesByStratum))
	for s := range rulesByStratum {
		strata = append(strata, s)
	}
	sort.Slice(strata, func(i, j int) bool { return strata[i] < strata[j] })

	var result []any
	for _, group := range [][]ast.RawConstruct{personas, sources, facts, entities} {
		for _, c := range group {
			result = append(result, serializeConstruct(c, factTypes))
		}
	}
	for _, s := range strata {
		rules := rulesByStratum[s]
		byId(rules)
		for _, c := range rules {
			result = append(result, serializeConstruct(c, factTypes))
		}
	}
	for _, group := range [][]ast.RawConstruct{operations, flows, systems} {
		for _, c := range group {
			result = append(result, serializeConstruct(c, factTypes))
		}
	}
	if result == nil {
		result = []any{}
	}

	return marshalCanonical(jmap{
		"constructs":    result,
		"id":            bundleId,
		"kind":          "Bundle",
		"tenor":         text.VERSION,
		"tenor_version": text.BUNDLE_VERSION,
	})
}

// encoding/json already sorts object keys byte-lexically; the encoder is only
// needed to switch off HTML escaping.
func marshalCanonical(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func serializeConstruct(c ast.RawConstruct, factTypes map[string]ast.RawType) any {
	switch c := c.(type) {
	case ast.Fact:
		m := jmap{
			"id":         c.Id,
			"kind":       "Fact",
			"provenance": serializeProv(c.Prov),
			"source":     serializeFactSource(c.Source),
			"tenor":      text.VERSION,
			"type":       serializeType(c.Type),
		}
		if c.Default != nil {
			m["default"] = serializeFactDefault(c.Type, c.Default)
		}
		return m
	case ast.Entity:
		transitions := make([]any, 0, len(c.Transitions))
		for _, t := range c.Transitions {
			transitions = append(transitions, jmap{"from": t.From, "to": t.To})
		}
		m := jmap{
			"id":          c.Id,
			"initial":     c.Initial,
			"kind":        "Entity",
			"provenance":  serializeProv(c.Prov),
			"states":      stringArr(c.States),
			"tenor":       text.VERSION,
			"transitions": transitions,
		}
		if c.Parent != "" {
			m["parent"] = c.Parent
		}
		return m
	case ast.Rule:
		return jmap{
			"body": jmap{
				"produce": jmap{
					"payload":      serializePayload(c.PayloadType, c.PayloadValue, factTypes),
					"verdict_type": c.VerdictType,
				},
				"when": serializeExpr(c.When, factTypes),
			},
			"id":         c.Id,
			"kind":       "Rule",
			"provenance": serializeProv(c.Prov),
			"stratum":    c.Stratum,
			"tenor":      text.VERSION,
		}
	case ast.Operation:
		effects := make([]any, 0, len(c.Effects))
		for _, e := range c.Effects {
			em := jmap{"entity_id": e.EntityId, "from": e.From, "to": e.To}
			if e.Outcome != "" {
				em["outcome"] = e.Outcome
			}
			effects = append(effects, em)
		}
		m := jmap{
			"allowed_personas": stringArr(c.AllowedPersonas),
			"effects":          effects,
			"error_contract":   stringArr(c.ErrorContract),
			"id":               c.Id,
			"kind":             "Operation",
			"precondition":     serializeExpr(c.Precondition, factTypes),
			"provenance":       serializeProv(c.Prov),
			"tenor":            text.VERSION,
		}
		if len(c.Outcomes) > 0 {
			m["outcomes"] = stringArr(c.Outcomes)
		}
		return m
	case ast.Flow:
		return jmap{
			"entry":      c.Entry,
			"id":         c.Id,
			"kind":       "Flow",
			"provenance": serializeProv(c.Prov),
			"snapshot":   c.Snapshot,
			"steps":      serializeSteps(c.Steps, c.Entry, factTypes),
			"tenor":      text.VERSION,
		}
	case ast.Persona:
		return jmap{
			"id":         c.Id,
			"kind":       "Persona",
			"provenance": serializeProv(c.Prov),
			"tenor":      text.VERSION,
		}
	case ast.Source:
		fields := jmap{}
		for k, v := range c.Fields {
			fields[k] = v
		}
		m := jmap{
			"fields":     fields,
			"id":         c.Id,
			"kind":       "Source",
			"protocol":   c.Protocol,
			"provenance": serializeProv(c.Prov),
			"tenor":      text.VERSION,
		}
		if c.Description != "" {
			m["description"] = c.Description
		}
		return m
	case ast.System:
		return serializeSystem(c)
	}
	return nil
}

func serializeProv(prov ast.Provenance) jmap {
	return jmap{"file": prov.File, "line": prov.Line}
}

func stringArr(s []string) []any {
	arr := make([]any, 0, len(s))
	for _, v := range s {
		arr = append(arr, v)
	}
	return arr
}

func serializeFactSource(source ast.RawSourceDecl) any {
	switch source := source.(type) {
	case ast.FreetextSource:
		// Legacy freetext: split on first dot for backward compat.
		if dot := strings.Index(source.Text, "."); dot >= 0 {
			return jmap{"field": source.Text[dot+1:], "system": source.Text[:dot]}
		}
		return source.Text
	case ast.StructuredSource:
		return jmap{"path": source.Path, "source_id": source.SourceId}
	}
	return nil
}

// Decimal and Money defaults are rounded to the declared scale before they
// enter the bundle; everything else serializes as a plain literal.
func serializeFactDefault(t ast.RawType, d ast.RawLiteral) any {
	switch t := t.(type) {
	case ast.DecimalType:
		var raw string
		switch d := d.(type) {
		case ast.StrLit:
			raw = d.Value
		case ast.FloatLit:
			raw = d.Value
		default:
			return serializeLiteral(d)
		}
		return decimalValue(t.Precision, t.Scale, roundToScale(raw, t.Scale))
	case ast.MoneyType:
		if money, ok := d.(ast.MoneyLit); ok {
			p, sc := moneyPrecisionScale(money.Amount)
			return jmap{
				"amount":   decimalValue(p, sc, roundToScale(money.Amount, sc)),
				"currency": money.Currency,
				"kind":     "money_value",
			}
		}
	}
	return serializeLiteral(d)
}

func decimalValue(precision, scale int, value string) jmap {
	return jmap{
		"kind":      "decimal_value",
		"precision": precision,
		"scale":     scale,
		"value":     value,
	}
}

func serializeLiteral(lit ast.RawLiteral) any {
	switch lit := lit.(type) {
	case ast.BoolLit:
		return jmap{"kind": "bool_literal", "value": lit.Value}
	case ast.IntLit:
		return jmap{"kind": "int_literal", "value": lit.Value}
	case ast.FloatLit:
		p, sc := precisionScaleOf(lit.Value)
		return decimalValue(p, sc, lit.Value)
	case ast.StrLit:
		return lit.Value
	case ast.MoneyLit:
		p, sc := moneyPrecisionScale(lit.Amount)
		return jmap{
			"amount":   decimalValue(p, sc, lit.Amount),
			"currency": lit.Currency,
			"kind":     "money_value",
		}
	}
	return nil
}

func moneyPrecisionScale(string) (int, int) {
	return 10, 2
}

// roundToScale renders a decimal literal with exactly scale fractional
// digits, round-half-to-even.
func roundToScale(s string, scale int) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.StringFixedBank(int32(scale))
}

func precisionScaleOf(s string) (int, int) {
	digits := strings.TrimPrefix(s, "-")
	if dot := strings.Index(digits, "."); dot >= 0 {
		scale := len(digits) - dot - 1
		precision := dot + scale
		if precision < 1 {
			precision = 1
		}
		return precision, scale
	}
	if len(digits) < 1 {
		return 1, 0
	}
	return len(digits), 0
}

// ── Payloads and expressions ──────────────────────────────────────────────────

func serializePayload(t ast.RawType, value ast.RawTerm, factTypes map[string]ast.RawType) jmap {
	effective := t
	if tt, ok := t.(ast.TextType); ok && tt.MaxLength == 0 {
		if lit, ok := value.(ast.Literal); ok {
			if s, ok := lit.Lit.(ast.StrLit); ok {
				effective = ast.TextType{MaxLength: len(s.Value)}
			}
		}
	}
	m := jmap{"type": serializeType(effective)}
	switch value := value.(type) {
	case ast.Literal:
		switch lit := value.Lit.(type) {
		case ast.BoolLit:
			m["value"] = lit.Value
		case ast.IntLit:
			m["value"] = lit.Value
		case ast.StrLit:
			m["value"] = lit.Value
		default:
			m["value"] = serializeLiteral(lit)
		}
	case ast.Mul:
		m["value"] = serializeMulTerm(value.Left, value.Right, factTypes)
	default:
		m["value"] = nil
	}
	return m
}

// A fact-times-int product carries the literal and the derived result range so
// evaluators need not re-derive it.
func serializeMulTerm(left, right ast.RawTerm, factTypes map[string]ast.RawType) jmap {
	var factTerm ast.RawTerm
	var litN int64
	if f, ok := left.(ast.FactRef); ok {
		if lit, ok := right.(ast.Literal); ok {
			if n, ok := lit.Lit.(ast.IntLit); ok {
				factTerm, litN = f, n.Value
			}
		}
	}
	if factTerm == nil {
		if lit, ok := left.(ast.Literal); ok {
			if n, ok := lit.Lit.(ast.IntLit); ok {
				if f, ok := right.(ast.FactRef); ok {
					factTerm, litN = f, n.Value
				}
			}
		}
	}
	if factTerm == nil {
		return jmap{"left": serializeTerm(left), "op": "*", "right": serializeTerm(right)}
	}

	m := jmap{
		"left":    serializeTerm(factTerm),
		"literal": litN,
		"op":      "*",
	}
	name := factTerm.(ast.FactRef).Name
	if it, ok := factTypes[name].(ast.IntType); ok {
		min, max := mulRange(it.Min, it.Max, litN)
		m["result_type"] = serializeType(ast.IntType{Min: min, Max: max})
	}
	return m
}

func mulRange(min, max, n int64) (int64, int64) {
	if n >= 0 {
		return min * n, max * n
	}
	return max * n, min * n
}

func termNumericType(term ast.RawTerm, factTypes map[string]ast.RawType) ast.RawType {
	switch term := term.(type) {
	case ast.FactRef:
		return factTypes[term.Name]
	case ast.Literal:
		if n, ok := term.Lit.(ast.IntLit); ok {
			return ast.IntType{Min: n.Value, Max: n.Value}
		}
	case ast.Mul:
		var name string
		var litN int64
		var found bool
		if f, ok := term.Left.(ast.FactRef); ok {
			if lit, ok := term.Right.(ast.Literal); ok {
				if n, ok := lit.Lit.(ast.IntLit); ok {
					name, litN, found = f.Name, n.Value, true
				}
			}
		} else if lit, ok := term.Left.(ast.Literal); ok {
			if n, ok := lit.Lit.(ast.IntLit); ok {
				if f, ok := term.Right.(ast.FactRef); ok {
					name, litN, found = f.Name, n.Value, true
				}
			}
		}
		if found {
			if it, ok := factTypes[name].(ast.IntType); ok {
				min, max := mulRange(it.Min, it.Max, litN)
				return ast.IntType{Min: min, Max: max}
			}
		}
	}
	return nil
}

func intToDecimalPrecision(min, max int64) int {
	absMin := min
	if absMin < 0 {
		absMin = -absMin
	}
	absMax := max
	if absMax < 0 {
		absMax = -absMax
	}
	if absMin > absMax {
		absMax = absMin
	}
	if absMax == 0 {
		return 1
	}
	return int(math.Ceil(math.Log10(float64(absMax)))) + 1
}

// The type both sides are promoted to before a mixed numeric comparison.
func comparisonType(left, right ast.RawTerm, factTypes map[string]ast.RawType) ast.RawType {
	lt := termNumericType(left, factTypes)
	rt := termNumericType(right, factTypes)
	if m, ok := lt.(ast.MoneyType); ok {
		return m
	}
	if m, ok := rt.(ast.MoneyType); ok {
		return m
	}
	if li, ok := lt.(ast.IntType); ok {
		if rd, ok := rt.(ast.DecimalType); ok {
			p := rd.Precision
			if ip := intToDecimalPrecision(li.Min, li.Max); ip > p {
				p = ip
			}
			return ast.DecimalType{Precision: p + 1, Scale: rd.Scale}
		}
	}
	if ld, ok := lt.(ast.DecimalType); ok {
		if ri, ok := rt.(ast.IntType); ok {
			p := ld.Precision
			if ip := intToDecimalPrecision(ri.Min, ri.Max); ip > p {
				p = ip
			}
			return ast.DecimalType{Precision: p + 1, Scale: ld.Scale}
		}
	}
	if li, ok := lt.(ast.IntType); ok {
		if ri, ok := rt.(ast.IntType); ok {
			if _, isMul := left.(ast.Mul); isMul {
				min, max := li.Min, li.Max
				if ri.Min < min {
					min = ri.Min
				}
				if ri.Max > max {
					max = ri.Max
				}
				return ast.IntType{Min: min, Max: max}
			}
		}
	}
	return nil
}

func serializeTermCtx(term ast.RawTerm, factTypes map[string]ast.RawType) any {
	if mul, ok := term.(ast.Mul); ok {
		return serializeMulTerm(mul.Left, mul.Right, factTypes)
	}
	return serializeTerm(term)
}

func serializeExpr(expr ast.RawExpr, factTypes map[string]ast.RawType) any {
	switch expr := expr.(type) {
	case ast.Compare:
		m := jmap{
			"left": serializeTermCtx(expr.Left, factTypes),
			"op":   expr.Op,
		}
		if ct := comparisonType(expr.Left, expr.Right, factTypes); ct != nil {
			m["comparison_type"] = serializeType(ct)
		}
		m["right"] = serializeCompareRight(expr, factTypes)
		return m
	case ast.VerdictPresent:
		return jmap{"verdict_present": expr.Id}
	case ast.And:
		return jmap{
			"left":  serializeExpr(expr.Left, factTypes),
			"op":    "and",
			"right": serializeExpr(expr.Right, factTypes),
		}
	case ast.Or:
		return jmap{
			"left":  serializeExpr(expr.Left, factTypes),
			"op":    "or",
			"right": serializeExpr(expr.Right, factTypes),
		}
	case ast.Not:
		return jmap{"op": "not", "operand": serializeExpr(expr.Operand, factTypes)}
	case ast.Forall:
		return serializeQuantifier("forall", expr.Var, expr.Domain, expr.Body, factTypes)
	case ast.Exists:
		return serializeQuantifier("exists", expr.Var, expr.Domain, expr.Body, factTypes)
	}
	return nil
}

// A string literal compared against an Enum fact is annotated with the enum
// type so evaluators can validate the value.
func serializeCompareRight(expr ast.Compare, factTypes map[string]ast.RawType) any {
	if f, ok := expr.Left.(ast.FactRef); ok {
		if et, ok := factTypes[f.Name].(ast.EnumType); ok {
			if lit, ok := expr.Right.(ast.Literal); ok {
				if s, ok := lit.Lit.(ast.StrLit); ok {
					return jmap{"literal": s.Value, "type": serializeType(et)}
				}
			}
		}
	}
	return serializeTermCtx(expr.Right, factTypes)
}

func serializeQuantifier(quantifier, variable, domain string, body ast.RawExpr, factTypes map[string]ast.RawType) jmap {
	m := jmap{
		"body":       serializeExpr(body, factTypes),
		"domain":     jmap{"fact_ref": domain},
		"quantifier": quantifier,
		"variable":   variable,
	}
	if lt, ok := factTypes[domain].(ast.ListType); ok {
		m["variable_type"] = serializeType(lt.ElementType)
	}
	return m
}

func serializeTerm(term ast.RawTerm) any {
	switch term := term.(type) {
	case ast.FactRef:
		return jmap{"fact_ref": term.Name}
	case ast.FieldRef:
		return jmap{"field_ref": jmap{"field": term.Field, "var": term.Var}}
	case ast.Literal:
		switch lit := term.Lit.(type) {
		case ast.BoolLit:
			return jmap{"literal": lit.Value, "type": serializeType(ast.BoolType{})}
		case ast.IntLit:
			return jmap{
				"literal": lit.Value,
				"type":    serializeType(ast.IntType{Min: lit.Value, Max: lit.Value}),
			}
		case ast.StrLit:
			return jmap{"literal": lit.Value}
		case ast.FloatLit:
			p, sc := precisionScaleOf(lit.Value)
			return jmap{
				"literal": lit.Value,
				"type":    serializeType(ast.DecimalType{Precision: p, Scale: sc}),
			}
		case ast.MoneyLit:
			p, sc := moneyPrecisionScale(lit.Amount)
			return jmap{
				"literal": jmap{
					"amount":   decimalValue(p, sc, lit.Amount),
					"currency": lit.Currency,
				},
				"type": serializeType(ast.MoneyType{Currency: lit.Currency}),
			}
		}
	case ast.Mul:
		return jmap{"left": serializeTerm(term.Left), "op": "*", "right": serializeTerm(term.Right)}
	}
	return nil
}

// ── Types ─────────────────────────────────────────────────────────────────────

func serializeType(t ast.RawType) any {
	switch t := t.(type) {
	case ast.BoolType:
		return jmap{"base": "Bool"}
	case ast.DateType:
		return jmap{"base": "Date"}
	case ast.DateTimeType:
		return jmap{"base": "DateTime"}
	case ast.IntType:
		return jmap{"base": "Int", "max": t.Max, "min": t.Min}
	case ast.DecimalType:
		return jmap{"base": "Decimal", "precision": t.Precision, "scale": t.Scale}
	case ast.TextType:
		return jmap{"base": "Text", "max_length": t.MaxLength}
	case ast.EnumType:
		return jmap{"base": "Enum", "values": stringArr(t.Values)}
	case ast.MoneyType:
		return jmap{"base": "Money", "currency": t.Currency}
	case ast.DurationType:
		return jmap{"base": "Duration", "max": t.Max, "min": t.Min, "unit": t.Unit}
	case ast.RecordType:
		fields := jmap{}
		for name, ft := range t.Fields {
			fields[name] = serializeType(ft)
		}
		return jmap{"base": "Record", "fields": fields}
	case ast.ListType:
		return jmap{"base": "List", "element_type": serializeType(t.ElementType), "max": t.Max}
	case ast.TaggedUnionType:
		variants := jmap{}
		for tag, vt := range t.Variants {
			variants[tag] = serializeType(vt)
		}
		return jmap{"base": "TaggedUnion", "variants": variants}
	case ast.TypeRef:
		return jmap{"base": "TypeRef", "id": t.Name}
	}
	return nil
}

// ── Flow steps ────────────────────────────────────────────────────────────────

// Steps are emitted in BFS order from the entry step; unreachable steps follow
// in lexical order.
func serializeSteps(steps map[string]ast.RawStep, entry string, factTypes map[string]ast.RawType) []any {
	order := topologicalOrder(steps, entry)
	arr := make([]any, 0, len(order))
	for _, sid := range order {
		if step, ok := steps[sid]; ok {
			arr = append(arr, serializeStep(sid, step, factTypes))
		}
	}
	return arr
}

func topologicalOrder(steps map[string]ast.RawStep, entry string) []string {
	adj := map[string][]string{}
	for _, sid := range ast.SortedKeys(steps) {
		var neighbors []string
		switch step := steps[sid].(type) {
		case ast.OperationStep:
			for _, label := range ast.SortedKeys(step.Outcomes) {
				if ref, ok := step.Outcomes[label].(ast.StepRef); ok {
					neighbors = append(neighbors, ref.Name)
				}
			}
		case ast.BranchStep:
			if ref, ok := step.IfTrue.(ast.StepRef); ok {
				neighbors = append(neighbors, ref.Name)
			}
			if ref, ok := step.IfFalse.(ast.StepRef); ok {
				neighbors = append(neighbors, ref.Name)
			}
		case ast.HandoffStep:
			neighbors = append(neighbors, step.Next)
		case ast.SubFlowStep:
			if ref, ok := step.OnSuccess.(ast.StepRef); ok {
				neighbors = append(neighbors, ref.Name)
			}
		}
		adj[sid] = neighbors
	}

	var result []string
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)
		for _, neighbor := range adj[node] {
			if _, declared := steps[neighbor]; declared && !seen[neighbor] {
				seen[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}
	for _, sid := range ast.SortedKeys(steps) {
		if !seen[sid] {
			result = append(result, sid)
		}
	}
	return result
}

func serializeStep(id string, step ast.RawStep, factTypes map[string]ast.RawType) jmap {
	switch step := step.(type) {
	case ast.OperationStep:
		outcomes := jmap{}
		for label, target := range step.Outcomes {
			outcomes[label] = serializeStepTarget(target)
		}
		m := jmap{
			"id":       id,
			"kind":     "OperationStep",
			"op":       step.Op,
			"outcomes": outcomes,
			"persona":  step.Persona,
		}
		if step.OnFailure != nil {
			m["on_failure"] = serializeFailureHandler(step.OnFailure)
		}
		return m
	case ast.BranchStep:
		return jmap{
			"condition": serializeExpr(step.Condition, factTypes),
			"id":        id,
			"if_false":  serializeStepTarget(step.IfFalse),
			"if_true":   serializeStepTarget(step.IfTrue),
			"kind":      "BranchStep",
			"persona":   step.Persona,
		}
	case ast.HandoffStep:
		return jmap{
			"from_persona": step.FromPersona,
			"id":           id,
			"kind":         "HandoffStep",
			"next":         step.Next,
			"to_persona":   step.ToPersona,
		}
	case ast.SubFlowStep:
		return jmap{
			"flow":       step.Flow,
			"id":         id,
			"kind":       "SubFlowStep",
			"on_failure": serializeFailureHandler(step.OnFailure),
			"on_success": serializeStepTarget(step.OnSuccess),
			"persona":    step.Persona,
		}
	case ast.ParallelStep:
		branches := make([]any, 0, len(step.Branches))
		for _, b := range step.Branches {
			branches = append(branches, jmap{
				"entry": b.Entry,
				"id":    b.Id,
				"steps": serializeSteps(b.Steps, b.Entry, factTypes),
			})
		}
		join := jmap{}
		if step.Join.OnAllSuccess != nil {
			join["on_all_success"] = serializeStepTarget(step.Join.OnAllSuccess)
		}
		if step.Join.OnAnyFailure != nil {
			join["on_any_failure"] = serializeFailureHandler(step.Join.OnAnyFailure)
		}
		if step.Join.OnAllComplete != nil {
			join["on_all_complete"] = serializeStepTarget(step.Join.OnAllComplete)
		}
		return jmap{
			"branches": branches,
			"id":       id,
			"join":     join,
			"kind":     "ParallelStep",
		}
	}
	return nil
}

func serializeStepTarget(target ast.RawStepTarget) any {
	switch target := target.(type) {
	case ast.StepRef:
		return target.Name
	case ast.Terminal:
		return jmap{"kind": "Terminal", "outcome": target.Outcome}
	}
	return nil
}

func serializeFailureHandler(handler ast.RawFailureHandler) any {
	switch handler := handler.(type) {
	case ast.Terminate:
		return jmap{"kind": "Terminate", "outcome": handler.Outcome}
	case ast.Compensate:
		steps := make([]any, 0, len(handler.Steps))
		for _, s := range handler.Steps {
			steps = append(steps, jmap{
				"on_failure": jmap{"kind": "Terminal", "outcome": s.OnFailure},
				"op":         s.Op,
				"persona":    s.Persona,
			})
		}
		return jmap{
			"kind":  "Compensate",
			"steps": steps,
			"then":  jmap{"kind": "Terminal", "outcome": handler.Then},
		}
	case ast.Escalate:
		return jmap{"kind": "Escalate", "next": handler.Next, "to_persona": handler.ToPersona}
	}
	return nil
}

// ── Systems ───────────────────────────────────────────────────────────────────

func serializeSystem(sys ast.System) jmap {
	members := make([]ast.Member, len(sys.Members))
	copy(members, sys.Members)
	sort.Slice(members, func(i, j int) bool { return members[i].Id < members[j].Id })
	membersArr := make([]any, 0, len(members))
	for _, m := range members {
		membersArr = append(membersArr, jmap{"id": m.Id, "path": m.Path})
	}

	triggers := make([]ast.RawTrigger, len(sys.Triggers))
	copy(triggers, sys.Triggers)
	sort.Slice(triggers, func(i, j int) bool {
		a, b := triggers[i], triggers[j]
		if a.SourceContract != b.SourceContract {
			return a.SourceContract < b.SourceContract
		}
		if a.SourceFlow != b.SourceFlow {
			return a.SourceFlow < b.SourceFlow
		}
		if a.TargetContract != b.TargetContract {
			return a.TargetContract < b.TargetContract
		}
		return a.TargetFlow < b.TargetFlow
	})
	triggersArr := make([]any, 0, len(triggers))
	for _, t := range triggers {
		triggersArr = append(triggersArr, jmap{
			"on":              t.On,
			"persona":         t.Persona,
			"source_contract": t.SourceContract,
			"source_flow":     t.SourceFlow,
			"target_contract": t.TargetContract,
			"target_flow":     t.TargetFlow,
		})
	}

	return jmap{
		"id":              sys.Id,
		"kind":            "System",
		"members":         membersArr,
		"provenance":      serializeProv(sys.Prov),
		"shared_entities": serializeSharedBindings(sys.SharedEntities, "entity"),
		"shared_personas": serializeSharedBindings(sys.SharedPersonas, "persona"),
		"tenor":           text.VERSION,
		"triggers":        triggersArr,
	}
}

func serializeSharedBindings(bindings []ast.SharedBinding, idKey string) []any {
	sorted := make([]ast.SharedBinding, len(bindings))
	copy(sorted, bindings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Id < sorted[j].Id })
	arr := make([]any, 0, len(sorted))
	for _, b := range sorted {
		contracts := make([]string, len(b.Contracts))
		copy(contracts, b.Contracts)
		sort.Strings(contracts)
		arr = append(arr, jmap{"contracts": stringArr(contracts), idKey: b.Id})
	}
	return arr
}
