package interchange

import (
	"bytes"
	"encoding/json"

	"github.com/tenorlang/tenor/source/values"
)

// Deserialize decodes a canonical bundle into evaluation form. Source,
// System, and TypeDecl constructs are skipped: they carry no runtime
// behavior, and type references are already resolved in the bundle.
func Deserialize(data []byte) (*values.Contract, *values.EvalError) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var bundle any
	if err := dec.Decode(&bundle); err != nil {
		return nil, values.DeserializeError("invalid bundle JSON: %v", err)
	}
	obj, ok := bundle.(map[string]any)
	if !ok {
		return nil, values.DeserializeError("bundle must be a JSON object")
	}
	constructs, ok := obj["constructs"].([]any)
	if !ok {
		return nil, values.DeserializeError("bundle missing 'constructs' array")
	}

	var facts []values.FactDecl
	var entities []values.Entity
	var rules []values.Rule
	var operations []values.Operation
	var flows []values.Flow
	var personas []string

	for _, c := range constructs {
		kind, err := getStr(c, "kind")
		if err != nil {
			return nil, err
		}
		switch kind {
		case "Fact":
			fact, err := parseFact(c)
			if err != nil {
				return nil, err
			}
			facts = append(facts, fact)
		case "Entity":
			entity, err := parseEntity(c)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		case "Rule":
			rule, err := parseRule(c)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		case "Operation":
			op, err := parseOperation(c)
			if err != nil {
				return nil, err
			}
			operations = append(operations, op)
		case "Flow":
			flow, err := parseFlow(c)
			if err != nil {
				return nil, err
			}
			flows = append(flows, flow)
		case "Persona":
			id, err := getStr(c, "id")
			if err != nil {
				return nil, err
			}
			personas = append(personas, id)
		case "Source", "System", "TypeDecl":
		default:
			return nil, values.DeserializeError("unknown construct kind: %s", kind)
		}
	}

	return values.NewContract(facts, entities, rules, operations, flows, personas), nil
}

func getStr(v any, field string) (string, *values.EvalError) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", values.DeserializeError("missing string field '%s'", field)
	}
	s, ok := obj[field].(string)
	if !ok {
		return "", values.DeserializeError("missing string field '%s'", field)
	}
	return s, nil
}

func getInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func parseFact(v any) (values.FactDecl, *values.EvalError) {
	obj := v.(map[string]any)
	id, err := getStr(v, "id")
	if err != nil {
		return values.FactDecl{}, err
	}
	factType, err := values.TypeSpecFromJSON(obj["type"])
	if err != nil {
		return values.FactDecl{}, err
	}
	fact := values.FactDecl{Id: id, Type: factType}
	if def, present := obj["default"]; present && def != nil {
		dv, err := values.ParseDefaultValue(def, factType)
		if err != nil {
			return values.FactDecl{}, err
		}
		fact.Default = &dv
	}
	return fact, nil
}

func parseEntity(v any) (values.Entity, *values.EvalError) {
	obj := v.(map[string]any)
	id, err := getStr(v, "id")
	if err != nil {
		return values.Entity{}, err
	}
	initial, err := getStr(v, "initial")
	if err != nil {
		return values.Entity{}, err
	}
	entity := values.Entity{Id: id, Initial: initial}
	if states, ok := obj["states"].([]any); ok {
		for _, s := range states {
			if name, ok := s.(string); ok {
				entity.States = append(entity.States, name)
			}
		}
	}
	if transitions, ok := obj["transitions"].([]any); ok {
		for _, t := range transitions {
			from, err := getStr(t, "from")
			if err != nil {
				return values.Entity{}, err
			}
			to, err := getStr(t, "to")
			if err != nil {
				return values.Entity{}, err
			}
			entity.Transitions = append(entity.Transitions, values.Transition{From: from, To: to})
		}
	}
	return entity, nil
}

func parseRule(v any) (values.Rule, *values.EvalError) {
	obj := v.(map[string]any)
	id, err := getStr(v, "id")
	if err != nil {
		return values.Rule{}, err
	}
	stratum, _ := getInt(obj["stratum"])
	body, ok := obj["body"].(map[string]any)
	if !ok {
		return values.Rule{}, values.DeserializeError("Rule '%s' missing 'body'", id)
	}
	when, ok := body["when"]
	if !ok {
		return values.Rule{}, values.DeserializeError("Rule '%s' body missing 'when'", id)
	}
	condition, err := ParsePredicate(when)
	if err != nil {
		return values.Rule{}, err
	}
	produceObj, ok := body["produce"]
	if !ok {
		return values.Rule{}, values.DeserializeError("Rule '%s' body missing 'produce'", id)
	}
	produce, err := parseProduce(produceObj)
	if err != nil {
		return values.Rule{}, err
	}
	return values.Rule{Id: id, Stratum: int(stratum), Condition: condition, Produce: produce}, nil
}

func parseProduce(v any) (values.ProduceClause, *values.EvalError) {
	verdictType, err := getStr(v, "verdict_type")
	if err != nil {
		return values.ProduceClause{}, err
	}
	obj := v.(map[string]any)
	payload, ok := obj["payload"].(map[string]any)
	if !ok {
		return values.ProduceClause{}, values.DeserializeError("produce clause missing 'payload'")
	}
	typeVal, ok := payload["type"]
	if !ok {
		return values.ProduceClause{}, values.DeserializeError("produce payload missing 'type'")
	}
	payloadType, err := values.TypeSpecFromJSON(typeVal)
	if err != nil {
		return values.ProduceClause{}, err
	}
	value, ok := payload["value"]
	if !ok {
		return values.ProduceClause{}, values.DeserializeError("produce payload missing 'value'")
	}

	var payloadValue values.PayloadValue
	if valObj, ok := value.(map[string]any); ok && valObj["op"] == "*" {
		left, present := valObj["left"]
		if !present {
			return values.ProduceClause{}, values.DeserializeError("multiplication missing 'left'")
		}
		factRef, err := getStr(left, "fact_ref")
		if err != nil {
			return values.ProduceClause{}, err
		}
		literal, ok := getInt(valObj["literal"])
		if !ok {
			return values.ProduceClause{}, values.DeserializeError("multiplication missing 'literal'")
		}
		rt, present := valObj["result_type"]
		if !present {
			return values.ProduceClause{}, values.DeserializeError("multiplication missing 'result_type'")
		}
		resultType, err := values.TypeSpecFromJSON(rt)
		if err != nil {
			return values.ProduceClause{}, err
		}
		payloadValue = values.PayloadMul{FactRef: factRef, Literal: literal, ResultType: resultType}
	} else {
		lit, err := values.ParseLiteralValue(value, payloadType)
		if err != nil {
			return values.ProduceClause{}, err
		}
		payloadValue = values.PayloadLiteral{Value: lit}
	}

	return values.ProduceClause{
		VerdictType:  verdictType,
		PayloadType:  payloadType,
		PayloadValue: payloadValue,
	}, nil
}

// ParsePredicate decodes a predicate expression from interchange JSON.
// The op dispatch runs before the literal check because multiplication
// nodes carry both "op" and "literal" fields.
func ParsePredicate(v any) (values.Predicate, *values.EvalError) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, values.DeserializeError("unrecognized predicate expression: %v", v)
	}

	if vp, present := obj["verdict_present"]; present {
		id, ok := vp.(string)
		if !ok {
			return nil, values.DeserializeError("verdict_present must be a string")
		}
		return values.VerdictPresent{Id: id}, nil
	}

	if fr, present := obj["fact_ref"]; present {
		id, ok := fr.(string)
		if !ok {
			return nil, values.DeserializeError("fact_ref must be a string")
		}
		return values.FactRef{Id: id}, nil
	}

	if fr, present := obj["field_ref"]; present {
		varName, err := getStr(fr, "var")
		if err != nil {
			return nil, err
		}
		field, err := getStr(fr, "field")
		if err != nil {
			return nil, err
		}
		return values.FieldRef{Var: varName, Field: field}, nil
	}

	if opVal, present := obj["op"]; present {
		op, ok := opVal.(string)
		if !ok {
			return nil, values.DeserializeError("'op' must be a string")
		}
		switch op {
		case "and", "or":
			left, err := parseSide(obj, "left", op)
			if err != nil {
				return nil, err
			}
			right, err := parseSide(obj, "right", op)
			if err != nil {
				return nil, err
			}
			if op == "and" {
				return values.And{Left: left, Right: right}, nil
			}
			return values.Or{Left: left, Right: right}, nil
		case "not":
			operandVal, present := obj["operand"]
			if !present {
				return nil, values.DeserializeError("not missing 'operand'")
			}
			operand, err := ParsePredicate(operandVal)
			if err != nil {
				return nil, err
			}
			return values.Not{Operand: operand}, nil
		case "*":
			left, err := parseSide(obj, "left", "mul")
			if err != nil {
				return nil, err
			}
			literal, ok := getInt(obj["literal"])
			if !ok {
				return nil, values.DeserializeError("mul missing 'literal'")
			}
			rt, present := obj["result_type"]
			if !present {
				return nil, values.DeserializeError("mul missing 'result_type'")
			}
			resultType, err := values.TypeSpecFromJSON(rt)
			if err != nil {
				return nil, err
			}
			return values.Mul{Left: left, Literal: literal, ResultType: resultType}, nil
		case "=", "!=", "<", "<=", ">", ">=":
			left, err := parseSide(obj, "left", "compare")
			if err != nil {
				return nil, err
			}
			right, err := parseSide(obj, "right", "compare")
			if err != nil {
				return nil, err
			}
			cmp := values.Compare{Left: left, Op: op, Right: right}
			if ct, present := obj["comparison_type"]; present {
				spec, err := values.TypeSpecFromJSON(ct)
				if err != nil {
					return nil, err
				}
				cmp.ComparisonType = &spec
			}
			return cmp, nil
		}
		return nil, values.DeserializeError("unknown operator: %s", op)
	}

	if litVal, present := obj["literal"]; present {
		if typeVal, hasType := obj["type"]; hasType {
			ts, err := values.TypeSpecFromJSON(typeVal)
			if err != nil {
				return nil, err
			}
			val, err := values.ParseLiteralValue(litVal, ts)
			if err != nil {
				return nil, err
			}
			return values.Literal{Value: val, Type: ts}, nil
		}
		// Untyped literal nodes (text comparisons) infer from the JSON shape.
		val, ts, err := values.InferLiteral(litVal)
		if err != nil {
			return nil, err
		}
		return values.Literal{Value: val, Type: ts}, nil
	}

	if q, ok := obj["quantifier"].(string); ok && (q == "forall" || q == "exists") {
		variable, err := getStr(v, "variable")
		if err != nil {
			return nil, err
		}
		vt, present := obj["variable_type"]
		if !present {
			return nil, values.DeserializeError("%s missing 'variable_type'", q)
		}
		variableType, err := values.TypeSpecFromJSON(vt)
		if err != nil {
			return nil, err
		}
		domainVal, present := obj["domain"]
		if !present {
			return nil, values.DeserializeError("%s missing 'domain'", q)
		}
		domain, err := ParsePredicate(domainVal)
		if err != nil {
			return nil, err
		}
		bodyVal, present := obj["body"]
		if !present {
			return nil, values.DeserializeError("%s missing 'body'", q)
		}
		body, err := ParsePredicate(bodyVal)
		if err != nil {
			return nil, err
		}
		if q == "forall" {
			return values.Forall{Variable: variable, VariableType: variableType, Domain: domain, Body: body}, nil
		}
		return values.Exists{Variable: variable, VariableType: variableType, Domain: domain, Body: body}, nil
	}

	return nil, values.DeserializeError("unrecognized predicate expression: %v", v)
}

func parseSide(obj map[string]any, side, what string) (values.Predicate, *values.EvalError) {
	v, present := obj[side]
	if !present {
		return nil, values.DeserializeError("%s missing '%s'", what, side)
	}
	return ParsePredicate(v)
}

func parseOperation(v any) (values.Operation, *values.EvalError) {
	obj := v.(map[string]any)
	id, err := getStr(v, "id")
	if err != nil {
		return values.Operation{}, err
	}
	op := values.Operation{Id: id}
	if personas, ok := obj["allowed_personas"].([]any); ok {
		for _, p := range personas {
			if s, ok := p.(string); ok {
				op.AllowedPersonas = append(op.AllowedPersonas, s)
			}
		}
	}
	// A null precondition means the operation is always permitted.
	if pre, present := obj["precondition"]; present && pre != nil {
		cond, err := ParsePredicate(pre)
		if err != nil {
			return values.Operation{}, err
		}
		op.Precondition = cond
	} else {
		op.Precondition = values.Literal{Value: values.TRUE, Type: values.BaseSpec("Bool")}
	}
	if effects, ok := obj["effects"].([]any); ok {
		for _, e := range effects {
			entityId, err := getStr(e, "entity_id")
			if err != nil {
				return values.Operation{}, err
			}
			from, err := getStr(e, "from")
			if err != nil {
				return values.Operation{}, err
			}
			to, err := getStr(e, "to")
			if err != nil {
				return values.Operation{}, err
			}
			effect := values.Effect{EntityId: entityId, From: from, To: to}
			if eObj, ok := e.(map[string]any); ok {
				if outcome, ok := eObj["outcome"].(string); ok {
					effect.Outcome = outcome
				}
			}
			op.Effects = append(op.Effects, effect)
		}
	}
	if ec, ok := obj["error_contract"].([]any); ok {
		for _, e := range ec {
			if s, ok := e.(string); ok {
				op.ErrorContract = append(op.ErrorContract, s)
			}
		}
	}
	if outcomes, ok := obj["outcomes"].([]any); ok {
		for _, o := range outcomes {
			if s, ok := o.(string); ok {
				op.Outcomes = append(op.Outcomes, s)
			}
		}
	}
	return op, nil
}

func parseFlow(v any) (values.Flow, *values.EvalError) {
	obj := v.(map[string]any)
	id, err := getStr(v, "id")
	if err != nil {
		return values.Flow{}, err
	}
	snapshot, err := getStr(v, "snapshot")
	if err != nil {
		return values.Flow{}, err
	}
	entry, err := getStr(v, "entry")
	if err != nil {
		return values.Flow{}, err
	}
	flow := values.Flow{Id: id, Snapshot: snapshot, Entry: entry}
	if steps, ok := obj["steps"].([]any); ok {
		for _, s := range steps {
			step, err := parseFlowStep(s)
			if err != nil {
				return values.Flow{}, err
			}
			flow.Steps = append(flow.Steps, step)
		}
	}
	return flow, nil
}

func parseFlowStep(v any) (values.FlowStep, *values.EvalError) {
	kind, err := getStr(v, "kind")
	if err != nil {
		return nil, err
	}
	obj := v.(map[string]any)
	id, err := getStr(v, "id")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "OperationStep":
		op, err := getStr(v, "op")
		if err != nil {
			return nil, err
		}
		persona, err := getStr(v, "persona")
		if err != nil {
			return nil, err
		}
		outcomesObj, ok := obj["outcomes"].(map[string]any)
		if !ok {
			return nil, values.DeserializeError("OperationStep missing 'outcomes'")
		}
		outcomes := make(map[string]values.StepTarget, len(outcomesObj))
		for label, targetVal := range outcomesObj {
			target, err := parseStepTarget(targetVal)
			if err != nil {
				return nil, err
			}
			outcomes[label] = target
		}
		onFailure, err := parseHandler(obj, "OperationStep")
		if err != nil {
			return nil, err
		}
		return values.OperationStep{Id: id, Op: op, Persona: persona, Outcomes: outcomes, OnFailure: onFailure}, nil
	case "BranchStep":
		persona, err := getStr(v, "persona")
		if err != nil {
			return nil, err
		}
		condVal, present := obj["condition"]
		if !present {
			return nil, values.DeserializeError("BranchStep missing 'condition'")
		}
		condition, err := ParsePredicate(condVal)
		if err != nil {
			return nil, err
		}
		ifTrue, err := parseTargetField(obj, "if_true", "BranchStep")
		if err != nil {
			return nil, err
		}
		ifFalse, err := parseTargetField(obj, "if_false", "BranchStep")
		if err != nil {
			return nil, err
		}
		return values.BranchStep{Id: id, Condition: condition, Persona: persona, IfTrue: ifTrue, IfFalse: ifFalse}, nil
	case "HandoffStep":
		fromPersona, err := getStr(v, "from_persona")
		if err != nil {
			return nil, err
		}
		toPersona, err := getStr(v, "to_persona")
		if err != nil {
			return nil, err
		}
		next, err := getStr(v, "next")
		if err != nil {
			return nil, err
		}
		return values.HandoffStep{Id: id, FromPersona: fromPersona, ToPersona: toPersona, Next: next}, nil
	case "SubFlowStep":
		flowId, err := getStr(v, "flow")
		if err != nil {
			return nil, err
		}
		persona, err := getStr(v, "persona")
		if err != nil {
			return nil, err
		}
		onSuccess, err := parseTargetField(obj, "on_success", "SubFlowStep")
		if err != nil {
			return nil, err
		}
		onFailure, err := parseHandler(obj, "SubFlowStep")
		if err != nil {
			return nil, err
		}
		return values.SubFlowStep{Id: id, Flow: flowId, Persona: persona, OnSuccess: onSuccess, OnFailure: onFailure}, nil
	case "ParallelStep":
		branchesArr, ok := obj["branches"].([]any)
		if !ok {
			return nil, values.DeserializeError("ParallelStep missing 'branches'")
		}
		branches := make([]values.ParallelBranch, 0, len(branchesArr))
		for _, b := range branchesArr {
			bid, err := getStr(b, "id")
			if err != nil {
				return nil, err
			}
			entry, err := getStr(b, "entry")
			if err != nil {
				return nil, err
			}
			branch := values.ParallelBranch{Id: bid, Entry: entry}
			if bObj, ok := b.(map[string]any); ok {
				if steps, ok := bObj["steps"].([]any); ok {
					for _, s := range steps {
						step, err := parseFlowStep(s)
						if err != nil {
							return nil, err
						}
						branch.Steps = append(branch.Steps, step)
					}
				}
			}
			branches = append(branches, branch)
		}
		joinObj, ok := obj["join"].(map[string]any)
		if !ok {
			return nil, values.DeserializeError("ParallelStep missing 'join'")
		}
		var join values.JoinPolicy
		if t, present := joinObj["on_all_success"]; present {
			target, err := parseStepTarget(t)
			if err != nil {
				return nil, err
			}
			join.OnAllSuccess = target
		}
		if f, present := joinObj["on_any_failure"]; present {
			handler, err := parseFailureHandler(f)
			if err != nil {
				return nil, err
			}
			join.OnAnyFailure = handler
		}
		if t, present := joinObj["on_all_complete"]; present {
			target, err := parseStepTarget(t)
			if err != nil {
				return nil, err
			}
			join.OnAllComplete = target
		}
		return values.ParallelStep{Id: id, Branches: branches, Join: join}, nil
	}
	return nil, values.DeserializeError("unknown step kind: %s", kind)
}

func parseHandler(obj map[string]any, stepKind string) (values.FailureHandler, *values.EvalError) {
	h, present := obj["on_failure"]
	if !present {
		return nil, values.DeserializeError("%s missing 'on_failure'", stepKind)
	}
	return parseFailureHandler(h)
}

func parseTargetField(obj map[string]any, field, stepKind string) (values.StepTarget, *values.EvalError) {
	t, present := obj[field]
	if !present {
		return nil, values.DeserializeError("%s missing '%s'", stepKind, field)
	}
	return parseStepTarget(t)
}

func parseStepTarget(v any) (values.StepTarget, *values.EvalError) {
	if s, ok := v.(string); ok {
		return values.StepRef{Step: s}, nil
	}
	if _, ok := v.(map[string]any); ok {
		outcome, err := getStr(v, "outcome")
		if err != nil {
			return nil, err
		}
		return values.Terminal{Outcome: outcome}, nil
	}
	return nil, values.DeserializeError("invalid step target")
}

func parseFailureHandler(v any) (values.FailureHandler, *values.EvalError) {
	kind, err := getStr(v, "kind")
	if err != nil {
		return nil, err
	}
	obj := v.(map[string]any)
	switch kind {
	case "Terminate":
		outcome, err := getStr(v, "outcome")
		if err != nil {
			return nil, err
		}
		return values.Terminate{Outcome: outcome}, nil
	case "Compensate":
		stepsArr, ok := obj["steps"].([]any)
		if !ok {
			return nil, values.DeserializeError("Compensate handler missing 'steps'")
		}
		steps := make([]values.CompStep, 0, len(stepsArr))
		for _, s := range stepsArr {
			op, err := getStr(s, "op")
			if err != nil {
				return nil, err
			}
			persona, err := getStr(s, "persona")
			if err != nil {
				return nil, err
			}
			sObj, _ := s.(map[string]any)
			onFailure, err := parseTargetField(sObj, "on_failure", "CompensationStep")
			if err != nil {
				return nil, err
			}
			steps = append(steps, values.CompStep{Op: op, Persona: persona, OnFailure: onFailure})
		}
		then, err := parseTargetField(obj, "then", "Compensate handler")
		if err != nil {
			return nil, err
		}
		return values.Compensate{Steps: steps, Then: then}, nil
	case "Escalate":
		toPersona, err := getStr(v, "to_persona")
		if err != nil {
			return nil, err
		}
		next, err := getStr(v, "next")
		if err != nil {
			return nil, err
		}
		return values.Escalate{ToPersona: toPersona, Next: next}, nil
	}
	return nil, values.DeserializeError("unknown failure handler kind: %s", kind)
}
