package evaluator

import (
	"github.com/tenorlang/tenor/source/values"
)

// EvalStrata evaluates all of a contract's rules in stratum order and
// returns the verdicts produced. Rules in a higher stratum see the
// verdicts of every lower stratum; rules within one stratum are
// independent of each other, so their order doesn't matter.
func EvalStrata(contract *values.Contract, facts *values.FactSet) (*values.VerdictSet, *values.EvalError) {
	verdicts := values.NewVerdictSet()

	if len(contract.Rules) == 0 {
		return verdicts, nil
	}

	maxStratum := 0
	for _, rule := range contract.Rules {
		if rule.Stratum > maxStratum {
			maxStratum = rule.Stratum
		}
	}

	for n := 0; n <= maxStratum; n++ {
		for i := range contract.Rules {
			rule := &contract.Rules[i]
			if rule.Stratum != n {
				continue
			}
			verdict, err := evalRule(rule, facts, verdicts, n)
			if err != nil {
				return nil, err
			}
			if verdict != nil {
				verdicts.Push(*verdict)
			}
		}
	}

	return verdicts, nil
}

// evalRule evaluates one rule, returning nil if its condition is false.
func evalRule(rule *values.Rule, facts *values.FactSet, verdicts *values.VerdictSet,
	stratum int) (*values.VerdictInstance, *values.EvalError) {

	collector := &values.ProvenanceCollector{}
	ctx := NewEvalContext()

	isTrue, err := evalBool(rule.Condition, facts, verdicts, ctx, collector)
	if err != nil {
		return nil, err
	}
	if !isTrue {
		return nil, nil
	}

	payload, err := evalPayload(rule.Produce.PayloadValue, facts, verdicts, ctx, collector)
	if err != nil {
		return nil, err
	}

	return &values.VerdictInstance{
		VerdictType: rule.Produce.VerdictType,
		Payload:     payload,
		Provenance:  collector.IntoProvenance(rule.Id, stratum),
	}, nil
}

func evalPayload(payloadValue values.PayloadValue, facts *values.FactSet,
	verdicts *values.VerdictSet, ctx *EvalContext,
	collector *values.ProvenanceCollector) (values.Value, *values.EvalError) {

	switch pv := payloadValue.(type) {
	case values.PayloadLiteral:
		return pv.Value, nil
	case values.PayloadMul:
		// A payload multiplication is just a Mul predicate over a fact ref.
		pred := values.Mul{
			Left:       values.FactRef{Id: pv.FactRef},
			Literal:    pv.Literal,
			ResultType: pv.ResultType,
		}
		return EvalPred(pred, facts, verdicts, ctx, collector)
	}
	return values.Value{}, values.TypeError("rule has no payload value")
}
