package evaluator

import (
	"github.com/tenorlang/tenor/source/values"
)

// An EvalResult is a rules-only evaluation: the verdicts with their
// provenance.
type EvalResult struct {
	Verdicts *values.VerdictSet
}

// Evaluate assembles facts and runs the rules to a verdict set. This is
// the entry point for rules-only evaluation; use EvaluateFlow when a
// flow should run too.
func Evaluate(contract *values.Contract, factsJSON any) (*EvalResult, *values.EvalError) {
	factSet, err := AssembleFacts(contract, factsJSON)
	if err != nil {
		return nil, err
	}
	verdictSet, err := EvalStrata(contract, factSet)
	if err != nil {
		return nil, err
	}
	return &EvalResult{Verdicts: verdictSet}, nil
}

// EvaluateFlow runs the full pipeline: assemble facts, evaluate the
// rules, freeze the snapshot, put every entity in its initial state,
// and walk the named flow. The persona is recorded on the result for
// provenance; authorization happens per operation step.
func EvaluateFlow(contract *values.Contract, factsJSON any, flowId string,
	persona string) (*FlowEvalResult, *values.EvalError) {

	factSet, err := AssembleFacts(contract, factsJSON)
	if err != nil {
		return nil, err
	}
	verdictSet, err := EvalStrata(contract, factSet)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{Facts: factSet, Verdicts: verdictSet}
	entityStates := InitEntityStates(contract)

	targetFlow, ok := contract.GetFlow(flowId)
	if !ok {
		return nil, values.DeserializeError("flow '%s' not found in contract", flowId)
	}

	flowResult, err := ExecuteFlow(targetFlow, contract, snapshot, entityStates, nil, 0)
	if err != nil {
		return nil, err
	}
	flowResult.InitiatingPersona = persona

	return &FlowEvalResult{Verdicts: verdictSet, Snapshot: snapshot, FlowResult: flowResult}, nil
}
