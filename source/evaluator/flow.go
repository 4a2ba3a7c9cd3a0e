package evaluator

import (
	"fmt"
	"strings"

	"github.com/tenorlang/tenor/source/settings"
	"github.com/tenorlang/tenor/source/values"
)

// A Snapshot is the immutable pair of facts and verdicts taken at flow
// initiation. It is never recomputed while the flow runs: entity state
// changes go to the mutable EntityStateMap, but every predicate a flow
// step evaluates sees the world as it was when the flow began. Sub-flows
// inherit the parent's snapshot.
type Snapshot struct {
	Facts    *values.FactSet
	Verdicts *values.VerdictSet
}

// A StepRecord is one executed step in a flow trace. InstanceBindings
// maps entity id to the instance targeted at this step; it is empty for
// branch and handoff steps.
type StepRecord struct {
	StepId           string
	StepType         string
	Result           string
	InstanceBindings InstanceBindingMap
}

// A FlowResult is a completed flow run. InitiatingPersona is recorded
// for provenance; per-step persona authorization happens at the
// operation level.
type FlowResult struct {
	Outcome            string
	StepsExecuted      []StepRecord
	EntityStateChanges []EffectRecord
	InitiatingPersona  string
}

// A FlowEvalResult pairs the verdicts computed at initiation with the
// flow run they were frozen for. Snapshot is the frozen pair itself,
// kept so hosts can persist exactly what the run saw.
type FlowEvalResult struct {
	Verdicts   *values.VerdictSet
	Snapshot   *Snapshot
	FlowResult *FlowResult
}

// branchOutcome is what one parallel branch came back with.
type branchOutcome struct {
	branchId      string
	outcome       string
	err           string // non-empty means the branch failed
	entityChanges []EffectRecord
	steps         []StepRecord
}

// resolveBindings narrows the flow-level bindings to the entities an
// operation's effects actually touch.
func resolveBindings(op *values.Operation, bindings InstanceBindingMap) InstanceBindingMap {
	out := make(InstanceBindingMap, len(op.Effects))
	for _, effect := range op.Effects {
		out[effect.EntityId] = ResolveInstanceId(bindings, effect.EntityId)
	}
	return out
}

// flowRun carries the mutable state of one ExecuteFlow call so the step
// handlers don't pass six arguments around.
type flowRun struct {
	flow             *values.Flow
	contract         *values.Contract
	snapshot         *Snapshot
	entityStates     EntityStateMap
	instanceBindings InstanceBindingMap
	stepsExecuted    []StepRecord
	entityChanges    []EffectRecord
}

func (r *flowRun) record(stepId, stepType, result string, bindings InstanceBindingMap) {
	if bindings == nil {
		bindings = InstanceBindingMap{}
	}
	r.stepsExecuted = append(r.stepsExecuted, StepRecord{
		StepId:           stepId,
		StepType:         stepType,
		Result:           result,
		InstanceBindings: bindings,
	})
}

func (r *flowRun) terminal(outcome string) *FlowResult {
	return &FlowResult{
		Outcome:            outcome,
		StepsExecuted:      r.stepsExecuted,
		EntityStateChanges: r.entityChanges,
	}
}

// ExecuteFlow walks a flow as a state machine starting at its entry
// step, evaluating every predicate against the frozen snapshot. The
// instance bindings say which instance of each entity the flow's
// operations act on; an empty map targets the default instance
// throughout. maxSteps <= 0 means the settings default.
func ExecuteFlow(flow *values.Flow, contract *values.Contract, snapshot *Snapshot,
	entityStates EntityStateMap, instanceBindings InstanceBindingMap,
	maxSteps int) (*FlowResult, *values.EvalError) {

	if maxSteps <= 0 {
		maxSteps = settings.MAX_FLOW_STEPS
	}

	stepIndex := make(map[string]values.FlowStep, len(flow.Steps))
	for _, s := range flow.Steps {
		stepIndex[s.StepId()] = s
	}

	run := &flowRun{
		flow:             flow,
		contract:         contract,
		snapshot:         snapshot,
		entityStates:     entityStates,
		instanceBindings: instanceBindings,
	}

	currentStepId := flow.Entry
	stepCount := 0

	for {
		stepCount++
		if stepCount > maxSteps {
			return nil, values.FlowError(flow.Id,
				fmt.Sprintf("exceeded maximum step count (%d)", maxSteps))
		}

		step, ok := stepIndex[currentStepId]
		if !ok {
			return nil, values.DeserializeError(
				"flow step '%s' not found in flow '%s'", currentStepId, flow.Id)
		}

		var result *FlowResult
		var nextStepId string
		var err *values.EvalError

		switch s := step.(type) {
		case values.OperationStep:
			result, nextStepId, err = run.operationStep(s)
		case values.BranchStep:
			result, nextStepId, err = run.branchStep(s)
		case values.HandoffStep:
			run.record(s.Id, "handoff", "handoff", nil)
			nextStepId = s.Next
		case values.SubFlowStep:
			result, nextStepId, err = run.subFlowStep(s)
		case values.ParallelStep:
			result, nextStepId, err = run.parallelStep(s)
		}
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		currentStepId = nextStepId
	}
}

func (r *flowRun) operationStep(s values.OperationStep) (*FlowResult, string, *values.EvalError) {
	operation, ok := r.contract.GetOperation(s.Op)
	if !ok {
		return nil, "", values.DeserializeError("operation '%s' not found in contract", s.Op)
	}

	opBindings := resolveBindings(operation, r.instanceBindings)

	opResult, opErr := ExecuteOperation(operation, s.Persona, r.snapshot.Facts,
		r.snapshot.Verdicts, r.entityStates, opBindings)
	if opErr != nil {
		r.record(s.Id, "operation", fmt.Sprintf("error: %s", opErr), opBindings)
		return r.handleFailure(s.OnFailure, s.Id)
	}

	r.entityChanges = append(r.entityChanges, opResult.EffectsApplied...)
	r.record(s.Id, "operation", opResult.Outcome, opResult.Provenance.InstanceBinding)

	target, ok := s.Outcomes[opResult.Outcome]
	if !ok {
		return nil, "", values.DeserializeError(
			"operation outcome '%s' not handled in step '%s'", opResult.Outcome, s.Id)
	}
	return r.follow(target)
}

func (r *flowRun) branchStep(s values.BranchStep) (*FlowResult, string, *values.EvalError) {
	collector := &values.ProvenanceCollector{}
	taken, err := evalBool(s.Condition, r.snapshot.Facts, r.snapshot.Verdicts,
		NewEvalContext(), collector)
	if err != nil {
		return nil, "", err
	}

	label, target := "false", s.IfFalse
	if taken {
		label, target = "true", s.IfTrue
	}
	r.record(s.Id, "branch", label, nil)
	return r.follow(target)
}

func (r *flowRun) subFlowStep(s values.SubFlowStep) (*FlowResult, string, *values.EvalError) {
	subFlow, ok := r.contract.GetFlow(s.Flow)
	if !ok {
		return nil, "", values.DeserializeError("sub-flow '%s' not found in contract", s.Flow)
	}

	// Sub-flows inherit the parent snapshot and instance bindings.
	subResult, subErr := ExecuteFlow(subFlow, r.contract, r.snapshot,
		r.entityStates, r.instanceBindings, 0)
	if subErr != nil {
		r.record(s.Id, "sub_flow", "error", r.instanceBindings)
		return r.handleFailure(s.OnFailure, s.Id)
	}

	r.entityChanges = append(r.entityChanges, subResult.EntityStateChanges...)
	r.record(s.Id, "sub_flow", subResult.Outcome, r.instanceBindings)
	return r.follow(s.OnSuccess)
}

func (r *flowRun) parallelStep(s values.ParallelStep) (*FlowResult, string, *values.EvalError) {
	// Each branch runs on its own copy of the entity states against the
	// shared frozen snapshot; effect sets are guaranteed non-overlapping
	// by structural validation, so merge-back cannot conflict.
	var outcomes []branchOutcome

	for _, branch := range s.Branches {
		branchStates := r.entityStates.Clone()
		branchFlow := &values.Flow{
			Id:       fmt.Sprintf("%s:%s", r.flow.Id, branch.Id),
			Snapshot: r.flow.Snapshot,
			Entry:    branch.Entry,
			Steps:    branch.Steps,
		}

		branchResult, branchErr := ExecuteFlow(branchFlow, r.contract, r.snapshot,
			branchStates, r.instanceBindings, 0)
		if branchErr != nil {
			outcomes = append(outcomes, branchOutcome{
				branchId: branch.Id,
				err:      branchErr.Message,
			})
			continue
		}
		outcomes = append(outcomes, branchOutcome{
			branchId:      branch.Id,
			outcome:       branchResult.Outcome,
			entityChanges: branchResult.EntityStateChanges,
			steps:         branchResult.StepsExecuted,
		})
	}

	summaries := make([]string, len(outcomes))
	for i, bo := range outcomes {
		if bo.err != "" {
			summaries[i] = fmt.Sprintf("%s:error:%s", bo.branchId, bo.err)
		} else {
			summaries[i] = fmt.Sprintf("%s:%s", bo.branchId, bo.outcome)
		}
	}
	r.record(s.Id, "parallel", strings.Join(summaries, ", "), r.instanceBindings)

	allSuccess, anyFailure := true, false
	for _, bo := range outcomes {
		r.stepsExecuted = append(r.stepsExecuted, bo.steps...)
		if bo.err != "" {
			allSuccess, anyFailure = false, true
		}
	}

	// Merge entity state changes from the successful branches back into
	// the parent's state map.
	for _, bo := range outcomes {
		if bo.err != "" {
			continue
		}
		r.entityChanges = append(r.entityChanges, bo.entityChanges...)
		for _, change := range bo.entityChanges {
			r.entityStates[InstanceKey{change.EntityId, change.InstanceId}] = change.ToState
		}
	}

	if allSuccess && s.Join.OnAllSuccess != nil {
		return r.follow(s.Join.OnAllSuccess)
	}

	if anyFailure && s.Join.OnAnyFailure != nil {
		return r.handleFailure(s.Join.OnAnyFailure, s.Id)
	}

	if s.Join.OnAllComplete != nil {
		return r.follow(s.Join.OnAllComplete)
	}

	return nil, "", values.FlowError(r.flow.Id,
		fmt.Sprintf("parallel step '%s' completed but no join policy matched", s.Id))
}

// follow resolves a step target into either a terminal result or the
// next step id.
func (r *flowRun) follow(target values.StepTarget) (*FlowResult, string, *values.EvalError) {
	switch t := target.(type) {
	case values.StepRef:
		return nil, t.Step, nil
	case values.Terminal:
		return r.terminal(t.Outcome), "", nil
	}
	return nil, "", values.FlowError(r.flow.Id, "step target is neither a ref nor a terminal")
}

// handleFailure runs a failure handler after a step failed. Terminate
// yields a terminal result; Compensate runs its compensation operations
// in order and then routes per its Then target; Escalate records the
// persona transfer and continues at its next step.
func (r *flowRun) handleFailure(handler values.FailureHandler, stepId string) (*FlowResult, string, *values.EvalError) {
	switch h := handler.(type) {
	case values.Terminate:
		return r.terminal(h.Outcome), "", nil

	case values.Compensate:
		for _, compStep := range h.Steps {
			compOp, ok := r.contract.GetOperation(compStep.Op)
			if !ok {
				return nil, "", values.DeserializeError(
					"compensation operation '%s' not found in contract", compStep.Op)
			}

			compBindings := resolveBindings(compOp, r.instanceBindings)
			compResult, compErr := ExecuteOperation(compOp, compStep.Persona,
				r.snapshot.Facts, r.snapshot.Verdicts, r.entityStates, compBindings)
			if compErr != nil {
				r.record("comp:"+compStep.Op, "compensation",
					fmt.Sprintf("error: %s", compErr), nil)
				switch t := compStep.OnFailure.(type) {
				case values.Terminal:
					return r.terminal(t.Outcome), "", nil
				case values.StepRef:
					return nil, "", values.FlowError(stepId, fmt.Sprintf(
						"compensation step '%s' failed, redirecting", compStep.Op))
				}
				continue
			}

			r.entityChanges = append(r.entityChanges, compResult.EffectsApplied...)
			r.record("comp:"+compStep.Op, "compensation", compResult.Outcome,
				compResult.Provenance.InstanceBinding)
		}
		return r.follow(h.Then)

	case values.Escalate:
		r.record(stepId, "escalation", fmt.Sprintf("escalated to %s", h.ToPersona), nil)
		return nil, h.Next, nil
	}

	return nil, "", values.FlowError(r.flow.Id, "step has no failure handler")
}
