package evaluator

import (
	"fmt"

	"github.com/tenorlang/tenor/source/values"
)

// DEFAULT_INSTANCE_ID is the instance id used by single-instance
// contracts, which never name their instances.
const DEFAULT_INSTANCE_ID = "_default"

// An InstanceKey identifies one instance of one entity.
type InstanceKey struct {
	EntityId   string
	InstanceId string
}

// An EntityStateMap holds the current state of every entity instance.
type EntityStateMap map[InstanceKey]string

// An InstanceBindingMap says which instance of each entity an operation
// or flow should act on. Entities absent from the map fall back to
// DEFAULT_INSTANCE_ID.
type InstanceBindingMap map[string]string

// Clone copies an EntityStateMap, as parallel branches must.
func (m EntityStateMap) Clone() EntityStateMap {
	out := make(EntityStateMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SingleInstance lifts a plain entity-to-state map into an EntityStateMap
// on the default instance.
func SingleInstance(states map[string]string) EntityStateMap {
	out := make(EntityStateMap, len(states))
	for entityId, state := range states {
		out[InstanceKey{entityId, DEFAULT_INSTANCE_ID}] = state
	}
	return out
}

// ResolveInstanceId finds the bound instance for an entity, defaulting
// to DEFAULT_INSTANCE_ID when the entity has no binding.
func ResolveInstanceId(bindings InstanceBindingMap, entityId string) string {
	if instanceId, ok := bindings[entityId]; ok {
		return instanceId
	}
	return DEFAULT_INSTANCE_ID
}

// InitEntityStates puts every declared entity into its initial state on
// the default instance.
func InitEntityStates(contract *values.Contract) EntityStateMap {
	out := make(EntityStateMap, len(contract.Entities))
	for _, entity := range contract.Entities {
		out[InstanceKey{entity.Id, DEFAULT_INSTANCE_ID}] = entity.Initial
	}
	return out
}

// An EffectRecord is one entity state transition applied by an operation.
type EffectRecord struct {
	EntityId   string
	InstanceId string
	FromState  string
	ToState    string
}

// OperationProvenance records who ran what and what it did to which
// instances.
type OperationProvenance struct {
	OperationId     string
	Persona         string
	Effects         []EffectRecord
	InstanceBinding InstanceBindingMap
}

// An OperationResult is the outcome of a successful operation execution.
type OperationResult struct {
	Outcome        string
	EffectsApplied []EffectRecord
	Provenance     OperationProvenance
}

// OperationErrorCode discriminates the ways an operation can fail.
type OperationErrorCode int

const (
	PERSONA_REJECTED OperationErrorCode = iota
	PRECONDITION_FAILED
	INVALID_ENTITY_STATE
	ENTITY_NOT_FOUND
	EVALUATION_ERROR
)

// An OperationError is a failed operation execution. The Eval field is
// set only for EVALUATION_ERROR.
type OperationError struct {
	Code    OperationErrorCode
	Message string
	Eval    *values.EvalError
}

func (e *OperationError) Error() string {
	return e.Message
}

func personaRejected(operationId, persona string) *OperationError {
	return &OperationError{Code: PERSONA_REJECTED,
		Message: fmt.Sprintf("persona '%s' not authorized for operation '%s'", persona, operationId)}
}

func preconditionFailed(operationId, conditionDesc string) *OperationError {
	return &OperationError{Code: PRECONDITION_FAILED,
		Message: fmt.Sprintf("precondition failed for operation '%s': %s", operationId, conditionDesc)}
}

func invalidEntityState(entityId, instanceId, expected, actual string) *OperationError {
	return &OperationError{Code: INVALID_ENTITY_STATE,
		Message: fmt.Sprintf("entity '%s' instance '%s' in state '%s', expected '%s'",
			entityId, instanceId, actual, expected)}
}

func entityNotFound(entityId, instanceId string) *OperationError {
	return &OperationError{Code: ENTITY_NOT_FOUND,
		Message: fmt.Sprintf("entity '%s' instance '%s' not found in state map", entityId, instanceId)}
}

func evaluationError(err *values.EvalError) *OperationError {
	return &OperationError{Code: EVALUATION_ERROR,
		Message: fmt.Sprintf("evaluation error: %s", err.Message), Eval: err}
}

// ExecuteOperation runs one operation: persona check, precondition check
// against the given facts and verdicts, then effect application against
// the mutable entity states. Effects are applied in declaration order
// and the map is mutated as they succeed, so a failed effect leaves the
// earlier transitions in place. Durable all-or-nothing application is
// the host's job.
//
// The outcome is the last executed effect's outcome if any effect carries
// one, else the single declared outcome, else "success". A multi-outcome
// operation whose effects carry no outcome at all is a contract error.
func ExecuteOperation(op *values.Operation, persona string, facts *values.FactSet,
	verdicts *values.VerdictSet, entityStates EntityStateMap,
	instanceBindings InstanceBindingMap) (*OperationResult, *OperationError) {

	// Step 1: persona check.
	if !op.Allows(persona) {
		return nil, personaRejected(op.Id, persona)
	}

	// Step 2: precondition check.
	collector := &values.ProvenanceCollector{}
	ctx := NewEvalContext()
	met, evalErr := evalBool(op.Precondition, facts, verdicts, ctx, collector)
	if evalErr != nil {
		return nil, evaluationError(evalErr)
	}
	if !met {
		return nil, preconditionFailed(op.Id, "precondition evaluated to false")
	}

	// Step 3: effect application.
	var effectsApplied []EffectRecord
	outcomeFromEffects := ""

	binding := make(InstanceBindingMap, len(op.Effects))
	for _, effect := range op.Effects {
		instanceId := ResolveInstanceId(instanceBindings, effect.EntityId)
		binding[effect.EntityId] = instanceId
		key := InstanceKey{effect.EntityId, instanceId}
		currentState, ok := entityStates[key]
		if !ok {
			return nil, entityNotFound(effect.EntityId, instanceId)
		}
		if currentState != effect.From {
			return nil, invalidEntityState(effect.EntityId, instanceId, effect.From, currentState)
		}

		entityStates[key] = effect.To
		effectsApplied = append(effectsApplied, EffectRecord{
			EntityId:   effect.EntityId,
			InstanceId: instanceId,
			FromState:  effect.From,
			ToState:    effect.To,
		})

		if effect.Outcome != "" {
			outcomeFromEffects = effect.Outcome
		}
	}

	// Step 4: outcome determination.
	var outcome string
	switch {
	case outcomeFromEffects != "":
		outcome = outcomeFromEffects
	case len(op.Outcomes) == 1:
		outcome = op.Outcomes[0]
	case len(op.Outcomes) > 1:
		return nil, preconditionFailed(op.Id, "multi-outcome operation has no effect-to-outcome mapping")
	default:
		outcome = "success"
	}

	return &OperationResult{
		Outcome:        outcome,
		EffectsApplied: effectsApplied,
		Provenance: OperationProvenance{
			OperationId:     op.Id,
			Persona:         persona,
			Effects:         effectsApplied,
			InstanceBinding: binding,
		},
	}, nil
}
