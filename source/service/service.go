// Package service is the seam between the elaborator and evaluator on
// one side and the hub, HTTP server, and storage on the other. It holds
// a registry of elaborated contracts keyed by bundle id, and every
// outer surface goes through it rather than touching the passes
// directly.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/evaluator"
	"github.com/tenorlang/tenor/source/initializer"
	"github.com/tenorlang/tenor/source/interchange"
	"github.com/tenorlang/tenor/source/storage"
	"github.com/tenorlang/tenor/source/values"
)

// A LoadedContract pairs an elaborated bundle with its decoded runtime
// form. The bundle bytes are kept as elaborated so they can be served
// back byte-identical.
type LoadedContract struct {
	Id      string
	Bundle  []byte
	Runtime *values.Contract
}

// OperationInfo is what the outer surfaces list for one operation.
type OperationInfo struct {
	Id       string   `json:"id"`
	Personas []string `json:"personas"`
	Outcomes []string `json:"outcomes"`
}

// FlowInfo is what the outer surfaces list for one flow.
type FlowInfo struct {
	Id    string `json:"id"`
	Entry string `json:"entry"`
	Steps int    `json:"steps"`
}

// A Service holds the loaded contracts and, when one is configured, the
// store that flow runs are persisted to. All methods are safe for
// concurrent use.
type Service struct {
	mu        sync.RWMutex
	contracts map[string]*LoadedContract
	store     *storage.Store
}

func NewService() *Service {
	return &Service{contracts: make(map[string]*LoadedContract)}
}

// SetStore attaches a store; flow runs recorded through
// RecordFlowExecution land there.
func (sv *Service) SetStore(st *storage.Store) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.store = st
}

// Store returns the attached store, or nil when the service runs
// without persistence.
func (sv *Service) Store() *storage.Store {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return sv.store
}

// LoadFile elaborates a source file from disk and registers the result.
func (sv *Service) LoadFile(path string) (*LoadedContract, *err.Error) {
	bundle, e := initializer.Elaborate(path)
	if e != nil {
		return nil, e
	}
	return sv.register(bundle)
}

// LoadSource elaborates source text with parse-error recovery, so a
// caller posting a broken contract gets every parse error back, not
// just the first.
func (sv *Service) LoadSource(filename, source string) (*LoadedContract, err.Errors) {
	bundle, errs := initializer.ElaborateSourceRecovering(filename, source)
	if len(errs) > 0 {
		return nil, errs
	}
	lc, e := sv.register(bundle)
	if e != nil {
		return nil, err.Errors{e}
	}
	return lc, nil
}

// LoadBundle registers an already-elaborated bundle.
func (sv *Service) LoadBundle(bundle []byte) (*LoadedContract, *err.Error) {
	return sv.register(bundle)
}

func (sv *Service) register(bundle []byte) (*LoadedContract, *err.Error) {
	runtime, evalErr := interchange.Deserialize(bundle)
	if evalErr != nil {
		return nil, err.CreateErr("eval/bundle", 0, "", 0, evalErr.Message)
	}
	var header struct {
		Id string `json:"id"`
	}
	if jsonErr := json.Unmarshal(bundle, &header); jsonErr != nil || header.Id == "" {
		return nil, err.CreateErr("eval/bundle", 0, "", 0, "bundle has no id")
	}
	lc := &LoadedContract{Id: header.Id, Bundle: bundle, Runtime: runtime}
	sv.mu.Lock()
	sv.contracts[header.Id] = lc
	sv.mu.Unlock()
	return lc, nil
}

// Get finds a loaded contract by id.
func (sv *Service) Get(id string) (*LoadedContract, bool) {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	lc, ok := sv.contracts[id]
	return lc, ok
}

// Unload removes a contract from the registry.
func (sv *Service) Unload(id string) bool {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	_, ok := sv.contracts[id]
	delete(sv.contracts, id)
	return ok
}

// Ids lists the loaded contract ids in ascending order.
func (sv *Service) Ids() []string {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	ids := make([]string, 0, len(sv.contracts))
	for id := range sv.contracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Operations lists the operations of one contract with their personas
// and declared outcomes.
func (sv *Service) Operations(contractId string) ([]OperationInfo, error) {
	lc, ok := sv.Get(contractId)
	if !ok {
		return nil, fmt.Errorf("contract '%s' not loaded", contractId)
	}
	infos := make([]OperationInfo, 0, len(lc.Runtime.Operations))
	for _, op := range lc.Runtime.Operations {
		personas := op.AllowedPersonas
		if personas == nil {
			personas = []string{}
		}
		outcomes := op.Outcomes
		if outcomes == nil {
			outcomes = []string{}
		}
		infos = append(infos, OperationInfo{Id: op.Id, Personas: personas, Outcomes: outcomes})
	}
	return infos, nil
}

// Flows lists the flows of one contract.
func (sv *Service) Flows(contractId string) ([]FlowInfo, error) {
	lc, ok := sv.Get(contractId)
	if !ok {
		return nil, fmt.Errorf("contract '%s' not loaded", contractId)
	}
	infos := make([]FlowInfo, 0, len(lc.Runtime.Flows))
	for _, f := range lc.Runtime.Flows {
		infos = append(infos, FlowInfo{Id: f.Id, Entry: f.Entry, Steps: len(f.Steps)})
	}
	return infos, nil
}

// EvaluateRules assembles the facts and runs the stratified rules of
// one contract.
func (sv *Service) EvaluateRules(contractId string, factsJSON any) (*evaluator.EvalResult, *values.EvalError) {
	lc, ok := sv.Get(contractId)
	if !ok {
		return nil, values.DeserializeError("contract '%s' not loaded", contractId)
	}
	return evaluator.Evaluate(lc.Runtime, factsJSON)
}

// ExecuteFlow evaluates the rules and then runs one flow against the
// frozen results.
func (sv *Service) ExecuteFlow(contractId string, factsJSON any, flowId, persona string) (*evaluator.FlowEvalResult, *values.EvalError) {
	lc, ok := sv.Get(contractId)
	if !ok {
		return nil, values.DeserializeError("contract '%s' not loaded", contractId)
	}
	return evaluator.EvaluateFlow(lc.Runtime, factsJSON, flowId, persona)
}

// RecordFlowExecution persists one flow run with its frozen snapshot
// and the provenance of the verdicts it was frozen with, returning the
// execution row's id. Without an attached store it is a no-op.
func (sv *Service) RecordFlowExecution(ctx context.Context, contractId, flowId string,
	result *evaluator.FlowEvalResult) (string, error) {

	st := sv.Store()
	if st == nil {
		return "", nil
	}
	id, dbErr := st.RecordFlow(ctx, contractId, flowId, result.Snapshot, result.FlowResult)
	if dbErr != nil {
		return "", dbErr
	}
	if dbErr := st.RecordProvenance(ctx, contractId, result.Verdicts); dbErr != nil {
		return "", dbErr
	}
	return id, nil
}

// Explain evaluates the rules and renders the verdicts with their
// provenance as JSON.
func (sv *Service) Explain(contractId string, factsJSON any) (map[string]any, *values.EvalError) {
	result, evalErr := sv.EvaluateRules(contractId, factsJSON)
	if evalErr != nil {
		return nil, evalErr
	}
	return result.Verdicts.ToJSON(), nil
}

// ParseFacts decodes a facts document, preserving number precision.
func ParseFacts(data []byte) (any, error) {
	var facts any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if decodeErr := dec.Decode(&facts); decodeErr != nil {
		return nil, fmt.Errorf("invalid facts JSON: %w", decodeErr)
	}
	return facts, nil
}
