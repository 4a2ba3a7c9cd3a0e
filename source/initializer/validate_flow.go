package initializer

import (
	"fmt"
	"strings"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/set"
)

// ── Flow ──────────────────────────────────────────────────────────────────────

func validateFlow(flow ast.Flow, idx *Index) *err.Error {
	if _, ok := flow.Steps[flow.Entry]; !ok {
		return err.CreateErr("validate/flow/entry", 5, flow.Prov.File, flow.EntryLine,
			flow.Entry).On("Flow", flow.Id).At("entry")
	}

	for _, stepId := range ast.SortedKeys(flow.Steps) {
		if op, ok := flow.Steps[stepId].(ast.OperationStep); ok && op.OnFailure == nil {
			return err.CreateErr("validate/flow/handler", 5, flow.Prov.File, op.Line,
				stepId).On("Flow", flow.Id).At(fmt.Sprintf("steps.%s.on_failure", stepId))
		}
	}

	for _, stepId := range ast.SortedKeys(flow.Steps) {
		switch step := flow.Steps[stepId].(type) {
		case ast.OperationStep:
			if e := checkOutcomeRouting(flow, stepId, step, idx); e != nil {
				return e
			}
			for _, label := range ast.SortedKeys(step.Outcomes) {
				if ref, ok := step.Outcomes[label].(ast.StepRef); ok {
					if _, declared := flow.Steps[ref.Name]; !declared {
						return err.CreateErr("validate/flow/step", 5, flow.Prov.File, ref.Line,
							ref.Name).On("Flow", flow.Id).
							At(fmt.Sprintf("steps.%s.outcomes.%s", stepId, label))
					}
				}
			}
		case ast.ParallelStep:
			for _, branch := range step.Branches {
				for _, branchStepId := range ast.SortedKeys(branch.Steps) {
					if op, ok := branch.Steps[branchStepId].(ast.OperationStep); ok {
						if e := checkOutcomeRouting(flow, branchStepId, op, idx); e != nil {
							return e
						}
					}
				}
			}
		case ast.BranchStep:
			if e := checkStepTarget(flow, stepId, "if_true", step.IfTrue); e != nil {
				return e
			}
			if e := checkStepTarget(flow, stepId, "if_false", step.IfFalse); e != nil {
				return e
			}
		case ast.HandoffStep:
			if _, declared := flow.Steps[step.Next]; !declared {
				return err.CreateErr("validate/flow/step", 5, flow.Prov.File, step.Line,
					step.Next).On("Flow", flow.Id).At(fmt.Sprintf("steps.%s.next", stepId))
			}
		case ast.SubFlowStep:
			if e := checkStepTarget(flow, stepId, "on_success", step.OnSuccess); e != nil {
				return e
			}
		}
	}

	return detectStepCycle(flow.Id, flow.Steps, flow.Prov)
}

func checkStepTarget(flow ast.Flow, stepId, field string, target ast.RawStepTarget) *err.Error {
	ref, ok := target.(ast.StepRef)
	if !ok {
		return nil
	}
	if _, declared := flow.Steps[ref.Name]; !declared {
		return err.CreateErr("validate/flow/step", 5, flow.Prov.File, ref.Line,
			ref.Name).On("Flow", flow.Id).At(fmt.Sprintf("steps.%s.%s", stepId, field))
	}
	return nil
}

// An OperationStep invoking an operation with declared outcomes must
// route every one of them and nothing else, so a routing gap is caught
// here rather than mid-execution.
func checkOutcomeRouting(flow ast.Flow, stepId string, step ast.OperationStep, idx *Index) *err.Error {
	declared := idx.OperationOutcomes[step.Op]
	if len(declared) == 0 {
		return nil
	}
	declaredSet := set.Set[string]{}
	for _, label := range declared {
		declaredSet.Add(label)
	}
	for _, label := range ast.SortedKeys(step.Outcomes) {
		if !declaredSet.Contains(label) {
			return err.CreateErr("validate/flow/outcome/b", 5, flow.Prov.File, step.Line,
				label, step.Op, strings.Join(declared, ", ")).On("Flow", flow.Id).
				At(fmt.Sprintf("steps.%s.outcomes.%s", stepId, label))
		}
	}
	for _, label := range declared {
		if _, routed := step.Outcomes[label]; !routed {
			return err.CreateErr("validate/flow/outcome/a", 5, flow.Prov.File, step.Line,
				step.Op, label).On("Flow", flow.Id).
				At(fmt.Sprintf("steps.%s.outcomes", stepId))
		}
	}
	return nil
}

func stepNeighbors(step ast.RawStep) []string {
	var neighbors []string
	switch step := step.(type) {
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
	return neighbors
}

// Kahn's algorithm over the step graph. Any step left unprocessed sits on a
// cycle.
func detectStepCycle(flowId string, steps map[string]ast.RawStep, prov ast.Provenance) *err.Error {
	adj := map[string][]string{}
	inDegree := map[string]int{}
	for _, sid := range ast.SortedKeys(steps) {
		adj[sid] = stepNeighbors(steps[sid])
		inDegree[sid] = 0
	}
	for _, sid := range ast.SortedKeys(adj) {
		for _, n := range adj[sid] {
			inDegree[n]++
		}
	}

	var queue []string
	for _, sid := range ast.SortedKeys(inDegree) {
		if inDegree[sid] == 0 {
			queue = append(queue, sid)
		}
	}
	processed := set.Set[string]{}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		processed.Add(node)
		for _, neighbor := range adj[node] {
			if _, ok := inDegree[neighbor]; !ok {
				return err.CreateErr("validate/flow/internal/a", 5, prov.File, prov.Line,
					neighbor).On("Flow", flowId).At("steps")
			}
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(processed) < len(steps) {
		var cyclic []string
		for _, sid := range ast.SortedKeys(steps) {
			if !processed.Contains(sid) {
				cyclic = append(cyclic, sid)
			}
		}
		reportLine := prov.Line
		if len(cyclic) > 0 {
			reportLine = steps[cyclic[0]].GetLine()
		}
		return err.CreateErr("validate/flow/cycle", 5, prov.File, reportLine,
			strings.Join(cyclic, ", ")).On("Flow", flowId).At("steps")
	}
	return nil
}

// ── Flow reference graph ──────────────────────────────────────────────────────

type flowEntry struct {
	prov  ast.Provenance
	steps map[string]ast.RawStep
}

// Flows invoking each other through SubFlowSteps must not form a cycle.
func validateFlowReferenceGraph(constructs []ast.RawConstruct) *err.Error {
	flows := map[string]flowEntry{}
	for _, c := range constructs {
		if f, ok := c.(ast.Flow); ok {
			flows[f.Id] = flowEntry{prov: f.Prov, steps: f.Steps}
		}
	}

	visited := set.Set[string]{}
	inPath := set.Set[string]{}
	var path []string
	for _, fid := range ast.SortedKeys(flows) {
		if !visited.Contains(fid) {
			if e := dfsFlowRefs(fid, flows, visited, inPath, &path); e != nil {
				return e
			}
		}
	}
	return nil
}

type subFlowRef struct {
	stepId   string
	flowLine int
	flow     string
}

func collectSubFlowRefs(step ast.RawStep, stepId string, out *[]subFlowRef) {
	switch step := step.(type) {
	case ast.SubFlowStep:
		*out = append(*out, subFlowRef{stepId: stepId, flowLine: step.FlowLine, flow: step.Flow})
	case ast.ParallelStep:
		for _, branch := range step.Branches {
			for _, branchStepId := range ast.SortedKeys(branch.Steps) {
				collectSubFlowRefs(branch.Steps[branchStepId], branchStepId, out)
			}
		}
	}
}

func dfsFlowRefs(flowId string, flows map[string]flowEntry, visited, inPath set.Set[string], path *[]string) *err.Error {
	*path = append(*path, flowId)
	inPath.Add(flowId)

	if entry, ok := flows[flowId]; ok {
		var subRefs []subFlowRef
		for _, stepId := range ast.SortedKeys(entry.steps) {
			collectSubFlowRefs(entry.steps[stepId], stepId, &subRefs)
		}
		for _, ref := range subRefs {
			if inPath.Contains(ref.flow) {
				cycleStart := -1
				for i, s := range *path {
					if s == ref.flow {
						cycleStart = i
						break
					}
				}
				if cycleStart < 0 {
					return err.CreateErr("validate/flow/internal/b", 5, entry.prov.File, entry.prov.Line,
						ref.flow).On("Flow", flowId).At("steps")
				}
				cycle := append(append([]string{}, (*path)[cycleStart:]...), ref.flow)
				return err.CreateErr("validate/flow/ref", 5, entry.prov.File, ref.flowLine,
					strings.Join(cycle, " → ")).On("Flow", flowId).
					At(fmt.Sprintf("steps.%s.flow", ref.stepId))
			}
			if _, known := flows[ref.flow]; known && !visited.Contains(ref.flow) {
				if e := dfsFlowRefs(ref.flow, flows, visited, inPath, path); e != nil {
					return e
				}
			}
		}
	}

	inPath.Remove(flowId)
	visited.Add(flowId)
	*path = (*path)[:len(*path)-1]
	return nil
}

// ── Parallel branch conflicts ─────────────────────────────────────────────────

// For each entity a branch affects, the trace is empty for a direct effect or
// names the SubFlowStep chain for a transitive one.
func collectBranchEntityEffects(branch ast.RawBranch, opEntities map[string][]string, flowSteps map[string]map[string]ast.RawStep) map[string]string {
	effects := map[string]string{}
	for _, stepId := range ast.SortedKeys(branch.Steps) {
		switch step := branch.Steps[stepId].(type) {
		case ast.OperationStep:
			for _, entity := range opEntities[step.Op] {
				if _, ok := effects[entity]; !ok {
					effects[entity] = ""
				}
			}
		case ast.SubFlowStep:
			steps, known := flowSteps[step.Flow]
			if !known {
				continue
			}
			for _, subStepId := range ast.SortedKeys(steps) {
				subOp, ok := steps[subStepId].(ast.OperationStep)
				if !ok {
					continue
				}
				for _, entity := range opEntities[subOp.Op] {
					if _, seen := effects[entity]; !seen {
						effects[entity] = fmt.Sprintf("SubFlowStep → %s → %s", step.Flow, subOp.Op)
					}
				}
			}
		}
	}
	return effects
}

func validateParallelConflicts(constructs []ast.RawConstruct) *err.Error {
	opEntities := map[string][]string{}
	for _, c := range constructs {
		if op, ok := c.(ast.Operation); ok {
			entities := make([]string, 0, len(op.Effects))
			for _, effect := range op.Effects {
				entities = append(entities, effect.EntityId)
			}
			opEntities[op.Id] = entities
		}
	}
	flowSteps := map[string]map[string]ast.RawStep{}
	for _, c := range constructs {
		if f, ok := c.(ast.Flow); ok {
			flowSteps[f.Id] = f.Steps
		}
	}

	for _, c := range constructs {
		flow, ok := c.(ast.Flow)
		if !ok {
			continue
		}
		for _, stepId := range ast.SortedKeys(flow.Steps) {
			par, ok := flow.Steps[stepId].(ast.ParallelStep)
			if !ok {
				continue
			}
			type branchFx struct {
				id      string
				effects map[string]string
			}
			branchEffects := make([]branchFx, 0, len(par.Branches))
			for _, b := range par.Branches {
				branchEffects = append(branchEffects, branchFx{
					id:      b.Id,
					effects: collectBranchEntityEffects(b, opEntities, flowSteps),
				})
			}
			for i := 0; i < len(branchEffects); i++ {
				for j := i + 1; j < len(branchEffects); j++ {
					b1, b2 := branchEffects[i], branchEffects[j]
					for _, entity := range ast.SortedKeys(b1.effects) {
						b2Trace, overlap := b2.effects[entity]
						if !overlap {
							continue
						}
						b1Trace := b1.effects[entity]
						if b1Trace == "" && b2Trace == "" {
							return err.CreateErr("validate/flow/parallel/a", 5,
								flow.Prov.File, par.BranchesLine,
								b1.id, b2.id, entity).On("Flow", flow.Id).
								At(fmt.Sprintf("steps.%s.branches", stepId))
						}
						transitiveId, trace := b1.id, b1Trace
						if b1Trace == "" {
							transitiveId, trace = b2.id, b2Trace
						}
						return err.CreateErr("validate/flow/parallel/b", 5,
							flow.Prov.File, par.BranchesLine,
							b1.id, b2.id, entity, transitiveId, trace).On("Flow", flow.Id).
							At(fmt.Sprintf("steps.%s.branches", stepId))
					}
				}
			}
		}
	}
	return nil
}
