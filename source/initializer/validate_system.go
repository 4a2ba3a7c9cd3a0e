package initializer

import (
	"sort"
	"strings"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/set"
)

// Structural System constraints checkable from the bundle alone. Cross-contract
// deep validation needs elaborated member contracts and happens when those are
// loaded.
func validateSystem(sys ast.System, constructs []ast.RawConstruct) *err.Error {
	if len(sys.Members) == 0 {
		return err.CreateErr("validate/system/member/a", 5, sys.Prov.File, sys.Prov.Line).
			On("System", sys.Id).At("members")
	}

	memberSet := set.Set[string]{}
	for _, m := range sys.Members {
		if memberSet.Contains(m.Id) {
			return err.CreateErr("validate/system/member/b", 5, sys.Prov.File, sys.Prov.Line,
				m.Id, sys.Id).On("System", sys.Id).At("members")
		}
		memberSet.Add(m.Id)
	}

	// No nested Systems: a member path must not be a file that itself
	// declares a System.
	systemFiles := set.Set[string]{}
	for _, c := range constructs {
		if s, ok := c.(ast.System); ok {
			systemFiles.Add(s.Prov.File)
		}
	}
	for _, m := range sys.Members {
		if systemFiles.Contains(m.Path) {
			return err.CreateErr("validate/system/member/c", 5, sys.Prov.File, sys.Prov.Line,
				m.Id).On("System", sys.Id).At("members")
		}
	}

	for _, binding := range sys.SharedPersonas {
		for _, cid := range binding.Contracts {
			if !memberSet.Contains(cid) {
				return err.CreateErr("validate/system/persona/a", 5, sys.Prov.File, sys.Prov.Line,
					cid, binding.Id).On("System", sys.Id).At("shared_personas")
			}
		}
		if len(binding.Contracts) < 2 {
			return err.CreateErr("validate/system/persona/b", 5, sys.Prov.File, sys.Prov.Line,
				binding.Id, len(binding.Contracts)).On("System", sys.Id).At("shared_personas")
		}
	}

	validOutcomes := set.MakeFromSlice([]string{"success", "failure", "escalation"})

	for _, trigger := range sys.Triggers {
		if !memberSet.Contains(trigger.SourceContract) {
			return err.CreateErr("validate/system/trigger/a", 5, sys.Prov.File, sys.Prov.Line,
				trigger.SourceContract).On("System", sys.Id).At("triggers")
		}
		if !memberSet.Contains(trigger.TargetContract) {
			return err.CreateErr("validate/system/trigger/b", 5, sys.Prov.File, sys.Prov.Line,
				trigger.TargetContract).On("System", sys.Id).At("triggers")
		}
		if !validOutcomes.Contains(trigger.On) {
			return err.CreateErr("validate/system/trigger/c", 5, sys.Prov.File, sys.Prov.Line,
				trigger.On).On("System", sys.Id).At("triggers")
		}
		if trigger.SourceContract == trigger.TargetContract && trigger.SourceFlow == trigger.TargetFlow {
			return err.CreateErr("validate/system/trigger/d", 5, sys.Prov.File, sys.Prov.Line,
				trigger.SourceContract, trigger.SourceFlow).On("System", sys.Id).At("triggers")
		}
		if e := validateTriggerPersona(sys, trigger, constructs); e != nil {
			return e
		}
	}

	for _, binding := range sys.SharedEntities {
		for _, cid := range binding.Contracts {
			if !memberSet.Contains(cid) {
				return err.CreateErr("validate/system/entity/a", 5, sys.Prov.File, sys.Prov.Line,
					cid, binding.Id).On("System", sys.Id).At("shared_entities")
			}
		}
		if len(binding.Contracts) < 2 {
			return err.CreateErr("validate/system/entity/b", 5, sys.Prov.File, sys.Prov.Line,
				binding.Id, len(binding.Contracts)).On("System", sys.Id).At("shared_entities")
		}
	}

	return validateTriggerAcyclicity(sys.Id, sys.Triggers, sys.Prov)
}

// If the target flow is present in the bundle, the trigger persona must be
// declared, and when the flow's entry is an OperationStep the persona must
// appear in the operation's allowed_personas.
func validateTriggerPersona(sys ast.System, trigger ast.RawTrigger, constructs []ast.RawConstruct) *err.Error {
	var targetFlow *ast.Flow
	for _, c := range constructs {
		if f, ok := c.(ast.Flow); ok && f.Id == trigger.TargetFlow {
			targetFlow = &f
			break
		}
	}
	if targetFlow == nil {
		return nil
	}

	personaExists := false
	for _, c := range constructs {
		if p, ok := c.(ast.Persona); ok && p.Id == trigger.Persona {
			personaExists = true
			break
		}
	}
	if !personaExists {
		return err.CreateErr("validate/system/trigger/e", 5, sys.Prov.File, sys.Prov.Line,
			trigger.Persona, trigger.TargetContract).On("System", sys.Id).At("triggers")
	}

	entryOp, ok := targetFlow.Steps[targetFlow.Entry].(ast.OperationStep)
	if !ok {
		return nil
	}
	for _, c := range constructs {
		op, isOp := c.(ast.Operation)
		if !isOp || op.Id != entryOp.Op {
			continue
		}
		for _, p := range op.AllowedPersonas {
			if p == trigger.Persona {
				return nil
			}
		}
		return err.CreateErr("validate/system/trigger/f", 5, sys.Prov.File, sys.Prov.Line,
			trigger.Persona, entryOp.Op, trigger.TargetFlow).On("System", sys.Id).At("triggers")
	}
	return nil
}

// ── Trigger graph acyclicity ──────────────────────────────────────────────────

type triggerNode struct {
	contract string
	flow     string
}

func validateTriggerAcyclicity(systemId string, triggers []ast.RawTrigger, prov ast.Provenance) *err.Error {
	if len(triggers) == 0 {
		return nil
	}

	adj := map[triggerNode][]triggerNode{}
	nodeSet := map[triggerNode]bool{}
	for _, t := range triggers {
		src := triggerNode{t.SourceContract, t.SourceFlow}
		tgt := triggerNode{t.TargetContract, t.TargetFlow}
		adj[src] = append(adj[src], tgt)
		nodeSet[src] = true
		nodeSet[tgt] = true
	}

	nodes := make([]triggerNode, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].contract != nodes[j].contract {
			return nodes[i].contract < nodes[j].contract
		}
		return nodes[i].flow < nodes[j].flow
	})

	visited := map[triggerNode]bool{}
	inPath := map[triggerNode]bool{}
	var path []triggerNode
	for _, node := range nodes {
		if !visited[node] {
			if e := triggerDfs(node, adj, visited, inPath, &path, systemId, prov); e != nil {
				return e
			}
		}
	}
	return nil
}

func triggerDfs(node triggerNode, adj map[triggerNode][]triggerNode, visited, inPath map[triggerNode]bool, path *[]triggerNode, systemId string, prov ast.Provenance) *err.Error {
	*path = append(*path, node)
	inPath[node] = true

	for _, neighbor := range adj[node] {
		if inPath[neighbor] {
			cycleStart := -1
			for i, n := range *path {
				if n == neighbor {
					cycleStart = i
					break
				}
			}
			if cycleStart < 0 {
				return err.CreateErr("validate/system/trigger/h", 5, prov.File, prov.Line,
					neighbor.contract, neighbor.flow).On("System", systemId).At("triggers")
			}
			cycleNodes := make([]string, 0, len(*path)-cycleStart+1)
			for _, n := range (*path)[cycleStart:] {
				cycleNodes = append(cycleNodes, n.contract+"."+n.flow)
			}
			cycleNodes = append(cycleNodes, neighbor.contract+"."+neighbor.flow)
			return err.CreateErr("validate/system/trigger/g", 5, prov.File, prov.Line,
				strings.Join(cycleNodes, " → ")).On("System", systemId).At("triggers")
		}
		if !visited[neighbor] {
			if e := triggerDfs(neighbor, adj, visited, inPath, path, systemId, prov); e != nil {
				return e
			}
		}
	}

	inPath[node] = false
	visited[node] = true
	*path = (*path)[:len(*path)-1]
	return nil
}
