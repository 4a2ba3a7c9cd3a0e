package initializer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/set"
)

// Validate runs the structural checks that cannot be decided locally during
// parsing: state machine well-formedness, stratum monotonicity, persona and
// outcome discipline, flow graph acyclicity, and system composition rules.
func Validate(constructs []ast.RawConstruct, idx *Index) *err.Error {
	if e := validateVerdictUniqueness(constructs); e != nil {
		return e
	}

	producedVerdicts := set.Set[string]{}
	for _, v := range idx.RuleVerdicts {
		producedVerdicts.Add(v)
	}

	for _, c := range constructs {
		switch c := c.(type) {
		case ast.Entity:
			if e := validateEntity(c, idx); e != nil {
				return e
			}
		case ast.Rule:
			if e := validateRule(c, idx, producedVerdicts); e != nil {
				return e
			}
		case ast.Operation:
			if e := validateOperation(c, idx); e != nil {
				return e
			}
		case ast.Flow:
			if e := validateFlow(c, idx); e != nil {
				return e
			}
		case ast.System:
			if e := validateSystem(c, constructs); e != nil {
				return e
			}
		case ast.Source:
			if e := validateSource(c, idx); e != nil {
				return e
			}
		case ast.Fact:
			if src, ok := c.Source.(ast.StructuredSource); ok {
				if _, declared := idx.Sources[src.SourceId]; !declared {
					return err.CreateErr("validate/fact/source", 5, c.Prov.File, c.Prov.Line,
						c.Id, src.SourceId).On("Fact", c.Id).At("source")
				}
			}
		}
	}

	if e := validateEntityDag(constructs); e != nil {
		return e
	}
	if e := validateFlowReferenceGraph(constructs); e != nil {
		return e
	}
	return validateParallelConflicts(constructs)
}

// Each verdict type may be produced by at most one rule.
func validateVerdictUniqueness(constructs []ast.RawConstruct) *err.Error {
	seen := map[string]string{}
	for _, c := range constructs {
		r, ok := c.(ast.Rule)
		if !ok {
			continue
		}
		if firstRuleId, dup := seen[r.VerdictType]; dup {
			return err.CreateErr("validate/rule/verdict/c", 5, r.Prov.File, r.ProduceLine,
				r.VerdictType, firstRuleId).On("Rule", r.Id).At("produce")
		}
		seen[r.VerdictType] = r.Id
	}
	return nil
}

// ── Entity ────────────────────────────────────────────────────────────────────

func validateEntity(entity ast.Entity, _ *Index) *err.Error {
	states := set.Set[string]{}
	for _, s := range entity.States {
		states.Add(s)
	}
	statesList := strings.Join(entity.States, ", ")

	if !states.Contains(entity.Initial) {
		return err.CreateErr("validate/entity/initial", 5, entity.Prov.File, entity.InitialLine,
			entity.Initial, statesList).On("Entity", entity.Id).At("initial")
	}
	for _, t := range entity.Transitions {
		for _, endpoint := range []string{t.From, t.To} {
			if !states.Contains(endpoint) {
				return err.CreateErr("validate/entity/transition", 5, entity.Prov.File, t.Line,
					endpoint, statesList).On("Entity", entity.Id).At("transitions")
			}
		}
	}
	return nil
}

// The parent relation between entities must form a forest.
func validateEntityDag(constructs []ast.RawConstruct) *err.Error {
	type parentEdge struct {
		parent string
		line   int
		prov   ast.Provenance
	}
	parents := map[string]parentEdge{}
	for _, c := range constructs {
		if e, ok := c.(ast.Entity); ok && e.Parent != "" {
			line := e.ParentLine
			if line == 0 {
				line = e.Prov.Line
			}
			parents[e.Id] = parentEdge{parent: e.Parent, line: line, prov: e.Prov}
		}
	}

	for _, start := range ast.SortedKeys(parents) {
		visited := set.Set[string]{}
		cur := start
		visited.Add(cur)
		for {
			edge, ok := parents[cur]
			if !ok {
				break
			}
			if visited.Contains(edge.parent) {
				path := []string{cur}
				node := cur
				for {
					next, ok := parents[node]
					if !ok {
						break
					}
					path = append(path, next.parent)
					if next.parent == cur {
						break
					}
					node = next.parent
				}
				return err.CreateErr("validate/entity/parent", 5, edge.prov.File, edge.line,
					strings.Join(path, " → ")).On("Entity", cur).At("parent")
			}
			visited.Add(edge.parent)
			cur = edge.parent
		}
	}
	return nil
}

// ── Rule ──────────────────────────────────────────────────────────────────────

func validateRule(rule ast.Rule, idx *Index, producedVerdicts set.Set[string]) *err.Error {
	if rule.Stratum < 0 {
		return err.CreateErr("validate/rule/stratum", 5, rule.Prov.File, rule.StratumLine,
			rule.Stratum).On("Rule", rule.Id).At("stratum")
	}
	return validateVerdictRefs(rule.When, rule.Id, rule.Stratum, rule.Prov, idx, producedVerdicts)
}

func validateVerdictRefs(expr ast.RawExpr, ruleId string, ruleStratum int64, prov ast.Provenance, idx *Index, producedVerdicts set.Set[string]) *err.Error {
	switch expr := expr.(type) {
	case ast.VerdictPresent:
		if !producedVerdicts.Contains(expr.Id) {
			return err.CreateErr("validate/rule/verdict/a", 5, prov.File, expr.Line, expr.Id).
				On("Rule", ruleId).At("body.when")
		}
		if origin, ok := idx.VerdictStrata[expr.Id]; ok && origin.Stratum >= ruleStratum {
			return err.CreateErr("validate/rule/verdict/b", 5, prov.File, expr.Line,
				ruleId, ruleStratum, expr.Id, origin.RuleId, origin.Stratum).
				On("Rule", ruleId).At("body.when")
		}
	case ast.And:
		if e := validateVerdictRefs(expr.Left, ruleId, ruleStratum, prov, idx, producedVerdicts); e != nil {
			return e
		}
		return validateVerdictRefs(expr.Right, ruleId, ruleStratum, prov, idx, producedVerdicts)
	case ast.Or:
		if e := validateVerdictRefs(expr.Left, ruleId, ruleStratum, prov, idx, producedVerdicts); e != nil {
			return e
		}
		return validateVerdictRefs(expr.Right, ruleId, ruleStratum, prov, idx, producedVerdicts)
	case ast.Not:
		return validateVerdictRefs(expr.Operand, ruleId, ruleStratum, prov, idx, producedVerdicts)
	}
	return nil
}

// ── Operation ─────────────────────────────────────────────────────────────────

func validateOperation(op ast.Operation, idx *Index) *err.Error {
	seen := set.Set[string]{}
	for _, outcome := range op.Outcomes {
		if seen.Contains(outcome) {
			return err.CreateErr("validate/op/outcome/c", 5, op.Prov.File, op.Prov.Line,
				outcome).On("Operation", op.Id).At("outcomes")
		}
		seen.Add(outcome)
	}

	if len(op.AllowedPersonas) == 0 {
		return err.CreateErr("validate/op/personas", 5, op.Prov.File, op.AllowedPersonasLine).
			On("Operation", op.Id).At("allowed_personas")
	}

	// Persona references are only checked once the contract declares personas.
	if len(idx.Personas) > 0 {
		for _, persona := range op.AllowedPersonas {
			if _, declared := idx.Personas[persona]; !declared {
				return err.CreateErr("validate/op/persona", 5, op.Prov.File, op.AllowedPersonasLine,
					persona).On("Operation", op.Id).At("allowed_personas")
			}
		}
	}

	for _, effect := range op.Effects {
		if _, declared := idx.Entities[effect.EntityId]; !declared {
			return err.CreateErr("validate/op/entity", 5, op.Prov.File, effect.Line,
				effect.EntityId).On("Operation", op.Id).At("effects")
		}
	}

	// Multi-outcome operations must label every effect with its outcome.
	if len(op.Outcomes) >= 2 {
		outcomes := set.Set[string]{}
		for _, o := range op.Outcomes {
			outcomes.Add(o)
		}
		for _, effect := range op.Effects {
			if effect.Outcome == "" {
				return err.CreateErr("validate/op/outcome/a", 5, op.Prov.File, effect.Line,
					effect.EntityId, effect.From, effect.To).
					On("Operation", op.Id).At("effects")
			}
			if !outcomes.Contains(effect.Outcome) {
				return err.CreateErr("validate/op/outcome/b", 5, op.Prov.File, effect.Line,
					effect.EntityId, effect.From, effect.To, effect.Outcome,
					strings.Join(op.Outcomes, ", ")).
					On("Operation", op.Id).At("effects")
			}
		}
	}

	if len(op.Outcomes) > 0 {
		outcomes := set.Set[string]{}
		for _, o := range op.Outcomes {
			outcomes.Add(o)
		}
		for _, ec := range op.ErrorContract {
			if outcomes.Contains(ec) {
				return err.CreateErr("validate/op/outcomes", 5, op.Prov.File, op.Prov.Line,
					ec).On("Operation", op.Id).At("outcomes")
			}
		}
	}

	return nil
}

// ValidateOperationTransitions checks every effect against the declared
// transitions of the entity it moves.
func ValidateOperationTransitions(constructs []ast.RawConstruct, _ *Index) *err.Error {
	entityTransitions := map[string][]ast.Transition{}
	for _, c := range constructs {
		if e, ok := c.(ast.Entity); ok {
			entityTransitions[e.Id] = append(entityTransitions[e.Id], e.Transitions...)
		}
	}

	for _, c := range constructs {
		op, ok := c.(ast.Operation)
		if !ok {
			continue
		}
		for _, effect := range op.Effects {
			transitions, known := entityTransitions[effect.EntityId]
			if !known {
				continue
			}
			found := false
			for _, t := range transitions {
				if t.From == effect.From && t.To == effect.To {
					found = true
					break
				}
			}
			if !found {
				declared := make([]string, 0, len(transitions))
				for _, t := range transitions {
					declared = append(declared, fmt.Sprintf("(%s, %s)", t.From, t.To))
				}
				return err.CreateErr("validate/op/transition", 5, op.Prov.File, effect.Line,
					effect.EntityId, effect.From, effect.To, effect.EntityId,
					strings.Join(declared, ", ")).
					On("Operation", op.Id).At("effects")
			}
		}
	}
	return nil
}

// ── Source ────────────────────────────────────────────────────────────────────

var protocolRequiredFields = map[string][]string{
	"http":     {"base_url"},
	"database": {"dialect"},
	"graphql":  {"endpoint"},
	"grpc":     {"endpoint"},
	"static":   {},
	"manual":   {},
}

func validateSource(src ast.Source, _ *Index) *err.Error {
	required, core := protocolRequiredFields[src.Protocol]
	if !core {
		if strings.HasPrefix(src.Protocol, "x_") {
			if !validExtensionTag(src.Protocol) {
				return err.CreateErr("validate/source/protocol/a", 5, src.Prov.File, src.Prov.Line,
					src.Protocol).On("Source", src.Id).At("protocol")
			}
			return nil
		}
		return err.CreateErr("validate/source/protocol/b", 5, src.Prov.File, src.Prov.Line,
			src.Protocol).On("Source", src.Id).At("protocol")
	}
	for _, req := range required {
		if _, ok := src.Fields[req]; !ok {
			return err.CreateErr("validate/source/field", 5, src.Prov.File, src.Prov.Line,
				src.Id, src.Protocol, req).On("Source", src.Id).At("protocol")
		}
	}
	return nil
}

// Extension tags look like x_vendor.subsystem: dot-separated segments of
// lowercase letters, digits, and underscores, each starting with a letter.
func validExtensionTag(tag string) bool {
	body := tag[2:]
	if body == "" || strings.Contains(body, "..") || strings.HasSuffix(body, ".") {
		return false
	}
	for _, seg := range strings.Split(body, ".") {
		if seg == "" || seg[0] < 'a' || seg[0] > 'z' {
			return false
		}
		for _, c := range seg {
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
				return false
			}
		}
	}
	return true
}

func sortedStrings(s []string) []string {
	out := append([]string{}, s...)
	sort.Strings(out)
	return out
}
