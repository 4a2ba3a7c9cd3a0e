package initializer

import (
	"fmt"

	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/set"
)

// ResolveTypes inlines every named type reference in facts and rule payloads
// into its concrete structure. After this pass no TypeRef survives.
func ResolveTypes(constructs []ast.RawConstruct, env TypeEnv) ([]ast.RawConstruct, *err.Error) {
	out := make([]ast.RawConstruct, 0, len(constructs))
	for _, c := range constructs {
		switch c := c.(type) {
		case ast.Fact:
			t, e := resolveRawType(c.Type, env, c.Prov.File, c.Prov.Line, "check/type/unknown/b")
			if e != nil {
				return nil, e
			}
			c.Type = t
			out = append(out, c)
		case ast.Rule:
			pt, e := resolveRawType(c.PayloadType, env, c.Prov.File, c.Prov.Line, "check/type/unknown/c")
			if e != nil {
				return nil, e
			}
			c.PayloadType = pt
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

func resolveRawType(t ast.RawType, env TypeEnv, file string, line int, errorID string) (ast.RawType, *err.Error) {
	switch t := t.(type) {
	case ast.TypeRef:
		resolved, ok := env[t.Name]
		if !ok {
			return nil, err.CreateErr(errorID, 4, file, line, t.Name).At("type")
		}
		return resolved, nil
	case ast.RecordType:
		resolved := map[string]ast.RawType{}
		for _, k := range ast.SortedKeys(t.Fields) {
			rt, e := resolveRawType(t.Fields[k], env, file, line, errorID)
			if e != nil {
				return nil, e
			}
			resolved[k] = rt
		}
		return ast.RecordType{Fields: resolved}, nil
	case ast.ListType:
		et, e := resolveRawType(t.ElementType, env, file, line, errorID)
		if e != nil {
			return nil, e
		}
		return ast.ListType{ElementType: et, Max: t.Max}, nil
	}
	return t, nil
}

// TypeCheckRules checks every rule's predicate and produce clause against the
// declared fact types.
func TypeCheckRules(constructs []ast.RawConstruct) *err.Error {
	factTypes := map[string]ast.RawType{}
	for _, c := range constructs {
		if f, ok := c.(ast.Fact); ok {
			factTypes[f.Id] = f.Type
		}
	}
	for _, c := range constructs {
		r, ok := c.(ast.Rule)
		if !ok {
			continue
		}
		if e := typeCheckExpr(r.Id, r.When, factTypes, set.Set[string]{}, r.Prov); e != nil {
			return e
		}
		if e := typeCheckProduce(r.Id, r.PayloadType, r.PayloadValue, r.ProduceLine, factTypes, r.Prov); e != nil {
			return e
		}
	}
	return nil
}

func isVarFactRef(term ast.RawTerm, factTypes map[string]ast.RawType, boundVars set.Set[string]) bool {
	ref, ok := term.(ast.FactRef)
	if !ok {
		return false
	}
	if boundVars.Contains(ref.Name) {
		return false
	}
	_, declared := factTypes[ref.Name]
	return declared
}

func mulRangeFromTerm(term ast.RawTerm, factTypes map[string]ast.RawType) (int64, int64, bool) {
	switch term := term.(type) {
	case ast.FactRef:
		if it, ok := factTypes[term.Name].(ast.IntType); ok {
			return it.Min, it.Max, true
		}
	case ast.Literal:
		if lit, ok := term.Lit.(ast.IntLit); ok {
			return lit.Value, lit.Value, true
		}
	}
	return 0, 0, false
}

// The payload of a produce clause may be a product of an Int fact and a
// literal. The product's range over all four endpoint combinations must fit
// inside the declared payload type.
func typeCheckProduce(ruleId string, payloadType ast.RawType, payloadValue ast.RawTerm, produceLine int, factTypes map[string]ast.RawType, prov ast.Provenance) *err.Error {
	mul, ok := payloadValue.(ast.Mul)
	if !ok {
		return nil
	}
	lMin, lMax, lOk := mulRangeFromTerm(mul.Left, factTypes)
	rMin, rMax, rOk := mulRangeFromTerm(mul.Right, factTypes)
	if !lOk || !rOk {
		return nil
	}
	products := []int64{lMin * rMin, lMin * rMax, lMax * rMin, lMax * rMax}
	prodMin, prodMax := products[0], products[0]
	for _, p := range products[1:] {
		if p < prodMin {
			prodMin = p
		}
		if p > prodMax {
			prodMax = p
		}
	}
	if pt, ok := payloadType.(ast.IntType); ok {
		if prodMin < pt.Min || prodMax > pt.Max {
			return err.CreateErr("check/mul/range", 4, prov.File, produceLine,
				TypeName(ast.IntType{Min: prodMin, Max: prodMax}), TypeName(payloadType)).
				On("Rule", ruleId).At("body.produce.payload")
		}
	}
	return nil
}

func typeOfFactTerm(term ast.RawTerm, factTypes map[string]ast.RawType, boundVars set.Set[string]) (ast.RawType, bool) {
	ref, ok := term.(ast.FactRef)
	if !ok || boundVars.Contains(ref.Name) {
		return nil, false
	}
	t, ok := factTypes[ref.Name]
	return t, ok
}

// TypeName renders a type the way it appears in diagnostics.
func TypeName(t ast.RawType) string {
	switch t := t.(type) {
	case ast.BoolType:
		return "Bool"
	case ast.IntType:
		return fmt.Sprintf("Int(min: %d, max: %d)", t.Min, t.Max)
	case ast.DecimalType:
		return "Decimal"
	case ast.TextType:
		return "Text"
	case ast.EnumType:
		return "Enum"
	case ast.MoneyType:
		return fmt.Sprintf("Money(currency: %s)", t.Currency)
	case ast.DateType:
		return "Date"
	case ast.DateTimeType:
		return "DateTime"
	case ast.DurationType:
		return "Duration"
	case ast.ListType:
		return "List"
	case ast.RecordType:
		return "Record"
	case ast.TaggedUnionType:
		return "TaggedUnion"
	case ast.TypeRef:
		return t.Name
	}
	return "Unknown"
}

func typeCheckExpr(ruleId string, expr ast.RawExpr, factTypes map[string]ast.RawType, boundVars set.Set[string], prov ast.Provenance) *err.Error {
	switch expr := expr.(type) {
	case ast.Compare:
		for _, term := range []ast.RawTerm{expr.Left, expr.Right} {
			if mul, ok := term.(ast.Mul); ok {
				if isVarFactRef(mul.Left, factTypes, boundVars) &&
					isVarFactRef(mul.Right, factTypes, boundVars) {
					return err.CreateErr("check/mul/vars", 4, prov.File, expr.Line).
						On("Rule", ruleId).At("body.when")
				}
			}
		}
		for _, term := range []ast.RawTerm{expr.Left, expr.Right} {
			if ref, ok := term.(ast.FactRef); ok {
				if !boundVars.Contains(ref.Name) {
					if _, declared := factTypes[ref.Name]; !declared {
						return err.CreateErr("check/fact/unresolved/a", 4, prov.File, expr.Line, ref.Name).
							On("Rule", ruleId).At("body.when")
					}
				}
			}
		}
		if lt, ok := typeOfFactTerm(expr.Left, factTypes, boundVars); ok {
			switch lt := lt.(type) {
			case ast.BoolType:
				if expr.Op != "=" && expr.Op != "!=" {
					return err.CreateErr("check/bool/op", 4, prov.File, expr.Line, expr.Op).
						On("Rule", ruleId).At("body.when")
				}
			case ast.MoneyType:
				if rt, ok := typeOfFactTerm(expr.Right, factTypes, boundVars); ok {
					if rm, ok := rt.(ast.MoneyType); ok && lt.Currency != rm.Currency {
						return err.CreateErr("check/money/currency", 4, prov.File, expr.Line,
							TypeName(lt), TypeName(rm)).
							On("Rule", ruleId).At("body.when")
					}
				}
			}
		}
	case ast.Forall:
		return typeCheckQuantifier(ruleId, expr.Var, expr.Domain, expr.Body, expr.Line, factTypes, boundVars, prov)
	case ast.Exists:
		return typeCheckQuantifier(ruleId, expr.Var, expr.Domain, expr.Body, expr.Line, factTypes, boundVars, prov)
	case ast.And:
		if e := typeCheckExpr(ruleId, expr.Left, factTypes, boundVars, prov); e != nil {
			return e
		}
		return typeCheckExpr(ruleId, expr.Right, factTypes, boundVars, prov)
	case ast.Or:
		if e := typeCheckExpr(ruleId, expr.Left, factTypes, boundVars, prov); e != nil {
			return e
		}
		return typeCheckExpr(ruleId, expr.Right, factTypes, boundVars, prov)
	case ast.Not:
		return typeCheckExpr(ruleId, expr.Operand, factTypes, boundVars, prov)
	case ast.VerdictPresent:
		// Verdict references are validated structurally in the next pass.
	}
	return nil
}

func typeCheckQuantifier(ruleId, qvar, domain string, body ast.RawExpr, line int, factTypes map[string]ast.RawType, boundVars set.Set[string], prov ast.Provenance) *err.Error {
	domainType, declared := factTypes[domain]
	if !declared {
		return err.CreateErr("check/fact/unresolved/b", 4, prov.File, line, domain).
			On("Rule", ruleId).At("body.when")
	}
	if _, isList := domainType.(ast.ListType); !isList {
		return err.CreateErr("check/quant/domain", 4, prov.File, line, domain, TypeName(domainType)).
			On("Rule", ruleId).At("body.when")
	}
	innerBound := set.Set[string]{}
	innerBound.AddSet(boundVars)
	innerBound.Add(qvar)
	return typeCheckExpr(ruleId, body, factTypes, innerBound, prov)
}
