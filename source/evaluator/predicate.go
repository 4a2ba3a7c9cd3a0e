package evaluator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tenorlang/tenor/source/numeric"
	"github.com/tenorlang/tenor/source/values"
)

// An EvalContext holds quantifier variable bindings during predicate
// evaluation. The zero context has no bindings; each quantifier iteration
// clones the context and binds its variable to one domain element.
type EvalContext struct {
	bindings map[string]values.Value
}

func NewEvalContext() *EvalContext {
	return &EvalContext{bindings: make(map[string]values.Value)}
}

func (ctx *EvalContext) clone() *EvalContext {
	inner := make(map[string]values.Value, len(ctx.bindings)+1)
	for k, v := range ctx.bindings {
		inner[k] = v
	}
	return &EvalContext{bindings: inner}
}

func (ctx *EvalContext) bind(variable string, v values.Value) *EvalContext {
	next := ctx.clone()
	next.bindings[variable] = v
	return next
}

// EvalPred evaluates a predicate against a fact set and the verdicts
// accumulated so far. Comparison and logical nodes yield Bool; fact refs
// and literals yield their value directly. The collector records every
// fact and verdict touched, for provenance.
func EvalPred(pred values.Predicate, facts *values.FactSet, verdicts *values.VerdictSet,
	ctx *EvalContext, collector *values.ProvenanceCollector) (values.Value, *values.EvalError) {

	switch p := pred.(type) {
	case values.FactRef:
		collector.RecordFact(p.Id)
		v, ok := facts.Get(p.Id)
		if !ok {
			return values.Value{}, values.UnknownFact(p.Id)
		}
		return v, nil

	case values.FieldRef:
		// A bound quantifier variable shadows any fact of the same name.
		// Record-typed facts are reached through field refs too.
		val, ok := ctx.bindings[p.Var]
		if !ok {
			collector.RecordFact(p.Var)
			val, ok = facts.Get(p.Var)
			if !ok {
				return values.Value{}, values.UnboundVariable(p.Var)
			}
		}
		if val.T != values.RECORD {
			return values.Value{}, values.NotARecord(fmt.Sprintf(
				"variable '%s' is not a Record, got %s", p.Var, val.TypeName()))
		}
		fields := val.V.(map[string]values.Value)
		field, ok := fields[p.Field]
		if !ok {
			return values.Value{}, values.NotARecord(fmt.Sprintf(
				"field '%s' not found in record variable '%s'", p.Field, p.Var))
		}
		return field, nil

	case values.Literal:
		return p.Value, nil

	case values.VerdictPresent:
		collector.RecordVerdict(p.Id)
		return values.MakeBool(verdicts.HasVerdict(p.Id)), nil

	case values.Compare:
		leftVal, err := EvalPred(p.Left, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		rightVal, err := EvalPred(p.Right, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		result, err := numeric.CompareValues(leftVal, rightVal, p.Op, p.ComparisonType)
		if err != nil {
			return values.Value{}, err
		}
		return values.MakeBool(result), nil

	case values.And:
		leftBool, err := evalBool(p.Left, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		if !leftBool {
			return values.FALSE, nil
		}
		rightBool, err := evalBool(p.Right, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		return values.MakeBool(rightBool), nil

	case values.Or:
		leftBool, err := evalBool(p.Left, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		if leftBool {
			return values.TRUE, nil
		}
		rightBool, err := evalBool(p.Right, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		return values.MakeBool(rightBool), nil

	case values.Not:
		b, err := evalBool(p.Operand, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		return values.MakeBool(!b), nil

	case values.Forall:
		elements, err := evalDomain(p.Domain, "forall", facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		for _, elem := range elements {
			inner := ctx.bind(p.Variable, elem)
			b, err := evalBool(p.Body, facts, verdicts, inner, collector)
			if err != nil {
				return values.Value{}, err
			}
			if !b {
				return values.FALSE, nil
			}
		}
		return values.TRUE, nil

	case values.Exists:
		elements, err := evalDomain(p.Domain, "exists", facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		for _, elem := range elements {
			inner := ctx.bind(p.Variable, elem)
			b, err := evalBool(p.Body, facts, verdicts, inner, collector)
			if err != nil {
				return values.Value{}, err
			}
			if b {
				return values.TRUE, nil
			}
		}
		return values.FALSE, nil

	case values.Mul:
		leftVal, err := EvalPred(p.Left, facts, verdicts, ctx, collector)
		if err != nil {
			return values.Value{}, err
		}
		switch leftVal.T {
		case values.INT:
			return numeric.EvalIntMul(leftVal.V.(int64), p.Literal, p.ResultType)
		case values.DECIMAL:
			precision, scale := 28, 0
			if p.ResultType.Precision != nil {
				precision = *p.ResultType.Precision
			}
			if p.ResultType.Scale != nil {
				scale = *p.ResultType.Scale
			}
			result, err := numeric.EvalMul(leftVal.V.(decimal.Decimal),
				decimal.NewFromInt(p.Literal), precision, scale)
			if err != nil {
				return values.Value{}, err
			}
			return values.MakeDecimal(result), nil
		default:
			return values.Value{}, values.TypeError(fmt.Sprintf(
				"multiplication requires numeric operand, got %s", leftVal.TypeName()))
		}
	}

	return values.Value{}, values.TypeError(fmt.Sprintf("unhandled predicate node %T", pred))
}

func evalBool(pred values.Predicate, facts *values.FactSet, verdicts *values.VerdictSet,
	ctx *EvalContext, collector *values.ProvenanceCollector) (bool, *values.EvalError) {
	v, err := EvalPred(pred, facts, verdicts, ctx, collector)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func evalDomain(domain values.Predicate, quantifier string, facts *values.FactSet,
	verdicts *values.VerdictSet, ctx *EvalContext,
	collector *values.ProvenanceCollector) ([]values.Value, *values.EvalError) {
	domainVal, err := EvalPred(domain, facts, verdicts, ctx, collector)
	if err != nil {
		return nil, err
	}
	if domainVal.T != values.LIST {
		return nil, values.TypeError(fmt.Sprintf(
			"%s domain must be a List, got %s", quantifier, domainVal.TypeName()))
	}
	return domainVal.V.([]values.Value), nil
}
