package values

// Predicate is the typed condition tree the evaluator walks. It is decoded
// from interchange JSON, so every node is already type-annotated where the
// elaborator emits annotations.
type Predicate interface {
	predicate()
}

// Compare is a binary comparison. ComparisonType, when present, names the
// promoted type both sides are coerced to before comparing.
type Compare struct {
	Left           Predicate
	Op             string
	Right          Predicate
	ComparisonType *TypeSpec
}

type And struct{ Left, Right Predicate }
type Or struct{ Left, Right Predicate }
type Not struct{ Operand Predicate }

// FactRef reads a fact value from the fact set.
type FactRef struct{ Id string }

// FieldRef reads a record field off a quantifier-bound variable.
type FieldRef struct {
	Var   string
	Field string
}

type Literal struct {
	Value Value
	Type  TypeSpec
}

// VerdictPresent checks whether a verdict of the named type was produced
// at a lower stratum.
type VerdictPresent struct{ Id string }

// Forall is bounded universal quantification over a list-valued domain.
type Forall struct {
	Variable     string
	VariableType TypeSpec
	Domain       Predicate
	Body         Predicate
}

// Exists is bounded existential quantification over a list-valued domain.
type Exists struct {
	Variable     string
	VariableType TypeSpec
	Domain       Predicate
	Body         Predicate
}

// Mul multiplies a numeric term by an integer literal. ResultType carries
// the range the elaborator derived for the product.
type Mul struct {
	Left       Predicate
	Literal    int64
	ResultType TypeSpec
}

func (Compare) predicate()        {}
func (And) predicate()            {}
func (Or) predicate()             {}
func (Not) predicate()            {}
func (FactRef) predicate()        {}
func (FieldRef) predicate()       {}
func (Literal) predicate()        {}
func (VerdictPresent) predicate() {}
func (Forall) predicate()         {}
func (Exists) predicate()         {}
func (Mul) predicate()            {}
