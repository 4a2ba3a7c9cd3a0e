// Shared AST types for the Tenor elaborator.
//
// These types are produced by the parser and consumed throughout all
// elaboration passes. They live here so that pass packages can import
// them without depending on the parser.

package ast

import (
	"sort"
)

// Where a construct came from: the bare filename of its source file and the
// line its declaration starts on.
type Provenance struct {
	File string
	Line int
}

// SortedKeys exists because several of the raw constructs hold their parts in
// maps, and everything that iterates over them must do so in a fixed order if
// elaboration is to be byte-deterministic.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ── Raw types ─────────────────────────────────────────────────────────────────

// A raw BaseType as it appears in the source, before TypeRef resolution.
type RawType interface {
	rawType()
}

type BoolType struct{}
type DateType struct{}
type DateTimeType struct{}

type IntType struct {
	Min int64
	Max int64
}

type DecimalType struct {
	Precision int
	Scale     int
}

type TextType struct {
	MaxLength int
}

type MoneyType struct {
	Currency string
}

type DurationType struct {
	Unit string
	Min  int64
	Max  int64
}

type EnumType struct {
	Values []string
}

type RecordType struct {
	Fields map[string]RawType
}

type TaggedUnionType struct {
	Variants map[string]RawType
}

type ListType struct {
	ElementType RawType
	Max         int64
}

// Named type reference, resolved during passes 3 and 4.
type TypeRef struct {
	Name string
}

func (BoolType) rawType()        {}
func (DateType) rawType()        {}
func (DateTimeType) rawType()    {}
func (IntType) rawType()         {}
func (DecimalType) rawType()     {}
func (TextType) rawType()        {}
func (MoneyType) rawType()       {}
func (DurationType) rawType()    {}
func (EnumType) rawType()        {}
func (RecordType) rawType()      {}
func (TaggedUnionType) rawType() {}
func (ListType) rawType()        {}
func (TypeRef) rawType()         {}

// ── Raw literals ──────────────────────────────────────────────────────────────

type RawLiteral interface {
	rawLiteral()
}

type BoolLit struct{ Value bool }
type IntLit struct{ Value int64 }

// Decimal literals keep their exact source text so that no precision is lost
// before the canonical serializer decides how to render them.
type FloatLit struct{ Value string }

type StrLit struct{ Value string }

type MoneyLit struct {
	Amount   string
	Currency string
}

func (BoolLit) rawLiteral()  {}
func (IntLit) rawLiteral()   {}
func (FloatLit) rawLiteral() {}
func (StrLit) rawLiteral()   {}
func (MoneyLit) rawLiteral() {}

// ── Raw expressions ───────────────────────────────────────────────────────────

type RawExpr interface {
	rawExpr()
}

// left op right. Line is the line of the left operand.
type Compare struct {
	Op    string
	Left  RawTerm
	Right RawTerm
	Line  int
}

// verdict_present(id). Line is the line of the verdict_present token.
type VerdictPresent struct {
	Id   string
	Line int
}

type And struct{ Left, Right RawExpr }
type Or struct{ Left, Right RawExpr }
type Not struct{ Operand RawExpr }

// forall var ∈ domain . body. Line is the line of the ∀ token.
type Forall struct {
	Var    string
	Domain string
	Body   RawExpr
	Line   int
}

// exists var ∈ domain . body. Line is the line of the ∃ token.
type Exists struct {
	Var    string
	Domain string
	Body   RawExpr
	Line   int
}

func (Compare) rawExpr()        {}
func (VerdictPresent) rawExpr() {}
func (And) rawExpr()            {}
func (Or) rawExpr()             {}
func (Not) rawExpr()            {}
func (Forall) rawExpr()         {}
func (Exists) rawExpr()         {}

type RawTerm interface {
	rawTerm()
}

type FactRef struct{ Name string }

type FieldRef struct {
	Var   string
	Field string
}

type Literal struct{ Lit RawLiteral }

type Mul struct {
	Left  RawTerm
	Right RawTerm
}

func (FactRef) rawTerm()  {}
func (FieldRef) rawTerm() {}
func (Literal) rawTerm()  {}
func (Mul) rawTerm()      {}

// ── Fact sources ──────────────────────────────────────────────────────────────

type RawSourceDecl interface {
	rawSourceDecl()
}

// A freetext source, e.g. source: "billing.amount_due".
type FreetextSource struct{ Text string }

// A structured source, e.g. source: billing_api { path: "/v2/amount_due" }.
type StructuredSource struct {
	SourceId string
	Path     string
}

func (FreetextSource) rawSourceDecl()   {}
func (StructuredSource) rawSourceDecl() {}

// ── Raw constructs ────────────────────────────────────────────────────────────

type RawConstruct interface {
	rawConstruct()
	GetId() string
	GetProv() Provenance
}

type Import struct {
	Path string
	Prov Provenance
}

type TypeDecl struct {
	Id     string
	Fields map[string]RawType
	Prov   Provenance
}

type Fact struct {
	Id      string
	Type    RawType
	Source  RawSourceDecl
	Default RawLiteral // nil if not declared
	Prov    Provenance
}

// A declared entity transition. Line is the line of the `(` opening the tuple.
type Transition struct {
	From string
	To   string
	Line int
}

type Entity struct {
	Id          string
	States      []string
	Initial     string
	InitialLine int
	Transitions []Transition
	Parent      string // "" if not declared
	ParentLine  int
	Prov        Provenance
}

type Rule struct {
	Id           string
	Stratum      int64
	StratumLine  int
	When         RawExpr
	VerdictType  string
	PayloadType  RawType
	PayloadValue RawTerm
	ProduceLine  int
	Prov         Provenance
}

// A declared operation effect. Line is the line of the `(` opening the tuple.
// Outcome is "" unless the effect is labelled with the outcome it belongs to.
type Effect struct {
	EntityId string
	From     string
	To       string
	Outcome  string
	Line     int
}

type Operation struct {
	Id                  string
	AllowedPersonas     []string
	AllowedPersonasLine int
	Precondition        RawExpr
	Effects             []Effect
	ErrorContract       []string
	Outcomes            []string
	Prov                Provenance
}

type Persona struct {
	Id   string
	Prov Provenance
}

type Source struct {
	Id          string
	Protocol    string
	Fields      map[string]string
	Description string
	Prov        Provenance
}

type Flow struct {
	Id        string
	Snapshot  string
	Entry     string
	EntryLine int
	Steps     map[string]RawStep
	Prov      Provenance
}

// A member contract declaration within a System.
type Member struct {
	Id   string
	Path string
}

// A persona or entity shared between member contracts of a System.
type SharedBinding struct {
	Id        string
	Contracts []string
}

// A cross-contract flow trigger declaration within a System.
type RawTrigger struct {
	SourceContract string
	SourceFlow     string
	On             string
	TargetContract string
	TargetFlow     string
	Persona        string
}

type System struct {
	Id             string
	Members        []Member
	SharedPersonas []SharedBinding
	Triggers       []RawTrigger
	SharedEntities []SharedBinding
	Prov           Provenance
}

func (Import) rawConstruct()    {}
func (TypeDecl) rawConstruct()  {}
func (Fact) rawConstruct()      {}
func (Entity) rawConstruct()    {}
func (Rule) rawConstruct()      {}
func (Operation) rawConstruct() {}
func (Persona) rawConstruct()   {}
func (Source) rawConstruct()    {}
func (Flow) rawConstruct()      {}
func (System) rawConstruct()    {}

func (c Import) GetId() string    { return c.Path }
func (c TypeDecl) GetId() string  { return c.Id }
func (c Fact) GetId() string      { return c.Id }
func (c Entity) GetId() string    { return c.Id }
func (c Rule) GetId() string      { return c.Id }
func (c Operation) GetId() string { return c.Id }
func (c Persona) GetId() string   { return c.Id }
func (c Source) GetId() string    { return c.Id }
func (c Flow) GetId() string      { return c.Id }
func (c System) GetId() string    { return c.Id }

func (c Import) GetProv() Provenance    { return c.Prov }
func (c TypeDecl) GetProv() Provenance  { return c.Prov }
func (c Fact) GetProv() Provenance      { return c.Prov }
func (c Entity) GetProv() Provenance    { return c.Prov }
func (c Rule) GetProv() Provenance      { return c.Prov }
func (c Operation) GetProv() Provenance { return c.Prov }
func (c Persona) GetProv() Provenance   { return c.Prov }
func (c Source) GetProv() Provenance    { return c.Prov }
func (c Flow) GetProv() Provenance      { return c.Prov }
func (c System) GetProv() Provenance    { return c.Prov }

// KindOf names the construct kind the way the interchange format and the error
// artifacts spell it.
func KindOf(c RawConstruct) string {
	switch c.(type) {
	case Import:
		return "Import"
	case TypeDecl:
		return "TypeDecl"
	case Fact:
		return "Fact"
	case Entity:
		return "Entity"
	case Rule:
		return "Rule"
	case Operation:
		return "Operation"
	case Persona:
		return "Persona"
	case Source:
		return "Source"
	case Flow:
		return "Flow"
	case System:
		return "System"
	}
	return ""
}

// ── Flow step types ───────────────────────────────────────────────────────────

type RawStep interface {
	rawStep()
	GetLine() int
}

type OperationStep struct {
	Op       string
	Persona  string
	Outcomes map[string]RawStepTarget
	// nil at parse time is allowed; absence is a pass 5 error, not a parse error.
	OnFailure RawFailureHandler
	Line      int
}

type BranchStep struct {
	Condition RawExpr
	Persona   string
	IfTrue    RawStepTarget
	IfFalse   RawStepTarget
	Line      int
}

type HandoffStep struct {
	FromPersona string
	ToPersona   string
	Next        string
	Line        int
}

type SubFlowStep struct {
	Flow      string
	FlowLine  int
	Persona   string
	OnSuccess RawStepTarget
	OnFailure RawFailureHandler
	Line      int
}

type ParallelStep struct {
	Branches     []RawBranch
	BranchesLine int
	Join         RawJoinPolicy
	Line         int
}

func (OperationStep) rawStep() {}
func (BranchStep) rawStep()    {}
func (HandoffStep) rawStep()   {}
func (SubFlowStep) rawStep()   {}
func (ParallelStep) rawStep()  {}

func (s OperationStep) GetLine() int { return s.Line }
func (s BranchStep) GetLine() int    { return s.Line }
func (s HandoffStep) GetLine() int   { return s.Line }
func (s SubFlowStep) GetLine() int   { return s.Line }
func (s ParallelStep) GetLine() int  { return s.Line }

type RawStepTarget interface {
	rawStepTarget()
}

type StepRef struct {
	Name string
	Line int
}

type Terminal struct {
	Outcome string
}

func (StepRef) rawStepTarget()  {}
func (Terminal) rawStepTarget() {}

type RawFailureHandler interface {
	rawFailureHandler()
}

type Terminate struct {
	Outcome string
}

type Compensate struct {
	Steps []RawCompStep
	Then  string
}

type Escalate struct {
	ToPersona string
	Next      string
}

func (Terminate) rawFailureHandler()  {}
func (Compensate) rawFailureHandler() {}
func (Escalate) rawFailureHandler()   {}

type RawCompStep struct {
	Op        string
	Persona   string
	OnFailure string
}

type RawBranch struct {
	Id    string
	Entry string
	Steps map[string]RawStep
}

type RawJoinPolicy struct {
	OnAllSuccess  RawStepTarget     // nil if not declared
	OnAnyFailure  RawFailureHandler // nil if not declared
	OnAllComplete RawStepTarget     // nil if not declared
}
