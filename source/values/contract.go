package values

// A Contract is a bundle decoded into evaluation form. Sources, Systems,
// and TypeDecls are dropped here: type references are already resolved in
// the bundle and the rest carries no runtime behavior.
type Contract struct {
	Facts      []FactDecl
	Entities   []Entity
	Rules      []Rule
	Operations []Operation
	Flows      []Flow
	Personas   []string

	operationIndex map[string]int
	flowIndex      map[string]int
	entityIndex    map[string]int
	factIndex      map[string]int
}

// NewContract builds a contract from its parts and indexes them by id.
func NewContract(facts []FactDecl, entities []Entity, rules []Rule,
	operations []Operation, flows []Flow, personas []string) *Contract {
	c := &Contract{
		Facts:          facts,
		Entities:       entities,
		Rules:          rules,
		Operations:     operations,
		Flows:          flows,
		Personas:       personas,
		operationIndex: make(map[string]int, len(operations)),
		flowIndex:      make(map[string]int, len(flows)),
		entityIndex:    make(map[string]int, len(entities)),
		factIndex:      make(map[string]int, len(facts)),
	}
	for i, op := range operations {
		c.operationIndex[op.Id] = i
	}
	for i, f := range flows {
		c.flowIndex[f.Id] = i
	}
	for i, e := range entities {
		c.entityIndex[e.Id] = i
	}
	for i, f := range facts {
		c.factIndex[f.Id] = i
	}
	return c
}

func (c *Contract) GetOperation(id string) (*Operation, bool) {
	i, ok := c.operationIndex[id]
	if !ok {
		return nil, false
	}
	return &c.Operations[i], true
}

func (c *Contract) GetFlow(id string) (*Flow, bool) {
	i, ok := c.flowIndex[id]
	if !ok {
		return nil, false
	}
	return &c.Flows[i], true
}

func (c *Contract) GetEntity(id string) (*Entity, bool) {
	i, ok := c.entityIndex[id]
	if !ok {
		return nil, false
	}
	return &c.Entities[i], true
}

func (c *Contract) GetFact(id string) (*FactDecl, bool) {
	i, ok := c.factIndex[id]
	if !ok {
		return nil, false
	}
	return &c.Facts[i], true
}

// An Entity is a state machine with declared transitions.
type Entity struct {
	Id          string
	States      []string
	Initial     string
	Transitions []Transition
}

type Transition struct {
	From string
	To   string
}

// CanTransition reports whether from -> to is a declared transition.
func (e *Entity) CanTransition(from, to string) bool {
	for _, t := range e.Transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// A Rule produces a verdict when its condition holds, within a stratum.
type Rule struct {
	Id        string
	Stratum   int
	Condition Predicate
	Produce   ProduceClause
}

type ProduceClause struct {
	VerdictType  string
	PayloadType  TypeSpec
	PayloadValue PayloadValue
}

// PayloadValue is either a literal or a multiplication expression.
type PayloadValue interface {
	payloadValue()
}

type PayloadLiteral struct{ Value Value }

type PayloadMul struct {
	FactRef    string
	Literal    int64
	ResultType TypeSpec
}

func (PayloadLiteral) payloadValue() {}
func (PayloadMul) payloadValue()     {}

// An Operation is a persona-gated state transition with a precondition.
type Operation struct {
	Id              string
	AllowedPersonas []string
	Precondition    Predicate
	Effects         []Effect
	ErrorContract   []string
	Outcomes        []string
}

// Allows reports whether the persona may invoke the operation.
func (op *Operation) Allows(persona string) bool {
	for _, p := range op.AllowedPersonas {
		if p == persona {
			return true
		}
	}
	return false
}

type Effect struct {
	EntityId string
	From     string
	To       string
	Outcome  string
}

// A Flow is a DAG of steps entered at Entry, evaluated against the
// snapshot discipline named by Snapshot.
type Flow struct {
	Id       string
	Snapshot string
	Entry    string
	Steps    []FlowStep
}

// GetStep finds a step by id, including steps inside parallel branches.
func (f *Flow) GetStep(id string) (FlowStep, bool) {
	return findStep(f.Steps, id)
}

func findStep(steps []FlowStep, id string) (FlowStep, bool) {
	for _, s := range steps {
		if s.StepId() == id {
			return s, true
		}
		if par, ok := s.(ParallelStep); ok {
			for _, b := range par.Branches {
				if found, ok := findStep(b.Steps, id); ok {
					return found, true
				}
			}
		}
	}
	return nil, false
}

// FlowStep is one node in a flow DAG.
type FlowStep interface {
	StepId() string
}

type OperationStep struct {
	Id        string
	Op        string
	Persona   string
	Outcomes  map[string]StepTarget
	OnFailure FailureHandler
}

type BranchStep struct {
	Id        string
	Condition Predicate
	Persona   string
	IfTrue    StepTarget
	IfFalse   StepTarget
}

type HandoffStep struct {
	Id          string
	FromPersona string
	ToPersona   string
	Next        string
}

type SubFlowStep struct {
	Id        string
	Flow      string
	Persona   string
	OnSuccess StepTarget
	OnFailure FailureHandler
}

type ParallelStep struct {
	Id       string
	Branches []ParallelBranch
	Join     JoinPolicy
}

func (s OperationStep) StepId() string { return s.Id }
func (s BranchStep) StepId() string    { return s.Id }
func (s HandoffStep) StepId() string   { return s.Id }
func (s SubFlowStep) StepId() string   { return s.Id }
func (s ParallelStep) StepId() string  { return s.Id }

type ParallelBranch struct {
	Id    string
	Entry string
	Steps []FlowStep
}

type JoinPolicy struct {
	OnAllSuccess  StepTarget
	OnAnyFailure  FailureHandler
	OnAllComplete StepTarget
}

// StepTarget is where control goes next: another step or a terminal.
type StepTarget interface {
	stepTarget()
}

type StepRef struct{ Step string }

type Terminal struct{ Outcome string }

func (StepRef) stepTarget()  {}
func (Terminal) stepTarget() {}

// FailureHandler says what happens when a step's operation fails.
type FailureHandler interface {
	failureHandler()
}

type Terminate struct{ Outcome string }

type Compensate struct {
	Steps []CompStep
	Then  StepTarget
}

type Escalate struct {
	ToPersona string
	Next      string
}

func (Terminate) failureHandler()  {}
func (Compensate) failureHandler() {}
func (Escalate) failureHandler()   {}

// A CompStep is one compensating operation run during unwind.
type CompStep struct {
	Op        string
	Persona   string
	OnFailure StepTarget
}
