package interchange_test

import (
	"testing"

	"github.com/tenorlang/tenor/source/interchange"
	"github.com/tenorlang/tenor/source/parser"
	"github.com/tenorlang/tenor/source/values"
)

func deserializeSource(t *testing.T, input string) *values.Contract {
	t.Helper()
	constructs, e := parser.Parse("test.tenor", input)
	if e != nil {
		t.Fatalf("parse error: %s", e.Message)
	}
	data := interchange.Serialize(constructs, "test")
	contract, err := interchange.Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize error: %s", err.Message)
	}
	return contract
}

func TestDeserializeFactWithDefault(t *testing.T) {
	contract := deserializeSource(t, `
fact credit_limit {
  type: Money
  source: "ledger.limit"
  default: Money { amount: "3000.00", currency: "USD" }
}
`)
	fact, ok := contract.GetFact("credit_limit")
	if !ok {
		t.Fatal("fact not found")
	}
	if fact.Type.Base != "Money" {
		t.Fatalf("wrong type: %+v", fact.Type)
	}
	if fact.Default == nil || fact.Default.T != values.MONEY {
		t.Fatalf("default not decoded: %+v", fact.Default)
	}
	m := fact.Default.V.(values.Money)
	if m.Currency != "USD" || m.Amount.String() != "3000.00" {
		t.Fatalf("bad default: %+v", m)
	}
}

func TestDeserializeRulePredicate(t *testing.T) {
	contract := deserializeSource(t, `
fact balance {
  type: Int(0, 1000000)
  source: "core.balance"
}

rule r_solvent {
  stratum: 0
  when: balance >= 1000
  produce: verdict Solvent
}
`)
	if len(contract.Rules) != 1 {
		t.Fatalf("wanted 1 rule, got %d", len(contract.Rules))
	}
	rule := contract.Rules[0]
	if rule.Stratum != 0 || rule.Produce.VerdictType != "Solvent" {
		t.Fatalf("bad rule: %+v", rule)
	}
	cmp, ok := rule.Condition.(values.Compare)
	if !ok {
		t.Fatalf("condition is %T, wanted Compare", rule.Condition)
	}
	if cmp.Op != ">=" {
		t.Fatalf("wrong op: %s", cmp.Op)
	}
	if _, ok := cmp.Left.(values.FactRef); !ok {
		t.Fatalf("left is %T, wanted FactRef", cmp.Left)
	}
	lit, ok := cmp.Right.(values.Literal)
	if !ok || lit.Value.V.(int64) != 1000 {
		t.Fatalf("bad right side: %+v", cmp.Right)
	}
	// The bare produce form carries the default Bool(true) payload.
	pl, ok := rule.Produce.PayloadValue.(values.PayloadLiteral)
	if !ok || !pl.Value.Equal(values.TRUE) {
		t.Fatalf("bad payload: %+v", rule.Produce.PayloadValue)
	}
}

func TestDeserializeOperationWithoutPrecondition(t *testing.T) {
	contract := deserializeSource(t, `
persona applicant

entity Application {
  states: [draft, submitted]
  initial: draft
  transitions: [(draft, submitted)]
}

operation submit {
  allowed_personas: [applicant]
  effects: [(Application, draft, submitted)]
}
`)
	op, ok := contract.GetOperation("submit")
	if !ok {
		t.Fatal("operation not found")
	}
	lit, ok := op.Precondition.(values.Literal)
	if !ok || !lit.Value.Equal(values.TRUE) {
		t.Fatalf("null precondition should decode as true, got %+v", op.Precondition)
	}
	if len(op.Effects) != 1 || op.Effects[0].EntityId != "Application" {
		t.Fatalf("bad effects: %+v", op.Effects)
	}
	if len(contract.Personas) != 1 || contract.Personas[0] != "applicant" {
		t.Fatalf("bad personas: %v", contract.Personas)
	}
}

func TestDeserializeFlowSteps(t *testing.T) {
	contract := deserializeSource(t, `
persona clerk

entity Doc {
  states: [new, filed]
  initial: new
  transitions: [(new, filed)]
}

operation file_doc {
  allowed_personas: [clerk]
  effects: [(Doc, new, filed)]
}

flow filing {
  snapshot: frozen
  entry: start
  steps: {
    start: OperationStep {
      op: file_doc
      persona: clerk
      outcomes: { success: Terminal(filed) }
      on_failure: Terminate(rejected)
    }
  }
}
`)
	flow, ok := contract.GetFlow("filing")
	if !ok {
		t.Fatal("flow not found")
	}
	if flow.Snapshot != "frozen" || flow.Entry != "start" {
		t.Fatalf("bad flow header: %+v", flow)
	}
	step, ok := flow.GetStep("start")
	if !ok {
		t.Fatal("step not found")
	}
	opStep, ok := step.(values.OperationStep)
	if !ok {
		t.Fatalf("step is %T, wanted OperationStep", step)
	}
	target, ok := opStep.Outcomes["success"].(values.Terminal)
	if !ok || target.Outcome != "filed" {
		t.Fatalf("bad outcome target: %+v", opStep.Outcomes)
	}
	handler, ok := opStep.OnFailure.(values.Terminate)
	if !ok || handler.Outcome != "rejected" {
		t.Fatalf("bad failure handler: %+v", opStep.OnFailure)
	}
}

func TestDeserializeRejectsUnknownKind(t *testing.T) {
	_, err := interchange.Deserialize([]byte(`{"constructs":[{"kind":"Widget","id":"w"}],"id":"x","kind":"Bundle"}`))
	if err == nil {
		t.Fatal("wanted error")
	}
	if err.Message != "deserialization error: unknown construct kind: Widget" {
		t.Fatalf("wrong message: %s", err.Message)
	}
}
