package initializer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tenorlang/tenor/source/err"
)

func elaborateMem(t *testing.T, files map[string]string, root string) ([]byte, *err.Error) {
	t.Helper()
	return ElaborateWithProvider(root, NewInMemoryProvider(files))
}

func expectElabError(t *testing.T, files map[string]string, root, errorId string) *err.Error {
	t.Helper()
	_, e := elaborateMem(t, files, root)
	if e == nil {
		t.Fatalf("expected error %s, elaboration succeeded", errorId)
	}
	if e.ErrorId != errorId {
		t.Fatalf("expected error %s, got %s: %s", errorId, e.ErrorId, e.Error())
	}
	return e
}

func TestElaborateSimpleFact(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `fact is_active {
	type: Bool
	source: "service.active"
}`,
	}
	out, e := elaborateMem(t, files, "/contract/main.tenor")
	if e != nil {
		t.Fatalf("elaboration failed: %s", e.Error())
	}
	var bundle map[string]any
	if jsonErr := json.Unmarshal(out, &bundle); jsonErr != nil {
		t.Fatalf("bundle is not valid JSON: %v", jsonErr)
	}
	if bundle["id"] != "main" || bundle["kind"] != "Bundle" {
		t.Errorf("bad bundle header: id=%v kind=%v", bundle["id"], bundle["kind"])
	}
	constructs := bundle["constructs"].([]any)
	if len(constructs) != 1 {
		t.Fatalf("expected one construct, got %d", len(constructs))
	}
	fact := constructs[0].(map[string]any)
	if fact["kind"] != "Fact" || fact["id"] != "is_active" {
		t.Errorf("bad construct: %v", fact)
	}
}

func TestElaborateMissingFile(t *testing.T) {
	_, e := elaborateMem(t, map[string]string{}, "/missing.tenor")
	if e == nil {
		t.Fatal("expected an error for a missing root file")
	}
	if e.Pass != 1 {
		t.Errorf("expected pass 1, got %d", e.Pass)
	}
	if !strings.Contains(e.Error(), "cannot open file") {
		t.Errorf("unexpected message: %s", e.Error())
	}
}

func TestElaborateWithImport(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `import "types.tenor"

fact score {
	type: Int(0, 100)
	source: "svc.score"
}`,
		"/contract/types.tenor": `fact rate {
	type: Decimal(precision: 10, scale: 4)
	source: "svc.rate"
}`,
	}
	out, e := elaborateMem(t, files, "/contract/main.tenor")
	if e != nil {
		t.Fatalf("elaboration failed: %s", e.Error())
	}
	var bundle map[string]any
	if jsonErr := json.Unmarshal(out, &bundle); jsonErr != nil {
		t.Fatalf("bundle is not valid JSON: %v", jsonErr)
	}
	constructs := bundle["constructs"].([]any)
	if len(constructs) != 2 {
		t.Fatalf("expected both facts in the bundle, got %d constructs", len(constructs))
	}
}

func TestElaborateImportCycle(t *testing.T) {
	files := map[string]string{
		"/contract/a.tenor": `import "b.tenor"
persona P`,
		"/contract/b.tenor": `import "a.tenor"
persona Q`,
	}
	e := expectElabError(t, files, "/contract/a.tenor", "bundle/cycle")
	if !strings.Contains(e.Error(), "a.tenor → b.tenor → a.tenor") {
		t.Errorf("cycle chain missing from message: %s", e.Error())
	}
}

func TestElaborateImportEscape(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `import "../outside.tenor"
persona P`,
		"/outside.tenor": `persona Q`,
	}
	expectElabError(t, files, "/contract/main.tenor", "bundle/escape")
}

func TestElaborateImportSiblingPrefixEscape(t *testing.T) {
	// "/contract2" shares a byte prefix with the sandbox root "/contract"
	// but lies outside it.
	files := map[string]string{
		"/contract/main.tenor": `import "../contract2/lib.tenor"
persona P`,
		"/contract2/lib.tenor": `persona Q`,
	}
	expectElabError(t, files, "/contract/main.tenor", "bundle/escape")
}

func TestElaborateCrossFileDuplicate(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `import "lib.tenor"
persona Underwriter`,
		"/contract/lib.tenor": `persona Underwriter`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "bundle/dup")
	// The declaration closest to the root of the import graph counts as the
	// first one; the imported copy is the duplicate.
	if !strings.Contains(e.Error(), "main.tenor") {
		t.Errorf("expected main.tenor as first declaration: %s", e.Error())
	}
	if e.File != "lib.tenor" {
		t.Errorf("expected the duplicate to be located in lib.tenor, got %s", e.File)
	}
}

func TestElaborateTypeLibraryMayNotImport(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `import "types.tenor"
persona P`,
		"/contract/types.tenor": `import "more.tenor"
type Address {
	street: Text(max_length: 100)
}`,
		"/contract/more.tenor": `type Name {
	first: Text(max_length: 50)
}`,
	}
	expectElabError(t, files, "/contract/main.tenor", "bundle/typelib")
}

func TestElaborateDuplicateIdInFile(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `fact score {
	type: Int(0, 10)
	source: "a.b"
}
fact score {
	type: Int(0, 10)
	source: "c.d"
}`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "index/dup")
	if e.Pass != 2 {
		t.Errorf("expected pass 2, got %d", e.Pass)
	}
}

func TestElaborateTypeDeclCycle(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `type A {
	b: B
}
type B {
	a: A
}
persona P`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "types/cycle")
	if e.Pass != 3 {
		t.Errorf("expected pass 3, got %d", e.Pass)
	}
}

func TestElaborateUnknownTypeRef(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `fact address {
	type: Address
	source: "crm.address"
}`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "check/type/unknown/b")
	if e.Pass != 4 {
		t.Errorf("expected pass 4, got %d", e.Pass)
	}
}

func TestElaborateTypeRefResolution(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `type Address {
	street: Text(max_length: 100)
}
fact home {
	type: Address
	source: "crm.home"
}`,
	}
	out, e := elaborateMem(t, files, "/contract/main.tenor")
	if e != nil {
		t.Fatalf("elaboration failed: %s", e.Error())
	}
	var bundle map[string]any
	if jsonErr := json.Unmarshal(out, &bundle); jsonErr != nil {
		t.Fatalf("bundle is not valid JSON: %v", jsonErr)
	}
	fact := bundle["constructs"].([]any)[0].(map[string]any)
	factType := fact["type"].(map[string]any)
	if factType["base"] != "Record" {
		t.Errorf("TypeRef should resolve to the declared record, got %v", factType)
	}
}

func TestElaborateVerdictStratumViolation(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `fact income {
	type: Int(0, 1000000)
	source: "payroll.income"
}
rule base {
	stratum: 0
	when: income >= 3000
	produce: verdict IncomeOk
}
rule same_stratum {
	stratum: 0
	when: verdict_present(IncomeOk)
	produce: verdict Derived
}`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "validate/rule/verdict/b")
	if e.Pass != 5 {
		t.Errorf("expected pass 5, got %d", e.Pass)
	}
}

func TestElaborateStratification(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `fact income {
	type: Int(0, 1000000)
	source: "payroll.income"
}
rule base {
	stratum: 0
	when: income >= 3000
	produce: verdict IncomeOk
}
rule derived {
	stratum: 1
	when: verdict_present(IncomeOk)
	produce: verdict Eligible
}`,
	}
	if _, e := elaborateMem(t, files, "/contract/main.tenor"); e != nil {
		t.Fatalf("stratified verdict reference should elaborate: %s", e.Error())
	}
}

func TestElaborateUndeclaredTransition(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `entity Application {
	states: [draft, submitted]
	initial: draft
	transitions: [(draft, submitted)]
}
operation submit {
	allowed_personas: [Clerk]
	precondition: true = true
	effects: [(Application, submitted, draft)]
}`,
	}
	expectElabError(t, files, "/contract/main.tenor", "validate/op/transition")
}

func TestElaborateFlowStepCycle(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `flow pingpong {
	entry: a
	steps: {
		a: HandoffStep { from_persona: P to_persona: Q next: b }
		b: HandoffStep { from_persona: Q to_persona: P next: a }
	}
}`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "validate/flow/cycle")
	if !strings.Contains(e.Error(), "a, b") {
		t.Errorf("cyclic steps missing from message: %s", e.Error())
	}
}

func TestElaborateParallelEffectConflict(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `entity Doc {
	states: [pending, checked]
	initial: pending
	transitions: [(pending, checked)]
}
operation check_title {
	allowed_personas: [Clerk]
	precondition: true = true
	effects: [(Doc, pending, checked)]
}
operation check_survey {
	allowed_personas: [Clerk]
	precondition: true = true
	effects: [(Doc, pending, checked)]
}
flow checks {
	entry: fan_out
	steps: {
		fan_out: ParallelStep {
			branches: [
				Branch { id: title, entry: t1, steps: {
					t1: OperationStep { op: check_title persona: Clerk
						outcomes: { ok: Terminal(done) }
						on_failure: Terminate(failed) }
				} },
				Branch { id: survey, entry: s1, steps: {
					s1: OperationStep { op: check_survey persona: Clerk
						outcomes: { ok: Terminal(done) }
						on_failure: Terminate(failed) }
				} }
			]
			join: JoinPolicy {
				on_all_success: Terminal(done)
				on_any_failure: Terminate(failed)
			}
		}
	}
}`,
	}
	expectElabError(t, files, "/contract/main.tenor", "validate/flow/parallel/a")
}

const decisionContract = `entity Application {
	states: [pending, approved, declined]
	initial: pending
	transitions: [(pending, approved), (pending, declined)]
}
operation decide {
	allowed_personas: [Underwriter]
	precondition: true = true
	effects: [(Application, pending, approved, outcome: good),
		(Application, pending, declined, outcome: bad)]
	outcomes: [good, bad]
}
`

func TestElaborateUnroutedOutcome(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": decisionContract + `flow underwrite {
	entry: make_call
	steps: {
		make_call: OperationStep {
			op: decide
			persona: Underwriter
			outcomes: { good: Terminal(done) }
			on_failure: Terminate(failed)
		}
	}
}`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "validate/flow/outcome/a")
	if e.Pass != 5 {
		t.Errorf("expected pass 5, got %d", e.Pass)
	}
	if !strings.Contains(e.Error(), "'bad'") || !strings.Contains(e.Error(), "'decide'") {
		t.Errorf("omitted outcome missing from message: %s", e.Error())
	}
}

func TestElaborateUndeclaredOutcomeLabel(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": decisionContract + `flow underwrite {
	entry: make_call
	steps: {
		make_call: OperationStep {
			op: decide
			persona: Underwriter
			outcomes: {
				good: Terminal(done)
				bad: Terminal(declined)
				shrug: Terminal(unsure)
			}
			on_failure: Terminate(failed)
		}
	}
}`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "validate/flow/outcome/b")
	if !strings.Contains(e.Error(), "'shrug'") {
		t.Errorf("undeclared label missing from message: %s", e.Error())
	}
}

func TestElaborateSystemTriggerCycle(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `system Lending {
	members: [origination: "origination.tenor", servicing: "servicing.tenor"]
	triggers: [{
		source: origination.underwrite
		on: success
		target: servicing.board
		persona: Underwriter
	}, {
		source: servicing.board
		on: success
		target: origination.underwrite
		persona: Underwriter
	}]
}`,
	}
	e := expectElabError(t, files, "/contract/main.tenor", "validate/system/trigger/g")
	if !strings.Contains(e.Error(), "origination.underwrite") {
		t.Errorf("cycle rendering missing from message: %s", e.Error())
	}
}

func TestElaborateDeterministic(t *testing.T) {
	files := map[string]string{
		"/contract/main.tenor": `persona Underwriter
fact income {
	type: Money(currency: "USD")
	source: "payroll.income"
}
rule income_ok {
	stratum: 0
	when: income >= Money { amount: "3000.00", currency: "USD" }
	produce: verdict IncomeOk
}`,
	}
	first, e := elaborateMem(t, files, "/contract/main.tenor")
	if e != nil {
		t.Fatalf("elaboration failed: %s", e.Error())
	}
	for i := 0; i < 5; i++ {
		next, e := elaborateMem(t, files, "/contract/main.tenor")
		if e != nil {
			t.Fatalf("elaboration failed: %s", e.Error())
		}
		if !bytes.Equal(first, next) {
			t.Fatalf("elaboration is not byte-deterministic:\n%s\n%s", first, next)
		}
	}
}
