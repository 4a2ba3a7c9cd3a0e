package service_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tenorlang/tenor/source/service"
	"github.com/tenorlang/tenor/source/storage"
)

const underwriteSource = `
persona Underwriter

fact income_ok {
	type: Bool
	source: "underwriting.income"
}

entity Application {
	states: [submitted, approved, rejected]
	initial: submitted
	transitions: [(submitted, approved), (submitted, rejected)]
}

rule income_check {
	stratum: 0
	when: income_ok = true
	produce: verdict IncomeOk
}

operation approve {
	allowed_personas: [Underwriter]
	precondition: verdict_present(IncomeOk)
	effects: [(Application, submitted, approved)]
	outcomes: [approved]
}

operation reject {
	allowed_personas: [Underwriter]
	precondition: true
	effects: [(Application, submitted, rejected)]
	outcomes: [rejected]
}

flow underwrite {
	snapshot: frozen
	entry: check_income
	steps: {
		check_income: BranchStep {
			condition: verdict_present(IncomeOk)
			persona: Underwriter
			if_true: do_approve
			if_false: do_reject
		}
		do_approve: OperationStep {
			op: approve
			persona: Underwriter
			outcomes: { approved: Terminal(done) }
			on_failure: Terminate(failed)
		}
		do_reject: OperationStep {
			op: reject
			persona: Underwriter
			outcomes: { rejected: Terminal(declined) }
			on_failure: Terminate(failed)
		}
	}
}
`

func loadUnderwrite(t *testing.T) *service.Service {
	t.Helper()
	sv := service.NewService()
	lc, errs := sv.LoadSource("underwrite.tenor", underwriteSource)
	if errs != nil {
		t.Fatalf("load: %v", errs)
	}
	if lc.Id != "underwrite" {
		t.Fatalf("bad bundle id: %s", lc.Id)
	}
	return sv
}

func TestLoadSourceAndIds(t *testing.T) {
	sv := loadUnderwrite(t)
	ids := sv.Ids()
	if len(ids) != 1 || ids[0] != "underwrite" {
		t.Fatalf("bad ids: %v", ids)
	}
	lc, ok := sv.Get("underwrite")
	if !ok || len(lc.Bundle) == 0 || lc.Runtime == nil {
		t.Fatal("contract not registered")
	}
}

func TestLoadSourceParseErrors(t *testing.T) {
	sv := service.NewService()
	_, errs := sv.LoadSource("bad.tenor", `
fact one {
	source: "a.b"
}

fact two {
	source: "c.d"
}
`)
	// Both facts are missing their type: recovery should surface both.
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
}

func TestOperationsListing(t *testing.T) {
	sv := loadUnderwrite(t)
	ops, listErr := sv.Operations("underwrite")
	if listErr != nil {
		t.Fatalf("operations: %v", listErr)
	}
	if len(ops) != 2 {
		t.Fatalf("bad operation count: %d", len(ops))
	}
	byId := map[string]service.OperationInfo{}
	for _, op := range ops {
		byId[op.Id] = op
	}
	approve := byId["approve"]
	if len(approve.Personas) != 1 || approve.Personas[0] != "Underwriter" {
		t.Errorf("bad personas: %v", approve.Personas)
	}
	if len(approve.Outcomes) != 1 || approve.Outcomes[0] != "approved" {
		t.Errorf("bad outcomes: %v", approve.Outcomes)
	}
	if _, listErr := sv.Operations("nope"); listErr == nil {
		t.Error("expected error for unknown contract")
	}
}

func TestFlowsListing(t *testing.T) {
	sv := loadUnderwrite(t)
	flows, listErr := sv.Flows("underwrite")
	if listErr != nil {
		t.Fatalf("flows: %v", listErr)
	}
	if len(flows) != 1 || flows[0].Id != "underwrite" || flows[0].Entry != "check_income" || flows[0].Steps != 3 {
		t.Fatalf("bad flow info: %+v", flows)
	}
}

func TestEvaluateRules(t *testing.T) {
	sv := loadUnderwrite(t)
	facts, _ := service.ParseFacts([]byte(`{"income_ok": true}`))
	result, evalErr := sv.EvaluateRules("underwrite", facts)
	if evalErr != nil {
		t.Fatalf("evaluate: %s", evalErr.Message)
	}
	if !result.Verdicts.HasVerdict("IncomeOk") {
		t.Error("missing verdict IncomeOk")
	}
	if _, evalErr := sv.EvaluateRules("nope", facts); evalErr == nil {
		t.Error("expected error for unknown contract")
	}
}

func TestExecuteFlow(t *testing.T) {
	sv := loadUnderwrite(t)
	facts, _ := service.ParseFacts([]byte(`{"income_ok": true}`))
	result, evalErr := sv.ExecuteFlow("underwrite", facts, "underwrite", "Underwriter")
	if evalErr != nil {
		t.Fatalf("execute flow: %s", evalErr.Message)
	}
	if result.FlowResult.Outcome != "done" {
		t.Errorf("bad outcome: %s", result.FlowResult.Outcome)
	}
	if result.FlowResult.InitiatingPersona != "Underwriter" {
		t.Errorf("bad persona: %s", result.FlowResult.InitiatingPersona)
	}
}

func TestExplain(t *testing.T) {
	sv := loadUnderwrite(t)
	facts, _ := service.ParseFacts([]byte(`{"income_ok": true}`))
	explained, evalErr := sv.Explain("underwrite", facts)
	if evalErr != nil {
		t.Fatalf("explain: %s", evalErr.Message)
	}
	verdicts, ok := explained["verdicts"].([]any)
	if !ok || len(verdicts) != 1 {
		t.Fatalf("bad explain shape: %v", explained)
	}
	first := verdicts[0].(map[string]any)
	if first["type"] != "IncomeOk" {
		t.Errorf("bad verdict: %v", first)
	}
	prov := first["provenance"].(map[string]any)
	if prov["rule"] != "income_check" {
		t.Errorf("bad provenance: %v", prov)
	}
}

func TestLoadBundleRoundTrip(t *testing.T) {
	sv := loadUnderwrite(t)
	lc, _ := sv.Get("underwrite")

	other := service.NewService()
	loaded, loadErr := other.LoadBundle(lc.Bundle)
	if loadErr != nil {
		t.Fatalf("load bundle: %s", loadErr.Message)
	}
	if loaded.Id != "underwrite" {
		t.Errorf("bad id: %s", loaded.Id)
	}
}

func TestLoadBundleRejectsGarbage(t *testing.T) {
	sv := service.NewService()
	_, loadErr := sv.LoadBundle([]byte(`{"tenor_version": "1.0"}`))
	if loadErr == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(loadErr.Message, "cannot load bundle") {
		t.Errorf("wrong error: %s", loadErr.Message)
	}
}

func TestUnload(t *testing.T) {
	sv := loadUnderwrite(t)
	if !sv.Unload("underwrite") {
		t.Fatal("unload failed")
	}
	if sv.Unload("underwrite") {
		t.Fatal("double unload reported success")
	}
	if len(sv.Ids()) != 0 {
		t.Fatal("contract still listed")
	}
}

func TestParseFactsPreservesNumbers(t *testing.T) {
	facts, parseErr := service.ParseFacts([]byte(`{"n": 9007199254740993}`))
	if parseErr != nil {
		t.Fatalf("parse: %v", parseErr)
	}
	m := facts.(map[string]any)
	if m["n"].(json.Number).String() != "9007199254740993" {
		t.Errorf("precision lost: %v", m["n"])
	}
	if _, parseErr := service.ParseFacts([]byte(`{`)); parseErr == nil {
		t.Error("expected error")
	}
}

func TestRecordFlowExecutionWithoutStore(t *testing.T) {
	sv := loadUnderwrite(t)
	facts, _ := service.ParseFacts([]byte(`{"income_ok": true}`))
	result, evalErr := sv.ExecuteFlow("underwrite", facts, "underwrite", "Underwriter")
	if evalErr != nil {
		t.Fatalf("execute: %s", evalErr.Message)
	}
	id, dbErr := sv.RecordFlowExecution(context.Background(), "underwrite", "underwrite", result)
	if dbErr != nil || id != "" {
		t.Fatalf("storeless recording should be a no-op: %q %v", id, dbErr)
	}
}

func TestRecordFlowExecutionPersists(t *testing.T) {
	sv := loadUnderwrite(t)
	db, openErr := sql.Open("sqlite", ":memory:")
	if openErr != nil {
		t.Fatalf("open: %v", openErr)
	}
	// A second pooled connection would see its own empty in-memory DB.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	st := storage.NewStore(db, "SQLite")
	if initErr := st.Init(context.Background()); initErr != nil {
		t.Fatalf("init: %v", initErr)
	}
	sv.SetStore(st)
	if sv.Store() != st {
		t.Fatal("store not attached")
	}

	facts, _ := service.ParseFacts([]byte(`{"income_ok": true}`))
	result, evalErr := sv.ExecuteFlow("underwrite", facts, "underwrite", "Underwriter")
	if evalErr != nil {
		t.Fatalf("execute: %s", evalErr.Message)
	}
	id, dbErr := sv.RecordFlowExecution(context.Background(), "underwrite", "underwrite", result)
	if dbErr != nil {
		t.Fatalf("record: %v", dbErr)
	}
	if id == "" {
		t.Fatal("no execution id")
	}

	fe, getErr := st.GetFlowExecution(context.Background(), id)
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if fe.ContractId != "underwrite" || fe.FlowId != "underwrite" || fe.Outcome != "done" {
		t.Fatalf("bad row: %+v", fe)
	}
	var snap map[string]any
	if jsonErr := json.Unmarshal([]byte(fe.Snapshot), &snap); jsonErr != nil {
		t.Fatalf("bad snapshot JSON: %v", jsonErr)
	}
	if snap["facts"].(map[string]any)["income_ok"] != true {
		t.Errorf("bad frozen facts: %v", snap["facts"])
	}
}
