package storage_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/tenorlang/tenor/source/evaluator"
	"github.com/tenorlang/tenor/source/storage"
	"github.com/tenorlang/tenor/source/values"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
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
	return st
}

func TestEntityStateLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, getErr := st.GetEntityState(ctx, "loan", "Application", "app-1"); getErr != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", getErr)
	}

	created, putErr := st.PutEntityState(ctx, "loan", "Application", "app-1", "submitted")
	if putErr != nil {
		t.Fatalf("put: %v", putErr)
	}
	if created.Version != 1 || created.Id == "" {
		t.Fatalf("bad row: %+v", created)
	}

	if updErr := st.UpdateEntityState(ctx, "loan", "Application", "app-1", "approved", 1); updErr != nil {
		t.Fatalf("update: %v", updErr)
	}
	read, getErr := st.GetEntityState(ctx, "loan", "Application", "app-1")
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if read.State != "approved" || read.Version != 2 {
		t.Fatalf("bad state after update: %+v", read)
	}
}

func TestUpdateEntityStateVersionConflict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, putErr := st.PutEntityState(ctx, "loan", "Application", "app-1", "submitted"); putErr != nil {
		t.Fatalf("put: %v", putErr)
	}
	if updErr := st.UpdateEntityState(ctx, "loan", "Application", "app-1", "approved", 1); updErr != nil {
		t.Fatalf("first update: %v", updErr)
	}
	// A second writer still holding version 1 must lose.
	updErr := st.UpdateEntityState(ctx, "loan", "Application", "app-1", "rejected", 1)
	if updErr != storage.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict, got %v", updErr)
	}
}

func TestRecordOperation(t *testing.T) {
	st := newTestStore(t)
	result := &evaluator.OperationResult{
		Outcome: "approved",
		EffectsApplied: []evaluator.EffectRecord{
			{EntityId: "Application", InstanceId: "_default", FromState: "submitted", ToState: "approved"},
		},
		Provenance: evaluator.OperationProvenance{
			OperationId: "approve",
			Persona:     "Underwriter",
		},
	}
	id, recErr := st.RecordOperation(context.Background(), "loan", result)
	if recErr != nil {
		t.Fatalf("record: %v", recErr)
	}
	if id == "" {
		t.Fatal("no row id")
	}
}

func TestRecordAndGetFlowExecution(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	facts := values.NewFactSet()
	facts.Insert("income_ok", values.TRUE)
	verdicts := values.NewVerdictSet()
	verdicts.Push(values.VerdictInstance{
		VerdictType: "IncomeOk",
		Payload:     values.TRUE,
		Provenance:  values.VerdictProvenance{RuleId: "income_check", FactsUsed: []string{"income_ok"}},
	})
	snapshot := &evaluator.Snapshot{Facts: facts, Verdicts: verdicts}
	result := &evaluator.FlowResult{
		Outcome:           "done",
		InitiatingPersona: "Underwriter",
		StepsExecuted: []evaluator.StepRecord{
			{StepId: "do_approve", StepType: "operation", Result: "approved",
				InstanceBindings: evaluator.InstanceBindingMap{"Application": "_default"}},
		},
		EntityStateChanges: []evaluator.EffectRecord{
			{EntityId: "Application", InstanceId: "_default", FromState: "submitted", ToState: "approved"},
		},
	}

	id, recErr := st.RecordFlow(ctx, "loan", "underwrite", snapshot, result)
	if recErr != nil {
		t.Fatalf("record: %v", recErr)
	}

	fe, getErr := st.GetFlowExecution(ctx, id)
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if fe.FlowId != "underwrite" || fe.Outcome != "done" || fe.Persona != "Underwriter" {
		t.Fatalf("bad row: %+v", fe)
	}

	var snap map[string]any
	if jsonErr := json.Unmarshal([]byte(fe.Snapshot), &snap); jsonErr != nil {
		t.Fatalf("bad snapshot JSON: %v", jsonErr)
	}
	snapFacts := snap["facts"].(map[string]any)
	if snapFacts["income_ok"] != true {
		t.Errorf("bad frozen facts: %v", snapFacts)
	}

	var steps []map[string]any
	if jsonErr := json.Unmarshal([]byte(fe.Steps), &steps); jsonErr != nil {
		t.Fatalf("bad steps JSON: %v", jsonErr)
	}
	if len(steps) != 1 || steps[0]["step_id"] != "do_approve" {
		t.Errorf("bad steps: %v", steps)
	}

	if _, getErr := st.GetFlowExecution(ctx, "no-such-id"); getErr != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", getErr)
	}
}

func TestRecordProvenance(t *testing.T) {
	st := newTestStore(t)
	verdicts := values.NewVerdictSet()
	verdicts.Push(values.VerdictInstance{
		VerdictType: "IncomeOk",
		Payload:     values.TRUE,
		Provenance: values.VerdictProvenance{
			RuleId: "income_check", Stratum: 0, FactsUsed: []string{"income_ok"},
		},
	})
	if recErr := st.RecordProvenance(context.Background(), "loan", verdicts); recErr != nil {
		t.Fatalf("record: %v", recErr)
	}
}

func TestGetSortedDrivers(t *testing.T) {
	dr := storage.GetSortedDrivers()
	if len(dr) != 6 {
		t.Fatalf("bad driver count: %v", dr)
	}
	if dr[0] != "Firebird SQL" || dr[5] != "SQLite" {
		t.Fatalf("bad order: %v", dr)
	}
}
