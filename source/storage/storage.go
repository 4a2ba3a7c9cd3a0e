// Package storage persists what an execution host needs to remember
// between evaluations: entity instance states, flow executions with
// their frozen snapshots, operation executions, entity transitions, and
// verdict provenance. Everything goes through database/sql so the host
// can sit on whichever database the installation already has.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tenorlang/tenor/source/evaluator"
	"github.com/tenorlang/tenor/source/values"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql"  // MariaDB & MySQL
	_ "github.com/lib/pq"               // Postgres
	_ "github.com/nakagami/firebirdsql" // Firebird
	_ "github.com/sijms/go-ora"         // Oracle
	_ "modernc.org/sqlite"              // SQLite
)

var drivers = map[string]string{"Firebird SQL": "firebirdsql", "MariaDB": "mysql", "MySQL": "mysql",
	"Oracle": "oracle", "Postgres": "postgres", "SQLite": "sqlite"}

// numberedPlaceholders says which drivers want $1, $2, ... instead of ?.
var numberedPlaceholders = map[string]bool{"postgres": true, "oracle": true}

// ErrVersionConflict is returned when an entity-state update loses an
// optimistic-concurrency race: someone else moved the instance on from
// the version the caller read.
var ErrVersionConflict = errors.New("storage: entity state version conflict")

// ErrNotFound is returned when the row a caller asked for is not there.
var ErrNotFound = errors.New("storage: not found")

// GetDB opens and pings a database by its human-readable driver name.
func GetDB(driver, host, port, db, user, password string) (*sql.DB, error) {
	name, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
	connectionString := fmt.Sprintf("host=%v port=%v dbname=%v user=%v password=%v sslmode=disable",
		host, port, db, user, password)
	sqlObj, connectionError := sql.Open(name, connectionString)
	if connectionError != nil {
		return nil, connectionError
	}
	if err := sqlObj.Ping(); err != nil {
		return nil, err
	}
	return sqlObj, nil
}

// GetSortedDrivers lists the supported driver names for the hub's
// config prompts.
func GetSortedDrivers() []string {
	dr := []string{}
	for k := range drivers {
		dr = append(dr, k)
	}
	sort.Strings(dr)
	return dr
}

// A Store wraps a database handle with the driver name so queries can
// be written once and rebound per placeholder style.
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps an already-open handle. The driver name must be one of
// the keys of the drivers map.
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: drivers[driver]}
}

// Open opens, pings, and wraps a database in one call.
func Open(driver, host, port, dbName, user, password string) (*Store, error) {
	db, err := GetDB(driver, host, port, dbName, user, password)
	if err != nil {
		return nil, err
	}
	return NewStore(db, driver), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into $1, $2, ... for the drivers that
// want them numbered.
func (s *Store) rebind(query string) string {
	if !numberedPlaceholders[s.driver] {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
		} else {
			out = append(out, query[i])
		}
	}
	return string(out)
}

const schema = `CREATE TABLE IF NOT EXISTS entity_states (
    id varchar(36),
    contract_id varchar(128),
    entity_id varchar(128),
    instance_id varchar(128),
    state varchar(128),
    version integer,
    updated_at timestamp,
PRIMARY KEY (contract_id, entity_id, instance_id));

CREATE TABLE IF NOT EXISTS flow_executions (
    id varchar(36),
    contract_id varchar(128),
    flow_id varchar(128),
    persona varchar(128),
    outcome varchar(128),
    snapshot_json text,
    steps_json text,
    executed_at timestamp,
PRIMARY KEY (id));

CREATE TABLE IF NOT EXISTS operation_executions (
    id varchar(36),
    contract_id varchar(128),
    operation_id varchar(128),
    persona varchar(128),
    outcome varchar(128),
    effects_json text,
    executed_at timestamp,
PRIMARY KEY (id));

CREATE TABLE IF NOT EXISTS entity_transitions (
    id varchar(36),
    contract_id varchar(128),
    entity_id varchar(128),
    instance_id varchar(128),
    from_state varchar(128),
    to_state varchar(128),
    recorded_at timestamp,
PRIMARY KEY (id));

CREATE TABLE IF NOT EXISTS provenance_records (
    id varchar(36),
    contract_id varchar(128),
    verdict_type varchar(128),
    rule_id varchar(128),
    stratum integer,
    facts_used text,
    verdicts_used text,
    recorded_at timestamp,
PRIMARY KEY (id));`

// Init creates the tables if they are not already there.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// An EntityState row is one entity instance's current state plus the
// version used for optimistic concurrency.
type EntityState struct {
	Id         string
	ContractId string
	EntityId   string
	InstanceId string
	State      string
	Version    int64
	UpdatedAt  time.Time
}

// GetEntityState reads the current state row for one instance.
func (s *Store) GetEntityState(ctx context.Context, contractId, entityId, instanceId string) (*EntityState, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, contract_id, entity_id, instance_id, state, version, updated_at
		 FROM entity_states WHERE contract_id = ? AND entity_id = ? AND instance_id = ?`),
		contractId, entityId, instanceId)
	es := &EntityState{}
	err := row.Scan(&es.Id, &es.ContractId, &es.EntityId, &es.InstanceId, &es.State, &es.Version, &es.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return es, nil
}

// PutEntityState inserts an instance in its initial state at version 1.
func (s *Store) PutEntityState(ctx context.Context, contractId, entityId, instanceId, state string) (*EntityState, error) {
	es := &EntityState{
		Id:         uuid.NewString(),
		ContractId: contractId,
		EntityId:   entityId,
		InstanceId: instanceId,
		State:      state,
		Version:    1,
		UpdatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO entity_states (id, contract_id, entity_id, instance_id, state, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		es.Id, es.ContractId, es.EntityId, es.InstanceId, es.State, es.Version, es.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return es, nil
}

// UpdateEntityState moves an instance to a new state, but only if nobody
// else has touched it since the caller read fromVersion. A lost race is
// ErrVersionConflict, and the caller should re-read and retry.
func (s *Store) UpdateEntityState(ctx context.Context, contractId, entityId, instanceId, newState string, fromVersion int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE entity_states SET state = ?, version = ?, updated_at = ?
		 WHERE contract_id = ? AND entity_id = ? AND instance_id = ? AND version = ?`),
		newState, fromVersion+1, time.Now().UTC(),
		contractId, entityId, instanceId, fromVersion)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// RecordTransition appends one entity state transition to the audit log.
func (s *Store) RecordTransition(ctx context.Context, contractId string, effect evaluator.EffectRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO entity_transitions (id, contract_id, entity_id, instance_id, from_state, to_state, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), contractId, effect.EntityId, effect.InstanceId,
		effect.FromState, effect.ToState, time.Now().UTC())
	return err
}

// RecordOperation persists one operation execution with its effects.
func (s *Store) RecordOperation(ctx context.Context, contractId string, result *evaluator.OperationResult) (string, error) {
	effectsJSON, err := json.Marshal(effectsToJSON(result.EffectsApplied))
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO operation_executions (id, contract_id, operation_id, persona, outcome, effects_json, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, contractId, result.Provenance.OperationId, result.Provenance.Persona,
		result.Outcome, string(effectsJSON), time.Now().UTC())
	if err != nil {
		return "", err
	}
	for _, effect := range result.EffectsApplied {
		if err := s.RecordTransition(ctx, contractId, effect); err != nil {
			return "", err
		}
	}
	return id, nil
}

// RecordFlow persists one flow execution together with the frozen
// snapshot it ran against, so a run can be audited long after the
// facts have moved on.
func (s *Store) RecordFlow(ctx context.Context, contractId, flowId string,
	snapshot *evaluator.Snapshot, result *evaluator.FlowResult) (string, error) {

	snapshotJSON, err := json.Marshal(snapshotToJSON(snapshot))
	if err != nil {
		return "", err
	}
	stepsJSON, err := json.Marshal(stepsToJSON(result.StepsExecuted))
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO flow_executions (id, contract_id, flow_id, persona, outcome, snapshot_json, steps_json, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		id, contractId, flowId, result.InitiatingPersona, result.Outcome,
		string(snapshotJSON), string(stepsJSON), time.Now().UTC())
	if err != nil {
		return "", err
	}
	for _, effect := range result.EntityStateChanges {
		if err := s.RecordTransition(ctx, contractId, effect); err != nil {
			return "", err
		}
	}
	return id, nil
}

// RecordProvenance persists the provenance of every verdict produced by
// one evaluation.
func (s *Store) RecordProvenance(ctx context.Context, contractId string, verdicts *values.VerdictSet) error {
	for _, v := range verdicts.All() {
		factsUsed, err := json.Marshal(v.Provenance.FactsUsed)
		if err != nil {
			return err
		}
		verdictsUsed, err := json.Marshal(v.Provenance.VerdictsUsed)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, s.rebind(
			`INSERT INTO provenance_records (id, contract_id, verdict_type, rule_id, stratum, facts_used, verdicts_used, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			uuid.NewString(), contractId, v.VerdictType, v.Provenance.RuleId,
			v.Provenance.Stratum, string(factsUsed), string(verdictsUsed), time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return nil
}

// A FlowExecution row is one persisted flow run.
type FlowExecution struct {
	Id         string
	ContractId string
	FlowId     string
	Persona    string
	Outcome    string
	Snapshot   string
	Steps      string
	ExecutedAt time.Time
}

// GetFlowExecution reads one persisted flow run by id.
func (s *Store) GetFlowExecution(ctx context.Context, id string) (*FlowExecution, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, contract_id, flow_id, persona, outcome, snapshot_json, steps_json, executed_at
		 FROM flow_executions WHERE id = ?`), id)
	fe := &FlowExecution{}
	err := row.Scan(&fe.Id, &fe.ContractId, &fe.FlowId, &fe.Persona, &fe.Outcome,
		&fe.Snapshot, &fe.Steps, &fe.ExecutedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fe, nil
}

func effectsToJSON(effects []evaluator.EffectRecord) []map[string]any {
	out := make([]map[string]any, len(effects))
	for i, e := range effects {
		out[i] = map[string]any{
			"entity":   e.EntityId,
			"instance": e.InstanceId,
			"from":     e.FromState,
			"to":       e.ToState,
		}
	}
	return out
}

func stepsToJSON(steps []evaluator.StepRecord) []map[string]any {
	out := make([]map[string]any, len(steps))
	for i, s := range steps {
		bindings := map[string]any{}
		for k, v := range s.InstanceBindings {
			bindings[k] = v
		}
		out[i] = map[string]any{
			"step_id":           s.StepId,
			"step_type":         s.StepType,
			"result":            s.Result,
			"instance_bindings": bindings,
		}
	}
	return out
}

func snapshotToJSON(snapshot *evaluator.Snapshot) map[string]any {
	facts := map[string]any{}
	for _, id := range snapshot.Facts.Ids() {
		v, _ := snapshot.Facts.Get(id)
		facts[id] = v.ToJSON()
	}
	return map[string]any{
		"facts":    facts,
		"verdicts": snapshot.Verdicts.ToJSON()["verdicts"],
	}
}
