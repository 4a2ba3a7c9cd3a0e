// Package serve puts the service layer behind an HTTP API: elaboration
// of posted source, rule evaluation, flow execution, and explanation,
// all against contracts elaborated at startup or posted at runtime.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tenorlang/tenor/source/evaluator"
	"github.com/tenorlang/tenor/source/service"
	"github.com/tenorlang/tenor/source/storage"
	"github.com/tenorlang/tenor/source/text"
)

const DEFAULT_ADDR = "localhost:8080"

// Bodies above this size are rejected outright.
const MAX_BODY_BYTES = 10 << 20

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// NewRouter builds the API over an existing service.
func NewRouter(sv *service.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			req.Body = http.MaxBytesReader(w, req.Body, MAX_BODY_BYTES)
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		WriteJSON(w, 200, map[string]any{"status": "ok", "version": text.VERSION})
	})

	r.Get("/contracts", func(w http.ResponseWriter, req *http.Request) {
		WriteJSON(w, 200, map[string]any{"request_id": NewRequestID(), "contracts": sv.Ids()})
	})

	r.Get("/contracts/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		lc, ok := sv.Get(id)
		if !ok {
			WriteError(w, 404, "NOT_FOUND", "contract '"+id+"' not loaded", nil)
			return
		}
		// The bundle is already canonical JSON: serve the bytes as
		// elaborated so they stay byte-identical.
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write(lc.Bundle)
	})

	r.Get("/contracts/{id}/operations", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		ops, err := sv.Operations(id)
		if err != nil {
			WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteJSON(w, 200, map[string]any{"request_id": NewRequestID(), "operations": ops})
	})

	r.Get("/contracts/{id}/flows", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		flows, err := sv.Flows(id)
		if err != nil {
			WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteJSON(w, 200, map[string]any{"request_id": NewRequestID(), "flows": flows})
	})

	r.Post("/elaborate", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Filename string `json:"filename"`
			Source   string `json:"source"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		if body.Source == "" {
			WriteError(w, 400, "BAD_REQUEST", "no 'source' field in request", nil)
			return
		}
		if body.Filename == "" {
			body.Filename = "contract.tenor"
		}
		lc, errs := sv.LoadSource(body.Filename, body.Source)
		if len(errs) > 0 {
			WriteJSON(w, 422, map[string]any{"request_id": NewRequestID(), "errors": errs})
			return
		}
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write(lc.Bundle)
	})

	r.Post("/evaluate", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ContractId string          `json:"contract_id"`
			Facts      json.RawMessage `json:"facts"`
			Flow       string          `json:"flow"`
			Persona    string          `json:"persona"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		facts, err := service.ParseFacts(body.Facts)
		if err != nil {
			WriteError(w, 400, "BAD_FACTS", err.Error(), nil)
			return
		}
		if body.Flow == "" {
			result, evalErr := sv.EvaluateRules(body.ContractId, facts)
			if evalErr != nil {
				WriteError(w, 422, "EVAL_ERROR", evalErr.Message, nil)
				return
			}
			WriteJSON(w, 200, map[string]any{
				"request_id": NewRequestID(),
				"verdicts":   result.Verdicts.ToJSON()["verdicts"],
			})
			return
		}
		result, evalErr := sv.ExecuteFlow(body.ContractId, facts, body.Flow, body.Persona)
		if evalErr != nil {
			WriteError(w, 422, "EVAL_ERROR", evalErr.Message, nil)
			return
		}
		executionId, dbErr := sv.RecordFlowExecution(req.Context(), body.ContractId, body.Flow, result)
		if dbErr != nil {
			WriteError(w, 500, "DB_ERROR", dbErr.Error(), nil)
			return
		}
		resp := map[string]any{
			"request_id": NewRequestID(),
			"verdicts":   result.Verdicts.ToJSON()["verdicts"],
			"flow":       flowResultJSON(result),
		}
		if executionId != "" {
			resp["execution_id"] = executionId
		}
		WriteJSON(w, 200, resp)
	})

	r.Get("/executions/{id}", func(w http.ResponseWriter, req *http.Request) {
		st := sv.Store()
		if st == nil {
			WriteError(w, 404, "NOT_FOUND", "no storage configured", nil)
			return
		}
		id := chi.URLParam(req, "id")
		fe, dbErr := st.GetFlowExecution(req.Context(), id)
		if errors.Is(dbErr, storage.ErrNotFound) {
			WriteError(w, 404, "NOT_FOUND", "execution '"+id+"' not found", nil)
			return
		}
		if dbErr != nil {
			WriteError(w, 500, "DB_ERROR", dbErr.Error(), nil)
			return
		}
		WriteJSON(w, 200, map[string]any{
			"request_id":  NewRequestID(),
			"id":          fe.Id,
			"contract_id": fe.ContractId,
			"flow_id":     fe.FlowId,
			"persona":     fe.Persona,
			"outcome":     fe.Outcome,
			"snapshot":    json.RawMessage(fe.Snapshot),
			"steps":       json.RawMessage(fe.Steps),
			"executed_at": fe.ExecutedAt,
		})
	})

	r.Post("/explain", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ContractId string          `json:"contract_id"`
			Facts      json.RawMessage `json:"facts"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		facts, err := service.ParseFacts(body.Facts)
		if err != nil {
			WriteError(w, 400, "BAD_FACTS", err.Error(), nil)
			return
		}
		explained, evalErr := sv.Explain(body.ContractId, facts)
		if evalErr != nil {
			WriteError(w, 422, "EVAL_ERROR", evalErr.Message, nil)
			return
		}
		WriteJSON(w, 200, map[string]any{
			"request_id": NewRequestID(),
			"verdicts":   explained["verdicts"],
		})
	})

	return r
}

func flowResultJSON(result *evaluator.FlowEvalResult) map[string]any {
	fr := result.FlowResult
	steps := make([]any, 0, len(fr.StepsExecuted))
	for _, s := range fr.StepsExecuted {
		bindings := map[string]any{}
		for k, v := range s.InstanceBindings {
			bindings[k] = v
		}
		steps = append(steps, map[string]any{
			"step_id":           s.StepId,
			"step_type":         s.StepType,
			"result":            s.Result,
			"instance_bindings": bindings,
		})
	}
	changes := make([]any, 0, len(fr.EntityStateChanges))
	for _, c := range fr.EntityStateChanges {
		changes = append(changes, map[string]any{
			"entity": c.EntityId, "instance": c.InstanceId,
			"from": c.FromState, "to": c.ToState,
		})
	}
	return map[string]any{
		"outcome":              fr.Outcome,
		"initiating_persona":   fr.InitiatingPersona,
		"steps_executed":       steps,
		"entity_state_changes": changes,
	}
}

// Serve runs the API until the process is interrupted, then shuts down
// gracefully.
func Serve(addr string, sv *service.Service) error {
	server := &http.Server{Addr: addr, Handler: NewRouter(sv)}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
