package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/execution/plan"
	"github.com/animus-labs/trialflow/internal/execution/specvalidator"
	"github.com/animus-labs/trialflow/internal/flowapi"
	"github.com/animus-labs/trialflow/internal/flows"
	"github.com/animus-labs/trialflow/internal/platform/auth"
	"github.com/animus-labs/trialflow/internal/platform/httpserver"
	"github.com/animus-labs/trialflow/internal/platform/requestid"
	"github.com/animus-labs/trialflow/internal/repo"
	"github.com/animus-labs/trialflow/internal/service/launches"
)

type launcher interface {
	Launch(ctx context.Context, req launches.LaunchRequest) (launches.LaunchResult, error)
	Status(ctx context.Context, id string) (launches.ExecutionStatus, error)
	Refresh(ctx context.Context, id string) (launches.ExecutionStatus, error)
	Cancel(ctx context.Context, id, cause, actor string) (repo.ExecutionRecord, error)
	List(ctx context.Context, filter repo.ExecutionFilter) ([]repo.ExecutionRecord, error)
}

type trialflowAPI struct {
	logger   *slog.Logger
	settings flows.Settings
	svc      launcher
}

func newTrialflowAPI(logger *slog.Logger, settings flows.Settings, svc launcher) *trialflowAPI {
	return &trialflowAPI{logger: logger, settings: settings, svc: svc}
}

func (api *trialflowAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/flows", api.handleListFlows)
	mux.HandleFunc("GET /v1/flows/{name}/plan", api.handleGetPlan)
	mux.HandleFunc("POST /v1/flows/{name}/executions", api.handleLaunch)

	mux.HandleFunc("GET /v1/executions", api.handleListExecutions)
	mux.HandleFunc("GET /v1/executions/{id}", api.handleGetExecution)
	// {id}:refresh and {id}:cancel share one segment.
	mux.HandleFunc("POST /v1/executions/{action}", api.handleExecutionAction)
}

type launchRequest struct {
	Inputs         map[string]string `json:"inputs"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

type cancelRequest struct {
	Cause string `json:"cause,omitempty"`
}

func (api *trialflowAPI) handleListFlows(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"flows": catalogView()})
}

func (api *trialflowAPI) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	_, _, p, err := launches.CompileFlow(r.PathValue("name"), api.settings)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "json":
		raw, err := plan.MarshalDefinition(p)
		if err != nil {
			api.logger.Error("marshal definition", "error", err)
			httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	case "yaml":
		raw, err := plan.RenderYAML(p)
		if err != nil {
			api.logger.Error("render definition", "error", err)
			httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	default:
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_format")
	}
}

func (api *trialflowAPI) handleLaunch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	var req launchRequest
	if err := decodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	rid, _ := requestid.FromContext(r.Context())

	res, err := api.svc.Launch(r.Context(), launches.LaunchRequest{
		Flow:           r.PathValue("name"),
		Inputs:         req.Inputs,
		IdempotencyKey: key,
		Actor:          actor,
		RequestID:      rid,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/v1/executions/"+res.Execution.ID)
	httpserver.WriteJSON(w, status, executionFromLaunch(res))
}

func (api *trialflowAPI) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	filter := repo.ExecutionFilter{Flow: strings.TrimSpace(q.Get("flow")), Limit: limit}
	if raw := strings.TrimSpace(q.Get("phase")); raw != "" {
		filter.Phase = domain.NormalizePhase(raw)
		if filter.Phase == domain.PhaseUndefined {
			httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_phase")
			return
		}
	}
	records, err := api.svc.List(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]execution, 0, len(records))
	for _, rec := range records {
		out = append(out, executionFromRecord(rec))
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"executions": out})
}

func (api *trialflowAPI) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	st, err := api.svc.Status(r.Context(), id)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, executionFromStatus(st))
}

func (api *trialflowAPI) handleExecutionAction(w http.ResponseWriter, r *http.Request) {
	id, action, ok := strings.Cut(r.PathValue("action"), ":")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
		return
	}
	switch action {
	case "refresh":
		st, err := api.svc.Refresh(r.Context(), id)
		if err != nil {
			api.writeServiceError(w, r, err)
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, executionFromStatus(st))
	case "cancel":
		actor, ok := actorFromRequest(r)
		if !ok {
			httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		var req cancelRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		rec, err := api.svc.Cancel(r.Context(), id, req.Cause, actor)
		if err != nil {
			api.writeServiceError(w, r, err)
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, executionFromRecord(rec))
	default:
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
	}
}

func (api *trialflowAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *specvalidator.ValidationError
	switch {
	case errors.As(err, &verr):
		rid, _ := requestid.FromContext(r.Context())
		httpserver.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "invalid_request",
			"request_id": rid,
			"issues":     verr.Issues,
		})
	case errors.Is(err, launches.ErrUnknownFlow):
		httpserver.WriteError(w, r, http.StatusNotFound, "unknown_flow")
	case errors.Is(err, repo.ErrNotFound):
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrConflict):
		httpserver.WriteError(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, launches.ErrNotLaunched):
		httpserver.WriteError(w, r, http.StatusConflict, "not_launched")
	case flowapi.IsTemporary(err):
		api.logger.Warn("platform unavailable", "error", err)
		httpserver.WriteError(w, r, http.StatusBadGateway, "platform_unavailable")
	default:
		api.logger.Error("request failed", "path", r.URL.Path, "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func actorFromRequest(r *http.Request) (string, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return "", false
	}
	if email := strings.TrimSpace(identity.Email); email != "" {
		return email, true
	}
	subject := strings.TrimSpace(identity.Subject)
	return subject, subject != ""
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}
