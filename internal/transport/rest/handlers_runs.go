package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/loader"
	"github.com/smilemakc/avtrace/internal/store"
)

// RunStore is the persistence surface the REST layer needs, satisfied by
// *store.BunStore. Declared here, rather than depending on the store
// package's concrete type, so handlers stay testable against a fake.
type RunStore interface {
	SaveRun(ctx context.Context, id uuid.UUID, taskName string, result *domain.VerifyResult, matchedJSON []byte) error
	GetRun(ctx context.Context, id uuid.UUID) (*store.RunModel, error)
	ListDecisionLogs(ctx context.Context, runID uuid.UUID) ([]*store.DecisionLogModel, error)
}

// CreateRunRequest points the engine at a task spec and a recorded trace
// directory already present on the server's filesystem — this front door
// is a local debugging tool, not a file-upload API.
type CreateRunRequest struct {
	TaskPath string `json:"task_path"`
	TraceDir string `json:"trace_dir"`
}

// RunResponse is the JSON shape returned for a completed run.
type RunResponse struct {
	ID                 string             `json:"id"`
	TaskName           string             `json:"task_name"`
	OK                 bool               `json:"ok"`
	Matched            []domain.NodeMatch `json:"matched,omitempty"`
	Reason             string             `json:"reason"`
	TotalScore         int                `json:"total_score"`
	ManualReviewNeeded bool               `json:"manual_review_needed"`
}

func toRunResponse(id uuid.UUID, taskName string, result *domain.VerifyResult) RunResponse {
	return RunResponse{
		ID:                 id.String(),
		TaskName:           taskName,
		OK:                 result.OK,
		Matched:            result.Matched,
		Reason:             result.Reason,
		TotalScore:         result.TotalScore,
		ManualReviewNeeded: result.ManualReviewNeeded,
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleCreateRun handles POST /runs: load the task + trace, run the
// verifier, persist the result, and return it.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskPath == "" || req.TraceDir == "" {
		writeJSONError(w, http.StatusBadRequest, "task_path and trace_dir are required")
		return
	}

	ctx := r.Context()

	task, err := loader.LoadTask(req.TaskPath)
	if err != nil {
		log.Error().Err(err).Str("task_path", req.TaskPath).Msg("failed to load task spec")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	frames, err := loader.LoadFramesFromDir(req.TraceDir)
	if err != nil {
		log.Error().Err(err).Str("trace_dir", req.TraceDir).Msg("failed to load trace frames")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.New()
	result, err := s.verifier.VerifyWithSink(ctx, runID.String(), task, frames, s.sink)
	if err != nil {
		log.Error().Err(err).Str("task_path", req.TaskPath).Msg("verification run failed")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.store != nil {
		matchedJSON, err := json.Marshal(result.Matched)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal matched nodes for persistence")
		} else if err := s.store.SaveRun(ctx, runID, task.Name, result, matchedJSON); err != nil {
			log.Error().Err(err).Str("run_id", runID.String()).Msg("failed to persist run")
		}
	}

	json.NewEncoder(w).Encode(toRunResponse(runID, task.Name, result))
}

// handleGetRun handles GET /runs/{id}: fetch a persisted run's top-level
// record. Decision log detail is served separately by handleListDecisionLogs.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	if s.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}

	var matched []domain.NodeMatch
	if len(run.Matched) > 0 {
		if err := json.Unmarshal(run.Matched, &matched); err != nil {
			log.Error().Err(err).Str("run_id", id.String()).Msg("failed to unmarshal persisted matched nodes")
		}
	}

	json.NewEncoder(w).Encode(RunResponse{
		ID:                 run.ID.String(),
		TaskName:           run.TaskName,
		OK:                 run.OK,
		Matched:            matched,
		Reason:             run.Reason,
		TotalScore:         run.TotalScore,
		ManualReviewNeeded: run.ManualReviewNeeded,
	})
}

// handleListDecisionLogs handles GET /runs/{id}/decision-logs: fetch every
// decision log entry recorded for a run, ordered by frame index.
func (s *Server) handleListDecisionLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	if s.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}

	logs, err := s.store.ListDecisionLogs(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	json.NewEncoder(w).Encode(logs)
}
