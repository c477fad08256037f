package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/averyhale/dossier/internal/orchestrator"
	"github.com/averyhale/dossier/internal/status"
)

type listRunsResponse struct {
	Runs       []status.RunInfo `json:"runs"`
	TotalCount int              `json:"total_count"`
}

// listRuns handles GET /api/runs.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := status.List(r.Context(), s.pool, s.runsDir)
	if err != nil {
		s.logger.Error().Err(err).Msg("list runs failed")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []status.RunInfo{}
	}
	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs, TotalCount: len(runs)})
}

// getRun handles GET /api/runs/{runID}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	info, err := status.Collect(s.runsDir, runID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error().Err(err).Str("run_id", runID).Msg("run status failed")
		writeError(w, http.StatusInternalServerError, "failed to read run status")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// getRunReport handles GET /api/runs/{runID}/report, serving the rendered
// markdown report.
func (s *Server) getRunReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	data, err := os.ReadFile(orchestrator.ReportPath(s.runsDir, runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, s.missingArtifactMessage(runID, "report"))
			return
		}
		s.logger.Error().Err(err).Str("run_id", runID).Msg("read report failed")
		writeError(w, http.StatusInternalServerError, "failed to read report")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// getRunVerdict handles GET /api/runs/{runID}/verdict, serving the stored
// verification snapshot.
func (s *Server) getRunVerdict(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, err := orchestrator.LoadVerifySnapshot(orchestrator.VerdictPath(s.runsDir, runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, s.missingArtifactMessage(runID, "verdict"))
			return
		}
		s.logger.Error().Err(err).Str("run_id", runID).Msg("read verdict failed")
		writeError(w, http.StatusInternalServerError, "failed to read verdict")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// missingArtifactMessage distinguishes an unknown run from a run that has
// not yet produced the requested artifact.
func (s *Server) missingArtifactMessage(runID, artifact string) string {
	if _, err := os.Stat(orchestrator.RunDir(s.runsDir, runID)); err != nil {
		return "run not found"
	}
	return artifact + " not available for run"
}
