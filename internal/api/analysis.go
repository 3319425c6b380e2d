package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
	"github.com/MikeSquared-Agency/convoscope/internal/xref"
)

// RunResponse is an accepted analysis with its links resolved.
type RunResponse struct {
	RunID          string            `json:"runId"`
	ConversationID string            `json:"conversationId"`
	Revision       uint64            `json:"revision"`
	Scorer         string            `json:"scorer"`
	DurationMs     int64             `json:"durationMs"`
	Options        analysis.Options  `json:"options"`
	Analysis       xref.LinkedResult `json:"analysis"`
}

func toRunResponse(run *session.Run) RunResponse {
	return RunResponse{
		RunID:          run.ID,
		ConversationID: run.ConversationID,
		Revision:       run.Revision,
		Scorer:         run.Scorer,
		DurationMs:     run.Duration.Milliseconds(),
		Options:        run.Options,
		Analysis:       run.Linked,
	}
}

// analyze runs an analysis. An empty body uses the default options; fields
// left out of a body keep their defaults.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	opts := analysis.DefaultOptions()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid options: "+err.Error())
			return
		}
	}

	run, err := s.view.Analyze(r.Context(), opts)
	switch {
	case errors.Is(err, session.ErrStaleAnalysis):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, analysis.ErrAnalysisFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, toRunResponse(run))
	}
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	run, err := s.view.Analysis()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (s *Server) dismissAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.view.DismissAnalysis(); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// analysisHistory lists stored analyses of the current conversation.
func (s *Server) analysisHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis history is not configured")
		return
	}
	conv, _, err := s.view.Conversation()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.history.List(r.Context(), conv.ID, limit)
	if err != nil {
		s.logger.Error("list analysis history", "conversation_id", conv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversationId": conv.ID,
		"count":          len(records),
		"analyses":       records,
	})
}
