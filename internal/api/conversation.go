package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/convoscope/internal/importer"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
)

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, rev, err := s.view.Conversation()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("X-Conversation-Revision", strconv.FormatUint(rev, 10))
	writeJSON(w, http.StatusOK, conv)
}

// importConversation replaces the conversation with the request body.
func (s *Server) importConversation(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	conv, err := s.view.Import(data, session.SourceAPI)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// importTranscript imports a Claude Code JSONL session. The conversation id
// and title come from the id and title query parameters.
func (s *Server) importTranscript(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		title = id
	}

	conv, err := s.view.ImportCC(http.MaxBytesReader(w, r.Body, maxBodyBytes), id, title)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func writeImportError(w http.ResponseWriter, err error) {
	var fe *importer.FormatError
	switch {
	case errors.As(err, &fe):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", importer.ErrInvalidFormat, fe.Reason))
	case errors.Is(err, importer.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) exportConversation(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.view.Export()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	loc, found := s.view.Resolve(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("message %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func messageID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "message id must be an integer")
		return 0, false
	}
	return id, true
}
