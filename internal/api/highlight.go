package api

import (
	"fmt"
	"net/http"
)

// activateHighlight is the citation activation callback.
func (s *Server) activateHighlight(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	resolved := s.view.Activate(id)
	if s.metrics != nil {
		s.metrics.RecordHighlight(resolved)
	}
	if !resolved {
		writeError(w, http.StatusNotFound, fmt.Sprintf("message %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, s.view.Highlight())
}

func (s *Server) getHighlight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Highlight())
}

func (s *Server) highlightStream(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, s.view.Highlight())
}
