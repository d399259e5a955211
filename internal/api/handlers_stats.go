package api

import "net/http"

func (s *Server) handleCallStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"calls":       s.app.Calls.Snapshot(),
	})
}
