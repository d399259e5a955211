package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/retrieval"
)

const maxQueryBody = 64 << 10

type queryRequest struct {
	Query string `json:"query" validate:"required,max=4000"`
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBody)
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return "", false
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			jsonError(w, "query failed "+verrs[0].Tag()+" validation", http.StatusBadRequest)
			return "", false
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return req.Query, true
}

// handleQuery answers a question from the indexed documents.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	query, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	ans, err := s.app.Answerer.Answer(r.Context(), query)
	if err != nil {
		s.retrievalError(w, r, err)
		return
	}
	if ans.Sources == nil {
		ans.Sources = []retrieval.RankedResult{}
	}
	writeJSON(w, http.StatusOK, ans)
}

// handleSearch returns the grounding set without generating an answer.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	gs, err := s.app.Pipeline.Retrieve(r.Context(), query)
	if err != nil {
		s.retrievalError(w, r, err)
		return
	}
	if gs.Results == nil {
		gs.Results = []retrieval.RankedResult{}
	}
	writeJSON(w, http.StatusOK, gs)
}

func (s *Server) retrievalError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery):
		code = http.StatusBadRequest
	case errors.Is(err, retrieval.ErrExternalTimeout):
		code = http.StatusGatewayTimeout
	case errors.Is(err, retrieval.ErrExternalCall), errors.Is(err, retrieval.ErrMalformedResponse):
		code = http.StatusBadGateway
	case r.Context().Err() != nil:
		// Client went away; nothing useful to write.
		return
	}
	s.log.Warn("query failed", "status", code, "error", err)
	jsonError(w, err.Error(), code)
}
