package api

import (
	"net/http"

	"github.com/okian/sonar/internal/domain/model"
)

type scoreRequest struct {
	Event   model.Event            `json:"event"`
	Profile model.UserTasteProfile `json:"profile"`
}

// handleScore handles POST /score.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	var req scoreRequest
	if err := s.decodeJSON(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Score(r.Context(), req.Event, req.Profile)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
