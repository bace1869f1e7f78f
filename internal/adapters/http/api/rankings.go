package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/sonar/internal/domain/model"
	"github.com/okian/sonar/internal/domain/types"
)

// rankingRequest mirrors the OpenAPI schema for POST /rankings.
type rankingRequest struct {
	JobID   string                 `json:"job_id" validate:"omitempty,max=128"`
	Profile model.UserTasteProfile `json:"profile"`
	Events  []model.Event          `json:"events" validate:"required,min=1"`
}

type rankingsResponse struct {
	UserID string              `json:"user_id"`
	Events []types.RankedEvent `json:"events"`
}

// handleSubmitRanking handles POST /rankings.
func (s *Server) handleSubmitRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_ranking"
	var req rankingRequest
	if err := s.decodeJSON(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if err := validateVar("profile.user_id", req.Profile.UserID, "required,max=128"); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}

	ack, err := s.deps.SubmitRanking(r.Context(), types.RankingJob{
		JobID:   req.JobID,
		Profile: req.Profile,
		Events:  req.Events,
	})
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	status := http.StatusAccepted
	if ack.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, ack)
}

// handleTopN handles GET /rankings/{user_id}?limit=N.
func (s *Server) handleTopN(w http.ResponseWriter, r *http.Request) {
	const op = "api.rankings_top"
	userID := r.PathValue("user_id")

	limit := s.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be a positive integer, got %q", raw)))
			return
		}
		limit = n
	}

	events, err := s.deps.TopN(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rankingsResponse{UserID: userID, Events: events})
}

// handleRank handles GET /rankings/{user_id}/{event_id}.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rankings_rank"
	entry, err := s.deps.Rank(r.Context(), r.PathValue("user_id"), r.PathValue("event_id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
