package api

import (
	"net/http"

	"github.com/okian/sonar/internal/adapters/catalog"
)

type artistsRequest struct {
	Artists []catalog.Artist `json:"artists" validate:"required,min=1,max=1000,dive"`
}

type artistsResponse struct {
	Upserted int `json:"upserted"`
}

// handleUpsertArtists handles POST /artists.
func (s *Server) handleUpsertArtists(w http.ResponseWriter, r *http.Request) {
	const op = "api.upsert_artists"
	var req artistsRequest
	if err := s.decodeJSON(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	n, err := s.deps.UpsertArtists(r.Context(), req.Artists)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, artistsResponse{Upserted: n})
}
