// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/okian/sonar/internal/adapters/catalog"
	"github.com/okian/sonar/internal/domain/model"
	"github.com/okian/sonar/internal/domain/scoring"
	"github.com/okian/sonar/internal/domain/types"
	"github.com/okian/sonar/pkg/logger"
)

const (
	defaultMaxBodyBytes = 4 << 20
	defaultRankingLimit = 10
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Score(ctx context.Context, ev model.Event, p model.UserTasteProfile) (scoring.Result, error)
	SubmitRanking(ctx context.Context, job types.RankingJob) (types.Ack, error)
	TopN(ctx context.Context, userID string, limit int) ([]types.RankedEvent, error)
	Rank(ctx context.Context, userID, eventID string) (types.RankedEvent, error)
	UpsertArtists(ctx context.Context, artists []catalog.Artist) (int, error)
	GetStats(ctx context.Context) types.Stats
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps         Dependencies
	limiter      *RateLimiter
	maxBodyBytes int64
	defaultLimit int
	logger       logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		maxBodyBytes: defaultMaxBodyBytes,
		defaultLimit: defaultRankingLimit,
		logger:       logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	write := func(h http.HandlerFunc) http.HandlerFunc { return RateLimitMiddleware(s.limiter, h) }

	mux.HandleFunc("GET /healthz", MetricsMiddleware(HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.handleStats, "stats"))
	mux.HandleFunc("POST /score", MetricsMiddleware(write(s.handleScore), "score"))
	mux.HandleFunc("POST /rankings", MetricsMiddleware(write(s.handleSubmitRanking), "rankings_submit"))
	mux.HandleFunc("GET /rankings/{user_id}", MetricsMiddleware(s.handleTopN, "rankings_top"))
	mux.HandleFunc("GET /rankings/{user_id}/{event_id}", MetricsMiddleware(s.handleRank, "rankings_rank"))
	mux.HandleFunc("POST /artists", MetricsMiddleware(write(s.handleUpsertArtists), "artists"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return WrapKind(op, ErrPayloadTooLarge, err)
		}
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes the error body. Server errors
// are logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
