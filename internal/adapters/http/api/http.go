// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RankingDependencies
	ContestDependencies
	BoardDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	rankingHandler *RankingHandler
	contestHandler *ContestHandler
	boardHandler   *BoardHandler
}

// NewServer creates a new API server with all handlers. topTeams is the size of
// the top teams answer.
func NewServer(deps Dependencies, statsProvider StatsProvider, topTeams int) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		rankingHandler: NewRankingHandler(deps, topTeams),
		contestHandler: NewContestHandler(deps),
		boardHandler:   NewBoardHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. JSON API routes are gzip compressed.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.Handle("/api/postRanking", compressed(s.rankingHandler.HandlePostRanking, "post_ranking"))
	mux.Handle("/api/getRanking", compressed(s.rankingHandler.HandleGetRanking, "get_ranking"))
	mux.Handle("/api/getTopTeams/{batch}", compressed(s.rankingHandler.HandleGetTopTeams, "get_top_teams"))
	mux.Handle("/api/postContestTime", compressed(s.contestHandler.HandlePostContestTime, "post_contest_time"))
	mux.Handle("/api/getContestTime", compressed(s.contestHandler.HandleGetContestTime, "get_contest_time"))
	mux.Handle("/api/board", compressed(s.boardHandler.HandleGetBoard, "board"))
	mux.Handle("/api/sound", compressed(s.boardHandler.HandlePostSound, "sound"))
}

func compressed(h http.HandlerFunc, endpoint string) http.Handler {
	return gzhttp.GzipHandler(MetricsMiddleware(h, endpoint))
}

type messageResponse struct {
	Message string `json:"message"`
	Version int64  `json:"version,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
