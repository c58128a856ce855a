package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/scoreboard/internal/adapters/repository"
	"github.com/okian/scoreboard/internal/domain/dedupe"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// maxBodyBytes caps request bodies. Standings of a few hundred teams fit easily.
const maxBodyBytes = 8 << 20

// RankingDependencies backs the relay buffer routes.
type RankingDependencies interface {
	dedupe.Deduper
	Put(ctx context.Context, rows []types.RawRow) (types.Snapshot, error)
	Latest(ctx context.Context) (types.Snapshot, error)
	Top(ctx context.Context, n int) ([]types.RawRow, error)
	// Broadcast pushes the snapshot to the joined websocket clients.
	Broadcast(ctx context.Context, snap types.Snapshot)
	// Enqueue hands the snapshot to the board consumer.
	Enqueue(ctx context.Context, snap types.Snapshot) error
}

// RankingHandler serves the relay buffer.
type RankingHandler struct {
	deps     RankingDependencies
	topTeams int
	logger   logger.Logger
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies, topTeams int) *RankingHandler {
	if topTeams <= 0 {
		topTeams = 3
	}
	return &RankingHandler{deps: deps, topTeams: topTeams, logger: logger.Get().Named("api")}
}

type postRankingRequest struct {
	Data json.RawMessage `json:"data"`
}

// HandlePostRanking handles POST /api/postRanking.
func (h *RankingHandler) HandlePostRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_ranking"
	ctx := r.Context()
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	rows, err := decodeRanking(r.Body)
	if err != nil {
		metrics.RecordErrorByComponent("http", "invalid_ranking")
		writeError(w, http.StatusBadRequest, "invalid_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	digest, err := dedupe.Digest(repository.Coerce(rows))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	if h.deps.SeenAndRecord(ctx, digest) {
		metrics.RecordSnapshotDuplicate()
		writeJSON(w, http.StatusOK, messageResponse{Message: "Buffer unchanged"})
		return
	}

	snap, err := h.deps.Put(ctx, rows)
	if err != nil {
		h.deps.Unrecord(ctx, digest)
		h.logger.Error(ctx, "failed to store ranking", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}

	h.deps.Broadcast(ctx, snap)
	if err := h.deps.Enqueue(ctx, snap); err != nil {
		h.logger.Warn(ctx, "snapshot not delivered to board",
			logger.Int64("version", snap.Version),
			logger.Error(err))
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Buffer updated", Version: snap.Version})
}

// HandleGetRanking handles GET /api/getRanking.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type topTeamsResponse struct {
	Batch string         `json:"batch"`
	Teams []types.RawRow `json:"teams"`
}

// HandleGetTopTeams handles GET /api/getTopTeams/{batch}. The batch label is echoed
// back and does not filter rows.
func (h *RankingHandler) HandleGetTopTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_top_teams"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	batch := r.PathValue("batch")
	rows, err := h.deps.Top(r.Context(), h.topTeams)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	case errors.Is(err, repository.ErrNotEnoughRows):
		writeError(w, http.StatusBadRequest, "not_enough_rows", WrapKind(op, ErrBadRequest, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, topTeamsResponse{Batch: batch, Teams: rows})
}

// decodeRanking validates the {"data": [...]} envelope and extracts its rows.
func decodeRanking(body io.Reader) ([]types.RawRow, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if err := validate(rankingSchema, raw); err != nil {
		return nil, err
	}
	var req postRankingRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	rows, ok := types.DecodeRows(req.Data)
	if !ok {
		return nil, errors.New("data must be an array")
	}
	return rows, nil
}

func readBody(body io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty body")
	}
	return raw, nil
}
