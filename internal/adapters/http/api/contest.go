package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/scoreboard/internal/adapters/repository"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
)

// ContestDependencies backs the contest time routes.
type ContestDependencies interface {
	SetContest(ctx context.Context, ct types.ContestTime) (types.ContestTime, error)
	Contest(ctx context.Context) (types.ContestTime, error)
	// ApplyWindow pushes the stored window to the board.
	ApplyWindow(ctx context.Context, ct types.ContestTime) error
}

// ContestHandler serves the contest window.
type ContestHandler struct {
	deps   ContestDependencies
	logger logger.Logger
}

// NewContestHandler creates a new contest handler.
func NewContestHandler(deps ContestDependencies) *ContestHandler {
	return &ContestHandler{deps: deps, logger: logger.Get().Named("api")}
}

type postContestTimeRequest struct {
	StartTime string      `json:"startTime"`
	EndTime   string      `json:"endTime"`
	Duration  types.Loose `json:"duration"`
}

type contestTimeResponse struct {
	Message   string `json:"message,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Duration  int    `json:"duration"`
}

func toContestResponse(msg string, ct types.ContestTime) contestTimeResponse {
	return contestTimeResponse{
		Message:   msg,
		StartTime: ct.StartTime.Format(time.RFC3339),
		EndTime:   ct.EndTime.Format(time.RFC3339),
		Duration:  ct.Duration,
	}
}

// HandlePostContestTime handles POST /api/postContestTime.
func (h *ContestHandler) HandlePostContestTime(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_contest_time"
	ctx := r.Context()
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	ct, err := decodeContestTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	stored, err := h.deps.SetContest(ctx, ct)
	if errors.Is(err, repository.ErrInvalidContest) {
		writeError(w, http.StatusBadRequest, "invalid_contest_time", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}

	if err := h.deps.ApplyWindow(ctx, stored); err != nil {
		h.logger.Error(ctx, "contest window not applied to board", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "board_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	h.logger.Info(ctx, "contest time updated",
		logger.Time("start", stored.StartTime),
		logger.Time("end", stored.EndTime))

	writeJSON(w, http.StatusOK, toContestResponse("Contest time updated", stored))
}

// HandleGetContestTime handles GET /api/getContestTime.
func (h *ContestHandler) HandleGetContestTime(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_contest_time"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ct, err := h.deps.Contest(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toContestResponse("", ct))
}

func decodeContestTime(r *http.Request) (types.ContestTime, error) {
	raw, err := readBody(r.Body)
	if err != nil {
		return types.ContestTime{}, err
	}
	if err := validate(contestSchema, raw); err != nil {
		return types.ContestTime{}, err
	}
	var req postContestTimeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return types.ContestTime{}, err
	}

	var ct types.ContestTime
	if ct.StartTime, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
		return types.ContestTime{}, fmt.Errorf("startTime: %w", err)
	}
	if req.EndTime != "" {
		if ct.EndTime, err = time.Parse(time.RFC3339, req.EndTime); err != nil {
			return types.ContestTime{}, fmt.Errorf("endTime: %w", err)
		}
		return ct, nil
	}
	minutes, ok := req.Duration.Int()
	if !ok || minutes <= 0 {
		return types.ContestTime{}, errors.New("duration must be a positive number of minutes")
	}
	ct.Duration = minutes
	return ct, nil
}
