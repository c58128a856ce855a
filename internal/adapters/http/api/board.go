package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/scoreboard/internal/board"
)

// BoardDependencies backs the presentation routes.
type BoardDependencies interface {
	View(ctx context.Context, page int) (board.Projection, error)
	SetSound(ctx context.Context, enabled bool) error
}

// BoardHandler serves the board projection and its settings.
type BoardHandler struct {
	deps BoardDependencies
}

// NewBoardHandler creates a new board handler.
func NewBoardHandler(deps BoardDependencies) *BoardHandler {
	return &BoardHandler{deps: deps}
}

// HandleGetBoard handles GET /api/board?page=N. Without a page every team is returned.
func (h *BoardHandler) HandleGetBoard(w http.ResponseWriter, r *http.Request) {
	const op = "api.board"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_page", WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.View(r.Context(), page)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "board_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type soundRequest struct {
	Enabled *bool `json:"enabled"`
}

type soundResponse struct {
	SoundEnabled bool `json:"soundEnabled"`
}

// HandlePostSound handles POST /api/sound.
func (h *BoardHandler) HandlePostSound(w http.ResponseWriter, r *http.Request) {
	const op = "api.sound"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	raw, err := readBody(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req soundRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.SetSound(r.Context(), *req.Enabled); err != nil {
		writeError(w, http.StatusServiceUnavailable, "board_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, soundResponse{SoundEnabled: *req.Enabled})
}

func parsePage(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, errors.New("page must be a positive integer")
	}
	return page, nil
}
