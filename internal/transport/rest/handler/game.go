package handler

import (
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/service"
	"codingescape/internal/transport/rest/middleware"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// GameHandler drives the server-hosted run of the logged-in player
type GameHandler struct {
	gameSvc *service.GameService
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameSvc *service.GameService) *GameHandler {
	return &GameHandler{gameSvc: gameSvc}
}

// Rooms handles GET /v1/rooms?difficulty=
func (h *GameHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gameSvc.Rooms(r.URL.Query().Get("difficulty"))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/game
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.gameSvc.View(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Start handles POST /v1/game/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.gameSvc.Start(r.Context(), middleware.GetUserID(r.Context()), req.Difficulty)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Resume handles POST /v1/game/resume; an empty body resumes the latest save
func (h *GameHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req model.ResumeGameRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	view, err := h.gameSvc.Resume(r.Context(), middleware.GetUserID(r.Context()), req.SaveID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Connect handles POST /v1/game/connect
func (h *GameHandler) Connect(w http.ResponseWriter, r *http.Request) {
	view, err := h.gameSvc.Connect(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetCode handles PUT /v1/game/rooms/{index}/code
func (h *GameHandler) SetCode(w http.ResponseWriter, r *http.Request) {
	index, req, ok := decodeCode(w, r)
	if !ok {
		return
	}

	view, err := h.gameSvc.SetCode(r.Context(), middleware.GetUserID(r.Context()), index, req.Code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Submit handles POST /v1/game/rooms/{index}/submit
func (h *GameHandler) Submit(w http.ResponseWriter, r *http.Request) {
	index, req, ok := decodeCode(w, r)
	if !ok {
		return
	}

	resp, err := h.gameSvc.Submit(r.Context(), middleware.GetUserID(r.Context()), index, req.Code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Advance handles POST /v1/game/advance
func (h *GameHandler) Advance(w http.ResponseWriter, r *http.Request) {
	view, err := h.gameSvc.Advance(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Hint handles POST /v1/game/hint
func (h *GameHandler) Hint(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gameSvc.Hint(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Save handles POST /v1/game/save
func (h *GameHandler) Save(w http.ResponseWriter, r *http.Request) {
	view, err := h.gameSvc.Save(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Abandon handles DELETE /v1/game
func (h *GameHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.gameSvc.Abandon(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCode(w http.ResponseWriter, r *http.Request) (int, model.CodeRequest, bool) {
	var req model.CodeRequest
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "room index must be a number")
		return 0, req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return 0, req, false
	}
	return index, req, true
}

// writeGameError maps engine and service sentinels to status codes
func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, escape.ErrUnknownDifficulty):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoActiveRun),
		errors.Is(err, service.ErrSaveNotFound),
		errors.Is(err, escape.ErrUnknownRoom):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, escape.ErrRoomLocked),
		errors.Is(err, escape.ErrNoHints),
		errors.Is(err, escape.ErrRunFinished):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
