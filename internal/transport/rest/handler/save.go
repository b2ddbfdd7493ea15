package handler

import (
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/service"
	"codingescape/internal/transport/rest/middleware"
	"encoding/json"
	"errors"
	"net/http"
)

// SaveHandler handles client-driven save endpoints
type SaveHandler struct {
	saveSvc *service.SaveService
}

// NewSaveHandler creates a new save handler
func NewSaveHandler(saveSvc *service.SaveService) *SaveHandler {
	return &SaveHandler{saveSvc: saveSvc}
}

// Save handles POST /v1/save
func (h *SaveHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req model.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	save, err := h.saveSvc.Save(r.Context(), middleware.GetUserID(r.Context()), &req)
	if errors.Is(err, service.ErrInvalidSave) || errors.Is(err, escape.ErrUnknownDifficulty) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.SaveResponse{ID: save.ID})
}

// Latest handles GET /v1/save and GET /v1/save/latest; no save is a null body
func (h *SaveHandler) Latest(w http.ResponseWriter, r *http.Request) {
	save, err := h.saveSvc.Latest(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, save)
}

// History handles GET /v1/save/history
func (h *SaveHandler) History(w http.ResponseWriter, r *http.Request) {
	saves, err := h.saveSvc.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if saves == nil {
		saves = []*model.SaveState{}
	}
	writeJSON(w, http.StatusOK, saves)
}

// DeleteAll handles DELETE /v1/save
func (h *SaveHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.saveSvc.DeleteAll(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
