package handler

import (
	"codingescape/internal/model"
	"codingescape/internal/service"
	"codingescape/internal/transport/rest/middleware"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// UserHandler handles the /users/me endpoints
type UserHandler struct {
	userSvc *service.UserService
	gameSvc *service.GameService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userSvc *service.UserService, gameSvc *service.GameService) *UserHandler {
	return &UserHandler{userSvc: userSvc, gameSvc: gameSvc}
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userSvc.Me(r.Context(), middleware.GetUserID(r.Context()))
	if errors.Is(err, service.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update handles PUT /v1/users/me
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userSvc.Update(r.Context(), middleware.GetUserID(r.Context()), &req)
	if errors.Is(err, service.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /v1/users/me
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.gameSvc.Abandon(r.Context(), userID); err != nil && !errors.Is(err, service.ErrNoActiveRun) {
		log.Printf("Abandon run for %s failed: %v", userID, err)
	}

	err := h.userSvc.Delete(r.Context(), userID)
	if errors.Is(err, service.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
