package favorites

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/response"
	"github.com/lancerhub/backend/internal/validation"
)

type Handler struct {
	svc       Service
	validator *validation.Validator
	log       *slog.Logger
}

func NewHandler(svc Service, validator *validation.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: validator, log: log}
}

// POST /api/favorites
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in struct {
		ProjectID string `json:"projectId"`
	}
	if err := h.validator.Decode(r, validation.Favorite, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	projectID, err := uuid.Parse(in.ProjectID)
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid projectId")
		return
	}
	favorited, err := h.svc.Toggle(r.Context(), id.UserID, projectID)
	if errors.Is(err, ErrProjectNotFound) {
		response.Fail(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error("toggle favorite failed", "user_id", id.UserID, "project_id", projectID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, http.StatusOK, map[string]any{"projectId": projectID, "favorited": favorited})
}

// GET /api/favorites
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.List(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("list favorites failed", "user_id", id.UserID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, http.StatusOK, list)
}
