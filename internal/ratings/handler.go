package ratings

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

// POST /api/projects/{id}/ratings
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid project id")
		return
	}
	var in RatingInput
	if err := h.validator.Decode(r, validation.Rating, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ProjectID, in.RaterID = projectID, id.UserID

	rating, err := h.svc.Submit(r.Context(), in)
	switch {
	case err == nil:
		response.OK(w, http.StatusCreated, rating)
	case errors.Is(err, ErrInvalidScore):
		response.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrProjectNotFound):
		response.Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotParticipant):
		response.Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotCompleted), errors.Is(err, ErrAlreadyRated):
		response.Fail(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("submit rating failed", "project_id", projectID, "user_id", id.UserID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
	}
}

// GET /api/profiles/{id}/ratings
func (h *Handler) ListForProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid profile id")
		return
	}
	list, err := h.svc.ListForProfile(r.Context(), profileID)
	if err != nil {
		h.log.Error("list ratings failed", "profile_id", profileID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, http.StatusOK, list)
}
