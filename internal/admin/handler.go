package admin

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

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

// POST /api/admin/update-proposals-count. Wrap with middleware.RequireRole(models.RoleAdmin).
func (h *Handler) UpdateProposalsCount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProjectID string `json:"projectId"`
	}
	if err := h.validator.Decode(r, validation.AdminProposalsCount, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	var projectID *uuid.UUID
	if in.ProjectID != "" {
		id, err := uuid.Parse(in.ProjectID)
		if err != nil {
			response.Fail(w, http.StatusBadRequest, "invalid projectId")
			return
		}
		projectID = &id
	}
	n, err := h.svc.UpdateProposalsCount(r.Context(), projectID)
	if err != nil {
		h.log.Error("update proposals count failed", "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, http.StatusOK, map[string]int64{"updated": n})
}
