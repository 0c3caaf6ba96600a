package projects

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

// POST /api/projects
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in CreateInput
	if err := h.validator.Decode(r, validation.ProjectCreate, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Create(r.Context(), id.UserID, in)
	if err != nil {
		h.fail(w, err, "create project failed", "user_id", id.UserID)
		return
	}
	if !res.Success {
		response.Fail(w, http.StatusPaymentRequired, res.Reason)
		return
	}
	response.OK(w, http.StatusCreated, res.Project)
}

// PATCH /api/projects/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, projectID, ok := h.identityAndPath(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := h.validator.Decode(r, validation.ProjectUpdate, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Update(r.Context(), id.UserID, projectID, in)
	if err != nil {
		h.fail(w, err, "update project failed", "project_id", projectID)
		return
	}
	if !res.Success {
		response.Fail(w, http.StatusPaymentRequired, res.Reason)
		return
	}
	response.OK(w, http.StatusOK, res.Project)
}

// GET /api/projects
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListOpen(r.Context(), r.URL.Query().Get("refresh") == "1")
	if err != nil {
		h.fail(w, err, "list projects failed")
		return
	}
	response.OK(w, http.StatusOK, list)
}

// GET /api/projects/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid project id")
		return
	}
	p, err := h.svc.Get(r.Context(), projectID)
	if err != nil {
		h.fail(w, err, "get project failed", "project_id", projectID)
		return
	}
	response.OK(w, http.StatusOK, p)
}

// POST /api/projects/{id}/proposals
func (h *Handler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	id, projectID, ok := h.identityAndPath(w, r)
	if !ok {
		return
	}
	var in ProposalInput
	if err := h.validator.Decode(r, validation.ProposalCreate, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	pr, err := h.svc.SubmitProposal(r.Context(), id.UserID, projectID, in)
	if err != nil {
		h.fail(w, err, "submit proposal failed", "project_id", projectID)
		return
	}
	response.OK(w, http.StatusCreated, pr)
}

// GET /api/projects/{id}/proposals
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	id, projectID, ok := h.identityAndPath(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListProposals(r.Context(), id.UserID, projectID)
	if err != nil {
		h.fail(w, err, "list proposals failed", "project_id", projectID)
		return
	}
	response.OK(w, http.StatusOK, list)
}

// POST /api/proposals/{id}/accept
func (h *Handler) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	id, proposalID, ok := h.identityAndPath(w, r)
	if !ok {
		return
	}
	res, err := h.svc.AcceptProposal(r.Context(), id.UserID, proposalID)
	if err != nil {
		h.fail(w, err, "accept proposal failed", "proposal_id", proposalID)
		return
	}
	if !res.Success {
		response.Fail(w, http.StatusPaymentRequired, res.Reason)
		return
	}
	response.OK(w, http.StatusOK, res.Project)
}

// POST /api/projects/{id}/review
func (h *Handler) SubmitForReview(w http.ResponseWriter, r *http.Request) {
	id, projectID, ok := h.identityAndPath(w, r)
	if !ok {
		return
	}
	p, err := h.svc.SubmitForReview(r.Context(), id.UserID, projectID)
	if err != nil {
		h.fail(w, err, "submit for review failed", "project_id", projectID)
		return
	}
	response.OK(w, http.StatusOK, p)
}

// POST /api/projects/{id}/complete
func (h *Handler) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	id, projectID, ok := h.identityAndPath(w, r)
	if !ok {
		return
	}
	var in struct {
		Notes string `json:"notes"`
	}
	if err := h.validator.Decode(r, validation.Completion, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.MarkCompleted(r.Context(), id.UserID, projectID, in.Notes)
	if err != nil {
		h.fail(w, err, "mark completed failed", "project_id", projectID, "user_id", id.UserID)
		return
	}
	response.OK(w, http.StatusOK, res)
}

// POST /api/projects/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, projectID, ok := h.identityAndPath(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Cancel(r.Context(), id.UserID, projectID)
	if err != nil {
		h.fail(w, err, "cancel project failed", "project_id", projectID)
		return
	}
	response.OK(w, http.StatusOK, p)
}

func (h *Handler) identityAndPath(w http.ResponseWriter, r *http.Request) (middleware.Identity, uuid.UUID, bool) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return id, uuid.Nil, false
	}
	pathID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid id")
		return id, uuid.Nil, false
	}
	return id, pathID, true
}

// fail maps service errors to statuses; anything unrecognised is logged and reported as 500.
func (h *Handler) fail(w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrProposalNotFound):
		response.Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyProposed):
		response.Fail(w, http.StatusConflict, err.Error())
	default:
		h.log.Error(msg, append(attrs, "error", err)...)
		response.Fail(w, http.StatusInternalServerError, "internal error")
	}
}
