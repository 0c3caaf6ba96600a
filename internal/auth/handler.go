package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lancerhub/backend/internal/response"
	"github.com/lancerhub/backend/internal/validation"
)

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

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

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.validator.Decode(r, validation.Register, &req); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.svc.Register(r.Context(), req.Email, req.Password, req.DisplayName, req.Role)
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		response.Fail(w, http.StatusConflict, "email already registered")
		return
	case errors.Is(err, ErrInvalidRole):
		response.Fail(w, http.StatusBadRequest, "invalid role")
		return
	case err != nil:
		h.log.Error("register failed", "error", err)
		response.Fail(w, http.StatusInternalServerError, "registration failed")
		return
	}
	response.OK(w, http.StatusCreated, p)
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.validator.Decode(r, validation.Login, &req); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	tok, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.log.Error("login failed", "error", err)
		response.Fail(w, http.StatusInternalServerError, "login failed")
		return
	}
	response.OK(w, http.StatusOK, tok)
}
