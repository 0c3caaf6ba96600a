package payments

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/response"
	"github.com/lancerhub/backend/internal/validation"
)

// SecretHeader carries the shared secret on gateway callbacks.
const SecretHeader = "X-Gateway-Secret"

type Handler struct {
	svc       Service
	validator *validation.Validator
	secret    string
	log       *slog.Logger
}

func NewHandler(svc Service, validator *validation.Validator, webhookSecret string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: validator, secret: webhookSecret, log: log}
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type callbackRequest struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// POST /api/payment/create
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in CreateInput
	if err := h.validator.Decode(r, validation.PaymentCreate, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.svc.Create(r.Context(), id.UserID, in)
	if err != nil {
		h.fail(w, err, "create top-up failed", "user_id", id.UserID)
		return
	}
	response.OK(w, http.StatusCreated, sess)
}

// POST /api/payment/regenerate
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, sessionID, ok := h.sessionFromBody(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.Regenerate(r.Context(), id.UserID, sessionID)
	if err != nil {
		h.fail(w, err, "regenerate top-up failed", "user_id", id.UserID, "session_id", sessionID)
		return
	}
	response.OK(w, http.StatusOK, sess)
}

// POST /api/payment/expire
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	id, sessionID, ok := h.sessionFromBody(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.Expire(r.Context(), id.UserID, sessionID)
	if err != nil {
		h.fail(w, err, "expire top-up failed", "user_id", id.UserID, "session_id", sessionID)
		return
	}
	response.OK(w, http.StatusOK, sess)
}

// POST /api/payment/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		response.Fail(w, http.StatusUnauthorized, "invalid gateway secret")
		return
	}
	var in callbackRequest
	if err := h.validator.Decode(r, validation.PaymentCallback, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if !paidStatus(in.Status) {
		h.log.Info("ignoring non-paid gateway callback", "gateway_tx", in.TransactionID, "status", in.Status)
		response.OK(w, http.StatusOK, map[string]bool{"processed": false})
		return
	}
	res, err := h.svc.Confirm(r.Context(), in.TransactionID)
	if err != nil {
		h.fail(w, err, "confirm top-up failed", "gateway_tx", in.TransactionID)
		return
	}
	response.OK(w, http.StatusOK, res)
}

// paidStatus treats a missing status as paid; the gateway only calls back on payment.
func paidStatus(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "paid", "success", "completed":
		return true
	}
	return false
}

func (h *Handler) sessionFromBody(w http.ResponseWriter, r *http.Request) (middleware.Identity, uuid.UUID, bool) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return id, uuid.Nil, false
	}
	var in sessionRequest
	if err := h.validator.Decode(r, validation.PaymentSession, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return id, uuid.Nil, false
	}
	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid sessionId")
		return id, uuid.Nil, false
	}
	return id, sessionID, true
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		response.Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSessionPaid), errors.Is(err, ErrSessionExpired):
		response.Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrGateway):
		h.log.Warn(msg, append(attrs, "error", err)...)
		response.Fail(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		h.log.Error(msg, append(attrs, "error", err)...)
		response.Fail(w, http.StatusInternalServerError, "internal error")
	}
}
