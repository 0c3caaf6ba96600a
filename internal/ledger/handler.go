package ledger

import (
	"log/slog"
	"net/http"

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

// RequestWithdraw handles POST /api/requestWithdraw. Refusals carry the reason
// code as the error: 400 for INVALID_*, 402 for INSUFFICIENT_BALANCE.
func (h *Handler) RequestWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in struct {
		Amount int64  `json:"amount"`
		Source string `json:"source"`
	}
	if err := h.validator.Decode(r, validation.Withdraw, &in); err != nil {
		response.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.RequestWithdraw(r.Context(), WithdrawRequest{UserID: id.UserID, Amount: in.Amount, Source: in.Source})
	if err != nil {
		h.log.Error("withdraw request failed", "user_id", id.UserID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch res.Reason {
	case "":
		response.OK(w, http.StatusOK, res)
	case ReasonInsufficientBalance:
		response.Fail(w, http.StatusPaymentRequired, res.Reason)
	default:
		response.Fail(w, http.StatusBadRequest, res.Reason)
	}
}
