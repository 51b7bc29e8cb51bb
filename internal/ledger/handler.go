package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ruko-pos/ruko-pos/internal/platform/httpx"
	"github.com/ruko-pos/ruko-pos/internal/shared"
)

// Handler manages receivables endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/kasbon", h.outstanding)
	r.Get("/kasbon/{id}", h.balance)
	r.Get("/kasbon/{id}/entries", h.entries)
	r.Post("/kasbon/{id}/payments", h.recordPayment)
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.OutstandingCustomers(r.Context())
	if err != nil {
		h.fail(w, "list outstanding", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

type balanceResponse struct {
	CustomerID  int64  `json:"customer_id"`
	Outstanding int64  `json:"outstanding"`
	Display     string `json:"display"`
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	balance, err := h.service.BalanceFor(r.Context(), id)
	if err != nil {
		h.fail(w, "get balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		CustomerID:  id,
		Outstanding: balance,
		Display:     shared.FormatRupiah(balance),
	})
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.EntriesFor(r.Context(), id)
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.RecordPayment(r.Context(), id, req)
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
