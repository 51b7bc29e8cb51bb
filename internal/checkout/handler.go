package checkout

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ruko-pos/ruko-pos/internal/platform/httpx"
	"github.com/ruko-pos/ruko-pos/internal/shared"
)

// Handler manages checkout and transaction history endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idem: idem, validate: validator.New()}
}

// MountRoutes registers checkout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/checkout/{terminal}", h.session)
	r.Post("/checkout/{terminal}/begin", h.begin)
	r.Post("/checkout/{terminal}/cancel", h.cancel)
	r.Post("/checkout/{terminal}/commit", h.commit)

	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/{id}", h.getTransaction)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Session(chi.URLParam(r, "terminal")))
}

func (h *Handler) begin(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Begin(chi.URLParam(r, "terminal"))
	if err != nil {
		h.fail(w, "begin checkout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(chi.URLParam(r, "terminal")); err != nil {
		h.fail(w, "cancel checkout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	var req CommitInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// A flaky network between the terminal and this server can replay the
	// whole POST; the key makes the replay a no-op instead of a second sale.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "checkout"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Commit", "this payment was already submitted")
				return
			}
			h.fail(w, "idempotency check", err)
			return
		}
	}
	receipt, err := h.service.Commit(r.Context(), chi.URLParam(r, "terminal"), req)
	if err != nil {
		if idemKey != "" && h.idem != nil {
			if derr := h.idem.Delete(r.Context(), idemKey); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, "commit checkout", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	txs, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, txs)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var f ListFilter
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("invalid from timestamp")
		}
		f.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("invalid to timestamp")
		}
		f.To = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	return f, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNotAwaitingPayment):
		httpx.Problem(w, http.StatusConflict, "Invalid Checkout State", err.Error())
	case errors.Is(err, ErrAlreadyProcessing):
		httpx.Problem(w, http.StatusConflict, "Commit In Flight", err.Error())
	case errors.Is(err, ErrInsufficientPayment), errors.Is(err, ErrNoCustomerSelected):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Payment Rejected", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrPersistence):
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "sale was not recorded, cart preserved")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
