package cart

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ruko-pos/ruko-pos/internal/catalog"
	"github.com/ruko-pos/ruko-pos/internal/platform/httpx"
)

// Handler manages the register cart endpoints.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	catalog  *catalog.Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine, catalogSvc *catalog.Service) *Handler {
	return &Handler{logger: logger, engine: engine, catalog: catalogSvc, validate: validator.New()}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cart/{terminal}", h.view)
	r.Delete("/cart/{terminal}", h.clear)
	r.Post("/cart/{terminal}/lines", h.addLine)
	r.Patch("/cart/{terminal}/lines/{index}", h.updateLine)
	r.Delete("/cart/{terminal}/lines/{index}", h.removeLine)
	r.Put("/cart/{terminal}/customer", h.setCustomer)
	r.Delete("/cart/{terminal}/customer", h.clearCustomer)
}

type cartView struct {
	Lines    []Line            `json:"lines"`
	Subtotal int64             `json:"subtotal"`
	Customer *catalog.Customer `json:"customer,omitempty"`
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	httpx.JSON(w, http.StatusOK, cartView{
		Lines:    h.engine.Lines(terminal),
		Subtotal: h.engine.Subtotal(terminal),
		Customer: h.engine.Customer(terminal),
	})
}

type addLineRequest struct {
	Code string `json:"code" validate:"required,max=64"`
	Unit string `json:"unit" validate:"omitempty,max=32"`
}

// addLine resolves a scanned or typed code and drops it into the cart. A
// unit barcode picks that unit unless the request overrides it.
func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	var req addLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.catalog.ResolveByCode(r.Context(), req.Code)
	if err != nil {
		h.fail(w, "resolve code", err)
		return
	}
	unit := req.Unit
	if unit == "" {
		unit = res.Unit.Name
	}
	line, err := h.engine.AddLine(terminal, res.Product, unit)
	if err != nil {
		h.fail(w, "add line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

type updateLineRequest struct {
	Quantity *int64  `json:"quantity" validate:"omitempty,gte=0"`
	Unit     *string `json:"unit" validate:"omitempty,max=32"`
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req updateLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Unit != nil {
		if err := h.engine.ChangeUnit(terminal, index, *req.Unit); err != nil {
			h.fail(w, "change unit", err)
			return
		}
	}
	if req.Quantity != nil {
		if err := h.engine.ChangeQuantity(terminal, index, *req.Quantity); err != nil {
			h.fail(w, "change quantity", err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, cartView{
		Lines:    h.engine.Lines(terminal),
		Subtotal: h.engine.Subtotal(terminal),
		Customer: h.engine.Customer(terminal),
	})
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := h.engine.ChangeQuantity(terminal, index, 0); err != nil {
		h.fail(w, "remove line", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setCustomerRequest struct {
	CustomerID int64 `json:"customer_id" validate:"required,gt=0"`
}

func (h *Handler) setCustomer(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	var req setCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.catalog.GetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		h.fail(w, "get customer", err)
		return
	}
	h.engine.SetCustomer(terminal, customer)
	httpx.JSON(w, http.StatusOK, cartView{
		Lines:    h.engine.Lines(terminal),
		Subtotal: h.engine.Subtotal(terminal),
		Customer: customer,
	})
}

func (h *Handler) clearCustomer(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	h.engine.SetCustomer(terminal, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.engine.Clear(chi.URLParam(r, "terminal"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownUnit):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Unit", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid line index")
		return 0, false
	}
	return index, true
}
