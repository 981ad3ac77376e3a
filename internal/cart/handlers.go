package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
)

// Handler exposes cart session and stateless quote endpoints.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type lineRequest struct {
	ProductID  string             `json:"productId" validate:"required,uuid"`
	Quantity   int                `json:"quantity" validate:"min=1,max=10000"`
	Selections pricing.Selections `json:"selections"`
}

type quoteRequest struct {
	Lines        []lineRequest         `json:"lines" validate:"dive"`
	PromoCode    string                `json:"promoCode" validate:"max=64"`
	DiscountRule *pricing.DiscountRule `json:"discountRule"`
	Destination  string                `json:"destination" validate:"required"`
}

type createRequest struct {
	Destination string `json:"destination"`
}

type updateItemRequest struct {
	Quantity   *int               `json:"quantity" validate:"omitempty,min=1,max=10000"`
	Selections pricing.Selections `json:"selections"`
}

type promoRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type destinationRequest struct {
	Destination string `json:"destination" validate:"required"`
}

// Quote prices a cart without storing it.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, Line{ProductID: uuid.MustParse(l.ProductID), Quantity: l.Quantity, Selections: l.Selections})
	}
	receipt, err := h.Svc.Quote(r.Context(), QuoteRequest{
		Lines:        lines,
		PromoCode:    req.PromoCode,
		DiscountRule: req.DiscountRule,
		Destination:  req.Destination,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, receipt)
}

// Create starts a cart session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(w, r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}
	view, err := h.Svc.Create(r.Context(), req.Destination)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

// Get returns the recomputed cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// AddItem appends a line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.apply(w, r, AddItem{Line: Line{ProductID: uuid.MustParse(req.ProductID), Quantity: req.Quantity, Selections: req.Selections}})
}

// UpdateItem changes quantity and/or selections of a line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lineIndex(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == nil && req.Selections == nil {
		h.writeError(w, common.BadRequest("quantity or selections is required", nil))
		return
	}
	h.apply(w, r, UpdateItem{Index: index, Quantity: req.Quantity, Selections: req.Selections})
}

// RemoveItem drops a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lineIndex(w, r)
	if !ok {
		return
	}
	h.apply(w, r, RemoveItem{Index: index})
}

// ApplyPromo records a promo code. Unknown codes are accepted and reported as not applied.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.apply(w, r, ApplyPromo{Code: req.Code})
}

// RemovePromo clears the promo code.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, RemovePromo{})
}

// SetDestination records the shipping destination.
func (h *Handler) SetDestination(w http.ResponseWriter, r *http.Request) {
	var req destinationRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.apply(w, r, SetDestination{Destination: req.Destination})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, ev Event) {
	view, err := h.Svc.Apply(r.Context(), chi.URLParam(r, "id"), ev)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func (h *Handler) lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line index", nil)
		return 0, false
	}
	return index, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.IsAppError(err) {
		common.WriteError(w, h.Logger, err)
		return
	}
	details := map[string]any{}
	var lineErr *LineError
	if errors.As(err, &lineErr) {
		details["line"] = lineErr.Index
	}
	var variantErr *pricing.VariantError
	if errors.As(err, &variantErr) {
		details["missingRequired"] = variantErr.Missing
		details["unknownOptions"] = variantErr.Unknown
	}
	if len(details) == 0 {
		details = nil
	}

	switch {
	case errors.Is(err, ErrNotFound):
		err = common.NotFound("cart not found", err)
	case errors.Is(err, lock.ErrNotAcquired):
		err = common.NewAppError("CART_BUSY", "cart is being updated, retry shortly", http.StatusConflict, err)
	case errors.Is(err, ErrLineNotFound):
		err = common.NotFound("cart line not found", err)
	case errors.Is(err, catalog.ErrNotFound):
		err = common.Unprocessable("PRODUCT_UNAVAILABLE", "product not found", err).WithDetails(details)
	case errors.Is(err, ErrInvalidQuantity):
		err = common.Invalid("INVALID_QUANTITY", "", err).WithDetails(details)
	case variantErr != nil:
		err = common.Unprocessable("VARIANT_INVALID", variantErr.Error(), err).WithDetails(details)
	case errors.Is(err, shipping.ErrUnknownDestination):
		err = common.Unprocessable("UNKNOWN_DESTINATION", err.Error(), err)
	case errors.Is(err, pricing.ErrInvalidDiscountConfiguration):
		err = common.Invalid("INVALID_DISCOUNT", "", err)
	}
	common.WriteError(w, h.Logger, err)
}
