package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Handler exposes product pricing endpoints for the storefront and the merchant dashboard.
type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

// HandlerConfig groups Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Logger  zerolog.Logger
}

// NewHandler constructs a catalog handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{svc: cfg.Service, logger: cfg.Logger}
}

type priceRequest struct {
	Selections pricing.Selections `json:"selections"`
}

type previewRequest struct {
	Product    pricing.Product       `json:"product"`
	Selections pricing.Selections    `json:"selections"`
	Quantity   int                   `json:"quantity" validate:"omitempty,min=1,max=10000"`
	Rule       *pricing.DiscountRule `json:"discountRule"`
}

type productPayload struct {
	Name          string                 `json:"name" validate:"required,max=200"`
	BasePrice     pricing.Money          `json:"basePrice"`
	VariantGroups []pricing.VariantGroup `json:"variantGroups"`
}

// List returns every product snapshot.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if products == nil {
		products = []pricing.Product{}
	}
	common.Data(w, http.StatusOK, products)
}

// Get returns the product page payload.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.View(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Price resolves the unit price for the customer's current selections. Missing
// and unknown variants are reported, not rejected, so the page can prompt for them.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	unit := pricing.ResolveUnitPrice(p, req.Selections)
	if unit.Clamped {
		h.logger.Warn().Str("product_id", id.String()).Msg("variant adjustments clamped unit price to zero")
	}
	common.Data(w, http.StatusOK, map[string]any{
		"unitPrice": unit,
		"final":     unit.Final(),
	})
}

// Preview prices a draft from the merchant pricing form.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	preview, err := PreviewPrice(req.Product, req.Selections, req.Quantity, req.Rule)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, preview)
}

// Save creates or replaces the product named in the path.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var payload productPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	saved, err := h.svc.Save(r.Context(), pricing.Product{
		ID:            id,
		Name:          payload.Name,
		BasePrice:     payload.BasePrice,
		VariantGroups: payload.VariantGroups,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info().Str("product_id", id.String()).Msg("product pricing saved")
	common.Data(w, http.StatusOK, saved)
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		err = common.NotFound("product not found", err)
	case errors.Is(err, pricing.ErrInvalidProduct):
		err = common.Invalid("INVALID_PRODUCT", "", err)
	case errors.Is(err, pricing.ErrInvalidDiscountConfiguration):
		err = common.Invalid("INVALID_DISCOUNT", "", err)
	}
	common.WriteError(w, h.logger, err)
}
