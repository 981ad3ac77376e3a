package voucher

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Handler exposes promo evaluation and administrative promo management endpoints.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type evaluateRequest struct {
	Code     string        `json:"code" validate:"required,max=64"`
	Subtotal pricing.Money `json:"subtotal"`
}

type promoPayload struct {
	Rule        pricing.DiscountRule `json:"rule"`
	Description string               `json:"description" validate:"max=200"`
}

// Evaluate reports the discount a code would grant on a subtotal.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Subtotal.IsNegative() {
		h.writeError(w, common.BadRequest("subtotal must not be negative", nil).WithDetails(map[string]string{"subtotal": "must be at least 0"}))
		return
	}
	res, err := h.Svc.Evaluate(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// List returns every configured promo code.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	table, err := h.Svc.Table(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, table.Codes())
}

// Put creates or replaces the promo code named in the path.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	var payload promoPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	saved, err := h.Svc.Save(r.Context(), PromoCode{Code: code, Rule: payload.Rule, Description: payload.Description})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info().Str("code", saved.Code).Str("kind", saved.Rule.Kind.String()).Msg("promo code saved")
	common.Data(w, http.StatusOK, saved)
}

// Delete removes the promo code named in the path.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if err := h.Svc.Delete(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		err = common.NotFound("promo code not found", err)
	case errors.Is(err, ErrInvalidPromoCode), errors.Is(err, pricing.ErrInvalidDiscountConfiguration):
		err = common.Invalid("INVALID_DISCOUNT", "", err)
	}
	common.WriteError(w, h.Logger, err)
}
