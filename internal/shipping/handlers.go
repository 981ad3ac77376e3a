package shipping

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Handler exposes the destination list and the merchant policy editor.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type destinationsResponse struct {
	Destinations          []Destination  `json:"destinations"`
	FreeShippingThreshold *pricing.Money `json:"freeShippingThreshold"`
}

// Destinations lists every destination with its fee and estimate.
func (h *Handler) Destinations(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Policy(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, destinationsResponse{
		Destinations:          p.List(),
		FreeShippingThreshold: p.FreeShippingThreshold,
	})
}

// SavePolicy replaces the shipping policy.
func (h *Handler) SavePolicy(w http.ResponseWriter, r *http.Request) {
	var p Policy
	if err := common.DecodeJSON(w, r, &p); err != nil {
		h.writeError(w, err)
		return
	}
	saved, err := h.Svc.Save(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, saved)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidPolicy):
		err = common.Invalid("INVALID_POLICY", "", err)
	case errors.Is(err, ErrUnknownDestination):
		err = common.Unprocessable("UNKNOWN_DESTINATION", err.Error(), err)
	}
	common.WriteError(w, h.Logger, err)
}
