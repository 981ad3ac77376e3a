package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/cache"
	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

var shirtID = uuid.MustParse("0b7a4a2e-4c55-4d7b-9d8e-6f0e2d1c9a11")

func m(v string) pricing.Money { return decimal.RequireFromString(v) }

func shirt() pricing.Product {
	return pricing.Product{
		ID:        shirtID,
		Name:      "Linen shirt",
		BasePrice: m("250"),
		VariantGroups: []pricing.VariantGroup{
			{ID: "color", Required: true, Options: []pricing.VariantOption{
				{ID: "white", PriceAdjustment: m("0")},
				{ID: "navy", PriceAdjustment: m("15")},
			}},
			{ID: "gift", Options: []pricing.VariantOption{{ID: "wrap", PriceAdjustment: m("10")}}},
		},
	}
}

func newService(t *testing.T) (*catalog.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:  catalog.NewMemoryStore(shirt()),
		Cache:  cache.NewJSON(client, "test:", time.Minute),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, mr
}

func newRouter(t *testing.T) (*chi.Mux, *catalog.Service) {
	t.Helper()
	svc, _ := newService(t)
	h := catalog.NewHandler(catalog.HandlerConfig{Service: svc, Logger: zerolog.Nop()})
	r := chi.NewRouter()
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Get)
	r.Post("/products/{id}/price", h.Price)
	r.Post("/admin/pricing/preview", h.Preview)
	r.Put("/admin/products/{id}", h.Save)
	return r, svc
}

func TestServiceGetCachesSnapshot(t *testing.T) {
	svc, mr := newService(t)
	p, err := svc.Get(context.Background(), shirtID)
	require.NoError(t, err)
	require.Equal(t, "Linen shirt", p.Name)
	require.True(t, mr.Exists("test:"+cache.KeyProduct(shirtID.String())))

	cached, err := svc.Get(context.Background(), shirtID)
	require.NoError(t, err)
	require.True(t, cached.BasePrice.Equal(m("250")))
	require.Len(t, cached.VariantGroups, 2)
}

func TestServiceGetMissing(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	require.True(t, errors.Is(err, catalog.ErrNotFound))

	_, err = svc.Products(context.Background(), []uuid.UUID{shirtID, uuid.New()})
	require.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestServiceSaveValidatesAndEvicts(t *testing.T) {
	ctx := context.Background()
	svc, mr := newService(t)
	_, err := svc.Get(ctx, shirtID)
	require.NoError(t, err)

	bad := shirt()
	bad.BasePrice = m("-1")
	_, err = svc.Save(ctx, bad)
	require.True(t, errors.Is(err, pricing.ErrInvalidProduct))

	updated := shirt()
	updated.BasePrice = m("300")
	_, err = svc.Save(ctx, updated)
	require.NoError(t, err)
	require.False(t, mr.Exists("test:"+cache.KeyProduct(shirtID.String())))

	p, err := svc.Get(ctx, shirtID)
	require.NoError(t, err)
	require.True(t, p.BasePrice.Equal(m("300")))
}

func TestServiceView(t *testing.T) {
	svc, _ := newService(t)
	view, err := svc.View(context.Background(), shirtID)
	require.NoError(t, err)
	require.Equal(t, pricing.Selections{"color": "white"}, view.DefaultSelections)
	require.True(t, view.DefaultUnitPrice.Amount.Equal(m("250")))
}

func TestPreviewPrice(t *testing.T) {
	rule := pricing.PercentageRule(m("10"))
	preview, err := catalog.PreviewPrice(shirt(), pricing.Selections{"color": "navy"}, 2, &rule)
	require.NoError(t, err)
	require.True(t, preview.UnitPrice.Amount.Equal(m("265")))
	require.True(t, preview.LineTotal.Equal(m("530")))
	require.True(t, preview.Discount.Equal(m("53")))
	require.True(t, preview.DiscountedLineTotal.Equal(m("477")))

	invalid := pricing.PercentageRule(m("120"))
	_, err = catalog.PreviewPrice(shirt(), nil, 1, &invalid)
	require.True(t, errors.Is(err, pricing.ErrInvalidDiscountConfiguration))

	preview, err = catalog.PreviewPrice(shirt(), pricing.Selections{}, 0, nil)
	require.NoError(t, err)
	require.Equal(t, 1, preview.Quantity)
	require.Equal(t, []string{"color"}, preview.UnitPrice.MissingRequired)
}

func TestHandlerGetProduct(t *testing.T) {
	r, _ := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+shirtID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data catalog.ProductView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, shirtID, body.Data.Product.ID)
	require.True(t, body.Data.DefaultUnitPrice.Amount.Equal(m("250")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerPrice(t *testing.T) {
	r, _ := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products/"+shirtID.String()+"/price",
		strings.NewReader(`{"selections":{"color":"navy","gift":"wrap"}}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			UnitPrice pricing.UnitPrice `json:"unitPrice"`
			Final     bool              `json:"final"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Data.Final)
	require.True(t, body.Data.UnitPrice.Amount.Equal(m("275")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products/"+shirtID.String()+"/price",
		strings.NewReader(`{"selections":{"color":"purple"}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Data.Final)
	require.Equal(t, []string{"color:purple"}, body.Data.UnitPrice.UnknownOptions)
	require.Equal(t, []string{"color"}, body.Data.UnitPrice.MissingRequired)
}

func TestHandlerPreviewRejectsInvalidRule(t *testing.T) {
	r, _ := newRouter(t)
	rec := httptest.NewRecorder()
	payload := `{"product":{"name":"Mug","basePrice":"40","variantGroups":[]},"discountRule":{"kind":"percentage","value":"10","minCap":"20","maxCap":"5"}}`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/pricing/preview", strings.NewReader(payload)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_DISCOUNT")
}

func TestHandlerSaveProduct(t *testing.T) {
	r, svc := newRouter(t)
	id := uuid.New()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/products/"+id.String(),
		strings.NewReader(`{"name":"Mug","basePrice":"40","variantGroups":[{"id":"size","required":true,"options":[]}]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_PRODUCT")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/products/"+id.String(),
		strings.NewReader(`{"name":"Mug","basePrice":"40"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Mug", p.Name)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Linen shirt")
}
