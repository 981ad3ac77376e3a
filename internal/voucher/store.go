package voucher

import (
	"context"
	"fmt"
	"sync"

	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Store persists the promo code table owned by the promotions collaborator.
type Store interface {
	List(ctx context.Context) ([]PromoCode, error)
	Save(ctx context.Context, promo PromoCode) error
	Delete(ctx context.Context, code string) error
}

// MemoryStore keeps promo codes in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	codes map[string]PromoCode
}

// NewMemoryStore seeds a memory store with codes.
func NewMemoryStore(codes ...PromoCode) *MemoryStore {
	s := &MemoryStore{codes: make(map[string]PromoCode, len(codes))}
	for _, c := range codes {
		c.Code = NormalizeCode(c.Code)
		s.codes[c.Code] = c
	}
	return s
}

// List returns every stored code.
func (s *MemoryStore) List(_ context.Context) ([]PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PromoCode, 0, len(s.codes))
	for _, c := range s.codes {
		out = append(out, c)
	}
	return out, nil
}

// Save inserts or replaces a code.
func (s *MemoryStore) Save(_ context.Context, promo PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	promo.Code = NormalizeCode(promo.Code)
	s.codes[promo.Code] = promo
	return nil
}

// Delete removes a code.
func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeCode(code)
	if _, ok := s.codes[key]; !ok {
		return ErrNotFound
	}
	delete(s.codes, key)
	return nil
}

// PGStore reads and writes the promo_codes table.
type PGStore struct {
	DB db.Querier
}

const listPromoCodes = `
SELECT code, kind, value::text, min_cap::text, max_cap::text, description
FROM promo_codes
ORDER BY code`

// List returns every stored code ordered by code.
func (s PGStore) List(ctx context.Context) ([]PromoCode, error) {
	rows, err := s.DB.Query(ctx, listPromoCodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PromoCode
	for rows.Next() {
		var (
			code, kind, value, description string
			minCap, maxCap                 *string
		)
		if err := rows.Scan(&code, &kind, &value, &minCap, &maxCap, &description); err != nil {
			return nil, err
		}
		promo, err := promoFromRow(code, kind, value, minCap, maxCap, description)
		if err != nil {
			return nil, err
		}
		out = append(out, promo)
	}
	return out, rows.Err()
}

const upsertPromoCode = `
INSERT INTO promo_codes (code, kind, value, min_cap, max_cap, description, updated_at)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, now())
ON CONFLICT (code) DO UPDATE SET
    kind = EXCLUDED.kind,
    value = EXCLUDED.value,
    min_cap = EXCLUDED.min_cap,
    max_cap = EXCLUDED.max_cap,
    description = EXCLUDED.description,
    updated_at = now()`

// Save upserts a code.
func (s PGStore) Save(ctx context.Context, promo PromoCode) error {
	_, err := s.DB.Exec(ctx, upsertPromoCode,
		NormalizeCode(promo.Code),
		promo.Rule.Kind.String(),
		promo.Rule.Value.String(),
		optionalMoney(promo.Rule.MinCap),
		optionalMoney(promo.Rule.MaxCap),
		promo.Description,
	)
	return err
}

// Delete removes a code.
func (s PGStore) Delete(ctx context.Context, code string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM promo_codes WHERE code = $1`, NormalizeCode(code))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func promoFromRow(code, kind, value string, minCap, maxCap *string, description string) (PromoCode, error) {
	k, err := pricing.ParseDiscountKind(kind)
	if err != nil {
		return PromoCode{}, err
	}
	v, err := pricing.ParseMoney(value)
	if err != nil {
		return PromoCode{}, fmt.Errorf("promo %q value: %w", code, err)
	}
	rule := pricing.DiscountRule{Kind: k, Value: v}
	if rule.MinCap, err = parseOptionalMoney(minCap); err != nil {
		return PromoCode{}, fmt.Errorf("promo %q minCap: %w", code, err)
	}
	if rule.MaxCap, err = parseOptionalMoney(maxCap); err != nil {
		return PromoCode{}, fmt.Errorf("promo %q maxCap: %w", code, err)
	}
	return PromoCode{Code: code, Rule: rule, Description: description}, nil
}

func parseOptionalMoney(value *string) (*pricing.Money, error) {
	if value == nil {
		return nil, nil
	}
	m, err := pricing.ParseMoney(*value)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func optionalMoney(value *pricing.Money) *string {
	if value == nil {
		return nil
	}
	s := value.String()
	return &s
}
