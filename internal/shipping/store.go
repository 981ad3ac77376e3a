package shipping

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Store persists the shipping policy.
type Store interface {
	Load(ctx context.Context) (Policy, error)
	Save(ctx context.Context, p Policy) error
}

// MemoryStore keeps the policy in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	policy Policy
}

// NewMemoryStore seeds a memory store.
func NewMemoryStore(p Policy) *MemoryStore {
	return &MemoryStore{policy: p.Normalized()}
}

// Load returns a copy of the stored policy.
func (s *MemoryStore) Load(_ context.Context) (Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy.Normalized(), nil
}

// Save replaces the stored policy.
func (s *MemoryStore) Save(_ context.Context, p Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p.Normalized()
	return nil
}

// PGStore reads the shipping_rates and shipping_settings tables.
type PGStore struct {
	DB db.Querier
}

// Load reads the rate table and the free shipping threshold.
func (s PGStore) Load(ctx context.Context) (Policy, error) {
	rows, err := s.DB.Query(ctx, `SELECT destination, fee::text, estimated_days FROM shipping_rates ORDER BY destination`)
	if err != nil {
		return Policy{}, err
	}
	defer rows.Close()
	p := Policy{Destinations: map[string]Rate{}}
	for rows.Next() {
		var (
			dest, fee string
			days      int32
		)
		if err := rows.Scan(&dest, &fee, &days); err != nil {
			return Policy{}, err
		}
		amount, err := pricing.ParseMoney(fee)
		if err != nil {
			return Policy{}, fmt.Errorf("destination %q fee: %w", dest, err)
		}
		p.Destinations[NormalizeDestination(dest)] = Rate{Fee: amount, EstimatedDays: int(days)}
	}
	if err := rows.Err(); err != nil {
		return Policy{}, err
	}

	var threshold *string
	err = s.DB.QueryRow(ctx, `SELECT free_shipping_threshold::text FROM shipping_settings WHERE id`).Scan(&threshold)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, err
	}
	if threshold != nil {
		amount, err := pricing.ParseMoney(*threshold)
		if err != nil {
			return Policy{}, fmt.Errorf("free shipping threshold: %w", err)
		}
		p.FreeShippingThreshold = &amount
	}
	return p, nil
}

// Save replaces the whole policy in one transaction.
func (s PGStore) Save(ctx context.Context, p Policy) (err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if _, err = tx.Exec(ctx, `DELETE FROM shipping_rates`); err != nil {
		return err
	}
	for _, d := range p.List() {
		if _, err = tx.Exec(ctx,
			`INSERT INTO shipping_rates (destination, fee, estimated_days) VALUES ($1, $2::numeric, $3)`,
			d.Name, d.Fee.String(), d.EstimatedDays,
		); err != nil {
			return err
		}
	}
	var threshold *string
	if p.FreeShippingThreshold != nil {
		v := p.FreeShippingThreshold.String()
		threshold = &v
	}
	if _, err = tx.Exec(ctx, `
INSERT INTO shipping_settings (id, free_shipping_threshold) VALUES (TRUE, $1::numeric)
ON CONFLICT (id) DO UPDATE SET free_shipping_threshold = EXCLUDED.free_shipping_threshold`, threshold); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
