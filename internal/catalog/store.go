package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// Store persists product pricing snapshots owned by the catalog collaborator.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (pricing.Product, error)
	List(ctx context.Context) ([]pricing.Product, error)
	Save(ctx context.Context, p pricing.Product) error
}

// MemoryStore keeps products in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]pricing.Product
}

// NewMemoryStore seeds a memory store.
func NewMemoryStore(products ...pricing.Product) *MemoryStore {
	s := &MemoryStore{products: make(map[uuid.UUID]pricing.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// Get returns the product with id.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (pricing.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return pricing.Product{}, ErrNotFound
	}
	return p, nil
}

// List returns every product ordered by name.
func (s *MemoryStore) List(_ context.Context) ([]pricing.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pricing.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b pricing.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// Save inserts or replaces a product.
func (s *MemoryStore) Save(_ context.Context, p pricing.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// PGStore reads products with their variant groups and options from Postgres.
type PGStore struct {
	DB db.Querier
}

const (
	getProduct = `SELECT id, name, base_price::text FROM products WHERE id = $1`

	listProducts = `SELECT id, name, base_price::text FROM products ORDER BY name, id`

	listGroups = `
SELECT group_id, name, required
FROM product_variant_groups
WHERE product_id = $1
ORDER BY position, group_id`

	listOptions = `
SELECT group_id, option_id, label, price_adjustment::text
FROM product_variant_options
WHERE product_id = $1
ORDER BY group_id, position, option_id`
)

// Get loads one product snapshot.
func (s PGStore) Get(ctx context.Context, id uuid.UUID) (pricing.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, getProduct, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Product{}, ErrNotFound
		}
		return pricing.Product{}, err
	}
	if err := s.loadVariants(ctx, &p); err != nil {
		return pricing.Product{}, err
	}
	return p, nil
}

// List loads every product snapshot.
func (s PGStore) List(ctx context.Context) ([]pricing.Product, error) {
	rows, err := s.DB.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	var out []pricing.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadVariants(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Save replaces the product and its variant configuration in one transaction.
func (s PGStore) Save(ctx context.Context, p pricing.Product) (err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if _, err = tx.Exec(ctx, `
INSERT INTO products (id, name, base_price) VALUES ($1, $2, $3::numeric)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, base_price = EXCLUDED.base_price, updated_at = now()`,
		p.ID, p.Name, p.BasePrice.String()); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM product_variant_groups WHERE product_id = $1`, p.ID); err != nil {
		return err
	}
	for gi, g := range p.VariantGroups {
		if _, err = tx.Exec(ctx, `
INSERT INTO product_variant_groups (product_id, group_id, name, required, position) VALUES ($1, $2, $3, $4, $5)`,
			p.ID, g.ID, g.Name, g.Required, gi); err != nil {
			return err
		}
		for oi, o := range g.Options {
			if _, err = tx.Exec(ctx, `
INSERT INTO product_variant_options (product_id, group_id, option_id, label, price_adjustment, position)
VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
				p.ID, g.ID, o.ID, o.Label, o.PriceAdjustment.String(), oi); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func scanProduct(row pgx.Row) (pricing.Product, error) {
	var (
		p     pricing.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price); err != nil {
		return pricing.Product{}, err
	}
	base, err := pricing.ParseMoney(price)
	if err != nil {
		return pricing.Product{}, fmt.Errorf("product %s base price: %w", p.ID, err)
	}
	p.BasePrice = base
	return p, nil
}

func (s PGStore) loadVariants(ctx context.Context, p *pricing.Product) error {
	rows, err := s.DB.Query(ctx, listGroups, p.ID)
	if err != nil {
		return err
	}
	index := map[string]int{}
	for rows.Next() {
		var g pricing.VariantGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Required); err != nil {
			rows.Close()
			return err
		}
		index[g.ID] = len(p.VariantGroups)
		g.Options = []pricing.VariantOption{}
		p.VariantGroups = append(p.VariantGroups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.DB.Query(ctx, listOptions, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			groupID, adjustment string
			o                   pricing.VariantOption
		)
		if err := rows.Scan(&groupID, &o.ID, &o.Label, &adjustment); err != nil {
			return err
		}
		if o.PriceAdjustment, err = pricing.ParseMoney(adjustment); err != nil {
			return fmt.Errorf("option %s/%s adjustment: %w", groupID, o.ID, err)
		}
		if i, ok := index[groupID]; ok {
			p.VariantGroups[i].Options = append(p.VariantGroups[i].Options, o)
		}
	}
	if p.VariantGroups == nil {
		p.VariantGroups = []pricing.VariantGroup{}
	}
	return rows.Err()
}
