// Package catalog loads the tax attributes of products and customers that
// callers hand to the tax engine.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-tax/internal/platform/db"
	"github.com/odyssey-erp/odyssey-tax/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

// ErrNotFound is returned when a product or customer does not exist.
var ErrNotFound = httpx.ErrNotFound

// Repository reads tax profiles.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (tax.Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]tax.Product, error)
	GetCustomer(ctx context.Context, id int64) (tax.Customer, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const productQuery = `
	SELECT p.id, p.tax_rate, c.tax_rate
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func (r *repository) GetProduct(ctx context.Context, id int64) (tax.Product, error) {
	var p tax.Product
	err := r.db.QueryRow(ctx, productQuery+` WHERE p.id = $1`, id).
		Scan(&p.ID, &p.TaxRate, &p.CategoryTaxRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tax.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return tax.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (r *repository) GetProducts(ctx context.Context, ids []int64) (map[int64]tax.Product, error) {
	out := make(map[int64]tax.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, productQuery+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p tax.Product
		if err := rows.Scan(&p.ID, &p.TaxRate, &p.CategoryTaxRate); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
	}
	return out, nil
}

func (r *repository) GetCustomer(ctx context.Context, id int64) (tax.Customer, error) {
	const query = `
		SELECT id, tax_exempt, tax_rate_override, COALESCE(exemption_reason, '')
		FROM customers
		WHERE id = $1`
	var c tax.Customer
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.TaxExempt, &c.TaxRateOverride, &c.ExemptionReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tax.Customer{}, fmt.Errorf("customer %d: %w", id, ErrNotFound)
		}
		return tax.Customer{}, fmt.Errorf("get customer %d: %w", id, err)
	}
	return c, nil
}
