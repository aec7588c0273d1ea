package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-tax/internal/platform/db"
)

// Conn is satisfied by *pgxpool.Pool.
type Conn interface {
	db.DBTX
	db.TxBeginner
}

// Repository is the PostgreSQL SnapshotStore.
type Repository struct {
	conn Conn
}

// NewRepository constructs a snapshot repository.
func NewRepository(conn Conn) *Repository {
	return &Repository{conn: conn}
}

var _ SnapshotStore = (*Repository)(nil)

// LoadOrder reads the customer and lines of a sales order.
func (r *Repository) LoadOrder(ctx context.Context, orderID int64) (Order, error) {
	order := Order{ID: orderID}
	err := r.conn.QueryRow(ctx, `SELECT customer_id FROM sales_orders WHERE id = $1`, orderID).
		Scan(&order.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("sales order %d: %w", orderID, ErrNotFound)
		}
		return Order{}, fmt.Errorf("get sales order: %w", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT product_id, quantity, unit_price, tax_rate_override
		FROM sales_order_lines
		WHERE sales_order_id = $1
		ORDER BY line_order, id`, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("list sales order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice, &line.TaxRateOverride); err != nil {
			return Order{}, fmt.Errorf("scan sales order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	return order, nil
}

// SaveSnapshot supersedes the order's current snapshot and inserts the new
// one in a single transaction.
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	breakdown, err := json.Marshal(snapshot.Breakdown.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	settings, err := json.Marshal(snapshot.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE order_tax_snapshots
			SET superseded_at = $2
			WHERE sales_order_id = $1 AND superseded_at IS NULL`,
			snapshot.OrderID, snapshot.CreatedAt); err != nil {
			return fmt.Errorf("supersede snapshots: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_tax_snapshots (
				id, sales_order_id, customer_id, subtotal, total_tax, total,
				breakdown, settings, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			snapshot.ID, snapshot.OrderID, snapshot.CustomerID,
			snapshot.Breakdown.Subtotal, snapshot.Breakdown.TotalTax, snapshot.Breakdown.Total,
			breakdown, settings, snapshot.CreatedAt); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		return nil
	})
}

// PendingSnapshotOrders returns up to limit orders that have no current
// snapshot, oldest first.
func (r *Repository) PendingSnapshotOrders(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT so.id
		FROM sales_orders so
		WHERE NOT EXISTS (
			SELECT 1 FROM order_tax_snapshots s
			WHERE s.sales_order_id = so.id AND s.superseded_at IS NULL
		)
		ORDER BY so.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending snapshot orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
