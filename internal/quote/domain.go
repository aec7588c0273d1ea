// Package quote exposes the tax engine to callers: it validates requests,
// loads product and customer tax profiles, runs the calculation against the
// active settings, and persists order snapshots.
package quote

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tax/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

var (
	// ErrValidation marks a request that failed validation.
	ErrValidation = httpx.ErrValidation
	// ErrNotFound marks a missing order, product or customer.
	ErrNotFound = httpx.ErrNotFound
	// ErrNoSnapshotStore is returned by SnapshotOrder when no store is wired.
	ErrNoSnapshotStore = errors.New("quote: snapshot store not configured")
)

// Operation labels reported to the metrics recorder.
const (
	OperationLine     = "line"
	OperationOrder    = "order"
	OperationConfig   = "config"
	OperationReverse  = "reverse"
	OperationSnapshot = "snapshot"
)

// LineRequest prices a single line.
type LineRequest struct {
	Quantity        float64    `json:"quantity" validate:"gte=0"`
	UnitPrice       float64    `json:"unit_price" validate:"gte=0"`
	ProductID       *int64     `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	CustomerID      *int64     `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	TaxRateOverride *float64   `json:"tax_rate_override,omitempty" validate:"omitempty,taxrate"`
	Method          tax.Method `json:"method,omitempty" validate:"omitempty,oneof=exclusive inclusive"`
}

// OrderLineRequest is one line of an OrderRequest.
type OrderLineRequest struct {
	Quantity        float64  `json:"quantity" validate:"gte=0"`
	UnitPrice       float64  `json:"unit_price" validate:"gte=0"`
	ProductID       *int64   `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	TaxRateOverride *float64 `json:"tax_rate_override,omitempty" validate:"omitempty,taxrate"`
}

// OrderRequest prices a whole order. An empty line list is valid and yields
// an empty breakdown.
type OrderRequest struct {
	CustomerID *int64             `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Lines      []OrderLineRequest `json:"lines" validate:"dive"`
}

// ConfigRequest asks for the effective tax configuration of a product and
// customer pair.
type ConfigRequest struct {
	ProductID  *int64 `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	CustomerID *int64 `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
}

// ReverseRequest splits a tax-inclusive total. When Rate is nil the rate is
// resolved from ProductID and CustomerID the same way a line would be.
type ReverseRequest struct {
	Total      float64            `json:"total"`
	Rate       *float64           `json:"rate,omitempty" validate:"omitempty,taxrate"`
	ProductID  *int64             `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	CustomerID *int64             `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Rounding   tax.RoundingMethod `json:"rounding_method,omitempty" validate:"omitempty,oneof=round floor ceil"`
	Precision  *int               `json:"rounding_precision,omitempty" validate:"omitempty,gte=0,lte=8"`
}

// Order is a stored sales order as far as tax is concerned.
type Order struct {
	ID         int64
	CustomerID *int64
	Lines      []OrderLine
}

// OrderLine is a stored sales order line.
type OrderLine struct {
	ProductID       *int64
	Quantity        float64
	UnitPrice       float64
	TaxRateOverride *float64
}

// Snapshot is the persisted tax breakdown of an order at a point in time.
type Snapshot struct {
	ID         uuid.UUID             `json:"id"`
	OrderID    int64                 `json:"order_id"`
	CustomerID *int64                `json:"customer_id,omitempty"`
	Settings   tax.Settings          `json:"settings"`
	Breakdown  tax.OrderTaxBreakdown `json:"breakdown"`
	CreatedAt  time.Time             `json:"created_at"`
}
