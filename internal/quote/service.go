package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tax/internal/catalog"
	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

// SettingsProvider yields the active settings. taxsettings.Store implements it.
type SettingsProvider interface {
	Current() tax.Settings
}

// SnapshotStore loads orders and persists their tax snapshots.
type SnapshotStore interface {
	LoadOrder(ctx context.Context, orderID int64) (Order, error)
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}

// Recorder receives one call per successful calculation.
type Recorder interface {
	ObserveCalculation(operation string, taxAmount float64)
}

type noopRecorder struct{}

func (noopRecorder) ObserveCalculation(string, float64) {}

// Service runs tax calculations for API and worker callers.
type Service struct {
	catalog  catalog.Repository
	settings SettingsProvider
	store    SnapshotStore
	metrics  Recorder
	resolver tax.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithSnapshotStore enables SnapshotOrder.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Service) { s.store = store }
}

// WithRecorder reports successful calculations to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithResolver replaces the default rate precedence chain.
func WithResolver(r tax.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a quote service.
func NewService(repo catalog.Repository, settings SettingsProvider, opts ...Option) *Service {
	s := &Service{
		catalog:  repo,
		settings: settings,
		metrics:  noopRecorder{},
		resolver: tax.NewResolver(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the settings the next calculation will use.
func (s *Service) Settings() tax.Settings {
	return s.settings.Current()
}

// Line prices a single line.
func (s *Service) Line(ctx context.Context, req LineRequest) (tax.LineTotals, error) {
	if err := validateRequest(req); err != nil {
		return tax.LineTotals{}, err
	}
	product, err := s.product(ctx, req.ProductID)
	if err != nil {
		return tax.LineTotals{}, err
	}
	customer, err := s.customer(ctx, req.CustomerID)
	if err != nil {
		return tax.LineTotals{}, err
	}

	resolver := s.resolver
	totals := tax.CalculateLineItemTotals(req.Quantity, req.UnitPrice, product, customer, tax.LineOptions{
		TaxRateOverride: req.TaxRateOverride,
		Settings:        s.settings.Current(),
		Method:          req.Method,
		Resolver:        &resolver,
	})
	s.metrics.ObserveCalculation(OperationLine, totals.TaxAmount)
	return totals, nil
}

// Order prices every line of an order and groups tax by rate.
func (s *Service) Order(ctx context.Context, req OrderRequest) (tax.OrderTaxBreakdown, error) {
	if err := validateRequest(req); err != nil {
		return tax.OrderTaxBreakdown{}, err
	}
	lines := make([]OrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = OrderLine{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			TaxRateOverride: l.TaxRateOverride,
		}
	}
	breakdown, _, err := s.breakdown(ctx, req.CustomerID, lines)
	if err != nil {
		return tax.OrderTaxBreakdown{}, err
	}
	s.metrics.ObserveCalculation(OperationOrder, breakdown.TotalTax)
	return breakdown, nil
}

// Config reports the effective rate for a product and customer pair and
// which precedence level produced it.
func (s *Service) Config(ctx context.Context, req ConfigRequest) (tax.TaxConfig, error) {
	if err := validateRequest(req); err != nil {
		return tax.TaxConfig{}, err
	}
	product, err := s.product(ctx, req.ProductID)
	if err != nil {
		return tax.TaxConfig{}, err
	}
	customer, err := s.customer(ctx, req.CustomerID)
	if err != nil {
		return tax.TaxConfig{}, err
	}
	cfg := s.resolver.Config(tax.RateContext{
		Product:  product,
		Customer: customer,
		Settings: s.settings.Current(),
	})
	s.metrics.ObserveCalculation(OperationConfig, 0)
	return cfg, nil
}

// Reverse splits a tax-inclusive total into subtotal and tax. The rounding
// policy comes from the active settings unless the request overrides it.
func (s *Service) Reverse(ctx context.Context, req ReverseRequest) (tax.ReverseResult, error) {
	if err := validateRequest(req); err != nil {
		return tax.ReverseResult{}, err
	}
	settings := s.settings.Current()

	var rate float64
	if req.Rate != nil {
		rate = *req.Rate
	} else {
		product, err := s.product(ctx, req.ProductID)
		if err != nil {
			return tax.ReverseResult{}, err
		}
		customer, err := s.customer(ctx, req.CustomerID)
		if err != nil {
			return tax.ReverseResult{}, err
		}
		rate = s.resolver.Resolve(tax.RateContext{
			Product:  product,
			Customer: customer,
			Settings: settings,
		}).Rate
	}

	rounding := settings.RoundingMethod
	if req.Rounding != "" {
		rounding = req.Rounding
	}
	precision := settings.RoundingPrecision
	if req.Precision != nil {
		precision = *req.Precision
	}

	result := tax.CalculateReverseTax(req.Total, rate, rounding, precision)
	s.metrics.ObserveCalculation(OperationReverse, result.TaxAmount)
	return result, nil
}

// SnapshotOrder computes the breakdown of a stored order and persists it.
func (s *Service) SnapshotOrder(ctx context.Context, orderID int64) (Snapshot, error) {
	if s.store == nil {
		return Snapshot{}, ErrNoSnapshotStore
	}
	if orderID <= 0 {
		return Snapshot{}, fmt.Errorf("%w: order id must be positive", ErrValidation)
	}
	order, err := s.store.LoadOrder(ctx, orderID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load order %d: %w", orderID, err)
	}

	breakdown, settings, err := s.breakdown(ctx, order.CustomerID, order.Lines)
	if err != nil {
		return Snapshot{}, fmt.Errorf("order %d: %w", orderID, err)
	}

	snapshot := Snapshot{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Settings:   settings,
		Breakdown:  breakdown,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot for order %d: %w", orderID, err)
	}

	s.logger.Info("order tax snapshot saved",
		slog.Int64("order_id", order.ID),
		slog.String("snapshot_id", snapshot.ID.String()),
		slog.Float64("total_tax", breakdown.TotalTax),
	)
	s.metrics.ObserveCalculation(OperationSnapshot, breakdown.TotalTax)
	return snapshot, nil
}

// breakdown loads the customer and all distinct products in one batch and
// runs the order calculation against one settings value.
func (s *Service) breakdown(ctx context.Context, customerID *int64, lines []OrderLine) (tax.OrderTaxBreakdown, tax.Settings, error) {
	settings := s.settings.Current()
	customer, err := s.customer(ctx, customerID)
	if err != nil {
		return tax.OrderTaxBreakdown{}, settings, err
	}

	var ids []int64
	seen := make(map[int64]struct{})
	for _, l := range lines {
		if l.ProductID == nil {
			continue
		}
		if _, ok := seen[*l.ProductID]; ok {
			continue
		}
		seen[*l.ProductID] = struct{}{}
		ids = append(ids, *l.ProductID)
	}
	products := map[int64]tax.Product{}
	if len(ids) > 0 {
		products, err = s.catalog.GetProducts(ctx, ids)
		if err != nil {
			return tax.OrderTaxBreakdown{}, settings, fmt.Errorf("load products: %w", err)
		}
	}

	items := make([]tax.OrderLine, len(lines))
	for i, l := range lines {
		item := tax.OrderLine{
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			TaxRateOverride: l.TaxRateOverride,
		}
		if l.ProductID != nil {
			p, ok := products[*l.ProductID]
			if !ok {
				return tax.OrderTaxBreakdown{}, settings, fmt.Errorf("product %d: %w", *l.ProductID, ErrNotFound)
			}
			item.Product = &p
		}
		items[i] = item
	}
	return s.resolver.OrderTaxBreakdown(items, customer, settings), settings, nil
}

func (s *Service) product(ctx context.Context, id *int64) (*tax.Product, error) {
	if id == nil {
		return nil, nil
	}
	p, err := s.catalog.GetProduct(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	return &p, nil
}

func (s *Service) customer(ctx context.Context, id *int64) (*tax.Customer, error) {
	if id == nil {
		return nil, nil
	}
	c, err := s.catalog.GetCustomer(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	return &c, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("taxrate", func(fl validator.FieldLevel) bool {
		return tax.IsValidTaxRate(fl.Field().Float())
	})
	return v
}

func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
