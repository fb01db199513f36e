package saga

import (
	"context"
	"fmt"
)

// StockChecker is the abstract capability Inventory.reserve/Inventory.release
// steps call through -- only a fake implementation is wired in this module,
// mirroring PaymentProvider's deliberately simplistic body.
type StockChecker interface {
	Reserve(ctx context.Context, sku string, qty int32) error
	Release(ctx context.Context, sku string, qty int32) error
}

// FakeStockConfig binds the stock.fake config record.
type FakeStockConfig struct {
	Enabled            bool
	InsufficientModulo int32
}

// FakeStock is a deterministic reserve/release stock checker keyed by a
// modulo of the requested quantity, giving Inventory.reserve a concrete
// (if deliberately simplistic) body to exercise, the same convention as
// FakeProvider's risk-modulo decline.
type FakeStock struct {
	cfg FakeStockConfig
}

// NewFakeStock builds a FakeStock from cfg.
func NewFakeStock(cfg FakeStockConfig) *FakeStock {
	if cfg.InsufficientModulo <= 0 {
		cfg.InsufficientModulo = 11
	}
	return &FakeStock{cfg: cfg}
}

// Reserve declines deterministically when qty is divisible by
// InsufficientModulo (simulating a SKU running out), otherwise succeeds.
func (s *FakeStock) Reserve(ctx context.Context, sku string, qty int32) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if s.cfg.InsufficientModulo > 0 && qty%s.cfg.InsufficientModulo == 0 {
		return ErrStockInsufficient
	}

	return nil
}

// Release always succeeds.
func (s *FakeStock) Release(ctx context.Context, sku string, qty int32) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ErrStockInsufficient is returned by Reserve when the fake checker's
// deterministic rule rejects the quantity.
var ErrStockInsufficient = fmt.Errorf("saga: stock insufficient")
