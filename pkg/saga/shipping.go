package saga

import (
	"context"
	"fmt"
)

// ShippingScheduler is the abstract capability Shipping.schedule calls
// through -- only a fake implementation is wired in this module, the
// shipping-side analogue of PaymentProvider/StockChecker.
type ShippingScheduler interface {
	Schedule(ctx context.Context, orderID string) (carrierRef string, err error)
}

// FakeShippingConfig binds the shipping.fake config record.
type FakeShippingConfig struct {
	Enabled       bool
	FailureModulo int
}

// FakeShipping is a deterministic shipping scheduler keyed by the length of
// orderID, the same simplistic-but-concrete convention as FakeProvider and
// FakeStock.
type FakeShipping struct {
	cfg FakeShippingConfig
}

// NewFakeShipping builds a FakeShipping from cfg.
func NewFakeShipping(cfg FakeShippingConfig) *FakeShipping {
	if cfg.FailureModulo <= 0 {
		cfg.FailureModulo = 13
	}
	return &FakeShipping{cfg: cfg}
}

// Schedule declines deterministically when len(orderID) is divisible by
// FailureModulo, otherwise returns a synthetic carrier reference.
func (f *FakeShipping) Schedule(ctx context.Context, orderID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if f.cfg.FailureModulo > 0 && len(orderID)%f.cfg.FailureModulo == 0 && orderID != "" {
		return "", ErrShippingDeclined
	}

	return "fake-carrier-" + orderID, nil
}

// ErrShippingDeclined is returned by Schedule when the fake scheduler's
// deterministic rule rejects the order.
var ErrShippingDeclined = fmt.Errorf("saga: shipping scheduler declined")
