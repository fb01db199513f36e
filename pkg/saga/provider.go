package saga

import (
	"context"
	"fmt"
	"time"
)

// PaymentProvider is the small pluggable capability SPEC_FULL.md §4.6
// names as the abstract "payment provider" -- C6's Payment.authorize/
// Payment.capture/Payment.void steps call through this interface; only a
// fake implementation is wired in this module (Adyen/Stripe are config
// placeholders per §1's non-goal on concrete providers).
type PaymentProvider interface {
	Authorize(ctx context.Context, orderID string, amountMinor int64) (providerRef string, err error)
	Capture(ctx context.Context, providerRef string, amountMinor int64) error
	Void(ctx context.Context, providerRef string) error
}

// ErrProviderDeclined is returned by Authorize/Capture when the fake
// provider's deterministic risk check rejects the amount.
var ErrProviderDeclined = fmt.Errorf("saga: payment provider declined")

// FakeProviderConfig binds the provider.fake config record named in
// SPEC_FULL.md §6.
type FakeProviderConfig struct {
	Enabled        bool
	MinLatency     time.Duration
	MaxLatency     time.Duration
	MaxAmountMinor int64
	RiskModulo     int64
}

// FakeProvider is a deterministic success/failure payment provider keyed by
// a modulo of the order total, giving C6's payment steps a concrete (if
// deliberately simplistic) body to exercise.
type FakeProvider struct {
	cfg FakeProviderConfig
}

// NewFakeProvider builds a FakeProvider from cfg.
func NewFakeProvider(cfg FakeProviderConfig) *FakeProvider {
	if cfg.RiskModulo <= 0 {
		cfg.RiskModulo = 7
	}
	return &FakeProvider{cfg: cfg}
}

// Authorize declines deterministically when amountMinor exceeds
// MaxAmountMinor or is divisible by RiskModulo (simulating a risk-engine
// rejection), otherwise returns a synthetic provider reference.
func (p *FakeProvider) Authorize(ctx context.Context, orderID string, amountMinor int64) (string, error) {
	if p.cfg.MaxAmountMinor > 0 && amountMinor > p.cfg.MaxAmountMinor {
		return "", ErrProviderDeclined
	}

	if p.cfg.RiskModulo > 0 && amountMinor%p.cfg.RiskModulo == 0 {
		return "", ErrProviderDeclined
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	return "fake-ref-" + orderID, nil
}

// Capture declines with the same deterministic max-amount and risk-modulo
// checks Authorize applies, evaluated on the captured amount. An amount that
// passed Authorize under the same config passes Capture as well, so a
// capture is declined only for a different amount or a changed config.
func (p *FakeProvider) Capture(ctx context.Context, providerRef string, amountMinor int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p.cfg.MaxAmountMinor > 0 && amountMinor > p.cfg.MaxAmountMinor {
		return ErrProviderDeclined
	}

	if p.cfg.RiskModulo > 0 && amountMinor%p.cfg.RiskModulo == 0 {
		return ErrProviderDeclined
	}

	return nil
}

// Void always succeeds.
func (p *FakeProvider) Void(ctx context.Context, providerRef string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
