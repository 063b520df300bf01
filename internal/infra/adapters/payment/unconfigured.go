package payment

import (
	"context"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/adapter"
)

var _ adapter.CheckoutProvider = (*UnconfiguredGateway)(nil)

// UnconfiguredGateway stands in when provider settings are absent so the rest
// of the service still starts. Every operation reports domain.ErrConfigMissing.
type UnconfiguredGateway struct{}

func NewUnconfiguredGateway() *UnconfiguredGateway { return &UnconfiguredGateway{} }

func (UnconfiguredGateway) Name() string { return "unconfigured" }

func (UnconfiguredGateway) CreateCheckout(ctx context.Context, token, packageID string) (adapter.CheckoutOrder, error) {
	return adapter.CheckoutOrder{}, domain.ErrConfigMissing
}

func (UnconfiguredGateway) CapturePayment(ctx context.Context, token, orderID, paymentID string) (adapter.CaptureResult, error) {
	return adapter.CaptureResult{}, domain.ErrConfigMissing
}

func (UnconfiguredGateway) CancelPayment(ctx context.Context, token, paymentID string) error {
	return domain.ErrConfigMissing
}
