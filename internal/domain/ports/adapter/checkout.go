package adapter

import (
	"context"
	"strings"
)

// CheckoutOrder is what the trusted create_checkout function returns.
// Amount is computed server-side and is authoritative.
type CheckoutOrder struct {
	OrderID     string
	PaymentID   string
	PackageName string
	Amount      int64 // minor units
}

// CaptureResult is the capture function's reply. Status is the provider's
// capture status; an empty status means the function did not report one.
type CaptureResult struct {
	Status string
	Raw    map[string]any
}

// Completed reports whether the funds were actually captured. A 2xx reply
// with DECLINED, PENDING or any other status is not a completed payment.
func (r CaptureResult) Completed() bool {
	switch strings.ToUpper(strings.TrimSpace(r.Status)) {
	case "", "COMPLETED", "CAPTURED", "SUCCESS", "SUCCEEDED":
		return true
	}
	return false
}

// CheckoutProvider is the hex port for the trusted payment functions.
// Every call takes the caller's bearer token; implementations return
// errors wrapping domain.ErrNetwork or a *domain.ProviderError.
type CheckoutProvider interface {
	Name() string
	CreateCheckout(ctx context.Context, token, packageID string) (CheckoutOrder, error)
	CapturePayment(ctx context.Context, token, orderID, paymentID string) (CaptureResult, error)
	// CancelPayment is idempotent on the provider side.
	CancelPayment(ctx context.Context, token, paymentID string) error
}
