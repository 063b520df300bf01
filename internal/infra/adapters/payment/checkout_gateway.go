// File: internal/infra/adapters/payment/checkout_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"membership-billing/internal/config"
	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/infra/metrics"
)

const (
	opCreate  = "create_checkout"
	opCapture = "capture_payment"
	opCancel  = "cancel_payment"

	maxResponseBody = 1 << 20
)

var _ adapter.CheckoutProvider = (*CheckoutGateway)(nil)

// CheckoutGateway calls the trusted checkout functions over HTTP. Every request
// carries the caller's bearer token and the configured client id; amounts are
// decided by the functions and returned in major units.
type CheckoutGateway struct {
	name     string
	baseURL  string
	clientID string
	client   *http.Client
	log      *zerolog.Logger
}

func NewCheckoutGateway(cfg config.ProviderConfig, logger *zerolog.Logger) (*CheckoutGateway, error) {
	if !cfg.Configured() {
		return nil, domain.ErrConfigMissing
	}
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid provider api_base_url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "paypal"
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "CheckoutGateway").Str("provider", name).Logger()
	}
	return &CheckoutGateway{
		name:     name,
		baseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		clientID: cfg.ClientID,
		client:   &http.Client{Timeout: timeout},
		log:      &l,
	}, nil
}

func (g *CheckoutGateway) Name() string { return g.name }

func (g *CheckoutGateway) CreateCheckout(ctx context.Context, token, packageID string) (adapter.CheckoutOrder, error) {
	var out struct {
		OrderID     string          `json:"order_id"`
		PaymentID   string          `json:"payment_id"`
		PackageName string          `json:"package_name"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if err := g.call(ctx, opCreate, "/create-checkout", token, map[string]any{"package_id": packageID}, &out); err != nil {
		return adapter.CheckoutOrder{}, err
	}
	return adapter.CheckoutOrder{
		OrderID:     out.OrderID,
		PaymentID:   out.PaymentID,
		PackageName: out.PackageName,
		Amount:      ToMinorUnits(out.Amount),
	}, nil
}

func (g *CheckoutGateway) CapturePayment(ctx context.Context, token, orderID, paymentID string) (adapter.CaptureResult, error) {
	raw := map[string]any{}
	err := g.call(ctx, opCapture, "/capture-payment", token, map[string]any{
		"order_id":   orderID,
		"payment_id": paymentID,
	}, &raw)
	if err != nil {
		return adapter.CaptureResult{}, err
	}
	status, _ := raw["status"].(string)
	return adapter.CaptureResult{Status: status, Raw: raw}, nil
}

func (g *CheckoutGateway) CancelPayment(ctx context.Context, token, paymentID string) error {
	return g.call(ctx, opCancel, "/cancel-payment", token, map[string]any{"payment_id": paymentID}, nil)
}

func (g *CheckoutGateway) call(ctx context.Context, op, path, token string, payload any, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveProviderCall(g.name, op, callResult(err), time.Since(start))
	}()

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Client-Id", g.clientID)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: %w: read body: %v", op, domain.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.log.Debug().Str("op", op).Int("status", resp.StatusCode).Msg("provider returned non-success status")
		return &domain.ProviderError{Op: op, Status: resp.StatusCode, Message: errorMessage(body, false)}
	}
	if msg := errorMessage(body, true); msg != "" {
		return &domain.ProviderError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.ProviderError{Op: op, Status: resp.StatusCode, Message: ""}
	}
	return nil
}

// errorMessage extracts {"error": "..."}, {"error": {"message": "..."}} or a
// top-level {"message": "..."}. On a 2xx reply the top-level message only
// counts when paired with "success": false.
func errorMessage(body []byte, ok bool) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Success *bool           `json:"success"`
	}
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	if len(env.Error) > 0 && string(env.Error) != "null" {
		var s string
		if json.Unmarshal(env.Error, &s) == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		return strings.Trim(string(env.Error), `"`)
	}
	if !ok || (env.Success != nil && !*env.Success) {
		return env.Message
	}
	return ""
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrProviderRejected):
		return "rejected"
	default:
		return "error"
	}
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FormatMinorUnits renders cents as a fixed two-decimal major-unit string.
func FormatMinorUnits(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
