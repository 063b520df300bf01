package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/infra/logging"
)

// DefaultRedirectDelay is how long a failed checkout stays on screen before
// the client navigates away.
const DefaultRedirectDelay = 3 * time.Second

// cancelTimeout bounds the best-effort cancel request. It runs detached from
// the caller's context so a closing connection cannot abort it.
const cancelTimeout = 10 * time.Second

// Message keys resolved through the Translator.
const (
	MsgCheckoutCompleted = "checkout.completed"
	MsgCheckoutCancelled = "checkout.cancelled"
	MsgCheckoutFailed    = "checkout.failed"
	MsgProviderError     = "checkout.provider_error"
)

// Translator resolves user visible message keys.
type Translator interface {
	T(key string, args ...interface{}) string
}

// RefreshNotifier is told when a user's membership must be re-read now
// rather than on the next poll or change notification.
type RefreshNotifier interface {
	NotifyRefresh(userID string)
}

// Cancellation triggers, used for logging and metrics.
const (
	TriggerUserCancel    = "user_cancel"
	TriggerProviderError = "provider_error"
	TriggerCaptureFailed = "capture_failed"
	TriggerTeardown      = "teardown"
)

// Outcome is what the checkout screen shows after an operation.
// Err carries the provider failure behind a FAILED state, if any.
type Outcome struct {
	State         model.SessionState
	Message       string
	RedirectAfter time.Duration
	Err           error
}

// CheckoutUseCase drives one provider checkout session per handle.
// No operation retries; a failed or cancelled session needs a new Initiate.
type CheckoutUseCase interface {
	// Initiate creates a checkout for packageID. The amount is decided by the
	// provider function, never by the caller.
	Initiate(ctx context.Context, tokens adapter.TokenSource, userID, packageID string) (*model.PaymentSession, error)
	// Approve captures an order the user approved in the payment widget.
	Approve(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource, orderID string) (Outcome, error)
	// Cancel handles a user initiated abort.
	Cancel(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource) Outcome
	// Fail handles a failure reported by the provider widget.
	Fail(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource, cause error) Outcome
	// Teardown runs when the owning screen goes away. Non-terminal sessions are cancelled.
	Teardown(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource) Outcome
}

// CheckoutOptions tune the use case. Zero values select defaults.
type CheckoutOptions struct {
	// Configured is false when provider client id or API base URL is missing.
	Configured    bool
	RedirectDelay time.Duration
}

var _ CheckoutUseCase = (*checkoutUC)(nil)

type checkoutUC struct {
	provider adapter.CheckoutProvider
	refresh  RefreshNotifier
	tr       Translator
	opts     CheckoutOptions
	log      *zerolog.Logger
	now      func() time.Time
}

// NewCheckoutUseCase constructs the orchestrator. refresh, tr and logger may be nil.
func NewCheckoutUseCase(
	provider adapter.CheckoutProvider,
	refresh RefreshNotifier,
	tr Translator,
	opts CheckoutOptions,
	logger *zerolog.Logger,
) CheckoutUseCase {
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "CheckoutUC").Logger()
	}
	return &checkoutUC{
		provider: provider,
		refresh:  refresh,
		tr:       tr,
		opts:     opts,
		log:      &l,
		now:      time.Now,
	}
}

func (u *checkoutUC) Initiate(ctx context.Context, tokens adapter.TokenSource, userID, packageID string) (*model.PaymentSession, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Initiate")()
	if !u.opts.Configured || u.provider == nil {
		return nil, domain.ErrConfigMissing
	}
	packageID = strings.TrimSpace(packageID)
	if userID == "" || packageID == "" {
		return nil, domain.ErrInvalidArgument
	}
	token := u.token(ctx, tokens)
	if token == "" {
		return nil, domain.ErrAuthRequired
	}

	order, err := u.provider.CreateCheckout(ctx, token, packageID)
	if err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Str("package", packageID).Msg("create checkout failed")
		return nil, err
	}
	if order.OrderID == "" || order.PaymentID == "" {
		return nil, fmt.Errorf("create checkout: %w", &domain.ProviderError{Op: "create_checkout", Message: "missing order identifiers"})
	}

	s, err := model.NewPaymentSession(ulid.Make().String(), userID, packageID, u.now())
	if err != nil {
		return nil, err
	}
	s.OrderID = order.OrderID
	s.PaymentID = order.PaymentID
	s.PackageName = order.PackageName
	s.Amount = order.Amount
	s.Provider = u.provider.Name()

	u.log.Info().
		Str("session_id", s.ID).
		Str("user_id", userID).
		Str("package", packageID).
		Str("order_id", s.OrderID).
		Int64("amount", s.Amount).
		Msg("checkout session created")
	return s, nil
}

func (u *checkoutUC) Approve(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource, orderID string) (Outcome, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Approve")()
	if s == nil {
		return Outcome{}, domain.ErrInvalidArgument
	}
	if orderID != "" && orderID != s.OrderID {
		return Outcome{}, fmt.Errorf("approve: order %q does not belong to session: %w", orderID, domain.ErrInvalidArgument)
	}
	if s.State() != model.SessionCreated {
		return Outcome{}, domain.ErrInvalidTransition
	}
	token := u.token(ctx, tokens)
	if token == "" {
		return Outcome{}, domain.ErrAuthRequired
	}
	if err := s.Transition(model.SessionCapturing, u.now()); err != nil {
		return Outcome{}, err
	}

	res, err := u.provider.CapturePayment(ctx, token, s.OrderID, s.PaymentID)
	if err == nil && !res.Completed() {
		err = &domain.ProviderError{Op: "capture_payment", Message: res.Status}
	}
	if err != nil {
		u.log.Warn().Err(err).Str("session_id", s.ID).Str("order_id", s.OrderID).Msg("capture failed")
		u.finalize(ctx, s, tokens, TriggerCaptureFailed)
		if terr := s.Transition(model.SessionFailed, u.now()); terr != nil {
			// torn down while capturing
			return u.outcome(s, nil), nil
		}
		return Outcome{
			State:         model.SessionFailed,
			Message:       u.failureMessage(err),
			RedirectAfter: u.opts.RedirectDelay,
			Err:           err,
		}, nil
	}

	if err := s.Transition(model.SessionCompleted, u.now()); err != nil {
		u.log.Error().Str("session_id", s.ID).Str("state", string(s.State())).
			Msg("capture succeeded after session was already terminal")
		return u.outcome(s, nil), nil
	}
	if u.refresh != nil {
		u.refresh.NotifyRefresh(s.UserID)
	}
	u.log.Info().Str("session_id", s.ID).Str("order_id", s.OrderID).Msg("checkout completed")
	return u.outcome(s, nil), nil
}

func (u *checkoutUC) Cancel(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource) Outcome {
	if s == nil || s.State().IsTerminal() {
		return u.outcome(s, nil)
	}
	u.finalize(ctx, s, tokens, TriggerUserCancel)
	_ = s.Transition(model.SessionCancelled, u.now())
	return u.outcome(s, nil)
}

func (u *checkoutUC) Fail(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource, cause error) Outcome {
	if s == nil || s.State().IsTerminal() {
		return u.outcome(s, nil)
	}
	if cause == nil {
		cause = errors.New("provider reported an error")
	}
	u.log.Warn().Err(cause).Str("session_id", s.ID).Msg("provider widget error")
	u.finalize(ctx, s, tokens, TriggerProviderError)
	if err := s.Transition(model.SessionFailed, u.now()); err != nil {
		return u.outcome(s, nil)
	}
	return Outcome{
		State:         model.SessionFailed,
		Message:       u.msg(MsgProviderError),
		RedirectAfter: u.opts.RedirectDelay,
		Err:           cause,
	}
}

func (u *checkoutUC) Teardown(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource) Outcome {
	if s == nil || s.State().IsTerminal() {
		return u.outcome(s, nil)
	}
	u.finalize(ctx, s, tokens, TriggerTeardown)
	_ = s.Transition(model.SessionCancelled, u.now())
	return u.outcome(s, nil)
}

// finalize is the only place a compensating cancel is sent. The session's
// one-shot guard makes every caller after the first a no-op. A missing
// token skips the request; cancel never fails on auth.
func (u *checkoutUC) finalize(ctx context.Context, s *model.PaymentSession, tokens adapter.TokenSource, trigger string) bool {
	if !s.ClaimCancellation() {
		return false
	}
	l := u.log.With().Str("session_id", s.ID).Str("payment_id", s.PaymentID).Str("trigger", trigger).Logger()
	if u.provider == nil || s.PaymentID == "" {
		return true
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	token := u.token(cctx, tokens)
	if token == "" {
		l.Info().Msg("no token; skipping cancel request")
		return true
	}
	if err := u.provider.CancelPayment(cctx, token, s.PaymentID); err != nil {
		l.Warn().Err(err).Msg("cancel request failed; ignored")
		return true
	}
	l.Info().Msg("checkout cancelled at provider")
	return true
}

func (u *checkoutUC) token(ctx context.Context, tokens adapter.TokenSource) string {
	if tokens == nil {
		return ""
	}
	tok, err := tokens.Token(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(tok)
}

func (u *checkoutUC) outcome(s *model.PaymentSession, err error) Outcome {
	if s == nil {
		return Outcome{Err: err}
	}
	out := Outcome{State: s.State(), Err: err}
	switch out.State {
	case model.SessionCompleted:
		out.Message = u.msg(MsgCheckoutCompleted)
	case model.SessionCancelled:
		out.Message = u.msg(MsgCheckoutCancelled)
	case model.SessionFailed:
		out.Message = u.msg(MsgCheckoutFailed)
		out.RedirectAfter = u.opts.RedirectDelay
	}
	return out
}

// failureMessage surfaces the server's own message when there is one.
func (u *checkoutUC) failureMessage(err error) string {
	if m := strings.TrimSpace(domain.ProviderMessage(err)); m != "" {
		return m
	}
	return u.msg(MsgCheckoutFailed)
}

func (u *checkoutUC) msg(key string) string {
	if u.tr == nil {
		return key
	}
	return u.tr.T(key)
}
