package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/infra/logging"
	"membership-billing/internal/infra/metrics"
	"membership-billing/internal/usecase"
)

const sweepParallelism = 4

// TokenIssuer turns a caller's raw bearer token into a TokenSource that is
// re-validated every time a provider call needs it.
type TokenIssuer func(token string) adapter.TokenSource

// CheckoutDesk holds the open checkout session handles of one server.
// Each handle is bound to the user that opened it; other users see NOT_FOUND.
type CheckoutDesk struct {
	uc     usecase.CheckoutUseCase
	tokens TokenIssuer
	ttl    time.Duration
	log    *zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*deskEntry
}

type deskEntry struct {
	session *model.PaymentSession

	mu       sync.Mutex
	token    string
	lastSeen time.Time
}

func (e *deskEntry) touch(token string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if token != "" {
		e.token = token
	}
	e.lastSeen = now
}

func (e *deskEntry) snapshot() (string, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token, e.lastSeen
}

// NewCheckoutDesk builds a desk. Sessions idle for longer than ttl are torn
// down by Sweep.
func NewCheckoutDesk(uc usecase.CheckoutUseCase, tokens TokenIssuer, ttl time.Duration, logger *zerolog.Logger) *CheckoutDesk {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "CheckoutDesk").Logger()
	}
	return &CheckoutDesk{
		uc:      uc,
		tokens:  tokens,
		ttl:     ttl,
		log:     &l,
		now:     time.Now,
		entries: make(map[string]*deskEntry),
	}
}

func (d *CheckoutDesk) source(token string) adapter.TokenSource {
	if d.tokens == nil {
		return adapter.TokenFunc(func(context.Context) (string, error) { return token, nil })
	}
	return d.tokens(token)
}

// Open starts a checkout for packageID and registers the resulting handle.
func (d *CheckoutDesk) Open(ctx context.Context, userID, token, packageID string) (*model.PaymentSession, error) {
	s, err := d.uc.Initiate(ctx, d.source(token), userID, packageID)
	if err != nil {
		return nil, err
	}
	now := d.now()
	d.mu.Lock()
	d.entries[s.ID] = &deskEntry{session: s, token: token, lastSeen: now}
	open := len(d.entries)
	d.mu.Unlock()

	metrics.IncCheckoutSession(stateLabel(s.State()))
	metrics.SetOpenCheckoutSessions(open)
	return s, nil
}

// Get returns the caller's session.
func (d *CheckoutDesk) Get(userID, id string) (*model.PaymentSession, error) {
	e, err := d.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

func (d *CheckoutDesk) Approve(ctx context.Context, userID, token, id, orderID string) (*model.PaymentSession, usecase.Outcome, error) {
	e, err := d.lookup(userID, id)
	if err != nil {
		return nil, usecase.Outcome{}, err
	}
	e.touch(token, d.now())
	ctx = logging.WithSessID(ctx, id)

	var out usecase.Outcome
	d.observe(e.session, usecase.TriggerCaptureFailed, func() {
		out, err = d.uc.Approve(ctx, e.session, d.source(token), orderID)
	})
	return e.session, out, err
}

func (d *CheckoutDesk) Cancel(ctx context.Context, userID, token, id string) (*model.PaymentSession, usecase.Outcome, error) {
	e, err := d.lookup(userID, id)
	if err != nil {
		return nil, usecase.Outcome{}, err
	}
	e.touch(token, d.now())

	var out usecase.Outcome
	d.observe(e.session, usecase.TriggerUserCancel, func() {
		out = d.uc.Cancel(logging.WithSessID(ctx, id), e.session, d.source(token))
	})
	return e.session, out, nil
}

// Fail records an error reported by the provider widget.
func (d *CheckoutDesk) Fail(ctx context.Context, userID, token, id, message string) (*model.PaymentSession, usecase.Outcome, error) {
	e, err := d.lookup(userID, id)
	if err != nil {
		return nil, usecase.Outcome{}, err
	}
	e.touch(token, d.now())

	cause := &domain.ProviderError{Op: "widget", Message: strings.TrimSpace(message)}
	var out usecase.Outcome
	d.observe(e.session, usecase.TriggerProviderError, func() {
		out = d.uc.Fail(logging.WithSessID(ctx, id), e.session, d.source(token), cause)
	})
	return e.session, out, nil
}

// Teardown closes the caller's session and forgets it.
func (d *CheckoutDesk) Teardown(ctx context.Context, userID, token, id string) (*model.PaymentSession, usecase.Outcome, error) {
	e, err := d.lookup(userID, id)
	if err != nil {
		return nil, usecase.Outcome{}, err
	}
	e.touch(token, d.now())
	out := d.teardown(logging.WithSessID(ctx, id), e)
	return e.session, out, nil
}

// Sweep removes every entry idle for longer than the ttl, through the same
// teardown path. Open sessions are cancelled; finished ones stay readable
// until then and their teardown sends nothing. It returns how many it removed.
func (d *CheckoutDesk) Sweep(ctx context.Context) (int, error) {
	cutoff := d.now().Add(-d.ttl)
	var stale []*deskEntry

	d.mu.Lock()
	for _, e := range d.entries {
		if _, seen := e.snapshot(); seen.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	d.mu.Unlock()

	if len(stale) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for _, e := range stale {
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d.teardown(logging.WithSessID(gctx, e.session.ID), e)
			return nil
		})
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return 0, err
	}
	d.log.Info().Int("removed", len(stale)).Msg("checkout sessions swept")
	return len(stale), nil
}

// Close tears down every open session. Used on shutdown.
func (d *CheckoutDesk) Close(ctx context.Context) {
	d.mu.Lock()
	all := make([]*deskEntry, 0, len(d.entries))
	for _, e := range d.entries {
		all = append(all, e)
	}
	d.mu.Unlock()

	for _, e := range all {
		d.teardown(ctx, e)
	}
}

// Len is the number of sessions currently held.
func (d *CheckoutDesk) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *CheckoutDesk) teardown(ctx context.Context, e *deskEntry) usecase.Outcome {
	token, _ := e.snapshot()
	var out usecase.Outcome
	d.observe(e.session, usecase.TriggerTeardown, func() {
		out = d.uc.Teardown(ctx, e.session, d.source(token))
	})

	d.mu.Lock()
	delete(d.entries, e.session.ID)
	open := len(d.entries)
	d.mu.Unlock()
	metrics.SetOpenCheckoutSessions(open)
	return out
}

func (d *CheckoutDesk) lookup(userID, id string) (*deskEntry, error) {
	d.mu.Lock()
	e, ok := d.entries[id]
	d.mu.Unlock()
	if !ok || e.session.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

// observe runs op and records the state change and whether op was the one
// that sent the compensating cancel.
func (d *CheckoutDesk) observe(s *model.PaymentSession, trigger string, op func()) {
	before := s.State()
	claimed := s.CancellationClaimed()
	op()
	if !claimed && s.CancellationClaimed() {
		metrics.IncCheckoutCancellation(trigger)
	}
	if after := s.State(); after != before && after.IsTerminal() {
		metrics.IncCheckoutSession(stateLabel(after))
	}
}

func stateLabel(s model.SessionState) string {
	return strings.ToLower(string(s))
}
