package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/metrics"
)

// RefreshFunc re-reads the user's membership and publishes the result.
type RefreshFunc func(ctx context.Context) error

var (
	ErrSyncStarted = errors.New("membership sync already started")
	ErrSyncStopped = errors.New("membership sync stopped")
)

// MembershipSync keeps one user's view fresh. It refreshes on change
// notifications, on a fixed interval, on focus and on explicit triggers.
// A single worker runs refreshes; triggers that arrive while one is running
// coalesce into exactly one follow-up refresh.
type MembershipSync struct {
	userID   string
	feed     repository.ChangeFeed
	refresh  RefreshFunc
	interval time.Duration
	log      *zerolog.Logger

	kick chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	sub     repository.Subscription
}

func NewMembershipSync(userID string, feed repository.ChangeFeed, interval time.Duration, refresh RefreshFunc, logger *zerolog.Logger) *MembershipSync {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "MembershipSync").Str("user_id", userID).Logger()
	}
	return &MembershipSync{
		userID:   userID,
		feed:     feed,
		refresh:  refresh,
		interval: interval,
		log:      &l,
		kick:     make(chan struct{}, 1),
	}
}

// Start subscribes to changes and launches the loops. A subscription failure
// is logged and the sync falls back to polling.
func (s *MembershipSync) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSyncStopped
	}
	if s.started {
		return ErrSyncStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	var events <-chan repository.ChangeEvent
	if s.feed != nil {
		sub, err := s.feed.Subscribe(gctx, s.userID)
		if err != nil {
			s.log.Warn().Err(err).Msg("change feed unavailable; polling only")
		} else {
			s.sub = sub
			events = sub.Events()
		}
	}

	metrics.AddActiveSync(1)
	g.Go(func() error { return s.work(gctx) })
	g.Go(func() error { return s.watch(gctx, events) })

	s.signal("initial")
	return nil
}

// Trigger requests an immediate refresh, e.g. after a successful capture.
func (s *MembershipSync) Trigger() { s.signal("trigger") }

// Focus is called when the client regains focus.
func (s *MembershipSync) Focus() { s.signal("focus") }

// Stop unsubscribes, stops the ticker and waits for the loops to exit.
// It is safe to call more than once.
func (s *MembershipSync) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, sub, g := s.cancel, s.sub, s.group
	s.mu.Unlock()

	cancel()
	if sub != nil {
		sub.Close()
	}
	_ = g.Wait()
	metrics.AddActiveSync(-1)
	s.log.Debug().Msg("membership sync stopped")
}

func (s *MembershipSync) signal(source string) {
	metrics.IncSyncTrigger(source)
	select {
	case s.kick <- struct{}{}:
	default:
		// a refresh is already queued
	}
}

func (s *MembershipSync) watch(ctx context.Context, events <-chan repository.ChangeEvent) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.signal("tick")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.log.Trace().Str("table", ev.Table).Str("type", ev.Type).Msg("change received")
			s.signal("realtime")
		}
	}
}

func (s *MembershipSync) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.kick:
			if ctx.Err() != nil {
				return nil
			}
			err := s.refresh(ctx)
			metrics.IncSyncRefresh(err == nil)
			if err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("membership refresh failed")
			}
		}
	}
}
