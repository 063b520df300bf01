package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is one unit of periodic maintenance. Sweep returns how many items it
// acted on.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepFunc adapts a function to Sweeper.
type SweepFunc func(ctx context.Context) (int, error)

func (f SweepFunc) Sweep(ctx context.Context) (int, error) { return f(ctx) }

// Scheduler periodically runs a Sweeper.
type Scheduler struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	sweeper  Sweeper
	log      *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler runs sweeper every interval, each run bounded by 30s.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(name string, interval time.Duration, sweeper Sweeper, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "Scheduler").Str("job", name).Logger()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		timeout:  30 * time.Second,
		sweeper:  sweeper,
		log:      &l,
	}
}

// Start begins the loop in a background goroutine. Calling Start on a running
// scheduler has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.sweeper.Sweep(runCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("count", n).Msg("sweep completed")
	}
}

// Stop cancels the loop and waits for it to finish. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("scheduler stopped")
}
