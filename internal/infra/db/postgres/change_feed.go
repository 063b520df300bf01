package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/metrics"
)

// ChangeChannel is the NOTIFY channel written by the table triggers in deploy/postgres/init.sql.
const ChangeChannel = "membership_changes"

const subscriptionBuffer = 8

var watchedTables = map[string]struct{}{
	"payment_records":           {},
	"user_package_entitlements": {},
}

var _ repository.ChangeFeed = (*ChangeFeed)(nil)

// ChangeFeed LISTENs on a dedicated connection and fans notifications out to
// per-user subscriptions. Delivery is best effort: a subscriber whose buffer is
// full misses the event, which is harmless because any event means "re-read".
type ChangeFeed struct {
	connect        func(ctx context.Context) (*pgx.Conn, error)
	reconnectDelay time.Duration
	log            *zerolog.Logger

	mu   sync.Mutex
	subs map[string]map[*feedSubscription]struct{}
}

func NewChangeFeed(connect func(ctx context.Context) (*pgx.Conn, error), logger *zerolog.Logger) *ChangeFeed {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "ChangeFeed").Logger()
	}
	return &ChangeFeed{
		connect:        connect,
		reconnectDelay: 2 * time.Second,
		log:            &l,
		subs:           make(map[string]map[*feedSubscription]struct{}),
	}
}

// NewChangeFeedFromPool opens its LISTEN connection with the pool's settings,
// outside the pool so it is never handed to a query.
func NewChangeFeedFromPool(pool *pgxpool.Pool, logger *zerolog.Logger) *ChangeFeed {
	cfg := pool.Config().ConnConfig
	return NewChangeFeed(func(ctx context.Context) (*pgx.Conn, error) {
		return pgx.ConnectConfig(ctx, cfg)
	}, logger)
}

// Run listens until ctx is cancelled, reconnecting after failures.
func (f *ChangeFeed) Run(ctx context.Context) error {
	first := true
	for {
		err := f.listen(ctx, first)
		if ctx.Err() != nil {
			return nil
		}
		first = false
		f.log.Warn().Err(err).Dur("retry_in", f.reconnectDelay).Msg("change feed connection lost")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *ChangeFeed) listen(ctx context.Context, first bool) error {
	conn, err := f.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return err
	}
	if first {
		f.log.Info().Str("channel", ChangeChannel).Msg("listening for membership changes")
	} else {
		metrics.IncChangeFeedReconnect()
		f.log.Info().Str("channel", ChangeChannel).Msg("change feed reconnected")
		// rows may have changed while disconnected
		f.broadcastRefresh()
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := decodeChange(n.Payload)
		if err != nil {
			f.log.Debug().Err(err).Str("payload", n.Payload).Msg("ignoring malformed notification")
			continue
		}
		metrics.IncChangeFeedEvent(ev.Table)
		f.Publish(ev)
	}
}

func decodeChange(payload string) (repository.ChangeEvent, error) {
	var ev repository.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, domain.ErrMalformedData
	}
	if ev.UserID == "" {
		return ev, domain.ErrMalformedData
	}
	if _, ok := watchedTables[ev.Table]; !ok {
		return ev, errors.New("unwatched table " + ev.Table)
	}
	return ev, nil
}

// Subscribe registers a receiver for userID. The subscription is closed when
// ctx is done or Close is called, whichever happens first.
func (f *ChangeFeed) Subscribe(ctx context.Context, userID string) (repository.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &feedSubscription{feed: f, userID: userID, ch: make(chan repository.ChangeEvent, subscriptionBuffer)}

	f.mu.Lock()
	set, ok := f.subs[userID]
	if !ok {
		set = make(map[*feedSubscription]struct{})
		f.subs[userID] = set
	}
	set[s] = struct{}{}
	f.mu.Unlock()

	s.stop = context.AfterFunc(ctx, s.Close)
	return s, nil
}

// Publish delivers ev to the subscribers of ev.UserID without blocking.
func (f *ChangeFeed) Publish(ev repository.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs[ev.UserID] {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// NotifyRefresh raises a local REFRESH event for userID, e.g. after a capture.
func (f *ChangeFeed) NotifyRefresh(userID string) {
	f.Publish(repository.ChangeEvent{Table: "local", Type: repository.ChangeRefresh, UserID: userID})
}

func (f *ChangeFeed) broadcastRefresh() {
	f.mu.Lock()
	users := make([]string, 0, len(f.subs))
	for u := range f.subs {
		users = append(users, u)
	}
	f.mu.Unlock()
	for _, u := range users {
		f.NotifyRefresh(u)
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (f *ChangeFeed) Subscribers(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[userID])
}

func (f *ChangeFeed) remove(s *feedSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.subs[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(f.subs, s.userID)
		}
	}
	close(s.ch)
}

type feedSubscription struct {
	feed   *ChangeFeed
	userID string
	ch     chan repository.ChangeEvent
	once   sync.Once
	stop   func() bool
}

func (s *feedSubscription) Events() <-chan repository.ChangeEvent { return s.ch }

func (s *feedSubscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.feed.remove(s)
	})
}
