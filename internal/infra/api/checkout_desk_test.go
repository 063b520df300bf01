//go:build !integration

package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/usecase"
)

func newTestDesk(t *testing.T) (*CheckoutDesk, *fakeProvider, *AuthManager) {
	t.Helper()
	auth := NewAuthManager(testSecret, "")
	provider := &fakeProvider{}
	uc := usecase.NewCheckoutUseCase(provider, nil, nil, usecase.CheckoutOptions{Configured: true}, nil)
	return NewCheckoutDesk(uc, auth.Tokens, 10*time.Minute, nil), provider, auth
}

func TestCheckoutDesk_SweepTearsDownIdleSessions(t *testing.T) {
	desk, provider, auth := newTestDesk(t)
	ctx := context.Background()
	tok, err := auth.Mint("user-1", time.Hour)
	require.NoError(t, err)

	idle, err := desk.Open(ctx, "user-1", tok, "vip")
	require.NoError(t, err)
	done, err := desk.Open(ctx, "user-1", tok, "golden")
	require.NoError(t, err)
	_, _, err = desk.Cancel(ctx, "user-1", tok, done.ID)
	require.NoError(t, err)

	n, err := desk.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is stale yet")

	start := time.Now()
	desk.now = func() time.Time { return start.Add(11 * time.Minute) }
	// the desk clock moved; the token must still verify against real time
	n, err = desk.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, desk.Len())
	assert.Equal(t, model.SessionCancelled, idle.State())

	_, _, cancels := provider.counts()
	assert.Equal(t, 2, cancels, "one cancel per session, none repeated by the sweep")

	_, err = desk.Get("user-1", idle.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCheckoutDesk_SweepSkipsCancelWithExpiredToken(t *testing.T) {
	desk, provider, auth := newTestDesk(t)
	ctx := context.Background()
	tok, err := auth.Mint("user-1", time.Hour)
	require.NoError(t, err)

	s, err := desk.Open(ctx, "user-1", tok, "vip")
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	desk.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := desk.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.SessionCancelled, s.State())
	assert.True(t, s.CancellationClaimed())

	_, _, cancels := provider.counts()
	assert.Zero(t, cancels, "no network call without a valid token")
}

func TestCheckoutDesk_CloseTearsDownEverything(t *testing.T) {
	desk, provider, auth := newTestDesk(t)
	ctx := context.Background()
	tok, err := auth.Mint("user-1", time.Hour)
	require.NoError(t, err)

	_, err = desk.Open(ctx, "user-1", tok, "vip")
	require.NoError(t, err)
	_, err = desk.Open(ctx, "user-1", tok, "golden")
	require.NoError(t, err)

	desk.Close(ctx)
	assert.Zero(t, desk.Len())
	_, _, cancels := provider.counts()
	assert.Equal(t, 2, cancels)
}

func TestCheckoutDesk_FinishedSessionStaysReadableUntilSwept(t *testing.T) {
	desk, provider, auth := newTestDesk(t)
	ctx := context.Background()
	tok, err := auth.Mint("user-1", time.Hour)
	require.NoError(t, err)

	s, err := desk.Open(ctx, "user-1", tok, "vip")
	require.NoError(t, err)
	_, out, err := desk.Approve(ctx, "user-1", tok, s.ID, s.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.SessionCompleted, out.State)

	got, err := desk.Get("user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, got.State())
	assert.Equal(t, 1, desk.Len())

	start := time.Now()
	desk.now = func() time.Time { return start.Add(11 * time.Minute) }
	n, err := desk.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, desk.Len())
	assert.Equal(t, model.SessionCompleted, s.State())

	_, _, cancels := provider.counts()
	assert.Zero(t, cancels, "a completed session is never cancelled")
}
