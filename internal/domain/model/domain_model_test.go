//go:build !integration

package model

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"membership-billing/internal/domain"
)

// --- Package Model Tests ---

func TestNewPackage(t *testing.T) {
	t.Run("should create a package successfully", func(t *testing.T) {
		p, err := NewPackage("vip", "VIP", 20000, []string{"priority"}, false, 2)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.ID != "vip" || p.Price != 20000 || p.SortOrder != 2 {
			t.Errorf("unexpected package %+v", p)
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		for _, tc := range []struct {
			id, name string
			price    int64
		}{
			{"", "VIP", 1},
			{"vip", "", 1},
			{"vip", "VIP", -1},
		} {
			if _, err := NewPackage(tc.id, tc.name, tc.price, nil, false, 0); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%+v: expected ErrInvalidArgument, got %v", tc, err)
			}
		}
	})
}

func TestCatalog_SkipsEmptyEntries(t *testing.T) {
	c := Catalog([]*Package{{ID: "premium"}, nil, {ID: ""}, {ID: "vip"}})
	if len(c) != 2 || c["premium"] == nil || c["vip"] == nil {
		t.Errorf("unexpected catalog %v", c)
	}
}

// --- PaymentRecord Model Tests ---

func TestPaymentRecordStatus_ForwardOnly(t *testing.T) {
	if !PaymentStatusPending.CanTransitionTo(PaymentStatusCompleted) {
		t.Error("pending -> completed should be allowed")
	}
	if PaymentStatusPending.CanTransitionTo(PaymentStatusPending) {
		t.Error("pending -> pending should not be allowed")
	}
	for _, s := range []PaymentRecordStatus{PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.CanTransitionTo(PaymentStatusPending) || s.CanTransitionTo(PaymentStatusCompleted) {
			t.Errorf("%s should not move again", s)
		}
	}
}

func TestPendingTiers(t *testing.T) {
	got := PendingTiers([]*PaymentRecord{
		{PackageType: "vip", Status: PaymentStatusPending},
		{PackageType: "vip", Status: PaymentStatusPending},
		{PackageType: "golden", Status: PaymentStatusFailed},
		nil,
		{PackageType: "", Status: PaymentStatusPending},
	})
	if len(got) != 1 {
		t.Fatalf("expected only vip, got %v", got)
	}
	if _, ok := got["vip"]; !ok {
		t.Errorf("vip missing from %v", got)
	}
}

// --- PaymentSession Model Tests ---

func TestPaymentSession_Transitions(t *testing.T) {
	now := time.Now()

	t.Run("should reject missing identifiers", func(t *testing.T) {
		if _, err := NewPaymentSession("", "u1", "vip", now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should follow created -> capturing -> completed", func(t *testing.T) {
		s, _ := NewPaymentSession("s1", "u1", "vip", now)
		if s.State() != SessionCreated {
			t.Fatalf("expected CREATED, got %s", s.State())
		}
		if err := s.Transition(SessionCapturing, now.Add(time.Second)); err != nil {
			t.Fatal(err)
		}
		if err := s.Transition(SessionCompleted, now.Add(2*time.Second)); err != nil {
			t.Fatal(err)
		}
		if !s.UpdatedAt().Equal(now.Add(2 * time.Second)) {
			t.Errorf("updatedAt not advanced: %v", s.UpdatedAt())
		}
	})

	t.Run("should never leave a terminal state", func(t *testing.T) {
		s, _ := NewPaymentSession("s1", "u1", "vip", now)
		if err := s.Transition(SessionCancelled, now); err != nil {
			t.Fatal(err)
		}
		for _, next := range []SessionState{SessionCreated, SessionCapturing, SessionCompleted, SessionFailed, SessionCancelled} {
			if err := s.Transition(next, now); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("CANCELLED -> %s: expected ErrInvalidTransition, got %v", next, err)
			}
		}
	})

	t.Run("should not skip capturing", func(t *testing.T) {
		s, _ := NewPaymentSession("s1", "u1", "vip", now)
		if err := s.Transition(SessionCompleted, now); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestPaymentSession_ClaimCancellationOnce(t *testing.T) {
	s, _ := NewPaymentSession("s1", "u1", "vip", time.Now())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ClaimCancellation() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one claim, got %d", wins.Load())
	}
	if !s.CancellationClaimed() {
		t.Error("claim flag not set")
	}
}
