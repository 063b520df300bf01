//go:build !integration

package usecase_test

import (
	"math/rand"
	"testing"
	"time"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/usecase"
)

func testCatalog() map[string]*model.Package {
	return model.Catalog([]*model.Package{
		{ID: "premium", Name: "Premium", Price: 10000, SortOrder: 1},
		{ID: "vip", Name: "VIP", Price: 20000, SortOrder: 2},
		{ID: "golden", Name: "Golden", Price: 50000, SortOrder: 3, Lifetime: true},
	})
}

func completed(id, pkg string, updated time.Time, details ...model.PaymentDetail) *model.PaymentRecord {
	return &model.PaymentRecord{
		ID:          id,
		UserID:      "user-1",
		PackageType: pkg,
		Status:      model.PaymentStatusCompleted,
		Details:     details,
		CreatedAt:   updated.Add(-time.Minute),
		UpdatedAt:   updated,
	}
}

func TestResolveBaseline(t *testing.T) {
	catalog := testCatalog()

	t.Run("no completed records resolves to null baseline with zero price", func(t *testing.T) {
		recs := []*model.PaymentRecord{
			{ID: "r1", PackageType: "vip", Status: model.PaymentStatusPending, UpdatedAt: ts("2024-05-01T00:00:00Z")},
			{ID: "r2", PackageType: "golden", Status: model.PaymentStatusFailed, UpdatedAt: ts("2024-05-02T00:00:00Z")},
		}
		got := usecase.ResolveBaseline(recs, catalog)
		if got.HasCompleted || got.PackageID != "" || got.Price != 0 {
			t.Fatalf("expected empty baseline, got %+v", got)
		}
	})

	t.Run("picks target of the newest event across completed records", func(t *testing.T) {
		recs := []*model.PaymentRecord{
			completed("r1", "premium", ts("2024-01-01T00:00:00Z"),
				model.PaymentDetail{Kind: model.DetailKindPurchase, TargetPackage: "premium", Timestamp: "2024-01-01T00:00:00Z"}),
			completed("r2", "vip", ts("2024-03-01T00:00:00Z"),
				model.PaymentDetail{Kind: model.DetailKindUpgrade, PreviousPackage: "premium", TargetPackage: "vip", Timestamp: "2024-03-01T00:00:00Z"}),
			{ID: "r3", PackageType: "golden", Status: model.PaymentStatusPending, UpdatedAt: ts("2024-06-01T00:00:00Z")},
		}
		got := usecase.ResolveBaseline(recs, catalog)
		if got.PackageID != "vip" || got.Price != 20000 || got.RecordID != "r2" {
			t.Fatalf("expected vip from r2, got %+v", got)
		}
	})

	t.Run("uses newest event inside a record, not the first", func(t *testing.T) {
		rec := completed("r1", "premium", ts("2024-01-01T00:00:00Z"),
			model.PaymentDetail{Kind: model.DetailKindPurchase, TargetPackage: "premium", Timestamp: "2024-01-01T00:00:00Z"},
			model.PaymentDetail{Kind: model.DetailKindUpgrade, TargetPackage: "golden", Timestamp: "2024-04-01T00:00:00Z"},
			model.PaymentDetail{Kind: model.DetailKindUpgrade, TargetPackage: "vip", Timestamp: "2024-02-01T00:00:00Z"},
		)
		got := usecase.ResolveBaseline([]*model.PaymentRecord{rec}, catalog)
		if got.PackageID != "golden" {
			t.Fatalf("expected golden, got %q", got.PackageID)
		}
	})

	t.Run("empty details fall back to record package and updated time", func(t *testing.T) {
		recs := []*model.PaymentRecord{
			completed("r1", "vip", ts("2024-02-01T00:00:00Z")),
			completed("r2", "premium", ts("2024-01-01T00:00:00Z")),
		}
		got := usecase.ResolveBaseline(recs, catalog)
		if got.PackageID != "vip" {
			t.Fatalf("expected vip, got %q", got.PackageID)
		}
		if !got.ResolvedAt.Equal(ts("2024-02-01T00:00:00Z")) {
			t.Errorf("unexpected resolved time %v", got.ResolvedAt)
		}
	})

	t.Run("malformed event timestamp falls back to record time and never panics", func(t *testing.T) {
		bad := completed("r1", "golden", time.Time{},
			model.PaymentDetail{TargetPackage: "golden", Timestamp: "not-a-date"})
		bad.CreatedAt = time.Time{}
		good := completed("r2", "premium", ts("2020-01-01T00:00:00Z"),
			model.PaymentDetail{TargetPackage: "premium", Timestamp: "2020-01-01T00:00:00Z"})
		got := usecase.ResolveBaseline([]*model.PaymentRecord{bad, good}, catalog)
		if got.PackageID != "premium" {
			t.Fatalf("expected epoch-zero record to lose, got %q", got.PackageID)
		}
	})

	t.Run("detail without target uses record package type", func(t *testing.T) {
		rec := completed("r1", "vip", ts("2024-01-01T00:00:00Z"),
			model.PaymentDetail{Kind: model.DetailKindPurchase, Timestamp: "2024-01-01 10:00:00+00"})
		got := usecase.ResolveBaseline([]*model.PaymentRecord{rec}, catalog)
		if got.PackageID != "vip" {
			t.Fatalf("expected vip, got %q", got.PackageID)
		}
		if !got.ResolvedAt.Equal(ts("2024-01-01T10:00:00Z")) {
			t.Errorf("expected postgres style timestamp to parse, got %v", got.ResolvedAt)
		}
	})

	t.Run("unknown package resolves with zero price", func(t *testing.T) {
		rec := completed("r1", "legacy", ts("2024-01-01T00:00:00Z"))
		got := usecase.ResolveBaseline([]*model.PaymentRecord{rec}, catalog)
		if got.PackageID != "legacy" || got.Price != 0 || !got.HasCompleted {
			t.Fatalf("unexpected baseline %+v", got)
		}
	})
}

func TestResolveBaseline_TieBreakIsOrderIndependent(t *testing.T) {
	catalog := testCatalog()
	same := "2024-03-01T12:00:00Z"
	recs := []*model.PaymentRecord{
		completed("a-record", "golden", ts(same), model.PaymentDetail{TargetPackage: "golden", Timestamp: same}),
		completed("c-record", "premium", ts(same), model.PaymentDetail{TargetPackage: "premium", Timestamp: same}),
		completed("b-record", "vip", ts(same), model.PaymentDetail{TargetPackage: "vip", Timestamp: same}),
		completed("old", "vip", ts("2023-01-01T00:00:00Z")),
	}

	want := usecase.ResolveBaseline(recs, catalog)
	if want.RecordID != "c-record" || want.PackageID != "premium" {
		t.Fatalf("expected greatest record id to win the tie, got %+v", want)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]*model.PaymentRecord(nil), recs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := usecase.ResolveBaseline(shuffled, catalog)
		if got != want {
			t.Fatalf("iteration %d: baseline depends on input order: %+v vs %+v", i, got, want)
		}
	}
}
