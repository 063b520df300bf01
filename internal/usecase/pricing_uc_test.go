//go:build !integration

package usecase_test

import (
	"testing"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/usecase"
)

func TestClassifyTier_Scenarios(t *testing.T) {
	catalog := testCatalog()
	premium, vip, golden := catalog["premium"], catalog["vip"], catalog["golden"]

	tests := []struct {
		name       string
		target     *model.Package
		baseline   model.Baseline
		pending    map[string]struct{}
		wantClass  model.Classification
		wantAmount int64
		selectable bool
	}{
		{
			name:       "A: no completed records buys at full price",
			target:     premium,
			baseline:   model.Baseline{},
			wantClass:  model.ClassPurchase,
			wantAmount: 10000,
			selectable: true,
		},
		{
			name:       "B: premium baseline upgrading to vip pays the difference",
			target:     vip,
			baseline:   model.Baseline{PackageID: "premium", Price: 10000, HasCompleted: true},
			wantClass:  model.ClassUpgrade,
			wantAmount: 10000,
			selectable: true,
		},
		{
			name:      "C: vip baseline targeting premium is a downgrade",
			target:    premium,
			baseline:  model.Baseline{PackageID: "vip", Price: 20000, HasCompleted: true},
			wantClass: model.ClassDowngrade,
		},
		{
			name:      "D: pending golden record blocks purchase",
			target:    golden,
			pending:   map[string]struct{}{"golden": {}},
			wantClass: model.ClassPending,
		},
		{
			name:      "current tier is not selectable",
			target:    vip,
			baseline:  model.Baseline{PackageID: "vip", Price: 20000, HasCompleted: true},
			wantClass: model.ClassCurrent,
		},
		{
			name:      "equal price to baseline is a downgrade",
			target:    &model.Package{ID: "vip-plus", Price: 20000},
			baseline:  model.Baseline{PackageID: "vip", Price: 20000, HasCompleted: true},
			wantClass: model.ClassDowngrade,
		},
		{
			name:       "baseline with unknown price buys at full price",
			target:     premium,
			baseline:   model.Baseline{PackageID: "legacy", Price: 0, HasCompleted: true},
			wantClass:  model.ClassPurchase,
			wantAmount: 10000,
			selectable: true,
		},
		{
			name:       "negative target price is treated as zero",
			target:     &model.Package{ID: "broken", Price: -5},
			wantClass:  model.ClassPurchase,
			wantAmount: 0,
			selectable: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := usecase.ClassifyTier(tc.target, tc.baseline, tc.pending)
			if got.Classification != tc.wantClass {
				t.Fatalf("classification: want %s, got %s", tc.wantClass, got.Classification)
			}
			if got.Payable != tc.wantAmount {
				t.Errorf("payable: want %d, got %d", tc.wantAmount, got.Payable)
			}
			if got.Selectable != tc.selectable {
				t.Errorf("selectable: want %v, got %v", tc.selectable, got.Selectable)
			}
		})
	}
}

func TestClassifyTier_PendingDominatesPriceComparison(t *testing.T) {
	catalog := testCatalog()
	pending := map[string]struct{}{"golden": {}, "vip": {}}
	baselines := []model.Baseline{
		{},
		{PackageID: "premium", Price: 10000, HasCompleted: true},
		{PackageID: "premium", Price: 90000, HasCompleted: true},
	}
	for _, b := range baselines {
		for _, id := range []string{"golden", "vip"} {
			got := usecase.ClassifyTier(catalog[id], b, pending)
			if got.Classification != model.ClassPending || got.Selectable || got.Payable != 0 {
				t.Fatalf("baseline %+v target %s: expected PENDING, got %+v", b, id, got)
			}
		}
	}
}

func TestUpgradePrice_NeverNegative(t *testing.T) {
	cases := [][3]int64{
		{20000, 10000, 10000},
		{10000, 20000, 0},
		{10000, 10000, 0},
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := usecase.UpgradePrice(c[0], c[1]); got != c[2] {
			t.Errorf("UpgradePrice(%d, %d) = %d, want %d", c[0], c[1], got, c[2])
		}
	}
}

func TestClassifyAll_SkipsEmptyPackages(t *testing.T) {
	pkgs := []*model.Package{{ID: "premium", Price: 10000}, nil, {}}
	got := usecase.ClassifyAll(pkgs, model.Baseline{}, nil)
	if len(got) != 1 || got[0].PackageID != "premium" {
		t.Fatalf("unexpected offers %+v", got)
	}
}
