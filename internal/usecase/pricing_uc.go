package usecase

import (
	"membership-billing/internal/domain/model"
)

// ClassifyTier decides how the user may move to target given their baseline
// and the set of tiers with outstanding pending records. First match wins:
//
//	CURRENT   target is the baseline tier
//	PENDING   target has a pending record; the path is a complaint, not a payment
//	DOWNGRADE baseline price > 0 and target price <= baseline price
//	UPGRADE   baseline price > 0 and target price > baseline price; pays the difference
//	PURCHASE  no priced baseline; pays the full target price
//
// It performs no I/O. A negative target price is treated as 0.
func ClassifyTier(target *model.Package, baseline model.Baseline, pending map[string]struct{}) model.TierOffer {
	if target == nil {
		return model.TierOffer{Classification: model.ClassPurchase}
	}
	price := target.Price
	if price < 0 {
		price = 0
	}
	offer := model.TierOffer{PackageID: target.ID}

	switch {
	case baseline.HasCompleted && target.ID == baseline.PackageID:
		offer.Classification = model.ClassCurrent
	case isPending(pending, target.ID):
		offer.Classification = model.ClassPending
	case baseline.Price > 0 && price <= baseline.Price:
		offer.Classification = model.ClassDowngrade
	case baseline.Price > 0:
		offer.Classification = model.ClassUpgrade
		offer.Payable = UpgradePrice(price, baseline.Price)
		offer.Selectable = true
	default:
		offer.Classification = model.ClassPurchase
		offer.Payable = price
		offer.Selectable = true
	}
	return offer
}

// UpgradePrice is max(target - baseline, 0).
func UpgradePrice(target, baseline int64) int64 {
	if d := target - baseline; d > 0 {
		return d
	}
	return 0
}

// ClassifyAll classifies every package in catalog order.
func ClassifyAll(pkgs []*model.Package, baseline model.Baseline, pending map[string]struct{}) []model.TierOffer {
	out := make([]model.TierOffer, 0, len(pkgs))
	for _, p := range pkgs {
		if p.IsZero() {
			continue
		}
		out = append(out, ClassifyTier(p, baseline, pending))
	}
	return out
}

func isPending(pending map[string]struct{}, id string) bool {
	_, ok := pending[id]
	return ok
}
