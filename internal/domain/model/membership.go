package model

import "time"

// Baseline is the tier treated as currently owned for pricing purposes.
// PackageID is empty when the user has no completed payment.
type Baseline struct {
	PackageID    string
	Price        int64
	RecordID     string
	ResolvedAt   time.Time
	HasCompleted bool
}

type Classification string

const (
	ClassCurrent   Classification = "CURRENT"
	ClassPending   Classification = "PENDING"
	ClassDowngrade Classification = "DOWNGRADE"
	ClassUpgrade   Classification = "UPGRADE"
	ClassPurchase  Classification = "PURCHASE"
)

// TierOffer is the classification of one target package for one user.
type TierOffer struct {
	PackageID      string
	Classification Classification
	Payable        int64
	Selectable     bool
}

// MembershipSnapshot is everything the membership screen renders, derived
// from one read of the user's rows.
type MembershipSnapshot struct {
	UserID       string
	Baseline     Baseline
	Entitlement  *UserPackageEntitlement
	PendingTiers []string
	Packages     []*Package
	Offers       []TierOffer
	History      []*PaymentRecord
	TakenAt      time.Time
}

// Offer returns the offer for packageID, if present.
func (s *MembershipSnapshot) Offer(packageID string) (TierOffer, bool) {
	for _, o := range s.Offers {
		if o.PackageID == packageID {
			return o, true
		}
	}
	return TierOffer{}, false
}
