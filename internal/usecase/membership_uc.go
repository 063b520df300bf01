package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/logging"
)

// MembershipUseCase builds the membership view for one user.
type MembershipUseCase interface {
	// Packages returns the catalog ordered for display.
	Packages(ctx context.Context) ([]*model.Package, error)
	// Snapshot reads the user's rows once and derives baseline, pending set and offers.
	Snapshot(ctx context.Context, userID string) (*model.MembershipSnapshot, error)
	// Quote classifies a single package for the user.
	Quote(ctx context.Context, userID, packageID string) (model.TierOffer, error)
}

var _ MembershipUseCase = (*membershipUC)(nil)

type membershipUC struct {
	packages     repository.PackageRepository
	records      repository.PaymentRecordRepository
	entitlements repository.EntitlementRepository
	log          *zerolog.Logger
	now          func() time.Time
}

func NewMembershipUseCase(
	packages repository.PackageRepository,
	records repository.PaymentRecordRepository,
	entitlements repository.EntitlementRepository,
	logger *zerolog.Logger,
) MembershipUseCase {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "MembershipUC").Logger()
	}
	return &membershipUC{
		packages:     packages,
		records:      records,
		entitlements: entitlements,
		log:          &l,
		now:          time.Now,
	}
}

func (u *membershipUC) Packages(ctx context.Context) ([]*model.Package, error) {
	pkgs, err := u.packages.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	sortPackages(pkgs)
	return pkgs, nil
}

func (u *membershipUC) Snapshot(ctx context.Context, userID string) (*model.MembershipSnapshot, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.Snapshot")()
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	pkgs, err := u.Packages(ctx)
	if err != nil {
		return nil, err
	}
	records, err := u.records.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	ent, err := u.entitlements.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		ent = nil
	}

	catalog := model.Catalog(pkgs)
	baseline := ResolveBaseline(records, catalog)
	if baseline.HasCompleted {
		if _, ok := catalog[baseline.PackageID]; !ok {
			u.log.Debug().Str("user_id", userID).Str("package", baseline.PackageID).
				Msg("baseline package missing from catalog; price treated as 0")
		}
	}
	pending := model.PendingTiers(records)

	snap := &model.MembershipSnapshot{
		UserID:       userID,
		Baseline:     baseline,
		Entitlement:  ent,
		PendingTiers: sortedKeys(pending),
		Packages:     pkgs,
		Offers:       ClassifyAll(pkgs, baseline, pending),
		History:      records,
		TakenAt:      u.now(),
	}
	return snap, nil
}

func (u *membershipUC) Quote(ctx context.Context, userID, packageID string) (model.TierOffer, error) {
	snap, err := u.Snapshot(ctx, userID)
	if err != nil {
		return model.TierOffer{}, err
	}
	offer, ok := snap.Offer(packageID)
	if !ok {
		return model.TierOffer{}, domain.ErrNotFound
	}
	return offer, nil
}

func sortPackages(pkgs []*model.Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		if pkgs[i].SortOrder != pkgs[j].SortOrder {
			return pkgs[i].SortOrder < pkgs[j].SortOrder
		}
		return pkgs[i].Price < pkgs[j].Price
	})
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
