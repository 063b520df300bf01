package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/logging"
)

const maxComplaintLength = 2000

// Locker narrows the window for concurrent appends. It is optional.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ComplaintUseCase attaches dispute notes to payment records.
type ComplaintUseCase interface {
	// Attach appends message to the most relevant record for (userID, tier):
	// the latest pending one, else the latest of any status. Returns
	// domain.ErrNotFound, without writing, when the user has no record for tier.
	Attach(ctx context.Context, userID, tier, message string) (*model.PaymentRecord, error)
}

var _ ComplaintUseCase = (*complaintUC)(nil)

type complaintUC struct {
	records repository.PaymentRecordRepository
	locker  Locker
	log     *zerolog.Logger
	now     func() time.Time
}

// NewComplaintUseCase constructs the use case. locker and logger may be nil.
func NewComplaintUseCase(records repository.PaymentRecordRepository, locker Locker, logger *zerolog.Logger) ComplaintUseCase {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "ComplaintUC").Logger()
	}
	return &complaintUC{records: records, locker: locker, log: &l, now: time.Now}
}

func (u *complaintUC) Attach(ctx context.Context, userID, tier, message string) (*model.PaymentRecord, error) {
	defer logging.TraceDuration(u.log, "ComplaintUC.Attach")()
	tier = strings.TrimSpace(tier)
	message = strings.TrimSpace(message)
	if userID == "" || tier == "" || message == "" || len(message) > maxComplaintLength {
		return nil, domain.ErrInvalidArgument
	}

	rec, err := u.target(ctx, userID, tier)
	if err != nil {
		return nil, err
	}

	if u.locker != nil {
		key := "complaint:" + rec.ID
		if token, lerr := u.locker.TryLock(ctx, key, 5*time.Second); lerr == nil {
			defer func() { _ = u.locker.Unlock(context.WithoutCancel(ctx), key, token) }()
			// re-read under the lock so a concurrent append is not lost
			if fresh, ferr := u.records.FindByID(ctx, repository.NoTX, rec.ID); ferr == nil {
				rec = fresh
			}
		} else {
			u.log.Debug().Err(lerr).Str("record_id", rec.ID).Msg("complaint lock unavailable; appending without it")
		}
	}

	complaints := append(append([]model.Complaint(nil), rec.Complaints...), model.Complaint{
		Tier:      tier,
		Message:   message,
		CreatedAt: u.now().UTC(),
	})
	if err := u.records.UpdateComplaints(ctx, repository.NoTX, rec.ID, complaints); err != nil {
		return nil, err
	}
	rec.Complaints = complaints
	u.log.Info().Str("user_id", userID).Str("tier", tier).Str("record_id", rec.ID).
		Int("complaints", len(complaints)).Msg("complaint attached")
	return rec, nil
}

func (u *complaintUC) target(ctx context.Context, userID, tier string) (*model.PaymentRecord, error) {
	pending := model.PaymentStatusPending
	rec, err := u.records.FindLatestByUserPackage(ctx, repository.NoTX, userID, tier, &pending)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return u.records.FindLatestByUserPackage(ctx, repository.NoTX, userID, tier, nil)
}
