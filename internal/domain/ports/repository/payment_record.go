package repository

import (
	"context"

	"membership-billing/internal/domain/model"
)

// PaymentRecordRepository is the port for a user's payment history.
type PaymentRecordRepository interface {
	Save(ctx context.Context, tx Tx, r *model.PaymentRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRecord, error)
	// ListByUser returns all records for the user, newest first.
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.PaymentRecord, error)
	// FindLatestByUserPackage returns the most recently created record for (user, package).
	// A nil status matches any status. Returns domain.ErrNotFound when nothing matches.
	FindLatestByUserPackage(ctx context.Context, tx Tx, userID, packageType string, status *model.PaymentRecordStatus) (*model.PaymentRecord, error)
	UpdateComplaints(ctx context.Context, tx Tx, id string, complaints []model.Complaint) error
}
