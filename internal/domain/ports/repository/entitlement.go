package repository

import (
	"context"

	"membership-billing/internal/domain/model"
)

type EntitlementRepository interface {
	// FindActiveByUser returns domain.ErrNotFound when the user holds no active package.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.UserPackageEntitlement, error)
}
