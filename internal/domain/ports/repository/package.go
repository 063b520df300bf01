package repository

import (
	"context"

	"membership-billing/internal/domain/model"
)

// PackageRepository is the port for the package catalog.
type PackageRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Package) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Package, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Package, error)
}
