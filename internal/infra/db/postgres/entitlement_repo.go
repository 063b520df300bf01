package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*PostgresEntitlementRepo)(nil)

type PostgresEntitlementRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresEntitlementRepo(pool *pgxpool.Pool) *PostgresEntitlementRepo {
	return &PostgresEntitlementRepo{pool: pool}
}

func (r *PostgresEntitlementRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserPackageEntitlement, error) {
	const q = `
SELECT user_id, package_type, is_active, activated_at
  FROM user_package_entitlements
 WHERE user_id = $1 AND is_active
 ORDER BY activated_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	var e model.UserPackageEntitlement
	if err := row.Scan(&e.UserID, &e.PackageType, &e.IsActive, &e.ActivatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return &e, nil
}
