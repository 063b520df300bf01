package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.PackageRepository = (*PostgresPackageRepo)(nil)

type PostgresPackageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPackageRepo(pool *pgxpool.Pool) *PostgresPackageRepo {
	return &PostgresPackageRepo{pool: pool}
}

const packageColumns = `id, name, price, features, lifetime, sort_order`

func (r *PostgresPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	const q = `
INSERT INTO packages (id, name, price, features, lifetime, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
  SET name       = EXCLUDED.name,
      price      = EXCLUDED.price,
      features   = EXCLUDED.features,
      lifetime   = EXCLUDED.lifetime,
      sort_order = EXCLUDED.sort_order;`
	features := p.Features
	if features == nil {
		features = []string{}
	}
	if _, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Price, features, p.Lifetime, p.SortOrder); err != nil {
		return fmt.Errorf("save package %s: %w", p.ID, mapExecErr(err))
	}
	return nil
}

func (r *PostgresPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	q := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.Package
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Features, &p.Lifetime, &p.SortOrder); err != nil {
		return nil, mapScanErr(err)
	}
	return &p, nil
}

func (r *PostgresPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	q := `SELECT ` + packageColumns + ` FROM packages ORDER BY sort_order, price;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", mapExecErr(err))
	}
	defer rows.Close()

	var out []*model.Package
	for rows.Next() {
		var p model.Package
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Features, &p.Lifetime, &p.SortOrder); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
