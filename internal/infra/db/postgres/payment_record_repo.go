package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRecordRepository = (*PostgresPaymentRecordRepo)(nil)

type PostgresPaymentRecordRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRecordRepo(pool *pgxpool.Pool) *PostgresPaymentRecordRepo {
	return &PostgresPaymentRecordRepo{pool: pool}
}

// jsonb columns are read as text so that a malformed document does not fail the scan.
const paymentRecordColumns = `id, user_id, package_type, amount, status,
  COALESCE(payment_details::text, '[]'), COALESCE(complaints::text, '[]'),
  COALESCE(order_id, ''), COALESCE(provider_payment_id, ''), created_at, updated_at`

func (r *PostgresPaymentRecordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) error {
	const q = `
INSERT INTO payment_records (
  id, user_id, package_type, amount, status, payment_details, complaints,
  order_id, provider_payment_id, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
ON CONFLICT (id) DO UPDATE SET
  amount = EXCLUDED.amount,
  status = EXCLUDED.status,
  payment_details = EXCLUDED.payment_details,
  complaints = EXCLUDED.complaints,
  order_id = EXCLUDED.order_id,
  provider_payment_id = EXCLUDED.provider_payment_id,
  updated_at = EXCLUDED.updated_at;`

	details, err := marshalJSONArray(rec.Details)
	if err != nil {
		return err
	}
	complaints, err := marshalJSONArray(rec.Complaints)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.UserID, rec.PackageType, rec.Amount, string(rec.Status), details, complaints,
		rec.OrderID, rec.ProviderPaymentID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save payment record %s: %w", rec.ID, mapExecErr(err))
	}
	return nil
}

func (r *PostgresPaymentRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	q := forUpdate(`SELECT `+paymentRecordColumns+` FROM payment_records WHERE id = $1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPaymentRecord(row)
}

func (r *PostgresPaymentRecordRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	q := `SELECT ` + paymentRecordColumns + `
  FROM payment_records
 WHERE user_id = $1
 ORDER BY created_at DESC, id DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment records: %w", mapExecErr(err))
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		rec, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresPaymentRecordRepo) FindLatestByUserPackage(ctx context.Context, tx repository.Tx, userID, packageType string, status *model.PaymentRecordStatus) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentRecordColumns + `
  FROM payment_records
 WHERE user_id = $1 AND package_type = $2 AND ($3::text IS NULL OR status = $3::text)
 ORDER BY created_at DESC, id DESC
 LIMIT 1`
	q = forUpdate(q, tx) + ";"

	var st *string
	if status != nil {
		s := string(*status)
		st = &s
	}
	row, err := pickRow(ctx, r.pool, tx, q, userID, packageType, st)
	if err != nil {
		return nil, err
	}
	return scanPaymentRecord(row)
}

func (r *PostgresPaymentRecordRepo) UpdateComplaints(ctx context.Context, tx repository.Tx, id string, complaints []model.Complaint) error {
	const q = `UPDATE payment_records SET complaints = $2::jsonb, updated_at = NOW() WHERE id = $1;`
	payload, err := marshalJSONArray(complaints)
	if err != nil {
		return err
	}
	tag, err := execSQL(ctx, r.pool, tx, q, id, payload)
	if err != nil {
		return fmt.Errorf("update complaints %s: %w", id, mapExecErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPaymentRecord(row pgx.Row) (*model.PaymentRecord, error) {
	var (
		rec                 model.PaymentRecord
		status              string
		details, complaints string
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.PackageType, &rec.Amount, &status,
		&details, &complaints, &rec.OrderID, &rec.ProviderPaymentID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	rec.Status = model.PaymentRecordStatus(status)
	rec.Details = decodeDetails(details)
	rec.Complaints = decodeComplaints(complaints)
	return &rec, nil
}

// decodeDetails tolerates malformed documents: a row that does not decode is
// treated as having no events, which falls back to the record's own package.
func decodeDetails(raw string) []model.PaymentDetail {
	var out []model.PaymentDetail
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func decodeComplaints(raw string) []model.Complaint {
	var out []model.Complaint
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func marshalJSONArray[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedData, err)
	}
	return string(b), nil
}
