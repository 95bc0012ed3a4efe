package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
)

const periodColumns = `id, start_date, end_date, status, total_commission, total_revenue,
	       enterprise_count, version, closed_at, reopened_at, created_at, updated_at`

// PeriodRepository implements ports.PeriodRepository with raw pgx SQL
type PeriodRepository struct {
	pool *pgxpool.Pool
}

// NewPeriodRepository creates a new period repository
func NewPeriodRepository(pool *pgxpool.Pool) *PeriodRepository {
	return &PeriodRepository{pool: pool}
}

// Create inserts a new billing period
func (r *PeriodRepository) Create(ctx context.Context, tx ports.DBTX, period *models.BillingPeriod) error {
	commission, err := decimalToNumeric(period.TotalCommission)
	if err != nil {
		return err
	}
	revenue, err := decimalToNumeric(period.TotalRevenue)
	if err != nil {
		return err
	}

	_, err = executor(tx, r.pool).Exec(ctx, `
		INSERT INTO billing_periods (
			id, start_date, end_date, status, total_commission, total_revenue,
			enterprise_count, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		period.ID, period.Start, period.End, string(period.Status),
		commission, revenue, period.EnterpriseCount, period.Version,
		period.CreatedAt, period.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create billing period", err)
	}
	return nil
}

// GetByID retrieves a period by its ID; returns nil when it does not exist
func (r *PeriodRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.BillingPeriod, error) {
	row := executor(db, r.pool).QueryRow(ctx, `
		SELECT `+periodColumns+`
		FROM billing_periods
		WHERE id = $1`, id)
	return r.scanOne(row)
}

// GetOpen retrieves the currently open period, nil when none is open
func (r *PeriodRepository) GetOpen(ctx context.Context, db ports.DBTX) (*models.BillingPeriod, error) {
	row := executor(db, r.pool).QueryRow(ctx, `
		SELECT `+periodColumns+`
		FROM billing_periods
		WHERE status = $1
		ORDER BY start_date DESC
		LIMIT 1`, string(models.PeriodOpen))
	return r.scanOne(row)
}

// GetLatest retrieves the period with the greatest start date
func (r *PeriodRepository) GetLatest(ctx context.Context, db ports.DBTX) (*models.BillingPeriod, error) {
	row := executor(db, r.pool).QueryRow(ctx, `
		SELECT ` + periodColumns + `
		FROM billing_periods
		ORDER BY start_date DESC
		LIMIT 1`)
	return r.scanOne(row)
}

// List returns periods ordered by start date descending
func (r *PeriodRepository) List(ctx context.Context, db ports.DBTX, limit, offset int32) ([]*models.BillingPeriod, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := executor(db, r.pool).Query(ctx, `
		SELECT `+periodColumns+`
		FROM billing_periods
		ORDER BY start_date DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list billing periods", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// ListClosed returns all closed periods ordered by start date ascending
func (r *PeriodRepository) ListClosed(ctx context.Context, db ports.DBTX) ([]*models.BillingPeriod, error) {
	rows, err := executor(db, r.pool).Query(ctx, `
		SELECT `+periodColumns+`
		FROM billing_periods
		WHERE status = $1
		ORDER BY start_date`, string(models.PeriodClosed))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list closed periods", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// UpdateStatus transitions status, totals, and timestamps in one statement
// guarded by the optimistic version token. Returns false without error when
// the stored version no longer matches expectedVersion.
func (r *PeriodRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, period *models.BillingPeriod, expectedVersion int32) (bool, error) {
	commission, err := decimalToNumeric(period.TotalCommission)
	if err != nil {
		return false, err
	}
	revenue, err := decimalToNumeric(period.TotalRevenue)
	if err != nil {
		return false, err
	}

	tag, err := executor(tx, r.pool).Exec(ctx, `
		UPDATE billing_periods
		SET status = $1,
		    total_commission = $2,
		    total_revenue = $3,
		    enterprise_count = $4,
		    closed_at = $5,
		    reopened_at = $6,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $7 AND version = $8`,
		string(period.Status), commission, revenue, period.EnterpriseCount,
		nullTime(period.ClosedAt), nullTime(period.ReopenedAt),
		period.ID, expectedVersion,
	)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "update billing period", err)
	}
	return tag.RowsAffected() == 1, nil
}

// BumpVersion advances the version token only, so lifecycle operations that
// read the previous version fail their conditional update instead of
// committing over the change.
func (r *PeriodRepository) BumpVersion(ctx context.Context, tx ports.DBTX, id string, expectedVersion int32) (bool, error) {
	tag, err := executor(tx, r.pool).Exec(ctx, `
		UPDATE billing_periods
		SET version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "bump billing period version", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PeriodRepository) scanOne(row pgx.Row) (*models.BillingPeriod, error) {
	period, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan billing period", err)
	}
	return period, nil
}

func (r *PeriodRepository) scanMany(rows pgx.Rows) ([]*models.BillingPeriod, error) {
	var periods []*models.BillingPeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan billing period", err)
		}
		periods = append(periods, period)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate billing periods", err)
	}
	return periods, nil
}

func scanPeriod(row pgx.Row) (*models.BillingPeriod, error) {
	var (
		p                    models.BillingPeriod
		status               string
		commission, revenue  pgtype.Numeric
		closedAt, reopenedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&p.ID, &p.Start, &p.End, &status, &commission, &revenue,
		&p.EnterpriseCount, &p.Version, &closedAt, &reopenedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.PeriodStatus(status)
	if p.TotalCommission, err = numericToDecimal(commission); err != nil {
		return nil, fmt.Errorf("total_commission: %w", err)
	}
	if p.TotalRevenue, err = numericToDecimal(revenue); err != nil {
		return nil, fmt.Errorf("total_revenue: %w", err)
	}
	p.ClosedAt = timePtr(closedAt)
	p.ReopenedAt = timePtr(reopenedAt)
	p.Start = p.Start.UTC()
	p.End = p.End.UTC()
	return &p, nil
}
