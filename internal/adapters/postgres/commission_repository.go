package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
)

const commissionColumns = `id, period_id, enterprise_id, trip_count, gross_revenue,
	       blended_rate_percent, commission_amount, global_rate_days,
	       specific_rate_days, status, metadata, created_at, updated_at`

// CommissionRepository implements ports.CommissionRepository
type CommissionRepository struct {
	pool *pgxpool.Pool
}

// NewCommissionRepository creates a new commission repository
func NewCommissionRepository(pool *pgxpool.Pool) *CommissionRepository {
	return &CommissionRepository{pool: pool}
}

// Upsert inserts or replaces the detail keyed (period_id, enterprise_id) so
// re-running an unchanged closure reproduces identical rows
func (r *CommissionRepository) Upsert(ctx context.Context, tx ports.DBTX, detail *models.CommissionDetail) error {
	revenue, err := decimalToNumeric(detail.GrossRevenue)
	if err != nil {
		return err
	}
	rate, err := decimalToNumeric(detail.BlendedRatePercent)
	if err != nil {
		return err
	}
	amount, err := decimalToNumeric(detail.CommissionAmount)
	if err != nil {
		return err
	}
	metadata, err := marshalMetadata(detail.Metadata)
	if err != nil {
		return err
	}

	_, err = executor(tx, r.pool).Exec(ctx, `
		INSERT INTO commission_details (
			id, period_id, enterprise_id, trip_count, gross_revenue,
			blended_rate_percent, commission_amount, global_rate_days,
			specific_rate_days, status, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (period_id, enterprise_id) DO UPDATE SET
			trip_count = EXCLUDED.trip_count,
			gross_revenue = EXCLUDED.gross_revenue,
			blended_rate_percent = EXCLUDED.blended_rate_percent,
			commission_amount = EXCLUDED.commission_amount,
			global_rate_days = EXCLUDED.global_rate_days,
			specific_rate_days = EXCLUDED.specific_rate_days,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`,
		detail.ID, detail.PeriodID, detail.EnterpriseID, detail.TripCount,
		revenue, rate, amount, detail.GlobalRateDays, detail.SpecificRateDays,
		string(detail.Status), metadata, detail.CreatedAt, detail.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "upsert commission detail", err)
	}
	return nil
}

// GetByPeriodAndEnterprise returns one detail, nil when absent
func (r *CommissionRepository) GetByPeriodAndEnterprise(ctx context.Context, db ports.DBTX, periodID, enterpriseID string) (*models.CommissionDetail, error) {
	row := executor(db, r.pool).QueryRow(ctx, `
		SELECT `+commissionColumns+`
		FROM commission_details
		WHERE period_id = $1 AND enterprise_id = $2`, periodID, enterpriseID)

	detail, err := scanCommission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan commission detail", err)
	}
	return detail, nil
}

// ListByPeriod returns all details of a period ordered by enterprise
func (r *CommissionRepository) ListByPeriod(ctx context.Context, db ports.DBTX, periodID string) ([]*models.CommissionDetail, error) {
	rows, err := executor(db, r.pool).Query(ctx, `
		SELECT `+commissionColumns+`
		FROM commission_details
		WHERE period_id = $1
		ORDER BY enterprise_id`, periodID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list commission details", err)
	}
	defer rows.Close()

	var details []*models.CommissionDetail
	for rows.Next() {
		detail, err := scanCommission(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan commission detail", err)
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate commission details", err)
	}
	return details, nil
}

// DeleteByPeriod removes all details of a period, used when the period is
// reopened or recomputed
func (r *CommissionRepository) DeleteByPeriod(ctx context.Context, tx ports.DBTX, periodID string) error {
	_, err := executor(tx, r.pool).Exec(ctx, `
		DELETE FROM commission_details
		WHERE period_id = $1`, periodID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "delete commission details", err)
	}
	return nil
}

// UpdateStatus transitions a single detail's settlement status
func (r *CommissionRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id string, status models.CommissionStatus) error {
	tag, err := executor(tx, r.pool).Exec(ctx, `
		UPDATE commission_details
		SET status = $1, updated_at = NOW()
		WHERE id = $2`, string(status), id)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update commission status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommissionNotFound.WithDetail("commission_detail_id", id)
	}
	return nil
}

// SetMetadataFlag merges one key into the metadata of every detail in the
// period without touching the computed amounts
func (r *CommissionRepository) SetMetadataFlag(ctx context.Context, tx ports.DBTX, periodID, key, value string) error {
	flag, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "marshal metadata flag", err)
	}

	_, err = executor(tx, r.pool).Exec(ctx, `
		UPDATE commission_details
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $1::jsonb,
		    updated_at = NOW()
		WHERE period_id = $2`, string(flag), periodID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "set metadata flag", err)
	}
	return nil
}

// HasSettled reports whether any detail in the period has been settled
func (r *CommissionRepository) HasSettled(ctx context.Context, db ports.DBTX, periodID string) (bool, error) {
	var settled bool
	err := executor(db, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM commission_details
			WHERE period_id = $1 AND status = $2
		)`, periodID, string(models.CommissionSettled)).Scan(&settled)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "check settled commissions", err)
	}
	return settled, nil
}

func scanCommission(row pgx.Row) (*models.CommissionDetail, error) {
	var (
		d                     models.CommissionDetail
		status                string
		revenue, rate, amount pgtype.Numeric
		metadata              []byte
	)
	err := row.Scan(
		&d.ID, &d.PeriodID, &d.EnterpriseID, &d.TripCount, &revenue,
		&rate, &amount, &d.GlobalRateDays, &d.SpecificRateDays,
		&status, &metadata, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = models.CommissionStatus(status)
	if d.GrossRevenue, err = numericToDecimal(revenue); err != nil {
		return nil, fmt.Errorf("gross_revenue: %w", err)
	}
	if d.BlendedRatePercent, err = numericToDecimal(rate); err != nil {
		return nil, fmt.Errorf("blended_rate_percent: %w", err)
	}
	if d.CommissionAmount, err = numericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("commission_amount: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
	}
	return &d, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "marshal commission metadata", err)
	}
	return b, nil
}
