package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
)

// RateConfigRepository implements ports.RateConfigRepository
type RateConfigRepository struct {
	pool *pgxpool.Pool
}

// NewRateConfigRepository creates a new rate config repository
func NewRateConfigRepository(pool *pgxpool.Pool) *RateConfigRepository {
	return &RateConfigRepository{pool: pool}
}

// Create inserts a new rate configuration
func (r *RateConfigRepository) Create(ctx context.Context, tx ports.DBTX, cfg *models.CommissionRateConfig) error {
	rate, err := decimalToNumeric(cfg.RatePercent)
	if err != nil {
		return err
	}

	_, err = executor(tx, r.pool).Exec(ctx, `
		INSERT INTO commission_rate_configs (
			id, enterprise_id, rate_percent, effective_from, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		cfg.ID, nullText(cfg.EnterpriseID), rate, cfg.EffectiveFrom, cfg.Active, cfg.CreatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create rate config", err)
	}
	return nil
}

// Deactivate marks a rate configuration inactive
func (r *RateConfigRepository) Deactivate(ctx context.Context, tx ports.DBTX, id string) error {
	tag, err := executor(tx, r.pool).Exec(ctx, `
		UPDATE commission_rate_configs
		SET active = FALSE
		WHERE id = $1`, id)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "deactivate rate config", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRateNotConfigured.WithDetail("rate_config_id", id)
	}
	return nil
}

// ListApplicable returns active global and enterprise-specific configs with
// EffectiveFrom <= asOf, ordered by EffectiveFrom ascending
func (r *RateConfigRepository) ListApplicable(ctx context.Context, db ports.DBTX, enterpriseID string, asOf time.Time) ([]*models.CommissionRateConfig, error) {
	rows, err := executor(db, r.pool).Query(ctx, `
		SELECT id, COALESCE(enterprise_id, ''), rate_percent, effective_from, active, created_at
		FROM commission_rate_configs
		WHERE active = TRUE
		  AND (enterprise_id IS NULL OR enterprise_id = $1)
		  AND effective_from <= $2
		ORDER BY effective_from`, enterpriseID, asOf)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list rate configs", err)
	}
	defer rows.Close()

	var configs []*models.CommissionRateConfig
	for rows.Next() {
		var (
			cfg  models.CommissionRateConfig
			rate pgtype.Numeric
		)
		err := rows.Scan(&cfg.ID, &cfg.EnterpriseID, &rate, &cfg.EffectiveFrom, &cfg.Active, &cfg.CreatedAt)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan rate config", err)
		}
		if cfg.RatePercent, err = numericToDecimal(rate); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan rate config", err)
		}
		cfg.EffectiveFrom = cfg.EffectiveFrom.UTC()
		configs = append(configs, &cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate rate configs", err)
	}
	return configs, nil
}
