package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
)

// AuditRepository implements ports.AuditRepository. The underlying table has
// no UPDATE or DELETE path; entries accumulate for the life of the period.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append writes one audit entry
func (r *AuditRepository) Append(ctx context.Context, tx ports.DBTX, entry *models.PeriodAuditEntry) error {
	before, err := json.Marshal(entry.BeforeTotals)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "marshal audit totals", err)
	}
	after, err := json.Marshal(entry.AfterTotals)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "marshal audit totals", err)
	}

	_, err = executor(tx, r.pool).Exec(ctx, `
		INSERT INTO period_audit_log (
			id, period_id, action, actor, before_totals, after_totals, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.PeriodID, string(entry.Action), entry.Actor,
		before, after, entry.OccurredAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "append audit entry", err)
	}
	return nil
}

// ListByPeriod returns a period's audit trail in chronological order
func (r *AuditRepository) ListByPeriod(ctx context.Context, db ports.DBTX, periodID string) ([]*models.PeriodAuditEntry, error) {
	rows, err := executor(db, r.pool).Query(ctx, `
		SELECT id, period_id, action, actor, before_totals, after_totals, occurred_at
		FROM period_audit_log
		WHERE period_id = $1
		ORDER BY occurred_at, id`, periodID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list audit entries", err)
	}
	defer rows.Close()

	var entries []*models.PeriodAuditEntry
	for rows.Next() {
		var (
			entry         models.PeriodAuditEntry
			action        string
			before, after []byte
		)
		err := rows.Scan(&entry.ID, &entry.PeriodID, &action, &entry.Actor, &before, &after, &entry.OccurredAt)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan audit entry", err)
		}
		entry.Action = models.AuditAction(action)
		if err := unmarshalTotals(before, &entry.BeforeTotals); err != nil {
			return nil, err
		}
		if err := unmarshalTotals(after, &entry.AfterTotals); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate audit entries", err)
	}
	return entries, nil
}

func unmarshalTotals(b []byte, t *models.Totals) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, t); err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, fmt.Sprintf("unmarshal audit totals %q", b), err)
	}
	return nil
}
