package ports

import (
	"context"
	"time"

	"github.com/rideops/commission-service/internal/domain/models"
)

// PeriodRepository persists billing periods, the only rows the engine uses
// for mutual exclusion. Status updates are guarded by the optimistic version
// token: UpdateStatus reports false when the stored version no longer
// matches, and the caller must treat that as a concurrent-closure conflict.
type PeriodRepository interface {
	Create(ctx context.Context, tx DBTX, period *models.BillingPeriod) error
	GetByID(ctx context.Context, db DBTX, id string) (*models.BillingPeriod, error)
	GetOpen(ctx context.Context, db DBTX) (*models.BillingPeriod, error)
	GetLatest(ctx context.Context, db DBTX) (*models.BillingPeriod, error)
	List(ctx context.Context, db DBTX, limit, offset int32) ([]*models.BillingPeriod, error)
	ListClosed(ctx context.Context, db DBTX) ([]*models.BillingPeriod, error)

	// UpdateStatus transitions status and totals in one statement, guarded
	// by expectedVersion. Returns false without error on a version mismatch.
	UpdateStatus(ctx context.Context, tx DBTX, period *models.BillingPeriod, expectedVersion int32) (bool, error)

	// BumpVersion advances the version token without touching any other
	// column, guarded by expectedVersion. Invalidates the optimistic lock
	// held by any in-flight lifecycle operation on the period.
	BumpVersion(ctx context.Context, tx DBTX, id string, expectedVersion int32) (bool, error)
}

// RateConfigRepository reads and manages commission rate configurations
type RateConfigRepository interface {
	Create(ctx context.Context, tx DBTX, cfg *models.CommissionRateConfig) error
	Deactivate(ctx context.Context, tx DBTX, id string) error

	// ListApplicable returns active global and enterprise-specific configs
	// with EffectiveFrom <= asOf, ordered by EffectiveFrom ascending. The
	// resolver derives both point lookups and change points from this set.
	ListApplicable(ctx context.Context, db DBTX, enterpriseID string, asOf time.Time) ([]*models.CommissionRateConfig, error)
}

// CommissionRepository persists commission details, keyed (period, enterprise)
type CommissionRepository interface {
	// Upsert inserts or replaces the detail for its (period, enterprise)
	// key, so re-running an unchanged closure reproduces identical rows.
	Upsert(ctx context.Context, tx DBTX, detail *models.CommissionDetail) error
	GetByPeriodAndEnterprise(ctx context.Context, db DBTX, periodID, enterpriseID string) (*models.CommissionDetail, error)
	ListByPeriod(ctx context.Context, db DBTX, periodID string) ([]*models.CommissionDetail, error)
	DeleteByPeriod(ctx context.Context, tx DBTX, periodID string) error
	UpdateStatus(ctx context.Context, tx DBTX, id string, status models.CommissionStatus) error
	SetMetadataFlag(ctx context.Context, tx DBTX, periodID, key, value string) error
	HasSettled(ctx context.Context, db DBTX, periodID string) (bool, error)
}

// AuditRepository appends period audit entries. There are deliberately no
// update or delete operations: the trail is append-only.
type AuditRepository interface {
	Append(ctx context.Context, tx DBTX, entry *models.PeriodAuditEntry) error
	ListByPeriod(ctx context.Context, db DBTX, periodID string) ([]*models.PeriodAuditEntry, error)
}
