package ports

import (
	"context"
	"time"

	"github.com/rideops/commission-service/internal/domain/models"
)

// ClosureResult reports the outcome of a closure, reopen, or recompute.
// Warnings carry enterprise-scoped failures that the operator should follow
// up on; the operation itself succeeded for every listed detail.
type ClosureResult struct {
	Period   *models.BillingPeriod
	Details  []*models.CommissionDetail
	Warnings []AggregationWarning
}

// StalePeriod flags a closed period whose trips were edited after closure
type StalePeriod struct {
	PeriodID    string    `json:"period_id"`
	ClosedAt    time.Time `json:"closed_at"`
	EditedTrips []string  `json:"edited_trips"`
}

// BillingService owns the period lifecycle and closure orchestration.
// Every mutating operation is atomic: either all of its writes commit or
// none do, and a stale period version always fails the whole operation.
type BillingService interface {
	// ClosePeriod freezes an open period, computes and persists its
	// commission details, and records the closure in the audit trail.
	ClosePeriod(ctx context.Context, periodID, actor string) (*ClosureResult, error)

	// CloseCurrentPeriod closes whichever period is currently open
	CloseCurrentPeriod(ctx context.Context, actor string) (*ClosureResult, error)

	// ReopenPeriod reverses a closure, deleting commission details and
	// zeroing totals. Refused once any detail has settled.
	ReopenPeriod(ctx context.Context, periodID, actor string) (*models.BillingPeriod, error)

	// RecomputePeriod regenerates a closed period's details in place
	// without an observable open window. Subject to the same settlement
	// guard as reopen.
	RecomputePeriod(ctx context.Context, periodID, actor string) (*ClosureResult, error)

	// CreateNextPeriod appends a new open period tiling onto the latest one
	CreateNextPeriod(ctx context.Context, start, end time.Time) (*models.BillingPeriod, error)

	ListPeriods(ctx context.Context, limit, offset int32) ([]*models.BillingPeriod, error)
	ListDetails(ctx context.Context, periodID string) ([]*models.CommissionDetail, error)
	ListAuditTrail(ctx context.Context, periodID string) ([]*models.PeriodAuditEntry, error)

	// MarkSettled transitions a detail Computed -> Settled once the
	// settlement tracker reports payment
	MarkSettled(ctx context.Context, periodID, enterpriseID string) error

	// DetectStalePeriods flags closed periods whose trips were edited after
	// closure, marking their details recompute-recommended
	DetectStalePeriods(ctx context.Context) ([]StalePeriod, error)
}
