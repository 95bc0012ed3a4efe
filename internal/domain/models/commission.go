package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus represents the settlement state of a commission detail
type CommissionStatus string

const (
	CommissionComputed CommissionStatus = "computed"
	CommissionSettled  CommissionStatus = "settled"
)

// Metadata key set by the stale-period sweep when a trip was edited after
// its owning period closed.
const MetaRecomputeRecommended = "recompute_recommended"

// CommissionDetail is the computed commission liability of one enterprise
// for one period. Rows are created only during closure, are immutable except
// for the Computed -> Settled status transition, and are deleted and
// regenerated on reopen.
type CommissionDetail struct {
	ID           string
	PeriodID     string
	EnterpriseID string

	TripCount          int32
	GrossRevenue       decimal.Decimal
	BlendedRatePercent decimal.Decimal // revenue-weighted across rate segments
	CommissionAmount   decimal.Decimal

	// Days of the period governed by each rate source, derived from segment
	// boundaries so they are defined even when a segment had no trips
	GlobalRateDays   int32
	SpecificRateDays int32

	Status   CommissionStatus
	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentRecord is the engine's read-only view of the settlement tracker's
// state for one commission detail.
type PaymentRecord struct {
	ID                 string
	CommissionDetailID string
	Amount             decimal.Decimal
	Paid               bool
	PaidAt             *time.Time
}
