package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodStatus represents the lifecycle state of a billing period
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// BillingPeriod represents one contiguous billing interval over which
// commissions are computed. Periods tile the timeline: every period's Start
// equals the previous period's End, and at most one period is open at a time.
type BillingPeriod struct {
	ID     string
	Start  time.Time // inclusive
	End    time.Time // exclusive
	Status PeriodStatus

	// Denormalized aggregates, recomputed on every closure
	TotalCommission decimal.Decimal
	TotalRevenue    decimal.Decimal
	EnterpriseCount int32

	// Optimistic concurrency token; bumped on every status transition
	Version int32

	ClosedAt   *time.Time
	ReopenedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contains reports whether t falls inside the period's half-open range
func (p *BillingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Totals is a snapshot of a period's denormalized aggregates, used for
// audit before/after records
type Totals struct {
	Commission  decimal.Decimal `json:"commission"`
	Revenue     decimal.Decimal `json:"revenue"`
	Enterprises int32           `json:"enterprises"`
}

// Snapshot captures the period's current totals
func (p *BillingPeriod) Snapshot() Totals {
	return Totals{
		Commission:  p.TotalCommission,
		Revenue:     p.TotalRevenue,
		Enterprises: p.EnterpriseCount,
	}
}

// ZeroTotals returns an all-zero totals snapshot
func ZeroTotals() Totals {
	return Totals{
		Commission: decimal.Zero,
		Revenue:    decimal.Zero,
	}
}
