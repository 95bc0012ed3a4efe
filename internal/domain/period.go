package domain

import (
	"time"

	"github.com/rideops/commission-service/internal/domain/models"
)

// Period lifecycle rules. These are pure functions: they validate a
// transition without performing it, so the orchestrator can check
// preconditions before staging any writes.

// ValidateClose checks that the period can transition Open -> Closed
func ValidateClose(p *models.BillingPeriod) error {
	if p == nil {
		return ErrPeriodNotFound
	}
	if p.Status != models.PeriodOpen {
		return ErrPeriodNotOpen.WithDetail("period_id", p.ID).WithDetail("status", string(p.Status))
	}
	return nil
}

// ValidateReopen checks that the period can transition Closed -> Open.
// hasSettled reflects whether any commission detail under the period has
// settled or carries a paid payment record; the caller resolves it against
// the settlement tracker.
func ValidateReopen(p *models.BillingPeriod, hasSettled bool) error {
	if p == nil {
		return ErrPeriodNotFound
	}
	if p.Status != models.PeriodClosed {
		return ErrPeriodNotClosed.WithDetail("period_id", p.ID).WithDetail("status", string(p.Status))
	}
	if hasSettled {
		return ErrPeriodHasSettled.WithDetail("period_id", p.ID)
	}
	return nil
}

// ValidateNextPeriod checks that a new period tiles onto the previous one:
// the previous period must be closed and the new range must start exactly
// where the previous one ends. prev is nil for the very first period.
func ValidateNextPeriod(prev *models.BillingPeriod, start, end time.Time) error {
	if !end.After(start) {
		return ErrPeriodNotContiguous.WithDetail("reason", "end must be after start")
	}
	if prev == nil {
		return nil
	}
	if prev.Status != models.PeriodClosed {
		return ErrPeriodNotClosed.WithDetail("period_id", prev.ID)
	}
	if !start.Equal(prev.End) {
		return ErrPeriodNotContiguous.
			WithDetail("previous_end", prev.End.Format(time.RFC3339)).
			WithDetail("requested_start", start.Format(time.RFC3339))
	}
	return nil
}

// StaleSince reports whether a trip edit at updatedAt postdates the
// period's closure, which makes the period's commission details stale.
func StaleSince(p *models.BillingPeriod, updatedAt time.Time) bool {
	if p.Status != models.PeriodClosed || p.ClosedAt == nil {
		return false
	}
	return updatedAt.After(*p.ClosedAt)
}
