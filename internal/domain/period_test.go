package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rideops/commission-service/internal/domain/models"
)

func openPeriod() *models.BillingPeriod {
	return &models.BillingPeriod{
		ID:     "per-1",
		Start:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		Status: models.PeriodOpen,
	}
}

func closedPeriod() *models.BillingPeriod {
	p := openPeriod()
	p.Status = models.PeriodClosed
	closedAt := p.End
	p.ClosedAt = &closedAt
	return p
}

func TestValidateClose(t *testing.T) {
	assert.NoError(t, ValidateClose(openPeriod()))

	err := ValidateClose(closedPeriod())
	assert.True(t, errors.Is(err, ErrPeriodNotOpen))

	assert.True(t, errors.Is(ValidateClose(nil), ErrPeriodNotFound))
}

func TestValidateReopen(t *testing.T) {
	assert.NoError(t, ValidateReopen(closedPeriod(), false))

	err := ValidateReopen(openPeriod(), false)
	assert.True(t, errors.Is(err, ErrPeriodNotClosed))

	err = ValidateReopen(closedPeriod(), true)
	assert.True(t, errors.Is(err, ErrPeriodHasSettled))

	assert.True(t, errors.Is(ValidateReopen(nil, false), ErrPeriodNotFound))
}

func TestValidateNextPeriod(t *testing.T) {
	prev := closedPeriod()
	next := prev.End.AddDate(0, 0, 15)

	assert.NoError(t, ValidateNextPeriod(prev, prev.End, next))

	// First period ever needs no predecessor
	assert.NoError(t, ValidateNextPeriod(nil, prev.End, next))

	// Gaps and overlaps are both non-contiguous
	err := ValidateNextPeriod(prev, prev.End.AddDate(0, 0, 1), next)
	assert.True(t, errors.Is(err, ErrPeriodNotContiguous))
	err = ValidateNextPeriod(prev, prev.End.AddDate(0, 0, -1), next)
	assert.True(t, errors.Is(err, ErrPeriodNotContiguous))

	// Previous period must be closed first
	err = ValidateNextPeriod(openPeriod(), prev.End, next)
	assert.True(t, errors.Is(err, ErrPeriodNotClosed))

	// Empty or inverted ranges are rejected outright
	err = ValidateNextPeriod(prev, prev.End, prev.End)
	assert.True(t, errors.Is(err, ErrPeriodNotContiguous))
}

func TestStaleSince(t *testing.T) {
	p := closedPeriod()

	assert.True(t, StaleSince(p, p.ClosedAt.Add(time.Hour)))
	assert.False(t, StaleSince(p, p.ClosedAt.Add(-time.Hour)))
	assert.False(t, StaleSince(p, *p.ClosedAt))

	// Open periods are never stale
	assert.False(t, StaleSince(openPeriod(), time.Now()))
}

func TestBillingPeriod_Contains(t *testing.T) {
	p := openPeriod()

	assert.True(t, p.Contains(p.Start))
	assert.True(t, p.Contains(p.End.Add(-time.Second)))
	assert.False(t, p.Contains(p.End))
	assert.False(t, p.Contains(p.Start.Add(-time.Second)))
}
