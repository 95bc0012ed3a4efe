package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rideops/commission-service/internal/domain/models"
)

// TripBuilder provides fluent API for building test trip records.
type TripBuilder struct {
	trip *models.TripRecord
}

// NewTrip creates a builder defaulting to a validated 100.00 trip created
// 2026-01-02 UTC.
func NewTrip() *TripBuilder {
	createdAt := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	validatedAt := createdAt.Add(30 * time.Minute)
	return &TripBuilder{
		trip: &models.TripRecord{
			ID:             uuid.New().String(),
			DriverID:       "drv-" + uuid.New().String()[:8],
			EnterpriseID:   "ent-default",
			GrossAmount:    decimal.NewFromInt(100),
			ValidationCode: "VAL-" + uuid.New().String()[:8],
			ValidatedAt:    &validatedAt,
			CompletedAt:    createdAt,
			CreatedAt:      createdAt,
			UpdatedAt:      createdAt,
		},
	}
}

func (b *TripBuilder) ForEnterprise(enterpriseID string) *TripBuilder {
	b.trip.EnterpriseID = enterpriseID
	return b
}

func (b *TripBuilder) ForDriver(driverID string) *TripBuilder {
	b.trip.DriverID = driverID
	return b
}

func (b *TripBuilder) WithAmount(amount string) *TripBuilder {
	b.trip.GrossAmount = decimal.RequireFromString(amount)
	return b
}

func (b *TripBuilder) CreatedAt(t time.Time) *TripBuilder {
	b.trip.CreatedAt = t
	b.trip.CompletedAt = t
	b.trip.UpdatedAt = t
	if b.trip.ValidatedAt != nil {
		v := t.Add(30 * time.Minute)
		b.trip.ValidatedAt = &v
	}
	return b
}

// Pending clears the validation, excluding the trip from commission
func (b *TripBuilder) Pending() *TripBuilder {
	b.trip.ValidationCode = ""
	b.trip.ValidatedAt = nil
	return b
}

// Unresolved clears the enterprise linkage
func (b *TripBuilder) Unresolved() *TripBuilder {
	b.trip.EnterpriseID = ""
	return b
}

// EditedAt marks a post-closure edit timestamp
func (b *TripBuilder) EditedAt(t time.Time) *TripBuilder {
	b.trip.UpdatedAt = t
	return b
}

// Build returns the built trip
func (b *TripBuilder) Build() *models.TripRecord {
	t := *b.trip
	return &t
}
