package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripRecord is the engine's read-only view of a completed trip, as returned
// by the trip store. The store adapter resolves the driver -> enterprise
// relation; EnterpriseID is empty when that linkage is missing.
type TripRecord struct {
	ID           string
	DriverID     string
	EnterpriseID string
	GrossAmount  decimal.Decimal

	// A trip is validated only when it carries both a validation code and
	// a validation timestamp. Anything else is pending and excluded from
	// commission computation.
	ValidationCode string
	ValidatedAt    *time.Time

	CompletedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validated reports whether the trip carries a complete validation
func (t *TripRecord) Validated() bool {
	return t.ValidationCode != "" && t.ValidatedAt != nil
}
