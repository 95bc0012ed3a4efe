package ports

import (
	"context"
	"time"

	"github.com/rideops/commission-service/internal/domain/models"
)

// TripStore is the engine's read-only view of the trip/reservation system.
// The adapter resolves the driver -> enterprise relation, returning a
// normalized trip-with-enterprise view; trips whose linkage is missing come
// back with an empty EnterpriseID.
type TripStore interface {
	// ListEnterprises returns the distinct enterprises with at least one
	// validated trip created in [start, end).
	ListEnterprises(ctx context.Context, start, end time.Time) ([]string, error)

	// ListValidatedByEnterprise returns validated trips for one enterprise
	// created in [start, end).
	ListValidatedByEnterprise(ctx context.Context, enterpriseID string, start, end time.Time) ([]*models.TripRecord, error)

	// ListUnresolved returns validated trips in [start, end) whose
	// driver -> enterprise linkage is missing.
	ListUnresolved(ctx context.Context, start, end time.Time) ([]*models.TripRecord, error)

	// ListEditedAfter returns trips created in [start, end) whose last edit
	// postdates the given closure time.
	ListEditedAfter(ctx context.Context, start, end, closedAt time.Time) ([]*models.TripRecord, error)
}

// EnterpriseRegistry resolves drivers to their owning enterprise. Used as a
// fallback when the trip store's normalized view lacks the linkage.
type EnterpriseRegistry interface {
	EnterpriseForDriver(ctx context.Context, driverID string) (string, error)
}

// PaymentTracker is the engine's read-only view of the settlement system,
// consulted only to decide whether a reopen is permitted.
type PaymentTracker interface {
	// HasPaidCommission reports whether any commission detail of the period
	// has an associated paid payment record.
	HasPaidCommission(ctx context.Context, periodID string) (bool, error)
}
