package ports

import (
	"context"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
)

// AggregationWarning reports an enterprise-scoped failure that did not abort
// the rest of the aggregation
type AggregationWarning struct {
	EnterpriseID string           `json:"enterprise_id,omitempty"`
	TripID       string           `json:"trip_id,omitempty"`
	Code         domain.ErrorCode `json:"code"`
	Message      string           `json:"message"`
}

// AggregationResult holds per-enterprise commission drafts for one period
type AggregationResult struct {
	// Details keyed by enterprise ID; enterprises with no validated trips
	// are absent
	Details  map[string]*models.CommissionDetail
	Warnings []AggregationWarning
}

// Aggregator computes commission drafts for a period from validated trips
type Aggregator interface {
	Aggregate(ctx context.Context, period *models.BillingPeriod) (*AggregationResult, error)
}
