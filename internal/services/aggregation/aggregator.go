package aggregation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
	sports "github.com/rideops/commission-service/internal/services/ports"
)

var hundred = decimal.NewFromInt(100)

// Config tunes the aggregation fan-out
type Config struct {
	// MaxConcurrency bounds how many enterprises are aggregated at once
	MaxConcurrency int
	// TripQueriesPerSecond paces trip-store scans so a wide closure does
	// not saturate the external store
	TripQueriesPerSecond float64
}

// DefaultConfig returns production aggregation settings
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:       8,
		TripQueriesPerSecond: 50,
	}
}

// Service implements sports.Aggregator. Per-enterprise aggregations are
// independent read-only computations and run concurrently; trip-store reads
// are paced by a shared rate limiter.
type Service struct {
	trips    ports.TripStore
	registry ports.EnterpriseRegistry
	rates    sports.RateResolver
	limiter  *rate.Limiter
	logger   ports.Logger
	cfg      Config
}

// NewService creates a new aggregation service
func NewService(trips ports.TripStore, registry ports.EnterpriseRegistry, rates sports.RateResolver, logger ports.Logger, cfg Config) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.TripQueriesPerSecond <= 0 {
		cfg.TripQueriesPerSecond = DefaultConfig().TripQueriesPerSecond
	}
	return &Service{
		trips:    trips,
		registry: registry,
		rates:    rates,
		limiter:  rate.NewLimiter(rate.Limit(cfg.TripQueriesPerSecond), 1),
		logger:   logger,
		cfg:      cfg,
	}
}

// Aggregate computes one CommissionDetail draft per enterprise with
// validated trips in the period. Enterprise-scoped failures (missing rate,
// unresolvable enterprise) become warnings; any other failure aborts the
// whole aggregation.
func (s *Service) Aggregate(ctx context.Context, period *models.BillingPeriod) (*sports.AggregationResult, error) {
	enterprises, err := s.trips.ListEnterprises(ctx, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list enterprises with trips: %w", err)
	}

	result := &sports.AggregationResult{
		Details: make(map[string]*models.CommissionDetail, len(enterprises)),
	}

	// Recover trips whose driver -> enterprise linkage the trip store could
	// not resolve. The registry is the fallback; trips it cannot place are
	// excluded and reported, never silently folded into a total.
	extraTrips, unresolvedWarnings, err := s.recoverUnresolved(ctx, period)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, unresolvedWarnings...)
	for enterpriseID := range extraTrips {
		if !contains(enterprises, enterpriseID) {
			enterprises = append(enterprises, enterpriseID)
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	sem := make(chan struct{}, s.cfg.MaxConcurrency)

	for _, enterpriseID := range enterprises {
		wg.Add(1)
		go func(enterpriseID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			detail, err := s.aggregateEnterprise(ctx, period, enterpriseID, extraTrips[enterpriseID])

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if detail != nil {
					result.Details[enterpriseID] = detail
				}
			case domain.IsEnterpriseScoped(err):
				s.logger.Warn("enterprise aggregation skipped",
					ports.String("period_id", period.ID),
					ports.String("enterprise_id", enterpriseID),
					ports.Err(err))
				result.Warnings = append(result.Warnings, sports.AggregationWarning{
					EnterpriseID: enterpriseID,
					Code:         domain.GetErrorCode(err),
					Message:      err.Error(),
				})
			case firstErr == nil:
				firstErr = fmt.Errorf("aggregate enterprise %s: %w", enterpriseID, err)
			}
		}(enterpriseID)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// aggregateEnterprise computes one enterprise's draft. Returns nil when the
// enterprise has no validated trips in the period.
func (s *Service) aggregateEnterprise(ctx context.Context, period *models.BillingPeriod, enterpriseID string, extra []*models.TripRecord) (*models.CommissionDetail, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	trips, err := s.trips.ListValidatedByEnterprise(ctx, enterpriseID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	trips = append(trips, extra...)

	segments, err := s.rates.Segments(ctx, enterpriseID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	var (
		tripCount       int32
		totalRevenue    = decimal.Zero
		totalCommission = decimal.Zero
		globalDays      int32
		specificDays    int32
	)

	for _, seg := range segments {
		revenue := decimal.Zero
		for _, trip := range trips {
			if !trip.Validated() {
				continue
			}
			if inRange(trip.CreatedAt, seg.Start, seg.End) {
				revenue = revenue.Add(trip.GrossAmount)
			}
		}
		totalRevenue = totalRevenue.Add(revenue)
		totalCommission = totalCommission.Add(revenue.Mul(seg.RatePercent).Div(hundred))

		switch seg.Source {
		case models.RateSourceEnterprise:
			specificDays += seg.Days()
		default:
			globalDays += seg.Days()
		}
	}

	for _, trip := range trips {
		if trip.Validated() && inRange(trip.CreatedAt, period.Start, period.End) {
			tripCount++
		}
	}
	if tripCount == 0 {
		return nil, nil
	}

	blended := decimal.Zero
	if totalRevenue.IsPositive() {
		blended = totalCommission.Div(totalRevenue).Mul(hundred).Round(4)
	}

	return &models.CommissionDetail{
		ID:                 uuid.New().String(),
		PeriodID:           period.ID,
		EnterpriseID:       enterpriseID,
		TripCount:          tripCount,
		GrossRevenue:       totalRevenue,
		BlendedRatePercent: blended,
		CommissionAmount:   totalCommission.Round(2),
		GlobalRateDays:     globalDays,
		SpecificRateDays:   specificDays,
		Status:             models.CommissionComputed,
		Metadata:           map[string]string{"trip_window": period.Start.Format("2006-01-02") + "/" + period.End.Format("2006-01-02")},
	}, nil
}

// recoverUnresolved asks the registry to place trips with a missing
// enterprise linkage, returning the recovered trips grouped by enterprise
// and a warning per trip that stayed unresolved
func (s *Service) recoverUnresolved(ctx context.Context, period *models.BillingPeriod) (map[string][]*models.TripRecord, []sports.AggregationWarning, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	orphans, err := s.trips.ListUnresolved(ctx, period.Start, period.End)
	if err != nil {
		return nil, nil, fmt.Errorf("list unresolved trips: %w", err)
	}

	recovered := make(map[string][]*models.TripRecord)
	var warnings []sports.AggregationWarning
	for _, trip := range orphans {
		if !trip.Validated() {
			continue
		}
		if s.registry != nil && trip.DriverID != "" {
			enterpriseID, err := s.registry.EnterpriseForDriver(ctx, trip.DriverID)
			if err == nil && enterpriseID != "" {
				trip.EnterpriseID = enterpriseID
				recovered[enterpriseID] = append(recovered[enterpriseID], trip)
				continue
			}
		}
		s.logger.Warn("trip excluded: enterprise unresolved",
			ports.String("period_id", period.ID),
			ports.String("trip_id", trip.ID),
			ports.String("driver_id", trip.DriverID))
		warnings = append(warnings, sports.AggregationWarning{
			TripID:  trip.ID,
			Code:    domain.ErrorCodeEnterpriseUnresolved,
			Message: fmt.Sprintf("trip %s has no resolvable enterprise, excluded from aggregation", trip.ID),
		})
	}
	return recovered, warnings, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
