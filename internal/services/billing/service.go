package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
	sports "github.com/rideops/commission-service/internal/services/ports"
	"github.com/rideops/commission-service/pkg/observability"
	"github.com/rideops/commission-service/pkg/resilience"
)

// Service implements sports.BillingService. It is the only writer of
// BillingPeriod and CommissionDetail rows: every closure, reopen, and
// recompute stages its writes inside one transaction guarded by the
// period's optimistic version, so no caller ever observes a half-closed
// period.
type Service struct {
	db          ports.DBPort
	periods     ports.PeriodRepository
	commissions ports.CommissionRepository
	audits      ports.AuditRepository
	aggregator  sports.Aggregator
	payments    ports.PaymentTracker
	trips       ports.TripStore
	logger      ports.Logger
	timeouts    *resilience.TimeoutConfig
}

// NewService creates a new billing service
func NewService(
	db ports.DBPort,
	periods ports.PeriodRepository,
	commissions ports.CommissionRepository,
	audits ports.AuditRepository,
	aggregator sports.Aggregator,
	payments ports.PaymentTracker,
	trips ports.TripStore,
	logger ports.Logger,
	timeouts *resilience.TimeoutConfig,
) *Service {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Service{
		db:          db,
		periods:     periods,
		commissions: commissions,
		audits:      audits,
		aggregator:  aggregator,
		payments:    payments,
		trips:       trips,
		logger:      logger,
		timeouts:    timeouts,
	}
}

// ClosePeriod freezes an open period: aggregates validated trips, persists
// one commission detail per enterprise, writes period totals, transitions
// Open -> Closed, and appends an audit entry. All writes commit as one unit.
func (s *Service) ClosePeriod(ctx context.Context, periodID, actor string) (*sports.ClosureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Closure)
	defer cancel()
	start := time.Now()

	period, err := s.loadPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateClose(period); err != nil {
		return nil, err
	}

	// Aggregation reads the external trip store and must not hold a
	// database transaction open; all writes are deferred to the commit
	// step below, so a failure or cancellation here leaves no trace.
	aggCtx, aggCancel := context.WithTimeout(ctx, s.timeouts.Aggregation)
	defer aggCancel()
	agg, err := s.aggregator.Aggregate(aggCtx, period)
	if err != nil {
		observability.RecordPeriodClosure("aggregation_failed", 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("aggregate period %s: %w", periodID, err)
	}

	before := period.Snapshot()
	details := sortedDetails(agg.Details)
	totals := sumTotals(details)
	now := time.Now().UTC()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, detail := range details {
			detail.CreatedAt = now
			detail.UpdatedAt = now
			if err := s.commissions.Upsert(ctx, tx, detail); err != nil {
				return fmt.Errorf("upsert commission detail %s/%s: %w", detail.PeriodID, detail.EnterpriseID, err)
			}
		}

		period.Status = models.PeriodClosed
		period.ClosedAt = &now
		period.TotalCommission = totals.Commission
		period.TotalRevenue = totals.Revenue
		period.EnterpriseCount = totals.Enterprises

		ok, err := s.periods.UpdateStatus(ctx, tx, period, period.Version)
		if err != nil {
			return fmt.Errorf("update period status: %w", err)
		}
		if !ok {
			return domain.ErrConcurrentClosure.WithDetail("period_id", period.ID)
		}
		period.Version++

		return s.audits.Append(ctx, tx, auditEntry(period.ID, models.AuditClosed, actor, before, totals, now))
	})
	if err != nil {
		observability.RecordPeriodClosure("failed", 0, time.Since(start).Seconds())
		return nil, err
	}

	observability.RecordPeriodClosure("closed", totals.Commission.InexactFloat64(), time.Since(start).Seconds())
	s.logger.Info("period closed",
		ports.String("period_id", period.ID),
		ports.String("actor", actor),
		ports.String("total_commission", totals.Commission.String()),
		ports.String("total_revenue", totals.Revenue.String()),
		ports.Int32("enterprises", totals.Enterprises),
		ports.Int("warnings", len(agg.Warnings)),
		ports.Duration("elapsed", time.Since(start)))

	return &sports.ClosureResult{
		Period:   period,
		Details:  details,
		Warnings: agg.Warnings,
	}, nil
}

// CloseCurrentPeriod closes whichever period is currently open
func (s *Service) CloseCurrentPeriod(ctx context.Context, actor string) (*sports.ClosureResult, error) {
	period, err := s.periods.GetOpen(ctx, nil)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, domain.ErrNoOpenPeriod
	}
	return s.ClosePeriod(ctx, period.ID, actor)
}

// ReopenPeriod reverses a closure: deletes the period's commission details,
// zeroes its totals, and transitions Closed -> Open. Refused once any
// detail has settled or carries a paid payment record.
func (s *Service) ReopenPeriod(ctx context.Context, periodID, actor string) (*models.BillingPeriod, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Closure)
	defer cancel()

	period, err := s.loadPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	settled, err := s.hasSettled(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateReopen(period, settled); err != nil {
		return nil, err
	}

	before := period.Snapshot()
	now := time.Now().UTC()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// A settle may have committed since the pool read above; re-check
		// against the transaction before any detail row is destroyed.
		settled, err := s.commissions.HasSettled(ctx, tx, periodID)
		if err != nil {
			return fmt.Errorf("check settled details: %w", err)
		}
		if settled {
			return domain.ErrPeriodHasSettled.WithDetail("period_id", periodID)
		}
		if err := s.commissions.DeleteByPeriod(ctx, tx, periodID); err != nil {
			return fmt.Errorf("delete commission details: %w", err)
		}

		period.Status = models.PeriodOpen
		period.ReopenedAt = &now
		period.TotalCommission = decimal.Zero
		period.TotalRevenue = decimal.Zero
		period.EnterpriseCount = 0

		ok, err := s.periods.UpdateStatus(ctx, tx, period, period.Version)
		if err != nil {
			return fmt.Errorf("update period status: %w", err)
		}
		if !ok {
			return domain.ErrConcurrentClosure.WithDetail("period_id", period.ID)
		}
		period.Version++

		return s.audits.Append(ctx, tx, auditEntry(period.ID, models.AuditReopened, actor, before, models.ZeroTotals(), now))
	})
	if err != nil {
		return nil, err
	}

	observability.RecordPeriodReopen()
	s.logger.Info("period reopened",
		ports.String("period_id", period.ID),
		ports.String("actor", actor))
	return period, nil
}

// RecomputePeriod regenerates a closed period's commission details in place.
// Unlike a reopen/close cycle there is no window in which the period is
// observable as open. Subject to the same settlement guard as reopen.
func (s *Service) RecomputePeriod(ctx context.Context, periodID, actor string) (*sports.ClosureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Closure)
	defer cancel()
	start := time.Now()

	period, err := s.loadPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	settled, err := s.hasSettled(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateReopen(period, settled); err != nil {
		return nil, err
	}

	aggCtx, aggCancel := context.WithTimeout(ctx, s.timeouts.Aggregation)
	defer aggCancel()
	agg, err := s.aggregator.Aggregate(aggCtx, period)
	if err != nil {
		return nil, fmt.Errorf("aggregate period %s: %w", periodID, err)
	}

	before := period.Snapshot()
	details := sortedDetails(agg.Details)
	totals := sumTotals(details)
	now := time.Now().UTC()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		settled, err := s.commissions.HasSettled(ctx, tx, periodID)
		if err != nil {
			return fmt.Errorf("check settled details: %w", err)
		}
		if settled {
			return domain.ErrPeriodHasSettled.WithDetail("period_id", periodID)
		}
		if err := s.commissions.DeleteByPeriod(ctx, tx, periodID); err != nil {
			return fmt.Errorf("delete commission details: %w", err)
		}
		for _, detail := range details {
			detail.CreatedAt = now
			detail.UpdatedAt = now
			if err := s.commissions.Upsert(ctx, tx, detail); err != nil {
				return fmt.Errorf("upsert commission detail %s/%s: %w", detail.PeriodID, detail.EnterpriseID, err)
			}
		}

		period.TotalCommission = totals.Commission
		period.TotalRevenue = totals.Revenue
		period.EnterpriseCount = totals.Enterprises

		ok, err := s.periods.UpdateStatus(ctx, tx, period, period.Version)
		if err != nil {
			return fmt.Errorf("update period status: %w", err)
		}
		if !ok {
			return domain.ErrConcurrentClosure.WithDetail("period_id", period.ID)
		}
		period.Version++

		return s.audits.Append(ctx, tx, auditEntry(period.ID, models.AuditRecomputed, actor, before, totals, now))
	})
	if err != nil {
		return nil, err
	}

	observability.RecordPeriodClosure("recomputed", totals.Commission.InexactFloat64(), time.Since(start).Seconds())
	s.logger.Info("period recomputed",
		ports.String("period_id", period.ID),
		ports.String("actor", actor),
		ports.String("total_commission", totals.Commission.String()))

	return &sports.ClosureResult{
		Period:   period,
		Details:  details,
		Warnings: agg.Warnings,
	}, nil
}

// CreateNextPeriod appends a new open period. The new range must start
// exactly where the latest period ends, and the latest period must already
// be closed; periods tile the timeline with no gaps or overlaps.
func (s *Service) CreateNextPeriod(ctx context.Context, start, end time.Time) (*models.BillingPeriod, error) {
	start, end = start.UTC(), end.UTC()
	latest, err := s.periods.GetLatest(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateNextPeriod(latest, start, end); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	period := &models.BillingPeriod{
		ID:              uuid.New().String(),
		Start:           start,
		End:             end,
		Status:          models.PeriodOpen,
		TotalCommission: decimal.Zero,
		TotalRevenue:    decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.periods.Create(ctx, nil, period); err != nil {
		return nil, fmt.Errorf("create period: %w", err)
	}

	s.logger.Info("period created",
		ports.String("period_id", period.ID),
		ports.Time("start", start),
		ports.Time("end", end))
	return period, nil
}

// ListPeriods returns periods ordered by start date descending
func (s *Service) ListPeriods(ctx context.Context, limit, offset int32) ([]*models.BillingPeriod, error) {
	return s.periods.List(ctx, nil, limit, offset)
}

// ListDetails returns the commission details of a period
func (s *Service) ListDetails(ctx context.Context, periodID string) ([]*models.CommissionDetail, error) {
	if _, err := s.loadPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.commissions.ListByPeriod(ctx, nil, periodID)
}

// ListAuditTrail returns the append-only audit history of a period
func (s *Service) ListAuditTrail(ctx context.Context, periodID string) ([]*models.PeriodAuditEntry, error) {
	if _, err := s.loadPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.audits.ListByPeriod(ctx, nil, periodID)
}

// MarkSettled transitions a commission detail Computed -> Settled once the
// settlement tracker reports payment. The owning period can no longer be
// reopened afterwards. The settle takes the period's optimistic lock: a
// reopen or recompute racing it reads a stale version and loses its
// conditional update instead of deleting the settled row.
func (s *Service) MarkSettled(ctx context.Context, periodID, enterpriseID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Closure)
	defer cancel()

	var (
		detail  *models.CommissionDetail
		settled bool
	)
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		period, err := s.periods.GetByID(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if period == nil {
			return domain.ErrPeriodNotFound.WithDetail("period_id", periodID)
		}

		detail, err = s.commissions.GetByPeriodAndEnterprise(ctx, tx, periodID, enterpriseID)
		if err != nil {
			return err
		}
		if detail == nil {
			return domain.ErrCommissionNotFound.
				WithDetail("period_id", periodID).
				WithDetail("enterprise_id", enterpriseID)
		}
		if detail.Status == models.CommissionSettled {
			return nil
		}
		if err := s.commissions.UpdateStatus(ctx, tx, detail.ID, models.CommissionSettled); err != nil {
			return fmt.Errorf("mark commission settled: %w", err)
		}

		ok, err := s.periods.BumpVersion(ctx, tx, periodID, period.Version)
		if err != nil {
			return fmt.Errorf("bump period version: %w", err)
		}
		if !ok {
			return domain.ErrConcurrentClosure.WithDetail("period_id", periodID)
		}
		settled = true
		return nil
	})
	if err != nil {
		return err
	}
	if !settled {
		return nil
	}

	s.logger.Info("commission settled",
		ports.String("period_id", periodID),
		ports.String("enterprise_id", enterpriseID),
		ports.String("amount", detail.CommissionAmount.String()))
	return nil
}

// DetectStalePeriods scans closed periods for trips edited after closure.
// Affected periods keep their details but get flagged recompute-recommended
// so an operator can reopen or recompute them deliberately.
func (s *Service) DetectStalePeriods(ctx context.Context) ([]sports.StalePeriod, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Closure)
	defer cancel()

	closed, err := s.periods.ListClosed(ctx, nil)
	if err != nil {
		return nil, err
	}

	var stale []sports.StalePeriod
	for _, period := range closed {
		if period.ClosedAt == nil {
			continue
		}
		edited, err := s.trips.ListEditedAfter(ctx, period.Start, period.End, *period.ClosedAt)
		if err != nil {
			return nil, fmt.Errorf("scan edited trips for period %s: %w", period.ID, err)
		}
		if len(edited) == 0 {
			continue
		}

		tripIDs := make([]string, 0, len(edited))
		for _, trip := range edited {
			tripIDs = append(tripIDs, trip.ID)
		}
		if err := s.commissions.SetMetadataFlag(ctx, nil, period.ID, models.MetaRecomputeRecommended, "true"); err != nil {
			return nil, fmt.Errorf("flag stale period %s: %w", period.ID, err)
		}

		s.logger.Warn("period has trips edited after closure",
			ports.String("period_id", period.ID),
			ports.Time("closed_at", *period.ClosedAt),
			ports.Int("edited_trips", len(tripIDs)))
		stale = append(stale, sports.StalePeriod{
			PeriodID:    period.ID,
			ClosedAt:    *period.ClosedAt,
			EditedTrips: tripIDs,
		})
	}

	observability.UpdateStalePeriods(len(stale))
	return stale, nil
}

func (s *Service) loadPeriod(ctx context.Context, periodID string) (*models.BillingPeriod, error) {
	period, err := s.periods.GetByID(ctx, nil, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, domain.ErrPeriodNotFound.WithDetail("period_id", periodID)
	}
	return period, nil
}

// hasSettled consults both the local detail status and the external
// settlement tracker; either one blocks a reopen
func (s *Service) hasSettled(ctx context.Context, periodID string) (bool, error) {
	settled, err := s.commissions.HasSettled(ctx, nil, periodID)
	if err != nil {
		return false, fmt.Errorf("check settled details: %w", err)
	}
	if settled {
		return true, nil
	}
	if s.payments == nil {
		return false, nil
	}
	payCtx, cancel := context.WithTimeout(ctx, s.timeouts.ExternalStore)
	defer cancel()
	paid, err := s.payments.HasPaidCommission(payCtx, periodID)
	if err != nil {
		return false, fmt.Errorf("check payment tracker: %w", err)
	}
	return paid, nil
}

// sortedDetails orders drafts by enterprise for deterministic persistence
func sortedDetails(byEnterprise map[string]*models.CommissionDetail) []*models.CommissionDetail {
	details := make([]*models.CommissionDetail, 0, len(byEnterprise))
	for _, d := range byEnterprise {
		details = append(details, d)
	}
	sort.Slice(details, func(i, j int) bool { return details[i].EnterpriseID < details[j].EnterpriseID })
	return details
}

func sumTotals(details []*models.CommissionDetail) models.Totals {
	totals := models.ZeroTotals()
	for _, d := range details {
		totals.Commission = totals.Commission.Add(d.CommissionAmount)
		totals.Revenue = totals.Revenue.Add(d.GrossRevenue)
	}
	totals.Enterprises = int32(len(details))
	return totals
}

func auditEntry(periodID string, action models.AuditAction, actor string, before, after models.Totals, at time.Time) *models.PeriodAuditEntry {
	return &models.PeriodAuditEntry{
		ID:           uuid.New().String(),
		PeriodID:     periodID,
		Action:       action,
		Actor:        actor,
		BeforeTotals: before,
		AfterTotals:  after,
		OccurredAt:   at,
	}
}
