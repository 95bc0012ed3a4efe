package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/ports"
	"github.com/rideops/commission-service/pkg/resilience"
)

const paymentTrackerAttempts = 3

// PaymentTracker reads the settlement system's payment records. It is
// consulted only on the reopen path, so a transient failure retries with
// backoff instead of failing the request outright.
type PaymentTracker struct {
	pool    *pgxpool.Pool
	backoff resilience.BackoffStrategy
	logger  ports.Logger
}

// NewPaymentTracker creates a new payment tracker
func NewPaymentTracker(pool *pgxpool.Pool, logger ports.Logger) *PaymentTracker {
	return &PaymentTracker{
		pool:    pool,
		backoff: resilience.ExternalStoreBackoff(),
		logger:  logger,
	}
}

// HasPaidCommission reports whether any commission detail of the period has
// an associated paid payment record
func (t *PaymentTracker) HasPaidCommission(ctx context.Context, periodID string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < paymentTrackerAttempts; attempt++ {
		if attempt > 0 {
			delay := t.backoff.NextDelay(attempt - 1)
			t.logger.Warn("retrying payment tracker query",
				ports.String("period_id", periodID),
				ports.Int("attempt", attempt),
				ports.Duration("delay", delay),
				ports.Err(lastErr))
			select {
			case <-ctx.Done():
				return false, domain.WrapError(domain.ErrorCodeDatabaseError, "payment tracker query canceled", ctx.Err())
			case <-time.After(delay):
			}
		}

		paid, err := t.queryPaid(ctx, periodID)
		if err == nil {
			return paid, nil
		}
		lastErr = err
	}
	return false, domain.WrapError(domain.ErrorCodeDatabaseError, "check paid commissions", lastErr)
}

func (t *PaymentTracker) queryPaid(ctx context.Context, periodID string) (bool, error) {
	var paid bool
	err := t.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM payments p
			JOIN commission_details cd ON cd.id = p.commission_detail_id
			WHERE cd.period_id = $1 AND p.paid = TRUE
		)`, periodID).Scan(&paid)
	return paid, err
}
