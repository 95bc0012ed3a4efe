package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
)

const tripColumns = `t.id, t.driver_id, COALESCE(d.enterprise_id, ''), t.gross_amount,
	       COALESCE(t.validation_code, ''), t.validated_at, t.completed_at,
	       t.created_at, t.updated_at`

// A validated trip carries both a validation code and a validation timestamp.
const validatedPredicate = `t.validation_code IS NOT NULL
	  AND t.validation_code <> ''
	  AND t.validated_at IS NOT NULL`

// TripStore reads the trip tables owned by the reservation system. Every
// query joins drivers to resolve the enterprise linkage, so callers receive
// a normalized view and an empty enterprise ID marks a broken linkage.
type TripStore struct {
	pool *pgxpool.Pool
}

// NewTripStore creates a new trip store
func NewTripStore(pool *pgxpool.Pool) *TripStore {
	return &TripStore{pool: pool}
}

// ListEnterprises returns distinct enterprises with at least one validated
// trip created in [start, end)
func (s *TripStore) ListEnterprises(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT d.enterprise_id
		FROM trips t
		JOIN drivers d ON d.id = t.driver_id
		WHERE d.enterprise_id IS NOT NULL
		  AND t.created_at >= $1 AND t.created_at < $2
		  AND `+validatedPredicate+`
		ORDER BY d.enterprise_id`, start, end)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list trip enterprises", err)
	}
	defer rows.Close()

	var enterprises []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan enterprise id", err)
		}
		enterprises = append(enterprises, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate trip enterprises", err)
	}
	return enterprises, nil
}

// ListValidatedByEnterprise returns validated trips for one enterprise
// created in [start, end)
func (s *TripStore) ListValidatedByEnterprise(ctx context.Context, enterpriseID string, start, end time.Time) ([]*models.TripRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips t
		JOIN drivers d ON d.id = t.driver_id
		WHERE d.enterprise_id = $1
		  AND t.created_at >= $2 AND t.created_at < $3
		  AND `+validatedPredicate+`
		ORDER BY t.created_at`, enterpriseID, start, end)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list validated trips", err)
	}
	defer rows.Close()
	return scanTrips(rows)
}

// ListUnresolved returns validated trips in [start, end) whose driver has no
// enterprise linkage
func (s *TripStore) ListUnresolved(ctx context.Context, start, end time.Time) ([]*models.TripRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips t
		LEFT JOIN drivers d ON d.id = t.driver_id
		WHERE (d.id IS NULL OR d.enterprise_id IS NULL)
		  AND t.created_at >= $1 AND t.created_at < $2
		  AND `+validatedPredicate+`
		ORDER BY t.created_at`, start, end)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list unresolved trips", err)
	}
	defer rows.Close()
	return scanTrips(rows)
}

// ListEditedAfter returns trips created in [start, end) edited after closedAt
func (s *TripStore) ListEditedAfter(ctx context.Context, start, end, closedAt time.Time) ([]*models.TripRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips t
		LEFT JOIN drivers d ON d.id = t.driver_id
		WHERE t.created_at >= $1 AND t.created_at < $2
		  AND t.updated_at > $3
		ORDER BY t.updated_at`, start, end, closedAt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list edited trips", err)
	}
	defer rows.Close()
	return scanTrips(rows)
}

func scanTrips(rows pgx.Rows) ([]*models.TripRecord, error) {
	var trips []*models.TripRecord
	for rows.Next() {
		var (
			t           models.TripRecord
			gross       pgtype.Numeric
			validatedAt pgtype.Timestamptz
		)
		err := rows.Scan(
			&t.ID, &t.DriverID, &t.EnterpriseID, &gross,
			&t.ValidationCode, &validatedAt, &t.CompletedAt,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan trip", err)
		}
		if t.GrossAmount, err = numericToDecimal(gross); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, fmt.Sprintf("trip %s gross_amount", t.ID), err)
		}
		t.ValidatedAt = timePtr(validatedAt)
		trips = append(trips, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate trips", err)
	}
	return trips, nil
}

// EnterpriseRegistry resolves drivers to their enterprise directly from the
// drivers table. The aggregator falls back to it for trips the normalized
// view could not resolve.
type EnterpriseRegistry struct {
	pool *pgxpool.Pool
}

// NewEnterpriseRegistry creates a new enterprise registry
func NewEnterpriseRegistry(pool *pgxpool.Pool) *EnterpriseRegistry {
	return &EnterpriseRegistry{pool: pool}
}

// EnterpriseForDriver returns the enterprise a driver belongs to, or an empty
// string when the driver exists without a linkage
func (r *EnterpriseRegistry) EnterpriseForDriver(ctx context.Context, driverID string) (string, error) {
	var enterpriseID pgtype.Text
	err := r.pool.QueryRow(ctx, `
		SELECT enterprise_id
		FROM drivers
		WHERE id = $1`, driverID).Scan(&enterpriseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrorCodeDatabaseError, "resolve driver enterprise", err)
	}
	if !enterpriseID.Valid {
		return "", nil
	}
	return enterpriseID.String, nil
}
