package rates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
	sports "github.com/rideops/commission-service/internal/services/ports"
	"github.com/rideops/commission-service/pkg/timeutil"
)

var hundred = decimal.NewFromInt(100)

// Service implements ports.RateConfigService on top of the rate store
type Service struct {
	repo   ports.RateConfigRepository
	logger ports.Logger
}

// NewService creates a new rate service
func NewService(repo ports.RateConfigRepository, logger ports.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Resolve returns the rate percent authoritative for the enterprise on the
// given date. The latest active enterprise-specific override with
// EffectiveFrom <= date wins; otherwise the latest active global default;
// otherwise RATE_NOT_CONFIGURED.
func (s *Service) Resolve(ctx context.Context, enterpriseID string, date time.Time) (decimal.Decimal, error) {
	configs, err := s.repo.ListApplicable(ctx, nil, enterpriseID, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list rate configs: %w", err)
	}

	globals, specifics := splitByScope(configs)
	if cfg := latestAt(specifics, date); cfg != nil {
		return cfg.RatePercent, nil
	}
	if cfg := latestAt(globals, date); cfg != nil {
		return cfg.RatePercent, nil
	}

	return decimal.Zero, domain.ErrRateNotConfigured.
		WithDetail("enterprise_id", enterpriseID).
		WithDetail("date", date.Format("2006-01-02"))
}

// Segments partitions [start, end) at the enterprise's rate change points.
// Adjacent sub-ranges governed by the same rate and source are merged, so a
// global rate change that an enterprise override shadows does not produce a
// spurious boundary.
func (s *Service) Segments(ctx context.Context, enterpriseID string, start, end time.Time) ([]models.RateSegment, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("invalid range: start %v is not before end %v", start, end)
	}

	configs, err := s.repo.ListApplicable(ctx, nil, enterpriseID, end)
	if err != nil {
		return nil, fmt.Errorf("list rate configs: %w", err)
	}
	globals, specifics := splitByScope(configs)

	boundaries := changePoints(configs, start, end)

	var segments []models.RateSegment
	for i, segStart := range boundaries {
		segEnd := end
		if i+1 < len(boundaries) {
			segEnd = boundaries[i+1]
		}

		var rate decimal.Decimal
		var source models.RateSource
		if cfg := latestAt(specifics, segStart); cfg != nil {
			rate, source = cfg.RatePercent, models.RateSourceEnterprise
		} else if cfg := latestAt(globals, segStart); cfg != nil {
			rate, source = cfg.RatePercent, models.RateSourceGlobal
		} else {
			return nil, domain.ErrRateNotConfigured.
				WithDetail("enterprise_id", enterpriseID).
				WithDetail("date", segStart.Format("2006-01-02"))
		}

		if n := len(segments); n > 0 && segments[n-1].RatePercent.Equal(rate) && segments[n-1].Source == source {
			segments[n-1].End = segEnd
			continue
		}
		segments = append(segments, models.RateSegment{
			Start:       segStart,
			End:         segEnd,
			RatePercent: rate,
			Source:      source,
		})
	}
	return segments, nil
}

// CreateConfig registers a new global or enterprise-specific rate
func (s *Service) CreateConfig(ctx context.Context, req sports.CreateRateConfigRequest) (*models.CommissionRateConfig, error) {
	if req.RatePercent.IsNegative() || req.RatePercent.GreaterThan(hundred) {
		return nil, domain.ErrRateInvalid.WithDetail("rate_percent", req.RatePercent.String())
	}

	// Periods tile the timeline in whole days, so a rate boundary inside a
	// day would make segment day counts undercount the period.
	cfg := &models.CommissionRateConfig{
		ID:            uuid.New().String(),
		EnterpriseID:  req.EnterpriseID,
		RatePercent:   req.RatePercent,
		EffectiveFrom: timeutil.StartOfDay(req.EffectiveFrom),
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, nil, cfg); err != nil {
		return nil, fmt.Errorf("create rate config: %w", err)
	}

	s.logger.Info("rate config created",
		ports.String("config_id", cfg.ID),
		ports.String("enterprise_id", cfg.EnterpriseID),
		ports.String("rate_percent", cfg.RatePercent.String()),
		ports.Time("effective_from", cfg.EffectiveFrom))
	return cfg, nil
}

// DeactivateConfig retires a rate configuration
func (s *Service) DeactivateConfig(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, nil, id); err != nil {
		return fmt.Errorf("deactivate rate config: %w", err)
	}
	s.logger.Info("rate config deactivated", ports.String("config_id", id))
	return nil
}

func splitByScope(configs []*models.CommissionRateConfig) (globals, specifics []*models.CommissionRateConfig) {
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		if cfg.IsGlobal() {
			globals = append(globals, cfg)
		} else {
			specifics = append(specifics, cfg)
		}
	}
	return globals, specifics
}

// latestAt returns the config with the greatest EffectiveFrom <= at.
// Input must be sorted by EffectiveFrom ascending, which ListApplicable
// guarantees.
func latestAt(configs []*models.CommissionRateConfig, at time.Time) *models.CommissionRateConfig {
	var winner *models.CommissionRateConfig
	for _, cfg := range configs {
		if cfg.EffectiveFrom.After(at) {
			break
		}
		winner = cfg
	}
	return winner
}

// changePoints returns the sorted, de-duplicated segment boundaries for the
// range: the range start plus every EffectiveFrom strictly inside it
func changePoints(configs []*models.CommissionRateConfig, start, end time.Time) []time.Time {
	seen := map[time.Time]bool{start: true}
	points := []time.Time{start}
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		ef := cfg.EffectiveFrom
		if ef.After(start) && ef.Before(end) && !seen[ef] {
			seen[ef] = true
			points = append(points, ef)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })
	return points
}
