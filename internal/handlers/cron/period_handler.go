package cron

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/services/ports"
)

// PeriodHandler handles cron job endpoints for the billing period lifecycle
type PeriodHandler struct {
	billingService ports.BillingService
	logger         *zap.Logger
	cronSecret     string // Secret token for authenticating cron requests
	defaultActor   string
}

// NewPeriodHandler creates a new period cron handler
func NewPeriodHandler(
	billingService ports.BillingService,
	logger *zap.Logger,
	cronSecret string,
	defaultActor string,
) *PeriodHandler {
	return &PeriodHandler{
		billingService: billingService,
		logger:         logger,
		cronSecret:     cronSecret,
		defaultActor:   defaultActor,
	}
}

// ClosePeriodRequest represents the request body for the scheduled closure
type ClosePeriodRequest struct {
	PeriodID *string `json:"period_id"` // Optional: defaults to the open period
	Actor    *string `json:"actor"`     // Optional: defaults to the configured actor
}

// ClosePeriodResponse represents the response from a closure run
type ClosePeriodResponse struct {
	Success         bool              `json:"success"`
	PeriodID        string            `json:"period_id,omitempty"`
	Enterprises     int               `json:"enterprises"`
	TotalCommission string            `json:"total_commission,omitempty"`
	TotalRevenue    string            `json:"total_revenue,omitempty"`
	Warnings        []WarningResponse `json:"warnings,omitempty"`
	ProcessedAt     string            `json:"processed_at"`
}

// WarningResponse is one enterprise-scoped aggregation warning
type WarningResponse struct {
	EnterpriseID string `json:"enterprise_id,omitempty"`
	TripID       string `json:"trip_id,omitempty"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// ClosePeriod handles the POST /cron/close-period endpoint.
// Called by the scheduler at the end of each billing period.
func (h *PeriodHandler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Period closure cron job triggered",
		zap.String("method", r.Method),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ClosePeriodRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("Failed to parse request body",
				zap.Error(err),
			)
			// Continue with defaults if parsing fails
		}
	}

	actor := h.defaultActor
	if req.Actor != nil && *req.Actor != "" {
		actor = *req.Actor
	}

	var (
		result *ports.ClosureResult
		err    error
	)
	if req.PeriodID != nil && *req.PeriodID != "" {
		result, err = h.billingService.ClosePeriod(r.Context(), *req.PeriodID, actor)
	} else {
		result, err = h.billingService.CloseCurrentPeriod(r.Context(), actor)
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	resp := ClosePeriodResponse{
		Success:         true,
		PeriodID:        result.Period.ID,
		Enterprises:     len(result.Details),
		TotalCommission: result.Period.TotalCommission.String(),
		TotalRevenue:    result.Period.TotalRevenue.String(),
		Warnings:        warningResponses(result.Warnings),
		ProcessedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Info("Period closure completed",
		zap.String("period_id", result.Period.ID),
		zap.Int("enterprises", len(result.Details)),
		zap.Int("warnings", len(result.Warnings)),
	)

	h.respondJSON(w, http.StatusOK, resp)
}

// SweepStaleResponse reports closed periods flagged for recomputation
type SweepStaleResponse struct {
	Success      bool                `json:"success"`
	StalePeriods []ports.StalePeriod `json:"stale_periods"`
	ProcessedAt  string              `json:"processed_at"`
}

// SweepStalePeriods handles the POST /cron/sweep-stale endpoint.
// Flags closed periods whose trips were edited after closure.
func (h *PeriodHandler) SweepStalePeriods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stale, err := h.billingService.DetectStalePeriods(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("Stale period sweep completed",
		zap.Int("stale_periods", len(stale)),
	)

	h.respondJSON(w, http.StatusOK, SweepStaleResponse{
		Success:      true,
		StalePeriods: stale,
		ProcessedAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheck handles GET /cron/health for monitoring
func (h *PeriodHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// authenticateRequest verifies the cron request is authorized
func (h *PeriodHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}

	// Check X-Cron-Secret header
	cronSecret := r.Header.Get("X-Cron-Secret")
	if cronSecret != "" && cronSecret == h.cronSecret {
		return true
	}

	// Check Authorization header (Bearer token)
	authHeader := r.Header.Get("Authorization")
	if authHeader == "Bearer "+h.cronSecret {
		return true
	}

	// Check query parameter (less secure, for development only)
	querySecret := r.URL.Query().Get("secret")
	if querySecret != "" && querySecret == h.cronSecret {
		h.logger.Warn("Using query parameter authentication (insecure)",
			zap.String("remote_addr", r.RemoteAddr),
		)
		return true
	}

	return false
}

func (h *PeriodHandler) respondDomainError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		h.logger.Warn("Cron operation failed",
			zap.String("code", string(domainErr.Code)),
			zap.Error(err),
		)
		h.respondError(w, statusForCode(domainErr.Code), fmt.Sprintf("%s: %s", domainErr.Code, domainErr.Message))
		return
	}

	h.logger.Error("Cron operation failed", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal error")
}

func (h *PeriodHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func (h *PeriodHandler) respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func warningResponses(warnings []ports.AggregationWarning) []WarningResponse {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]WarningResponse, len(warnings))
	for i, warn := range warnings {
		out[i] = WarningResponse{
			EnterpriseID: warn.EnterpriseID,
			TripID:       warn.TripID,
			Code:         string(warn.Code),
			Message:      warn.Message,
		}
	}
	return out
}

// statusForCode maps domain error codes to HTTP status codes
func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodePeriodNotFound, domain.ErrorCodeCommissionNotFound:
		return http.StatusNotFound
	case domain.ErrorCodePeriodNotOpen, domain.ErrorCodePeriodNotClosed,
		domain.ErrorCodePeriodHasSettled, domain.ErrorCodePeriodNotContiguous,
		domain.ErrorCodeNoOpenPeriod:
		return http.StatusConflict
	case domain.ErrorCodeConcurrentClosure:
		return http.StatusConflict
	case domain.ErrorCodeRateNotConfigured, domain.ErrorCodeRateInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
