package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/services/ports"
	"github.com/rideops/commission-service/pkg/timeutil"
)

// PeriodHandler exposes the billing period lifecycle to operators
type PeriodHandler struct {
	billingService ports.BillingService
	logger         *zap.Logger
}

// NewPeriodHandler creates a new admin period handler
func NewPeriodHandler(billingService ports.BillingService, logger *zap.Logger) *PeriodHandler {
	return &PeriodHandler{
		billingService: billingService,
		logger:         logger,
	}
}

// PeriodResponse is the JSON view of a billing period
type PeriodResponse struct {
	ID              string  `json:"id"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	Status          string  `json:"status"`
	TotalCommission string  `json:"total_commission"`
	TotalRevenue    string  `json:"total_revenue"`
	EnterpriseCount int32   `json:"enterprise_count"`
	Version         int32   `json:"version"`
	ClosedAt        *string `json:"closed_at,omitempty"`
	ReopenedAt      *string `json:"reopened_at,omitempty"`
}

// DetailResponse is the JSON view of a commission detail
type DetailResponse struct {
	ID                 string            `json:"id"`
	PeriodID           string            `json:"period_id"`
	EnterpriseID       string            `json:"enterprise_id"`
	TripCount          int32             `json:"trip_count"`
	GrossRevenue       string            `json:"gross_revenue"`
	BlendedRatePercent string            `json:"blended_rate_percent"`
	CommissionAmount   string            `json:"commission_amount"`
	GlobalRateDays     int32             `json:"global_rate_days"`
	SpecificRateDays   int32             `json:"specific_rate_days"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// AuditEntryResponse is the JSON view of one audit trail entry
type AuditEntryResponse struct {
	ID           string        `json:"id"`
	PeriodID     string        `json:"period_id"`
	Action       string        `json:"action"`
	Actor        string        `json:"actor"`
	BeforeTotals models.Totals `json:"before_totals"`
	AfterTotals  models.Totals `json:"after_totals"`
	OccurredAt   string        `json:"occurred_at"`
}

// ClosureResponse reports a closure or recompute outcome
type ClosureResponse struct {
	Period   PeriodResponse    `json:"period"`
	Details  []DetailResponse  `json:"details"`
	Warnings []WarningResponse `json:"warnings,omitempty"`
}

// WarningResponse is one enterprise-scoped aggregation warning
type WarningResponse struct {
	EnterpriseID string `json:"enterprise_id,omitempty"`
	TripID       string `json:"trip_id,omitempty"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// lifecycleRequest covers close, reopen, and recompute requests
type lifecycleRequest struct {
	PeriodID string `json:"period_id"`
	Actor    string `json:"actor"`
}

// CreatePeriodRequest describes a new billing period
type CreatePeriodRequest struct {
	Start string `json:"start"` // ISO date, e.g. "2026-01-01"
	End   string `json:"end"`   // ISO date, exclusive
}

// SettleRequest marks one enterprise's commission settled
type SettleRequest struct {
	PeriodID     string `json:"period_id"`
	EnterpriseID string `json:"enterprise_id"`
}

// Close handles POST /admin/periods/close
func (h *PeriodHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PeriodID == "" {
		h.respondError(w, http.StatusBadRequest, "period_id is required")
		return
	}

	result, err := h.billingService.ClosePeriod(r.Context(), req.PeriodID, req.Actor)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("Period closed by operator",
		zap.String("period_id", req.PeriodID),
		zap.String("actor", req.Actor),
	)

	h.respondJSON(w, http.StatusOK, closureResponse(result))
}

// Reopen handles POST /admin/periods/reopen
func (h *PeriodHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PeriodID == "" {
		h.respondError(w, http.StatusBadRequest, "period_id is required")
		return
	}

	period, err := h.billingService.ReopenPeriod(r.Context(), req.PeriodID, req.Actor)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("Period reopened by operator",
		zap.String("period_id", req.PeriodID),
		zap.String("actor", req.Actor),
	)

	h.respondJSON(w, http.StatusOK, periodResponse(period))
}

// Recompute handles POST /admin/periods/recompute
func (h *PeriodHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PeriodID == "" {
		h.respondError(w, http.StatusBadRequest, "period_id is required")
		return
	}

	result, err := h.billingService.RecomputePeriod(r.Context(), req.PeriodID, req.Actor)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("Period recomputed by operator",
		zap.String("period_id", req.PeriodID),
		zap.String("actor", req.Actor),
	)

	h.respondJSON(w, http.StatusOK, closureResponse(result))
}

// Create handles POST /admin/periods
func (h *PeriodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := timeutil.ParseDate(req.Start)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid start date: %v", err))
		return
	}
	end, err := timeutil.ParseDate(req.End)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid end date: %v", err))
		return
	}

	period, err := h.billingService.CreateNextPeriod(r.Context(), start, end)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, periodResponse(period))
}

// List handles GET /admin/periods
func (h *PeriodHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	periods, err := h.billingService.ListPeriods(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	out := make([]PeriodResponse, len(periods))
	for i, p := range periods {
		out[i] = periodResponse(p)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"periods": out})
}

// Details handles GET /admin/periods/{id}/details
func (h *PeriodHandler) Details(w http.ResponseWriter, r *http.Request) {
	periodID := r.PathValue("id")
	if periodID == "" {
		h.respondError(w, http.StatusBadRequest, "period id is required")
		return
	}

	details, err := h.billingService.ListDetails(r.Context(), periodID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	out := make([]DetailResponse, len(details))
	for i, d := range details {
		out[i] = detailResponse(d)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"details": out})
}

// AuditTrail handles GET /admin/periods/{id}/audit
func (h *PeriodHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	periodID := r.PathValue("id")
	if periodID == "" {
		h.respondError(w, http.StatusBadRequest, "period id is required")
		return
	}

	entries, err := h.billingService.ListAuditTrail(r.Context(), periodID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:           e.ID,
			PeriodID:     e.PeriodID,
			Action:       string(e.Action),
			Actor:        e.Actor,
			BeforeTotals: e.BeforeTotals,
			AfterTotals:  e.AfterTotals,
			OccurredAt:   e.OccurredAt.UTC().Format(time.RFC3339),
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": out})
}

// Settle handles POST /admin/commissions/settle
func (h *PeriodHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PeriodID == "" || req.EnterpriseID == "" {
		h.respondError(w, http.StatusBadRequest, "period_id and enterprise_id are required")
		return
	}

	if err := h.billingService.MarkSettled(r.Context(), req.PeriodID, req.EnterpriseID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("Commission marked settled",
		zap.String("period_id", req.PeriodID),
		zap.String("enterprise_id", req.EnterpriseID),
	)

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *PeriodHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *PeriodHandler) respondDomainError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		h.logger.Warn("Admin operation failed",
			zap.String("code", string(domainErr.Code)),
			zap.Error(err),
		)
		h.respondJSON(w, StatusForCode(domainErr.Code), map[string]interface{}{
			"success": false,
			"code":    string(domainErr.Code),
			"error":   domainErr.Message,
			"details": domainErr.Details,
		})
		return
	}

	h.logger.Error("Admin operation failed", zap.Error(err))
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

func periodResponse(p *models.BillingPeriod) PeriodResponse {
	resp := PeriodResponse{
		ID:              p.ID,
		Start:           p.Start.UTC().Format(time.RFC3339),
		End:             p.End.UTC().Format(time.RFC3339),
		Status:          string(p.Status),
		TotalCommission: p.TotalCommission.String(),
		TotalRevenue:    p.TotalRevenue.String(),
		EnterpriseCount: p.EnterpriseCount,
		Version:         p.Version,
	}
	if p.ClosedAt != nil {
		s := p.ClosedAt.UTC().Format(time.RFC3339)
		resp.ClosedAt = &s
	}
	if p.ReopenedAt != nil {
		s := p.ReopenedAt.UTC().Format(time.RFC3339)
		resp.ReopenedAt = &s
	}
	return resp
}

func detailResponse(d *models.CommissionDetail) DetailResponse {
	return DetailResponse{
		ID:                 d.ID,
		PeriodID:           d.PeriodID,
		EnterpriseID:       d.EnterpriseID,
		TripCount:          d.TripCount,
		GrossRevenue:       d.GrossRevenue.String(),
		BlendedRatePercent: d.BlendedRatePercent.String(),
		CommissionAmount:   d.CommissionAmount.String(),
		GlobalRateDays:     d.GlobalRateDays,
		SpecificRateDays:   d.SpecificRateDays,
		Status:             string(d.Status),
		Metadata:           d.Metadata,
	}
}

func closureResponse(result *ports.ClosureResult) ClosureResponse {
	details := make([]DetailResponse, len(result.Details))
	for i, d := range result.Details {
		details[i] = detailResponse(d)
	}
	var warnings []WarningResponse
	for _, warn := range result.Warnings {
		warnings = append(warnings, WarningResponse{
			EnterpriseID: warn.EnterpriseID,
			TripID:       warn.TripID,
			Code:         string(warn.Code),
			Message:      warn.Message,
		})
	}
	return ClosureResponse{
		Period:   periodResponse(result.Period),
		Details:  details,
		Warnings: warnings,
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}

// StatusForCode maps domain error codes to HTTP status codes
func StatusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodePeriodNotFound, domain.ErrorCodeCommissionNotFound:
		return http.StatusNotFound
	case domain.ErrorCodePeriodNotOpen, domain.ErrorCodePeriodNotClosed,
		domain.ErrorCodePeriodHasSettled, domain.ErrorCodePeriodNotContiguous,
		domain.ErrorCodeNoOpenPeriod, domain.ErrorCodeConcurrentClosure:
		return http.StatusConflict
	case domain.ErrorCodeRateNotConfigured, domain.ErrorCodeRateInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
