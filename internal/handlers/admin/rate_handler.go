package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/services/ports"
	"github.com/rideops/commission-service/pkg/timeutil"
)

// RateHandler manages commission rate configurations
type RateHandler struct {
	rateService ports.RateConfigService
	logger      *zap.Logger
}

// NewRateHandler creates a new rate config handler
func NewRateHandler(rateService ports.RateConfigService, logger *zap.Logger) *RateHandler {
	return &RateHandler{
		rateService: rateService,
		logger:      logger,
	}
}

// CreateRateRequest describes a new rate configuration
type CreateRateRequest struct {
	EnterpriseID  string `json:"enterprise_id"` // empty for the global default
	RatePercent   string `json:"rate_percent"`
	EffectiveFrom string `json:"effective_from"` // ISO date
}

// RateConfigResponse is the JSON view of a rate configuration
type RateConfigResponse struct {
	ID            string `json:"id"`
	EnterpriseID  string `json:"enterprise_id,omitempty"`
	RatePercent   string `json:"rate_percent"`
	EffectiveFrom string `json:"effective_from"`
	Source        string `json:"source"`
	Active        bool   `json:"active"`
}

// Create handles POST /admin/rates
func (h *RateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	rate, err := decimal.NewFromString(req.RatePercent)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid rate_percent: %v", err))
		return
	}
	effectiveFrom, err := timeutil.ParseDate(req.EffectiveFrom)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid effective_from: %v", err))
		return
	}

	cfg, err := h.rateService.CreateConfig(r.Context(), ports.CreateRateConfigRequest{
		EnterpriseID:  req.EnterpriseID,
		RatePercent:   rate,
		EffectiveFrom: effectiveFrom,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("Rate config created",
		zap.String("id", cfg.ID),
		zap.String("enterprise_id", cfg.EnterpriseID),
		zap.String("rate_percent", cfg.RatePercent.String()),
	)

	h.respondJSON(w, http.StatusCreated, RateConfigResponse{
		ID:            cfg.ID,
		EnterpriseID:  cfg.EnterpriseID,
		RatePercent:   cfg.RatePercent.String(),
		EffectiveFrom: cfg.EffectiveFrom.UTC().Format(time.RFC3339),
		Source:        string(cfg.Source()),
		Active:        cfg.Active,
	})
}

// Deactivate handles DELETE /admin/rates/{id}
func (h *RateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "rate config id is required")
		return
	}

	if err := h.rateService.DeactivateConfig(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("Rate config deactivated", zap.String("id", id))

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *RateHandler) respondDomainError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		h.logger.Warn("Rate operation failed",
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

	h.logger.Error("Rate operation failed", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal error")
}

func (h *RateHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func (h *RateHandler) respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
