// Package handlers provides HTTP handlers for asset comparison.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/modules/comparison"
)

// Handler handles comparison HTTP requests
type Handler struct {
	service *comparison.Service
	log     zerolog.Logger
}

// NewHandler creates a new comparison handler
func NewHandler(service *comparison.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "comparison").Logger(),
	}
}

// CompareRequest represents a request to compare assets
type CompareRequest struct {
	Symbols      []string `json:"symbols"`
	BaseCurrency string   `json:"base_currency,omitempty"`
	Period       string   `json:"period,omitempty"`
	Mode         string   `json:"mode,omitempty"`
}

// HandleCompare handles POST /api/comparison/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Symbols) == 0 {
		http.Error(w, "At least 1 symbol is required", http.StatusBadRequest)
		return
	}

	serviceReq := comparison.Request{
		Symbols:      req.Symbols,
		BaseCurrency: domain.Currency(req.BaseCurrency),
	}
	if req.Period != "" {
		period, ok := domain.ParsePeriodPreset(req.Period)
		if !ok {
			http.Error(w, "Unknown period preset: "+req.Period, http.StatusBadRequest)
			return
		}
		serviceReq.Period = period
	}
	if req.Mode != "" {
		mode, ok := domain.ParseNormalizeMode(req.Mode)
		if !ok {
			http.Error(w, "Unknown normalize mode: "+req.Mode, http.StatusBadRequest)
			return
		}
		serviceReq.Mode = mode
	}

	result, err := h.service.Compare(r.Context(), serviceReq)
	if err != nil {
		h.log.Error().Err(err).Strs("symbols", req.Symbols).Msg("Comparison failed")
		http.Error(w, "Comparison failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"request_id": result.RequestID,
			"timestamp":  time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandlePeriods handles GET /api/comparison/periods
func (h *Handler) HandlePeriods(w http.ResponseWriter, r *http.Request) {
	periods := []map[string]interface{}{
		{"preset": domain.PeriodOneMonth, "granularity": domain.GranularityDaily},
		{"preset": domain.PeriodThreeMonths, "granularity": domain.GranularityDaily},
		{"preset": domain.PeriodSixMonths, "granularity": domain.GranularityDaily},
		{"preset": domain.PeriodYearToDate, "granularity": domain.GranularityWeekly},
		{"preset": domain.PeriodOneYear, "granularity": domain.GranularityWeekly},
		{"preset": domain.PeriodThreeYears, "granularity": domain.GranularityWeekly},
		{"preset": domain.PeriodFiveYears, "granularity": domain.GranularityMonthly},
		{"preset": domain.PeriodTenYears, "granularity": domain.GranularityMonthly},
		{"preset": domain.PeriodMax, "granularity": domain.GranularityMonthly},
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"periods": periods,
			"modes":   []domain.NormalizeMode{domain.NormalizeIndex100, domain.NormalizePercentChange},
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
