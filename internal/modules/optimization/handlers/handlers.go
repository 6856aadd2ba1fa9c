// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/modules/optimization"
)

// ReturnSource supplies aligned per-symbol return series for an optimization
// request, along with the annualization factor matching their frequency.
type ReturnSource interface {
	ReturnsForSymbols(ctx context.Context, symbols []string, currency domain.Currency, period string) (map[string][]float64, float64, error)
}

// Handler handles portfolio optimization HTTP requests
type Handler struct {
	service *optimization.Service
	returns ReturnSource
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(
	service *optimization.Service,
	returns ReturnSource,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service: service,
		returns: returns,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// OptimizeRequest represents a request to optimize a portfolio
type OptimizeRequest struct {
	Symbols  []string `json:"symbols"`
	Currency string   `json:"currency,omitempty"`
	Period   string   `json:"period,omitempty"`
}

// HandleOptimize handles POST /api/optimization/portfolio
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) < 2 {
		http.Error(w, "At least 2 symbols are required", http.StatusBadRequest)
		return
	}

	currency := domain.Currency(strings.ToUpper(req.Currency))
	if currency == "" {
		currency = domain.CurrencyUSD
	}
	period := req.Period
	if period == "" {
		period = "1Y"
	}

	returnsBySymbol, periodsPerYear, err := h.returns.ReturnsForSymbols(r.Context(), symbols, currency, period)
	if err != nil {
		h.log.Error().Err(err).Strs("symbols", symbols).Msg("Failed to build return series")
		http.Error(w, "Failed to fetch return data: "+err.Error(), http.StatusBadGateway)
		return
	}

	// Symbols with no usable data are dropped before optimization
	usable := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if len(returnsBySymbol[s]) >= 2 {
			usable = append(usable, s)
		}
	}
	if len(usable) < 2 {
		http.Error(w, "At least 2 symbols with price history are required", http.StatusUnprocessableEntity)
		return
	}

	result, err := h.service.Optimize(r.Context(), returnsBySymbol, usable, periodsPerYear, currency)
	if err != nil {
		h.log.Error().Err(err).Msg("Portfolio optimization failed")
		http.Error(w, "Optimization failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"symbols":   usable,
			"currency":  currency,
			"period":    period,
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
