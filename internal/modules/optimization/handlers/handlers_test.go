package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/modules/optimization"
)

type fakeReturnSource struct {
	returns map[string][]float64
	ppy     float64
	err     error
}

func (f *fakeReturnSource) ReturnsForSymbols(_ context.Context, _ []string, _ domain.Currency, _ string) (map[string][]float64, float64, error) {
	return f.returns, f.ppy, f.err
}

type staticRiskFree struct{}

func (staticRiskFree) RiskFreeRate(_ context.Context, _ domain.Currency, _ time.Time) (float64, error) {
	return 0.03, nil
}

func setupTestHandler(source *fakeReturnSource) *Handler {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	optimizer := optimization.NewOptimizer(logger)
	service := optimization.NewService(optimizer, staticRiskFree{}, logger)
	return NewHandler(service, source, logger)
}

func TestHandleOptimize(t *testing.T) {
	source := &fakeReturnSource{
		returns: map[string][]float64{
			"AAA": {0.01, -0.005, 0.008, 0.002, 0.004, -0.001, 0.006, 0.003},
			"BBB": {0.02, -0.03, 0.025, -0.01, 0.015, 0.005, -0.02, 0.03},
		},
		ppy: 252,
	}
	handler := setupTestHandler(source)

	requestBody := map[string]interface{}{
		"symbols":  []string{"aaa", "BBB"},
		"currency": "usd",
		"period":   "1Y",
	}
	bodyBytes, _ := json.Marshal(requestBody)

	req := httptest.NewRequest("POST", "/api/optimization/portfolio", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleOptimize(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	require.Contains(t, response, "data")
	data := response["data"].(map[string]interface{})
	assert.Contains(t, data, "min_variance")
	assert.Contains(t, data, "max_return")
	assert.Contains(t, data, "max_sharpe")
	assert.Contains(t, data, "efficient_frontier")

	minVar := data["min_variance"].(map[string]interface{})
	weights := minVar["weights"].(map[string]interface{})
	sum := 0.0
	for _, w := range weights {
		sum += w.(float64)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	metadata := response["metadata"].(map[string]interface{})
	assert.Equal(t, "USD", metadata["currency"])
}

func TestHandleOptimize_InvalidBody(t *testing.T) {
	handler := setupTestHandler(&fakeReturnSource{})

	req := httptest.NewRequest("POST", "/api/optimization/portfolio", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	handler.HandleOptimize(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleOptimize_TooFewSymbols(t *testing.T) {
	handler := setupTestHandler(&fakeReturnSource{})

	bodyBytes, _ := json.Marshal(map[string]interface{}{"symbols": []string{"AAA", "  "}})
	req := httptest.NewRequest("POST", "/api/optimization/portfolio", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleOptimize(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleOptimize_FetchFailure(t *testing.T) {
	handler := setupTestHandler(&fakeReturnSource{err: errors.New("upstream down")})

	bodyBytes, _ := json.Marshal(map[string]interface{}{"symbols": []string{"AAA", "BBB"}})
	req := httptest.NewRequest("POST", "/api/optimization/portfolio", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleOptimize(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleOptimize_DropsSymbolsWithoutData(t *testing.T) {
	source := &fakeReturnSource{
		returns: map[string][]float64{
			"AAA": {0.01, 0.02, -0.01},
			"BBB": {},
		},
		ppy: 252,
	}
	handler := setupTestHandler(source)

	bodyBytes, _ := json.Marshal(map[string]interface{}{"symbols": []string{"AAA", "BBB"}})
	req := httptest.NewRequest("POST", "/api/optimization/portfolio", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleOptimize(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
