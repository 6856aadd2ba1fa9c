package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/spyglass/internal/clientdata"
	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/modules/comparison"
	"github.com/aristath/spyglass/internal/modules/currency"
	"github.com/aristath/spyglass/internal/modules/optimization"
)

type noFx struct{}

func (noFx) FetchFxSeries(_ context.Context, pair string, _, _ time.Time) (map[string]float64, error) {
	return nil, nil
}

type flatRiskFree struct{}

func (flatRiskFree) RiskFreeRate(_ context.Context, _ domain.Currency, _ time.Time) (float64, error) {
	return 0.03, nil
}

func testHistory(_ context.Context, _ string, start, end time.Time) ([]domain.PricePoint, error) {
	var points []domain.PricePoint
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		points = append(points, domain.PricePoint{Date: d, Close: 100 + float64(i)*0.05})
		i++
	}
	return points, nil
}

func testQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	return &domain.Quote{Symbol: symbol, Name: symbol + " Corp", Price: 100, Currency: domain.CurrencyUSD}, nil
}

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := clientdata.NewRepository(db)
	require.NoError(t, repo.EnsureSchema())

	dispatch := domain.Dispatch{
		domain.KindStock: {FetchQuote: testQuote, FetchHistory: testHistory},
	}
	service := comparison.NewService(
		dispatch,
		currency.NewNormalizer(noFx{}, log),
		flatRiskFree{},
		optimization.NewOptimizer(log),
		clientdata.NewTableCache(repo, "comparisons", log),
		clientdata.TTLComparison,
		3,
		log,
	)
	return NewHandler(service, log)
}

func TestHandleCompare(t *testing.T) {
	handler := setupTestHandler(t)

	requestBody := map[string]interface{}{
		"symbols": []string{"AAA", "BBB"},
		"period":  "1Y",
		"mode":    "index100",
	}
	bodyBytes, _ := json.Marshal(requestBody)

	req := httptest.NewRequest("POST", "/api/comparison/compare", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleCompare(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	require.Contains(t, response, "data")
	data := response["data"].(map[string]interface{})
	assert.Contains(t, data, "chart_data")
	assert.Contains(t, data, "metrics")
	assert.Contains(t, data, "correlation_matrix")
	assert.NotEmpty(t, data["request_id"])

	metadata := response["metadata"].(map[string]interface{})
	assert.NotEmpty(t, metadata["request_id"])
}

func TestHandleCompare_InvalidBody(t *testing.T) {
	handler := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/comparison/compare", bytes.NewReader([]byte("nope")))
	w := httptest.NewRecorder()

	handler.HandleCompare(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCompare_NoSymbols(t *testing.T) {
	handler := setupTestHandler(t)

	bodyBytes, _ := json.Marshal(map[string]interface{}{"symbols": []string{}})
	req := httptest.NewRequest("POST", "/api/comparison/compare", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleCompare(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCompare_UnknownPeriod(t *testing.T) {
	handler := setupTestHandler(t)

	bodyBytes, _ := json.Marshal(map[string]interface{}{
		"symbols": []string{"AAA"},
		"period":  "2W",
	})
	req := httptest.NewRequest("POST", "/api/comparison/compare", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleCompare(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCompare_UnknownMode(t *testing.T) {
	handler := setupTestHandler(t)

	bodyBytes, _ := json.Marshal(map[string]interface{}{
		"symbols": []string{"AAA"},
		"mode":    "log-scale",
	})
	req := httptest.NewRequest("POST", "/api/comparison/compare", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleCompare(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePeriods(t *testing.T) {
	handler := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/comparison/periods", nil)
	w := httptest.NewRecorder()

	handler.HandlePeriods(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	data := response["data"].(map[string]interface{})
	periods := data["periods"].([]interface{})
	assert.Len(t, periods, 9)
	modes := data["modes"].([]interface{})
	assert.Len(t, modes, 2)
}
