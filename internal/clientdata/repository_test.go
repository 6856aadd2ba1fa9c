package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)

	return db
}

func TestNewRepository(t *testing.T) {
	db := setupTestDB(t)

	repo := NewRepository(db)
	assert.NotNil(t, repo)
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.EnsureSchema())
	require.NoError(t, repo.EnsureSchema())
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	data := map[string]interface{}{
		"symbol": "AAPL",
		"close":  123.45,
	}

	err := repo.Store("fmp_history", "AAPL", data, 24*time.Hour)
	require.NoError(t, err)

	var storedData string
	var expiresAt int64
	err = db.QueryRow("SELECT data, expires_at FROM fmp_history WHERE symbol = ?", "AAPL").Scan(&storedData, &expiresAt)
	require.NoError(t, err)

	var parsed map[string]interface{}
	err = json.Unmarshal([]byte(storedData), &parsed)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", parsed["symbol"])
	assert.InDelta(t, 123.45, parsed["close"], 1e-9)

	// Expiration should be roughly now + 24h
	expected := time.Now().Add(24 * time.Hour).Unix()
	assert.InDelta(t, expected, expiresAt, 5)
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("fmp_quotes", "MSFT", map[string]float64{"price": 100}, time.Hour))
	require.NoError(t, repo.Store("fmp_quotes", "MSFT", map[string]float64{"price": 200}, time.Hour))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM fmp_quotes").Scan(&count))
	assert.Equal(t, 1, count)

	data, err := repo.Get("fmp_quotes", "MSFT")
	require.NoError(t, err)

	var parsed map[string]float64
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, 200.0, parsed["price"])
}

func TestStoreInvalidTable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	err := repo.Store("not_a_table", "key", "value", time.Hour)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("fmp_fx_series", "EURUSD", map[string]float64{"2024-01-02": 1.09}, time.Hour))

	data, err := repo.GetIfFresh("fmp_fx_series", "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, data)

	var parsed map[string]float64
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, 1.09, parsed["2024-01-02"])
}

func TestGetIfFreshMissingKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	data, err := repo.GetIfFresh("fmp_history", "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGetIfFreshExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	// Negative TTL makes the row already expired
	require.NoError(t, repo.Store("risk_free_rates", "USD", 0.042, -time.Hour))

	data, err := repo.GetIfFresh("risk_free_rates", "USD")
	require.NoError(t, err)
	assert.Nil(t, data)

	// Stale fallback still sees it
	stale, err := repo.Get("risk_free_rates", "USD")
	require.NoError(t, err)
	require.NotNil(t, stale)

	var rate float64
	require.NoError(t, json.Unmarshal(stale, &rate))
	assert.Equal(t, 0.042, rate)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("comparisons", "abc", "payload", time.Hour))
	require.NoError(t, repo.Delete("comparisons", "abc"))

	data, err := repo.Get("comparisons", "abc")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("fmp_history", "OLD", "stale", -time.Hour))
	require.NoError(t, repo.Store("fmp_history", "NEW", "fresh", time.Hour))

	deleted, err := repo.DeleteExpired("fmp_history")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	data, err := repo.Get("fmp_history", "NEW")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("fmp_history", "OLD", "stale", -time.Hour))
	require.NoError(t, repo.Store("fmp_quotes", "OLD", "stale", -time.Hour))
	require.NoError(t, repo.Store("comparisons", "fresh", "ok", time.Hour))

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)

	assert.Equal(t, int64(1), results["fmp_history"])
	assert.Equal(t, int64(1), results["fmp_quotes"])
	assert.Equal(t, int64(0), results["comparisons"])
}

func TestTableCache(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	cache := NewTableCache(repo, "comparisons", testLogger())

	assert.Nil(t, cache.Get("missing"))

	require.NoError(t, cache.Set("k1", []byte(`{"v":1}`), time.Hour))
	assert.JSONEq(t, `{"v":1}`, string(cache.Get("k1")))

	// Expired entries read as misses
	require.NoError(t, cache.Set("k2", []byte(`{"v":2}`), -time.Hour))
	assert.Nil(t, cache.Get("k2"))
}
