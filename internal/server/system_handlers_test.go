package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSystemHealth(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	handlers := NewSystemHandlers(log, t.TempDir(), nil)

	req := httptest.NewRequest("GET", "/api/system/health", nil)
	w := httptest.NewRecorder()

	handlers.HandleSystemHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, "degraded", response["status"], "no cache db means degraded")
	assert.Equal(t, "not configured", response["cache_db"])
	assert.Contains(t, response, "cpu_percent")
	assert.Contains(t, response, "memory_percent")
	assert.Contains(t, response, "uptime_seconds")
	assert.Greater(t, response["goroutines"], 0.0)
}

func TestGetDirSize(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), make([]byte, 2*1024*1024), 0o644))

	handlers := NewSystemHandlers(log, dir, nil)

	size := handlers.getDirSize(dir)
	assert.InDelta(t, 2.0, size, 0.1)
}

func TestGetDirSize_MissingDir(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	handlers := NewSystemHandlers(log, "/nonexistent", nil)

	assert.Equal(t, 0.0, handlers.getDirSize("/nonexistent/path"))
}
