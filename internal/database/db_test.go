package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	db, err := New(Config{Path: path, Profile: ProfileCache, Name: "cache"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileCache, db.Profile())
	assert.Equal(t, "cache", db.Name())
	require.NoError(t, db.Conn().Ping())

	_, err = db.Conn().Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
	assert.NoError(t, err)
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "std.db"), Name: "std"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestBuildConnectionString(t *testing.T) {
	cache := buildConnectionString("/tmp/a.db", ProfileCache)
	assert.True(t, strings.HasPrefix(cache, "/tmp/a.db?_pragma=journal_mode(WAL)"))
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.Contains(t, cache, "auto_vacuum(FULL)")

	std := buildConnectionString("/tmp/b.db", ProfileStandard)
	assert.Contains(t, std, "synchronous(NORMAL)")
	assert.Contains(t, std, "auto_vacuum(INCREMENTAL)")
	assert.Contains(t, std, "cache_size(-64000)")
}
