package clientdata

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// TableCache adapts a single repository table to the domain.Cache interface.
// Cache errors are logged and swallowed: a broken cache degrades to a miss,
// it never fails the request.
type TableCache struct {
	repo  *Repository
	table string
	log   zerolog.Logger
}

// NewTableCache creates a cache view over one client data table.
func NewTableCache(repo *Repository, table string, log zerolog.Logger) *TableCache {
	return &TableCache{
		repo:  repo,
		table: table,
		log:   log.With().Str("cache_table", table).Logger(),
	}
}

// Get returns the cached raw value for key, or nil when absent/expired.
func (c *TableCache) Get(key string) []byte {
	data, err := c.repo.GetIfFresh(c.table, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return nil
	}
	return data
}

// Set stores value under key for the given TTL.
func (c *TableCache) Set(key string, value []byte, ttl time.Duration) error {
	return c.repo.Store(c.table, key, json.RawMessage(value), ttl)
}
