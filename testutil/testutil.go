// Package testutil provides in-memory database and cache setup for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tamer-online/gameserver/cache"
	"github.com/tamer-online/gameserver/config"
	dbsqlite "github.com/tamer-online/gameserver/db/sqlite"
	"github.com/tamer-online/gameserver/model"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// SetupTestDB creates a private in-memory SQLite database and runs
// AutoMigrate. Each call gets its own database, so parallel tests never
// see each other's rows.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := dbsqlite.Open(dsn)
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.New(config.CacheConfig{}) // empty RedisAddr → LocalCache
	require.NoError(t, err, "SetupTestCache: New")
	return c
}
