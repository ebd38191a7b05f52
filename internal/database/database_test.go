package database

import (
	"path/filepath"
	"testing"

	"statushub/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheConstants(t *testing.T) {
	assert.Equal(t, 0, GENERAL_CACHE_INDEX)
	assert.Equal(t, 1, EVENTS_CACHE_INDEX)
}

func TestNew_NoDriverNoCache(t *testing.T) {
	db, err := New(config.Config{})
	require.NoError(t, err)

	assert.False(t, db.HistoryEnabled())
	assert.Nil(t, db.Cache.General)
	assert.Nil(t, db.Cache.Events)
	assert.NoError(t, db.Close())
}

func TestNew_SqliteMigrates(t *testing.T) {
	db, err := New(config.Config{
		DatabaseDriver: config.DriverSqlite,
		DatabasePath:   filepath.Join(t.TempDir(), "statushub.db"),
	})
	require.NoError(t, err)
	defer db.Close()

	require.True(t, db.HistoryEnabled())
	assert.True(t, db.SQL.Migrator().HasTable("recovery_sessions"))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(config.Config{DatabaseDriver: "mysql"})
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.Config{
		DatabaseHost:     "localhost",
		DatabasePort:     5432,
		DatabaseUser:     "hub",
		DatabasePassword: "secret",
		DatabaseName:     "statushub",
	})

	assert.Equal(t, "host=localhost port=5432 user=hub password=secret dbname=statushub sslmode=disable", dsn)
}

func TestCacheBuilder_KeyAndValidation(t *testing.T) {
	builder := NewCacheBuilder(nil, "snapshot").WithHash("status")
	assert.Equal(t, "status:snapshot", builder.Key())

	assert.EqualError(t, NewCacheBuilder(nil, "").WithValue("x").Set(), "key is required")
	assert.EqualError(t, NewCacheBuilder(nil, "k").Set(), "value is required")

	_, err := NewCacheBuilder(nil, "k").WithStruct(make(chan int)).Get(&struct{}{})
	assert.Error(t, err)
}
