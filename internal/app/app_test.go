package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"statushub/config"
	"statushub/internal/database"
	"statushub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	return config.Config{
		GeneralVersion:      "test",
		Environment:         "test",
		ServerPort:          8288,
		CorsAllowOrigins:    "*",
		DatabaseDriver:      config.DriverSqlite,
		DatabasePath:        filepath.Join(dir, "statushub.db"),
		StatusDebounceMs:    0,
		RecoveryGraceMs:     100,
		EventMailboxSize:    64,
		RecoveryWatchDir:    filepath.Join(dir, "watch"),
		RecoveryPlaceholder: ".icloud",
		RecoveryScanMinutes: 15,
		TempDir:             filepath.Join(dir, "tmp"),
		TempMaxAgeHours:     24,
	}
}

func TestBuild_WiresAndClosesCleanly(t *testing.T) {
	cfg := testConfig(t)
	db, err := database.New(cfg)
	require.NoError(t, err)

	app, err := Build(cfg, db)
	require.NoError(t, err)

	assert.Nil(t, app.Bridge, "no cache configured")
	assert.True(t, app.Database.HistoryEnabled())
	assert.Equal(t, 2, app.Services.Scheduler.GetJobCount())

	require.NoError(t, app.Close())
}

func TestStart_TurnsSchedulerOnThroughAggregator(t *testing.T) {
	cfg := testConfig(t)
	db, err := database.New(cfg)
	require.NoError(t, err)

	app, err := Build(cfg, db)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.True(t, app.Services.Scheduler.Running())

	assert.Eventually(t, func() bool {
		snapshot, err := app.Aggregator.Snapshot(ctx)
		return err == nil && snapshot.Services[services.SCHEDULER_SERVICE_NAME]
	}, time.Second, 10*time.Millisecond)

	// a second start leaves the scheduler running
	require.NoError(t, app.Start(ctx))
	assert.True(t, app.Services.Scheduler.Running())
}

func TestBuild_WithoutHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = ""
	cfg.RecoveryWatchDir = ""
	cfg.TempDir = ""

	db, err := database.New(cfg)
	require.NoError(t, err)

	app, err := Build(cfg, db)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	assert.False(t, app.Database.HistoryEnabled())
	assert.Equal(t, 0, app.Services.Scheduler.GetJobCount())
}
