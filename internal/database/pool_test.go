package database

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestNewPoolManager(t *testing.T) {
	pm, err := NewPoolManager(newTestDB(t), DefaultPoolConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pm.Close()

	assert.NotNil(t, pm.DB())
	assert.NoError(t, pm.Ping(context.Background()))
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestPoolManager_Stats(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.HealthCheckInterval = 0 // 不启动后台循环
	pm, err := NewPoolManager(newTestDB(t), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pm.Close()

	require.NoError(t, pm.Ping(context.Background()))

	stats := pm.GetStats()
	assert.Equal(t, cfg.MaxOpenConns, stats.MaxOpenConnections)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
}

func TestPoolManager_ClosedPingFails(t *testing.T) {
	pm, err := NewPoolManager(newTestDB(t), DefaultPoolConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, pm.Close())
	assert.Error(t, pm.Ping(context.Background()))

	// 重复 Close 幂等
	assert.NoError(t, pm.Close())
}

func TestPoolManager_OnStats(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	pm, err := NewPoolManager(newTestDB(t), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pm.Close()

	var calls atomic.Int64
	pm.OnStats(func(sql.DBStats) { calls.Add(1) })

	assert.Eventually(t, func() bool {
		return calls.Load() > 0
	}, time.Second, 10*time.Millisecond)
}
