package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helloviza/approvals/internal/infrastructure/lock"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "approvals.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "files")
	cfg.Auth.JWTSecret = "container-test-secret"
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "jwt_secret")

	cfg = testConfig(t)
	cfg.Server.Port = 70000
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "port")
}

func TestContainer_StartAndClose(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	assert.NotNil(t, c.Services().Requests)
	assert.NotNil(t, c.Services().Export)
	assert.NotNil(t, c.HTTPServer())
	assert.IsType(t, &lock.MemoryLock{}, c.Lock())
	assert.Equal(t, 1, c.Workers().GetWorkerCount())

	health := c.Health()
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.NoError(t, c.HealthCheck(context.Background()))

	rec := httptest.NewRecorder()
	c.HTTPServer().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &lock.RedisLock{}, c.Lock())
	assert.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
	assert.False(t, c.Health().Overall)
}

func TestContainer_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock")
	assert.False(t, c.Ready())
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("a", 1, 2, "skipped", "err", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "err", fields[1].Key)
}
