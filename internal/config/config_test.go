package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "https://apis.data.go.kr/1230000/ad/BidPublicInfoService", cfg.G2B.BaseURL)
	assert.Equal(t, 100, cfg.G2B.PageSize)
	assert.Equal(t, 50, cfg.G2B.MaxPages)
	assert.Equal(t, 7, cfg.G2B.ChunkDays)
	assert.Equal(t, 120, cfg.G2B.RequestDelayMs)
	assert.Equal(t, 5, cfg.G2B.RatePerSec)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WATCHBOARD_STORE_DRIVER", "sqlite")
	t.Setenv("WATCHBOARD_G2B_SERVICE_KEY", "env-key")
	t.Setenv("WATCHBOARD_G2B_CHUNK_DAYS", "3")
	t.Setenv("WATCHBOARD_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "env-key", cfg.G2B.ServiceKey)
	assert.Equal(t, 3, cfg.G2B.ChunkDays)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope"}))
}
