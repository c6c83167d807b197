package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.ListenPort())
	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, time.Duration(0), cfg.OpponentDelay)
	assert.Equal(t, 10, cfg.DailyActionPoints)
	assert.Equal(t, "*", cfg.AllowedOrigin)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("GAME_PORT", "9001")
	t.Setenv("ROSE_DB_PATH", "/tmp/rose.db")
	t.Setenv("ROSE_OPPONENT_DELAY", "750ms")
	t.Setenv("ROSE_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ListenPort(), "PORT wins over GAME_PORT")
	assert.Equal(t, "/tmp/rose.db", cfg.DBPath)
	assert.Equal(t, 750*time.Millisecond, cfg.OpponentDelay)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ROSE_DAILY_ACTION_POINTS", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ROSE_DAILY_ACTION_POINTS", "ten")
	_, err = Load()
	assert.ErrorContains(t, err, "parse env:")

	t.Setenv("ROSE_DAILY_ACTION_POINTS", "10")
	t.Setenv("ROSE_OPPONENT_DELAY", "-1s")
	_, err = Load()
	assert.Error(t, err)
}
