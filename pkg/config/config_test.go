package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/nymph/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"NYMPH_LOG_LEVEL", "NYMPH_LOG_DEV", "NYMPH_CYCLE_TIME_MS", "NYMPH_METRICS_FILE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	s, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, 500*time.Millisecond, s.CycleTime())
	assert.False(t, s.LogDev)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("NYMPH_LOG_LEVEL", "debug")
	t.Setenv("NYMPH_LOG_DEV", "true")
	t.Setenv("NYMPH_CYCLE_TIME_MS", "25")
	t.Setenv("NYMPH_METRICS_FILE", "/tmp/nymph.prom")

	s, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.LogDev)
	assert.Equal(t, 25*time.Millisecond, s.CycleTime())
	assert.Equal(t, "/tmp/nymph.prom", s.MetricsFile)

	lc := s.Logging()
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.Development)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("NYMPH_CYCLE_TIME_MS", "soon")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_ZeroCycleTime(t *testing.T) {
	t.Setenv("NYMPH_CYCLE_TIME_MS", "0")
	_, err := config.Load()
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	s := config.Default()
	assert.Equal(t, 500*time.Millisecond, s.CycleTime())
}
