package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, time.Minute, cfg.RefreshInterval)
	require.Equal(t, 5*time.Minute, cfg.RefreshMargin)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("TCLHOME_EMAIL", "user@example.com")
	t.Setenv("TCLHOME_REFRESH_INTERVAL", "30s")
	t.Setenv("TCLHOME_REFRESH_MARGIN", "not-a-duration")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConfig()

	require.Equal(t, "user@example.com", cfg.Email)
	require.Equal(t, 30*time.Second, cfg.RefreshInterval)
	require.Equal(t, 5*time.Minute, cfg.RefreshMargin, "unparseable durations fall back to the default")
	require.Equal(t, "debug", cfg.LogLevel)
}
