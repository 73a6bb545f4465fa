package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	origHome := userHomeDir
	defer func() { userHomeDir = origHome }()
	tmpHome := t.TempDir()
	userHomeDir = func() (string, error) { return tmpHome, nil }

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.HTTP.RequestTimeoutSecs)
	assert.Equal(t, 10, cfg.HTTP.ConnTestTimeoutSecs)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Contains(t, cfg.Paths.DataDir, ".polychat")
}

func TestServerPortEnvOverride(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9000

	t.Setenv(ServerPortEnv, "1234")
	assert.Equal(t, 1234, cfg.ServerPort())

	t.Setenv(ServerPortEnv, "not-a-port")
	assert.Equal(t, 9000, cfg.ServerPort())

	t.Setenv(ServerPortEnv, "")
	assert.Equal(t, 9000, cfg.ServerPort())
}

func TestServerPortDefault(t *testing.T) {
	t.Setenv(ServerPortEnv, "")
	cfg := &Config{}
	assert.Equal(t, 8765, cfg.ServerPort())
}
