package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRejectsMissingExplicitConfigFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err) // explicit path that doesn't exist is a hard error
	_ = cfg
}

func TestLoadWithoutExplicitPathFallsBackToDefaults(t *testing.T) {
	t.Setenv("LOCKER_BUS_BROKER", "tcp://broker.example:1883")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker.example:1883", cfg.Bus.Broker)
	assert.Equal(t, "mock", cfg.Access.Mode)
	assert.Equal(t, ":8090", cfg.HTTP.Bind)
	assert.True(t, cfg.Lock.ActiveHigh)
}
